package domain

import "time"

type SourceKind string

const (
	SourceWiki  SourceKind = "wiki"
	SourcePDF   SourceKind = "pdf"
	SourceBoard SourceKind = "board"
)

func (k SourceKind) Valid() bool {
	switch k {
	case SourceWiki, SourcePDF, SourceBoard:
		return true
	default:
		return false
	}
}

// BoardItemShape is the only board item type whose plainText field carries text.
const BoardItemShape = "shape"

// ItemData holds the nested candidate text fields of a board item.
type ItemData struct {
	Content   string `json:"content,omitempty"`
	Text      string `json:"text,omitempty"`
	Title     string `json:"title,omitempty"`
	PlainText string `json:"plainText,omitempty"`
}

// SourceItem is one raw unit yielded by a connector. It is consumed by the
// normalizer right away and never persisted.
type SourceItem struct {
	Kind     SourceKind `json:"kind"`
	ItemType string     `json:"item_type"`
	ItemID   string     `json:"item_id"`
	Locator  string     `json:"locator"`
	BoardID  string     `json:"board_id,omitempty"`
	Title    string     `json:"title,omitempty"`
	Page     int        `json:"page,omitempty"`

	Data        ItemData `json:"data"`
	Text        string   `json:"text,omitempty"`
	PageContent string   `json:"page_content,omitempty"`
}

type DocumentMetadata struct {
	Source   string     `json:"source"`
	Kind     SourceKind `json:"kind"`
	ItemType string     `json:"item_type,omitempty"`
	ItemID   string     `json:"item_id,omitempty"`
	BoardID  string     `json:"board_id,omitempty"`
	Title    string     `json:"title,omitempty"`
	Page     int        `json:"page,omitempty"`
}

type NormalizedDocument struct {
	Text     string           `json:"text"`
	Metadata DocumentMetadata `json:"metadata"`
}

// SourceRequest selects a connector and carries its parameters.
type SourceRequest struct {
	Kind     SourceKind `json:"kind"`
	SpaceKey string     `json:"space_key,omitempty"`
	Paths    []string   `json:"paths,omitempty"`
	BoardID  string     `json:"board_id,omitempty"`
}

type IngestResult struct {
	Kind      SourceKind `json:"kind"`
	Items     int        `json:"items"`
	Documents int        `json:"documents"`
	Skipped   int        `json:"skipped"`
	Indexed   bool       `json:"indexed"`
	Error     string     `json:"error,omitempty"`
}

// IndexJob is the queue payload for asynchronous ingestion.
type IndexJob struct {
	ID          string        `json:"id"`
	SessionID   string        `json:"session_id,omitempty"`
	Request     SourceRequest `json:"request"`
	RequestedAt time.Time     `json:"requested_at"`
}

type SourceSummary struct {
	Source string     `json:"source"`
	Kind   SourceKind `json:"kind"`
	Items  int        `json:"items"`
	Chunks int        `json:"chunks"`
}
