package usecase

import (
	"strings"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

const unknownItemID = "unknown_id"

type textAccessor struct {
	get     func(domain.SourceItem) string
	applies func(domain.SourceItem) bool
}

// boardTextAccessors are tried in order; the first non-blank value wins.
var boardTextAccessors = []textAccessor{
	{get: func(it domain.SourceItem) string { return it.Data.Content }},
	{get: func(it domain.SourceItem) string { return it.Data.Text }},
	{get: func(it domain.SourceItem) string { return it.Data.Title }},
	{get: func(it domain.SourceItem) string { return it.Text }},
	{
		get:     func(it domain.SourceItem) string { return it.Data.PlainText },
		applies: func(it domain.SourceItem) bool { return it.ItemType == domain.BoardItemShape },
	},
}

// Normalize turns a raw item into a document. ok is false when the item has
// no usable text; that is expected for images, connectors and similar items.
func Normalize(item domain.SourceItem) (domain.NormalizedDocument, bool) {
	text := resolveText(item)
	if strings.TrimSpace(text) == "" {
		return domain.NormalizedDocument{}, false
	}

	meta := domain.DocumentMetadata{
		Source:   item.Locator,
		Kind:     item.Kind,
		ItemType: item.ItemType,
		ItemID:   item.ItemID,
		BoardID:  item.BoardID,
		Title:    item.Title,
		Page:     item.Page,
	}
	if item.Kind == domain.SourceBoard && meta.ItemID == "" {
		meta.ItemID = unknownItemID
	}
	return domain.NormalizedDocument{Text: text, Metadata: meta}, true
}

// NormalizeAll normalizes items in order and reports how many were dropped.
func NormalizeAll(items []domain.SourceItem) ([]domain.NormalizedDocument, int) {
	docs := make([]domain.NormalizedDocument, 0, len(items))
	skipped := 0
	for _, item := range items {
		doc, ok := Normalize(item)
		if !ok {
			skipped++
			continue
		}
		docs = append(docs, doc)
	}
	return docs, skipped
}

func resolveText(item domain.SourceItem) string {
	if item.Kind != domain.SourceBoard {
		return item.PageContent
	}
	for _, accessor := range boardTextAccessors {
		if accessor.applies != nil && !accessor.applies(item) {
			continue
		}
		if v := accessor.get(item); strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
