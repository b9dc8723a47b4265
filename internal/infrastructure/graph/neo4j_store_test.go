package graph

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

type recordedQuery struct {
	cypher string
	params map[string]any
}

func newStoreWithFake(result *neo4j.EagerResult, err error) (*Store, *[]recordedQuery) {
	calls := &[]recordedQuery{}
	return &Store{query: func(_ context.Context, cypher string, params map[string]any) (*neo4j.EagerResult, error) {
		*calls = append(*calls, recordedQuery{cypher: cypher, params: params})
		return result, err
	}}, calls
}

func TestRecordDocumentsSendsOneBatch(t *testing.T) {
	store, calls := newStoreWithFake(&neo4j.EagerResult{}, nil)
	docs := []domain.NormalizedDocument{
		{Text: "a", Metadata: domain.DocumentMetadata{Source: "handbuch.pdf", Kind: domain.SourcePDF, ItemType: "page", Page: 1}},
		{Text: "b", Metadata: domain.DocumentMetadata{Kind: domain.SourceBoard, ItemID: "n1", ItemType: "sticky_note"}},
	}

	if err := store.RecordDocuments(context.Background(), docs, []int{3, 1}); err != nil {
		t.Fatalf("RecordDocuments() error = %v", err)
	}
	if len(*calls) != 1 || !strings.Contains((*calls)[0].cypher, "MERGE (s)-[:CONTAINS]->(i)") {
		t.Fatalf("expected one merge query, got %+v", *calls)
	}
	items := (*calls)[0].params["items"].([]map[string]any)
	if items[0]["item_key"] != "|1" || items[0]["chunks"] != int64(3) {
		t.Fatalf("unexpected first item %+v", items[0])
	}
	if items[1]["source"] != domain.UnknownSource {
		t.Fatalf("missing locator must fall back to unknown source, got %v", items[1]["source"])
	}
}

func TestRecordDocumentsRejectsMismatchedCounts(t *testing.T) {
	store, calls := newStoreWithFake(nil, nil)
	err := store.RecordDocuments(context.Background(), []domain.NormalizedDocument{{Text: "a"}}, nil)
	if !domain.IsKind(err, domain.ErrInvalidInput) || len(*calls) != 0 {
		t.Fatalf("expected invalid input without query, got %v", err)
	}
	if err := store.RecordDocuments(context.Background(), nil, nil); err != nil {
		t.Fatalf("empty batch must be a no-op, got %v", err)
	}
}

func TestListSourcesMapsRecords(t *testing.T) {
	keys := []string{"source", "kind", "items", "chunks"}
	store, _ := newStoreWithFake(&neo4j.EagerResult{
		Keys: keys,
		Records: []*neo4j.Record{
			{Keys: keys, Values: []any{"handbuch.pdf", "pdf", int64(12), int64(40)}},
			{Keys: keys, Values: []any{"https://miro.com/app/board/uXjVO", "board", int64(7), int64(7)}},
		},
	}, nil)

	got, err := store.ListSources(context.Background())
	if err != nil {
		t.Fatalf("ListSources() error = %v", err)
	}
	if len(got) != 2 || got[0].Items != 12 || got[0].Chunks != 40 || got[1].Kind != domain.SourceBoard {
		t.Fatalf("unexpected summaries %+v", got)
	}
}

func TestListSourcesPropagatesErrors(t *testing.T) {
	store, _ := newStoreWithFake(nil, errors.New("connection refused"))
	if _, err := store.ListSources(context.Background()); err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
