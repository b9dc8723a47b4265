package usecase

import (
	"testing"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

func TestNormalizePrefersContentOverText(t *testing.T) {
	item := domain.SourceItem{
		Kind:     domain.SourceBoard,
		ItemType: "sticky_note",
		ItemID:   "42",
		BoardID:  "b1",
		Locator:  "https://miro.com/app/board/b1",
		Data:     domain.ItemData{Content: "from content", Text: "from text", Title: "from title"},
		Text:     "top level",
	}
	doc, ok := Normalize(item)
	if !ok {
		t.Fatalf("expected document")
	}
	if doc.Text != "from content" {
		t.Fatalf("expected content field, got %q", doc.Text)
	}
	if doc.Metadata.Source != item.Locator || doc.Metadata.ItemID != "42" || doc.Metadata.BoardID != "b1" || doc.Metadata.ItemType != "sticky_note" {
		t.Fatalf("unexpected metadata %+v", doc.Metadata)
	}
}

func TestNormalizeFallsThroughPriorityOrder(t *testing.T) {
	cases := []struct {
		name string
		item domain.SourceItem
		want string
	}{
		{
			name: "blank content falls back to nested text",
			item: domain.SourceItem{Kind: domain.SourceBoard, Data: domain.ItemData{Content: "  ", Text: "nested text"}},
			want: "nested text",
		},
		{
			name: "title before top-level text",
			item: domain.SourceItem{Kind: domain.SourceBoard, Data: domain.ItemData{Title: "title"}, Text: "top"},
			want: "title",
		},
		{
			name: "top-level text",
			item: domain.SourceItem{Kind: domain.SourceBoard, Text: "top"},
			want: "top",
		},
		{
			name: "plain text for shapes",
			item: domain.SourceItem{Kind: domain.SourceBoard, ItemType: domain.BoardItemShape, Data: domain.ItemData{PlainText: "shape text"}},
			want: "shape text",
		},
		{
			name: "wiki page content",
			item: domain.SourceItem{Kind: domain.SourceWiki, PageContent: "page body", Data: domain.ItemData{Content: "ignored"}},
			want: "page body",
		},
	}
	for _, tc := range cases {
		doc, ok := Normalize(tc.item)
		if !ok {
			t.Fatalf("%s: expected document", tc.name)
		}
		if doc.Text != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, doc.Text)
		}
	}
}

func TestNormalizeDropsItemsWithoutText(t *testing.T) {
	items := []domain.SourceItem{
		{Kind: domain.SourceBoard, ItemType: "image", ItemID: "1"},
		{Kind: domain.SourceBoard, ItemType: "card", Data: domain.ItemData{PlainText: "not a shape"}},
		{Kind: domain.SourcePDF, PageContent: "   "},
	}
	for i, item := range items {
		if _, ok := Normalize(item); ok {
			t.Fatalf("item %d: expected no document", i)
		}
	}
	docs, skipped := NormalizeAll(items)
	if len(docs) != 0 || skipped != 3 {
		t.Fatalf("expected 0 docs and 3 skipped, got %d/%d", len(docs), skipped)
	}
}

func TestNormalizeDefaultsBoardItemID(t *testing.T) {
	doc, ok := Normalize(domain.SourceItem{Kind: domain.SourceBoard, Text: "x"})
	if !ok {
		t.Fatalf("expected document")
	}
	if doc.Metadata.ItemID != "unknown_id" {
		t.Fatalf("expected unknown_id, got %q", doc.Metadata.ItemID)
	}
}
