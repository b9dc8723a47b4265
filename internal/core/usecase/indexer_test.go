package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/chunking"
)

func TestIndexEmptyInputReturnsFalse(t *testing.T) {
	index := &memoryIndex{}
	uc := NewIndexUseCase(wholeTextChunker{}, &keywordEmbedder{}, index, 0)

	ok, err := uc.Index(context.Background(), nil)
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	if ok {
		t.Fatalf("expected false for empty input")
	}
	if index.addCall != 0 {
		t.Fatalf("index must not be touched, got %d writes", index.addCall)
	}
}

func TestIndexCopiesMetadataOntoEveryChunk(t *testing.T) {
	index := &memoryIndex{}
	uc := NewIndexUseCase(chunking.NewSplitter(10, 2), &keywordEmbedder{keywords: []string{"a"}}, index, 2)

	doc := domain.NormalizedDocument{
		Text: "abcdefghijklmnopqrstuvwxyz",
		Metadata: domain.DocumentMetadata{
			Source:   "https://miro.com/app/board/b1",
			Kind:     domain.SourceBoard,
			ItemType: "sticky_note",
			ItemID:   "7",
			BoardID:  "b1",
		},
	}
	stats, err := uc.IndexDocuments(context.Background(), []domain.NormalizedDocument{doc})
	if err != nil {
		t.Fatalf("IndexDocuments() error = %v", err)
	}
	if stats.Chunks != 3 || stats.ChunkCounts[0] != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	for i, chunk := range index.chunks {
		if chunk.Metadata != doc.Metadata {
			t.Fatalf("chunk %d metadata = %+v", i, chunk.Metadata)
		}
		if chunk.Index != i || len(chunk.Embedding) == 0 || chunk.ID == "" {
			t.Fatalf("chunk %d not fully populated: %+v", i, chunk)
		}
	}
}

func TestIndexIsIncremental(t *testing.T) {
	index := &memoryIndex{}
	embedder := &keywordEmbedder{keywords: []string{"gehalt", "cloudsync"}}
	indexer := NewIndexUseCase(wholeTextChunker{}, embedder, index, 0)
	retriever := NewRetrieveUseCase(embedder, index, 4)

	if _, err := indexer.Index(context.Background(), []domain.NormalizedDocument{docFrom("vertrag.pdf", "Das Gehalt beträgt 5800 Euro")}); err != nil {
		t.Fatalf("first Index() error = %v", err)
	}
	if _, err := indexer.Index(context.Background(), []domain.NormalizedDocument{docFrom("wiki/cloudsync", "CloudSync startet im Juni")}); err != nil {
		t.Fatalf("second Index() error = %v", err)
	}

	first, err := retriever.Retrieve(context.Background(), "Wie hoch ist das Gehalt?", 1)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	second, err := retriever.Retrieve(context.Background(), "Wann startet CloudSync?", 1)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(first) != 1 || first[0].Metadata.Source != "vertrag.pdf" {
		t.Fatalf("expected chunk from first batch, got %+v", first)
	}
	if len(second) != 1 || second[0].Metadata.Source != "wiki/cloudsync" {
		t.Fatalf("expected chunk from second batch, got %+v", second)
	}
}

func TestIndexSameTextTwiceDuplicatesChunks(t *testing.T) {
	index := &memoryIndex{}
	uc := NewIndexUseCase(wholeTextChunker{}, &keywordEmbedder{}, index, 0)
	docs := []domain.NormalizedDocument{docFrom("a.pdf", "gleicher Text")}

	for i := 0; i < 2; i++ {
		if _, err := uc.Index(context.Background(), docs); err != nil {
			t.Fatalf("Index() #%d error = %v", i, err)
		}
	}
	if len(index.chunks) != 2 {
		t.Fatalf("expected duplicate chunks, got %d", len(index.chunks))
	}
	if index.chunks[0].ID == index.chunks[1].ID {
		t.Fatalf("duplicate chunks must still get distinct ids")
	}
}

func TestIndexEmbeddingFailureIsDistinguished(t *testing.T) {
	index := &memoryIndex{}
	uc := NewIndexUseCase(wholeTextChunker{}, &keywordEmbedder{err: errors.New("rate limited")}, index, 0)

	ok, err := uc.Index(context.Background(), []domain.NormalizedDocument{docFrom("a.pdf", "text")})
	if ok || err == nil {
		t.Fatalf("expected failure, got ok=%v err=%v", ok, err)
	}
	if !domain.IsKind(err, domain.ErrEmbeddingOrIndexFailure) {
		t.Fatalf("expected ErrEmbeddingOrIndexFailure, got %v", err)
	}
	if index.addCall != 0 {
		t.Fatalf("index must not be written after embedding failure")
	}
}

func TestIndexStoreFailureIsDistinguished(t *testing.T) {
	index := &memoryIndex{addErr: errors.New("disk full")}
	uc := NewIndexUseCase(wholeTextChunker{}, &keywordEmbedder{}, index, 0)

	_, err := uc.Index(context.Background(), []domain.NormalizedDocument{docFrom("a.pdf", "text")})
	if !domain.IsKind(err, domain.ErrEmbeddingOrIndexFailure) {
		t.Fatalf("expected ErrEmbeddingOrIndexFailure, got %v", err)
	}
}

func TestIndexEmbedsInBatches(t *testing.T) {
	embedder := &keywordEmbedder{}
	uc := NewIndexUseCase(wholeTextChunker{}, embedder, &memoryIndex{}, 2)
	docs := []domain.NormalizedDocument{docFrom("a", "1"), docFrom("b", "2"), docFrom("c", "3"), docFrom("d", "4"), docFrom("e", "5")}

	if _, err := uc.Index(context.Background(), docs); err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	if embedder.calls != 3 {
		t.Fatalf("expected 3 embedding calls, got %d", embedder.calls)
	}
}
