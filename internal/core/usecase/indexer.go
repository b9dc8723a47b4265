package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
	"github.com/kirillkom/knowledge-assistant/internal/core/ports"
)

const defaultEmbedBatchSize = 64

// IndexStats describes one successful indexing batch.
type IndexStats struct {
	Documents   int
	Chunks      int
	ChunkCounts []int
}

// IndexUseCase chunks, embeds and appends documents to the vector index.
// It is the only writer of the index; writes are serialized.
type IndexUseCase struct {
	chunker   ports.Chunker
	embedder  ports.Embedder
	index     ports.VectorIndex
	batchSize int

	writeMu sync.Mutex
}

func NewIndexUseCase(
	chunker ports.Chunker,
	embedder ports.Embedder,
	index ports.VectorIndex,
	batchSize int,
) *IndexUseCase {
	if batchSize <= 0 {
		batchSize = defaultEmbedBatchSize
	}
	return &IndexUseCase{
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		batchSize: batchSize,
	}
}

// Index returns false without error for an empty batch. Re-indexing the same
// text appends duplicate chunks.
func (uc *IndexUseCase) Index(ctx context.Context, docs []domain.NormalizedDocument) (bool, error) {
	stats, err := uc.IndexDocuments(ctx, docs)
	if err != nil {
		return false, err
	}
	return stats.Chunks > 0, nil
}

func (uc *IndexUseCase) IndexDocuments(ctx context.Context, docs []domain.NormalizedDocument) (IndexStats, error) {
	stats := IndexStats{Documents: len(docs), ChunkCounts: make([]int, len(docs))}
	if len(docs) == 0 {
		return stats, nil
	}

	chunks := make([]domain.Chunk, 0, len(docs))
	for i, doc := range docs {
		parts := uc.chunker.Split(doc.Text)
		stats.ChunkCounts[i] = len(parts)
		for idx, part := range parts {
			chunks = append(chunks, domain.Chunk{
				ID:       uuid.NewString(),
				Index:    idx,
				Text:     part,
				Metadata: doc.Metadata,
			})
		}
	}
	if len(chunks) == 0 {
		return stats, nil
	}

	if err := uc.embedChunks(ctx, chunks); err != nil {
		return stats, domain.WrapError(domain.ErrEmbeddingOrIndexFailure, "embed chunks", err)
	}

	uc.writeMu.Lock()
	err := uc.index.Add(ctx, chunks)
	uc.writeMu.Unlock()
	if err != nil {
		return stats, domain.WrapError(domain.ErrEmbeddingOrIndexFailure, "write vector index", err)
	}

	stats.Chunks = len(chunks)
	return stats, nil
}

func (uc *IndexUseCase) embedChunks(ctx context.Context, chunks []domain.Chunk) error {
	for start := 0; start < len(chunks); start += uc.batchSize {
		end := start + uc.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, 0, end-start)
		for _, chunk := range chunks[start:end] {
			texts = append(texts, chunk.Text)
		}
		vectors, err := uc.embedder.Embed(ctx, texts)
		if err != nil {
			return err
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("embedding count mismatch: got %d for %d chunks", len(vectors), len(texts))
		}
		for i := range vectors {
			chunks[start+i].Embedding = vectors[i]
		}
	}
	return nil
}
