package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
	"github.com/kirillkom/knowledge-assistant/internal/core/ports"
)

const defaultTopK = 4

type RetrieveUseCase struct {
	embedder ports.Embedder
	index    ports.VectorIndex
	topK     int
}

func NewRetrieveUseCase(embedder ports.Embedder, index ports.VectorIndex, topK int) *RetrieveUseCase {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &RetrieveUseCase{
		embedder: embedder,
		index:    index,
		topK:     topK,
	}
}

// Retrieve returns at most k chunks ordered by descending similarity. An
// index with no chunks yields an empty result, never an error.
func (uc *RetrieveUseCase) Retrieve(ctx context.Context, query string, k int) ([]domain.RetrievedChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", fmt.Errorf("query is required"))
	}
	if k <= 0 {
		k = uc.topK
	}

	ready, err := uc.Ready(ctx)
	if err != nil {
		return nil, err
	}
	if !ready {
		return []domain.RetrievedChunk{}, nil
	}

	queryVector, err := uc.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	chunks, err := uc.index.Search(ctx, queryVector, k)
	if err != nil {
		return nil, fmt.Errorf("search vector index: %w", err)
	}
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Score > chunks[j].Score
	})
	if len(chunks) > k {
		chunks = chunks[:k]
	}
	return chunks, nil
}

func (uc *RetrieveUseCase) Ready(ctx context.Context) (bool, error) {
	count, err := uc.index.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("count vector index: %w", err)
	}
	return count > 0, nil
}
