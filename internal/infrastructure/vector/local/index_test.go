package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

func chunk(id, source string, vec ...float32) domain.Chunk {
	return domain.Chunk{
		ID:        id,
		Text:      "text " + id,
		Embedding: vec,
		Metadata:  domain.DocumentMetadata{Source: source, Kind: domain.SourcePDF, Page: 1},
	}
}

func TestOpenMissingIndexIsEmptyAndLazy(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "vectorstore")
	idx, err := Open(dir)
	require.NoError(t, err)
	defer idx.Close()

	count, err := idx.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	hits, err := idx.Search(context.Background(), []float32{1, 0}, 4)
	require.NoError(t, err)
	assert.Empty(t, hits)

	_, err = os.Stat(idx.Path())
	assert.True(t, os.IsNotExist(err), "index file must not exist before the first add")
}

func TestAddPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	idx, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, idx.Add(ctx, []domain.Chunk{chunk("a", "one.pdf", 1, 0)}))
	require.NoError(t, idx.Add(ctx, []domain.Chunk{chunk("b", "two.pdf", 0, 1)}))
	require.NoError(t, idx.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	hits, err := reopened.Search(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].ID)
	assert.Equal(t, "two.pdf", hits[0].Metadata.Source)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
}

func TestSearchOrdersByCosineWithStableTies(t *testing.T) {
	idx, err := Open(t.TempDir())
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, []domain.Chunk{
		chunk("low", "a.pdf", 0, 1),
		chunk("tie1", "b.pdf", 1, 1),
		chunk("tie2", "c.pdf", 2, 2),
		chunk("best", "d.pdf", 1, 0),
	}))

	hits, err := idx.Search(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}
	assert.Equal(t, []string{"best", "tie1", "tie2", "low"}, ids)
}

func TestAddRejectsDimensionMismatch(t *testing.T) {
	idx, err := Open(t.TempDir())
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, []domain.Chunk{chunk("a", "a.pdf", 1, 0)}))
	assert.Error(t, idx.Add(ctx, []domain.Chunk{chunk("b", "b.pdf", 1, 0, 0)}))

	_, err = idx.Search(ctx, []float32{1, 0, 0}, 1)
	assert.Error(t, err)
}

func TestListSourcesGroupsChunks(t *testing.T) {
	idx, err := Open(t.TempDir())
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	second := chunk("a2", "handbuch.pdf", 1, 0)
	second.Metadata.Page = 2
	require.NoError(t, idx.Add(ctx, []domain.Chunk{
		chunk("a1", "handbuch.pdf", 1, 0),
		second,
		chunk("b1", "richtlinie.pdf", 0, 1),
	}))

	sources, err := idx.ListSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, domain.SourceSummary{Source: "handbuch.pdf", Kind: domain.SourcePDF, Items: 2, Chunks: 2}, sources[0])
	assert.Equal(t, 1, sources[1].Chunks)
}
