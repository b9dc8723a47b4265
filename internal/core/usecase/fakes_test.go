package usecase

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

// keywordEmbedder maps text onto a tiny bag-of-keywords space so that
// similarity is predictable in tests.
type keywordEmbedder struct {
	keywords []string
	calls    int
	err      error
}

func (f *keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		out = append(out, f.vector(text))
	}
	return out, nil
}

func (f *keywordEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (f *keywordEmbedder) vector(text string) []float32 {
	lower := strings.ToLower(text)
	v := make([]float32, len(f.keywords)+1)
	for i, kw := range f.keywords {
		v[i] = float32(strings.Count(lower, kw))
	}
	v[len(f.keywords)] = 0.01
	return v
}

type memoryIndex struct {
	chunks  []domain.Chunk
	addErr  error
	addCall int
}

func (m *memoryIndex) Add(_ context.Context, chunks []domain.Chunk) error {
	m.addCall++
	if m.addErr != nil {
		return m.addErr
	}
	m.chunks = append(m.chunks, chunks...)
	return nil
}

func (m *memoryIndex) Search(_ context.Context, query []float32, limit int) ([]domain.RetrievedChunk, error) {
	out := make([]domain.RetrievedChunk, 0, len(m.chunks))
	for _, chunk := range m.chunks {
		out = append(out, domain.RetrievedChunk{Chunk: chunk, Score: cosine(query, chunk.Embedding)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryIndex) Count(context.Context) (int, error) {
	return len(m.chunks), nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

type wholeTextChunker struct{}

func (wholeTextChunker) Split(text string) []string {
	if text == "" {
		return nil
	}
	return []string{text}
}

type completerFake struct {
	prompts []string
	answer  string
	err     error
}

func (f *completerFake) Complete(_ context.Context, prompt string, _ float64) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

type retrieverFake struct {
	chunks []domain.RetrievedChunk
	err    error
	k      int
}

func (f *retrieverFake) Retrieve(_ context.Context, _ string, k int) ([]domain.RetrievedChunk, error) {
	f.k = k
	if f.err != nil {
		return nil, f.err
	}
	return f.chunks, nil
}

func (f *retrieverFake) Ready(context.Context) (bool, error) {
	return len(f.chunks) > 0, nil
}

func docFrom(source, text string) domain.NormalizedDocument {
	return domain.NormalizedDocument{
		Text:     text,
		Metadata: domain.DocumentMetadata{Source: source, Kind: domain.SourcePDF},
	}
}
