package domain

// UnknownSource labels chunks whose metadata carries no locator.
const UnknownSource = "Unbekannt"

type Chunk struct {
	ID        string           `json:"id"`
	Index     int              `json:"chunk_index"`
	Text      string           `json:"text"`
	Embedding []float32        `json:"-"`
	Metadata  DocumentMetadata `json:"metadata"`
}

type RetrievedChunk struct {
	Chunk
	Score float64 `json:"score"`
}

type AnswerResult struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`

	// KnowledgeBaseReady is false when nothing has been indexed yet; Answer
	// and Sources are empty in that case.
	KnowledgeBaseReady bool             `json:"knowledge_base_ready"`
	Chunks             []RetrievedChunk `json:"-"`
}

// Contexts returns the chunk texts in retrieval order.
func (r *AnswerResult) Contexts() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.Chunks))
	for _, chunk := range r.Chunks {
		out = append(out, chunk.Text)
	}
	return out
}
