package qdrant

import (
	"fmt"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

func chunkPayload(chunk domain.Chunk) map[string]any {
	meta := chunk.Metadata
	return map[string]any{
		"chunk_id":    chunk.ID,
		"chunk_index": chunk.Index,
		"text":        chunk.Text,
		"source":      meta.Source,
		"kind":        string(meta.Kind),
		"item_type":   meta.ItemType,
		"item_id":     meta.ItemID,
		"board_id":    meta.BoardID,
		"title":       meta.Title,
		"page":        meta.Page,
	}
}

func chunkFromPayload(payload map[string]any) domain.Chunk {
	return domain.Chunk{
		ID:    getStringPayload(payload, "chunk_id"),
		Index: getIntPayload(payload, "chunk_index"),
		Text:  getStringPayload(payload, "text"),
		Metadata: domain.DocumentMetadata{
			Source:   getStringPayload(payload, "source"),
			Kind:     domain.SourceKind(getStringPayload(payload, "kind")),
			ItemType: getStringPayload(payload, "item_type"),
			ItemID:   getStringPayload(payload, "item_id"),
			BoardID:  getStringPayload(payload, "board_id"),
			Title:    getStringPayload(payload, "title"),
			Page:     getIntPayload(payload, "page"),
		},
	}
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
