// Package graph records which items of which source ended up in the index.
package graph

import (
	"context"
	"fmt"
	"strconv"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

type queryFunc func(ctx context.Context, cypher string, params map[string]any) (*neo4j.EagerResult, error)

type Store struct {
	driver neo4j.DriverWithContext
	query  queryFunc
}

type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

func Open(ctx context.Context, cfg Config) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}

	database := cfg.Database
	if database == "" {
		database = "neo4j"
	}
	return &Store{
		driver: driver,
		query: func(ctx context.Context, cypher string, params map[string]any) (*neo4j.EagerResult, error) {
			return neo4j.ExecuteQuery(ctx, driver, cypher, params,
				neo4j.EagerResultTransformer,
				neo4j.ExecuteQueryWithDatabase(database))
		},
	}, nil
}

func (s *Store) Close(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Close(ctx)
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE CONSTRAINT source_locator IF NOT EXISTS FOR (s:Source) REQUIRE s.locator IS UNIQUE`,
		`CREATE INDEX item_key IF NOT EXISTS FOR (i:Item) ON (i.source, i.item_key)`,
	}
	for _, stmt := range statements {
		if _, err := s.query(ctx, stmt, nil); err != nil {
			return fmt.Errorf("ensure neo4j schema: %w", err)
		}
	}
	return nil
}

const recordItemsCypher = `
UNWIND $items AS it
MERGE (s:Source {locator: it.source})
  ON CREATE SET s.kind = it.kind
MERGE (i:Item {source: it.source, item_key: it.item_key})
  ON CREATE SET i.chunks = 0
SET i.item_id = it.item_id, i.item_type = it.item_type, i.title = it.title,
    i.chunks = i.chunks + it.chunks
MERGE (s)-[:CONTAINS]->(i)`

// RecordDocuments merges one Item node per document under its Source. Chunk
// counts accumulate because the index only ever appends.
func (s *Store) RecordDocuments(ctx context.Context, docs []domain.NormalizedDocument, chunkCounts []int) error {
	if len(docs) == 0 {
		return nil
	}
	if len(chunkCounts) != len(docs) {
		return domain.WrapError(domain.ErrInvalidInput, "record provenance",
			fmt.Errorf("%d documents but %d chunk counts", len(docs), len(chunkCounts)))
	}

	items := make([]map[string]any, 0, len(docs))
	for i, doc := range docs {
		m := doc.Metadata
		source := m.Source
		if source == "" {
			source = domain.UnknownSource
		}
		items = append(items, map[string]any{
			"source":    source,
			"kind":      string(m.Kind),
			"item_key":  itemKey(m),
			"item_id":   m.ItemID,
			"item_type": m.ItemType,
			"title":     m.Title,
			"chunks":    int64(chunkCounts[i]),
		})
	}
	if _, err := s.query(ctx, recordItemsCypher, map[string]any{"items": items}); err != nil {
		return fmt.Errorf("record provenance: %w", err)
	}
	return nil
}

const listSourcesCypher = `
MATCH (s:Source)-[:CONTAINS]->(i:Item)
RETURN s.locator AS source, s.kind AS kind, count(i) AS items, sum(i.chunks) AS chunks
ORDER BY source`

func (s *Store) ListSources(ctx context.Context) ([]domain.SourceSummary, error) {
	res, err := s.query(ctx, listSourcesCypher, nil)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	out := make([]domain.SourceSummary, 0, len(res.Records))
	for _, record := range res.Records {
		source, _, err := neo4j.GetRecordValue[string](record, "source")
		if err != nil {
			return nil, fmt.Errorf("read source: %w", err)
		}
		kind, _, err := neo4j.GetRecordValue[string](record, "kind")
		if err != nil {
			return nil, fmt.Errorf("read kind: %w", err)
		}
		items, _, err := neo4j.GetRecordValue[int64](record, "items")
		if err != nil {
			return nil, fmt.Errorf("read items: %w", err)
		}
		chunks, _, err := neo4j.GetRecordValue[int64](record, "chunks")
		if err != nil {
			return nil, fmt.Errorf("read chunks: %w", err)
		}
		out = append(out, domain.SourceSummary{
			Source: source,
			Kind:   domain.SourceKind(kind),
			Items:  int(items),
			Chunks: int(chunks),
		})
	}
	return out, nil
}

// itemKey matches the item identity used by the local index catalog.
func itemKey(m domain.DocumentMetadata) string {
	return m.ItemID + "|" + strconv.Itoa(m.Page)
}
