// Package local is a directory-backed vector index. Chunks live in a SQLite
// file and are mirrored in memory for brute-force cosine search.
package local

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

const fileName = "index.db"

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	chunk_id    TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	text        TEXT NOT NULL,
	source      TEXT NOT NULL,
	kind        TEXT NOT NULL,
	item_type   TEXT NOT NULL DEFAULT '',
	item_id     TEXT NOT NULL DEFAULT '',
	board_id    TEXT NOT NULL DEFAULT '',
	title       TEXT NOT NULL DEFAULT '',
	page        INTEGER NOT NULL DEFAULT 0,
	embedding   BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);
`

type Index struct {
	dir  string
	path string

	mu     sync.RWMutex
	db     *sql.DB
	chunks []domain.Chunk
	dim    int
}

// Open loads an existing index from dir. A missing index is not an error:
// the file is created by the first Add.
func Open(dir string) (*Index, error) {
	idx := &Index{dir: dir, path: filepath.Join(dir, fileName)}
	if _, err := os.Stat(idx.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return idx, nil
		}
		return nil, fmt.Errorf("stat vector index: %w", err)
	}
	if err := idx.open(); err != nil {
		return nil, err
	}
	if err := idx.load(context.Background()); err != nil {
		idx.db.Close()
		return nil, err
	}
	return idx, nil
}

func (i *Index) Path() string {
	return i.path
}

func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.db == nil {
		return nil
	}
	err := i.db.Close()
	i.db = nil
	return err
}

func (i *Index) Add(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	dim := i.dim
	for _, c := range chunks {
		if dim == 0 {
			dim = len(c.Embedding)
		}
		if len(c.Embedding) == 0 || len(c.Embedding) != dim {
			return fmt.Errorf("chunk %s has embedding dimension %d, index uses %d", c.ID, len(c.Embedding), dim)
		}
	}

	if i.db == nil {
		if err := os.MkdirAll(i.dir, 0o755); err != nil {
			return fmt.Errorf("create vector index dir: %w", err)
		}
		if err := i.open(); err != nil {
			return err
		}
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin vector index tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (chunk_id, chunk_index, text, source, kind, item_type, item_id, board_id, title, page, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		m := c.Metadata
		if _, err := stmt.ExecContext(ctx,
			c.ID, c.Index, c.Text, m.Source, string(m.Kind), m.ItemType, m.ItemID, m.BoardID, m.Title, m.Page,
			float32SliceToBytes(c.Embedding),
		); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit vector index tx: %w", err)
	}

	i.chunks = append(i.chunks, chunks...)
	i.dim = dim
	return nil
}

// Search ranks every stored chunk by cosine similarity; equal scores keep insertion order.
func (i *Index) Search(_ context.Context, query []float32, limit int) ([]domain.RetrievedChunk, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if len(i.chunks) == 0 || limit <= 0 {
		return []domain.RetrievedChunk{}, nil
	}
	if len(query) != i.dim {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), i.dim)
	}

	out := make([]domain.RetrievedChunk, 0, len(i.chunks))
	for _, c := range i.chunks {
		out = append(out, domain.RetrievedChunk{Chunk: c, Score: cosine(query, c.Embedding)})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (i *Index) Count(context.Context) (int, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.chunks), nil
}

// ListSources groups the stored chunks by source locator.
func (i *Index) ListSources(context.Context) ([]domain.SourceSummary, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	type acc struct {
		summary domain.SourceSummary
		items   map[string]struct{}
	}
	bySource := make(map[string]*acc)
	order := make([]string, 0)
	for _, c := range i.chunks {
		source := c.Metadata.Source
		a, ok := bySource[source]
		if !ok {
			a = &acc{
				summary: domain.SourceSummary{Source: source, Kind: c.Metadata.Kind},
				items:   make(map[string]struct{}),
			}
			bySource[source] = a
			order = append(order, source)
		}
		a.summary.Chunks++
		a.items[fmt.Sprintf("%s|%d", c.Metadata.ItemID, c.Metadata.Page)] = struct{}{}
	}

	out := make([]domain.SourceSummary, 0, len(order))
	for _, source := range order {
		a := bySource[source]
		a.summary.Items = len(a.items)
		out = append(out, a.summary)
	}
	return out, nil
}

func (i *Index) open() error {
	db, err := sql.Open("sqlite", i.path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("open vector index: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return fmt.Errorf("create vector index schema: %w", err)
	}
	i.db = db
	return nil
}

func (i *Index) load(ctx context.Context) error {
	rows, err := i.db.QueryContext(ctx, `
		SELECT chunk_id, chunk_index, text, source, kind, item_type, item_id, board_id, title, page, embedding
		FROM chunks ORDER BY seq
	`)
	if err != nil {
		return fmt.Errorf("load vector index: %w", err)
	}
	defer rows.Close()

	chunks := make([]domain.Chunk, 0)
	for rows.Next() {
		var (
			c    domain.Chunk
			kind string
			blob []byte
		)
		m := &c.Metadata
		if err := rows.Scan(&c.ID, &c.Index, &c.Text, &m.Source, &kind, &m.ItemType, &m.ItemID, &m.BoardID, &m.Title, &m.Page, &blob); err != nil {
			return fmt.Errorf("scan chunk: %w", err)
		}
		m.Kind = domain.SourceKind(kind)
		c.Embedding = bytesToFloat32Slice(blob)
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate chunks: %w", err)
	}

	i.chunks = chunks
	if len(chunks) > 0 {
		i.dim = len(chunks[0].Embedding)
	}
	return nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for k := range a {
		x, y := float64(a[k]), float64(b[k])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for k, f := range floats {
		binary.LittleEndian.PutUint32(buf[k*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToFloat32Slice(data []byte) []float32 {
	floats := make([]float32, len(data)/4)
	for k := range floats {
		floats[k] = math.Float32frombits(binary.LittleEndian.Uint32(data[k*4:]))
	}
	return floats
}
