package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
	"github.com/kirillkom/knowledge-assistant/internal/core/ports"
)

type IngestSourceUseCase struct {
	connectors map[domain.SourceKind]ports.SourceConnector
	indexer    *IndexUseCase
	storage    ports.ObjectStorage
	sessions   ports.ChatHistoryStore
	provenance ports.ProvenanceRecorder
	logger     *slog.Logger
}

type IngestOptions struct {
	Storage    ports.ObjectStorage
	Sessions   ports.ChatHistoryStore
	Provenance ports.ProvenanceRecorder
	Logger     *slog.Logger
}

func NewIngestSourceUseCase(
	connectors []ports.SourceConnector,
	indexer *IndexUseCase,
	opts IngestOptions,
) *IngestSourceUseCase {
	byKind := make(map[domain.SourceKind]ports.SourceConnector, len(connectors))
	for _, c := range connectors {
		if c != nil {
			byKind[c.Kind()] = c
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestSourceUseCase{
		connectors: byKind,
		indexer:    indexer,
		storage:    opts.Storage,
		sessions:   opts.Sessions,
		provenance: opts.Provenance,
		logger:     logger,
	}
}

// IngestSource pulls one source through normalize and index. A connector
// failure loses that source's whole contribution for this run.
func (uc *IngestSourceUseCase) IngestSource(
	ctx context.Context,
	sess domain.SessionContext,
	req domain.SourceRequest,
) (*domain.IngestResult, error) {
	if err := ValidateSourceRequest(req); err != nil {
		return nil, err
	}
	connector, ok := uc.connectors[req.Kind]
	if !ok {
		return nil, domain.WrapError(domain.ErrSourceUnavailable, "ingest "+string(req.Kind), fmt.Errorf("no connector configured"))
	}

	items, err := connector.Fetch(ctx, req)
	if err != nil {
		if !domain.IsKind(err, domain.ErrSourceUnavailable) {
			err = domain.WrapError(domain.ErrSourceUnavailable, "fetch "+string(req.Kind), err)
		}
		return nil, err
	}

	docs, skipped := NormalizeAll(items)
	result := &domain.IngestResult{
		Kind:      req.Kind,
		Items:     len(items),
		Documents: len(docs),
		Skipped:   skipped,
	}

	stats, err := uc.indexer.IndexDocuments(ctx, docs)
	if err != nil {
		return result, err
	}
	result.Indexed = stats.Chunks > 0

	if uc.provenance != nil && len(docs) > 0 {
		if err := uc.provenance.RecordDocuments(ctx, docs, stats.ChunkCounts); err != nil {
			uc.logger.Warn("provenance_record_failed", "kind", req.Kind, "error", err)
		}
	}
	if uc.sessions != nil && sess.SessionID != "" && result.Indexed {
		if err := uc.sessions.ActivateSource(ctx, sess.SessionID, req.Kind); err != nil {
			uc.logger.Warn("session_sources_update_failed", "session_id", sess.SessionID, "error", err)
		}
	}

	uc.logger.Info("source_ingested",
		"kind", req.Kind,
		"items", result.Items,
		"documents", result.Documents,
		"skipped", result.Skipped,
		"chunks", stats.Chunks,
	)
	return result, nil
}

// IngestAll runs each request in turn; one failing source does not stop the others.
func (uc *IngestSourceUseCase) IngestAll(
	ctx context.Context,
	sess domain.SessionContext,
	reqs []domain.SourceRequest,
) []domain.IngestResult {
	out := make([]domain.IngestResult, 0, len(reqs))
	for _, req := range reqs {
		result, err := uc.IngestSource(ctx, sess, req)
		if result == nil {
			result = &domain.IngestResult{Kind: req.Kind}
		}
		if err != nil {
			result.Error = err.Error()
			uc.logger.Error("source_ingest_failed", "kind", req.Kind, "error", err)
		}
		out = append(out, *result)
	}
	return out
}

// UploadPDF stores an uploaded file and returns the path the PDF connector reads from.
func (uc *IngestSourceUseCase) UploadPDF(ctx context.Context, filename string, body io.Reader) (string, error) {
	if uc.storage == nil {
		return "", fmt.Errorf("upload storage is not configured")
	}
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return "", domain.WrapError(domain.ErrInvalidInput, "upload pdf", fmt.Errorf("file %q is not a pdf", filename))
	}
	key := fmt.Sprintf("%s_%s", uuid.NewString(), sanitizeFilename(filename))
	if err := uc.storage.Save(ctx, key, body); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	return uc.storage.Path(key), nil
}

func ValidateSourceRequest(req domain.SourceRequest) error {
	if !req.Kind.Valid() {
		return domain.WrapError(domain.ErrInvalidInput, "source request", fmt.Errorf("unknown source kind %q", req.Kind))
	}
	if req.Kind == domain.SourcePDF && len(req.Paths) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "source request", fmt.Errorf("pdf source needs at least one path"))
	}
	if req.Kind == domain.SourceBoard && strings.TrimSpace(req.BoardID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "source request", fmt.Errorf("board source needs a board id"))
	}
	return nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "document.pdf"
	}
	return base
}
