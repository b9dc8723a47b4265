// Package pdf reads uploaded PDF files page by page.
package pdf

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

type Connector struct{}

func New() *Connector {
	return &Connector{}
}

func (c *Connector) Kind() domain.SourceKind {
	return domain.SourcePDF
}

// Fetch returns one item per page of every path. A file that cannot be read
// fails the whole request.
func (c *Connector) Fetch(ctx context.Context, req domain.SourceRequest) ([]domain.SourceItem, error) {
	items := make([]domain.SourceItem, 0)
	for _, path := range req.Paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pages, err := readPages(path)
		if err != nil {
			return nil, domain.WrapError(domain.ErrSourceUnavailable, "read pdf "+filepath.Base(path), err)
		}
		locator := DisplayName(path)
		for i, text := range pages {
			items = append(items, domain.SourceItem{
				Kind:        domain.SourcePDF,
				ItemType:    "page",
				Locator:     locator,
				Title:       locator,
				Page:        i + 1,
				PageContent: text,
			})
		}
	}
	return items, nil
}

// DisplayName strips the upload id prefix that storage adds to file names.
func DisplayName(path string) string {
	base := filepath.Base(path)
	if len(base) > 37 && base[36] == '_' {
		if _, err := uuid.Parse(base[:36]); err == nil {
			return base[37:]
		}
	}
	return base
}

func readPages(path string) (pages []string, err error) {
	// The parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	total := r.NumPage()
	pages = make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		pages = append(pages, strings.TrimSpace(text))
	}
	return pages, nil
}
