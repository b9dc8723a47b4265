// Package board pulls items from a Miro board over the REST v2 API.
package board

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/resilience"
)

const (
	DefaultBaseURL = "https://api.miro.com"
	pageSize       = 50
	boardURLPrefix = "https://miro.com/app/board/"
)

type Config struct {
	BaseURL string
	Token   string
	// MaxPages caps cursor pagination; zero means no cap.
	MaxPages int
}

type Connector struct {
	cfg        Config
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(cfg Config, executor *resilience.Executor) *Connector {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Connector{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		executor:   executor,
	}
}

func (c *Connector) Kind() domain.SourceKind {
	return domain.SourceBoard
}

type itemsPage struct {
	Data   []item `json:"data"`
	Cursor string `json:"cursor"`
}

type item struct {
	ID   string         `json:"id"`
	Type string         `json:"type"`
	Text string         `json:"text"`
	Data map[string]any `json:"data"`
}

func (c *Connector) Fetch(ctx context.Context, req domain.SourceRequest) ([]domain.SourceItem, error) {
	boardID := strings.TrimSpace(req.BoardID)
	if boardID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "board fetch", fmt.Errorf("board id is required"))
	}
	if c.cfg.Token == "" {
		return nil, domain.WrapError(domain.ErrSourceUnavailable, "board fetch", fmt.Errorf("board api token is not configured"))
	}

	out := make([]domain.SourceItem, 0)
	cursor := ""
	for page := 0; c.cfg.MaxPages <= 0 || page < c.cfg.MaxPages; page++ {
		batch, err := resilience.Call(ctx, c.executor, "board.items", func(ctx context.Context) (*itemsPage, error) {
			return c.fetchPage(ctx, boardID, cursor)
		}, resilience.ClassifyHTTPError)
		if err != nil {
			return nil, wrapFetchError(err)
		}
		for _, it := range batch.Data {
			out = append(out, toSourceItem(boardID, it))
		}
		if batch.Cursor == "" || len(batch.Data) == 0 {
			break
		}
		cursor = batch.Cursor
	}
	return out, nil
}

func (c *Connector) fetchPage(ctx context.Context, boardID, cursor string) (*itemsPage, error) {
	query := url.Values{}
	query.Set("limit", fmt.Sprintf("%d", pageSize))
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	endpoint := fmt.Sprintf("%s/v2/boards/%s/items?%s", c.cfg.BaseURL, url.PathEscape(boardID), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create board request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("board items request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.NewHTTPStatusError("board", "items", resp)
	}
	var page itemsPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode board items: %w", err)
	}
	return &page, nil
}

func toSourceItem(boardID string, it item) domain.SourceItem {
	return domain.SourceItem{
		Kind:     domain.SourceBoard,
		ItemType: it.Type,
		ItemID:   it.ID,
		BoardID:  boardID,
		Locator:  boardURLPrefix + boardID,
		Text:     it.Text,
		Data: domain.ItemData{
			Content:   stringField(it.Data, "content"),
			Text:      stringField(it.Data, "text"),
			Title:     stringField(it.Data, "title"),
			PlainText: stringField(it.Data, "plainText"),
		},
	}
}

// stringField ignores non-string values, which some item types use for the same keys.
func stringField(data map[string]any, key string) string {
	v, _ := data[key].(string)
	return v
}

func wrapFetchError(err error) error {
	if resilience.IsUnauthorized(err) {
		err = domain.WrapError(domain.ErrUnauthorized, "board fetch", err)
	}
	return domain.WrapError(domain.ErrSourceUnavailable, "board fetch", err)
}
