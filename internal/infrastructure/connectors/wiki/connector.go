// Package wiki pulls pages of a Confluence space over the REST API.
package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/resilience"
)

type Config struct {
	BaseURL  string
	Username string
	APIKey   string
	SpaceKey string
	// Limit is the number of pages requested per call; MaxPages caps the total.
	Limit    int
	MaxPages int
}

type Connector struct {
	cfg        Config
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(cfg Config, executor *resilience.Executor) *Connector {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.Limit <= 0 {
		cfg.Limit = 50
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 1000
	}
	return &Connector{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   executor,
	}
}

func (c *Connector) Kind() domain.SourceKind {
	return domain.SourceWiki
}

type contentPage struct {
	Results []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
		Body  struct {
			Storage struct {
				Value string `json:"value"`
			} `json:"storage"`
		} `json:"body"`
		Links struct {
			WebUI string `json:"webui"`
		} `json:"_links"`
	} `json:"results"`
	Size  int `json:"size"`
	Links struct {
		Base string `json:"base"`
		Next string `json:"next"`
	} `json:"_links"`
}

func (c *Connector) Fetch(ctx context.Context, req domain.SourceRequest) ([]domain.SourceItem, error) {
	space := strings.TrimSpace(req.SpaceKey)
	if space == "" {
		space = c.cfg.SpaceKey
	}
	if c.cfg.BaseURL == "" || space == "" {
		return nil, domain.WrapError(domain.ErrSourceUnavailable, "wiki fetch", fmt.Errorf("wiki url and space key must be configured"))
	}

	items := make([]domain.SourceItem, 0)
	for start := 0; len(items) < c.cfg.MaxPages; {
		page, err := resilience.Call(ctx, c.executor, "wiki.content", func(ctx context.Context) (*contentPage, error) {
			return c.fetchPage(ctx, space, start)
		}, resilience.ClassifyHTTPError)
		if err != nil {
			if resilience.IsUnauthorized(err) {
				err = domain.WrapError(domain.ErrUnauthorized, "wiki fetch", err)
			}
			return nil, domain.WrapError(domain.ErrSourceUnavailable, "wiki fetch", err)
		}

		base := page.Links.Base
		if base == "" {
			base = c.cfg.BaseURL
		}
		for _, r := range page.Results {
			if len(items) >= c.cfg.MaxPages {
				break
			}
			items = append(items, domain.SourceItem{
				Kind:        domain.SourceWiki,
				ItemType:    "page",
				ItemID:      r.ID,
				Title:       r.Title,
				Locator:     pageURL(base, r.Links.WebUI, r.ID),
				PageContent: joinTitle(r.Title, StorageToText(r.Body.Storage.Value)),
			})
		}
		if page.Links.Next == "" || len(page.Results) == 0 {
			break
		}
		start += len(page.Results)
	}
	return items, nil
}

func (c *Connector) fetchPage(ctx context.Context, space string, start int) (*contentPage, error) {
	query := url.Values{}
	query.Set("spaceKey", space)
	query.Set("type", "page")
	query.Set("expand", "body.storage")
	query.Set("limit", strconv.Itoa(c.cfg.Limit))
	query.Set("start", strconv.Itoa(start))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/rest/api/content?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create wiki request: %w", err)
	}
	req.SetBasicAuth(c.cfg.Username, c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wiki content request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.NewHTTPStatusError("wiki", "content", resp)
	}
	var page contentPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode wiki content: %w", err)
	}
	return &page, nil
}

func pageURL(base, webui, id string) string {
	if webui == "" {
		return fmt.Sprintf("%s/pages/viewpage.action?pageId=%s", base, id)
	}
	return strings.TrimRight(base, "/") + webui
}

func joinTitle(title, body string) string {
	title = strings.TrimSpace(title)
	if body == "" || title == "" {
		return body
	}
	return title + "\n\n" + body
}
