// Package roster fetches the champion roster from PokeAPI
package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/pokewar-server/internal/config"
	"github.com/pokewar-server/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type listResponse struct {
	Count   int `json:"count"`
	Results []struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"results"`
}

type cacheEntry struct {
	champions []domain.Champion
	expires   time.Time
}

// Client lists champions from PokeAPI and caches each page in memory
type Client struct {
	cfg        config.RosterConfig
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewClient creates a roster client
func NewClient(cfg config.RosterConfig, logger *slog.Logger) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
		now:    time.Now,
		cache:  make(map[string]cacheEntry),
	}
}

// List returns one page of the roster. A non-positive limit means the
// configured default; limits above the configured maximum are clamped.
func (c *Client) List(ctx context.Context, limit, offset int) ([]domain.Champion, error) {
	if limit <= 0 {
		limit = c.cfg.DefaultLimit
	}
	if c.cfg.MaxLimit > 0 && limit > c.cfg.MaxLimit {
		limit = c.cfg.MaxLimit
	}
	if offset < 0 {
		offset = 0
	}

	cacheKey := fmt.Sprintf("%d:%d", limit, offset)
	if champions, ok := c.cached(cacheKey); ok {
		return champions, nil
	}

	query := url.Values{}
	query.Set("limit", fmt.Sprint(limit))
	query.Set("offset", fmt.Sprint(offset))
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/pokemon?" + query.Encode()

	var resp listResponse
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("failed to list pokemon: %w", err)
	}

	champions := make([]domain.Champion, 0, len(resp.Results))
	for _, r := range resp.Results {
		id := IDFromURL(r.URL)
		champions = append(champions, domain.Champion{
			ID:          id,
			Name:        r.Name,
			DisplayName: DisplayName(r.Name),
			ImageURL:    c.ImageURL(id),
		})
	}

	c.store(cacheKey, champions)
	c.logger.Debug("roster page fetched", "limit", limit, "offset", offset, "count", len(champions))
	return champions, nil
}

// ImageURL builds the official artwork URL for a pokemon id
func (c *Client) ImageURL(id string) string {
	return strings.TrimRight(c.cfg.ImageBaseURL, "/") + "/" + id + ".png"
}

func (c *Client) get(ctx context.Context, endpoint string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) cached(key string) ([]domain.Champion, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.cache[key]
	if !ok || c.now().After(entry.expires) {
		delete(c.cache, key)
		return nil, false
	}
	return entry.champions, true
}

func (c *Client) store(key string, champions []domain.Champion) {
	if c.cfg.CacheTTL <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key] = cacheEntry{champions: champions, expires: c.now().Add(c.cfg.CacheTTL)}
}

// IDFromURL extracts the numeric id from a resource URL such as
// https://pokeapi.co/api/v2/pokemon/25/
func IDFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	id := path.Base(strings.TrimRight(u.Path, "/"))
	if id == "." || id == "/" {
		return ""
	}
	return id
}

// DisplayName capitalizes a roster name: "mr-mime" becomes "Mr Mime"
func DisplayName(name string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(name, "-", " "))
}
