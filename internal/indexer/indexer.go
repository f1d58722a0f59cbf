// Package indexer wraps a raw nyaaclient.Client with the concurrency discipline and
// short-lived response cache spec.md §4.6 requires: a concurrency-capped, minimum-
// spaced, retrying rate limiter, and a capacity-bounded TTL cache.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/errtax"
	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/model"
	"github.com/WarheadTaylor/AnimeSonarrProxy/pkg/nyaaclient"
)

const (
	maxConcurrentRequests = 2
	requestSpacing        = 500 * time.Millisecond
	maxRetries            = 3
	cacheTTL              = 60 * time.Second
	cacheCapacity         = 100
)

// Client queries a single indexer: rate-limited, response-cached.
type Client struct {
	raw          *nyaaclient.Client
	englishOnly  bool
	trustedOnly  bool
	log          *slog.Logger

	sem           chan struct{}
	lastRequestMu sync.Mutex
	lastRequest   time.Time

	cacheMu sync.Mutex
	cache   map[string]cacheEntry
}

type cacheEntry struct {
	results []model.SearchResult
	cached  time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets a contextual logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log.With("component", "indexer")
		}
	}
}

// WithEnglishOnly sets the category flag (1_2 vs 1_0).
func WithEnglishOnly(v bool) Option {
	return func(c *Client) { c.englishOnly = v }
}

// WithTrustedOnly sets the filter flag (f=2 vs f=0).
func WithTrustedOnly(v bool) Option {
	return func(c *Client) { c.trustedOnly = v }
}

// New wraps a raw nyaaclient.Client with rate limiting and caching.
func New(raw *nyaaclient.Client, opts ...Option) *Client {
	c := &Client{
		raw:   raw,
		sem:   make(chan struct{}, maxConcurrentRequests),
		cache: make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) category() string {
	if c.englishOnly {
		return nyaaclient.CategoryAnimeEnglish
	}
	return nyaaclient.CategoryAllAnime
}

func (c *Client) filter() string {
	if c.trustedOnly {
		return nyaaclient.FilterTrustedOnly
	}
	return nyaaclient.FilterNone
}

func cacheKey(query, category, filter string, limit int) string {
	return fmt.Sprintf("nyaa|%s|%s|%s|%d", query, category, filter, limit)
}

// Search issues a combined-query search and returns up to limit results, sorted by
// seeders descending, served from cache when fresh.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]model.SearchResult, error) {
	cat, filt := c.category(), c.filter()
	key := cacheKey(query, cat, filt, limit)

	if results, ok := c.getCached(key); ok {
		return results, nil
	}

	results, err := c.rateLimitedFetch(ctx, query, cat, filt)
	if err != nil {
		wrapped := errtax.NewUpstreamFailure("nyaa", err)
		if c.log != nil {
			c.log.Warn("indexer search failed", "query", query, "error", wrapped)
		}
		return nil, wrapped
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Seeders > results[j].Seeders
	})
	if len(results) > limit {
		results = results[:limit]
	}

	c.setCached(key, results)
	return results, nil
}

// SearchMulti builds a combined OR-query from titles/episodes/keywords and searches it.
func (c *Client) SearchMulti(ctx context.Context, titles []string, episodes []int, keywords []string, limit int) ([]model.SearchResult, error) {
	query := nyaaclient.BuildCombinedQuery(titles, episodes, keywords)
	return c.Search(ctx, query, limit)
}

func (c *Client) getCached(key string) ([]model.SearchResult, bool) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	entry, ok := c.cache[key]
	if !ok {
		return nil, false
	}
	if time.Since(entry.cached) > cacheTTL {
		return nil, false
	}
	return entry.results, true
}

func (c *Client) setCached(key string, results []model.SearchResult) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	if len(c.cache) >= cacheCapacity {
		c.evictOldest()
	}
	c.cache[key] = cacheEntry{results: results, cached: time.Now()}
}

func (c *Client) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for k, v := range c.cache {
		if oldestKey == "" || v.cached.Before(oldest) {
			oldestKey, oldest = k, v.cached
		}
	}
	if oldestKey != "" {
		delete(c.cache, oldestKey)
	}
}

// Clear empties the response cache. Exposed for tests, per spec.md §4.6.
func (c *Client) Clear() {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.cache = make(map[string]cacheEntry)
}

// rateLimitedFetch enforces the concurrency cap and minimum spacing, then retries on
// HTTP 429 with linear backoff (1s after the first attempt, 2s after the second), up to
// maxRetries attempts in all.
func (c *Client) rateLimitedFetch(ctx context.Context, query, category, filter string) ([]model.SearchResult, error) {
	c.sem <- struct{}{}
	defer func() { <-c.sem }()

	c.waitForSpacing(ctx)

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		resp, err := c.raw.Do(ctx, query, category, filter)
		if err != nil {
			return nil, fmt.Errorf("fetch: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			lastErr = fmt.Errorf("rate limited (attempt %d)", attempt)
			if attempt == maxRetries {
				break
			}
			backoff := time.Duration(attempt) * time.Second
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			continue
		}

		defer resp.Body.Close()
		return c.raw.ParseRSS(resp)
	}

	return nil, lastErr
}

func (c *Client) waitForSpacing(ctx context.Context) {
	c.lastRequestMu.Lock()
	defer c.lastRequestMu.Unlock()

	elapsed := time.Since(c.lastRequest)
	if elapsed < requestSpacing {
		select {
		case <-ctx.Done():
		case <-time.After(requestSpacing - elapsed):
		}
	}
	c.lastRequest = time.Now()
}
