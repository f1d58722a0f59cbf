// Package episodemap talks to a TheXEM-shaped remote episode-mapping service and
// converts (series-id, season, episode) triples into absolute episode numbers. Full
// listings are cached on disk for a week; single lookups are not cached since they sit
// on the hot path and are typically followed by a full-listing fetch anyway.
package episodemap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/config"
	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/errtax"
)

const cacheTTL = 7 * 24 * time.Hour

// EpisodeRef is one destination's view of an episode within a mapping row.
type EpisodeRef struct {
	Season   int `json:"season"`
	Episode  int `json:"episode"`
	Absolute int `json:"absolute"`
}

// Mapping is one episode's cross-system mapping row, keyed by origin system name
// ("tvdb", "anidb", "scene", ...).
type Mapping map[string]EpisodeRef

type cacheRecord struct {
	Data     []Mapping `json:"data"`
	CachedAt time.Time `json:"cached_at"`
}

// Client queries the remote mapping service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
	cachePath  string

	mu    sync.Mutex
	cache map[string]cacheRecord
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets a contextual logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log.With("component", "episodemap")
		}
	}
}

// WithHTTPClient overrides the default client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// New constructs a Client and loads its disk cache, if present, from cachePath.
func New(baseURL, cachePath string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cachePath:  cachePath,
		cache:      make(map[string]cacheRecord),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.loadCache()
	return c
}

func (c *Client) loadCache() {
	var onDisk map[string]cacheRecord
	if err := config.ReadJSON(c.cachePath, &onDisk); err != nil {
		if c.log != nil && !os.IsNotExist(err) {
			c.log.Error("failed to load TheXEM cache", "error", &errtax.CacheCorruption{Path: c.cachePath, Op: "load", Err: err})
		}
		return
	}
	c.cache = onDisk
	if c.log != nil {
		c.log.Info("loaded TheXEM cache entries", "count", len(c.cache))
	}
}

func (c *Client) saveCache() {
	c.mu.Lock()
	snapshot := make(map[string]cacheRecord, len(c.cache))
	for k, v := range c.cache {
		snapshot[k] = v
	}
	c.mu.Unlock()

	if err := config.WriteJSONAtomic(c.cachePath, snapshot); err != nil && c.log != nil {
		c.log.Error("failed to save TheXEM cache", "error", &errtax.CacheCorruption{Path: c.cachePath, Op: "write", Err: err})
	}
}

func cacheKey(endpoint string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(endpoint)
	sb.WriteByte('?')
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(params.Get(k))
	}
	return sb.String()
}

// GetAllMappings fetches the complete per-episode mapping list for a show, serving
// from the 7-day disk/memory cache when fresh.
func (c *Client) GetAllMappings(ctx context.Context, showID int, origin string) []Mapping {
	params := url.Values{"id": {strconv.Itoa(showID)}, "origin": {origin}}
	key := cacheKey("map/all", params)

	c.mu.Lock()
	if rec, ok := c.cache[key]; ok && time.Since(rec.CachedAt) < cacheTTL {
		c.mu.Unlock()
		return rec.Data
	}
	c.mu.Unlock()

	data, err := c.fetchAllMappings(ctx, params)
	if err != nil {
		c.logFetchError("GetAllMappings", showID, origin, err)
		return nil
	}

	c.mu.Lock()
	c.cache[key] = cacheRecord{Data: data, CachedAt: time.Now()}
	c.mu.Unlock()
	c.saveCache()

	return data
}

type apiResponse struct {
	Result  string          `json:"result"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) fetchAllMappings(ctx context.Context, params url.Values) ([]Mapping, error) {
	raw, err := c.get(ctx, "/map/all", params)
	if err != nil {
		return nil, err
	}

	var resp apiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if resp.Result != "success" {
		return nil, fmt.Errorf("non-success result: %s", resp.Message)
	}

	var data []Mapping
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("decode data: %w", err)
	}
	return data, nil
}

// GetSingleMapping fetches one episode's mapping, by season and episode, without
// caching; destination narrows the response to a single system, or leaves it empty to
// request all systems.
func (c *Client) GetSingleMapping(ctx context.Context, showID int, origin string, season, episode int, destination string) (Mapping, error) {
	params := url.Values{"id": {strconv.Itoa(showID)}, "origin": {origin}}
	params.Set("season", strconv.Itoa(season))
	params.Set("episode", strconv.Itoa(episode))
	if destination != "" {
		params.Set("destination", destination)
	}

	raw, err := c.get(ctx, "/map/single", params)
	if err != nil {
		return nil, err
	}

	var resp apiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if resp.Result != "success" {
		return nil, fmt.Errorf("non-success result: %s", resp.Message)
	}

	var mapping Mapping
	if err := json.Unmarshal(resp.Data, &mapping); err != nil {
		return nil, fmt.Errorf("decode data: %w", err)
	}
	return mapping, nil
}

// TvdbToAnidbEpisode converts a TVDB season/episode into an AniDB absolute episode
// number, or nil if no mapping is available.
func (c *Client) TvdbToAnidbEpisode(ctx context.Context, seriesID, season, episode int) *int {
	mapping, err := c.GetSingleMapping(ctx, seriesID, "tvdb", season, episode, "anidb")
	if err != nil {
		c.logFetchError("TvdbToAnidbEpisode", seriesID, "tvdb", err)
		return nil
	}

	anidb, ok := mapping["anidb"]
	if !ok || anidb.Absolute == 0 {
		return nil
	}
	absolute := anidb.Absolute
	return &absolute
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	reqURL := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

var errNotFound = errors.New("episodemap: not found")

// logFetchError logs 404s at info level and every other failure at warn/error level,
// per the remote mapping service's failure policy: any error, caller must fall back.
func (c *Client) logFetchError(op string, showID int, origin string, err error) {
	if c.log == nil {
		return
	}
	if errors.Is(err, errNotFound) {
		c.log.Info("no mapping found", "op", op, "show_id", showID, "origin", origin)
		return
	}
	c.log.Warn("mapping lookup failed", "op", op, "show_id", showID, "origin", origin, "error", errtax.NewUpstreamFailure("thexem", err))
}
