// Package pvr queries the user's PVR (a Sonarr-shaped REST v3 API) to enumerate a
// series' episodes and identify which are "wanted": monitored and missing a file.
package pvr

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/errtax"
	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/model"
)

type seriesRecord struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	SeriesType string `json:"seriesType"`
}

type episodeRecord struct {
	SeasonNumber          int  `json:"seasonNumber"`
	EpisodeNumber         int  `json:"episodeNumber"`
	AbsoluteEpisodeNumber *int `json:"absoluteEpisodeNumber"`
	Monitored             bool `json:"monitored"`
	HasFile               bool `json:"hasFile"`
}

func (e episodeRecord) toInfo(seriesID int, seriesTitle string) model.EpisodeInfo {
	return model.EpisodeInfo{
		SeriesID:              seriesID,
		SeriesTitle:           seriesTitle,
		SeasonNumber:          e.SeasonNumber,
		EpisodeNumber:         e.EpisodeNumber,
		AbsoluteEpisodeNumber: e.AbsoluteEpisodeNumber,
		Monitored:             e.Monitored,
		HasFile:               e.HasFile,
	}
}

// Client is a per-series-cached Sonarr API client. A zero-value Client (empty baseURL
// or apiKey) is "not configured": every operation returns nothing.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *slog.Logger

	mu             sync.Mutex
	seriesCache    map[int]seriesRecord
	episodesCache  map[int][]episodeRecord
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets a contextual logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log.With("component", "pvr")
		}
	}
}

// WithHTTPClient overrides the default client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// New constructs a Client. If baseURL or apiKey is empty, the client is unconfigured
// and every operation is a no-op.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		apiKey:        apiKey,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		seriesCache:   make(map[int]seriesRecord),
		episodesCache: make(map[int][]episodeRecord),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsConfigured reports whether the PVR integration has both a base URL and API key.
func (c *Client) IsConfigured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

// ClearCache drops all cached series and episode data.
func (c *Client) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seriesCache = make(map[int]seriesRecord)
	c.episodesCache = make(map[int][]episodeRecord)
}

func (c *Client) seriesByTVDBID(ctx context.Context, tvdbID int) (seriesRecord, bool) {
	c.mu.Lock()
	if s, ok := c.seriesCache[tvdbID]; ok {
		c.mu.Unlock()
		return s, true
	}
	c.mu.Unlock()

	var list []seriesRecord
	if err := c.get(ctx, "/api/v3/series", map[string]string{"tvdbId": strconv.Itoa(tvdbID)}, &list); err != nil {
		c.logError("series lookup failed", tvdbID, err)
		return seriesRecord{}, false
	}
	if len(list) == 0 {
		return seriesRecord{}, false
	}

	s := list[0]
	c.mu.Lock()
	c.seriesCache[tvdbID] = s
	c.mu.Unlock()
	return s, true
}

func (c *Client) episodesBySeriesID(ctx context.Context, seriesID int) []episodeRecord {
	c.mu.Lock()
	if eps, ok := c.episodesCache[seriesID]; ok {
		c.mu.Unlock()
		return eps
	}
	c.mu.Unlock()

	var eps []episodeRecord
	if err := c.get(ctx, "/api/v3/episode", map[string]string{"seriesId": strconv.Itoa(seriesID)}, &eps); err != nil {
		c.logError("episode list failed", seriesID, err)
		return nil
	}

	c.mu.Lock()
	c.episodesCache[seriesID] = eps
	c.mu.Unlock()
	return eps
}

// GetWantedEpisodesByEpisodeNumber returns all episodes whose episode-within-season
// equals episodeNum (season > 0). If any of those are monitored and lack a file
// ("wanted"), the wanted subset is returned sorted by season descending; otherwise the
// whole candidate set is returned, sorted the same way.
func (c *Client) GetWantedEpisodesByEpisodeNumber(ctx context.Context, tvdbID, episodeNum int) []model.EpisodeInfo {
	if !c.IsConfigured() {
		return nil
	}

	series, ok := c.seriesByTVDBID(ctx, tvdbID)
	if !ok {
		return nil
	}
	episodes := c.episodesBySeriesID(ctx, series.ID)
	if len(episodes) == 0 {
		return nil
	}

	var candidates []episodeRecord
	for _, ep := range episodes {
		if ep.EpisodeNumber == episodeNum && ep.SeasonNumber > 0 {
			candidates = append(candidates, ep)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	var wanted []episodeRecord
	for _, ep := range candidates {
		if ep.Monitored && !ep.HasFile {
			wanted = append(wanted, ep)
		}
	}

	chosen := candidates
	if len(wanted) > 0 {
		chosen = wanted
	}
	sort.SliceStable(chosen, func(i, j int) bool { return chosen[i].SeasonNumber > chosen[j].SeasonNumber })

	out := make([]model.EpisodeInfo, len(chosen))
	for i, ep := range chosen {
		out[i] = ep.toInfo(series.ID, series.Title)
	}
	return out
}

// GetEpisodeByAbsoluteNumber is a secondary fallback for PVRs that track absolute
// episode numbering directly.
func (c *Client) GetEpisodeByAbsoluteNumber(ctx context.Context, tvdbID, absoluteEp int) (model.EpisodeInfo, bool) {
	if !c.IsConfigured() {
		return model.EpisodeInfo{}, false
	}

	series, ok := c.seriesByTVDBID(ctx, tvdbID)
	if !ok {
		return model.EpisodeInfo{}, false
	}
	episodes := c.episodesBySeriesID(ctx, series.ID)

	for _, ep := range episodes {
		if ep.AbsoluteEpisodeNumber != nil && *ep.AbsoluteEpisodeNumber == absoluteEp {
			return ep.toInfo(series.ID, series.Title), true
		}
	}
	return model.EpisodeInfo{}, false
}

func (c *Client) get(ctx context.Context, path string, query map[string]string, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		parts := make([]string, 0, len(query))
		for k, v := range query {
			parts = append(parts, k+"="+v)
		}
		u += "?" + strings.Join(parts, "&")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) logError(msg string, id int, err error) {
	if c.log != nil {
		c.log.Error(msg, "id", id, "error", errtax.NewUpstreamFailure("sonarr", err))
	}
}
