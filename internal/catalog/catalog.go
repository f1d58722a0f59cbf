// Package catalog implements an offline anime catalog: a JSON snapshot of known
// anime entries, downloaded periodically, indexed for id lookup and fuzzy title
// search. It owns the catalog entry's on-disk shape; no other package touches it.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/config"
	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/errtax"
	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/model"
	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/titlenorm"
)

// entry is one record of the offline database's opaque JSON shape. Only this
// package interprets it.
type entry struct {
	Sources  []string `json:"sources"`
	Title    string   `json:"title"`
	Synonyms []string `json:"synonyms"`
}

type database struct {
	Data []entry `json:"data"`
}

// CrossIDs holds the cross-database ids extracted from a catalog entry's sources.
type CrossIDs struct {
	AniDB   *int
	Anilist *int
	MAL     *int
}

// Catalog is the offline anime catalog: load-or-download, indexed, fuzzy-searchable.
type Catalog struct {
	url            string
	path           string
	updateInterval time.Duration
	httpClient     *http.Client
	log            *slog.Logger

	mu          sync.RWMutex
	entries     []entry
	seriesIndex map[int]entry // keyed by thetvdb.com/series/ id
	movieIndex  map[int]entry // keyed by themoviedb.org/movie/ id
	lastUpdate  time.Time
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets a contextual logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Catalog) {
		if log != nil {
			c.log = log.With("component", "catalog")
		}
	}
}

// WithHTTPClient overrides the default download client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Catalog) { c.httpClient = client }
}

// New constructs a Catalog. path is where the JSON snapshot is persisted; url is where
// it is downloaded from when missing or stale.
func New(url, path string, updateInterval time.Duration, opts ...Option) *Catalog {
	c := &Catalog{
		url:            url,
		path:           path,
		updateInterval: updateInterval,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		seriesIndex:    make(map[int]entry),
		movieIndex:     make(map[int]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize loads the catalog from disk, or downloads it if absent or stale. On
// download failure it falls back to the previous on-disk copy if present; if neither
// is usable it proceeds with an empty catalog (all lookups return "not found").
func (c *Catalog) Initialize(ctx context.Context) error {
	info, err := os.Stat(c.path)
	if err == nil {
		if loadErr := c.loadFromFile(); loadErr != nil {
			c.logWarn("failed to load catalog from file", &errtax.CacheCorruption{Path: c.path, Op: "load", Err: loadErr})
		}
		if time.Since(info.ModTime()) <= c.updateInterval {
			return nil
		}
	}

	if err := c.download(ctx); err != nil {
		c.logWarn("failed to download catalog", errtax.NewUpstreamFailure("anime-offline-database", err))
		if len(c.entries) == 0 {
			if loadErr := c.loadFromFile(); loadErr != nil {
				c.logWarn("failed to fall back to previous catalog copy", &errtax.CacheCorruption{Path: c.path, Op: "load", Err: loadErr})
			}
		}
	}
	return nil
}

func (c *Catalog) logWarn(msg string, err error) {
	if c.log != nil {
		c.log.Warn(msg, "error", err)
	}
}

func (c *Catalog) loadFromFile() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return err
	}
	var db database
	if err := json.Unmarshal(data, &db); err != nil {
		return err
	}
	c.setData(db.Data)
	return nil
}

func (c *Catalog) download(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download: unexpected status %d", resp.StatusCode)
	}

	var db database
	if err := json.NewDecoder(resp.Body).Decode(&db); err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	if err := config.WriteJSONAtomic(c.path, db); err != nil {
		c.logWarn("failed to persist catalog", &errtax.CacheCorruption{Path: c.path, Op: "write", Err: err})
	}

	c.setData(db.Data)
	if c.log != nil {
		c.log.Info("updated offline catalog", "entries", len(db.Data))
	}
	return nil
}

func dirOf(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return "."
	}
	return path[:idx]
}

func (c *Catalog) setData(entries []entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = entries
	c.seriesIndex = make(map[int]entry, len(entries))
	c.movieIndex = make(map[int]entry, len(entries))
	c.lastUpdate = time.Now()

	for _, e := range entries {
		for _, src := range e.Sources {
			if id, ok := extractTVDBSeriesID(src); ok {
				c.seriesIndex[id] = e
			}
			if id, ok := extractTMDBMovieID(src); ok {
				c.movieIndex[id] = e
			}
		}
	}
}

var tvdbSeriesRe = regexp.MustCompile(`thetvdb\.com/series/(\d+)`)
var tmdbMovieRe = regexp.MustCompile(`themoviedb\.org/movie/(\d+)`)
var anidbRe = regexp.MustCompile(`anidb\.net/(?:anime/(\d+)|perl-bin/animedb\.pl\?.*\baid=(\d+))`)
var anilistRe = regexp.MustCompile(`anilist\.co/anime/(\d+)`)
var malRe = regexp.MustCompile(`myanimelist\.net/anime/(\d+)`)

func extractTVDBSeriesID(src string) (int, bool) {
	m := tvdbSeriesRe.FindStringSubmatch(src)
	if m == nil {
		return 0, false
	}
	id, err := strconv.Atoi(m[1])
	return id, err == nil
}

func extractTMDBMovieID(src string) (int, bool) {
	m := tmdbMovieRe.FindStringSubmatch(src)
	if m == nil {
		return 0, false
	}
	id, err := strconv.Atoi(m[1])
	return id, err == nil
}

// LookupBySeriesId returns the catalog entry for a televised-series id, if any.
func (c *Catalog) LookupBySeriesId(id int) (model.AnimeTitle, CrossIDs, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.seriesIndex[id]
	if !ok {
		return model.AnimeTitle{}, CrossIDs{}, false
	}
	return extractTitles(e), extractIds(e), true
}

// extractIds parses anidb, anilist, and mal ids from an entry's sources, by
// URL-pattern matching. AniDB recognizes both the /anime/NNN and
// perl-bin/...aid=NNN URL shapes.
func extractIds(e entry) CrossIDs {
	var ids CrossIDs
	for _, src := range e.Sources {
		if m := anidbRe.FindStringSubmatch(src); m != nil {
			raw := m[1]
			if raw == "" {
				raw = m[2]
			}
			if id, err := strconv.Atoi(raw); err == nil {
				ids.AniDB = &id
			}
		}
		if m := anilistRe.FindStringSubmatch(src); m != nil {
			if id, err := strconv.Atoi(m[1]); err == nil {
				ids.Anilist = &id
			}
		}
		if m := malRe.FindStringSubmatch(src); m != nil {
			if id, err := strconv.Atoi(m[1]); err == nil {
				ids.MAL = &id
			}
		}
	}
	return ids
}

// extractTitles builds an AnimeTitle from a catalog entry: romaji is the entry's
// title, synonyms carry through, English/native are left for downstream enrichment.
func extractTitles(e entry) model.AnimeTitle {
	return model.AnimeTitle{
		Romaji:   e.Title,
		Synonyms: append([]string(nil), e.Synonyms...),
	}
}

// scoredEntry pairs an entry with its best match score against a query.
type scoredEntry struct {
	entry entry
	score float64
}

// SearchByTitle ranks catalog entries against query: exact match scores 100,
// substring 80, prefix 70, word-overlap fraction times 50. Scores at or below 20 are
// dropped.
func (c *Catalog) SearchByTitle(query string, limit int) []model.AnimeTitle {
	queryLower := strings.ToLower(strings.TrimSpace(query))
	if len(queryLower) < 3 {
		return nil
	}
	queryWords := splitWords(queryLower)

	c.mu.RLock()
	entries := c.entries
	c.mu.RUnlock()

	var matches []scoredEntry
	for _, e := range entries {
		allTitles := append([]string{e.Title}, e.Synonyms...)
		best := 0.0
		for _, t := range allTitles {
			tLower := strings.ToLower(t)
			best = max(best, scoreTitle(queryLower, queryWords, tLower))
		}
		if best > 20 {
			matches = append(matches, scoredEntry{entry: e, score: best})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	out := make([]model.AnimeTitle, len(matches))
	for i, m := range matches {
		out[i] = extractTitles(m.entry)
	}
	return out
}

func scoreTitle(queryLower string, queryWords map[string]bool, t string) float64 {
	switch {
	case queryLower == t:
		return 100
	case strings.Contains(t, queryLower):
		return 80
	case strings.HasPrefix(t, queryLower):
		return 70
	default:
		return wordOverlapScore(queryWords, t)
	}
}

// wordOverlapScore counts exact word matches as a fraction of the query's word count,
// scaled to a 50-point ceiling.
func wordOverlapScore(queryWords map[string]bool, t string) float64 {
	if len(queryWords) == 0 {
		return 0
	}
	titleWords := splitWords(t)
	var overlap float64
	for qw := range queryWords {
		if titleWords[qw] {
			overlap++
		}
	}
	return overlap / float64(len(queryWords)) * 50
}

func splitWords(s string) map[string]bool {
	fields := strings.Fields(s)
	out := make(map[string]bool, len(fields))
	for _, f := range fields {
		out[f] = true
	}
	return out
}

// GetSearchTitlesForQuery tries to identify an anime from a (possibly long,
// concatenated) query and returns the best search titles to retry with: up to two
// Latin-script titles, or the first non-Latin title with a warning if none are Latin.
// When the direct query has no catalog hit, it retries with shrinking word-prefixes
// (6/5/4/3 words) before giving up, matching torznab.py's concatenated-query handling.
func (c *Catalog) GetSearchTitlesForQuery(query string) []string {
	if titles := c.titlesForDirectQuery(query); titles != nil {
		return titles
	}

	words := strings.Fields(query)
	for _, n := range []int{6, 5, 4, 3} {
		if len(words) <= n {
			continue
		}
		prefix := strings.Join(words[:n], " ")
		if titles := c.titlesForDirectQuery(prefix); titles != nil {
			return titles
		}
	}
	return nil
}

func (c *Catalog) titlesForDirectQuery(query string) []string {
	matches := c.SearchByTitle(query, 1)
	if len(matches) == 0 {
		return nil
	}
	winner := matches[0]

	all := allTitleStrings(winner)
	if len(all) == 0 {
		return nil
	}

	var latin, nonLatin []string
	for _, t := range all {
		if titlenorm.IsLatinScript(t) {
			latin = append(latin, t)
		} else {
			nonLatin = append(nonLatin, t)
		}
	}

	if len(latin) > 0 {
		if len(latin) > 2 {
			latin = latin[:2]
		}
		return latin
	}

	if len(nonLatin) > 0 {
		if c.log != nil {
			c.log.Warn("no Latin-script title found for query, falling back to non-Latin", "query", query)
		}
		return nonLatin[:1]
	}
	return nil
}

func allTitleStrings(t model.AnimeTitle) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	add(t.Romaji)
	for _, s := range t.Synonyms {
		add(s)
	}
	return out
}
