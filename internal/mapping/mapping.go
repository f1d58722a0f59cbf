// Package mapping composes the canonical AnimeMapping for a televised-series id out of
// a layered priority chain: user override, warm cache, offline catalog (enriched by
// online metadata), or nothing.
package mapping

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/catalog"
	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/config"
	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/errtax"
	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/model"
	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/onlinemeta"
)

// CatalogSource is the subset of OfflineCatalog the resolver needs.
type CatalogSource interface {
	LookupBySeriesId(id int) (model.AnimeTitle, catalog.CrossIDs, bool)
}

// MetadataSource is the subset of OnlineMetadataClient the resolver needs.
type MetadataSource interface {
	GetById(ctx context.Context, animeID int) onlinemeta.Record
}

// Resolver composes AnimeMappings from the catalog and metadata sources, layered with
// user overrides and a persisted, TTL-bounded cache.
type Resolver struct {
	catalogSrc  CatalogSource
	metadataSrc MetadataSource

	mappingsPath  string
	overridesPath string
	cacheTTL      time.Duration
	log           *slog.Logger

	mu        sync.RWMutex
	cache     map[int]model.AnimeMapping
	overrides map[int]model.MappingOverride

	group singleflight.Group
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets a contextual logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Resolver) {
		if log != nil {
			r.log = log.With("component", "mapping")
		}
	}
}

// New constructs a Resolver. mappingsPath/overridesPath are where the cache and
// overrides persist as JSON; cacheTTL bounds a non-override mapping's freshness.
func New(catalogSrc CatalogSource, metadataSrc MetadataSource, mappingsPath, overridesPath string, cacheTTL time.Duration, opts ...Option) *Resolver {
	r := &Resolver{
		catalogSrc:    catalogSrc,
		metadataSrc:   metadataSrc,
		mappingsPath:  mappingsPath,
		overridesPath: overridesPath,
		cacheTTL:      cacheTTL,
		cache:         make(map[int]model.AnimeMapping),
		overrides:     make(map[int]model.MappingOverride),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.loadCache()
	r.loadOverrides()
	return r
}

func (r *Resolver) loadCache() {
	var onDisk map[string]model.AnimeMapping
	if err := config.ReadJSON(r.mappingsPath, &onDisk); err != nil {
		r.logLoadError("mappings", &errtax.CacheCorruption{Path: r.mappingsPath, Op: "load", Err: err})
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range onDisk {
		r.cache[m.TVDBID] = m
	}
}

func (r *Resolver) loadOverrides() {
	var onDisk map[string]model.MappingOverride
	if err := config.ReadJSON(r.overridesPath, &onDisk); err != nil {
		r.logLoadError("overrides", &errtax.CacheCorruption{Path: r.overridesPath, Op: "load", Err: err})
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range onDisk {
		r.overrides[o.TVDBID] = o
	}
}

func (r *Resolver) logLoadError(what string, err error) {
	if r.log != nil {
		r.log.Debug("no existing "+what+" file to load, starting empty", "error", err)
	}
}

func (r *Resolver) persistCache() {
	r.mu.RLock()
	snapshot := make(map[string]model.AnimeMapping, len(r.cache))
	for id, m := range r.cache {
		snapshot[fmt.Sprint(id)] = m
	}
	r.mu.RUnlock()

	if err := config.WriteJSONAtomic(r.mappingsPath, snapshot); err != nil && r.log != nil {
		r.log.Error("failed to persist mappings cache", "error", &errtax.CacheCorruption{Path: r.mappingsPath, Op: "write", Err: err})
	}
}

func (r *Resolver) persistOverrides() {
	r.mu.RLock()
	snapshot := make(map[string]model.MappingOverride, len(r.overrides))
	for id, o := range r.overrides {
		snapshot[fmt.Sprint(id)] = o
	}
	r.mu.RUnlock()

	if err := config.WriteJSONAtomic(r.overridesPath, snapshot); err != nil && r.log != nil {
		r.log.Error("failed to persist overrides", "error", &errtax.CacheCorruption{Path: r.overridesPath, Op: "write", Err: err})
	}
}

// SaveOverride stores an administrator-supplied override and invalidates the cached
// AnimeMapping for that id, so the next GetMapping call rebuilds from the override.
func (r *Resolver) SaveOverride(override model.MappingOverride) {
	r.mu.Lock()
	r.overrides[override.TVDBID] = override
	delete(r.cache, override.TVDBID)
	r.mu.Unlock()

	r.persistOverrides()
	r.persistCache()
}

// GetMapping resolves the canonical AnimeMapping for a televised-series id, following
// the priority chain: override, warm cache, offline catalog + enrichment, nothing.
// Concurrent calls for the same id are single-flighted so at most one upstream
// composition happens at a time.
func (r *Resolver) GetMapping(ctx context.Context, tvdbID int) (model.AnimeMapping, bool) {
	r.mu.RLock()
	override, hasOverride := r.overrides[tvdbID]
	r.mu.RUnlock()
	if hasOverride {
		return r.fromOverride(ctx, override), true
	}

	r.mu.RLock()
	cached, hasCached := r.cache[tvdbID]
	r.mu.RUnlock()
	if hasCached && time.Since(cached.LastUpdated) < r.cacheTTL {
		return cached, true
	}

	key := fmt.Sprint(tvdbID)
	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		return r.composeFromCatalog(ctx, tvdbID)
	})
	if err != nil {
		if r.log != nil {
			r.log.Warn("no mapping found", "tvdb_id", tvdbID)
		}
		return model.AnimeMapping{}, false
	}
	return v.(model.AnimeMapping), true
}

// GetOverride returns the administrator-supplied override for a series id, if any.
// Used by callers that need the raw override (e.g. its per-episode overrides) rather
// than the composed AnimeMapping GetMapping already applies it to.
func (r *Resolver) GetOverride(tvdbID int) (model.MappingOverride, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.overrides[tvdbID]
	return o, ok
}

var errNoCatalogHit = fmt.Errorf("mapping: no catalog entry")

func (r *Resolver) composeFromCatalog(ctx context.Context, tvdbID int) (model.AnimeMapping, error) {
	titles, ids, ok := r.catalogSrc.LookupBySeriesId(tvdbID)
	if !ok {
		return model.AnimeMapping{}, errNoCatalogHit
	}

	totalEpisodes := 0
	if ids.Anilist != nil {
		rec := r.metadataSrc.GetById(ctx, *ids.Anilist)
		if rec.Found() {
			titles = mergeTitles(titles, rec.ExtractTitles())
			totalEpisodes = rec.EpisodeCount()
		}
	}

	mapping := model.AnimeMapping{
		TVDBID:        tvdbID,
		AnilistID:     ids.Anilist,
		MALID:         ids.MAL,
		Titles:        titles,
		TotalEpisodes: totalEpisodes,
		LastUpdated:   time.Now(),
		UserOverride:  false,
	}

	r.mu.Lock()
	r.cache[tvdbID] = mapping
	r.mu.Unlock()
	r.persistCache()

	return mapping, nil
}

func (r *Resolver) fromOverride(ctx context.Context, override model.MappingOverride) model.AnimeMapping {
	titles := model.AnimeTitle{Synonyms: override.CustomTitles}

	totalEpisodes := 0
	if override.AnilistID != nil {
		rec := r.metadataSrc.GetById(ctx, *override.AnilistID)
		if rec.Found() {
			titles = mergeTitles(titles, rec.ExtractTitles())
			totalEpisodes = rec.EpisodeCount()
		}
	}

	return model.AnimeMapping{
		TVDBID:        override.TVDBID,
		AnilistID:     override.AnilistID,
		MALID:         override.MALID,
		Titles:        titles,
		TotalEpisodes: totalEpisodes,
		LastUpdated:   time.Now(),
		UserOverride:  true,
	}
}

// mergeTitles applies the resolver's merge rule: base wins on fields it has set; the
// enrichment fills empty slots; synonym lists union, deduplicated.
func mergeTitles(base, enrichment model.AnimeTitle) model.AnimeTitle {
	merged := model.AnimeTitle{
		Romaji:  firstNonEmpty(base.Romaji, enrichment.Romaji),
		English: firstNonEmpty(base.English, enrichment.English),
		Native:  firstNonEmpty(base.Native, enrichment.Native),
	}

	seen := make(map[string]bool)
	for _, s := range append(append([]string{}, base.Synonyms...), enrichment.Synonyms...) {
		if s != "" && !seen[s] {
			seen[s] = true
			merged.Synonyms = append(merged.Synonyms, s)
		}
	}
	return merged
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// GetAllTitles returns every unique, non-empty title variant carried by a mapping.
func GetAllTitles(m model.AnimeMapping) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	add(m.Titles.Romaji)
	add(m.Titles.English)
	add(m.Titles.Native)
	for _, s := range m.Titles.Synonyms {
		add(s)
	}
	return out
}
