// Package query composes search title variants and episode numbers into indexer
// queries, executes them, and filters/dedupes/ranks the combined results. It is the
// QueryPlanner of the system: the one component that turns a resolved AnimeMapping
// into a ranked, paginated result set.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/model"
	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/titlenorm"
)

// SpecialKeywords are the keywords used to compose a season-0/special-episode search,
// shared between this planner's step 3 and SpecialResolver's special-search dispatch.
var SpecialKeywords = []string{"OVA", "Special", "OAD", "Movie"}

const maxSynonyms = 3

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_indexersource.go -package=mocks . IndexerSource

// IndexerSource is the subset of IndexerClient the planner needs.
type IndexerSource interface {
	Search(ctx context.Context, query string, limit int) ([]model.SearchResult, error)
	SearchMulti(ctx context.Context, titles []string, episodes []int, keywords []string, limit int) ([]model.SearchResult, error)
}

// EpisodeMapSource is the subset of EpisodeMapService the planner needs.
type EpisodeMapSource interface {
	TvdbToAnidbEpisode(ctx context.Context, seriesID, season, episode int) *int
}

// Planner is the QueryPlanner: title selection, episode resolution, query dispatch,
// relevance filtering, deduplication, and ranking.
type Planner struct {
	indexer    IndexerSource
	episodeMap EpisodeMapSource
	log        *slog.Logger
	fetchLimit int
}

// Option configures a Planner.
type Option func(*Planner)

// WithLogger sets a contextual logger.
func WithLogger(log *slog.Logger) Option {
	return func(p *Planner) {
		if log != nil {
			p.log = log.With("component", "query")
		}
	}
}

// WithFetchLimit overrides the per-indexer-call result limit (default 100) used before
// filtering/dedup/pagination narrow the set down to the caller's requested window.
func WithFetchLimit(n int) Option {
	return func(p *Planner) {
		if n > 0 {
			p.fetchLimit = n
		}
	}
}

// New constructs a Planner.
func New(indexer IndexerSource, episodeMap EpisodeMapSource, opts ...Option) *Planner {
	p := &Planner{indexer: indexer, episodeMap: episodeMap, fetchLimit: 100}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ResolveAbsoluteEpisode converts season/episode to an absolute episode number.
// Priority: an explicit per-episode override (when the mapping came from one),
// EpisodeMapService, season-shape calculation, then a season-1-identity or
// 12-episodes-per-season estimate as a last resort.
func (p *Planner) ResolveAbsoluteEpisode(ctx context.Context, mapping model.AnimeMapping, override *model.MappingOverride, season, episode int) int {
	if mapping.UserOverride && override != nil {
		key := fmt.Sprintf("S%02dE%02d", season, episode)
		if absolute, ok := override.SeasonEpisodeOverrides[key]; ok {
			return absolute
		}
	}

	if p.episodeMap != nil {
		if absolute := p.episodeMap.TvdbToAnidbEpisode(ctx, mapping.TVDBID, season, episode); absolute != nil {
			return *absolute
		}
	}

	if len(mapping.SeasonInfo) > 0 {
		if absolute, ok := calculateFromSeasonInfo(mapping.SeasonInfo, season, episode); ok {
			return absolute
		}
	}

	if season == 1 {
		return episode
	}

	const estimatedEpisodesPerSeason = 12
	if p.log != nil {
		p.log.Warn("using estimated episodes-per-season fallback", "tvdb_id", mapping.TVDBID, "season", season, "episode", episode)
	}
	return (season-1)*estimatedEpisodesPerSeason + episode
}

func calculateFromSeasonInfo(seasons []model.SeasonShape, targetSeason, targetEpisode int) (int, bool) {
	sorted := append([]model.SeasonShape(nil), seasons...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Season < sorted[j].Season })

	absolute := 0
	for _, s := range sorted {
		switch {
		case s.Season < targetSeason:
			absolute += s.Episodes
		case s.Season == targetSeason:
			if targetEpisode <= s.Episodes {
				return absolute + targetEpisode, true
			}
			return 0, false
		default:
			return 0, false
		}
	}
	return 0, false
}

// ComposeSearchTitles orders a mapping's title variants: Romaji, English, up to 3
// synonyms, then native, deduplicated by string equality.
func ComposeSearchTitles(mapping model.AnimeMapping) []string {
	var titles []string
	seen := make(map[string]bool)
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			titles = append(titles, s)
		}
	}

	add(mapping.Titles.Romaji)
	add(mapping.Titles.English)
	for i, syn := range mapping.Titles.Synonyms {
		if i >= maxSynonyms {
			break
		}
		add(syn)
	}
	add(mapping.Titles.Native)

	return titles
}

// Search runs the full pipeline for a season/episode TV-search: resolve the absolute
// episode, dispatch a special or regular combined query, then filter/dedupe/rank.
func (p *Planner) Search(ctx context.Context, mapping model.AnimeMapping, override *model.MappingOverride, season, episode, offset, limit int) ([]model.SearchResult, error) {
	titles := ComposeSearchTitles(mapping)
	if len(titles) == 0 {
		return nil, fmt.Errorf("query: no search titles for tvdb id %d", mapping.TVDBID)
	}

	absolute := p.ResolveAbsoluteEpisode(ctx, mapping, override, season, episode)

	var results []model.SearchResult
	var err error
	if season == 0 {
		results, err = p.SearchSpecial(ctx, titles, &absolute)
	} else {
		results, err = p.SearchAbsolute(ctx, titles, []int{absolute})
	}
	if err != nil {
		return nil, err
	}

	return p.Finalize(titles, results, offset, limit), nil
}

// SearchSpecial issues a combined query with the special-episode keyword set (plus the
// absolute episode if known), and a second bare-title query to catch differently
// labeled specials, merging both result sets.
func (p *Planner) SearchSpecial(ctx context.Context, titles []string, absolute *int) ([]model.SearchResult, error) {
	var episodes []int
	if absolute != nil {
		episodes = []int{*absolute}
	}

	keywordResults, err := p.indexer.SearchMulti(ctx, titles, episodes, SpecialKeywords, p.fetchLimit)
	if err != nil {
		if p.log != nil {
			p.log.Warn("special keyword search failed", "error", err)
		}
		keywordResults = nil
	}

	bareResults, err := p.indexer.SearchMulti(ctx, titles, nil, nil, p.fetchLimit)
	if err != nil {
		if p.log != nil {
			p.log.Warn("special bare-title search failed", "error", err)
		}
		bareResults = nil
	}

	if keywordResults == nil && bareResults == nil {
		return nil, fmt.Errorf("query: special search failed on all variants")
	}
	return append(keywordResults, bareResults...), nil
}

// SearchAbsolute issues a single combined query using the given absolute episode
// numbers, so releases labeled with multiple absolute numbers (e.g. across cours) can
// all match.
func (p *Planner) SearchAbsolute(ctx context.Context, titles []string, absoluteEpisodes []int) ([]model.SearchResult, error) {
	return p.indexer.SearchMulti(ctx, titles, absoluteEpisodes, nil, p.fetchLimit)
}

// Finalize runs the shared filter/dedupe/rank/paginate pipeline over a raw result set,
// using titles to derive the relevance filter's significant keywords. Exposed so
// callers that build their own query variants (generic search, the special resolver's
// bare-numeric dispatch) can still apply the same pipeline.
func (p *Planner) Finalize(titles []string, results []model.SearchResult, offset, limit int) []model.SearchResult {
	keywords := significantKeywords(titles)
	relevant := filterRelevant(keywords, results)
	deduped := dedupe(relevant)

	sort.SliceStable(deduped, func(i, j int) bool {
		if deduped[i].Seeders != deduped[j].Seeders {
			return deduped[i].Seeders > deduped[j].Seeders
		}
		return deduped[i].PubDate.After(deduped[j].PubDate)
	})

	return paginate(deduped, offset, limit)
}

func paginate(results []model.SearchResult, offset, limit int) []model.SearchResult {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(results) {
		return nil
	}
	end := len(results)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return results[offset:end]
}

var wordSplitRegex = regexp.MustCompile(`[^a-z0-9]+`)

func wordsOf(s string) []string {
	s = strings.ToLower(s)
	fields := wordSplitRegex.Split(s, -1)
	out := fields[:0]
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// significantKeywords extracts the lowercase, punctuation-stripped, non-digit,
// non-stopword words of length >= 3 from a set of search titles.
func significantKeywords(titles []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, title := range titles {
		for _, w := range wordsOf(title) {
			if len(w) < 3 || isAllDigits(w) || stopWords[w] || seen[w] {
				continue
			}
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func filterRelevant(keywords []string, results []model.SearchResult) []model.SearchResult {
	if len(keywords) == 0 {
		return results
	}

	var out []model.SearchResult
	for _, r := range results {
		if resultIsRelevant(keywords, r.Title) {
			out = append(out, r)
		}
	}
	return out
}

func resultIsRelevant(keywords []string, title string) bool {
	resultWords := wordsOf(title)
	for _, k := range keywords {
		for _, r := range resultWords {
			if k == r || partialMatch(k, r) {
				return true
			}
		}
	}
	return false
}

// partialMatch implements the relevance filter's partial-match rule: both words must
// be at least 4 characters, the shorter must be at least 50% the length of the longer,
// and the shorter must be a substring of the longer.
func partialMatch(k, r string) bool {
	shorter, longer := k, r
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) < 4 {
		return false
	}
	if float64(len(shorter))/float64(len(longer)) < 0.5 {
		return false
	}
	return strings.Contains(longer, shorter)
}

// dedupe runs the two-pass deduplication: exact by GUID (keep higher seeders, ties by
// newer pub date), then fuzzy by normalized title (keep max seeders/pub_date).
func dedupe(results []model.SearchResult) []model.SearchResult {
	byGUID := make(map[string]model.SearchResult)
	var order []string
	for _, r := range results {
		existing, ok := byGUID[r.GUID]
		if !ok {
			order = append(order, r.GUID)
			byGUID[r.GUID] = r
			continue
		}
		if isBetter(r, existing) {
			byGUID[r.GUID] = r
		}
	}

	exact := make([]model.SearchResult, 0, len(order))
	for _, guid := range order {
		exact = append(exact, byGUID[guid])
	}

	groups := make(map[string][]model.SearchResult)
	var groupOrder []string
	for _, r := range exact {
		norm := titlenorm.NormalizeReleaseTitle(r.Title)
		if _, ok := groups[norm]; !ok {
			groupOrder = append(groupOrder, norm)
		}
		groups[norm] = append(groups[norm], r)
	}

	final := make([]model.SearchResult, 0, len(groupOrder))
	for _, norm := range groupOrder {
		group := groups[norm]
		best := group[0]
		for _, r := range group[1:] {
			if isBetter(r, best) {
				best = r
			}
		}
		final = append(final, best)
	}
	return final
}

func isBetter(candidate, existing model.SearchResult) bool {
	if candidate.Seeders != existing.Seeders {
		return candidate.Seeders > existing.Seeders
	}
	return candidate.PubDate.After(existing.PubDate)
}
