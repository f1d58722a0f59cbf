// Package special resolves a bare-number or non-numeric query string into a specific
// search intent (special-episode, absolute-episode, or plain special search) when a
// tvsearch request arrives without an explicit season/episode pair.
package special

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"

	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/model"
)

// PvrSource is the subset of PvrClient the resolver needs.
type PvrSource interface {
	IsConfigured() bool
	GetWantedEpisodesByEpisodeNumber(ctx context.Context, seriesID, episodeNum int) []model.EpisodeInfo
	GetEpisodeByAbsoluteNumber(ctx context.Context, seriesID, absoluteEp int) (model.EpisodeInfo, bool)
}

// QueryDispatcher is the subset of QueryPlanner the resolver needs to actually issue
// the chosen search once intent is decided.
type QueryDispatcher interface {
	SearchSpecial(ctx context.Context, titles []string, absolute *int) ([]model.SearchResult, error)
	SearchAbsolute(ctx context.Context, titles []string, absoluteEpisodes []int) ([]model.SearchResult, error)
}

// Resolver is the SpecialResolver.
type Resolver struct {
	pvr   PvrSource
	query QueryDispatcher
	log   *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets a contextual logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Resolver) {
		if log != nil {
			r.log = log.With("component", "special")
		}
	}
}

// New constructs a Resolver.
func New(pvr PvrSource, query QueryDispatcher, opts ...Option) *Resolver {
	r := &Resolver{pvr: pvr, query: query}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsConfigured reports whether this resolver's PvrClient is configured. Callers that
// need the PVR-aware fork vs. empty-RSS fork decision (e.g. the Torznab HTTP surface)
// check this before calling Resolve.
func (r *Resolver) IsConfigured() bool {
	return r.pvr.IsConfigured()
}

// Resolve decides among special-episode, absolute-episode, and plain-special intent
// for a tvsearch request that arrived with a query string but no season/episode, then
// dispatches the chosen search.
func (r *Resolver) Resolve(ctx context.Context, titles []string, seriesID int, q string) ([]model.SearchResult, error) {
	qNum, isNumeric := parsePositiveInt(q)
	if !isNumeric {
		return r.query.SearchSpecial(ctx, titles, nil)
	}

	if !r.pvr.IsConfigured() {
		return r.query.SearchAbsolute(ctx, FilterSeasonSpecificTitles(titles), []int{qNum})
	}

	wanted := r.pvr.GetWantedEpisodesByEpisodeNumber(ctx, seriesID, qNum)
	if len(wanted) > 0 {
		if anySpecial(wanted) {
			abs := firstAbsolute(wanted, qNum)
			return r.query.SearchSpecial(ctx, titles, &abs)
		}
		return r.query.SearchAbsolute(ctx, FilterSeasonSpecificTitles(titles), absoluteNumbers(wanted))
	}

	if ep, ok := r.pvr.GetEpisodeByAbsoluteNumber(ctx, seriesID, qNum); ok {
		if ep.IsSpecial() {
			return r.query.SearchSpecial(ctx, titles, &qNum)
		}
		return r.query.SearchAbsolute(ctx, FilterSeasonSpecificTitles(titles), []int{qNum})
	}

	return r.query.SearchAbsolute(ctx, FilterSeasonSpecificTitles(titles), []int{qNum})
}

func parsePositiveInt(q string) (int, bool) {
	if q == "" {
		return 0, false
	}
	for _, r := range q {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(q)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func anySpecial(episodes []model.EpisodeInfo) bool {
	for _, e := range episodes {
		if e.IsSpecial() {
			return true
		}
	}
	return false
}

func firstAbsolute(episodes []model.EpisodeInfo, fallback int) int {
	for _, e := range episodes {
		if e.AbsoluteEpisodeNumber != nil {
			return *e.AbsoluteEpisodeNumber
		}
	}
	return fallback
}

func absoluteNumbers(episodes []model.EpisodeInfo) []int {
	seen := make(map[int]bool)
	var out []int
	for _, e := range episodes {
		if e.AbsoluteEpisodeNumber == nil {
			continue
		}
		if n := *e.AbsoluteEpisodeNumber; !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

var (
	seasonZeroSuffixRe = regexp.MustCompile(`\s+00$`)
	seasonIndicatorRe  = regexp.MustCompile(`(?i)\bS\d+\b`)
	ambiguousSuffixRe  = regexp.MustCompile(`\s+0\d$`)
)

// SniffSeasonZero implements the generic-search-path special case: a query ending in
// " 00" with no season indicator (e.g. "S2") is treated as a special search with the
// suffix stripped. Any other " 0<digit>" ending is left alone as too ambiguous.
func SniffSeasonZero(q string) (stripped string, isSpecial bool) {
	if !seasonZeroSuffixRe.MatchString(q) || seasonIndicatorRe.MatchString(q) {
		return q, false
	}
	return ambiguousSuffixRe.ReplaceAllString(q, ""), true
}

var seasonSpecificTitleRe = regexp.MustCompile(`(?i)\b(S\d+|Season\s*\d+|\d+(st|nd|rd|th)\s*Season)\b`)

// FilterSeasonSpecificTitles drops title variants that name a specific season, so an
// absolute-episode search isn't polluted by season-scoped release titles. If filtering
// would leave nothing, the first original title is kept instead.
func FilterSeasonSpecificTitles(titles []string) []string {
	var out []string
	for _, t := range titles {
		if !seasonSpecificTitleRe.MatchString(t) {
			out = append(out, t)
		}
	}
	if len(out) == 0 && len(titles) > 0 {
		return []string{titles[0]}
	}
	return out
}

// IsBareNumericQuery reports whether q is a positive-integer-only string, the trigger
// condition for this resolver's dispatch.
func IsBareNumericQuery(q string) bool {
	_, ok := parsePositiveInt(q)
	return ok
}
