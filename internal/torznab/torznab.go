// Package torznab implements the single-endpoint Torznab/Newznab-compatible HTTP
// surface a PVR (Sonarr) polls: capabilities, generic search, and mapped TV search.
package torznab

import (
	"context"
	"encoding/xml"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/errtax"
	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/model"
	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/query"
)

const (
	defaultLimit = 100
	maxLimit     = 100

	categoryTV    = 5000
	categoryAnime = 5070
)

// IndexerSource is the subset of IndexerClient the HTTP surface needs directly, for
// generic search and the indexer-test fallback.
type IndexerSource interface {
	Search(ctx context.Context, q string, limit int) ([]model.SearchResult, error)
	SearchMulti(ctx context.Context, titles []string, episodes []int, keywords []string, limit int) ([]model.SearchResult, error)
}

// MappingSource is the subset of MappingResolver the HTTP surface needs.
type MappingSource interface {
	GetMapping(ctx context.Context, tvdbID int) (model.AnimeMapping, bool)
	GetOverride(tvdbID int) (model.MappingOverride, bool)
}

// QueryPlanner is the subset of query.Planner the HTTP surface needs.
type QueryPlanner interface {
	Search(ctx context.Context, mapping model.AnimeMapping, override *model.MappingOverride, season, episode, offset, limit int) ([]model.SearchResult, error)
	Finalize(titles []string, results []model.SearchResult, offset, limit int) []model.SearchResult
}

// SpecialResolver is the subset of special.Resolver the HTTP surface needs.
type SpecialResolver interface {
	IsConfigured() bool
	Resolve(ctx context.Context, titles []string, seriesID int, q string) ([]model.SearchResult, error)
}

// SeasonZeroSniffer matches special.SniffSeasonZero's signature, kept as a function
// type so this package doesn't need to import internal/special.
type SeasonZeroSniffer func(q string) (stripped string, isSpecial bool)

// Server is the Torznab HTTP surface.
type Server struct {
	apiKey string

	indexer    IndexerSource
	mappingSrc MappingSource
	planner    QueryPlanner
	special    SpecialResolver
	sniffer    SeasonZeroSniffer

	log *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a contextual logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log.With("component", "torznab")
		}
	}
}

// New constructs a Server.
func New(apiKey string, indexer IndexerSource, mappingSrc MappingSource, planner QueryPlanner, specialResolver SpecialResolver, sniffer SeasonZeroSniffer, opts ...Option) *Server {
	s := &Server{
		apiKey:     apiKey,
		indexer:    indexer,
		mappingSrc: mappingSrc,
		planner:    planner,
		special:    specialResolver,
		sniffer:    sniffer,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterRoutes registers the Torznab endpoint on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api", s.handleAPI)
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	t := r.URL.Query().Get("t")

	if t != "caps" && r.URL.Query().Get("apikey") != s.apiKey {
		s.logWarn("rejected request", "error", errtax.ErrAuthentication, "query_type", t)
		http.Error(w, errtax.ErrAuthentication.Error(), http.StatusForbidden)
		return
	}

	switch t {
	case "caps":
		s.caps(w)
	case "search":
		s.genericSearch(w, r)
	case "tvsearch":
		s.tvSearch(w, r)
	default:
		s.logWarn("rejected request", "error", errtax.ErrUnknownQueryType, "query_type", t)
		http.Error(w, errtax.ErrUnknownQueryType.Error(), http.StatusBadRequest)
	}
}

func parsePaging(r *http.Request) (offset, limit int) {
	limit = defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return offset, limit
}

func (s *Server) logWarn(msg string, args ...any) {
	if s.log != nil {
		s.log.Warn(msg, args...)
	}
}

func (s *Server) genericSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query().Get("q")
	offset, limit := parsePaging(r)

	stripped, isSpecial := q, false
	if s.sniffer != nil {
		stripped, isSpecial = s.sniffer(q)
	}
	titles := []string{stripped}

	var results []model.SearchResult
	if isSpecial {
		keywordResults, err := s.indexer.SearchMulti(ctx, titles, nil, query.SpecialKeywords, limit)
		if err != nil {
			s.logWarn("special keyword search failed", "error", err)
		}
		bareResults, err := s.indexer.SearchMulti(ctx, titles, nil, nil, limit)
		if err != nil {
			s.logWarn("bare-title search failed", "error", err)
		}
		results = append(keywordResults, bareResults...)
	} else {
		r2, err := s.indexer.Search(ctx, q, limit)
		if err != nil {
			s.logWarn("generic search failed", "query", q, "error", err)
		}
		results = r2
	}

	final := s.planner.Finalize(titles, results, offset, limit)
	s.renderRSS(w, final, nil, nil, nil)
}

func (s *Server) tvSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query().Get("q")
	tvdbidStr := r.URL.Query().Get("tvdbid")
	seasonStr := r.URL.Query().Get("season")
	epStr := r.URL.Query().Get("ep")
	offset, limit := parsePaging(r)

	if tvdbidStr == "" {
		probe := q
		if probe == "" {
			probe = "Frieren"
		}
		results, err := s.indexer.Search(ctx, probe, limit)
		if err != nil {
			s.logWarn("indexer-test search failed", "error", err)
		}
		s.renderRSS(w, results, nil, nil, nil)
		return
	}

	tvdbID, err := strconv.Atoi(tvdbidStr)
	if err != nil {
		s.renderEmpty(w)
		return
	}

	mapping, ok := s.mappingSrc.GetMapping(ctx, tvdbID)
	if !ok {
		s.logWarn("mapping miss", "tvdb_id", tvdbID, "error", errtax.ErrMappingMiss)
		s.renderEmpty(w)
		return
	}

	if seasonStr != "" && epStr != "" {
		season, errS := strconv.Atoi(seasonStr)
		episode, errE := strconv.Atoi(epStr)
		if errS != nil || errE != nil {
			s.renderEmpty(w)
			return
		}

		var override *model.MappingOverride
		if o, has := s.mappingSrc.GetOverride(tvdbID); has {
			override = &o
		}

		results, err := s.planner.Search(ctx, mapping, override, season, episode, offset, limit)
		if err != nil {
			s.logWarn("mapped tv search failed", "tvdb_id", tvdbID, "error", err)
			s.renderEmpty(w)
			return
		}
		s.renderRSS(w, results, &tvdbID, &season, &episode)
		return
	}

	if !s.special.IsConfigured() {
		s.renderEmpty(w)
		return
	}

	titles := query.ComposeSearchTitles(mapping)
	results, err := s.special.Resolve(ctx, titles, tvdbID, q)
	if err != nil {
		s.logWarn("special-resolved tv search failed", "tvdb_id", tvdbID, "error", err)
		s.renderEmpty(w)
		return
	}
	final := s.planner.Finalize(titles, results, offset, limit)
	s.renderRSS(w, final, &tvdbID, nil, nil)
}

func (s *Server) renderEmpty(w http.ResponseWriter) {
	s.renderRSS(w, nil, nil, nil, nil)
}
