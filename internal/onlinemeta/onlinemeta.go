// Package onlinemeta fetches episode counts and title variants from an AniList-shaped
// GraphQL endpoint. It is an enrichment source only: every failure returns a zero
// value, never an error the caller must handle as gating.
package onlinemeta

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/machinebox/graphql"

	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/errtax"
	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/model"
)

const animeQuery = `
query ($id: Int) {
    Media(id: $id, type: ANIME) {
        id
        title {
            romaji
            english
            native
        }
        synonyms
        episodes
    }
}
`

type mediaResponse struct {
	Media struct {
		ID    int
		Title struct {
			Romaji  string
			English string
			Native  string
		}
		Synonyms []string
		Episodes int
	}
}

// Record is the opaque metadata record returned for one anime id.
type Record struct {
	ID       int
	Titles   model.AnimeTitle
	Episodes int
}

// ExtractTitles returns the title variants carried by this record.
func (r Record) ExtractTitles() model.AnimeTitle { return r.Titles }

// EpisodeCount returns the known episode count, or 0 if unknown.
func (r Record) EpisodeCount() int { return r.Episodes }

// Found reports whether the record represents a real lookup hit.
func (r Record) Found() bool { return r.ID != 0 }

// Client is a rate-limited GraphQL client for the metadata endpoint.
type Client struct {
	gql *graphql.Client
	log *slog.Logger

	limiter *tokenBucket
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets a contextual logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log.With("component", "onlinemeta")
		}
	}
}

// New constructs a Client against endpoint, allowing quota requests per 60-second
// window (default 90 if quota <= 0).
func New(endpoint string, quota int, opts ...Option) *Client {
	if quota <= 0 {
		quota = 90
	}
	c := &Client{
		gql:     graphql.NewClient(endpoint),
		limiter: newTokenBucket(quota, time.Minute),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetById fetches a metadata record by anime id. On any failure (network, decode,
// rate-limit-context-cancellation, or "not found") it returns a zero Record with
// found=false, logging the failure rather than propagating it, since this client is
// enrichment-only and must never gate a mapping lookup.
func (c *Client) GetById(ctx context.Context, animeID int) Record {
	if err := c.limiter.wait(ctx); err != nil {
		c.logWarn(animeID, err)
		return Record{}
	}

	req := graphql.NewRequest(animeQuery)
	req.Var("id", animeID)

	var resp mediaResponse
	if err := c.gql.Run(ctx, req, &resp); err != nil {
		c.logWarn(animeID, err)
		return Record{}
	}

	if resp.Media.ID == 0 {
		return Record{}
	}

	return Record{
		ID: resp.Media.ID,
		Titles: model.AnimeTitle{
			Romaji:   resp.Media.Title.Romaji,
			English:  resp.Media.Title.English,
			Native:   resp.Media.Title.Native,
			Synonyms: resp.Media.Synonyms,
		},
		Episodes: resp.Media.Episodes,
	}
}

func (c *Client) logWarn(animeID int, err error) {
	if c.log != nil {
		c.log.Warn("online metadata lookup failed", "anime_id", animeID, "error", errtax.NewUpstreamFailure("anilist", err))
	}
}

// tokenBucket is a simple quota-per-window limiter: quota tokens are available per
// window; on exhaustion, callers sleep until the window resets. A full token-bucket
// library is unwarranted for this single-endpoint, single-window use; this is the
// minimal justified stdlib implementation.
type tokenBucket struct {
	mu          sync.Mutex
	quota       int
	window      time.Duration
	remaining   int
	windowStart time.Time
}

func newTokenBucket(quota int, window time.Duration) *tokenBucket {
	return &tokenBucket{
		quota:       quota,
		window:      window,
		remaining:   quota,
		windowStart: time.Now(),
	}
}

func (b *tokenBucket) wait(ctx context.Context) error {
	b.mu.Lock()
	now := time.Now()
	if now.Sub(b.windowStart) >= b.window {
		b.windowStart = now
		b.remaining = b.quota
	}

	if b.remaining > 0 {
		b.remaining--
		b.mu.Unlock()
		return nil
	}

	sleepFor := b.window - now.Sub(b.windowStart)
	b.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(sleepFor):
	}

	b.mu.Lock()
	b.windowStart = time.Now()
	b.remaining = b.quota - 1
	b.mu.Unlock()
	return nil
}
