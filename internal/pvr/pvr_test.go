package pvr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func intPtr(i int) *int { return &i }

func newServer(t *testing.T) (*Client, *httptest.Server, *int) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v3/series":
			json.NewEncoder(w).Encode([]seriesRecord{{ID: 42, Title: "Frieren", SeriesType: "anime"}})
		case "/api/v3/episode":
			json.NewEncoder(w).Encode([]episodeRecord{
				{SeasonNumber: 1, EpisodeNumber: 1, AbsoluteEpisodeNumber: intPtr(1), Monitored: true, HasFile: true},
				{SeasonNumber: 2, EpisodeNumber: 1, AbsoluteEpisodeNumber: intPtr(29), Monitored: true, HasFile: false},
				{SeasonNumber: 0, EpisodeNumber: 1, AbsoluteEpisodeNumber: nil, Monitored: true, HasFile: false},
			})
		}
	}))
	c := New(srv.URL, "test-key")
	return c, srv, &calls
}

func TestGetWantedEpisodesByEpisodeNumberPrefersWanted(t *testing.T) {
	c, srv, _ := newServer(t)
	defer srv.Close()

	got := c.GetWantedEpisodesByEpisodeNumber(context.Background(), 100, 1)
	if len(got) != 1 {
		t.Fatalf("expected 1 wanted episode, got %d", len(got))
	}
	if got[0].SeasonNumber != 2 {
		t.Errorf("expected season 2, got %d", got[0].SeasonNumber)
	}
}

func TestGetWantedEpisodesByEpisodeNumberExcludesSeasonZero(t *testing.T) {
	c, srv, _ := newServer(t)
	defer srv.Close()

	got := c.GetWantedEpisodesByEpisodeNumber(context.Background(), 100, 1)
	for _, ep := range got {
		if ep.SeasonNumber == 0 {
			t.Error("season 0 episodes must be excluded from episode-number search")
		}
	}
}

func TestGetEpisodeByAbsoluteNumber(t *testing.T) {
	c, srv, _ := newServer(t)
	defer srv.Close()

	ep, ok := c.GetEpisodeByAbsoluteNumber(context.Background(), 100, 29)
	if !ok {
		t.Fatal("expected a hit")
	}
	if ep.SeasonNumber != 2 || ep.EpisodeNumber != 1 {
		t.Errorf("got %+v", ep)
	}
}

func TestNotConfiguredReturnsNothing(t *testing.T) {
	c := New("", "")
	if c.IsConfigured() {
		t.Fatal("expected unconfigured client")
	}
	if got := c.GetWantedEpisodesByEpisodeNumber(context.Background(), 1, 1); got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
	if _, ok := c.GetEpisodeByAbsoluteNumber(context.Background(), 1, 1); ok {
		t.Error("expected no hit")
	}
}

func TestCachesSeriesAndEpisodesAcrossCalls(t *testing.T) {
	c, srv, calls := newServer(t)
	defer srv.Close()

	c.GetWantedEpisodesByEpisodeNumber(context.Background(), 100, 1)
	firstCalls := *calls
	c.GetEpisodeByAbsoluteNumber(context.Background(), 100, 29)
	if *calls != firstCalls {
		t.Errorf("expected no additional upstream calls due to cache, went from %d to %d", firstCalls, *calls)
	}
}
