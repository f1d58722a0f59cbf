package episodemap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

func TestGetAllMappingsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":"success","data":[{"tvdb":{"season":1,"episode":1,"absolute":1},"anidb":{"season":1,"episode":1,"absolute":1}}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, filepath.Join(t.TempDir(), "thexem_cache.json"))
	mappings := c.GetAllMappings(context.Background(), 12345, "tvdb")
	if len(mappings) != 1 {
		t.Fatalf("expected 1 mapping, got %d", len(mappings))
	}
	if mappings[0]["anidb"].Absolute != 1 {
		t.Errorf("expected absolute 1, got %+v", mappings[0]["anidb"])
	}
}

func TestGetAllMappingsCachesSecondCall(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"result":"success","data":[{"tvdb":{"season":1,"episode":1,"absolute":1}}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, filepath.Join(t.TempDir(), "thexem_cache.json"))
	ctx := context.Background()
	c.GetAllMappings(ctx, 1, "tvdb")
	c.GetAllMappings(ctx, 1, "tvdb")
	if calls != 1 {
		t.Errorf("expected 1 upstream call due to cache, got %d", calls)
	}
}

func TestGetAllMappingsNotFoundReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, filepath.Join(t.TempDir(), "thexem_cache.json"))
	if got := c.GetAllMappings(context.Background(), 1, "tvdb"); got != nil {
		t.Errorf("expected nil on 404, got %+v", got)
	}
}

func TestTvdbToAnidbEpisode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":"success","data":{"anidb":{"season":1,"episode":1,"absolute":27}}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, filepath.Join(t.TempDir(), "thexem_cache.json"))
	got := c.TvdbToAnidbEpisode(context.Background(), 1, 5, 1)
	if got == nil || *got != 27 {
		t.Fatalf("expected absolute 27, got %v", got)
	}
}

func TestTvdbToAnidbEpisodeMissingReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":"success","data":{}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, filepath.Join(t.TempDir(), "thexem_cache.json"))
	if got := c.TvdbToAnidbEpisode(context.Background(), 1, 5, 1); got != nil {
		t.Errorf("expected nil, got %v", *got)
	}
}
