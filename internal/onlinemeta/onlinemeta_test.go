package onlinemeta

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetByIdSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"Media":{"id":154587,"title":{"romaji":"Sousou no Frieren","english":"Frieren: Beyond Journey's End","native":"葬送のフリーレン"},"synonyms":["Frieren at the Funeral"],"episodes":28}}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 90)
	rec := c.GetById(context.Background(), 154587)
	if !rec.Found() {
		t.Fatal("expected a hit")
	}
	if rec.ExtractTitles().English != "Frieren: Beyond Journey's End" {
		t.Errorf("got %q", rec.ExtractTitles().English)
	}
	if rec.EpisodeCount() != 28 {
		t.Errorf("got episode count %d", rec.EpisodeCount())
	}
}

func TestGetByIdNotFoundReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"Media":null}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 90)
	rec := c.GetById(context.Background(), 99999999)
	if rec.Found() {
		t.Error("expected no hit")
	}
}

func TestGetByIdUpstreamErrorReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, 90)
	rec := c.GetById(context.Background(), 1)
	if rec.Found() {
		t.Error("expected no hit on upstream error")
	}
}

func TestTokenBucketSleepsOnExhaustion(t *testing.T) {
	b := newTokenBucket(1, 200*time.Millisecond)
	ctx := context.Background()

	if err := b.wait(ctx); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	start := time.Now()
	if err := b.wait(ctx); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("expected second call to sleep for the window reset, took %v", elapsed)
	}
}

func TestTokenBucketRespectsContextCancellation(t *testing.T) {
	b := newTokenBucket(1, time.Minute)
	ctx := context.Background()
	b.wait(ctx)

	cancelCtx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := b.wait(cancelCtx); err == nil {
		t.Error("expected context cancellation error")
	}
}
