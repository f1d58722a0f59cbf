package mapping

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/catalog"
	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/model"
	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/onlinemeta"
)

type fakeCatalog struct {
	titles model.AnimeTitle
	ids    catalog.CrossIDs
	ok     bool
	calls  int32
}

func (f *fakeCatalog) LookupBySeriesId(id int) (model.AnimeTitle, catalog.CrossIDs, bool) {
	atomic.AddInt32(&f.calls, 1)
	return f.titles, f.ids, f.ok
}

type fakeMetadata struct {
	rec onlinemeta.Record
}

func (f *fakeMetadata) GetById(ctx context.Context, animeID int) onlinemeta.Record {
	return f.rec
}

func newResolver(t *testing.T, cat CatalogSource, meta MetadataSource) *Resolver {
	dir := t.TempDir()
	return New(cat, meta, filepath.Join(dir, "mappings.json"), filepath.Join(dir, "overrides.json"), time.Hour)
}

func anilistID(v int) *int { return &v }

func TestGetMappingFromCatalog(t *testing.T) {
	cat := &fakeCatalog{
		titles: model.AnimeTitle{Romaji: "Sousou no Frieren", Synonyms: []string{"Frieren"}},
		ids:    catalog.CrossIDs{Anilist: anilistID(154587)},
		ok:     true,
	}
	meta := &fakeMetadata{}
	r := newResolver(t, cat, meta)

	m, ok := r.GetMapping(context.Background(), 424536)
	if !ok {
		t.Fatal("expected a mapping")
	}
	if m.Titles.Romaji != "Sousou no Frieren" {
		t.Errorf("got %q", m.Titles.Romaji)
	}
	if m.UserOverride {
		t.Error("expected user_override=false for catalog-sourced mapping")
	}
}

func TestGetMappingEnrichesFromMetadata(t *testing.T) {
	cat := &fakeCatalog{
		titles: model.AnimeTitle{Romaji: "Sousou no Frieren"},
		ids:    catalog.CrossIDs{Anilist: anilistID(154587)},
		ok:     true,
	}
	meta := &fakeMetadata{rec: onlinemeta.Record{ID: 154587, Titles: model.AnimeTitle{English: "Frieren: Beyond Journey's End"}, Episodes: 28}}
	r := newResolver(t, cat, meta)

	m, ok := r.GetMapping(context.Background(), 424536)
	if !ok {
		t.Fatal("expected a mapping")
	}
	if m.Titles.English != "Frieren: Beyond Journey's End" {
		t.Errorf("expected enrichment to fill english title, got %q", m.Titles.English)
	}
	if m.TotalEpisodes != 28 {
		t.Errorf("expected episode count from enrichment, got %d", m.TotalEpisodes)
	}
}

func TestGetMappingNoCatalogHitReturnsNothing(t *testing.T) {
	cat := &fakeCatalog{ok: false}
	meta := &fakeMetadata{}
	r := newResolver(t, cat, meta)

	_, ok := r.GetMapping(context.Background(), 1)
	if ok {
		t.Error("expected no mapping")
	}
}

func TestOverrideTakesPriorityOverCache(t *testing.T) {
	cat := &fakeCatalog{titles: model.AnimeTitle{Romaji: "Catalog Title"}, ids: catalog.CrossIDs{}, ok: true}
	meta := &fakeMetadata{}
	r := newResolver(t, cat, meta)

	r.GetMapping(context.Background(), 1)
	r.SaveOverride(model.MappingOverride{TVDBID: 1, CustomTitles: []string{"Override Title"}})

	m, ok := r.GetMapping(context.Background(), 1)
	if !ok {
		t.Fatal("expected a mapping")
	}
	if !m.UserOverride {
		t.Error("expected user_override=true")
	}
	if len(m.Titles.Synonyms) != 1 || m.Titles.Synonyms[0] != "Override Title" {
		t.Errorf("expected override titles, got %+v", m.Titles)
	}
}

func TestCachedMappingServedWithoutCatalogCall(t *testing.T) {
	cat := &fakeCatalog{titles: model.AnimeTitle{Romaji: "Catalog Title"}, ok: true}
	meta := &fakeMetadata{}
	r := newResolver(t, cat, meta)

	r.GetMapping(context.Background(), 1)
	firstCalls := atomic.LoadInt32(&cat.calls)
	r.GetMapping(context.Background(), 1)
	if atomic.LoadInt32(&cat.calls) != firstCalls {
		t.Errorf("expected cached mapping to skip catalog call, calls went from %d to %d", firstCalls, cat.calls)
	}
}
