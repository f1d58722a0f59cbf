package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeFixture(t *testing.T) string {
	t.Helper()
	db := database{Data: []entry{
		{
			Title:    "Sousou no Frieren",
			Synonyms: []string{"Frieren: Beyond Journey's End", "葬送のフリーレン"},
			Sources: []string{
				"https://anidb.net/anime/17617",
				"https://anilist.co/anime/154587",
				"https://myanimelist.net/anime/52991",
				"https://thetvdb.com/series/424536",
			},
		},
		{
			Title:    "Kaguya-sama: Love is War",
			Synonyms: []string{"Kaguya-sama wa Kokurasetai"},
			Sources: []string{
				"https://anidb.net/perl-bin/animedb.pl?show=anime&aid=14419",
				"https://thetvdb.com/series/355913",
			},
		},
	}}

	dir := t.TempDir()
	path := filepath.Join(dir, "anime-offline-database.json")
	raw, err := json.Marshal(db)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func loadedCatalog(t *testing.T) *Catalog {
	t.Helper()
	c := New("http://unused.invalid", writeFixture(t), 0)
	if err := c.loadFromFile(); err != nil {
		t.Fatalf("loadFromFile: %v", err)
	}
	return c
}

func TestLookupBySeriesId(t *testing.T) {
	c := loadedCatalog(t)

	titles, ids, ok := c.LookupBySeriesId(424536)
	if !ok {
		t.Fatal("expected a hit for tvdb id 424536")
	}
	if titles.Romaji != "Sousou no Frieren" {
		t.Errorf("got romaji %q", titles.Romaji)
	}
	if ids.AniDB == nil || *ids.AniDB != 17617 {
		t.Errorf("got anidb id %v", ids.AniDB)
	}
	if ids.Anilist == nil || *ids.Anilist != 154587 {
		t.Errorf("got anilist id %v", ids.Anilist)
	}
	if ids.MAL == nil || *ids.MAL != 52991 {
		t.Errorf("got mal id %v", ids.MAL)
	}
}

func TestLookupBySeriesIdMissing(t *testing.T) {
	c := loadedCatalog(t)
	if _, _, ok := c.LookupBySeriesId(999999); ok {
		t.Error("expected no hit for unknown id")
	}
}

func TestExtractIdsPerlBinPattern(t *testing.T) {
	c := loadedCatalog(t)
	_, ids, ok := c.LookupBySeriesId(355913)
	if !ok {
		t.Fatal("expected a hit")
	}
	if ids.AniDB == nil || *ids.AniDB != 14419 {
		t.Errorf("expected perl-bin aid pattern to parse, got %v", ids.AniDB)
	}
}

func TestSearchByTitleExactMatch(t *testing.T) {
	c := loadedCatalog(t)
	results := c.SearchByTitle("Sousou no Frieren", 5)
	if len(results) == 0 || results[0].Romaji != "Sousou no Frieren" {
		t.Fatalf("expected exact match first, got %+v", results)
	}
}

func TestSearchByTitleSubstring(t *testing.T) {
	c := loadedCatalog(t)
	results := c.SearchByTitle("Kaguya-sama", 5)
	if len(results) == 0 || results[0].Romaji != "Kaguya-sama: Love is War" {
		t.Fatalf("expected substring match, got %+v", results)
	}
}

func TestSearchByTitleShortQueryReturnsNothing(t *testing.T) {
	c := loadedCatalog(t)
	if results := c.SearchByTitle("ab", 5); results != nil {
		t.Errorf("expected nil for sub-3-char query, got %+v", results)
	}
}

func TestGetSearchTitlesForQueryReturnsLatinTitles(t *testing.T) {
	c := loadedCatalog(t)
	titles := c.GetSearchTitlesForQuery("Sousou no Frieren")
	if len(titles) == 0 {
		t.Fatal("expected at least one title")
	}
	for _, title := range titles {
		if !isASCIIish(title) {
			t.Errorf("expected Latin title, got %q", title)
		}
	}
}

func TestGetSearchTitlesForQueryPrefixShrink(t *testing.T) {
	c := loadedCatalog(t)
	// 3 of the 8 query words match, scoring 18.75 (dropped); the 6-word prefix scores 25.
	titles := c.GetSearchTitlesForQuery("Sousou no Frieren S01E01 1080p WEB-DL x264 AAC")
	if len(titles) == 0 {
		t.Error("expected prefix-shrinking retry to find a match")
	}
}

func isASCIIish(s string) bool {
	for _, r := range s {
		if r > 0x250 {
			return false
		}
	}
	return true
}
