package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/model"
	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/query/mocks"
)

type fakeIndexer struct {
	searchCalls      []string
	multiCalls       [][]string
	results          []model.SearchResult
	secondCallResult []model.SearchResult
}

func (f *fakeIndexer) Search(ctx context.Context, query string, limit int) ([]model.SearchResult, error) {
	f.searchCalls = append(f.searchCalls, query)
	return f.results, nil
}

func (f *fakeIndexer) SearchMulti(ctx context.Context, titles []string, episodes []int, keywords []string, limit int) ([]model.SearchResult, error) {
	f.multiCalls = append(f.multiCalls, titles)
	if len(f.multiCalls) == 2 && f.secondCallResult != nil {
		return f.secondCallResult, nil
	}
	return f.results, nil
}

type fakeEpisodeMap struct {
	absolute *int
}

func (f *fakeEpisodeMap) TvdbToAnidbEpisode(ctx context.Context, seriesID, season, episode int) *int {
	return f.absolute
}

func intPtr(i int) *int { return &i }

func TestComposeSearchTitlesOrderAndLimit(t *testing.T) {
	m := model.AnimeMapping{
		Titles: model.AnimeTitle{
			Romaji:   "Sousou no Frieren",
			English:  "Frieren: Beyond Journey's End",
			Native:   "葬送のフリーレン",
			Synonyms: []string{"Frieren", "Frieren at the Funeral", "Syn3", "Syn4"},
		},
	}
	got := ComposeSearchTitles(m)
	want := []string{"Sousou no Frieren", "Frieren: Beyond Journey's End", "Frieren", "Frieren at the Funeral", "Syn3", "葬送のフリーレン"}
	assert.Equal(t, want, got)
}

func TestResolveAbsoluteEpisodeFromOverride(t *testing.T) {
	p := New(&fakeIndexer{}, &fakeEpisodeMap{})
	m := model.AnimeMapping{TVDBID: 1, UserOverride: true}
	override := &model.MappingOverride{SeasonEpisodeOverrides: map[string]int{"S02E01": 99}}

	got := p.ResolveAbsoluteEpisode(context.Background(), m, override, 2, 1)
	assert.Equal(t, 99, got)
}

func TestResolveAbsoluteEpisodeFromEpisodeMap(t *testing.T) {
	p := New(&fakeIndexer{}, &fakeEpisodeMap{absolute: intPtr(42)})
	m := model.AnimeMapping{TVDBID: 1}

	got := p.ResolveAbsoluteEpisode(context.Background(), m, nil, 3, 2)
	assert.Equal(t, 42, got)
}

func TestResolveAbsoluteEpisodeFromSeasonShape(t *testing.T) {
	p := New(&fakeIndexer{}, &fakeEpisodeMap{})
	m := model.AnimeMapping{
		TVDBID: 1,
		SeasonInfo: []model.SeasonShape{
			{Season: 1, Episodes: 28},
			{Season: 2, Episodes: 20},
		},
	}

	got := p.ResolveAbsoluteEpisode(context.Background(), m, nil, 2, 5)
	assert.Equal(t, 33, got)
}

func TestResolveAbsoluteEpisodeSeasonOneIdentity(t *testing.T) {
	p := New(&fakeIndexer{}, &fakeEpisodeMap{})
	m := model.AnimeMapping{TVDBID: 1}

	got := p.ResolveAbsoluteEpisode(context.Background(), m, nil, 1, 7)
	assert.Equal(t, 7, got)
}

func TestResolveAbsoluteEpisodeEstimateFallback(t *testing.T) {
	p := New(&fakeIndexer{}, &fakeEpisodeMap{})
	m := model.AnimeMapping{TVDBID: 1}

	got := p.ResolveAbsoluteEpisode(context.Background(), m, nil, 3, 4)
	assert.Equal(t, 28, got)
}

func TestSearchAbsoluteDispatchesSingleCombinedQuery(t *testing.T) {
	idx := &fakeIndexer{results: []model.SearchResult{
		{Title: "Frieren Episode 5", GUID: "a", Seeders: 10, PubDate: time.Now()},
	}}
	p := New(idx, &fakeEpisodeMap{})
	m := model.AnimeMapping{TVDBID: 1, Titles: model.AnimeTitle{Romaji: "Frieren"}}

	got, err := p.Search(context.Background(), m, nil, 1, 5, 0, 10)
	require.NoError(t, err)
	assert.Len(t, idx.multiCalls, 1, "expected exactly one combined query")
	assert.Len(t, got, 1)
}

func TestSearchSpecialIssuesTwoQueries(t *testing.T) {
	idx := &fakeIndexer{results: []model.SearchResult{
		{Title: "Frieren OVA", GUID: "a", Seeders: 5, PubDate: time.Now()},
	}}
	p := New(idx, &fakeEpisodeMap{})
	m := model.AnimeMapping{TVDBID: 1, Titles: model.AnimeTitle{Romaji: "Frieren"}}

	_, err := p.Search(context.Background(), m, nil, 0, 1, 0, 10)
	require.NoError(t, err)
	assert.Len(t, idx.multiCalls, 2, "expected keyword + bare-title queries")
}

func TestFilterRelevantDropsUnrelatedResults(t *testing.T) {
	results := []model.SearchResult{
		{Title: "Frieren Episode 05", GUID: "a", Seeders: 1, PubDate: time.Now()},
		{Title: "Some Other Anime Episode 05", GUID: "b", Seeders: 99, PubDate: time.Now()},
	}
	out := filterRelevant([]string{"frieren"}, results)
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].GUID)
}

func TestPartialMatch(t *testing.T) {
	cases := []struct {
		k, r string
		want bool
	}{
		{"frieren", "frieren", true},
		{"friere", "frieren", true},
		{"fri", "frieren", false},
		{"abcd", "xyz", false},
		{"season", "seasoning", true},
	}
	for _, c := range cases {
		assert.Equalf(t, c.want, partialMatch(c.k, c.r), "partialMatch(%q,%q)", c.k, c.r)
	}
}

func TestDedupeExactByGUIDKeepsHigherSeeders(t *testing.T) {
	now := time.Now()
	results := []model.SearchResult{
		{Title: "Frieren 01", GUID: "dup", Seeders: 3, PubDate: now},
		{Title: "Frieren 01", GUID: "dup", Seeders: 9, PubDate: now},
	}
	out := dedupe(results)
	require.Len(t, out, 1)
	assert.Equal(t, 9, out[0].Seeders)
}

func TestDedupeFuzzyByNormalizedTitle(t *testing.T) {
	now := time.Now()
	results := []model.SearchResult{
		{Title: "[Group] Frieren - 01 [1080p]", GUID: "x", Seeders: 3, PubDate: now},
		{Title: "[Other] Frieren - 01 [720p]", GUID: "y", Seeders: 8, PubDate: now},
	}
	out := dedupe(results)
	require.Len(t, out, 1, "expected fuzzy dedup to collapse to 1 result")
	assert.Equal(t, "y", out[0].GUID, "expected higher-seeder release to win")
}

func TestFinalizeSortsBySeedersThenPubDate(t *testing.T) {
	now := time.Now()
	p := New(&fakeIndexer{}, &fakeEpisodeMap{})
	results := []model.SearchResult{
		{Title: "Frieren 01", GUID: "a", Seeders: 1, PubDate: now},
		{Title: "Frieren 01 Extra", GUID: "b", Seeders: 9, PubDate: now.Add(-time.Hour)},
		{Title: "Frieren 01 Other", GUID: "c", Seeders: 9, PubDate: now},
	}
	out := p.Finalize([]string{"frieren"}, results, 0, 10)
	require.Len(t, out, 3, "expected all 3 to survive (no fuzzy collapse across different enough titles)")
	assert.Equal(t, "c", out[0].GUID)
	assert.Equal(t, "b", out[1].GUID)
}

func TestPaginateOffsetAndLimit(t *testing.T) {
	results := []model.SearchResult{
		{GUID: "a"}, {GUID: "b"}, {GUID: "c"}, {GUID: "d"},
	}
	out := paginate(results, 1, 2)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].GUID)
	assert.Equal(t, "c", out[1].GUID)
}

func TestPaginateOffsetBeyondLengthReturnsNil(t *testing.T) {
	results := []model.SearchResult{{GUID: "a"}}
	out := paginate(results, 5, 2)
	assert.Nil(t, out)
}

func TestSearchAbsoluteCallsIndexerSourceExactlyOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	idx := mocks.NewMockIndexerSource(ctrl)
	idx.EXPECT().
		SearchMulti(gomock.Any(), []string{"Frieren"}, []int{28}, nil, gomock.Any()).
		Return([]model.SearchResult{{Title: "Frieren 28", GUID: "a", PubDate: time.Now()}}, nil)

	p := New(idx, &fakeEpisodeMap{})
	out, err := p.SearchAbsolute(context.Background(), []string{"Frieren"}, []int{28})
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, "a", out[0].GUID)
}
