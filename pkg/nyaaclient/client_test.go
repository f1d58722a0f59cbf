package nyaaclient

import "testing"

func TestBuildCombinedQuerySingleTitle(t *testing.T) {
	q := BuildCombinedQuery([]string{"Frieren"}, []int{28}, nil)
	if q != "Frieren 28" {
		t.Errorf("got %q", q)
	}
}

func TestBuildCombinedQueryMultiTitleAndEpisodes(t *testing.T) {
	q := BuildCombinedQuery(
		[]string{"Initial D Fifth Stage", "Initial D"},
		[]int{27, 1},
		nil,
	)
	want := `("Initial D Fifth Stage"|"Initial D") (1|27)`
	if q != want {
		t.Errorf("got %q want %q", q, want)
	}
}

func TestBuildCombinedQueryKeywords(t *testing.T) {
	q := BuildCombinedQuery([]string{"Kaguya-sama"}, nil, []string{"OVA", "Special"})
	want := `"Kaguya-sama" (OVA|Special)`
	if q != want {
		t.Errorf("got %q want %q", q, want)
	}
}

func TestParseSize(t *testing.T) {
	cases := map[string]int64{
		"512 B":    512,
		"1.0 KiB":  1024,
		"1.5 KiB":  1536,
		"10.0 MiB": 10 * 1024 * 1024,
		"3.0 GiB":  3 * 1024 * 1024 * 1024,
	}
	for in, want := range cases {
		if got := ParseSize(in); got != want {
			t.Errorf("ParseSize(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestParseDateLayouts(t *testing.T) {
	cases := []string{
		"Mon, 02 Jan 2006 15:04:05 +0000",
		"Mon, 02 Jan 2006 15:04:05 GMT",
		"Mon, 02 Jan 2006 15:04:05 -0000",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	}
	for _, in := range cases {
		if got := ParseDate(in); got.Year() != 2006 {
			t.Errorf("ParseDate(%q) year = %d, want 2006", in, got.Year())
		}
	}
}

func TestParseDateFallback(t *testing.T) {
	got := ParseDate("not a date")
	if got.Year() < 2024 {
		t.Errorf("expected fallback to current time, got %v", got)
	}
}
