// Package nyaaclient is a minimal RSS client for Nyaa-shaped anime torrent indexers:
// URL construction, combined OR-query syntax, and vendor-namespaced RSS parsing. It
// carries no rate limiting or caching of its own — see internal/indexer for that.
package nyaaclient

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/model"
)

// Category codes as published by Nyaa-shaped indexers.
const (
	CategoryAnimeEnglish = "1_2"
	CategoryAnimeRaw     = "1_4"
	CategoryAllAnime     = "1_0"
)

// Filter codes.
const (
	FilterNone        = "0"
	FilterNoRemakes   = "1"
	FilterTrustedOnly = "2"
)

// TorznabCategory is the category id every result is tagged with for Torznab
// compatibility, regardless of the indexer's own category taxonomy.
const TorznabCategory = 5070

// Client is a bare RSS client for one indexer base URL.
type Client struct {
	Name       string
	BaseURL    string
	HTTPClient *http.Client
}

// New constructs a Client. httpClient may be nil, in which case a 30s-timeout default
// is used.
func New(name, baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		Name:       name,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: httpClient,
	}
}

// BuildURL constructs the RSS search URL for a query/category/filter combination.
func (c *Client) BuildURL(query, category, filter string) string {
	return fmt.Sprintf("%s/?page=rss&q=%s&c=%s&f=%s", c.BaseURL, url.QueryEscape(query), category, filter)
}

// Fetch performs the RSS request and parses it into SearchResults. It does not sort,
// limit, or cache — callers (internal/indexer) layer that on top.
func (c *Client) Fetch(ctx context.Context, query, category, filter string) ([]model.SearchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BuildURL(query, category, filter), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "AnimeSonarrProxy/1.0")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	return c.parse(resp)
}

// Do performs the raw HTTP request without parsing the body, so a caller (the rate
// limiter in internal/indexer) can inspect the status code — in particular HTTP 429 —
// before deciding whether to parse or retry.
func (c *Client) Do(ctx context.Context, query, category, filter string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BuildURL(query, category, filter), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "AnimeSonarrProxy/1.0")
	return c.HTTPClient.Do(req)
}

// ParseRSS parses an already-fetched RSS response body into SearchResults.
func (c *Client) ParseRSS(resp *http.Response) ([]model.SearchResult, error) {
	return c.parse(resp)
}

func (c *Client) parse(resp *http.Response) ([]model.SearchResult, error) {
	var rss rssResponse
	if err := xml.NewDecoder(resp.Body).Decode(&rss); err != nil {
		return nil, fmt.Errorf("parse rss: %w", err)
	}

	results := make([]model.SearchResult, 0, len(rss.Channel.Items))
	for _, item := range rss.Channel.Items {
		if item.Title == "" || item.GUID == "" || item.Link == "" {
			continue
		}
		results = append(results, model.SearchResult{
			Title:    item.Title,
			GUID:     item.GUID,
			Link:     item.Link,
			InfoURL:  item.GUID,
			PubDate:  ParseDate(item.PubDate),
			Size:     ParseSize(item.nyaaText("size", "0")),
			Seeders:  atoiDefault(item.nyaaText("seeders", "0"), 0),
			Peers:    atoiDefault(item.nyaaText("leechers", "0"), 0),
			Indexer:  c.Name,
			Category: []int{TorznabCategory},
		})
	}
	return results, nil
}

type rssResponse struct {
	XMLName xml.Name    `xml:"rss"`
	Channel rssChannel  `xml:"channel"`
}

type rssChannel struct {
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title    string
	GUID     string
	Link     string
	PubDate  string
	rawAttrs []nyaaRawAttr
}

// nyaaRawAttr captures one nyaa:-namespaced (or plain) child element by local name.
// Go's encoding/xml cannot match an open-ended set of element names with a single
// struct tag, so UnmarshalXML below walks the element's children itself, mirroring
// nyaa.py's _get_nyaa_text helper (namespaced lookup with a non-namespaced fallback).
type nyaaRawAttr struct {
	Name  string
	Value string
}

// UnmarshalXML collects every child element into rawAttrs (by local name, ignoring
// namespace) so nyaaText can look values up directly.
func (it *rssItem) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	type plain rssItem
	var p plain
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			var text string
			if err := d.DecodeElement(&text, &t); err != nil {
				return err
			}
			switch t.Name.Local {
			case "title":
				p.Title = text
			case "guid":
				p.GUID = text
			case "link":
				p.Link = text
			case "pubDate":
				p.PubDate = text
			default:
				p.rawAttrs = append(p.rawAttrs, nyaaRawAttr{Name: t.Name.Local, Value: text})
			}
		case xml.EndElement:
			if t.Name == start.Name {
				*it = rssItem(p)
				return nil
			}
		}
	}
}

func (it rssItem) nyaaText(name, def string) string {
	for _, a := range it.rawAttrs {
		if a.Name == name {
			return a.Value
		}
	}
	return def
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// sizeRegex matches a numeric size followed by a binary unit, e.g. "1.4 GiB".
var sizeRegex = regexp.MustCompile(`(?i)([\d.]+)\s*(TiB|GiB|MiB|KiB|B)`)

var sizeMultipliers = map[string]int64{
	"b":   1,
	"kib": 1024,
	"mib": 1024 * 1024,
	"gib": 1024 * 1024 * 1024,
	"tib": 1024 * 1024 * 1024 * 1024,
}

// ParseSize converts a human-readable size string (e.g. "1.4 GiB") to bytes. Returns 0
// if the string does not match.
func ParseSize(s string) int64 {
	m := sizeRegex.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	val, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	mult, ok := sizeMultipliers[strings.ToLower(m[2])]
	if !ok {
		return 0
	}
	return int64(val * float64(mult))
}

// dateLayouts are tried in order; the first to parse wins. Mirrors nyaa.py's
// _parse_date format list exactly.
var dateLayouts = []string{
	"Mon, 02 Jan 2006 15:04:05 -0700",
	"Mon, 02 Jan 2006 15:04:05 MST",
	"Mon, 02 Jan 2006 15:04:05 -0000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseDate tries each known RSS pubDate layout in order; on total failure it returns
// the current UTC time (callers should log a warning in that case).
func ParseDate(s string) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}

// quoteTitle wraps a title in quotes if it contains a space, a hyphen, or any of |()
// and strips any embedded double quotes first.
func quoteTitle(t string) string {
	t = strings.ReplaceAll(t, `"`, "")
	if strings.ContainsAny(t, " -|()") {
		return `"` + t + `"`
	}
	return t
}

// BuildCombinedQuery composes a single OR-query expression from titles, episode
// numbers, and keywords per spec.md §4.6.
func BuildCombinedQuery(titles []string, episodes []int, keywords []string) string {
	var parts []string

	if len(titles) > 0 {
		quoted := make([]string, len(titles))
		for i, t := range titles {
			quoted[i] = quoteTitle(t)
		}
		if len(quoted) == 1 {
			parts = append(parts, quoted[0])
		} else {
			parts = append(parts, "("+strings.Join(quoted, "|")+")")
		}
	}

	if len(keywords) > 0 {
		seen := make(map[string]bool, len(keywords))
		var uniq []string
		for _, k := range keywords {
			if !seen[k] {
				seen[k] = true
				uniq = append(uniq, k)
			}
		}
		if len(uniq) == 1 {
			parts = append(parts, uniq[0])
		} else {
			parts = append(parts, "("+strings.Join(uniq, "|")+")")
		}
	}

	if len(episodes) > 0 {
		seen := make(map[int]bool, len(episodes))
		var uniq []int
		for _, e := range episodes {
			if !seen[e] {
				seen[e] = true
				uniq = append(uniq, e)
			}
		}
		sort.Ints(uniq)
		strs := make([]string, len(uniq))
		for i, e := range uniq {
			strs[i] = strconv.Itoa(e)
		}
		if len(strs) == 1 {
			parts = append(parts, strs[0])
		} else {
			parts = append(parts, "("+strings.Join(strs, "|")+")")
		}
	}

	return strings.Join(parts, " ")
}
