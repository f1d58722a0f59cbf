package torznab

import (
	"encoding/xml"
	"net/http"
	"strconv"
	"time"

	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/model"
)

const torznabNamespace = "http://torznab.com/schemas/2015/feed"

type rssDocument struct {
	XMLName      xml.Name `xml:"rss"`
	Version      string   `xml:"version,attr"`
	XMLNSAtom    string   `xml:"xmlns:atom,attr"`
	XMLNSTorznab string   `xml:"xmlns:torznab,attr"`
	Channel      channel  `xml:"channel"`
}

type channel struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
	Link        string `xml:"link"`
	Items       []item `xml:"item"`
}

type item struct {
	Title     string       `xml:"title"`
	GUID      string       `xml:"guid"`
	Link      string       `xml:"link"`
	Comments  string       `xml:"comments,omitempty"`
	PubDate   string       `xml:"pubDate"`
	Enclosure enclosure    `xml:"enclosure"`
	Attrs     []torznabAttr `xml:"torznab:attr"`
}

type enclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

type torznabAttr struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

func (s *Server) renderRSS(w http.ResponseWriter, results []model.SearchResult, tvdbID, season, episode *int) {
	ch := channel{
		Title:       "AnimeSonarrProxy",
		Description: "Torznab proxy over an anime-aware indexer",
		Link:        "/api",
	}

	for _, result := range results {
		it := item{
			Title:    result.Title,
			GUID:     result.GUID,
			Link:     result.Link,
			Comments: result.InfoURL,
			PubDate:  result.PubDate.UTC().Format(time.RFC1123Z),
			Enclosure: enclosure{
				URL:    result.Link,
				Length: result.Size,
				Type:   "application/x-bittorrent",
			},
		}

		it.Attrs = append(it.Attrs,
			torznabAttr{Name: "size", Value: strconv.FormatInt(result.Size, 10)},
			torznabAttr{Name: "seeders", Value: strconv.Itoa(result.Seeders)},
			torznabAttr{Name: "peers", Value: strconv.Itoa(result.Peers)},
			torznabAttr{Name: "downloadvolumefactor", Value: "1"},
			torznabAttr{Name: "uploadvolumefactor", Value: "1"},
		)
		for _, cat := range result.Category {
			it.Attrs = append(it.Attrs, torznabAttr{Name: "category", Value: strconv.Itoa(cat)})
		}
		if tvdbID != nil {
			it.Attrs = append(it.Attrs, torznabAttr{Name: "tvdbid", Value: strconv.Itoa(*tvdbID)})
		}
		if season != nil {
			it.Attrs = append(it.Attrs, torznabAttr{Name: "season", Value: strconv.Itoa(*season)})
		}
		if episode != nil {
			it.Attrs = append(it.Attrs, torznabAttr{Name: "episode", Value: strconv.Itoa(*episode)})
		}

		ch.Items = append(ch.Items, it)
	}

	doc := rssDocument{
		Version:      "2.0",
		XMLNSAtom:    "http://www.w3.org/2005/Atom",
		XMLNSTorznab: torznabNamespace,
		Channel:      ch,
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Write([]byte(xml.Header))
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		s.logWarn("failed to encode rss response", "error", err)
	}
}

type capsDocument struct {
	XMLName    xml.Name      `xml:"caps"`
	Searching  capsSearching `xml:"searching"`
	Categories capsCategories `xml:"categories"`
	Limits     capsLimits    `xml:"limits"`
}

type capsSearching struct {
	Search   capsMode `xml:"search"`
	TVSearch capsMode `xml:"tv-search"`
}

type capsMode struct {
	Available       string `xml:"available,attr"`
	SupportedParams string `xml:"supportedParams,attr"`
}

type capsCategories struct {
	Category capsCategory `xml:"category"`
}

type capsCategory struct {
	ID     string        `xml:"id,attr"`
	Name   string        `xml:"name,attr"`
	Subcat capsSubcat    `xml:"subcat"`
}

type capsSubcat struct {
	ID   string `xml:"id,attr"`
	Name string `xml:"name,attr"`
}

type capsLimits struct {
	Max     string `xml:"max,attr"`
	Default string `xml:"default,attr"`
}

func (s *Server) caps(w http.ResponseWriter) {
	doc := capsDocument{
		Searching: capsSearching{
			Search:   capsMode{Available: "yes", SupportedParams: "q"},
			TVSearch: capsMode{Available: "yes", SupportedParams: "q,tvdbid,season,ep"},
		},
		Categories: capsCategories{
			Category: capsCategory{
				ID:   strconv.Itoa(categoryTV),
				Name: "TV",
				Subcat: capsSubcat{
					ID:   strconv.Itoa(categoryAnime),
					Name: "Anime",
				},
			},
		},
		Limits: capsLimits{Max: strconv.Itoa(maxLimit), Default: strconv.Itoa(defaultLimit)},
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Write([]byte(xml.Header))
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		s.logWarn("failed to encode caps response", "error", err)
	}
}
