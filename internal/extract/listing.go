package extract

import (
	"html"
	"regexp"
	"strings"
)

// Listing is one row of a legislation search results page. It carries the
// crawl-time metadata handed to the cleaner alongside the fetched page.
type Listing struct {
	Title   string
	URL     string
	Year    string
	Number  string
	DocType string
}

// Pre-compiled expressions for the results table layout. The site renders
// one <tr> per document with title/year/number/type cells.
var (
	tbodyPattern = regexp.MustCompile(`(?is)<tbody[^>]*>(.*?)</tbody>`)
	rowPattern   = regexp.MustCompile(`(?is)<tr[^>]*>(.*?)</tr>`)
	cellPattern  = regexp.MustCompile(`(?is)<td[^>]*>(.*?)</td>`)
	linkPattern  = regexp.MustCompile(`(?is)<a[^>]+href="([^"]+)"[^>]*>(.*?)</a>`)
	tagPattern   = regexp.MustCompile(`<[^>]+>`)
)

// ParseListingPage extracts the document rows from a search results page.
// Rows without a title link are skipped; a page with zero rows signals the
// end of the listing.
func ParseListingPage(raw []byte, baseURL string) []Listing {
	matches := tbodyPattern.FindSubmatch(raw)
	if matches == nil {
		return nil
	}

	var listings []Listing
	for _, row := range rowPattern.FindAllSubmatch(matches[1], -1) {
		cells := cellPattern.FindAllSubmatch(row[1], -1)
		if len(cells) == 0 {
			continue
		}

		link := linkPattern.FindSubmatch(cells[0][1])
		if link == nil {
			continue
		}

		l := Listing{
			Title: cleanCell(string(link[2])),
			URL:   absoluteURL(baseURL, string(link[1])),
		}
		if len(cells) > 1 {
			l.Year = cleanCell(string(cells[1][1]))
		}
		if len(cells) > 2 {
			l.Number = cleanCell(string(cells[2][1]))
		}
		if len(cells) > 3 {
			l.DocType = cleanCell(string(cells[3][1]))
		}

		if l.Title == "" || l.URL == "" {
			continue
		}
		listings = append(listings, l)
	}

	return listings
}

// cleanCell strips residual markup and entities from a table cell.
func cleanCell(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	return strings.TrimSpace(s)
}

// absoluteURL resolves an href against the site base URL.
func absoluteURL(base, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(href, "/")
}
