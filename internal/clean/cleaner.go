// Package clean converts raw legislation HTML into normalized plain text
// plus a fixed set of structured metadata fields. Clean is a pure function
// of its inputs: no network, no mutable state, identical input always
// yields identical output.
package clean

import (
	"html"
	"regexp"
	"strings"

	"github.com/bull/legis-etl/internal/extract"
)

// Unknown is the explicit marker for metadata fields that could not be
// located. Downstream consumers rely on every key being present.
const Unknown = "unknown"

// MetadataKeys is the fixed field set extracted for every document.
var MetadataKeys = []string{
	"title",
	"subtitle",
	"enacted_date",
	"made_date",
	"document_number",
	"document_type",
	"isbn",
	"year",
	"number",
}

// Result is the output of cleaning a single document.
type Result struct {
	Text     string            // Normalized plain text
	Metadata map[string]string // Every key in MetadataKeys is present
}

// Pre-compiled expressions. Removal patterns must run before tag stripping.
var (
	scriptTag    = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag     = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptTag  = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	headTag      = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	svgTag       = regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`)
	imgTag       = regexp.MustCompile(`(?i)<img[^>]*>`)
	htmlComments = regexp.MustCompile(`(?s)<!--.*?-->`)

	// Watermarks, crests and editorial annotations carry no legal text.
	decorDiv = regexp.MustCompile(`(?is)<(?:div|span|p)[^>]*class="[^"]*(?:watermark|print-only|crest|annotation|editorial|commentary|LegNav)[^"]*"[^>]*>.*?</(?:div|span|p)>`)

	blockClose    = regexp.MustCompile(`(?i)</(p|div|br|hr|h[1-6]|li|tr|blockquote|pre|table|section|article)>`)
	blockOpen     = regexp.MustCompile(`(?i)<(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)[^>]*>`)
	brTags        = regexp.MustCompile(`(?i)<br\s*/?>`)
	hrTags        = regexp.MustCompile(`(?i)<hr\s*/?>`)
	allTags       = regexp.MustCompile(`<[^>]+>`)
	multiSpaces   = regexp.MustCompile(`[ \t]+`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)

	// Metadata selectors for the legislation page layout.
	titleTag     = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	pageTitle    = regexp.MustCompile(`(?is)<h1[^>]*class="[^"]*title[^"]*"[^>]*>(.*?)</h1>`)
	subtitleSpan = regexp.MustCompile(`(?is)<[^>]+class="[^"]*(?:legislation-subtitle|documentSubtitle)[^"]*"[^>]*>(.*?)<`)
	enactedSpan  = regexp.MustCompile(`(?is)<[^>]+class="[^"]*(?:enacted-date|signedDate)[^"]*"[^>]*>(.*?)<`)
	madeSpan     = regexp.MustCompile(`(?is)<[^>]+class="[^"]*(?:made-date|comingIntoForce)[^"]*"[^>]*>(.*?)<`)
	docNumSpan   = regexp.MustCompile(`(?is)<[^>]+class="[^"]*(?:doc-number|documentNumber)[^"]*"[^>]*>(.*?)<`)
	docTypeSpan  = regexp.MustCompile(`(?is)<[^>]+class="[^"]*(?:legislation-type|documentType)[^"]*"[^>]*>(.*?)<`)
	isbnPattern  = regexp.MustCompile(`(?i)ISBN[:\s]*([\d\-X]{10,})`)
)

// Clean strips markup, normalizes whitespace and extracts metadata from a
// raw legislation page. Input that yields no text content at all returns
// ErrCleaningFailed; the raw bytes stay in the content cache for manual
// inspection.
func Clean(raw []byte, listing extract.Listing) (Result, error) {
	if len(raw) == 0 {
		return Result{}, ErrCleaningFailed
	}

	content := string(raw)
	meta := extractMetadata(content, listing)
	text := stripHTML(content)

	if text == "" {
		return Result{}, ErrCleaningFailed
	}

	return Result{Text: text, Metadata: meta}, nil
}

// stripHTML removes markup and extracts readable text, one paragraph per
// line, with entities decoded and whitespace collapsed.
func stripHTML(content string) string {
	content = scriptTag.ReplaceAllString(content, "")
	content = styleTag.ReplaceAllString(content, "")
	content = noscriptTag.ReplaceAllString(content, "")
	content = headTag.ReplaceAllString(content, "")
	content = svgTag.ReplaceAllString(content, "")
	content = imgTag.ReplaceAllString(content, "")
	content = htmlComments.ReplaceAllString(content, "")
	content = decorDiv.ReplaceAllString(content, "")

	content = blockOpen.ReplaceAllString(content, "\n")
	content = blockClose.ReplaceAllString(content, "\n")
	content = brTags.ReplaceAllString(content, "\n")
	content = hrTags.ReplaceAllString(content, "\n")

	content = allTags.ReplaceAllString(content, "")
	content = html.UnescapeString(content)

	content = multiSpaces.ReplaceAllString(content, " ")
	content = multiNewlines.ReplaceAllString(content, "\n\n")

	lines := strings.Split(content, "\n")
	var result []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			result = append(result, line)
		}
	}

	return strings.Join(result, "\n")
}

// extractMetadata locates the fixed field set in the page, falling back to
// listing metadata and finally the Unknown marker.
func extractMetadata(content string, listing extract.Listing) map[string]string {
	meta := make(map[string]string, len(MetadataKeys))
	for _, k := range MetadataKeys {
		meta[k] = Unknown
	}

	setIfFound := func(key string, re *regexp.Regexp) {
		if m := re.FindStringSubmatch(content); m != nil {
			if v := cleanFragment(m[1]); v != "" {
				meta[key] = v
			}
		}
	}

	setIfFound("title", pageTitle)
	if meta["title"] == Unknown {
		setIfFound("title", titleTag)
	}
	setIfFound("subtitle", subtitleSpan)
	setIfFound("enacted_date", enactedSpan)
	setIfFound("made_date", madeSpan)
	setIfFound("document_number", docNumSpan)
	setIfFound("document_type", docTypeSpan)
	setIfFound("isbn", isbnPattern)

	// Listing metadata wins over nothing, loses to the page itself.
	if meta["title"] == Unknown && listing.Title != "" {
		meta["title"] = listing.Title
	}
	if meta["document_type"] == Unknown && listing.DocType != "" {
		meta["document_type"] = listing.DocType
	}
	if meta["document_number"] == Unknown && listing.Number != "" {
		meta["document_number"] = listing.Number
	}
	if listing.Year != "" {
		meta["year"] = listing.Year
	}
	if listing.Number != "" {
		meta["number"] = listing.Number
	}

	return meta
}

// cleanFragment strips residual markup and whitespace from a matched
// metadata fragment.
func cleanFragment(s string) string {
	s = allTags.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	return strings.TrimSpace(multiSpaces.ReplaceAllString(s, " "))
}
