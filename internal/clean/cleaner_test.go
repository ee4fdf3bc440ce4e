package clean

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/legis-etl/internal/extract"
)

const pageFixture = `<html>
<head><title>The Planning Order 2024</title><style>body{color:red}</style></head>
<body>
<script>trackPageView();</script>
<div class="watermark">DRAFT</div>
<h1 class="doc-title">The Town and Country Planning Order 2024</h1>
<span class="enacted-date">12th August 2024</span>
<span class="documentNumber">No. 101</span>
<!-- editorial comment -->
<div id="content">
  <p>Citation   and  commencement</p>
  <p>This Order may be cited as the Town &amp; Country Planning Order 2024.</p>
  <p>ISBN: 978-0-11-123456-7</p>
</div>
</body></html>`

var pageListing = extract.Listing{
	Title:   "The Town and Country Planning Order 2024",
	Year:    "2024",
	Number:  "101",
	DocType: "UK Statutory Instruments",
}

func TestClean_ExtractsText(t *testing.T) {
	res, err := Clean([]byte(pageFixture), pageListing)
	require.NoError(t, err)

	assert.Contains(t, res.Text, "Citation and commencement", "runs of spaces collapse")
	assert.Contains(t, res.Text, "Town & Country Planning Order", "entities decoded")
	assert.NotContains(t, res.Text, "trackPageView", "scripts stripped")
	assert.NotContains(t, res.Text, "color:red", "styles stripped")
	assert.NotContains(t, res.Text, "DRAFT", "watermarks stripped")
	assert.NotContains(t, res.Text, "<", "no remaining markup")
}

func TestClean_ExtractsMetadata(t *testing.T) {
	res, err := Clean([]byte(pageFixture), pageListing)
	require.NoError(t, err)

	assert.Equal(t, "The Town and Country Planning Order 2024", res.Metadata["title"])
	assert.Equal(t, "12th August 2024", res.Metadata["enacted_date"])
	assert.Equal(t, "No. 101", res.Metadata["document_number"])
	assert.Equal(t, "978-0-11-123456-7", res.Metadata["isbn"])
	assert.Equal(t, "2024", res.Metadata["year"])
}

func TestClean_UnknownMarkers(t *testing.T) {
	res, err := Clean([]byte("<html><body><p>Bare content only.</p></body></html>"), extract.Listing{})
	require.NoError(t, err)

	// Every key in the fixed field set is present even when not found.
	for _, k := range MetadataKeys {
		v, ok := res.Metadata[k]
		require.True(t, ok, "missing metadata key %q", k)
		if k == "title" {
			continue // falls back to <title>, absent here, so unknown too
		}
		_ = v
	}
	assert.Equal(t, Unknown, res.Metadata["enacted_date"])
	assert.Equal(t, Unknown, res.Metadata["isbn"])
}

func TestClean_Pure(t *testing.T) {
	a, err := Clean([]byte(pageFixture), pageListing)
	require.NoError(t, err)
	b, err := Clean([]byte(pageFixture), pageListing)
	require.NoError(t, err)

	assert.Equal(t, a.Text, b.Text)
	assert.Equal(t, a.Metadata, b.Metadata)
}

func TestClean_Unparseable(t *testing.T) {
	_, err := Clean(nil, extract.Listing{})
	assert.ErrorIs(t, err, ErrCleaningFailed)

	_, err = Clean([]byte("<html><head><title>x</title></head></html>"), extract.Listing{})
	assert.ErrorIs(t, err, ErrCleaningFailed)
}

func TestClean_ListingFallback(t *testing.T) {
	res, err := Clean([]byte("<html><body><p>Some text.</p></body></html>"), pageListing)
	require.NoError(t, err)

	assert.Equal(t, pageListing.Title, res.Metadata["title"])
	assert.Equal(t, pageListing.DocType, res.Metadata["document_type"])
	assert.Equal(t, pageListing.Number, res.Metadata["number"])
}
