package opengraph_test

import (
	"testing"

	"github.com/fwojciec/lpscrape"
	"github.com/fwojciec/lpscrape/opengraph"
	"github.com/stretchr/testify/assert"
)

func TestMetaReader_ReadMeta(t *testing.T) {
	t.Parallel()

	t.Run("reads opengraph tags", func(t *testing.T) {
		t.Parallel()

		html := `<html><head>
<meta property="og:title" content="Widget Pro">
<meta property="og:description" content="The fastest widget.">
<meta property="og:site_name" content="Acme">
<meta property="og:type" content="product">
<meta property="og:url" content="https://acme.example/widget">
<title>ignored</title>
</head><body></body></html>`

		got := opengraph.NewMetaReader().ReadMeta(html)

		assert.Equal(t, lpscrape.PageMeta{
			Title:        "Widget Pro",
			Description:  "The fastest widget.",
			SiteName:     "Acme",
			Type:         "product",
			CanonicalURL: "https://acme.example/widget",
		}, got)
	})

	t.Run("falls back to head tags", func(t *testing.T) {
		t.Parallel()

		html := `<html><head>
<title>  Widget
  Pro | Acme </title>
<meta name="description" content="Buy the Widget Pro.">
<link rel="canonical" href="https://acme.example/widget">
</head><body></body></html>`

		got := opengraph.NewMetaReader().ReadMeta(html)

		assert.Equal(t, "Widget Pro | Acme", got.Title)
		assert.Equal(t, "Buy the Widget Pro.", got.Description)
		assert.Equal(t, "https://acme.example/widget", got.CanonicalURL)
		assert.Empty(t, got.SiteName)
	})

	t.Run("returns empty metadata for plain text", func(t *testing.T) {
		t.Parallel()

		got := opengraph.NewMetaReader().ReadMeta("just text")

		assert.True(t, got.Empty())
	})
}
