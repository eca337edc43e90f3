package lpscrape_test

import (
	"testing"

	"github.com/fwojciec/lpscrape"
	"github.com/stretchr/testify/assert"
)

func TestBuildExtractionPrompt(t *testing.T) {
	t.Parallel()

	doc := &lpscrape.Document{
		URL:  "https://example.com/widget",
		Text: "# Widget\n\nThe best widget.",
		Meta: lpscrape.PageMeta{Title: "Widget | Acme", SiteName: "Acme"},
	}
	schema := &lpscrape.Schema{Fields: []lpscrape.Field{
		{Name: "name", Type: lpscrape.FieldString, Description: "Product name"},
		{Name: "price", Type: lpscrape.FieldObject, Description: "Price details", Fields: []lpscrape.Field{
			{Name: "amount", Type: lpscrape.FieldString, Description: "Amount"},
		}},
	}}

	prompt := lpscrape.BuildExtractionPrompt(doc, schema)

	assert.Contains(t, prompt, "- name (string): Product name")
	assert.Contains(t, prompt, "- price (object): Price details")
	assert.Contains(t, prompt, "  - amount (string): Amount")
	assert.Contains(t, prompt, "Use null")
	assert.Contains(t, prompt, "URL: https://example.com/widget")
	assert.Contains(t, prompt, "- title: Widget | Acme")
	assert.Contains(t, prompt, "- site name: Acme")
	assert.NotContains(t, prompt, "- description:")
	assert.Contains(t, prompt, "<content>\n# Widget\n\nThe best widget.\n</content>")
}

func TestBuildExtractionPrompt_NoMeta(t *testing.T) {
	t.Parallel()

	prompt := lpscrape.BuildExtractionPrompt(&lpscrape.Document{URL: "https://example.com", Text: "x"}, lpscrape.DefaultSchema())

	assert.NotContains(t, prompt, "Page metadata")
	assert.Contains(t, prompt, "- specifications (string_map)")
}

func TestBuildExtractionPrompt_StringMapEncoding(t *testing.T) {
	t.Parallel()

	doc := &lpscrape.Document{URL: "https://example.com", Text: "x"}

	assert.Contains(t, lpscrape.BuildExtractionPrompt(doc, lpscrape.DefaultSchema()), lpscrape.StringMapObjects+".")

	prompt := lpscrape.BuildExtractionPrompt(doc, lpscrape.DefaultSchema(), lpscrape.WithStringMapEncoding(lpscrape.StringMapPairs))
	assert.Contains(t, prompt, lpscrape.StringMapPairs+".")
	assert.NotContains(t, prompt, lpscrape.StringMapObjects)
}
