// Package opengraph reads page metadata hints using
// github.com/dyatlov/go-opengraph, falling back to standard head tags.
package opengraph

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dyatlov/go-opengraph/opengraph"
	"github.com/fwojciec/lpscrape"
)

// Ensure MetaReader implements lpscrape.MetaReader at compile time.
var _ lpscrape.MetaReader = (*MetaReader)(nil)

// MetaReader extracts OpenGraph metadata from HTML. Missing title,
// description and canonical URL fall back to <title>, the description meta
// tag and the canonical link.
type MetaReader struct{}

// NewMetaReader creates a new MetaReader.
func NewMetaReader() *MetaReader {
	return &MetaReader{}
}

// ReadMeta returns the metadata of html. Unparseable input yields empty
// metadata.
func (r *MetaReader) ReadMeta(html string) lpscrape.PageMeta {
	og := opengraph.NewOpenGraph()
	if err := og.ProcessHTML(strings.NewReader(html)); err != nil {
		og = opengraph.NewOpenGraph()
	}

	meta := lpscrape.PageMeta{
		Title:        clean(og.Title),
		Description:  clean(og.Description),
		SiteName:     clean(og.SiteName),
		Type:         clean(og.Type),
		CanonicalURL: strings.TrimSpace(og.URL),
	}
	if meta.Title != "" && meta.Description != "" && meta.CanonicalURL != "" {
		return meta
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return meta
	}
	if meta.Title == "" {
		meta.Title = clean(doc.Find("title").First().Text())
	}
	if meta.Description == "" {
		if content, ok := doc.Find("meta[name='description']").First().Attr("content"); ok {
			meta.Description = clean(content)
		}
	}
	if meta.CanonicalURL == "" {
		if href, ok := doc.Find("link[rel='canonical']").First().Attr("href"); ok {
			meta.CanonicalURL = strings.TrimSpace(href)
		}
	}
	return meta
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
