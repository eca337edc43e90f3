// Package readability extracts the main content block of a page with
// github.com/go-shiori/go-readability.
package readability

import (
	"strings"

	"github.com/fwojciec/lpscrape"
	"github.com/go-shiori/go-readability"
)

// Ensure Extractor implements lpscrape.ContentExtractor at compile time.
var _ lpscrape.ContentExtractor = (*Extractor)(nil)

// Extractor wraps go-readability to extract main content from HTML.
type Extractor struct{}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractContent processes raw HTML and returns the main content.
func (e *Extractor) ExtractContent(rawHTML string) (*lpscrape.Content, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, lpscrape.Errorf(lpscrape.EINVALID, "empty HTML input")
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), nil)
	if err != nil {
		return nil, err
	}

	return &lpscrape.Content{
		Title: article.Title,
		HTML:  article.Content,
	}, nil
}
