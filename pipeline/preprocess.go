package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fwojciec/lpscrape"
	"golang.org/x/text/unicode/norm"
)

// htmlMarkupRe matches the markup every real HTML page carries. Text
// without it has already been preprocessed and skips cleaning.
var htmlMarkupRe = regexp.MustCompile(`(?i)<(!doctype|html|head|body|div|p|span|main|article|section|h[1-6]|ul|ol|li|table|a|img|br|script|style|meta|title)[\s/>]`)

// Ensure Preprocessor implements lpscrape.Preprocessor at compile time.
var _ lpscrape.Preprocessor = (*Preprocessor)(nil)

// Preprocessor turns raw HTML into a bounded text document. It removes
// noise, converts to markdown, applies NFKC normalization, drops
// boilerplate and truncates at a sentence boundary.
type Preprocessor struct {
	Cleaner   lpscrape.Cleaner
	Converter lpscrape.Converter

	// Meta reads metadata hints. Optional.
	Meta lpscrape.MetaReader

	// Fallback extracts the main content when noise removal leaves no text.
	// Optional.
	Fallback lpscrape.ContentExtractor

	// MaxBytes is the size ceiling of the document text. Defaults to
	// lpscrape.DefaultMaxBytes.
	MaxBytes int
}

// Preprocess returns the document for html. Input that carries no HTML
// markup is treated as already extracted text, which makes Preprocess
// idempotent on its own output.
func (p *Preprocessor) Preprocess(html string) (*lpscrape.Document, error) {
	doc := &lpscrape.Document{}

	var text string
	if htmlMarkupRe.MatchString(html) {
		if p.Meta != nil {
			doc.Meta = p.Meta.ReadMeta(html)
		}

		md, err := p.markdown(html)
		if err != nil {
			return nil, err
		}
		text = finish(md)
		if text == "" && p.Fallback != nil {
			text = finish(p.fallback(html, doc))
		}
	} else {
		text = finish(html)
	}

	text, doc.Truncated = lpscrape.TruncateText(text, p.maxBytes())
	if text == "" {
		return nil, &lpscrape.PreprocessError{Reason: "no text content after noise removal"}
	}
	doc.Text = text
	return doc, nil
}

func (p *Preprocessor) markdown(html string) (string, error) {
	cleaned, err := p.Cleaner.Clean(html)
	if err != nil {
		return "", fmt.Errorf("cleaning HTML: %w", err)
	}
	if strings.TrimSpace(cleaned) == "" {
		return "", nil
	}
	md, err := p.Converter.Convert(cleaned)
	if err != nil {
		return "", fmt.Errorf("converting to markdown: %w", err)
	}
	return md, nil
}

// fallback runs the main-content extractor. Its failure leaves the text
// empty, which the caller reports as a PreprocessError.
func (p *Preprocessor) fallback(html string, doc *lpscrape.Document) string {
	content, err := p.Fallback.ExtractContent(html)
	if err != nil || content == nil || strings.TrimSpace(content.HTML) == "" {
		return ""
	}
	if doc.Meta.Title == "" {
		doc.Meta.Title = content.Title
	}
	md, err := p.Converter.Convert(content.HTML)
	if err != nil {
		return ""
	}
	return md
}

func (p *Preprocessor) maxBytes() int {
	if p.MaxBytes > 0 {
		return p.MaxBytes
	}
	return lpscrape.DefaultMaxBytes
}

// finish normalizes extracted text: NFKC folds full-width characters and
// non-breaking spaces before line cleanup.
func finish(text string) string {
	return lpscrape.NormalizeText(norm.NFKC.String(text))
}
