package lpscrape

// Content holds the main content of an HTML page.
type Content struct {
	// Title is the page title extracted from metadata.
	Title string

	// HTML is the main content as clean HTML with boilerplate removed.
	HTML string
}

// ContentExtractor extracts the main content block of an HTML page. It is
// the fallback used when noise removal leaves no text behind.
type ContentExtractor interface {
	// ExtractContent processes raw HTML and returns the main content.
	ExtractContent(html string) (*Content, error)
}
