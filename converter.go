package lpscrape

// Converter converts HTML to Markdown.
type Converter interface {
	// Convert transforms cleaned HTML into Markdown, keeping headings,
	// lists and tables.
	Convert(html string) (string, error)
}
