package lpscrape

// PageMeta holds metadata hints read from a page's head, such as OpenGraph
// tags and the document title.
type PageMeta struct {
	Title        string `json:"title,omitempty"`
	Description  string `json:"description,omitempty"`
	SiteName     string `json:"site_name,omitempty"`
	Type         string `json:"type,omitempty"`
	CanonicalURL string `json:"canonical_url,omitempty"`
}

// Empty reports whether no metadata was found.
func (m PageMeta) Empty() bool {
	return m == PageMeta{}
}

// Document is the compact text representation of a page that is sent to
// the model. Text never exceeds the preprocessor's size ceiling and holds
// no script, style or navigation markup.
type Document struct {
	URL       string   `json:"url"`
	Text      string   `json:"text"`
	Meta      PageMeta `json:"meta"`
	Truncated bool     `json:"truncated"`

	// Tokens is the model token count of Text when a counter was configured.
	Tokens int `json:"tokens,omitempty"`
}

// Preprocessor turns raw HTML into a bounded text Document.
// Preprocess is deterministic and idempotent: preprocessing the Text of a
// Document yields the same Text.
type Preprocessor interface {
	// Preprocess returns the document for html, or a *PreprocessError when
	// nothing usable remains after noise removal.
	Preprocess(html string) (*Document, error)
}

// Cleaner removes navigation, ads, scripts, banners and other noise from HTML.
type Cleaner interface {
	Clean(html string) (string, error)
}

// MetaReader reads metadata hints from HTML.
type MetaReader interface {
	ReadMeta(html string) PageMeta
}
