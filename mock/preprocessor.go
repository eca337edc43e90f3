package mock

import "github.com/fwojciec/lpscrape"

var _ lpscrape.Preprocessor = (*Preprocessor)(nil)

// Preprocessor is a mock implementation of lpscrape.Preprocessor.
type Preprocessor struct {
	PreprocessFn func(html string) (*lpscrape.Document, error)
}

func (p *Preprocessor) Preprocess(html string) (*lpscrape.Document, error) {
	return p.PreprocessFn(html)
}

var _ lpscrape.Cleaner = (*Cleaner)(nil)

// Cleaner is a mock implementation of lpscrape.Cleaner.
type Cleaner struct {
	CleanFn func(html string) (string, error)
}

func (c *Cleaner) Clean(html string) (string, error) {
	return c.CleanFn(html)
}

var _ lpscrape.Converter = (*Converter)(nil)

// Converter is a mock implementation of lpscrape.Converter.
type Converter struct {
	ConvertFn func(html string) (string, error)
}

func (c *Converter) Convert(html string) (string, error) {
	return c.ConvertFn(html)
}

var _ lpscrape.MetaReader = (*MetaReader)(nil)

// MetaReader is a mock implementation of lpscrape.MetaReader.
type MetaReader struct {
	ReadMetaFn func(html string) lpscrape.PageMeta
}

func (m *MetaReader) ReadMeta(html string) lpscrape.PageMeta {
	return m.ReadMetaFn(html)
}

var _ lpscrape.ContentExtractor = (*ContentExtractor)(nil)

// ContentExtractor is a mock implementation of lpscrape.ContentExtractor.
type ContentExtractor struct {
	ExtractContentFn func(html string) (*lpscrape.Content, error)
}

func (e *ContentExtractor) ExtractContent(html string) (*lpscrape.Content, error) {
	return e.ExtractContentFn(html)
}
