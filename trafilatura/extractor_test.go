package trafilatura_test

import (
	"testing"

	"github.com/fwojciec/lpscrape"
	"github.com/fwojciec/lpscrape/trafilatura"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Ensure Extractor implements lpscrape.ContentExtractor at compile time.
var _ lpscrape.ContentExtractor = (*trafilatura.Extractor)(nil)

func TestExtractor_ExtractContent(t *testing.T) {
	t.Parallel()

	t.Run("extracts main content and title", func(t *testing.T) {
		t.Parallel()

		html := `<!DOCTYPE html>
<html>
<head>
<title>Widget Pro - Acme</title>
<meta property="og:title" content="Widget Pro">
</head>
<body>
<nav><a href="/">Home</a><a href="/shop">Shop</a></nav>
<article>
<h1>Widget Pro</h1>
<p>The Widget Pro is the fastest widget we have ever built, with a battery that lasts all day and a body that survives the rain.</p>
<p>Order today and receive free shipping on every order placed before the end of the month.</p>
</article>
<footer>Copyright 2024</footer>
</body>
</html>`

		result, err := trafilatura.NewExtractor().ExtractContent(html)

		require.NoError(t, err)
		assert.NotEmpty(t, result.Title)
		assert.Contains(t, result.HTML, "fastest widget")
	})

	t.Run("returns error for empty input", func(t *testing.T) {
		t.Parallel()

		_, err := trafilatura.NewExtractor().ExtractContent("")

		require.Error(t, err)
		assert.Equal(t, lpscrape.EINVALID, lpscrape.ErrorCode(err))
	})
}
