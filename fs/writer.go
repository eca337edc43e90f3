// Package fs provides file-based storage for preprocessed documents.
package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/lpscrape"
)

// ArtifactName returns the file name of the artifact for rawURL.
// Equivalent URLs map to the same name.
// Example: https://shop.example.com/widget → preprocessed_1f3a9c0d2b4e.txt
func ArtifactName(rawURL string) string {
	key := rawURL
	if norm, err := lpscrape.NormalizeURL(rawURL); err == nil {
		key = norm
	}
	return fmt.Sprintf("preprocessed_%012x.txt", xxhash.Sum64String(key)>>16)
}

// FormatArtifact formats a document with a header recording its source URL
// and generation time.
func FormatArtifact(doc *lpscrape.Document, generated time.Time) string {
	var b strings.Builder
	b.WriteString("# Preprocessed Data for: ")
	b.WriteString(doc.URL)
	b.WriteString("\n# Generated at: ")
	b.WriteString(generated.Format("2006-01-02 15:04:05"))
	if doc.Truncated {
		b.WriteString("\n# Truncated: true")
	}
	b.WriteString("\n# ")
	b.WriteString(strings.Repeat("=", 60))
	b.WriteString("\n\n")
	b.WriteString(doc.Text)
	return b.String()
}

// Ensure ArtifactWriter implements lpscrape.ArtifactWriter at compile time.
var _ lpscrape.ArtifactWriter = (*ArtifactWriter)(nil)

// ArtifactWriter writes preprocessed documents as text files to a directory.
// A later write for the same URL replaces the earlier file.
type ArtifactWriter struct {
	baseDir string

	// Now returns the generation time written to the header.
	Now func() time.Time
}

// NewArtifactWriter creates a new ArtifactWriter that writes to the given
// base directory.
func NewArtifactWriter(baseDir string) *ArtifactWriter {
	return &ArtifactWriter{baseDir: baseDir, Now: time.Now}
}

// WriteDocument writes doc to disk and returns the file path.
// The file is written to a temporary name and renamed into place.
func (w *ArtifactWriter) WriteDocument(ctx context.Context, doc *lpscrape.Document) (string, error) {
	if doc.URL == "" {
		return "", lpscrape.Errorf(lpscrape.EINVALID, "document URL required")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(w.baseDir, 0755); err != nil {
		return "", err
	}

	fullPath := filepath.Join(w.baseDir, ArtifactName(doc.URL))
	tmp, err := os.CreateTemp(w.baseDir, ".preprocessed-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(FormatArtifact(doc, w.Now())); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return "", err
	}
	return fullPath, nil
}
