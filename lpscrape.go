// Package lpscrape turns an arbitrary landing page URL into a structured,
// schema-conformant record of its marketing content. It fetches the page
// with a rendering browser or a direct HTTP client, compresses the HTML
// into a bounded text document, asks a language model to fill a fixed
// schema, scores how trustworthy the result is, and caches results per URL.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., rod/, gemini/, sqlite/).
package lpscrape
