package cache

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/lpscrape"
	"golang.org/x/net/idna"
)

// Key returns the cache key for rawURL extracted with schema: the
// normalized URL followed by a fingerprint of the schema. The separator
// is "#" because normalized URLs carry no fragment.
func Key(rawURL string, schema *lpscrape.Schema) (string, error) {
	u, err := NormalizeURL(rawURL)
	if err != nil {
		return "", err
	}
	fp, err := Fingerprint(schema)
	if err != nil {
		return "", err
	}
	return u + "#" + fp, nil
}

// NormalizeURL returns lpscrape.NormalizeURL(rawURL) with an
// internationalized host converted to its ASCII form, so both spellings
// of a host share cache entries.
func NormalizeURL(rawURL string) (string, error) {
	norm, err := lpscrape.NormalizeURL(rawURL)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(norm)
	if err != nil {
		return "", lpscrape.Errorf(lpscrape.EINVALID, "invalid URL %q: %v", rawURL, err)
	}

	host := u.Hostname()
	if net.ParseIP(host) != nil {
		return norm, nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		// Hosts that fail strict lookup rules, such as ones with
		// underscores, are kept as they are.
		return norm, nil
	}
	if port := u.Port(); port != "" {
		u.Host = net.JoinHostPort(ascii, port)
	} else {
		u.Host = ascii
	}
	return u.String(), nil
}

// Fingerprint returns a short stable hash of schema. Schemas that differ
// in any field name, type, description or nesting get different
// fingerprints.
func Fingerprint(schema *lpscrape.Schema) (string, error) {
	if schema == nil {
		schema = lpscrape.DefaultSchema()
	}
	b, err := json.Marshal(schema)
	if err != nil {
		return "", fmt.Errorf("encoding schema: %w", err)
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(b)), nil
}
