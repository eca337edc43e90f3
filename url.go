package lpscrape

import (
	"net"
	"net/url"
	"strings"
)

// NormalizeURL returns a canonical form of rawURL used to identify a page:
// scheme and host are lowercased, default ports and fragments are dropped,
// and trailing slashes are removed from the path. The query is kept.
func NormalizeURL(rawURL string) (string, error) {
	req := FetchRequest{URL: strings.TrimSpace(rawURL)}
	if err := req.Validate(); err != nil {
		return "", err
	}
	u, err := url.Parse(req.URL)
	if err != nil {
		return "", Errorf(EINVALID, "invalid URL %q: %v", rawURL, err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		u.Host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		u.Host = "[" + host + "]"
	} else {
		u.Host = host
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}

// Host returns the lowercased host of rawURL without port, or "" if rawURL
// does not parse.
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
