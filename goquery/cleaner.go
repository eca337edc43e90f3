// Package goquery implements HTML cleanup and challenge-page detection on
// top of github.com/PuerkitoBio/goquery.
package goquery

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/lpscrape"
)

// Ensure Cleaner implements lpscrape.Cleaner at compile time.
var _ lpscrape.Cleaner = (*Cleaner)(nil)

// NoiseSelectors matches elements that never carry product content on a
// landing page: scripts and styles, navigation, ads, cookie and consent
// banners, social widgets, popups, breadcrumbs and pagination.
var NoiseSelectors = []string{
	// Non-content markup
	"script", "style", "noscript", "template", "iframe", "svg", "canvas",
	"object", "embed", "meta", "link",

	// Navigation and page chrome
	"nav", "aside", ".nav", ".navigation", ".navbar", ".menu", ".sidebar",
	"[role='navigation']", "[role='contentinfo']", "[role='search']",
	".breadcrumb", ".breadcrumbs", ".pagination", ".skip-link",

	// Advertising
	".ads", ".ad", ".advertisement", ".banner-ad", ".google-ads",
	"[id^='google_ads']", "[id^='div-gpt-ad']", ".sponsored",

	// Cookie, GDPR and consent banners
	".cookie", ".cookies", ".cookie-banner", ".cookie-notice", ".gdpr",
	"#cookie-banner", "#onetrust-consent-sdk", "#CybotCookiebotDialog",
	"[class*='cookie-consent']", "[id*='cookie-consent']",
	"[aria-label*='cookie']", "[aria-label*='Cookie']",

	// Social sharing
	".social-share", ".social-media", ".share-buttons", ".sharing",

	// Overlays
	".popup", ".modal", ".overlay", "[role='dialog']",

	// Hidden elements
	"[hidden]", "[aria-hidden='true']",
	"[style*='display:none']", "[style*='display: none']",
}

// mediaSelectors matches media elements. Images and video carry no text
// the model can use.
const mediaSelectors = "img, picture, video, audio, source, track, map"

// Cleaner removes noise from HTML before conversion to text.
type Cleaner struct {
	selectors string
}

// NewCleaner returns a Cleaner using NoiseSelectors, the block detector's
// ChallengeSelectors and CaptchaSelectors, plus any extra selectors.
func NewCleaner(extra ...string) *Cleaner {
	all := make([]string, 0, len(NoiseSelectors)+len(ChallengeSelectors)+len(CaptchaSelectors)+len(extra))
	all = append(all, NoiseSelectors...)
	all = append(all, ChallengeSelectors...)
	all = append(all, CaptchaSelectors...)
	all = append(all, extra...)
	return &Cleaner{selectors: strings.Join(all, ", ")}
}

// Clean parses html tolerantly and returns the body markup with noise
// removed, links unwrapped to their text, and media dropped.
func (c *Cleaner) Clean(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", lpscrape.Errorf(lpscrape.EINVALID, "failed to parse HTML: %v", err)
	}

	// Site-level header and footer; headers inside the main content stay.
	doc.Find("header, footer").Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered("main, article").Length() == 0 {
			s.Remove()
		}
	})

	doc.Find(c.selectors).Not("html, body").Remove()
	doc.Find(mediaSelectors).Remove()

	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		s.ReplaceWithSelection(s.Contents())
	})

	body := doc.Find("body")
	if body.Length() == 0 {
		return doc.Html()
	}
	return body.Html()
}
