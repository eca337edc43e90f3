package goquery

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/lpscrape"
)

// Ensure BlockDetector implements lpscrape.BlockDetector at compile time.
var _ lpscrape.BlockDetector = (*BlockDetector)(nil)

// shortPageLen is the visible text length below which a page is treated
// as an interstitial rather than real content.
const shortPageLen = 1000

// ChallengeSelectors are bot-protection markers that only appear on
// interstitial pages. NewCleaner removes them as well.
var ChallengeSelectors = []string{
	"#challenge-form",
	"#challenge-running",
	"#cf-challenge-running",
	".cf-browser-verification",
	"#cf-error-details",
	"#px-captcha",
	"script[src*='captcha-delivery.com']",
	"#sec-if-cpt-container",
}

// CaptchaSelectors are captcha widgets. Landing pages embed these in signup
// forms, so they only count on short pages. NewCleaner removes them as well.
var CaptchaSelectors = []string{
	".g-recaptcha",
	".h-captcha",
	"iframe[src*='captcha']",
	"[data-sitekey]",
}

var blockedTitles = []string{
	"just a moment",
	"attention required",
	"access denied",
	"are you a robot",
	"pardon our interruption",
	"security check",
	"verify you are human",
	"request blocked",
	"403 forbidden",
}

// blockedPhrases are block messages. A bare "captcha" is not one: landing
// pages carry reCAPTCHA notices in their footers.
var blockedPhrases = []string{
	"complete the captcha",
	"solve the captcha",
	"access denied",
	"unusual traffic",
	"verify you are human",
	"enable javascript and cookies to continue",
	"has been blocked",
	"you have been blocked",
}

// BlockDetector recognizes bot-detection interstitials and challenge pages
// by their markup, titles and short block messages.
type BlockDetector struct{}

// NewBlockDetector creates a new BlockDetector.
func NewBlockDetector() *BlockDetector {
	return &BlockDetector{}
}

// Detect reports whether html is a block or challenge page.
func (d *BlockDetector) Detect(html string) (string, bool) {
	if strings.TrimSpace(html) == "" {
		return "empty response", true
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}

	title := strings.ToLower(strings.TrimSpace(doc.Find("title").First().Text()))
	for _, t := range blockedTitles {
		if strings.Contains(title, t) {
			return "title: " + t, true
		}
	}

	for _, sel := range ChallengeSelectors {
		if doc.Find(sel).Length() > 0 {
			return "challenge: " + sel, true
		}
	}

	doc.Find("script, style, noscript, template").Remove()
	text := strings.ToLower(strings.Join(strings.Fields(doc.Find("body").Text()), " "))
	if len(text) >= shortPageLen {
		return "", false
	}

	for _, sel := range CaptchaSelectors {
		if doc.Find(sel).Length() > 0 {
			return "captcha: " + sel, true
		}
	}
	for _, p := range blockedPhrases {
		if strings.Contains(text, p) {
			return "phrase: " + p, true
		}
	}
	return "", false
}
