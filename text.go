package lpscrape

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMaxBytes is the default size ceiling of a preprocessed document.
const DefaultMaxBytes = 12000

// boilerplateMaxLen bounds the length of a line that can be treated as
// boilerplate. Longer lines are content that happens to mention a phrase.
const boilerplateMaxLen = 160

var (
	emphasisRunRe = regexp.MustCompile(`[*_]{3,}`)
	ruleRe        = regexp.MustCompile(`-{4,}`)
	spaceRunRe    = regexp.MustCompile(`[ \t\f\v]+`)

	boilerplateRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)cookie.*polic`),
		regexp.MustCompile(`(?i)accept.*cookies`),
		regexp.MustCompile(`(?i)we use cookies`),
		regexp.MustCompile(`(?i)privacy\s+(policy|notice|statement)`),
		regexp.MustCompile(`(?i)terms\s+(of|and)\s+(service|use|conditions)`),
		regexp.MustCompile(`(?i)all\s+rights\s+reserved`),
		regexp.MustCompile(`(?i)^(©|\(c\)|copyright)\s`),
		regexp.MustCompile(`(?i)follow\s+us`),
		regexp.MustCompile(`(?i)\bsubscribe\b`),
		regexp.MustCompile(`(?i)newsletter`),
		regexp.MustCompile(`(?i)skip\s+to\s+(main\s+)?content`),
	}
)

// IsBoilerplateLine reports whether line is a short footer or banner phrase
// that carries no product content.
func IsBoilerplateLine(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" || len(line) > boilerplateMaxLen {
		return false
	}
	for _, re := range boilerplateRes {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// NormalizeText cleans markdown produced from HTML: it removes decorative
// emphasis runs, shortens horizontal rules, collapses horizontal
// whitespace, drops boilerplate lines and adjacent duplicate lines, and
// collapses runs of blank lines. NormalizeText is idempotent.
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	prev := ""
	for _, line := range lines {
		line = emphasisRunRe.ReplaceAllString(line, "")
		line = ruleRe.ReplaceAllString(line, "---")
		line = spaceRunRe.ReplaceAllString(line, " ")
		line = strings.TrimRight(line, " ")
		if strings.TrimSpace(line) == "" {
			line = ""
		}
		if IsBoilerplateLine(line) {
			continue
		}
		if line != "" && line == prev {
			continue
		}
		if line == "" && prev == "" {
			continue
		}
		out = append(out, line)
		prev = line
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// TruncateText shortens text to at most maxBytes bytes. Text that already
// fits is returned unchanged. Otherwise the cut lands just after the last
// sentence-ending punctuation mark at or before the ceiling, so the result
// never ends mid-sentence. It reports whether text was shortened.
//
// If no sentence boundary exists within the ceiling, the cut falls back to
// the last line break, then the last space, then the last whole rune, and
// the result is passed through NormalizeText.
func TruncateText(text string, maxBytes int) (string, bool) {
	if maxBytes <= 0 || len(text) <= maxBytes {
		return text, false
	}

	head := text[:maxBytes]
	for !utf8.ValidString(head) {
		head = head[:len(head)-1]
	}

	for limit := len(head); limit > 0; {
		start, cut := lastSentenceEnd(text, limit)
		if cut <= 0 {
			break
		}
		candidate := strings.TrimSpace(text[:cut])
		if stableTail(candidate) {
			return candidate, true
		}
		limit = start
	}

	// A cut inside a line can turn it into boilerplate, so the fallback
	// result is normalized again to stay a fixed point.
	if i := strings.LastIndex(head, "\n"); i > 0 {
		return NormalizeText(head[:i]), true
	}
	if i := strings.LastIndex(head, " "); i > 0 {
		return NormalizeText(head[:i]), true
	}
	return NormalizeText(head), true
}

// lastSentenceEnd finds the last sentence-ending punctuation mark that ends
// at or before limit in text. A full-width mark always ends a sentence; an
// ASCII mark only when text continues with whitespace or ends there. It
// returns the byte offsets of the mark, or zeros when there is none.
func lastSentenceEnd(text string, limit int) (start, end int) {
	for i := limit; i > 0; {
		r, size := utf8.DecodeLastRuneInString(text[:i])
		i -= size
		switch r {
		case '。', '！', '？':
			return i, i + size
		case '.', '!', '?':
			after := i + size
			if after == len(text) {
				return i, after
			}
			switch text[after] {
			case ' ', '\n', '\t':
				return i, after
			}
		}
	}
	return 0, 0
}

// stableTail reports whether the last line of a truncated text survives
// NormalizeText unchanged, so truncation output stays a fixed point.
func stableTail(text string) bool {
	lines := strings.Split(text, "\n")
	last := lines[len(lines)-1]
	if IsBoilerplateLine(last) {
		return false
	}
	if len(lines) > 1 && lines[len(lines)-2] == last {
		return false
	}
	return EndsSentence(text)
}

// EndsSentence reports whether text ends with sentence-ending punctuation.
func EndsSentence(text string) bool {
	r, _ := utf8.DecodeLastRuneInString(text)
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}
