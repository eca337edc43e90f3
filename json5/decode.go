// Package json5 decodes model responses into JSON objects, tolerating code
// fences, surrounding prose and JSON5 syntax such as trailing commas,
// comments and single quotes via github.com/yosuke-furukawa/json5.
package json5

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/fwojciec/lpscrape"
	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
)

// ErrNoObject is returned when the text contains no JSON object.
var ErrNoObject = errors.New("no JSON object in response")

// DecodeObject extracts the first top-level JSON object from text. Strict
// JSON is tried first and JSON5 second. The error is a *lpscrape.ExtractionError
// with reason unparseable.
func DecodeObject(text string) (map[string]any, error) {
	candidate := ObjectText(text)
	if candidate == "" {
		if strings.TrimSpace(text) == "" {
			return nil, &lpscrape.ExtractionError{Reason: lpscrape.ExtractEmptyResponse, Err: ErrNoObject}
		}
		return nil, &lpscrape.ExtractionError{Reason: lpscrape.ExtractUnparseable, Err: ErrNoObject}
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err == nil && obj != nil {
		return obj, nil
	}

	obj = nil
	if err := json5.Unmarshal([]byte(candidate), &obj); err != nil {
		return nil, &lpscrape.ExtractionError{Reason: lpscrape.ExtractUnparseable, Err: err}
	}
	if obj == nil {
		return nil, &lpscrape.ExtractionError{Reason: lpscrape.ExtractUnparseable, Err: ErrNoObject}
	}
	return obj, nil
}

// ObjectText strips markdown code fences and returns the span from the
// first '{' to its matching '}', or "" when there is none. Braces inside
// strings are skipped.
func ObjectText(text string) string {
	text = stripFences(strings.TrimSpace(text))

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	var quote byte
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	// Unterminated object; let the decoder report it.
	return text[start:]
}

func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	}
	if end := strings.LastIndex(text, "```"); end >= 0 {
		text = text[:end]
	}
	return strings.TrimSpace(text)
}
