package lpscrape

import (
	"context"
	"fmt"
	"strings"
)

// Usage reports model token consumption for one extraction.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Extraction is the result of one model extraction.
type Extraction struct {
	Record   Record
	Raw      string // model response text as received
	Model    string
	Attempts int
	Usage    Usage
}

// Extractor fills a schema from a preprocessed document using a language
// model. Implementations make a single logical model call, retrying only
// transient call failures, and return a *ExtractionError when no record
// could be produced. Every schema field is present in the returned record.
type Extractor interface {
	Extract(ctx context.Context, doc *Document, schema *Schema) (*Extraction, error)
}

// ExtractionInstruction is the system instruction for extraction calls.
const ExtractionInstruction = "You are a precise information extraction assistant for marketing content. " +
	"Extract only facts stated on the page. Never guess or invent values. " +
	"Respond with a single JSON object and nothing else."

// String map encodings named in the extraction prompt. Providers whose
// response schema cannot express free-form maps ask for pairs instead.
const (
	StringMapObjects = "string_map fields are objects mapping names to string values"
	StringMapPairs   = `string_map fields are arrays of {"name": ..., "value": ...} objects, one per entry`
)

type promptOptions struct {
	stringMap string
}

// PromptOption configures BuildExtractionPrompt.
type PromptOption func(*promptOptions)

// WithStringMapEncoding sets the string_map rule in the prompt.
// The default is StringMapObjects.
func WithStringMapEncoding(rule string) PromptOption {
	return func(o *promptOptions) {
		o.stringMap = rule
	}
}

// BuildExtractionPrompt builds the user prompt listing every schema field
// with its type and description, the page metadata hints, and the document.
func BuildExtractionPrompt(doc *Document, schema *Schema, opts ...PromptOption) string {
	o := promptOptions{stringMap: StringMapObjects}
	for _, opt := range opts {
		opt(&o)
	}

	var sb strings.Builder
	sb.WriteString("Extract the following information from the landing page content below.\n\n")
	sb.WriteString("Fields:\n")
	writeFields(&sb, schema.Fields, "")

	sb.WriteString("\nRules:\n")
	sb.WriteString("- Return one JSON object whose keys are exactly the field names above.\n")
	sb.WriteString("- Use null for any field the page does not state.\n")
	sb.WriteString("- string fields are JSON strings, string_list fields are arrays of strings, ")
	sb.WriteString(o.stringMap + ".\n")
	sb.WriteString("- Keep the page's original language.\n\n")

	fmt.Fprintf(&sb, "URL: %s\n", doc.URL)
	if m := doc.Meta; !m.Empty() {
		sb.WriteString("Page metadata:\n")
		writeMeta(&sb, "title", m.Title)
		writeMeta(&sb, "description", m.Description)
		writeMeta(&sb, "site name", m.SiteName)
		writeMeta(&sb, "type", m.Type)
	}
	sb.WriteString("\n<content>\n")
	sb.WriteString(doc.Text)
	sb.WriteString("\n</content>\n")
	return sb.String()
}

func writeFields(sb *strings.Builder, fields []Field, indent string) {
	for _, f := range fields {
		fmt.Fprintf(sb, "%s- %s (%s): %s\n", indent, f.Name, f.Type, f.Description)
		if f.Type == FieldObject {
			writeFields(sb, f.Fields, indent+"  ")
		}
	}
}

func writeMeta(sb *strings.Builder, label, value string) {
	if value != "" {
		fmt.Fprintf(sb, "- %s: %s\n", label, value)
	}
}
