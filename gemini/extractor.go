package gemini

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fwojciec/lpscrape"
	"github.com/fwojciec/lpscrape/json5"
	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// DefaultTemperature keeps extraction close to deterministic.
const DefaultTemperature = 0.1

// Ensure Extractor implements lpscrape.Extractor at compile time.
var _ lpscrape.Extractor = (*Extractor)(nil)

// ContentGenerator is the part of the genai client used by Extractor.
// *genai.Models satisfies it.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Extractor implements lpscrape.Extractor using Google Gemini.
type Extractor struct {
	models ContentGenerator

	// Model is the Gemini model name.
	Model string

	// Temperature is the sampling temperature.
	Temperature float32

	// Retry bounds retries of failed model calls. Only transient API errors
	// are retried.
	Retry lpscrape.RetryPolicy
}

// NewExtractor creates a new Extractor. Pass client.Models for a real client.
func NewExtractor(models ContentGenerator, model string) *Extractor {
	if model == "" {
		model = DefaultModel
	}
	return &Extractor{
		models:      models,
		Model:       model,
		Temperature: DefaultTemperature,
		Retry:       DefaultRetryPolicy(),
	}
}

// DefaultRetryPolicy returns three attempts with 1s and 2s backoff, retrying
// rate limits, server errors and transport failures.
func DefaultRetryPolicy() lpscrape.RetryPolicy {
	return lpscrape.RetryPolicy{
		Delays:    []time.Duration{time.Second, 2 * time.Second},
		Retryable: IsTransient,
	}
}

// Extract asks Gemini to fill schema from doc.
func (e *Extractor) Extract(ctx context.Context, doc *lpscrape.Document, schema *lpscrape.Schema) (*lpscrape.Extraction, error) {
	if doc == nil {
		return nil, lpscrape.Errorf(lpscrape.EINVALID, "document required")
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	prompt := lpscrape.BuildExtractionPrompt(doc, schema, lpscrape.WithStringMapEncoding(lpscrape.StringMapPairs))
	config := BuildConfig(schema, e.Temperature)
	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: prompt}},
	}}

	var result *genai.GenerateContentResponse
	attempts, err := e.Retry.Do(ctx, func(ctx context.Context, _ int) error {
		var err error
		result, err = e.models.GenerateContent(ctx, e.Model, contents, config)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &lpscrape.ExtractionError{Reason: lpscrape.ExtractModelCall, Attempts: attempts, Err: err}
	}
	if result == nil {
		return nil, &lpscrape.ExtractionError{
			Reason:   lpscrape.ExtractEmptyResponse,
			Attempts: attempts,
			Err:      errors.New("gemini returned nil result"),
		}
	}

	text := result.Text()
	obj, err := json5.DecodeObject(text)
	if err != nil {
		var extErr *lpscrape.ExtractionError
		if errors.As(err, &extErr) {
			extErr.Attempts = attempts
		}
		return nil, err
	}

	ext := &lpscrape.Extraction{
		Record:   lpscrape.CoerceRecord(obj, schema),
		Raw:      text,
		Model:    e.Model,
		Attempts: attempts,
	}
	if u := result.UsageMetadata; u != nil {
		ext.Usage = lpscrape.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
		}
	}
	return ext, nil
}

// IsTransient reports whether a model call error is worth retrying:
// rate limiting, server-side failures and errors that carry no API status.
func IsTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	return true
}

// BuildConfig returns the GenerateContentConfig for extraction calls.
func BuildConfig(schema *lpscrape.Schema, temperature float32) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: lpscrape.ExtractionInstruction}},
		},
		Temperature:      &temperature,
		ResponseMIMEType: "application/json",
		ResponseSchema:   BuildResponseSchema(schema),
	}
}

// BuildResponseSchema converts schema into a Gemini response schema. Every
// field is required and nullable so the model always emits every key.
// Gemini schemas cannot express free-form string maps, so string_map fields
// are requested as arrays of name/value pairs.
func BuildResponseSchema(schema *lpscrape.Schema) *genai.Schema {
	return objectSchema(schema.Fields)
}

func objectSchema(fields []lpscrape.Field) *genai.Schema {
	s := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(fields)),
	}
	for _, f := range fields {
		s.Properties[f.Name] = fieldSchema(f)
		s.Required = append(s.Required, f.Name)
		s.PropertyOrdering = append(s.PropertyOrdering, f.Name)
	}
	return s
}

func fieldSchema(f lpscrape.Field) *genai.Schema {
	var s *genai.Schema
	switch f.Type {
	case lpscrape.FieldStringList:
		s = &genai.Schema{
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeString},
		}
	case lpscrape.FieldStringMap:
		s = &genai.Schema{
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"name":  {Type: genai.TypeString},
					"value": {Type: genai.TypeString},
				},
				Required:         []string{"name", "value"},
				PropertyOrdering: []string{"name", "value"},
			},
		}
	case lpscrape.FieldObject:
		s = objectSchema(f.Fields)
	default:
		s = &genai.Schema{Type: genai.TypeString}
	}
	s.Description = f.Description
	s.Nullable = genai.Ptr(true)
	return s
}
