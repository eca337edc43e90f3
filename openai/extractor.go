// Package openai implements lpscrape.Extractor against any OpenAI-compatible
// chat completions endpoint using github.com/sashabaranov/go-openai.
package openai

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fwojciec/lpscrape"
	"github.com/fwojciec/lpscrape/json5"
	goopenai "github.com/sashabaranov/go-openai"
)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = "gpt-4o-mini"

// Client is the chat completion call used by Extractor. *goopenai.Client
// satisfies it, as do OpenAI-compatible local backends.
type Client interface {
	CreateChatCompletion(ctx context.Context, request goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)
}

// NewClient returns a go-openai client for apiKey. An empty baseURL uses the
// OpenAI API.
func NewClient(apiKey, baseURL string) *goopenai.Client {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return goopenai.NewClientWithConfig(cfg)
}

// Ensure Extractor implements lpscrape.Extractor at compile time.
var _ lpscrape.Extractor = (*Extractor)(nil)

// Extractor fills schemas with a chat model in JSON mode.
type Extractor struct {
	client      Client
	model       string
	temperature float32
	retry       lpscrape.RetryPolicy
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithModel sets the chat model name.
func WithModel(model string) Option {
	return func(e *Extractor) {
		if model != "" {
			e.model = model
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) Option {
	return func(e *Extractor) {
		e.temperature = t
	}
}

// WithRetry sets the retry policy for failed calls.
func WithRetry(p lpscrape.RetryPolicy) Option {
	return func(e *Extractor) {
		e.retry = p
	}
}

// NewExtractor creates a new Extractor.
func NewExtractor(client Client, opts ...Option) *Extractor {
	e := &Extractor{
		client:      client,
		model:       DefaultModel,
		temperature: 0.1,
		retry: lpscrape.RetryPolicy{
			Delays:    []time.Duration{time.Second, 2 * time.Second},
			Retryable: IsTransient,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract asks the chat model to fill schema from doc.
func (e *Extractor) Extract(ctx context.Context, doc *lpscrape.Document, schema *lpscrape.Schema) (*lpscrape.Extraction, error) {
	if doc == nil {
		return nil, lpscrape.Errorf(lpscrape.EINVALID, "document required")
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	req := goopenai.ChatCompletionRequest{
		Model:       e.model,
		Temperature: e.temperature,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: lpscrape.ExtractionInstruction},
			{Role: goopenai.ChatMessageRoleUser, Content: lpscrape.BuildExtractionPrompt(doc, schema)},
		},
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	var resp goopenai.ChatCompletionResponse
	attempts, err := e.retry.Do(ctx, func(ctx context.Context, _ int) error {
		var err error
		resp, err = e.client.CreateChatCompletion(ctx, req)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &lpscrape.ExtractionError{Reason: lpscrape.ExtractModelCall, Attempts: attempts, Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &lpscrape.ExtractionError{
			Reason:   lpscrape.ExtractEmptyResponse,
			Attempts: attempts,
			Err:      errors.New("no choices in response"),
		}
	}

	text := resp.Choices[0].Message.Content
	obj, err := json5.DecodeObject(text)
	if err != nil {
		var extErr *lpscrape.ExtractionError
		if errors.As(err, &extErr) {
			extErr.Attempts = attempts
		}
		return nil, err
	}

	model := resp.Model
	if model == "" {
		model = e.model
	}
	return &lpscrape.Extraction{
		Record:   lpscrape.CoerceRecord(obj, schema),
		Raw:      text,
		Model:    model,
		Attempts: attempts,
		Usage: lpscrape.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// IsTransient reports whether a chat completion error is worth retrying.
func IsTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	return true
}

func retryableStatus(code int) bool {
	return code == 0 || code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
