package openai_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fwojciec/lpscrape"
	"github.com/fwojciec/lpscrape/openai"
	goopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	calls   int
	lastReq goopenai.ChatCompletionRequest
	fn      func(call int) (goopenai.ChatCompletionResponse, error)
}

func (c *fakeClient) CreateChatCompletion(_ context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error) {
	c.calls++
	c.lastReq = req
	return c.fn(c.calls)
}

func reply(content string) goopenai.ChatCompletionResponse {
	return goopenai.ChatCompletionResponse{
		Model: "gpt-test",
		Choices: []goopenai.ChatCompletionChoice{{
			Message: goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleAssistant, Content: content},
		}},
		Usage: goopenai.Usage{PromptTokens: 50, CompletionTokens: 10},
	}
}

var noDelay = lpscrape.RetryPolicy{
	Delays:    []time.Duration{0, 0},
	Retryable: openai.IsTransient,
}

func nameAndPrice() *lpscrape.Schema {
	return &lpscrape.Schema{
		Name: "product",
		Fields: []lpscrape.Field{
			{Name: "name", Type: lpscrape.FieldString},
			{Name: "price", Type: lpscrape.FieldString},
		},
	}
}

func TestExtractor_Extract_SendsJSONModeRequest(t *testing.T) {
	t.Parallel()

	client := &fakeClient{fn: func(int) (goopenai.ChatCompletionResponse, error) {
		return reply("```json\n{\"name\": \"Widget\", \"price\": null,}\n```"), nil
	}}
	ex := openai.NewExtractor(client, openai.WithModel("gpt-test"), openai.WithRetry(noDelay))

	ext, err := ex.Extract(context.Background(), &lpscrape.Document{URL: "https://example.com", Text: "Widget"}, nameAndPrice())

	require.NoError(t, err)
	assert.Equal(t, "gpt-test", client.lastReq.Model)
	require.NotNil(t, client.lastReq.ResponseFormat)
	assert.Equal(t, goopenai.ChatCompletionResponseFormatTypeJSONObject, client.lastReq.ResponseFormat.Type)
	require.Len(t, client.lastReq.Messages, 2)
	assert.Equal(t, lpscrape.ExtractionInstruction, client.lastReq.Messages[0].Content)
	assert.Contains(t, client.lastReq.Messages[1].Content, "- price (string)")

	assert.Equal(t, lpscrape.Record{"name": "Widget", "price": nil}, ext.Record)
	assert.Equal(t, "gpt-test", ext.Model)
	assert.Equal(t, lpscrape.Usage{PromptTokens: 50, CompletionTokens: 10}, ext.Usage)
}

func TestExtractor_Extract_RetriesRateLimits(t *testing.T) {
	t.Parallel()

	client := &fakeClient{fn: func(call int) (goopenai.ChatCompletionResponse, error) {
		if call == 1 {
			return goopenai.ChatCompletionResponse{}, &goopenai.APIError{HTTPStatusCode: 429, Message: "slow down"}
		}
		return reply(`{"name":"Widget"}`), nil
	}}
	ex := openai.NewExtractor(client, openai.WithRetry(noDelay))

	ext, err := ex.Extract(context.Background(), &lpscrape.Document{Text: "Widget"}, nameAndPrice())

	require.NoError(t, err)
	assert.Equal(t, 2, ext.Attempts)
}

func TestExtractor_Extract_GivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	client := &fakeClient{fn: func(int) (goopenai.ChatCompletionResponse, error) {
		return goopenai.ChatCompletionResponse{}, errors.New("connection refused")
	}}
	ex := openai.NewExtractor(client, openai.WithRetry(noDelay))

	_, err := ex.Extract(context.Background(), &lpscrape.Document{Text: "Widget"}, nameAndPrice())

	var extErr *lpscrape.ExtractionError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, lpscrape.ExtractModelCall, extErr.Reason)
	assert.Equal(t, 3, extErr.Attempts)
	assert.Equal(t, 3, client.calls)
}

func TestExtractor_Extract_NoChoices(t *testing.T) {
	t.Parallel()

	client := &fakeClient{fn: func(int) (goopenai.ChatCompletionResponse, error) {
		return goopenai.ChatCompletionResponse{}, nil
	}}
	ex := openai.NewExtractor(client, openai.WithRetry(noDelay))

	_, err := ex.Extract(context.Background(), &lpscrape.Document{Text: "Widget"}, nameAndPrice())

	var extErr *lpscrape.ExtractionError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, lpscrape.ExtractEmptyResponse, extErr.Reason)
}

func TestExtractor_Extract_NonObjectResponse(t *testing.T) {
	t.Parallel()

	client := &fakeClient{fn: func(int) (goopenai.ChatCompletionResponse, error) {
		return reply(`["Widget"]`), nil
	}}
	ex := openai.NewExtractor(client, openai.WithRetry(noDelay))

	_, err := ex.Extract(context.Background(), &lpscrape.Document{Text: "Widget"}, nameAndPrice())

	var extErr *lpscrape.ExtractionError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, lpscrape.ExtractUnparseable, extErr.Reason)
	assert.Equal(t, 1, client.calls)
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	assert.True(t, openai.IsTransient(&goopenai.APIError{HTTPStatusCode: 503}))
	assert.True(t, openai.IsTransient(&goopenai.RequestError{HTTPStatusCode: 502}))
	assert.False(t, openai.IsTransient(&goopenai.APIError{HTTPStatusCode: 401}))
	assert.False(t, openai.IsTransient(&goopenai.RequestError{HTTPStatusCode: 404}))
	assert.False(t, openai.IsTransient(context.Canceled))
}
