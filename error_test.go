package lpscrape_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/fwojciec/lpscrape"
	"github.com/stretchr/testify/assert"
)

func TestErrorf(t *testing.T) {
	t.Parallel()

	err := lpscrape.Errorf(lpscrape.EINVALID, "URL %q must use http or https", "ftp://x")

	assert.Equal(t, lpscrape.EINVALID, lpscrape.ErrorCode(err))
	assert.Equal(t, "URL \"ftp://x\" must use http or https", lpscrape.ErrorMessage(err))
}

func TestErrorCode(t *testing.T) {
	t.Parallel()

	fetchErr := &lpscrape.FetchError{
		URL: "https://example.com",
		Attempts: []*lpscrape.StrategyError{
			{Strategy: lpscrape.StrategyRendered, Reason: lpscrape.ReasonTimeout},
			{Strategy: lpscrape.StrategyDirect, Reason: lpscrape.ReasonBlocked, StatusCode: 403},
		},
	}
	timedOut := &lpscrape.FetchError{
		URL: "https://example.com",
		Attempts: []*lpscrape.StrategyError{
			{Strategy: lpscrape.StrategyRendered, Reason: lpscrape.ReasonTimeout, Err: context.DeadlineExceeded},
			{Strategy: lpscrape.StrategyDirect, Reason: lpscrape.ReasonClientError, StatusCode: 404},
		},
	}
	canceled := &lpscrape.FetchError{
		URL: "https://example.com",
		Attempts: []*lpscrape.StrategyError{
			{Strategy: lpscrape.StrategyRendered, Reason: lpscrape.ReasonCanceled, Err: context.Canceled},
		},
	}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain error", errors.New("boom"), lpscrape.EINTERNAL},
		{"fetch error", fetchErr, lpscrape.EFETCH},
		{"canceled fetch", canceled, lpscrape.ECANCELED},
		{"preprocess error", &lpscrape.PreprocessError{Reason: "empty"}, lpscrape.EEMPTY},
		{"extraction error", &lpscrape.ExtractionError{Reason: lpscrape.ExtractUnparseable}, lpscrape.EEXTRACT},
		{"stage wraps fetch", &lpscrape.StageError{Stage: lpscrape.StageFetch, Err: fetchErr}, lpscrape.EFETCH},
		{"wrapped app error", fmt.Errorf("ctx: %w", lpscrape.Errorf(lpscrape.ENOTFOUND, "x")), lpscrape.ENOTFOUND},
		{"stage wraps fetch after attempt timeout", &lpscrape.StageError{Stage: lpscrape.StageFetch, Err: timedOut}, lpscrape.EFETCH},
		{"stage wraps canceled fetch", &lpscrape.StageError{Stage: lpscrape.StageFetch, Err: canceled}, lpscrape.ECANCELED},
		{"stage wraps context error", &lpscrape.StageError{Stage: lpscrape.StageStore, Err: context.Canceled}, lpscrape.ECANCELED},
		{"deadline", context.DeadlineExceeded, lpscrape.ECANCELED},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, lpscrape.ErrorCode(tt.err))
		})
	}
}

func TestErrorMessage_NilError(t *testing.T) {
	t.Parallel()

	assert.Empty(t, lpscrape.ErrorMessage(nil))
}

func TestErrorMessage_InternalError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Internal error.", lpscrape.ErrorMessage(errors.New("secret detail")))
}

func TestFetchError(t *testing.T) {
	t.Parallel()

	inner := errors.New("connection reset")
	err := &lpscrape.FetchError{
		URL: "https://example.com",
		Attempts: []*lpscrape.StrategyError{
			{Strategy: lpscrape.StrategyRendered, Reason: lpscrape.ReasonTimeout},
			{Strategy: lpscrape.StrategyDirect, Reason: lpscrape.ReasonNetwork, Err: inner},
		},
	}

	assert.Equal(t, lpscrape.StrategyDirect, err.LastStrategy())
	assert.Equal(t, lpscrape.ReasonNetwork, err.Reason())
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "rendered: timeout")
	assert.Contains(t, err.Error(), "direct: network")

	var se *lpscrape.StrategyError
	assert.ErrorAs(t, err, &se)
}

func TestFailureReason_Retryable(t *testing.T) {
	t.Parallel()

	assert.True(t, lpscrape.ReasonTimeout.Retryable())
	assert.True(t, lpscrape.ReasonBlocked.Retryable())
	assert.True(t, lpscrape.ReasonNetwork.Retryable())
	assert.True(t, lpscrape.ReasonServerError.Retryable())
	assert.False(t, lpscrape.ReasonClientError.Retryable())
	assert.False(t, lpscrape.ReasonCanceled.Retryable())
}

func TestStageError(t *testing.T) {
	t.Parallel()

	err := &lpscrape.StageError{
		URL:      "https://example.com",
		Stage:    lpscrape.StageExtract,
		Strategy: lpscrape.StrategyDirect,
		Err:      &lpscrape.ExtractionError{Reason: lpscrape.ExtractModelCall},
	}

	assert.Contains(t, err.Error(), "extract stage failed")
	assert.Contains(t, err.Error(), "strategy direct")
	var extErr *lpscrape.ExtractionError
	assert.ErrorAs(t, err, &extErr)
}

func TestReasonForStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code int
		want lpscrape.FailureReason
	}{
		{200, ""},
		{301, ""},
		{403, lpscrape.ReasonBlocked},
		{429, lpscrape.ReasonBlocked},
		{503, lpscrape.ReasonBlocked},
		{404, lpscrape.ReasonClientError},
		{410, lpscrape.ReasonClientError},
		{500, lpscrape.ReasonServerError},
		{502, lpscrape.ReasonServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, lpscrape.ReasonForStatus(tt.code), "status %d", tt.code)
	}
}
