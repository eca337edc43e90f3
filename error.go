package lpscrape

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Application error codes.
const (
	ECANCELED = "canceled"
	EEMPTY    = "empty_document"
	EEXTRACT  = "extraction_failed"
	EFETCH    = "fetch_failed"
	EINTERNAL = "internal"
	EINVALID  = "invalid"
	ENOTFOUND = "not_found"
)

// Error represents an application-specific error. Application errors can be
// unwrapped by the caller to extract out the code & message.
type Error struct {
	Code    string
	Message string
}

// Error implements the error interface. Not used by the application otherwise.
func (e *Error) Error() string {
	return fmt.Sprintf("lpscrape error: code=%s message=%s", e.Code, e.Message)
}

// Errorf is a helper function to return an Error with a given code and
// formatted message.
func Errorf(code string, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// ErrorCode unwraps an application error and returns its code.
// Pipeline errors map to their stage codes even when an attempt wrapped a
// context error. A bare context error, or a fetch whose last attempt was
// canceled, maps to ECANCELED.
// Non-application errors always return EINTERNAL.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	var fetchErr *FetchError
	var prepErr *PreprocessError
	var extErr *ExtractionError
	switch {
	case errors.As(err, &e):
		return e.Code
	case errors.As(err, &fetchErr):
		if fetchErr.Reason() == ReasonCanceled {
			return ECANCELED
		}
		return EFETCH
	case errors.As(err, &prepErr):
		return EEMPTY
	case errors.As(err, &extErr):
		return EEXTRACT
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ECANCELED
	}
	return EINTERNAL
}

// ErrorMessage unwraps an application error and returns its message.
// Non-application errors always return "Internal error.".
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if ErrorCode(err) != EINTERNAL {
		return err.Error()
	}
	return "Internal error."
}

// FailureReason classifies why a single fetch attempt failed.
type FailureReason string

// Failure reasons reported by fetch strategies.
const (
	ReasonTimeout     FailureReason = "timeout"
	ReasonBlocked     FailureReason = "blocked"
	ReasonNetwork     FailureReason = "network"
	ReasonClientError FailureReason = "client_error"
	ReasonServerError FailureReason = "server_error"
	ReasonCanceled    FailureReason = "canceled"
)

// Retryable reports whether another attempt with the same strategy may
// succeed. Client errors and caller cancellation are final.
func (r FailureReason) Retryable() bool {
	switch r {
	case ReasonTimeout, ReasonBlocked, ReasonNetwork, ReasonServerError:
		return true
	}
	return false
}

// ReasonForStatus classifies an HTTP response status. Statuses that bot
// protection commonly answers with count as blocked. It returns "" for
// statuses below 400.
func ReasonForStatus(code int) FailureReason {
	switch {
	case code == 403, code == 429, code == 503:
		return ReasonBlocked
	case code >= 500:
		return ReasonServerError
	case code >= 400:
		return ReasonClientError
	}
	return ""
}

// StrategyError describes one failed fetch attempt by one strategy.
type StrategyError struct {
	Strategy   Strategy
	Reason     FailureReason
	StatusCode int    // HTTP status when a response was received
	Signal     string // block signal when Reason is ReasonBlocked
	Err        error
}

func (e *StrategyError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s", e.Strategy, e.Reason)
	if e.StatusCode != 0 {
		fmt.Fprintf(&sb, " (HTTP %d)", e.StatusCode)
	}
	if e.Signal != "" {
		fmt.Fprintf(&sb, " (%s)", e.Signal)
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

func (e *StrategyError) Unwrap() error { return e.Err }

// FetchError is returned once every fetch strategy has been exhausted.
// It carries the failure of each attempted strategy in order.
type FetchError struct {
	URL      string
	Attempts []*StrategyError
}

func (e *FetchError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = a.Error()
	}
	return fmt.Sprintf("fetch %s failed: %s", e.URL, strings.Join(parts, "; "))
}

// Unwrap exposes every attempt to errors.Is and errors.As.
func (e *FetchError) Unwrap() []error {
	errs := make([]error, len(e.Attempts))
	for i, a := range e.Attempts {
		errs[i] = a
	}
	return errs
}

// Reason returns the failure reason of the last attempt.
func (e *FetchError) Reason() FailureReason {
	if len(e.Attempts) == 0 {
		return ""
	}
	return e.Attempts[len(e.Attempts)-1].Reason
}

// LastStrategy returns the last strategy that was attempted.
func (e *FetchError) LastStrategy() Strategy {
	if len(e.Attempts) == 0 {
		return ""
	}
	return e.Attempts[len(e.Attempts)-1].Strategy
}

// PreprocessError is returned when a fetched page yields no usable text.
type PreprocessError struct {
	URL    string
	Reason string
}

func (e *PreprocessError) Error() string {
	if e.URL == "" {
		return "preprocess: " + e.Reason
	}
	return fmt.Sprintf("preprocess %s: %s", e.URL, e.Reason)
}

// ExtractionFailure classifies why the model produced no record.
type ExtractionFailure string

// Extraction failure kinds.
const (
	ExtractModelCall     ExtractionFailure = "model_call"
	ExtractEmptyResponse ExtractionFailure = "empty_response"
	ExtractUnparseable   ExtractionFailure = "unparseable"
)

// ExtractionError is returned when the model call fails or its response
// cannot be decoded into an object. A decoded but incomplete response is
// not an error.
type ExtractionError struct {
	Reason   ExtractionFailure
	Attempts int
	Err      error
}

func (e *ExtractionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("extraction failed: %s", e.Reason)
	}
	return fmt.Sprintf("extraction failed: %s: %v", e.Reason, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Stage names a step of the extraction pipeline.
type Stage string

// Pipeline stages.
const (
	StageFetch      Stage = "fetch"
	StagePreprocess Stage = "preprocess"
	StageExtract    Stage = "extract"
	StageStore      Stage = "store"
)

// StageError is the caller-visible failure of an extraction request. It
// names the stage that failed and the last fetch strategy attempted.
type StageError struct {
	URL      string
	Stage    Stage
	Strategy Strategy
	Err      error
}

func (e *StageError) Error() string {
	if e.Strategy == "" {
		return fmt.Sprintf("%s stage failed for %s: %v", e.Stage, e.URL, e.Err)
	}
	return fmt.Sprintf("%s stage failed for %s (strategy %s): %v", e.Stage, e.URL, e.Strategy, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
