// Package tiktoken counts tokens for OpenAI-compatible models using
// github.com/pkoukk/tiktoken-go.
package tiktoken

import (
	"context"
	"sync"

	"github.com/fwojciec/lpscrape"
	"github.com/pkoukk/tiktoken-go"
)

// FallbackEncoding is used for models tiktoken does not know.
const FallbackEncoding = "cl100k_base"

var _ lpscrape.TokenCounter = (*TokenCounter)(nil)

// TokenCounter counts tokens with a tiktoken encoding. The encoding is
// loaded on first use.
type TokenCounter struct {
	model string

	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
}

// NewTokenCounter creates a TokenCounter for model.
func NewTokenCounter(model string) *TokenCounter {
	return &TokenCounter{model: model}
}

// CountTokens counts the number of tokens in text.
func (tc *TokenCounter) CountTokens(ctx context.Context, text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	tc.once.Do(tc.load)
	if tc.err != nil {
		return 0, tc.err
	}
	return len(tc.enc.Encode(text, nil, nil)), nil
}

func (tc *TokenCounter) load() {
	enc, err := tiktoken.EncodingForModel(tc.model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(FallbackEncoding)
	}
	if err != nil {
		tc.err = lpscrape.Errorf(lpscrape.EINTERNAL, "load tiktoken encoding: %v", err)
		return
	}
	tc.enc = enc
}
