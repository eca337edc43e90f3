package mock

import (
	"context"

	"github.com/fwojciec/lpscrape"
)

var _ lpscrape.ExtractionService = (*ExtractionService)(nil)

// ExtractionService is a mock implementation of lpscrape.ExtractionService.
type ExtractionService struct {
	ExtractFn func(ctx context.Context, req *lpscrape.ExtractRequest) (*lpscrape.ExtractResponse, error)
}

func (s *ExtractionService) Extract(ctx context.Context, req *lpscrape.ExtractRequest) (*lpscrape.ExtractResponse, error) {
	return s.ExtractFn(ctx, req)
}
