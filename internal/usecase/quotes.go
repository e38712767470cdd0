package usecase

import (
	"context"
	"errors"
	"fmt"

	"OptionScan/internal/domain/models"
	"OptionScan/pkg/util"
)

// QuoteLookup is the part of the quote resolver the quote endpoint uses.
type QuoteLookup interface {
	Resolve(ctx context.Context, ticker string) (models.Quote, error)
	Estimate(ticker string) models.Quote
}

// QuoteService answers single-ticker quote requests.
type QuoteService struct {
	quotes    QuoteLookup
	synthetic bool
}

// NewQuoteService builds the service; with synthetic set, unknown tickers get
// a random estimated quote instead of models.ErrQuoteNotFound.
func NewQuoteService(quotes QuoteLookup, synthetic bool) *QuoteService {
	return &QuoteService{quotes: quotes, synthetic: synthetic}
}

func (s *QuoteService) Quote(ctx context.Context, ticker string) (models.Quote, error) {
	ticker = util.NormalizeTicker(ticker)
	if ticker == "" {
		return models.Quote{}, fmt.Errorf("%w: ticker is required", models.ErrInvalidArgument)
	}
	q, err := s.quotes.Resolve(ctx, ticker)
	if errors.Is(err, models.ErrQuoteNotFound) && s.synthetic {
		return s.quotes.Estimate(ticker), nil
	}
	return q, err
}
