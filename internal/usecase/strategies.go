package usecase

import (
	"context"
	"strings"
	"time"

	"OptionScan/internal/domain/models"
	domrepo "OptionScan/internal/domain/repository"
)

// StrategyService serves catalog lookups and strategy exports.
type StrategyService struct {
	catalog domrepo.StrategyCatalog
	now     func() time.Time
}

func NewStrategyService(catalog domrepo.StrategyCatalog) *StrategyService {
	return &StrategyService{catalog: catalog, now: time.Now}
}

// Get returns the template with id, case-insensitively.
func (s *StrategyService) Get(ctx context.Context, id string) (models.Strategy, error) {
	return s.catalog.Get(ctx, strings.ToLower(strings.TrimSpace(id)))
}

// Export stamps a list of strategies for download.
func (s *StrategyService) Export(strategies []models.Strategy) models.ExportResponse {
	if strategies == nil {
		strategies = []models.Strategy{}
	}
	return models.ExportResponse{
		Strategies:  strategies,
		GeneratedAt: s.now().UTC(),
		TotalCount:  len(strategies),
	}
}
