package service

import "OptionScan/internal/domain/models"

// ScoreAdjuster derives the presented copy of a ranked strategy.
// It receives a copy and returns the adjusted value; it must not reorder or
// drop entries, and the returned confidence stays within [0, 100].
type ScoreAdjuster interface {
	Adjust(s models.Strategy) models.Strategy
}
