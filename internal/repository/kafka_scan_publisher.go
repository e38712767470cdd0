package repository

import (
	"context"
	"time"

	"OptionScan/internal/domain/models"
	"OptionScan/internal/domain/repository"
	pkgkafka "OptionScan/pkg/kafka"
)

// ScanEvent is the record published for every completed scan.
type ScanEvent struct {
	ScanID       string    `json:"scanId"`
	Ticker       string    `json:"ticker"`
	RiskProfile  string    `json:"riskProfile"`
	CurrentPrice float64   `json:"currentPrice"`
	Estimated    bool      `json:"estimated"`
	StrategyIDs  []string  `json:"strategyIds"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewScanEvent flattens a scan result into its event form.
func NewScanEvent(res *models.ScanResult) ScanEvent {
	ids := make([]string, len(res.Strategies))
	for i, s := range res.Strategies {
		ids[i] = s.ID
	}
	return ScanEvent{
		ScanID:       res.ScanID,
		Ticker:       res.Ticker,
		RiskProfile:  string(res.RiskProfile),
		CurrentPrice: res.CurrentPrice,
		Estimated:    res.Quote.Estimated,
		StrategyIDs:  ids,
		Timestamp:    res.GeneratedAt,
	}
}

// KafkaScanPublisher implements ScanPublisher for Kafka, keyed by ticker.
type KafkaScanPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaScanPublisher(producer *pkgkafka.Producer, topic string) *KafkaScanPublisher {
	return &KafkaScanPublisher{producer: producer, topic: topic}
}

func (p *KafkaScanPublisher) Topic() string { return p.topic }

func (p *KafkaScanPublisher) PublishScan(ctx context.Context, res *models.ScanResult) error {
	return p.producer.Publish(ctx, p.topic, []byte(res.Ticker), NewScanEvent(res))
}

func (p *KafkaScanPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NopScanPublisher drops every scan. Used when the producer is disabled.
type NopScanPublisher struct{}

func (NopScanPublisher) PublishScan(context.Context, *models.ScanResult) error { return nil }
func (NopScanPublisher) Close() error                                          { return nil }

var (
	_ repository.ScanPublisher = (*KafkaScanPublisher)(nil)
	_ repository.ScanPublisher = NopScanPublisher{}
)
