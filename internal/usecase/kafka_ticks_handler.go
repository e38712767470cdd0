package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"OptionScan/internal/domain/models"
	domrepo "OptionScan/internal/domain/repository"
	mid "OptionScan/internal/middleware"
	pkgkafka "OptionScan/pkg/kafka"
)

// KafkaTicksHandler feeds tick messages from Kafka into the tick pipeline.
type KafkaTicksHandler struct {
	topic   string
	pipe    *mid.TickPipeline
	metrics domrepo.Metrics
}

func NewKafkaTicksHandler(topic string, pipe *mid.TickPipeline, metrics domrepo.Metrics) *KafkaTicksHandler {
	return &KafkaTicksHandler{topic: topic, pipe: pipe, metrics: metrics}
}

func (h *KafkaTicksHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, t, c, v}; t in seconds or milliseconds
func (h *KafkaTicksHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Symbol string  `json:"symbol"`
		T      int64   `json:"t"`
		C      float64 `json:"c"`
		V      float64 `json:"v"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("%w: decode tick: %v", pkgkafka.ErrSkipRetry, err)
	}
	if m.T > 1e11 { // ms
		m.T = m.T / 1000
	}
	h.metrics.RecordLatency("ingest_e2e", time.Since(time.Unix(m.T, 0)).Seconds())

	err := h.pipe.Process(ctx, &models.Tick{
		Symbol:    m.Symbol,
		Timestamp: m.T,
		Price:     m.C,
		Volume:    m.V,
	})
	if errors.Is(err, mid.ErrInvalidTick) {
		return fmt.Errorf("%w: %v", pkgkafka.ErrSkipRetry, err)
	}
	return err
}

var _ pkgkafka.MessageHandler = (*KafkaTicksHandler)(nil)
