package usecase

import (
	"context"
	"encoding/json"
	"time"

	"MacroPulse/internal/domain/models"
	domrepo "MacroPulse/internal/domain/repository"
	pkgkafka "MacroPulse/pkg/kafka"
)

// KafkaSamplesHandler consumes indicator samples from a Kafka topic and
// feeds them into the sample sink, alongside the WebSocket path.
type KafkaSamplesHandler struct {
	topic   string
	sink    SampleSink
	metrics domrepo.Metrics
}

func NewKafkaSamplesHandler(topic string, sink SampleSink, metrics domrepo.Metrics) *KafkaSamplesHandler {
	return &KafkaSamplesHandler{topic: topic, sink: sink, metrics: metrics}
}

func (h *KafkaSamplesHandler) Topic() string { return h.topic }

// incoming message schema: {indicator, t, v, conf, source}
func (h *KafkaSamplesHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Indicator string  `json:"indicator"`
		T         int64   `json:"t"`
		V         float64 `json:"v"`
		Conf      float64 `json:"conf"`
		Source    string  `json:"source"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.T > 1e11 { // ms
		m.T = m.T / 1000
	}
	if m.Source == "" {
		m.Source = "kafka"
	}

	err := h.sink.Process(ctx, &models.IndicatorSample{
		Symbol:     m.Indicator,
		Timestamp:  time.Unix(m.T, 0),
		Value:      m.V,
		Confidence: m.Conf,
		Source:     m.Source,
	})
	if err != nil {
		h.metrics.RecordError("consumer_sink")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaSamplesHandler)(nil)
