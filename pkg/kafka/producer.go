// Package kafka wraps segmentio/kafka-go for the report and sample topics.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// Message is one entry of a batch publish.
type Message struct {
	Key   []byte
	Value interface{}
}

// ProducerConfig holds writer settings.
type ProducerConfig struct {
	Brokers      []string
	Compression  string
	RequiredAcks int
	MaxAttempts  int
	BatchSize    int
	BatchBytes   int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
	Async        bool
	HashByKey    bool
}

// Producer publishes engine reports keyed by engine id.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a producer. HashByKey keeps per-engine ordering.
func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if cfg.RequiredAcks == 0 {
		cfg.RequiredAcks = -1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}

	bal := kafka.Balancer(&kafka.LeastBytes{})
	if cfg.HashByKey {
		bal = &kafka.Hash{}
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     bal,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:  parseCompression(cfg.Compression),
		MaxAttempts:  cfg.MaxAttempts,
		WriteTimeout: cfg.WriteTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		BatchSize:    cfg.BatchSize,
		BatchBytes:   int64(cfg.BatchBytes),
		BatchTimeout: cfg.BatchTimeout,
		Async:        cfg.Async,
	}

	initProducerMetrics()
	return &Producer{writer: writer}, nil
}

// Publish sends one message to the topic.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	v, err := encodeValue(value)
	if err != nil {
		return err
	}
	return p.write(ctx, topic, []kafka.Message{{Topic: topic, Key: key, Value: v, Time: time.Now()}})
}

// PublishBatch sends the messages in one writer call.
func (p *Producer) PublishBatch(ctx context.Context, topic string, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(messages))
	for _, m := range messages {
		v, err := encodeValue(m.Value)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{Topic: topic, Key: m.Key, Value: v, Time: time.Now()})
	}
	return p.write(ctx, topic, msgs)
}

func (p *Producer) write(ctx context.Context, topic string, msgs []kafka.Message) error {
	start := time.Now()
	err := p.writer.WriteMessages(ctx, msgs...)
	producerPublishSeconds.WithLabelValues(topic).Observe(time.Since(start).Seconds())
	if err != nil {
		producerErrorsTotal.WithLabelValues(topic).Inc()
		return fmt.Errorf("write %s: %w", topic, err)
	}
	producerMessagesTotal.WithLabelValues(topic).Add(float64(len(msgs)))
	return nil
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func encodeValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal value: %w", err)
		}
		return b, nil
	}
}

func parseCompression(s string) kafka.Compression {
	switch s {
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Gzip
	}
}

var (
	producerMessagesTotal  *prometheus.CounterVec
	producerErrorsTotal    *prometheus.CounterVec
	producerPublishSeconds *prometheus.HistogramVec
	producerMetricsOnce    sync.Once
)

func initProducerMetrics() {
	producerMetricsOnce.Do(func() {
		producerMessagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "macropulse_kafka_producer_messages_total", Help: "Messages published"},
			[]string{"topic"},
		)
		producerErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "macropulse_kafka_producer_errors_total", Help: "Producer errors"},
			[]string{"topic"},
		)
		producerPublishSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{Name: "macropulse_kafka_producer_publish_seconds", Help: "Publish latency", Buckets: prometheus.DefBuckets},
			[]string{"topic"},
		)
	})
}
