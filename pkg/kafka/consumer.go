package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	applogger "MacroPulse/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// MessageHandler processes payloads from one topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// ConsumerConfig holds reader settings.
type ConsumerConfig struct {
	Brokers    []string
	GroupID    string
	RetryMax   int
	BackoffMin time.Duration
	BackoffMax time.Duration
	DLQTopic   string
	MinBytes   int
	MaxBytes   int
}

// Consumer reads the samples topic and feeds the registered handler.
// Messages are handled in order; failed ones go to the DLQ after retries.
type Consumer struct {
	cfg      ConsumerConfig
	logger   *applogger.Logger
	handler  MessageHandler
	reader   *kafka.Reader
	dlq      *kafka.Writer
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewConsumer creates a consumer. A handler must be registered before Start.
func NewConsumer(lgr *applogger.Logger, cfg ConsumerConfig) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if cfg.GroupID == "" {
		cfg.GroupID = "macropulse"
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 3
	}
	if cfg.BackoffMin <= 0 {
		cfg.BackoffMin = 50 * time.Millisecond
	}
	if cfg.BackoffMax < cfg.BackoffMin {
		cfg.BackoffMax = 2 * time.Second
	}
	if cfg.MinBytes <= 0 {
		cfg.MinBytes = 10e3
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10e6
	}

	c := &Consumer{
		cfg:      cfg,
		logger:   lgr,
		stopChan: make(chan struct{}),
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.LeastBytes{}}
	}
	initConsumerMetrics()
	return c, nil
}

// RegisterHandler sets the handler for its topic. Later registrations for
// the same consumer are ignored.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	if c.handler != nil {
		c.logger.Warn("kafka handler already registered",
			applogger.String("topic", c.handler.Topic()))
		return
	}
	c.handler = handler
}

// Start begins consuming in the background.
func (c *Consumer) Start() error {
	if c.handler == nil {
		return fmt.Errorf("no handler registered")
	}

	c.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.cfg.Brokers,
		Topic:    c.handler.Topic(),
		GroupID:  c.cfg.GroupID,
		MinBytes: c.cfg.MinBytes,
		MaxBytes: c.cfg.MaxBytes,
	})

	c.wg.Add(1)
	go c.consumeLoop()

	c.logger.Info("kafka consumer started",
		applogger.String("topic", c.handler.Topic()),
		applogger.String("group", c.cfg.GroupID))
	return nil
}

// Stop shuts the consumer down, waiting up to the context deadline.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		close(c.stopChan)

		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-ctx.Done():
			stopErr = fmt.Errorf("stop kafka consumer: %w", ctx.Err())
		case <-done:
		}

		if c.reader != nil {
			if err := c.reader.Close(); err != nil {
				c.logger.Warn("kafka reader close", applogger.Error(err))
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				c.logger.Warn("kafka dlq close", applogger.Error(err))
			}
		}
	})
	return stopErr
}

func (c *Consumer) consumeLoop() {
	defer c.wg.Done()

	topic := c.handler.Topic()
	for {
		select {
		case <-c.stopChan:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		msg, err := c.reader.FetchMessage(ctx)
		cancel()
		if err != nil {
			if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
				c.logger.Warn("kafka fetch", applogger.String("topic", topic), applogger.Error(err))
			}
			continue
		}

		c.handleMessage(topic, msg)
	}
}

// handleMessage retries with jittered backoff, routes exhausted messages to
// the DLQ, and commits so a poison message cannot wedge the partition.
func (c *Consumer) handleMessage(topic string, msg kafka.Message) {
	start := time.Now()

	var err error
	for attempt := 1; ; attempt++ {
		err = c.safeHandle(msg.Value)
		if err == nil || attempt > c.cfg.RetryMax {
			break
		}
		select {
		case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)):
		case <-c.stopChan:
			return
		}
	}

	if err != nil {
		consumerErrorsTotal.WithLabelValues(topic).Inc()
		c.logger.Error("kafka handle failed",
			applogger.String("topic", topic),
			applogger.Int("partition", msg.Partition),
			applogger.Error(err))
		if c.dlq != nil {
			dlqMsg := kafka.Message{
				Topic:   c.cfg.DLQTopic,
				Value:   msg.Value,
				Time:    time.Now(),
				Headers: []kafka.Header{{Key: "source_topic", Value: []byte(topic)}},
			}
			if dlqErr := c.dlq.WriteMessages(context.Background(), dlqMsg); dlqErr != nil {
				c.logger.Error("kafka dlq write", applogger.Error(dlqErr))
			}
		}
	}

	if err == nil || c.dlq != nil {
		c.commit(msg)
	}
	consumerHandleSeconds.WithLabelValues(topic).Observe(time.Since(start).Seconds())
}

func (c *Consumer) safeHandle(data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return c.handler.Handle(context.Background(), data)
}

func (c *Consumer) commit(msg kafka.Message) {
	for attempt := 1; attempt <= 3; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := c.reader.CommitMessages(ctx, msg)
		cancel()
		if err == nil {
			return
		}
		if attempt == 3 {
			c.logger.Error("kafka commit failed", applogger.Error(err))
			return
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	exp := min * time.Duration(1<<uint(attempt-1))
	if exp > max || exp <= 0 {
		exp = max
	}
	jitter := time.Duration(rand.Int63n(int64(exp)/2 + 1))
	return exp - jitter
}

var (
	consumerErrorsTotal   *prometheus.CounterVec
	consumerHandleSeconds *prometheus.HistogramVec
	consumerMetricsOnce   sync.Once
)

func initConsumerMetrics() {
	consumerMetricsOnce.Do(func() {
		consumerErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "macropulse_kafka_consumer_errors_total", Help: "Messages that exhausted retries"},
			[]string{"topic"},
		)
		consumerHandleSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{Name: "macropulse_kafka_consumer_handle_seconds", Help: "Handling time per message"},
			[]string{"topic"},
		)
	})
}
