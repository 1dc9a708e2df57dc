// Package ingest holds the indicator ingestion clients: a WebSocket
// stream for push feeds and an HTTP fetcher for polled sources. Both
// sit behind the resilience primitives; engines only see SampleSets.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"MacroPulse/internal/domain/models"
	drepo "MacroPulse/internal/domain/repository"
	"MacroPulse/pkg/logger"

	"github.com/gorilla/websocket"
)

// StreamClient implements an IndicatorStream backed by a WebSocket feed.
type StreamClient struct {
	logger         *logger.Logger
	apiKey         string
	websocketURL   string
	indicators     []string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	conn      *websocket.Conn
	connected bool
}

// NewStream creates a WebSocket-backed IndicatorStream.
func NewStream(lgr *logger.Logger, apiKey, websocketURL string, indicators []string, reconnectDelay, pingInterval time.Duration) drepo.IndicatorStream {
	if reconnectDelay <= 0 {
		reconnectDelay = 3 * time.Second
	}
	if pingInterval <= 0 {
		pingInterval = 20 * time.Second
	}
	return &StreamClient{
		logger:         lgr,
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		indicators:     indicators,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// Connect establishes the WebSocket connection.
func (c *StreamClient) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", c.websocketURL, c.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("feed connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	c.logger.Info("indicator feed connected")
	return nil
}

// Subscribe subscribes to the configured indicators.
func (c *StreamClient) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("feed not connected")
	}
	for _, ind := range c.indicators {
		msg := map[string]string{"type": "subscribe", "indicator": ind}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", ind, err)
		}
		c.logger.Debug("feed subscribed", logger.String("indicator", ind))
	}
	return nil
}

type feedPoint struct {
	S string  `json:"s"`
	V float64 `json:"v"`
	C float64 `json:"c"`
	T int64   `json:"t"` // ms
}

type feedMessage struct {
	Type string      `json:"type"`
	Data []feedPoint `json:"data"`
}

// Read streams indicator samples and errors until ctx is done.
func (c *StreamClient) Read(ctx context.Context) (<-chan *models.IndicatorSample, <-chan error) {
	samples := make(chan *models.IndicatorSample, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(samples)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("feed conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("feed read: %w", err)
					return
				}
				var m feedMessage
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore non-data frames
					continue
				}
				if m.Type != "indicator" {
					continue
				}
				for _, d := range m.Data {
					sample := &models.IndicatorSample{
						Symbol:     d.S,
						Timestamp:  time.UnixMilli(d.T),
						Value:      d.V,
						Confidence: d.C,
						Source:     "stream",
					}
					select {
					case samples <- sample:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return samples, errs
}

// Reconnect closes and reconnects.
func (c *StreamClient) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *StreamClient) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *StreamClient) IsConnected() bool { return c.connected }
