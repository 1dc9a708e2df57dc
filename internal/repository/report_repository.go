package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"MacroPulse/internal/domain/models"
	"MacroPulse/internal/domain/repository"
	pkgkafka "MacroPulse/pkg/kafka"
)

// ClickHouseReportStore implements ReportStore for ClickHouse. The core
// only writes on this path; reads serve operator/backfill queries.
type ClickHouseReportStore struct {
	db    *sql.DB
	table string
}

// NewClickHouseReportStore creates ClickHouse report storage.
func NewClickHouseReportStore(db *sql.DB, table string) repository.ReportStore {
	return &ClickHouseReportStore{db: db, table: table}
}

func (s *ClickHouseReportStore) Init(ctx context.Context) error {
	return nil // Schema init in pkg
}

func (s *ClickHouseReportStore) Store(ctx context.Context, r *models.EngineReport) error {
	return s.StoreBatch(ctx, []*models.EngineReport{r})
}

func (s *ClickHouseReportStore) StoreBatch(ctx context.Context, rs []*models.EngineReport) error {
	if len(rs) == 0 {
		return nil
	}
	// Multi-row VALUES insert to reduce round-trips.
	const chunkSize = 500
	for start := 0; start < len(rs); start += chunkSize {
		end := start + chunkSize
		if end > len(rs) {
			end = len(rs)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*9)
		for _, r := range rs[start:end] {
			if r == nil || r.EngineID == "" {
				continue
			}
			subs, err := json.Marshal(r.SubMetrics)
			if err != nil {
				return fmt.Errorf("marshal sub-metrics: %w", err)
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				r.Timestamp,
				r.EngineID,
				r.PrimaryMetric.Value,
				r.PrimaryMetric.Change,
				string(r.Signal),
				string(r.Regime),
				r.Confidence,
				r.Analysis,
				string(subs),
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf(
			"INSERT INTO %s (ts, engine_id, value, change, signal, regime, confidence, analysis, sub_metrics) VALUES %s",
			s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert reports: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseReportStore) Query(ctx context.Context, engineID string, from, to time.Time, limit int) ([]*models.EngineReport, error) {
	q := fmt.Sprintf(
		"SELECT ts, engine_id, value, change, signal, regime, confidence, analysis, sub_metrics FROM %s WHERE engine_id = ? AND ts >= ? AND ts <= ? ORDER BY ts DESC LIMIT ?",
		s.table)
	rows, err := s.db.QueryContext(ctx, q, engineID, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var out []*models.EngineReport
	for rows.Next() {
		var (
			r       models.EngineReport
			signal  string
			regime  string
			subsRaw string
		)
		if err := rows.Scan(&r.Timestamp, &r.EngineID, &r.PrimaryMetric.Value, &r.PrimaryMetric.Change,
			&signal, &regime, &r.Confidence, &r.Analysis, &subsRaw); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		r.Signal = models.Signal(signal)
		r.Regime = models.Regime(regime)
		if subsRaw != "" {
			if err := json.Unmarshal([]byte(subsRaw), &r.SubMetrics); err != nil {
				return nil, fmt.Errorf("unmarshal sub-metrics: %w", err)
			}
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *ClickHouseReportStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseReportStore) Close() error {
	return nil // Managed by pkg
}

// KafkaReportPublisher implements ReportPublisher for Kafka.
type KafkaReportPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaReportPublisher creates a Kafka report publisher.
func NewKafkaReportPublisher(producer *pkgkafka.Producer, topic string) repository.ReportPublisher {
	return &KafkaReportPublisher{producer: producer, topic: topic}
}

func (p *KafkaReportPublisher) Publish(ctx context.Context, r *models.EngineReport) error {
	return p.producer.Publish(ctx, p.topic, []byte(r.EngineID), reportPayload(r))
}

func (p *KafkaReportPublisher) PublishBatch(ctx context.Context, rs []*models.EngineReport) error {
	if len(rs) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(rs))
	for i, r := range rs {
		msgs[i] = pkgkafka.Message{
			Key:   []byte(r.EngineID),
			Value: reportPayload(r),
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaReportPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

func reportPayload(r *models.EngineReport) map[string]interface{} {
	return map[string]interface{}{
		"engine_id":  r.EngineID,
		"ts":         r.Timestamp.Unix(),
		"value":      r.PrimaryMetric.Value,
		"change":     r.PrimaryMetric.Change,
		"signal":     string(r.Signal),
		"regime":     string(r.Regime),
		"confidence": r.Confidence,
	}
}
