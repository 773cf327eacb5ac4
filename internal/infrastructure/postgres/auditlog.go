// Package postgres provides the gateway's PostgreSQL persistence: the
// platform call log and the transactional outbox feeding the event bus.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/gridpulse/go-dre/internal/infrastructure/redpanda"
)

// Store persists platform call telemetry and business events. It backs
// both the client's usage tracker and the connector's event recorder.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

// NewStore connects to the audit database.
func NewStore(ctx context.Context, databaseURL string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect audit database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping audit database: %w", err)
	}

	return &Store{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("audit-store"),
	}, nil
}

// Pool exposes the underlying connection pool for components that share it.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Close releases the connection pool.
func (s *Store) Close() { s.pool.Close() }

// Track records one platform request or response. Failures are logged and
// swallowed: audit writes must never fail a customer-facing call.
func (s *Store) Track(ctx context.Context, level, message string, details map[string]interface{}, correlationID string) {
	ctx, span := s.tracer.Start(ctx, "audit_track",
		trace.WithAttributes(attribute.String("level", level)))
	defer span.End()

	payload, err := json.Marshal(details)
	if err != nil {
		s.logger.Error("marshal call-log details", zap.Error(err))
		return
	}

	query := `
		INSERT INTO api_call_log (level, message, details, correlation_id)
		VALUES ($1, $2, $3, $4)
	`
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.pool.Exec(ctx, query, level, message, payload, nullable(correlationID)); err != nil {
		span.RecordError(err)
		s.logger.Error("write call log", zap.String("message", message), zap.Error(err))
	}
}

// Record writes a business event into the outbox. The relay publishes it
// to the bus asynchronously, so a bus outage never blocks an enrollment.
func (s *Store) Record(ctx context.Context, eventType string, payload map[string]interface{}, correlationID string) error {
	ctx, span := s.tracer.Start(ctx, "audit_record",
		trace.WithAttributes(attribute.String("event_type", eventType)))
	defer span.End()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	query := `
		INSERT INTO audit_outbox (event_type, topic, partition_key, payload, correlation_id)
		VALUES ($1, $2, $3, $4, $5)
	`
	key := partitionKey(payload, correlationID)
	if _, err := s.pool.Exec(ctx, query, eventType, redpanda.TopicForEvent(eventType), key, body, nullable(correlationID)); err != nil {
		span.RecordError(err)
		return fmt.Errorf("write outbox entry: %w", err)
	}

	s.logger.Debug("event recorded",
		zap.String("event_type", eventType),
		zap.String("correlation_id", correlationID))
	return nil
}

// CallLogEntry is one row of the platform call log.
type CallLogEntry struct {
	ID            int64
	Level         string
	Message       string
	Details       json.RawMessage
	CorrelationID *string
	CreatedAt     time.Time
}

// RecentCalls returns the newest call-log rows, most recent first.
func (s *Store) RecentCalls(ctx context.Context, limit int) ([]CallLogEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `
		SELECT id, level, message, details, correlation_id, created_at
		FROM api_call_log
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query call log: %w", err)
	}
	defer rows.Close()

	var out []CallLogEntry
	for rows.Next() {
		var e CallLogEntry
		if err := rows.Scan(&e.ID, &e.Level, &e.Message, &e.Details, &e.CorrelationID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan call log: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// partitionKey picks a stable bus key so events for one submission land on
// one partition in order.
func partitionKey(payload map[string]interface{}, correlationID string) string {
	if k, ok := payload["idempotency_key"].(string); ok && k != "" {
		return k
	}
	if correlationID != "" {
		return correlationID
	}
	return "unkeyed"
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
