package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/gridpulse/go-dre/internal/infrastructure/redpanda"
	"github.com/gridpulse/go-dre/internal/observability/metrics"
	"github.com/gridpulse/go-dre/pkg/workerpool"
)

// OutboxEntry is one unpublished business event.
type OutboxEntry struct {
	ID            int64
	EventType     string
	Topic         string
	PartitionKey  string
	Payload       json.RawMessage
	CorrelationID *string
	CreatedAt     time.Time
	RetryCount    int
	LastError     *string
}

// RelayConfig holds configuration for the outbox relay.
type RelayConfig struct {
	// BatchSize is the number of entries fetched per poll.
	BatchSize int
	// PollInterval is how often the outbox is polled.
	PollInterval time.Duration
	// MaxRetries is the publish ceiling before an entry is dead-lettered.
	MaxRetries int
	// Workers bounds concurrent publishes within one batch.
	Workers int
	// MaintenanceInterval is how often exhausted entries are dead-lettered
	// and old published rows pruned.
	MaintenanceInterval time.Duration
	// RetainPublished is how long published entries stay queryable before
	// the maintenance pass deletes them.
	RetainPublished time.Duration
}

// DefaultRelayConfig returns the production relay policy.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		BatchSize:           100,
		PollInterval:        5 * time.Second,
		MaxRetries:          5,
		Workers:             4,
		MaintenanceInterval: 1 * time.Hour,
		RetainPublished:     7 * 24 * time.Hour,
	}
}

// Publisher sends one event to the bus. The redpanda producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

// Relay drains the audit outbox onto the event bus. A single advisory lock
// keeps concurrent relay instances from double-publishing.
type Relay struct {
	store     *Store
	config    RelayConfig
	publisher Publisher
	logger    *zap.Logger
	tracer    trace.Tracer
	metrics   *metrics.Metrics
	pool      *workerpool.Pool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// relayLockID is the advisory lock shared by every relay instance.
const relayLockID = int64(730221004)

// NewRelay creates the outbox relay.
func NewRelay(store *Store, publisher Publisher, cfg RelayConfig, logger *zap.Logger) (*Relay, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultRelayConfig().BatchSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultRelayConfig().PollInterval
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultRelayConfig().Workers
	}
	if cfg.MaintenanceInterval <= 0 {
		cfg.MaintenanceInterval = DefaultRelayConfig().MaintenanceInterval
	}
	if cfg.RetainPublished <= 0 {
		cfg.RetainPublished = DefaultRelayConfig().RetainPublished
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Relay{
		store:     store,
		config:    cfg,
		publisher: publisher,
		logger:    logger,
		tracer:    otel.Tracer("audit-relay"),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	pool, err := workerpool.New(workerpool.Config{
		Workers:                 cfg.Workers,
		QueueSize:               cfg.BatchSize,
		GracefulShutdownTimeout: 10 * time.Second,
	}, r.publishTask, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create relay worker pool: %w", err)
	}
	r.pool = pool
	return r, nil
}

// WithMetrics attaches the Prometheus registry bundle.
func (r *Relay) WithMetrics(m *metrics.Metrics) *Relay {
	r.metrics = m
	return r
}

// Start begins polling. Stop blocks until the loop drains.
func (r *Relay) Start() {
	r.pool.Start()
	go r.pollLoop()
	r.logger.Info("audit relay started",
		zap.Int("batch_size", r.config.BatchSize),
		zap.Duration("poll_interval", r.config.PollInterval))
}

// Stop gracefully stops the relay.
func (r *Relay) Stop() {
	r.cancel()
	<-r.done
	r.pool.Stop()
	r.logger.Info("audit relay stopped")
}

func (r *Relay) pollLoop() {
	defer close(r.done)

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()
	maintenance := time.NewTicker(r.config.MaintenanceInterval)
	defer maintenance.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.processBatch()
		case <-maintenance.C:
			r.maintain()
		}
	}
}

// maintain dead-letters exhausted entries and prunes published rows past
// the retention window.
func (r *Relay) maintain() {
	ctx, span := r.tracer.Start(r.ctx, "relay_maintain")
	defer span.End()

	if n, err := r.DeadLetterExhausted(ctx); err != nil {
		span.RecordError(err)
		r.logger.Error("dead-letter sweep failed", zap.Error(err))
	} else if n > 0 {
		r.logger.Warn("entries dead-lettered", zap.Int64("count", n))
	}

	if n, err := r.CleanupPublished(ctx, r.config.RetainPublished); err != nil {
		span.RecordError(err)
		r.logger.Error("outbox cleanup failed", zap.Error(err))
	} else if n > 0 {
		r.logger.Info("published entries pruned", zap.Int64("count", n))
	}
}

func (r *Relay) processBatch() {
	ctx, span := r.tracer.Start(r.ctx, "relay_process_batch")
	defer span.End()

	var acquired bool
	if err := r.store.pool.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", relayLockID).Scan(&acquired); err != nil || !acquired {
		return
	}
	defer r.store.pool.Exec(ctx, "SELECT pg_advisory_unlock($1)", relayLockID)

	entries, err := r.fetchUnpublished(ctx)
	if err != nil {
		r.logger.Error("fetch outbox entries", zap.Error(err))
		span.RecordError(err)
		return
	}
	r.updatePendingGauge(ctx)
	if len(entries) == 0 {
		return
	}
	span.SetAttributes(attribute.Int("batch_size", len(entries)))

	results := make(chan *workerpool.Result, len(entries))
	submitted := 0
	for _, entry := range entries {
		task := &workerpool.Task{
			ID:      strconv.FormatInt(entry.ID, 10),
			Payload: entry,
			Context: ctx,
		}
		if err := r.pool.Submit(task); err != nil {
			r.logger.Warn("relay queue full, deferring entry",
				zap.Int64("id", entry.ID))
			continue
		}
		submitted++
	}
	for i := 0; i < submitted; i++ {
		select {
		case res := <-r.pool.Results():
			results <- res
		case <-r.ctx.Done():
			return
		}
	}
	close(results)

	published := 0
	for res := range results {
		if res.Success {
			published++
		}
	}
	if published > 0 {
		r.logger.Info("outbox batch published",
			zap.Int("published", published),
			zap.Int("fetched", len(entries)))
	}
}

// publishTask publishes one entry and records the outcome in the outbox.
func (r *Relay) publishTask(ctx context.Context, task *workerpool.Task) *workerpool.Result {
	entry := task.Payload.(*OutboxEntry)

	key := entry.PartitionKey
	if err := r.publisher.Publish(ctx, entry.Topic, key, entry.Payload); err != nil {
		r.recordFailure(ctx, entry, err)
		return &workerpool.Result{TaskID: task.ID, Success: false, Error: err}
	}

	if _, err := r.store.pool.Exec(ctx,
		"UPDATE audit_outbox SET published_at = NOW() WHERE id = $1", entry.ID); err != nil {
		r.logger.Error("mark entry published", zap.Int64("id", entry.ID), zap.Error(err))
		return &workerpool.Result{TaskID: task.ID, Success: false, Error: err}
	}

	if r.metrics != nil {
		r.metrics.AuditEventsPublished.Inc()
	}
	return &workerpool.Result{TaskID: task.ID, Success: true}
}

func (r *Relay) fetchUnpublished(ctx context.Context) ([]*OutboxEntry, error) {
	query := `
		SELECT id, event_type, topic, partition_key, payload,
		       correlation_id, created_at, retry_count, last_error
		FROM audit_outbox
		WHERE published_at IS NULL
		  AND retry_count < $1
		ORDER BY created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`
	rows, err := r.store.pool.Query(ctx, query, r.config.MaxRetries, r.config.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []*OutboxEntry
	for rows.Next() {
		entry := &OutboxEntry{}
		if err := rows.Scan(
			&entry.ID, &entry.EventType, &entry.Topic, &entry.PartitionKey,
			&entry.Payload, &entry.CorrelationID, &entry.CreatedAt,
			&entry.RetryCount, &entry.LastError,
		); err != nil {
			return nil, fmt.Errorf("scan outbox: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *Relay) recordFailure(ctx context.Context, entry *OutboxEntry, cause error) {
	query := `
		UPDATE audit_outbox
		SET retry_count = retry_count + 1, last_error = $1
		WHERE id = $2
	`
	if _, err := r.store.pool.Exec(ctx, query, cause.Error(), entry.ID); err != nil {
		r.logger.Error("update retry count", zap.Int64("id", entry.ID), zap.Error(err))
	}
}

// DeadLetterExhausted publishes entries past the retry ceiling to the
// dead-letter topic and marks them published so they stop cycling.
func (r *Relay) DeadLetterExhausted(ctx context.Context) (int64, error) {
	entries, err := r.fetchExhausted(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	for _, entry := range entries {
		wrapped, _ := json.Marshal(map[string]interface{}{
			"original_topic": entry.Topic,
			"event_type":     entry.EventType,
			"payload":        entry.Payload,
			"retry_count":    entry.RetryCount,
			"last_error":     entry.LastError,
			"created_at":     entry.CreatedAt,
		})
		if err := r.publisher.Publish(ctx, redpanda.TopicDeadLetter, entry.PartitionKey, wrapped); err != nil {
			r.logger.Error("dead-letter publish failed", zap.Int64("id", entry.ID), zap.Error(err))
			continue
		}
		if _, err := r.store.pool.Exec(ctx,
			"UPDATE audit_outbox SET published_at = NOW() WHERE id = $1", entry.ID); err != nil {
			r.logger.Error("mark dead-lettered entry", zap.Int64("id", entry.ID), zap.Error(err))
			continue
		}
		count++
	}
	return count, nil
}

func (r *Relay) fetchExhausted(ctx context.Context) ([]*OutboxEntry, error) {
	query := `
		SELECT id, event_type, topic, partition_key, payload,
		       correlation_id, created_at, retry_count, last_error
		FROM audit_outbox
		WHERE published_at IS NULL
		  AND retry_count >= $1
		FOR UPDATE SKIP LOCKED
	`
	rows, err := r.store.pool.Query(ctx, query, r.config.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("query exhausted entries: %w", err)
	}
	defer rows.Close()

	var entries []*OutboxEntry
	for rows.Next() {
		entry := &OutboxEntry{}
		if err := rows.Scan(
			&entry.ID, &entry.EventType, &entry.Topic, &entry.PartitionKey,
			&entry.Payload, &entry.CorrelationID, &entry.CreatedAt,
			&entry.RetryCount, &entry.LastError,
		); err != nil {
			return nil, fmt.Errorf("scan exhausted entries: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// CleanupPublished removes old published entries.
func (r *Relay) CleanupPublished(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		DELETE FROM audit_outbox
		WHERE published_at IS NOT NULL
		  AND published_at < NOW() - $1::interval
	`
	result, err := r.store.pool.Exec(ctx, query, olderThan.String())
	if err != nil {
		return 0, fmt.Errorf("cleanup outbox: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *Relay) updatePendingGauge(ctx context.Context) {
	if r.metrics == nil {
		return
	}
	var pending int64
	if err := r.store.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM audit_outbox WHERE published_at IS NULL").Scan(&pending); err != nil {
		return
	}
	r.metrics.AuditOutboxPending.Set(float64(pending))
}
