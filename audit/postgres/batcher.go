// Package postgres is a pgx-backed DispatchObserver: it persists one row
// per dispatched call for audit/replay purposes. A buffered channel feeds
// a single background goroutine that batches writes on a size-or-interval
// trigger and retries a failed batch with exponential backoff before
// giving up and logging.
package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oriys/corvus"
	"github.com/oriys/corvus/internal/logging"
)

const (
	defaultBatchSize     = 100
	defaultBufferSize    = 1000
	defaultFlushInterval = 500 * time.Millisecond
	defaultTimeout       = 5 * time.Second
	defaultMaxRetries    = 3
	defaultRetryInterval = 100 * time.Millisecond
)

// Record is one audited dispatch: an operation name, the contract it
// belongs to, whether it failed, and when.
type Record struct {
	Contract  string
	Operation string
	Kind      corvus.Kind
	Failed    bool
	Message   string
	At        time.Time
}

// BatcherConfig holds the batcher's buffering/retry tuning; every field
// left at zero falls back to a built-in default.
type BatcherConfig struct {
	BatchSize     int
	BufferSize    int
	FlushInterval time.Duration
	Timeout       time.Duration
	MaxRetries    int
	RetryInterval time.Duration
}

// Batcher is a corvus.DispatchObserver that asynchronously persists
// Records to Postgres. Observe never blocks the dispatch path: a full
// buffer drops the record and logs a warning rather than stalling a call.
type Batcher struct {
	pool          *pgxpool.Pool
	logger        *slog.Logger
	records       chan Record
	flushInterval time.Duration
	batchSize     int
	timeout       time.Duration
	maxRetries    int
	retryInterval time.Duration
	done          chan struct{}
}

// NewBatcher starts the background flush loop against pool. The caller
// owns pool's lifetime; Shutdown only stops the batcher's own goroutine.
func NewBatcher(pool *pgxpool.Pool, cfg BatcherConfig) *Batcher {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	retryInterval := cfg.RetryInterval
	if retryInterval <= 0 {
		retryInterval = defaultRetryInterval
	}

	b := &Batcher{
		pool:          pool,
		logger:        logging.Op(),
		records:       make(chan Record, bufferSize),
		flushInterval: flushInterval,
		batchSize:     batchSize,
		timeout:       timeout,
		maxRetries:    maxRetries,
		retryInterval: retryInterval,
		done:          make(chan struct{}),
	}
	go b.run()
	return b
}

// Observe implements corvus.DispatchObserver. Dispatcher calls this
// synchronously on the dispatch goroutine, so it must never block; its
// buffered-channel send with a drop on a full buffer keeps that promise.
func (b *Batcher) Observe(contract, operation string, failed bool, kind corvus.Kind, message string, elapsed time.Duration) {
	r := Record{
		Contract:  contract,
		Operation: operation,
		Kind:      kind,
		Failed:    failed,
		Message:   message,
		At:        timeNow(),
	}
	select {
	case b.records <- r:
	default:
		b.logger.Warn("dropping dispatch audit record due to full buffer",
			"contract", r.Contract, "operation", r.Operation)
	}
}

// timeNow is a seam for tests; production always uses time.Now.
var timeNow = time.Now

// Shutdown drains and flushes any buffered records, waiting up to timeout.
func (b *Batcher) Shutdown(timeout time.Duration) {
	close(b.records)
	select {
	case <-b.done:
		return
	case <-time.After(timeout):
		b.logger.Warn("timeout waiting for dispatch audit batcher shutdown", "timeout", timeout)
	}
}

func (b *Batcher) run() {
	defer close(b.done)

	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	batch := make([]Record, 0, b.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		var lastErr error
		for attempt := 0; attempt < b.maxRetries; attempt++ {
			ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
			lastErr = b.insertBatch(ctx, batch)
			cancel()
			if lastErr == nil {
				break
			}
			b.logger.Warn("failed to persist dispatch audit records, retrying",
				"error", lastErr, "count", len(batch), "attempt", attempt+1)
			time.Sleep(time.Duration(1<<uint(attempt)) * b.retryInterval)
		}
		if lastErr != nil {
			b.logger.Error("permanently failed to persist dispatch audit records after retries",
				"error", lastErr, "count", len(batch))
		}
		batch = batch[:0]
	}

	for {
		select {
		case r, ok := <-b.records:
			if !ok {
				flush()
				return
			}
			batch = append(batch, r)
			if len(batch) >= b.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (b *Batcher) insertBatch(ctx context.Context, batch []Record) error {
	rows := make([][]any, len(batch))
	for i, r := range batch {
		rows[i] = []any{r.Contract, r.Operation, r.Kind.String(), r.Failed, r.Message, r.At}
	}
	_, err := b.pool.CopyFrom(ctx,
		pgx.Identifier{"dispatch_audit_log"},
		[]string{"contract", "operation", "kind", "failed", "message", "at"},
		pgx.CopyFromRows(rows),
	)
	return err
}
