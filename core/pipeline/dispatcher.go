package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/entitystore/database"
	"github.com/siherrmann/entitystore/model"
	"golang.org/x/time/rate"
)

// EmbeddingWriter stores computed vectors for one entity table.
type EmbeddingWriter interface {
	UpdateEmbeddings(ctx context.Context, updates []database.EmbeddingUpdate) error
}

// DispatcherConfig configures queueing, rate limiting and retries.
type DispatcherConfig struct {
	QueueSize int
	// RequestsPerSecond limits provider calls; zero means unlimited.
	RequestsPerSecond float64
	Burst             int
	// BatchSize is the maximum number of texts per provider call.
	BatchSize  int
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultDispatcherConfig returns the default dispatcher configuration.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		QueueSize:         256,
		RequestsPerSecond: 5,
		Burst:             1,
		BatchSize:         64,
		MaxRetries:        3,
		BaseDelay:         2 * time.Second,
	}
}

// DispatcherStats counts batches handled by the worker.
type DispatcherStats struct {
	Processed int64
	Failed    int64
	Dropped   int64
}

type job struct {
	writer EmbeddingWriter
	schema *model.TableSchema
	rows   []model.Instance
}

type embeddingItem struct {
	id     uuid.UUID
	column string
	text   string
}

// Dispatcher computes embeddings for upserted rows in the background.
// A single worker drains the queue, so updates for one batch never race
// with updates for another.
type Dispatcher struct {
	embedders map[string]Embedder
	config    DispatcherConfig
	limiter   *rate.Limiter
	logger    *slog.Logger

	queue  chan job
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	// pending counts batches that are queued or in work; idle is signalled
	// whenever it drops to zero.
	pendingMu sync.Mutex
	pending   int
	idle      *sync.Cond

	mu     sync.RWMutex
	closed bool

	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// NewDispatcher starts the worker. embedders maps provider names to embedders.
func NewDispatcher(embedders map[string]Embedder, config DispatcherConfig, logger *slog.Logger) *Dispatcher {
	defaults := DefaultDispatcherConfig()
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	if config.BaseDelay < 0 {
		config.BaseDelay = 0
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}

	copied := make(map[string]Embedder, len(embedders))
	for k, v := range embedders {
		copied[k] = v
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		embedders: copied,
		config:    config,
		limiter:   rate.NewLimiter(limit, config.Burst),
		logger:    logger,
		queue:     make(chan job, config.QueueSize),
		done:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	d.idle = sync.NewCond(&d.pendingMu)

	go d.run()

	logger.Info("Initialized Dispatcher", slog.Int("queue_size", config.QueueSize), slog.Int("providers", len(copied)))

	return d
}

// Embedder returns the embedder registered for provider.
func (d *Dispatcher) Embedder(provider string) (Embedder, bool) {
	e, ok := d.embedders[provider]
	return e, ok
}

// Enqueue hands rows to the worker without waiting for the result.
// It returns false if the queue is full or the dispatcher is closed; such
// rows keep null embeddings until a backfill.
func (d *Dispatcher) Enqueue(writer EmbeddingWriter, schema *model.TableSchema, rows []model.Instance) bool {
	if len(schema.EmbeddingColumns) == 0 || len(rows) == 0 {
		return true
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		return false
	}

	d.addPending()
	select {
	case d.queue <- job{writer: writer, schema: schema, rows: rows}:
		return true
	default:
		d.donePending()
		d.dropped.Add(1)
		d.logger.Warn("Embedding queue full, dropping batch", slog.String("type", schema.Type.FullName()), slog.Int("rows", len(rows)))
		return false
	}
}

// Flush blocks until every enqueued batch has been handled. Batches
// enqueued while Flush waits are waited for as well.
func (d *Dispatcher) Flush() {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()
	for d.pending > 0 {
		d.idle.Wait()
	}
}

func (d *Dispatcher) addPending() {
	d.pendingMu.Lock()
	d.pending++
	d.pendingMu.Unlock()
}

func (d *Dispatcher) donePending() {
	d.pendingMu.Lock()
	d.pending--
	if d.pending == 0 {
		d.idle.Broadcast()
	}
	d.pendingMu.Unlock()
}

// Close drains the queue and stops the worker.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	<-d.done
	d.cancel()
}

// Stats returns the batch counters.
func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Processed: d.processed.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for j := range d.queue {
		err := d.Dispatch(d.ctx, j.writer, j.schema, j.rows)
		if err != nil {
			d.failed.Add(1)
			d.logger.Error("Embedding batch failed", slog.String("type", j.schema.Type.FullName()), slog.Int("rows", len(j.rows)), slog.String("error", err.Error()))
		} else {
			d.processed.Add(1)
		}
		d.donePending()
	}
}

// Dispatch computes and stores the embeddings of rows synchronously.
// Rows need a resolved id; fields without text are skipped.
func (d *Dispatcher) Dispatch(ctx context.Context, writer EmbeddingWriter, schema *model.TableSchema, rows []model.Instance) error {
	if err := schema.Type.Require(model.CapabilityEmbeddings); err != nil {
		return err
	}

	byProvider := map[string][]embeddingItem{}
	dimensions := map[string]int{}
	for _, e := range schema.EmbeddingColumns {
		dimensions[e.ColumnName] = e.Dimension
		for _, row := range rows {
			text, ok := row[e.BaseField].(string)
			if !ok || strings.TrimSpace(text) == "" {
				continue
			}
			id, ok := row.ID()
			if !ok {
				return fmt.Errorf("row of %s has no id", schema.Type.FullName())
			}
			byProvider[e.Provider] = append(byProvider[e.Provider], embeddingItem{id: id, column: e.ColumnName, text: text})
		}
	}
	if len(byProvider) == 0 {
		return nil
	}

	updates := map[uuid.UUID]*database.EmbeddingUpdate{}
	var order []uuid.UUID
	for provider, items := range byProvider {
		embedder, ok := d.embedders[provider]
		if !ok {
			return fmt.Errorf("no embedder registered for provider %q", provider)
		}

		for start := 0; start < len(items); start += d.config.BatchSize {
			chunk := items[start:min(start+d.config.BatchSize, len(items))]
			texts := make([]string, len(chunk))
			for i, item := range chunk {
				texts[i] = item.text
			}

			vectors, err := d.embed(ctx, embedder, texts)
			if err != nil {
				return fmt.Errorf("provider %s: %w", provider, err)
			}
			if len(vectors) != len(chunk) {
				return fmt.Errorf("provider %s returned %d vectors for %d texts", provider, len(vectors), len(chunk))
			}

			for i, item := range chunk {
				if len(vectors[i]) != dimensions[item.column] {
					return fmt.Errorf("provider %s returned %d dimensions for %s, expected %d", provider, len(vectors[i]), item.column, dimensions[item.column])
				}
				u, ok := updates[item.id]
				if !ok {
					u = &database.EmbeddingUpdate{ID: item.id, Vectors: map[string][]float32{}}
					updates[item.id] = u
					order = append(order, item.id)
				}
				u.Vectors[item.column] = vectors[i]
			}
		}
	}

	batch := make([]database.EmbeddingUpdate, 0, len(order))
	for _, id := range order {
		batch = append(batch, *updates[id])
	}

	return writer.UpdateEmbeddings(ctx, batch)
}

// embed calls the provider with rate limiting and exponential backoff.
func (d *Dispatcher) embed(ctx context.Context, embedder Embedder, texts []string) ([][]float32, error) {
	var err error
	for attempt := range d.config.MaxRetries {
		if waitErr := d.limiter.Wait(ctx); waitErr != nil {
			return nil, waitErr
		}

		var vectors [][]float32
		vectors, err = embedder.Embed(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}

		if attempt < d.config.MaxRetries-1 {
			delay := d.config.BaseDelay * time.Duration(1<<attempt)
			d.logger.Warn("Embedding request retrying", slog.Int("attempt", attempt+1), slog.Duration("delay", delay), slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", d.config.MaxRetries, err)
}
