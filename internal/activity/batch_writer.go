package activity

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"showroom/internal/model"
	"showroom/internal/repository"
)

const (
	queueSize     = 100
	batchSize     = 10
	flushInterval = time.Second
)

// BatchWriter persists events to the activity_logs table in batches from a
// single background worker.
type BatchWriter struct {
	repo   repository.ActivityLogRepository
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan model.ActivityLog
	done   chan struct{}

	interval time.Duration
}

// NewBatchWriter starts the worker. Call Close to flush and stop it.
func NewBatchWriter(repo repository.ActivityLogRepository, logger *slog.Logger) *BatchWriter {
	return newBatchWriter(repo, logger, flushInterval)
}

func newBatchWriter(repo repository.ActivityLogRepository, logger *slog.Logger, interval time.Duration) *BatchWriter {
	w := &BatchWriter{
		repo:     repo,
		logger:   logger,
		queue:    make(chan model.ActivityLog, queueSize),
		done:     make(chan struct{}),
		interval: interval,
	}
	go w.run()
	return w
}

// Record enqueues e without blocking. Events are dropped when the queue is full.
func (w *BatchWriter) Record(_ context.Context, e Event) {
	entry := toLog(e)

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}
	select {
	case w.queue <- entry:
	default:
		w.logger.Warn("activity queue full, dropping event", "type", e.Type)
	}
}

// Close flushes pending events and stops the worker.
func (w *BatchWriter) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()
	<-w.done
}

func (w *BatchWriter) run() {
	defer close(w.done)

	batch := make([]model.ActivityLog, 0, batchSize)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case entry, ok := <-w.queue:
			if !ok {
				w.flush(batch)
				return
			}
			batch = append(batch, entry)
			if len(batch) >= batchSize {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

func (w *BatchWriter) flush(batch []model.ActivityLog) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.repo.CreateBatch(ctx, append([]model.ActivityLog(nil), batch...)); err != nil {
		w.logger.Error("failed to persist activity logs", "count", len(batch), "error", err)
	}
}

func toLog(e Event) model.ActivityLog {
	entry := model.ActivityLog{
		Type:      string(e.Type),
		ActorID:   e.ActorID,
		SubjectID: e.SubjectID,
		Resource:  e.Resource,
		CreatedAt: e.OccurredAt,
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if len(e.Detail) > 0 {
		if b, err := json.Marshal(e.Detail); err == nil {
			entry.Detail = string(b)
		}
	}
	return entry
}
