// Package events batches viewer activity events onto an event stream.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/urban-heat-viewer/internal/domain"
	"github.com/couchcryptid/urban-heat-viewer/internal/observability"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second

	// bufferFactor sizes the emit buffer as a multiple of the batch size.
	bufferFactor = 4

	shutdownFlushTimeout = 5 * time.Second
)

// BatchPublisher writes a batch of events to the stream.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, events []domain.ViewerEvent) error
}

// Emitter implements domain.EventSink. Events are buffered and published by
// Run in batches of batchSize, or whatever is pending every flushInterval.
type Emitter struct {
	publisher     BatchPublisher
	logger        *slog.Logger
	metrics       *observability.Metrics
	batchSize     int
	flushInterval time.Duration
	ch            chan domain.ViewerEvent
}

// NewEmitter creates an Emitter. Nothing is published until Run is called.
func NewEmitter(p BatchPublisher, batchSize int, flushInterval time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Emitter {
	batchSize = max(batchSize, 1)
	return &Emitter{
		publisher:     p,
		logger:        logger,
		metrics:       metrics,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		ch:            make(chan domain.ViewerEvent, batchSize*bufferFactor),
	}
}

// Emit queues an event without blocking. When the buffer is full the event
// is dropped and counted.
func (e *Emitter) Emit(ev domain.ViewerEvent) {
	select {
	case e.ch <- ev:
	default:
		e.metrics.EventsDropped.Inc()
	}
}

// Run publishes queued events until ctx is cancelled, then flushes what is
// left.
func (e *Emitter) Run(ctx context.Context) error {
	e.logger.Info("event emitter started", "batch_size", e.batchSize, "flush_interval", e.flushInterval)

	ticker := time.NewTicker(e.flushInterval)
	defer ticker.Stop()

	batch := make([]domain.ViewerEvent, 0, e.batchSize)
	backoff := initialBackoff

	for {
		select {
		case <-ctx.Done():
			e.shutdown(ctx, batch)
			return nil
		case ev := <-e.ch:
			batch = append(batch, ev)
			if len(batch) >= e.batchSize {
				batch = e.flush(ctx, batch, &backoff)
			}
		case <-ticker.C:
			if len(batch) > 0 {
				batch = e.flush(ctx, batch, &backoff)
			}
		}
	}
}

// flush publishes batch and returns the slice to keep accumulating into.
// A failed batch is kept for the next attempt after a backoff sleep, up to
// the buffer capacity; beyond that the oldest events are dropped.
func (e *Emitter) flush(ctx context.Context, batch []domain.ViewerEvent, backoff *time.Duration) []domain.ViewerEvent {
	if err := e.publisher.PublishBatch(ctx, batch); err != nil {
		if ctx.Err() != nil {
			return batch
		}
		e.metrics.EventsFailed.Inc()
		e.logger.Error("publish events failed", "error", err, "batch_size", len(batch), "retry_in", *backoff)

		if limit := cap(e.ch); len(batch) > limit {
			e.metrics.EventsDropped.Add(float64(len(batch) - limit))
			batch = append(batch[:0], batch[len(batch)-limit:]...)
		}
		if sleepWithContext(ctx, *backoff) {
			*backoff = nextBackoff(*backoff)
		}
		return batch
	}

	e.metrics.EventsPublished.Add(float64(len(batch)))
	e.metrics.EventBatchSize.Observe(float64(len(batch)))
	*backoff = initialBackoff
	return batch[:0]
}

func (e *Emitter) shutdown(ctx context.Context, batch []domain.ViewerEvent) {
drain:
	for {
		select {
		case ev := <-e.ch:
			batch = append(batch, ev)
		default:
			break drain
		}
	}
	if len(batch) == 0 {
		e.logger.Info("event emitter stopping", "reason", ctx.Err())
		return
	}

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownFlushTimeout)
	defer cancel()
	if err := e.publisher.PublishBatch(flushCtx, batch); err != nil {
		e.metrics.EventsFailed.Inc()
		e.logger.Error("final event flush failed", "error", err, "batch_size", len(batch))
		return
	}
	e.metrics.EventsPublished.Add(float64(len(batch)))
	e.metrics.EventBatchSize.Observe(float64(len(batch)))
	e.logger.Info("event emitter stopping", "reason", ctx.Err(), "flushed", len(batch))
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
