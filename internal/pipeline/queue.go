package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"asset-pipeline/internal/logging"

	"golang.org/x/sync/errgroup"
)

const defaultQueueDepth = 256

// Queue feeds processing triggers to a fixed pool of workers. Triggers are
// fire-and-forget: a duplicate trigger for an in-flight asset is dropped
// here, and the store-level claim catches anything that slips through.
type Queue struct {
	coordinator *Coordinator
	tasks       chan string

	mu        sync.Mutex
	inflight  map[string]struct{}
	timers    map[int]*time.Timer // pending deferral requeues; fired timers remove themselves
	nextTimer int
	closed    bool

	group  *errgroup.Group
	cancel context.CancelFunc
}

// NewQueue creates a queue draining into the given coordinator.
func NewQueue(c *Coordinator) *Queue {
	return &Queue{
		coordinator: c,
		tasks:       make(chan string, defaultQueueDepth),
		inflight:    make(map[string]struct{}),
		timers:      make(map[int]*time.Timer),
	}
}

// Start launches the worker pool. Workers run until Shutdown.
func (q *Queue) Start(ctx context.Context, workers int) {
	if workers < 1 {
		workers = 1
	}

	ctx, q.cancel = context.WithCancel(ctx)
	q.group, ctx = errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		q.group.Go(func() error {
			q.worker(ctx)
			return nil
		})
	}
	logging.Info("Pipeline queue started with %d workers", workers)
}

// Enqueue schedules a chain for an asset. Returns false when the asset is
// already queued or running, or the queue is full or shut down.
func (q *Queue) Enqueue(entityID string) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	if _, busy := q.inflight[entityID]; busy {
		q.mu.Unlock()
		logging.Debug("Asset %s already in flight, dropping trigger", entityID)
		return false
	}
	q.inflight[entityID] = struct{}{}
	q.mu.Unlock()

	select {
	case q.tasks <- entityID:
		return true
	default:
		q.release(entityID)
		logging.Warn("Pipeline queue full, dropping trigger for asset %s", entityID)
		return false
	}
}

// enqueueAfter re-schedules a deferred chain once its delay elapses.
func (q *Queue) enqueueAfter(entityID string, delay time.Duration) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	id := q.nextTimer
	q.nextTimer++
	q.timers[id] = time.AfterFunc(delay, func() {
		q.mu.Lock()
		delete(q.timers, id)
		q.mu.Unlock()
		q.Enqueue(entityID)
	})
	q.mu.Unlock()
}

func (q *Queue) release(entityID string) {
	q.mu.Lock()
	delete(q.inflight, entityID)
	q.mu.Unlock()
}

func (q *Queue) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case entityID, ok := <-q.tasks:
			if !ok {
				return
			}
			q.run(ctx, entityID)
		}
	}
}

func (q *Queue) run(ctx context.Context, entityID string) {
	err := q.coordinator.Run(ctx, entityID)
	q.release(entityID)

	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		logging.Warn("Dropped trigger for unknown asset %s", entityID)
	default:
		if d, ok := IsDeferred(err); ok {
			logging.Debug("Requeueing asset %s in %s (stage %s waiting)", entityID, d.Delay, d.Stage)
			q.enqueueAfter(entityID, d.Delay)
			return
		}
		logging.Error("Processing chain for asset %s ended in error: %v", entityID, err)
	}
}

// Shutdown stops accepting triggers, cancels pending deferrals, and waits
// for in-flight chains to finish or the context to expire.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	for _, timer := range q.timers {
		timer.Stop()
	}
	q.timers = nil
	q.mu.Unlock()

	if q.cancel != nil {
		q.cancel()
	}

	done := make(chan error, 1)
	go func() {
		if q.group != nil {
			done <- q.group.Wait()
			return
		}
		done <- nil
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
