package propagation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// BatchResult summarizes one population update pass.
type BatchResult struct {
	Valid         int
	Stale         int
	Uninitialized int
}

// WorkerPool fans object updates out across a fixed number of goroutines.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool with the given number of workers.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{workers: workers, logger: logger}
}

// UpdateBatch propagates every object to the target time. Objects are
// handed to workers by index, so no two goroutines ever touch the same
// element and no cross-object ordering is assumed. Per-object failures are
// contained inside TrackedObject.Update and never abort the batch: a few
// degenerate or out-of-window element sets are expected in any large
// population.
func (wp *WorkerPool) UpdateBatch(ctx context.Context, objects []*TrackedObject, t time.Time) BatchResult {
	if len(objects) == 0 {
		return BatchResult{}
	}

	indices := make(chan int)

	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indices {
				obj := objects[idx]
				if err := obj.Update(t); err != nil && !errors.Is(err, ErrOutsideValidity) {
					wp.logger.Debug("propagation failed",
						"name", obj.Name,
						"norad_id", obj.NoradID,
						"error", err,
					)
				}
			}
		}()
	}

	for idx := range objects {
		select {
		case indices <- idx:
		case <-ctx.Done():
			// Stop feeding; objects not reached keep their previous state.
			close(indices)
			wg.Wait()
			return tally(objects)
		}
	}
	close(indices)
	wg.Wait()

	return tally(objects)
}

func tally(objects []*TrackedObject) BatchResult {
	var res BatchResult
	for _, o := range objects {
		switch o.State {
		case StateValid:
			res.Valid++
		case StateStale:
			res.Stale++
		default:
			res.Uninitialized++
		}
	}
	return res
}
