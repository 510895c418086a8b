// Package supervise runs long-lived goroutines with a uniform stop protocol:
// Start spawns, Stop signals through the worker's context and blocks until
// the goroutine has returned.
package supervise

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	// ErrRunning is returned by Start when the worker is already running.
	ErrRunning = errors.New("worker already running")
)

// Worker supervises a single goroutine.
type Worker struct {
	name string

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a stopped worker. The name is only used for logging.
func New(name string) *Worker {
	done := make(chan struct{})
	close(done)
	return &Worker{name: name, done: done}
}

// Start spawns fn in its own goroutine. fn must return once ctx is done.
// A panic in fn is recovered and logged; the worker is then considered stopped.
func (w *Worker) Start(parent context.Context, fn func(ctx context.Context)) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("%s: %w", w.name, ErrRunning)
	}

	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	w.running = true
	w.cancel = cancel
	w.done = done

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Str("worker", w.name).Interface("panic", r).Msg("Worker panicked")
			}

			w.mu.Lock()
			w.running = false
			w.mu.Unlock()

			cancel()
			close(done)
		}()

		log.Debug().Str("worker", w.name).Msg("Worker started")
		fn(ctx)
		log.Debug().Str("worker", w.name).Msg("Worker stopped")
	}()

	return nil
}

// Stop signals the goroutine and waits for it to return. Stop on a worker
// that is not running returns immediately.
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	<-done
}

// Running reports whether the goroutine is still executing.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Done is closed once the current goroutine has returned.
func (w *Worker) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done
}
