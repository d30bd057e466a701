package domainverify

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/stencilhq/stencil/core/logger"
)

// verifyJob is one queued retry-verification request.
type verifyJob struct {
	domainID uuid.UUID
	meta     RequestMeta
}

// Worker runs retry verification loops off the request path. The retry
// backoff blocks the worker goroutine, not a request-serving thread, which
// is the intended home for DNS-propagation waits.
type Worker struct {
	engine *Engine
	jobs   chan verifyJob
	log    *slog.Logger

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	processed atomic.Int64
	failed    atomic.Int64
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithWorkerLogger sets the structured logger. Defaults to a no-op logger.
func WithWorkerLogger(log *slog.Logger) WorkerOption {
	return func(w *Worker) {
		if log != nil {
			w.log = log
		}
	}
}

// WithQueueSize sets the job buffer capacity (default 64).
func WithQueueSize(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.jobs = make(chan verifyJob, n)
		}
	}
}

// NewWorker creates a background verification worker bound to the engine.
func NewWorker(engine *Engine, opts ...WorkerOption) *Worker {
	w := &Worker{
		engine: engine,
		jobs:   make(chan verifyJob, 64),
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = w.log.With(logger.Component("verification_worker"))
	return w
}

// Start launches the processing loop. It returns immediately; jobs run until
// Stop is called or ctx is canceled.
func (w *Worker) Start(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return nil
	}

	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case job := <-w.jobs:
				w.process(ctx, job)
			}
		}
	}()

	return nil
}

// Stop cancels the loop and waits for the in-flight job to finish.
func (w *Worker) Stop() {
	if !w.running.CompareAndSwap(true, false) {
		return
	}
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

// Enqueue schedules a retry verification for the domain. It never blocks:
// a saturated buffer returns ErrQueueFull.
func (w *Worker) Enqueue(domainID uuid.UUID, meta RequestMeta) error {
	if !w.running.Load() {
		return ErrWorkerNotRunning
	}
	select {
	case w.jobs <- verifyJob{domainID: domainID, meta: meta}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stats reports how many jobs completed and how many ended in failure or error.
func (w *Worker) Stats() (processed, failed int64) {
	return w.processed.Load(), w.failed.Load()
}

func (w *Worker) process(ctx context.Context, job verifyJob) {
	result, err := w.engine.RetryVerify(ctx, job.domainID, job.meta)
	w.processed.Add(1)

	switch {
	case err != nil:
		w.failed.Add(1)
		w.log.ErrorContext(ctx, "background verification errored",
			slog.String("domain_id", job.domainID.String()),
			logger.Error(err))
	case !result.Success:
		w.failed.Add(1)
		w.log.InfoContext(ctx, "background verification exhausted retries",
			slog.String("domain_id", job.domainID.String()),
			slog.Int("attempts", result.Attempts),
			slog.String("reason", string(result.FailureReason)))
	default:
		w.log.InfoContext(ctx, "background verification succeeded",
			slog.String("domain_id", job.domainID.String()),
			slog.Int("attempts", result.Attempts))
	}
}
