// Single control thread for the moderation engine.
//
// Gateway events, interaction callbacks, timer firings, and flow expiries are all submitted as jobs and run one at a time, so the state they touch (ledger, room registry, timers) needs no locking.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ErrStopped = errors.New("dispatch loop stopped")

const DefaultQueueSize = 1024

var tracer = otel.Tracer("github.com/avengersguard/guard/moderation/dispatch")

type job struct {
	kind string
	fn   func(ctx context.Context)
	done chan struct{}
}

type Loop struct {
	Logger *slog.Logger

	feeder  chan job
	stopped chan struct{}
}

func NewLoop(logger *slog.Logger, queueSize int) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Loop{
		Logger:  logger.With("system", "dispatch"),
		feeder:  make(chan job, queueSize),
		stopped: make(chan struct{}),
	}
}

// Queues fn to run on the control thread. Blocks while the queue is full. Must not be called from inside a job.
func (l *Loop) Submit(kind string, fn func(ctx context.Context)) error {
	return l.submit(job{kind: kind, fn: fn})
}

func (l *Loop) submit(j job) error {
	select {
	case <-l.stopped:
		return ErrStopped
	default:
	}
	select {
	case l.feeder <- j:
		jobsQueued.Inc()
		return nil
	case <-l.stopped:
		return ErrStopped
	}
}

// Like Submit, but waits for the job to finish (or ctx to end).
func (l *Loop) Do(ctx context.Context, kind string, fn func(ctx context.Context)) error {
	j := job{kind: kind, fn: fn, done: make(chan struct{})}
	if err := l.submit(j); err != nil {
		return err
	}
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopped:
		return ErrStopped
	}
}

// Adapter for timer and flow callbacks, which carry no context of their own.
func (l *Loop) Dispatcher(kind string) func(fn func()) {
	return func(fn func()) {
		if err := l.Submit(kind, func(context.Context) { fn() }); err != nil {
			l.Logger.Warn("dropping job", "kind", kind, "err", err)
		}
	}
}

// Runs jobs until ctx is done. Jobs left in the queue at shutdown are dropped.
func (l *Loop) Run(ctx context.Context) error {
	l.Logger.Info("dispatch loop starting")
	defer func() {
		close(l.stopped)
		l.Logger.Info("dispatch loop stopped", "dropped", len(l.feeder))
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case j := <-l.feeder:
			jobsQueued.Dec()
			l.run(ctx, j)
		}
	}
}

func (l *Loop) run(ctx context.Context, j job) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "dispatch."+j.kind, trace.WithAttributes(attribute.String("job.kind", j.kind)))
	defer func() {
		// similar to an HTTP server, recover panics from handlers
		if r := recover(); r != nil {
			jobPanics.WithLabelValues(j.kind).Inc()
			span.SetStatus(codes.Error, fmt.Sprint(r))
			l.Logger.Error("job panicked", "kind", j.kind, "err", r, "stack", string(debug.Stack()))
		}
		span.End()
		jobDuration.WithLabelValues(j.kind).Observe(time.Since(start).Seconds())
		if j.done != nil {
			close(j.done)
		}
	}()
	j.fn(ctx)
}
