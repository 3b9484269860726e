package loop

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
	"github.com/petermattis/goid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrLoopClosed is returned by Run when the loop has already been closed.
var ErrLoopClosed = errors.New("loop: closed")

// Loop is a cross-goroutine FIFO mailbox paired with a wakeup mechanism.
// Callbacks enqueued with Dispatch execute, in order, on the owning
// goroutine when it drains.
type Loop struct {
	// q holds pending callbacks. Guarded by mu for concurrent append from
	// any goroutine and single-consumer drain from the owning goroutine.
	mu sync.Mutex
	q  *queue.Queue

	// wake signals the built-in Run loop. Capacity 1: wakeups coalesce.
	wake chan struct{}

	// wakeFn, when set, replaces the built-in wakeup with a send-event-to-
	// self call into an external event loop.
	wakeFn func()

	done   chan struct{}
	closed atomic.Bool

	// ownerGID is the goroutine ID bound on the first drain. Subsequent
	// drains from any other goroutine are a programming error.
	ownerGID atomic.Int64

	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *Metrics
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the structured logger used for drain failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

// WithWakeup replaces the built-in wakeup channel with fn. The function is
// called (possibly from any goroutine) whenever a callback is enqueued; the
// embedding event loop must respond by calling DrainAndRun on the owning
// goroutine. Loops configured this way are not driven by Run.
func WithWakeup(fn func()) Option {
	return func(l *Loop) {
		l.wakeFn = fn
	}
}

// WithMetrics attaches Prometheus instrumentation to the loop.
func WithMetrics(m *Metrics) Option {
	return func(l *Loop) {
		l.metrics = m
	}
}

// WithTracing enables an OpenTelemetry span per executed callback, using the
// named tracer from the global provider.
func WithTracing(tracerName string) Option {
	return func(l *Loop) {
		l.tracer = otel.Tracer(tracerName)
	}
}

// New creates a Loop.
func New(opts ...Option) *Loop {
	l := &Loop{
		q:      queue.New(),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: slog.Default().With("component", "loop"),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Dispatch enqueues fn to run on the owning goroutine and signals a wakeup.
// Safe to call from any goroutine; never blocks. Callbacks enqueued after
// Close are discarded.
//
// Ordering: if one Dispatch fully returns before another begins, the first
// callback runs first when they are drained together.
func (l *Loop) Dispatch(fn func()) {
	if fn == nil || l.closed.Load() {
		return
	}

	l.mu.Lock()
	l.q.Add(fn)
	depth := l.q.Length()
	l.mu.Unlock()

	l.metrics.recordDispatch(depth)

	if l.wakeFn != nil {
		l.wakeFn()
		return
	}
	select {
	case l.wake <- struct{}{}:
	default:
		// Wakeup already pending.
	}
}

// DrainAndRun atomically takes the entire current queue contents and executes
// each callback in enqueue order, outside the lock. It may only be called on
// the owning goroutine: the first call binds it, and calls from any other
// goroutine panic.
//
// Each callback is isolated: a panic is recovered, logged, and counted, and
// the remaining callbacks in the drain still run.
//
// Returns the number of callbacks executed.
func (l *Loop) DrainAndRun() int {
	l.assertOwner()

	l.mu.Lock()
	n := l.q.Length()
	if n == 0 {
		l.mu.Unlock()
		return 0
	}
	fns := make([]func(), 0, n)
	for l.q.Length() > 0 {
		fns = append(fns, l.q.Remove().(func()))
	}
	l.mu.Unlock()

	stop := l.metrics.startDrain()
	for _, fn := range fns {
		l.runCallback(fn)
	}
	stop(len(fns))

	return len(fns)
}

// runCallback executes one dispatched callback with panic isolation.
func (l *Loop) runCallback(fn func()) {
	var span trace.Span
	if l.tracer != nil {
		_, span = l.tracer.Start(context.Background(), "loop.callback")
		defer span.End()
	}

	defer func() {
		if r := recover(); r != nil {
			l.metrics.recordPanic()
			if span != nil {
				span.SetStatus(codes.Error, "callback panicked")
			}
			l.logger.Error("dispatch callback panic",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()

	fn()
	l.metrics.recordExecuted()
}

// Run binds the calling goroutine as the owner and drains the queue whenever
// woken, until ctx is cancelled or the loop is closed. It drains any
// callbacks already pending before blocking.
//
// Run returns nil on Close and ctx.Err() on cancellation. Loops configured
// with WithWakeup are driven externally and should not call Run.
func (l *Loop) Run(ctx context.Context) error {
	if l.closed.Load() {
		return ErrLoopClosed
	}
	l.assertOwner()

	l.DrainAndRun()

	for {
		select {
		case <-l.wake:
			l.DrainAndRun()
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		}
	}
}

// Close stops the loop. Pending callbacks that were never drained are
// discarded; their count is logged. Idempotent.
func (l *Loop) Close() {
	if l.closed.Swap(true) {
		return
	}
	close(l.done)

	l.mu.Lock()
	dropped := l.q.Length()
	l.q = queue.New()
	l.mu.Unlock()

	if dropped > 0 {
		l.metrics.recordDropped(dropped)
		l.logger.Warn("loop closed with pending callbacks", "dropped", dropped)
	}
}

// Pending reports the number of queued callbacks. Diagnostics only; the
// value is stale the moment it is read.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.q.Length()
}

// assertOwner binds the owning goroutine on first use and panics when the
// caller is any other goroutine. Drains must be single-consumer.
func (l *Loop) assertOwner() {
	gid := goid.Get()
	if l.ownerGID.CompareAndSwap(0, gid) {
		return
	}
	if l.ownerGID.Load() != gid {
		panic("loop: DrainAndRun called off the owning goroutine")
	}
}
