// Package loop provides a single-goroutine event loop that can drive an
// atom.Runtime.
//
// Tasks submitted from any goroutine run one at a time on the loop
// goroutine. Work deferred through Defer (microtasks) runs after the
// current task and before the next one, which is the turn boundary the
// reactive runtime batches writes on.
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrLoopTerminated is returned by Submit after shutdown began.
	ErrLoopTerminated = errors.New("loop: terminated")

	// ErrLoopAlreadyRunning is returned by a second call to Run.
	ErrLoopAlreadyRunning = errors.New("loop: already running")
)

// State is the loop lifecycle state.
type State int32

const (
	StateAwake State = iota
	StateRunning
	StateTerminating
	StateTerminated
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateAwake:
		return "awake"
	case StateRunning:
		return "running"
	case StateTerminating:
		return "terminating"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

const (
	defaultTaskBudget      = 1024
	defaultMicrotaskBudget = 1024
)

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(loop *Loop) {
		if l != nil {
			loop.logger = l
		}
	}
}

// WithPanicHandler receives values recovered from panicking tasks. The
// default logs them at Error level.
func WithPanicHandler(fn func(v any, stack []byte)) Option {
	return func(loop *Loop) {
		loop.onPanic = fn
	}
}

// WithMicrotaskBudget caps how many microtasks run before the loop yields
// to pending tasks.
func WithMicrotaskBudget(n int) Option {
	return func(loop *Loop) {
		if n > 0 {
			loop.microBudget = n
		}
	}
}

// Loop is a cooperative event loop.
type Loop struct {
	ingressMu sync.Mutex
	ingress   []func()

	// Owned by the loop goroutine.
	microtasks []func()
	loopID     atomic.Uint64

	wake     chan struct{}
	loopDone chan struct{}
	stopOnce sync.Once
	state    atomic.Int32

	logger      *slog.Logger
	onPanic     func(v any, stack []byte)
	microBudget int

	tasks  atomic.Uint64
	panics atomic.Uint64
}

// New creates a loop. Call Run to start it.
func New(opts ...Option) *Loop {
	l := &Loop{
		microtasks:  make([]func(), 0, 64),
		wake:        make(chan struct{}, 1),
		loopDone:    make(chan struct{}),
		logger:      slog.Default(),
		microBudget: defaultMicrotaskBudget,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.state.Store(int32(StateAwake))
	return l
}

// State returns the current lifecycle state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Stats returns the number of tasks run and panics recovered.
func (l *Loop) Stats() (tasks, panics uint64) {
	return l.tasks.Load(), l.panics.Load()
}

// Run processes tasks until Shutdown is called or ctx is done. It blocks
// until the loop has fully stopped.
func (l *Loop) Run(ctx context.Context) error {
	if !l.state.CompareAndSwap(int32(StateAwake), int32(StateRunning)) {
		if l.State() == StateTerminated {
			return ErrLoopTerminated
		}
		return ErrLoopAlreadyRunning
	}
	defer close(l.loopDone)

	l.loopID.Store(goroutineID())
	defer l.loopID.Store(0)

	for {
		if ctx.Err() != nil {
			l.state.Store(int32(StateTerminating))
		}
		if l.State() == StateTerminating {
			l.drain()
			l.state.Store(int32(StateTerminated))
			return nil
		}

		if l.tick() {
			continue
		}

		select {
		case <-l.wake:
		case <-ctx.Done():
		}
	}
}

// tick runs one batch of tasks and reports whether work may remain.
func (l *Loop) tick() bool {
	// Leftovers from an exhausted microtask budget.
	l.drainMicrotasks()

	l.ingressMu.Lock()
	n := min(len(l.ingress), defaultTaskBudget)
	batch := make([]func(), n)
	copy(batch, l.ingress)
	clear(l.ingress[:n])
	l.ingress = l.ingress[n:]
	remaining := len(l.ingress)
	l.ingressMu.Unlock()

	for _, t := range batch {
		l.safeExecute(t)
		l.drainMicrotasks()
	}
	return remaining > 0 || len(l.microtasks) > 0
}

// drain runs everything still queued during shutdown.
func (l *Loop) drain() {
	for {
		l.drainMicrotasks()
		l.ingressMu.Lock()
		batch := l.ingress
		l.ingress = nil
		l.ingressMu.Unlock()
		if len(batch) == 0 && len(l.microtasks) == 0 {
			return
		}
		for _, t := range batch {
			l.safeExecute(t)
			l.drainMicrotasks()
		}
	}
}

func (l *Loop) drainMicrotasks() {
	executed := 0
	for len(l.microtasks) > 0 {
		if executed >= l.microBudget {
			l.logger.Warn("loop: microtask budget exhausted, yielding", "pending", len(l.microtasks))
			return
		}
		t := l.microtasks[0]
		l.microtasks[0] = nil
		l.microtasks = l.microtasks[1:]
		l.safeExecute(t)
		executed++
	}

	if cap(l.microtasks) > 1024 && len(l.microtasks) < cap(l.microtasks)/4 {
		shrunk := make([]func(), len(l.microtasks), len(l.microtasks)*2+64)
		copy(shrunk, l.microtasks)
		l.microtasks = shrunk
	}
}

func (l *Loop) safeExecute(t func()) {
	defer func() {
		if r := recover(); r != nil {
			l.panics.Add(1)
			stack := debug.Stack()
			if l.onPanic != nil {
				l.onPanic(r, stack)
				return
			}
			l.logger.Error("loop: task panicked", "panic", fmt.Sprint(r), "stack", string(stack))
		}
	}()
	l.tasks.Add(1)
	t()
}

// Submit enqueues fn to run on the loop goroutine. It is safe to call from
// any goroutine.
func (l *Loop) Submit(fn func()) error {
	l.ingressMu.Lock()
	state := l.State()
	if state == StateTerminating || state == StateTerminated {
		l.ingressMu.Unlock()
		return ErrLoopTerminated
	}
	l.ingress = append(l.ingress, fn)
	l.ingressMu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// Defer queues fn as a microtask. Called on the loop goroutine it runs
// before the next task; called from any other goroutine it is submitted as
// a task. It implements atom.Scheduler.
func (l *Loop) Defer(fn func()) {
	if l.OnLoop() {
		l.microtasks = append(l.microtasks, fn)
		return
	}
	if err := l.Submit(fn); err != nil {
		l.logger.Warn("loop: dropped deferred task", "error", err)
	}
}

// OnLoop reports whether the caller is running on the loop goroutine.
func (l *Loop) OnLoop() bool {
	id := l.loopID.Load()
	return id != 0 && goroutineID() == id
}

// goroutineID parses the current goroutine's ID from its stack header,
// which starts with "goroutine NNN [".
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] < '0' || buf[i] > '9' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

// Do runs fn on the loop and waits for it and its microtasks to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	err := l.Submit(func() {
		defer close(done)
		fn()
	})
	if err != nil {
		return err
	}
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	// Microtasks queued by fn run before the next task.
	barrier := make(chan struct{})
	if err := l.Submit(func() { close(barrier) }); err != nil {
		return nil
	}
	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// After submits fn once delay has elapsed. The returned function cancels
// the timer if it has not fired.
func (l *Loop) After(delay time.Duration, fn func()) (cancel func() bool) {
	t := time.AfterFunc(delay, func() {
		if err := l.Submit(fn); err != nil {
			l.logger.Debug("loop: timer fired after shutdown", "error", err)
		}
	})
	return t.Stop
}

// Shutdown stops accepting tasks, runs everything already queued and
// waits for Run to return. A loop that was never started is terminated
// immediately.
func (l *Loop) Shutdown(ctx context.Context) error {
	l.stopOnce.Do(func() {
		l.ingressMu.Lock()
		defer l.ingressMu.Unlock()
		for {
			cur := l.State()
			if cur == StateTerminating || cur == StateTerminated {
				return
			}
			next := StateTerminating
			if cur == StateAwake {
				next = StateTerminated
			}
			if l.state.CompareAndSwap(int32(cur), int32(next)) {
				if cur == StateAwake {
					close(l.loopDone)
				}
				break
			}
		}
		select {
		case l.wake <- struct{}{}:
		default:
		}
	})

	select {
	case <-l.loopDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
