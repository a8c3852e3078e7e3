package atom

// Cleanup is returned by an effect function. It runs before the next run
// and when the effect is disposed.
type Cleanup func()

// EffectState is a step of the effect lifecycle.
type EffectState uint8

const (
	EffectConstructed EffectState = iota
	EffectRunning
	EffectIdle
	EffectDisposed
)

// String returns the state name.
func (s EffectState) String() string {
	switch s {
	case EffectConstructed:
		return "constructed"
	case EffectRunning:
		return "running"
	case EffectIdle:
		return "idle"
	case EffectDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// EffectOption configures an Effect.
type EffectOption func(*Effect)

// EffectLabel names the effect in logs and errors.
func EffectLabel(name string) EffectOption {
	return func(e *Effect) {
		e.label = name
	}
}

// Effect is a re-runnable computation subscribed to the atoms it read
// during its last run.
type Effect struct {
	consumerBase
	rt      *Runtime
	fn      func() Cleanup
	cleanup Cleanup
	state   EffectState
	runs    int
}

// NewEffect creates an effect and runs it immediately. A panic during the
// first run is reported like any other consumer failure; the effect stays
// subscribed to whatever it read before failing.
func NewEffect(rt *Runtime, fn func() Cleanup, opts ...EffectOption) *Effect {
	e := &Effect{
		consumerBase: rt.newConsumerBase(""),
		rt:           rt,
		fn:           fn,
	}
	for _, opt := range opts {
		opt(e)
	}
	rt.register(e)
	rt.start(e)
	return e
}

func (e *Effect) base() *consumerBase {
	return &e.consumerBase
}

// execute clears every edge, then re-tracks from scratch while fn runs.
func (e *Effect) execute() {
	if e.disposed {
		return
	}
	if e.cleanup != nil {
		cleanup := e.cleanup
		e.cleanup = nil
		cleanup()
	}
	e.rt.untrackAll(&e.consumerBase)

	e.state = EffectRunning
	defer func() {
		if e.state == EffectRunning {
			e.state = EffectIdle
		}
	}()
	e.runs++
	e.rt.withConsumer(e.id, func() {
		e.cleanup = e.fn()
	})

	// Disposed from inside its own body.
	if e.disposed && e.cleanup != nil {
		cleanup := e.cleanup
		e.cleanup = nil
		e.runCleanup(cleanup)
	}
}

// Run re-runs the effect now, outside any flush, as if one of its
// dependencies had changed. Failures go to the runtime's error handler.
// Run returns ErrDisposed after Dispose and does nothing while the effect
// body is already running.
func (e *Effect) Run() error {
	if e.disposed {
		return ErrDisposed
	}
	if e.state == EffectRunning {
		return nil
	}
	e.rt.runConsumer(e)
	return nil
}

// ID returns the effect's identity within its runtime.
func (e *Effect) ID() ConsumerID {
	return e.id
}

// State returns the lifecycle state.
func (e *Effect) State() EffectState {
	return e.state
}

// Runs returns how many times the effect body has started.
func (e *Effect) Runs() int {
	return e.runs
}

// Dependencies returns the number of atoms read during the last run.
func (e *Effect) Dependencies() int {
	return len(e.deps)
}

// Disposed reports whether Dispose has been called.
func (e *Effect) Disposed() bool {
	return e.disposed
}

// Dispose removes all edges and runs the pending cleanup. The effect never
// runs again. Dispose is idempotent.
func (e *Effect) Dispose() {
	if e.disposed {
		return
	}
	e.rt.dispose(e)
	e.state = EffectDisposed
	if e.cleanup != nil {
		cleanup := e.cleanup
		e.cleanup = nil
		e.runCleanup(cleanup)
	}
}

func (e *Effect) runCleanup(cleanup Cleanup) {
	defer func() {
		if r := recover(); r != nil {
			e.rt.ReportError(&ConsumerError{
				Consumer: e.id,
				Label:    e.label,
				Value:    r,
				Stack:    stack(),
			})
		}
	}()
	cleanup()
}
