package atom

// Option configures an Atom or a Derived.
type Option[T any] func(*cellConfig[T])

type cellConfig[T any] struct {
	equal func(a, b T) bool
	label string
}

// WithEqual sets the equality function that gates writes.
func WithEqual[T any](fn func(a, b T) bool) Option[T] {
	return func(c *cellConfig[T]) {
		c.equal = fn
	}
}

// AlwaysNotify disables write gating: every Set notifies.
func AlwaysNotify[T any]() Option[T] {
	return func(c *cellConfig[T]) {
		c.equal = func(T, T) bool { return false }
	}
}

// Named labels the cell for logs and errors.
func Named[T any](name string) Option[T] {
	return func(c *cellConfig[T]) {
		c.label = name
	}
}

func buildConfig[T any](opts []Option[T]) cellConfig[T] {
	cfg := cellConfig[T]{equal: defaultEqual[T]}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.equal == nil {
		cfg.equal = defaultEqual[T]
	}
	return cfg
}

// Atom is a reactive value cell. All writes go through Set or Update.
type Atom[T any] struct {
	rt    *Runtime
	node  *atomNode
	value T
	equal func(a, b T) bool
}

// NewAtom creates an atom owned by rt.
func NewAtom[T any](rt *Runtime, initial T, opts ...Option[T]) *Atom[T] {
	cfg := buildConfig(opts)
	return &Atom[T]{
		rt:    rt,
		node:  rt.newAtomNode(cfg.label),
		value: initial,
		equal: cfg.equal,
	}
}

// ID returns the atom's identity within its runtime.
func (a *Atom[T]) ID() AtomID {
	return a.node.id
}

// Get returns the current value and subscribes the active consumer, if any.
func (a *Atom[T]) Get() T {
	a.rt.track(a.node)
	return a.value
}

// Peek returns the current value without subscribing.
func (a *Atom[T]) Peek() T {
	return a.value
}

// Set stores value if it differs from the current one and queues a
// notification. The new value is visible to Get and Peek immediately;
// consumers re-run at the next flush.
func (a *Atom[T]) Set(value T) {
	if a.equal(a.value, value) {
		return
	}
	a.value = value
	a.rt.markChanged(a.node)
}

// Update sets the value returned by fn, which receives the current value.
func (a *Atom[T]) Update(fn func(T) T) {
	a.Set(fn(a.value))
}

// Dirty reports whether the atom has a write not yet flushed.
func (a *Atom[T]) Dirty() bool {
	return a.node.dirty
}

// Dependents returns the number of consumers subscribed to the atom.
func (a *Atom[T]) Dependents() int {
	return len(a.node.dependents)
}
