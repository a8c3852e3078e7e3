package atom

// Derived is a computed atom. It is a consumer of the atoms its compute
// function reads and an atom for its own readers. When an input changes it
// recomputes during the flush and, if the result differs, writes it through
// the same change gate as Atom.Set. Its readers run in a later flush.
type Derived[T any] struct {
	consumerBase
	rt      *Runtime
	node    *atomNode
	compute func() T
	value   T
	equal   func(a, b T) bool
	ready   bool
}

// NewDerived creates a derived atom and computes its initial value.
func NewDerived[T any](rt *Runtime, compute func() T, opts ...Option[T]) *Derived[T] {
	cfg := buildConfig(opts)
	d := &Derived[T]{
		consumerBase: rt.newConsumerBase(cfg.label),
		rt:           rt,
		compute:      compute,
		equal:        cfg.equal,
	}
	d.node = rt.newAtomNode(cfg.label)
	d.node.owner = d.id
	rt.register(d)
	rt.start(d)
	return d
}

func (d *Derived[T]) base() *consumerBase {
	return &d.consumerBase
}

func (d *Derived[T]) execute() {
	if d.disposed {
		return
	}
	d.rt.untrackAll(&d.consumerBase)

	var next T
	d.rt.withConsumer(d.id, func() {
		next = d.compute()
	})

	if !d.ready {
		d.value = next
		d.ready = true
		return
	}
	if d.equal(d.value, next) {
		return
	}
	d.value = next
	d.rt.markChanged(d.node)
}

// ID returns the identity of the derived value as an atom.
func (d *Derived[T]) ID() AtomID {
	return d.node.id
}

// Get returns the last computed value and subscribes the active consumer.
func (d *Derived[T]) Get() T {
	d.rt.track(d.node)
	return d.value
}

// Peek returns the last computed value without subscribing.
func (d *Derived[T]) Peek() T {
	return d.value
}

// Dispose detaches the derived atom from its inputs. Readers keep the last
// value.
func (d *Derived[T]) Dispose() {
	if d.disposed {
		return
	}
	d.rt.dispose(d)
}
