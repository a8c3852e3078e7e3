package atom

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxChainedFlushes bounds how many flushes in a row may be triggered
// solely by writes made during the previous flush.
const DefaultMaxChainedFlushes = 100

const tracerName = "github.com/vango-dev/atomdom/pkg/atom"

// AtomID identifies an atom within its Runtime.
type AtomID uint64

// ConsumerID identifies an Effect or Derived within its Runtime.
type ConsumerID uint64

// Scheduler defers work to a later turn.
// Defer must not run task before returning.
type Scheduler interface {
	Defer(task func())
}

// ErrorHandler receives errors isolated at the flush boundary.
type ErrorHandler func(err error)

// Observer receives runtime events, typically for metrics.
type Observer interface {
	AtomWritten()
	ConsumerRan(d time.Duration, err error)
	FlushCompleted(atoms, consumers int, d time.Duration)
	CycleDetected()
}

type nopObserver struct{}

func (nopObserver) AtomWritten() {}
func (nopObserver) ConsumerRan(time.Duration, error) {}
func (nopObserver) FlushCompleted(int, int, time.Duration) {}
func (nopObserver) CycleDetected() {}

// Stats are cumulative counters for a Runtime.
type Stats struct {
	Writes  uint64
	Flushes uint64
	Runs    uint64
	Errors  uint64
	Cycles  uint64
	Dropped uint64 // pending atoms discarded by the flush budget
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) RuntimeOption {
	return func(rt *Runtime) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

// WithErrorHandler replaces the default error sink, which logs.
func WithErrorHandler(h ErrorHandler) RuntimeOption {
	return func(rt *Runtime) {
		rt.onError = h
	}
}

// WithObserver attaches an observer for runtime events.
func WithObserver(o Observer) RuntimeOption {
	return func(rt *Runtime) {
		if o != nil {
			rt.observer = o
		}
	}
}

// WithMaxChainedFlushes sets the chained flush budget. A value <= 0
// disables it.
func WithMaxChainedFlushes(n int) RuntimeOption {
	return func(rt *Runtime) {
		rt.maxChained = n
	}
}

// WithTracer sets the tracer used for flush spans.
func WithTracer(t trace.Tracer) RuntimeOption {
	return func(rt *Runtime) {
		if t != nil {
			rt.tracer = t
		}
	}
}

// WithContext sets the parent context for flush spans.
func WithContext(ctx context.Context) RuntimeOption {
	return func(rt *Runtime) {
		if ctx != nil {
			rt.ctx = ctx
		}
	}
}

// consumer is implemented by Effect and Derived.
type consumer interface {
	base() *consumerBase
	execute()
}

// consumerBase holds the dependency side of the graph for one consumer.
type consumerBase struct {
	id       ConsumerID
	label    string
	deps     map[AtomID]struct{}
	disposed bool
}

// atomNode is the arena entry for an atom. dependents maps each subscribed
// consumer to the registration epoch of its first read.
type atomNode struct {
	id          AtomID
	label       string
	owner       ConsumerID // non-zero when the atom is computed by a consumer
	dependents  map[ConsumerID]uint64
	dirty       bool
	lastChanged uint64
}

// orderedDependents returns dependents sorted by registration index.
func (n *atomNode) orderedDependents() []ConsumerID {
	ids := make([]ConsumerID, 0, len(n.dependents))
	for id := range n.dependents {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return n.dependents[ids[i]] < n.dependents[ids[j]]
	})
	return ids
}

// Runtime owns one reactive graph: the atom and consumer arenas, the
// tracking stack, the pending set and the epoch counter.
type Runtime struct {
	sched      Scheduler
	logger     *slog.Logger
	onError    ErrorHandler
	observer   Observer
	tracer     trace.Tracer
	ctx        context.Context
	maxChained int

	lastID uint64
	epoch  uint64

	atoms     map[AtomID]*atomNode
	consumers map[ConsumerID]consumer

	// stack is the active consumer stack. Zero entries suspend tracking.
	stack []ConsumerID

	pending          map[AtomID]*atomNode
	flushScheduled   bool
	flushing         bool
	scheduledInFlush bool
	chained          int

	stats Stats
}

// NewRuntime creates a Runtime that defers flushes through sched.
func NewRuntime(sched Scheduler, opts ...RuntimeOption) *Runtime {
	if sched == nil {
		panic("atom: NewRuntime requires a Scheduler")
	}
	rt := &Runtime{
		sched:      sched,
		logger:     slog.Default(),
		observer:   nopObserver{},
		tracer:     otel.Tracer(tracerName),
		ctx:        context.Background(),
		maxChained: DefaultMaxChainedFlushes,
		atoms:      make(map[AtomID]*atomNode),
		consumers:  make(map[ConsumerID]consumer),
		pending:    make(map[AtomID]*atomNode),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Stats returns a snapshot of the runtime counters.
func (rt *Runtime) Stats() Stats {
	return rt.stats
}

// Epoch returns the current epoch.
func (rt *Runtime) Epoch() uint64 {
	return rt.epoch
}

// Pending returns the number of atoms waiting for the next flush.
func (rt *Runtime) Pending() int {
	return len(rt.pending)
}

// Logger returns the runtime logger.
func (rt *Runtime) Logger() *slog.Logger {
	return rt.logger
}

// ReportError routes err to the runtime's error handler.
func (rt *Runtime) ReportError(err error) {
	if err == nil {
		return
	}
	rt.stats.Errors++
	if rt.onError != nil {
		rt.onError(err)
		return
	}
	rt.logger.Error("atom: consumer error", "error", err)
}

func (rt *Runtime) nextID() uint64 {
	rt.lastID++
	return rt.lastID
}

func (rt *Runtime) newAtomNode(label string) *atomNode {
	n := &atomNode{
		id:         AtomID(rt.nextID()),
		label:      label,
		dependents: make(map[ConsumerID]uint64),
	}
	rt.atoms[n.id] = n
	return n
}

func (rt *Runtime) newConsumerBase(label string) consumerBase {
	return consumerBase{
		id:    ConsumerID(rt.nextID()),
		label: label,
		deps:  make(map[AtomID]struct{}),
	}
}

// track registers an edge from the active consumer to n.
func (rt *Runtime) track(n *atomNode) {
	cid := rt.current()
	if cid == 0 {
		return
	}
	if n.owner != 0 && (rt.onStack(n.owner) || rt.dependsOn(n, cid)) {
		rt.stats.Cycles++
		rt.observer.CycleDetected()
		err := &CycleError{Atom: n.id, Consumer: cid, Label: n.label}
		rt.logger.Warn("atom: rejected dependency edge", "atom", uint64(n.id), "consumer", uint64(cid))
		rt.ReportError(err)
		return
	}
	c, ok := rt.consumers[cid]
	if !ok {
		return
	}
	if _, seen := n.dependents[cid]; seen {
		return
	}
	rt.epoch++
	n.dependents[cid] = rt.epoch
	c.base().deps[n.id] = struct{}{}
}

// dependsOn reports whether n is computed, directly or through other
// derived atoms, from a value owned by cid.
func (rt *Runtime) dependsOn(n *atomNode, cid ConsumerID) bool {
	seen := make(map[AtomID]bool)
	queue := []*atomNode{n}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.owner == 0 || seen[cur.id] {
			continue
		}
		seen[cur.id] = true
		if cur.owner == cid {
			return true
		}
		c, ok := rt.consumers[cur.owner]
		if !ok {
			continue
		}
		for aid := range c.base().deps {
			if dep, ok := rt.atoms[aid]; ok {
				queue = append(queue, dep)
			}
		}
	}
	return false
}

// untrackAll removes every edge of b in both directions.
func (rt *Runtime) untrackAll(b *consumerBase) {
	for aid := range b.deps {
		if n, ok := rt.atoms[aid]; ok {
			delete(n.dependents, b.id)
		}
	}
	clear(b.deps)
}

func (rt *Runtime) current() ConsumerID {
	if len(rt.stack) == 0 {
		return 0
	}
	return rt.stack[len(rt.stack)-1]
}

func (rt *Runtime) onStack(id ConsumerID) bool {
	for _, c := range rt.stack {
		if c == id {
			return true
		}
	}
	return false
}

// withConsumer runs fn with id on top of the tracking stack. The stack is
// restored even if fn panics.
func (rt *Runtime) withConsumer(id ConsumerID, fn func()) {
	depth := len(rt.stack)
	rt.stack = append(rt.stack, id)
	defer func() {
		rt.stack = rt.stack[:depth]
	}()
	fn()
}

// Untracked runs fn without registering dependencies for the active consumer.
func (rt *Runtime) Untracked(fn func()) {
	rt.withConsumer(0, fn)
}

// markChanged records a write to n and requests a flush if needed.
func (rt *Runtime) markChanged(n *atomNode) {
	rt.epoch++
	n.lastChanged = rt.epoch
	n.dirty = true
	rt.pending[n.id] = n
	rt.stats.Writes++
	rt.observer.AtomWritten()

	if rt.flushScheduled {
		return
	}
	rt.flushScheduled = true
	if rt.flushing {
		rt.scheduledInFlush = true
	}
	rt.sched.Defer(rt.flush)
}

// register adds c to the consumer arena.
func (rt *Runtime) register(c consumer) {
	rt.consumers[c.base().id] = c
}

// dispose removes c from the graph.
func (rt *Runtime) dispose(c consumer) {
	b := c.base()
	b.disposed = true
	rt.untrackAll(b)
	delete(rt.consumers, b.id)
}

// start performs the first execution of a consumer outside any flush.
func (rt *Runtime) start(c consumer) {
	rt.runConsumer(c)
}

func (rt *Runtime) runConsumer(c consumer) {
	began := time.Now()
	err := rt.safeExecute(c)
	rt.stats.Runs++
	rt.observer.ConsumerRan(time.Since(began), err)
	if err != nil {
		rt.ReportError(err)
	}
}

// safeExecute isolates a panicking consumer.
func (rt *Runtime) safeExecute(c consumer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b := c.base()
			err = &ConsumerError{
				Consumer: b.id,
				Label:    b.label,
				Value:    r,
				Stack:    stack(),
			}
		}
	}()
	c.execute()
	return nil
}

// flush is the deferred batch pass. It runs every queued consumer to
// completion; there is no cancellation.
func (rt *Runtime) flush() {
	rt.flushScheduled = false
	chainedWrite := rt.scheduledInFlush
	rt.scheduledInFlush = false
	if len(rt.pending) == 0 {
		return
	}

	if chainedWrite {
		rt.chained++
	} else {
		rt.chained = 0
	}
	if rt.maxChained > 0 && rt.chained > rt.maxChained {
		rt.dropPending()
		return
	}

	batch := make([]*atomNode, 0, len(rt.pending))
	for _, n := range rt.pending {
		batch = append(batch, n)
	}
	rt.pending = make(map[AtomID]*atomNode)
	sort.Slice(batch, func(i, j int) bool {
		return batch[i].lastChanged < batch[j].lastChanged
	})

	_, span := rt.tracer.Start(rt.ctx, "atom.flush",
		trace.WithAttributes(attribute.Int("atom.pending", len(batch))))
	began := time.Now()
	errsBefore := rt.stats.Errors

	rt.flushing = true
	ran := make(map[ConsumerID]struct{})
	for _, n := range batch {
		if _, again := rt.pending[n.id]; !again {
			n.dirty = false
		}
		for _, cid := range n.orderedDependents() {
			if _, done := ran[cid]; done {
				continue
			}
			c, ok := rt.consumers[cid]
			if !ok || c.base().disposed {
				continue
			}
			if _, still := c.base().deps[n.id]; !still {
				continue
			}
			ran[cid] = struct{}{}
			rt.runConsumer(c)
		}
	}
	rt.flushing = false
	rt.stats.Flushes++

	elapsed := time.Since(began)
	rt.observer.FlushCompleted(len(batch), len(ran), elapsed)
	span.SetAttributes(attribute.Int("atom.consumers", len(ran)))
	if failed := rt.stats.Errors - errsBefore; failed > 0 {
		span.SetStatus(codes.Error, "consumer failures")
		span.SetAttributes(attribute.Int64("atom.failures", int64(failed)))
	}
	span.End()
	rt.logger.Debug("atom: flush",
		"atoms", len(batch),
		"consumers", len(ran),
		"chained", rt.chained,
		"duration", elapsed)
}

func (rt *Runtime) dropPending() {
	dropped := len(rt.pending)
	for _, n := range rt.pending {
		n.dirty = false
	}
	rt.pending = make(map[AtomID]*atomNode)
	rt.stats.Dropped += uint64(dropped)
	rt.logger.Warn("atom: dropping runaway flush chain",
		"chained", rt.chained,
		"atoms", dropped)
	rt.chained = 0
	rt.ReportError(ErrFlushBudgetExceeded)
}
