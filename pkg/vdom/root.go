package vdom

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/vango-dev/atomdom/pkg/vdom"

// Observer receives commit measurements.
type Observer interface {
	Committed(patches []Patch, d time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) Committed([]Patch, time.Duration, error) {}

// RootOption configures a Root.
type RootOption func(*Root)

// WithReconciler sets the reconciler used by Commit.
func WithReconciler(r *Reconciler) RootOption {
	return func(root *Root) {
		if r != nil {
			root.reconciler = r
		}
	}
}

// WithApplierOptions passes options to the root's Applier.
func WithApplierOptions(opts ...ApplierOption) RootOption {
	return func(root *Root) {
		root.applierOpts = append(root.applierOpts, opts...)
	}
}

// WithRootObserver sets the commit observer.
func WithRootObserver(o Observer) RootOption {
	return func(root *Root) {
		if o != nil {
			root.observer = o
		}
	}
}

// WithRootTracer sets the tracer used for commit spans.
func WithRootTracer(t trace.Tracer) RootOption {
	return func(root *Root) {
		if t != nil {
			root.tracer = t
		}
	}
}

// WithRootLogger sets the logger.
func WithRootLogger(l *slog.Logger) RootOption {
	return func(root *Root) {
		if l != nil {
			root.logger = l
		}
	}
}

// Root owns the previously committed tree of one container. Each Commit
// diffs against it, applies the patches and retains the new tree.
//
// A failed commit leaves the target partially patched. The root keeps the
// last good tree and marks itself stale; the next commit rebuilds the
// whole tree instead of diffing.
type Root struct {
	mu          sync.Mutex
	reconciler  *Reconciler
	applier     *Applier
	applierOpts []ApplierOption
	observer    Observer
	tracer      trace.Tracer
	logger      *slog.Logger

	current *VNode
	stale   bool
}

// NewRoot creates a root that mounts into container through backend.
func NewRoot(backend Backend, container Binding, opts ...RootOption) *Root {
	r := &Root{
		reconciler: defaultReconciler,
		observer:   nopObserver{},
		tracer:     otel.Tracer(tracerName),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.applier = NewApplier(backend, container, r.applierOpts...)
	return r
}

// Current returns the last committed tree.
func (r *Root) Current() *VNode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Stale reports whether the last commit failed.
func (r *Root) Stale() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stale
}

// Commit reconciles next against the current tree and applies the result.
// A nil next unmounts. Commit returns ErrConcurrentCommit if another commit
// on this root is in progress.
func (r *Root) Commit(ctx context.Context, next *VNode) ([]Patch, error) {
	if !r.mu.TryLock() {
		return nil, ErrConcurrentCommit
	}
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	_, span := r.tracer.Start(ctx, "vdom.commit")
	defer span.End()

	start := time.Now()
	patches := r.plan(next)
	span.SetAttributes(attribute.Int("vdom.patches", len(patches)))

	err := r.applier.Apply(patches)
	elapsed := time.Since(start)
	r.observer.Committed(patches, elapsed, err)

	if err != nil {
		r.stale = true
		if r.current == nil && next != nil && next.Binding != nil {
			// Partially mounted; the rebuild replaces it.
			r.current = next
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Error("vdom: commit failed", "error", err, "patches", len(patches))
		return patches, err
	}

	r.current = next
	r.stale = false
	r.logger.Debug("vdom: committed", "patches", len(patches), "duration", elapsed)
	return patches, nil
}

// Unmount removes the current tree from the container.
func (r *Root) Unmount(ctx context.Context) error {
	_, err := r.Commit(ctx, nil)
	return err
}

func (r *Root) plan(next *VNode) []Patch {
	if !r.stale || r.current == nil {
		return r.reconciler.Diff(r.current, next)
	}
	// Rebuild after a failed commit.
	switch {
	case r.current.Binding == nil && next == nil:
		return nil
	case r.current.Binding == nil:
		return []Patch{{Op: PatchCreate, Node: next}}
	case next == nil:
		return []Patch{{Op: PatchRemove, Binding: r.current.Binding, Node: r.current}}
	default:
		return []Patch{{Op: PatchReplace, Binding: r.current.Binding, Node: next}}
	}
}
