package atomdom

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/atomdom/pkg/atom"
	vdom "github.com/vango-dev/atomdom/pkg/vdom"
)

// =============================================================================
// Configuration Types
// =============================================================================

// Config is the application configuration.
type Config struct {
	// Logger is the structured logger shared by the runtime, the loop and
	// every mounted view. If nil, slog.Default() is used.
	Logger *slog.Logger

	// Scheduler defers flushes. If nil, the App owns an event loop and
	// Run must be called to drive it.
	Scheduler atom.Scheduler

	// OnError receives consumer failures, dependency cycles and commit
	// failures of mounted views. If nil, errors are logged.
	OnError func(err error)

	// RuntimeObserver receives runtime events, typically a metrics collector.
	RuntimeObserver atom.Observer

	// CommitObserver receives one event per view commit.
	CommitObserver vdom.Observer

	// Tracer is used for flush and commit spans. If nil, the global
	// OpenTelemetry tracer provider is used.
	Tracer trace.Tracer

	// MaxChainedFlushes bounds flushes triggered only by writes made during
	// the previous flush. Zero uses atom.DefaultMaxChainedFlushes; a
	// negative value disables the bound.
	MaxChainedFlushes int

	// MicrotaskBudget caps microtasks drained per loop turn when the App
	// owns its loop. Zero means unbounded.
	MicrotaskBudget int

	// Strict makes patch application panic on unbound targets.
	Strict bool
}

// =============================================================================
// Default Configurations
// =============================================================================

// DefaultConfig returns a Config with defaults.
func DefaultConfig() Config {
	return Config{
		MaxChainedFlushes: atom.DefaultMaxChainedFlushes,
	}
}

func (c Config) runtimeOptions(logger *slog.Logger) []atom.RuntimeOption {
	opts := []atom.RuntimeOption{
		atom.WithLogger(logger),
		atom.WithObserver(c.RuntimeObserver),
		atom.WithTracer(c.Tracer),
	}
	if c.OnError != nil {
		opts = append(opts, atom.WithErrorHandler(c.OnError))
	}
	switch {
	case c.MaxChainedFlushes > 0:
		opts = append(opts, atom.WithMaxChainedFlushes(c.MaxChainedFlushes))
	case c.MaxChainedFlushes < 0:
		opts = append(opts, atom.WithMaxChainedFlushes(0))
	}
	return opts
}

func (c Config) rootOptions(logger *slog.Logger) []vdom.RootOption {
	diffOpts := []vdom.ReconcilerOption{vdom.WithDiffLogger(logger)}
	if c.OnError != nil {
		diffOpts = append(diffOpts, vdom.WithDiffErrorHandler(c.OnError))
	}
	opts := []vdom.RootOption{
		vdom.WithRootLogger(logger),
		vdom.WithRootObserver(c.CommitObserver),
		vdom.WithReconciler(vdom.NewReconciler(diffOpts...)),
	}
	if c.Tracer != nil {
		opts = append(opts, vdom.WithRootTracer(c.Tracer))
	}
	if c.Strict {
		opts = append(opts, vdom.WithApplierOptions(vdom.Strict()))
	}
	return opts
}
