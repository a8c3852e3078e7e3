// Package atomdom ties a reactive runtime to a tree reconciler.
//
// An App owns one atom.Runtime. Mount subscribes a render function to the
// atoms it reads and commits every new tree to a backend:
//
//	app := atomdom.New(atomdom.Config{})
//	go app.Run(ctx)
//
//	var count *atom.Atom[int]
//	app.Do(ctx, func() {
//	    count = atom.NewAtom(app.Runtime(), 0)
//	    view, err = app.Mount(backend, container, func() *vdom.VNode {
//	        return vdom.Element("p", nil, vdom.Textf("%d", count.Get()))
//	    })
//	})
//
// The runtime is single-threaded. Atoms are read and written, and views
// mounted, on the goroutine that drives the scheduler: inside Do when the
// App owns its loop, or wherever the caller drains Config.Scheduler.
package atomdom

import (
	"context"
	"errors"
	"log/slog"

	"github.com/vango-dev/atomdom/pkg/atom"
	"github.com/vango-dev/atomdom/pkg/loop"
	vdom "github.com/vango-dev/atomdom/pkg/vdom"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrRenderFailed is returned by Mount when the first render panicked.
	// The panic itself goes to the error handler.
	ErrRenderFailed = errors.New("atomdom: render failed")

	// ErrViewDisposed is returned when a disposed view is used.
	ErrViewDisposed = errors.New("atomdom: view disposed")

	// ErrNoLoop is returned by Run when Config.Scheduler was set.
	ErrNoLoop = errors.New("atomdom: app does not own a loop")
)

// =============================================================================
// App Type
// =============================================================================

// App bundles a runtime with the options every mounted view shares.
type App struct {
	config  Config
	logger  *slog.Logger
	loop    *loop.Loop // nil when Config.Scheduler is set
	runtime *atom.Runtime
}

// New creates an App.
func New(cfg Config) *App {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{config: cfg, logger: logger}
	sched := cfg.Scheduler
	if sched == nil {
		loopOpts := []loop.Option{loop.WithLogger(logger)}
		if cfg.MicrotaskBudget > 0 {
			loopOpts = append(loopOpts, loop.WithMicrotaskBudget(cfg.MicrotaskBudget))
		}
		a.loop = loop.New(loopOpts...)
		sched = a.loop
	}
	a.runtime = atom.NewRuntime(sched, cfg.runtimeOptions(logger)...)
	return a
}

// Runtime returns the reactive runtime.
func (a *App) Runtime() *atom.Runtime {
	return a.runtime
}

// Loop returns the owned event loop, or nil when Config.Scheduler was set.
func (a *App) Loop() *loop.Loop {
	return a.loop
}

// Run drives the owned loop until ctx is done or Shutdown is called.
func (a *App) Run(ctx context.Context) error {
	if a.loop == nil {
		return ErrNoLoop
	}
	return a.loop.Run(ctx)
}

// Do runs fn on the runtime's goroutine and waits for it and the flushes
// it caused. Without an owned loop fn runs on the caller's goroutine.
func (a *App) Do(ctx context.Context, fn func()) error {
	if a.loop == nil {
		fn()
		return nil
	}
	if a.loop.OnLoop() {
		fn()
		return nil
	}
	return a.loop.Do(ctx, fn)
}

// Shutdown stops the owned loop after running queued work.
func (a *App) Shutdown(ctx context.Context) error {
	if a.loop == nil {
		return nil
	}
	return a.loop.Shutdown(ctx)
}

// =============================================================================
// Views
// =============================================================================

// View is a mounted render function.
type View struct {
	app    *App
	root   *vdom.Root
	effect *atom.Effect
	render func() *vdom.VNode

	rendered bool
	lastErr  error
}

// Mount renders into container through backend and re-renders whenever an
// atom read during the last render changes. If the first render panics or
// its commit fails, nothing stays subscribed and the error is returned.
// Later commit failures go to the error handler; the view keeps running and
// the next commit rebuilds the tree.
func (a *App) Mount(backend vdom.Backend, container vdom.Binding, render func() *vdom.VNode) (*View, error) {
	v := &View{
		app:    a,
		root:   vdom.NewRoot(backend, container, a.config.rootOptions(a.logger)...),
		render: render,
	}
	v.effect = atom.NewEffect(a.runtime, v.run, atom.EffectLabel("view"))

	if !v.rendered {
		v.effect.Dispose()
		return nil, ErrRenderFailed
	}
	if v.lastErr != nil {
		v.effect.Dispose()
		// Removes whatever part of the tree was created.
		_ = v.root.Unmount(context.Background())
		return nil, v.lastErr
	}
	return v, nil
}

func (v *View) run() atom.Cleanup {
	tree := v.render()

	var err error
	v.app.runtime.Untracked(func() {
		_, err = v.root.Commit(context.Background(), tree)
	})
	mounted := v.rendered
	v.rendered = true
	v.lastErr = err
	if err != nil && mounted {
		v.app.runtime.ReportError(err)
	}
	return nil
}

// Root returns the view's root.
func (v *View) Root() *vdom.Root {
	return v.root
}

// Current returns the last committed tree.
func (v *View) Current() *vdom.VNode {
	return v.root.Current()
}

// Renders returns how many times the render function has started.
func (v *View) Renders() int {
	return v.effect.Runs()
}

// Err returns the error of the last commit.
func (v *View) Err() error {
	return v.lastErr
}

// Dispose stops re-rendering and removes the mounted tree.
func (v *View) Dispose() error {
	if v.effect.Disposed() {
		return ErrViewDisposed
	}
	v.effect.Dispose()
	return v.root.Unmount(context.Background())
}
