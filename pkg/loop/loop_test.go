package loop

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/vango-dev/atomdom/pkg/atom"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func startLoop(t *testing.T, opts ...Option) *Loop {
	t.Helper()
	l := New(append([]Option{WithLogger(quiet)}, opts...)...)
	errc := make(chan error, 1)
	go func() { errc <- l.Run(context.Background()) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown() error = %v", err)
		}
		if err := <-errc; err != nil {
			t.Errorf("Run() error = %v", err)
		}
	})
	return l
}

func TestMicrotasksRunBeforeNextTask(t *testing.T) {
	l := startLoop(t)
	var order []string

	err := l.Do(context.Background(), func() {
		order = append(order, "task1")
		l.Defer(func() {
			order = append(order, "micro1")
			l.Defer(func() { order = append(order, "micro2") })
		})
		if err := l.Submit(func() { order = append(order, "task2") }); err != nil {
			t.Errorf("Submit() error = %v", err)
		}
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if err := l.Do(context.Background(), func() {}); err != nil {
		t.Fatal(err)
	}

	want := []string{"task1", "micro1", "micro2", "task2"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestSubmitFromManyGoroutines(t *testing.T) {
	l := startLoop(t)
	count := 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if err := l.Submit(func() { count++ }); err != nil {
					t.Errorf("Submit() error = %v", err)
				}
			}
		}()
	}
	wg.Wait()

	var got int
	if err := l.Do(context.Background(), func() { got = count }); err != nil {
		t.Fatal(err)
	}
	if got != 1000 {
		t.Errorf("count = %d, want 1000", got)
	}
}

func TestPanicIsolation(t *testing.T) {
	var recovered []any
	l := startLoop(t, WithPanicHandler(func(v any, stack []byte) {
		recovered = append(recovered, v)
		if len(stack) == 0 {
			t.Error("empty stack")
		}
	}))

	ran := false
	_ = l.Submit(func() { panic("boom") })
	if err := l.Do(context.Background(), func() { ran = true }); err != nil {
		t.Fatal(err)
	}

	if !ran {
		t.Error("task after panic did not run")
	}
	if len(recovered) != 1 || recovered[0] != "boom" {
		t.Errorf("recovered = %v, want [boom]", recovered)
	}
	if _, panics := l.Stats(); panics != 1 {
		t.Errorf("panics = %d, want 1", panics)
	}
}

func TestDeferOffLoopSubmits(t *testing.T) {
	l := startLoop(t)
	done := make(chan struct{})
	l.Defer(func() { close(done) })
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("deferred task did not run")
	}
}

func TestMicrotaskBudgetYields(t *testing.T) {
	l := startLoop(t, WithMicrotaskBudget(2))
	var order []string

	err := l.Do(context.Background(), func() {
		for i := 0; i < 5; i++ {
			l.Defer(func() { order = append(order, "m") })
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Do(context.Background(), func() {}); err != nil {
		t.Fatal(err)
	}
	if len(order) != 5 {
		t.Errorf("ran %d microtasks, want 5", len(order))
	}
}

func TestShutdownDrainsAndRejects(t *testing.T) {
	l := New(WithLogger(quiet))
	ran := 0
	for i := 0; i < 3; i++ {
		if err := l.Submit(func() { ran++ }); err != nil {
			t.Fatal(err)
		}
	}

	errc := make(chan error, 1)
	go func() { errc <- l.Run(context.Background()) }()

	if err := l.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := <-errc; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if ran != 3 {
		t.Errorf("ran = %d, want 3", ran)
	}
	if err := l.Submit(func() {}); !errors.Is(err, ErrLoopTerminated) {
		t.Errorf("Submit() after shutdown error = %v, want ErrLoopTerminated", err)
	}
	if l.State() != StateTerminated {
		t.Errorf("State() = %v, want terminated", l.State())
	}
}

func TestShutdownBeforeRun(t *testing.T) {
	l := New(WithLogger(quiet))
	if err := l.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := l.Run(context.Background()); !errors.Is(err, ErrLoopTerminated) {
		t.Errorf("Run() error = %v, want ErrLoopTerminated", err)
	}
}

func TestRunTwice(t *testing.T) {
	l := startLoop(t)
	// Ensure the first Run has started.
	if err := l.Do(context.Background(), func() {}); err != nil {
		t.Fatal(err)
	}
	if err := l.Run(context.Background()); !errors.Is(err, ErrLoopAlreadyRunning) {
		t.Errorf("Run() error = %v, want ErrLoopAlreadyRunning", err)
	}
}

func TestContextCancelStopsLoop(t *testing.T) {
	l := New(WithLogger(quiet))
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- l.Run(ctx) }()
	cancel()

	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestAfter(t *testing.T) {
	l := startLoop(t)
	fired := make(chan bool, 1)
	l.After(time.Millisecond, func() { fired <- l.OnLoop() })

	select {
	case onLoop := <-fired:
		if !onLoop {
			t.Error("timer callback ran off the loop")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timer did not fire")
	}

	cancel := l.After(time.Hour, func() { t.Error("cancelled timer fired") })
	if !cancel() {
		t.Error("cancel() = false, want true")
	}
}

func TestDrivesAtomRuntime(t *testing.T) {
	l := startLoop(t)
	var (
		rt   *atom.Runtime
		a    *atom.Atom[int]
		seen []int
	)

	err := l.Do(context.Background(), func() {
		rt = atom.NewRuntime(l, atom.WithLogger(quiet))
		a = atom.NewAtom(rt, 0)
		atom.NewEffect(rt, func() atom.Cleanup {
			seen = append(seen, a.Get())
			return nil
		})
	})
	if err != nil {
		t.Fatal(err)
	}

	// Both writes happen in one task, so the effect observes only the last.
	if err := l.Do(context.Background(), func() {
		a.Set(1)
		a.Set(2)
	}); err != nil {
		t.Fatal(err)
	}

	var got []int
	var flushes uint64
	if err := l.Do(context.Background(), func() {
		got = append(got, seen...)
		flushes = rt.Stats().Flushes
	}); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Errorf("seen = %v, want [0 2]", got)
	}
	if flushes != 1 {
		t.Errorf("flushes = %d, want 1", flushes)
	}
}

func TestStateString(t *testing.T) {
	if StateRunning.String() != "running" || State(42).String() != "unknown" {
		t.Error("unexpected state strings")
	}
}
