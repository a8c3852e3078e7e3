package metrics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/vango-dev/atomdom/pkg/atom"
	vdom "github.com/vango-dev/atomdom/pkg/vdom"
	"github.com/vango-dev/atomdom/pkg/vtest"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	if m.Counter == nil {
		t.Fatal("expected counter metric to have Counter field")
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("gauge Write() error: %v", err)
	}
	return m.GetGauge().GetValue()
}

func histogramCount(t *testing.T, h prometheus.Histogram) uint64 {
	t.Helper()
	var m dto.Metric
	if err := h.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	if m.Histogram == nil {
		t.Fatal("expected histogram metric to have Histogram field")
	}
	return m.GetHistogram().GetSampleCount()
}

func TestCollectorObservesRuntime(t *testing.T) {
	c := New(WithRegistry(prometheus.NewRegistry()))
	q := &atom.TaskQueue{}
	rt := atom.NewRuntime(q, atom.WithObserver(c), atom.WithLogger(quiet), atom.WithErrorHandler(func(error) {}))

	a := atom.NewAtom(rt, 0)
	atom.NewEffect(rt, func() atom.Cleanup {
		if a.Get() == 2 {
			panic("two")
		}
		return nil
	})

	a.Set(1)
	q.Drain()
	a.Set(2)
	q.Drain()

	if got := counterValue(t, c.atomWrites); got != 2 {
		t.Errorf("atom_writes_total = %v, want 2", got)
	}
	if got := counterValue(t, c.flushes); got != 2 {
		t.Errorf("flushes_total = %v, want 2", got)
	}
	if got := counterValue(t, c.consumerRuns.WithLabelValues("success")); got != 2 {
		t.Errorf("consumer_runs_total(success) = %v, want 2", got)
	}
	if got := counterValue(t, c.consumerRuns.WithLabelValues("error")); got != 1 {
		t.Errorf("consumer_runs_total(error) = %v, want 1", got)
	}
	if got := histogramCount(t, c.flushLatency); got != 2 {
		t.Errorf("flush_duration_seconds count = %v, want 2", got)
	}
}

func TestCollectorObservesCycles(t *testing.T) {
	c := New(WithRegistry(prometheus.NewRegistry()))
	q := &atom.TaskQueue{}
	rt := atom.NewRuntime(q, atom.WithObserver(c), atom.WithLogger(quiet), atom.WithErrorHandler(func(error) {}))

	a := atom.NewAtom(rt, 1)
	var d *atom.Derived[int]
	d = atom.NewDerived(rt, func() int {
		v := a.Get()
		if d != nil {
			v += d.Get()
		}
		return v
	})

	a.Set(2)
	q.Drain()

	if got := counterValue(t, c.cycles); got != 1 {
		t.Errorf("dependency_cycles_total = %v, want 1", got)
	}
	if got := counterValue(t, c.cycles); uint64(got) != rt.Stats().Cycles {
		t.Errorf("collector and runtime disagree: %v vs %d", got, rt.Stats().Cycles)
	}
}

func TestCollectorObservesCommits(t *testing.T) {
	c := New(WithRegistry(prometheus.NewRegistry()))
	backend := vtest.NewBackend()
	root := vdom.NewRoot(backend, backend.Container(), vdom.WithRootObserver(c), vdom.WithRootLogger(quiet))

	list := func(keys ...string) *vdom.VNode {
		kids := make([]any, len(keys))
		for i, k := range keys {
			kids[i] = vdom.Keyed(k, vdom.Element("li", nil))
		}
		return vdom.Element("ul", nil, kids...)
	}

	ctx := context.Background()
	if _, err := root.Commit(ctx, list("a", "b", "c")); err != nil {
		t.Fatal(err)
	}
	if _, err := root.Commit(ctx, list("c", "a", "b")); err != nil {
		t.Fatal(err)
	}
	backend.FailOn(vtest.OpCreate, nil)
	if _, err := root.Commit(ctx, list("c", "a", "b", "d")); !errors.Is(err, vtest.ErrInjected) {
		t.Fatalf("Commit() error = %v, want ErrInjected", err)
	}

	if got := counterValue(t, c.commits.WithLabelValues("success")); got != 2 {
		t.Errorf("commits_total(success) = %v, want 2", got)
	}
	if got := counterValue(t, c.commits.WithLabelValues("error")); got != 1 {
		t.Errorf("commits_total(error) = %v, want 1", got)
	}
	if got := counterValue(t, c.patches.WithLabelValues("CREATE")); got != 1 {
		t.Errorf("patches_total(CREATE) = %v, want 1", got)
	}
	if got := counterValue(t, c.patches.WithLabelValues("REORDER_CHILDREN")); got != 1 {
		t.Errorf("patches_total(REORDER_CHILDREN) = %v, want 1", got)
	}
	if got := histogramCount(t, c.commitLatency); got != 3 {
		t.Errorf("commit_duration_seconds count = %v, want 3", got)
	}
}

func TestCollectorObservesStream(t *testing.T) {
	c := New(WithRegistry(prometheus.NewRegistry()))

	c.SubscriberAdded()
	c.SubscriberAdded()
	c.SubscriberRemoved()
	c.FrameSent()
	c.StreamError("write")

	if got := gaugeValue(t, c.subscribers); got != 1 {
		t.Errorf("stream_subscribers = %v, want 1", got)
	}
	if got := counterValue(t, c.framesSent); got != 1 {
		t.Errorf("stream_frames_total = %v, want 1", got)
	}
	if got := counterValue(t, c.streamErrors.WithLabelValues("write")); got != 1 {
		t.Errorf("stream_errors_total(write) = %v, want 1", got)
	}
}

func TestCollectorOptions(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(
		WithRegistry(reg),
		WithNamespace("app"),
		WithSubsystem("ui"),
		WithConstLabels(prometheus.Labels{"env": "test"}),
		WithBuckets([]float64{0.001, 0.01}),
	)
	c.FlushCompleted(1, 1, time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "app_ui_flush_duration_seconds" {
			found = true
			m := f.GetMetric()[0]
			if len(m.GetHistogram().GetBucket()) != 2 {
				t.Errorf("buckets = %d, want 2", len(m.GetHistogram().GetBucket()))
			}
			if m.GetLabel()[0].GetName() != "env" {
				t.Errorf("labels = %v", m.GetLabel())
			}
		}
	}
	if !found {
		t.Error("app_ui_flush_duration_seconds not registered")
	}
}
