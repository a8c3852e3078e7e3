package atom

import (
	"strings"
	"testing"
)

func TestAtomGetSet(t *testing.T) {
	rt, q, _ := newTestRuntime(t)
	a := NewAtom(rt, 1)

	if got := a.Get(); got != 1 {
		t.Fatalf("Get() = %d, want 1", got)
	}

	a.Set(5)
	if got := a.Get(); got != 5 {
		t.Errorf("Get() after Set = %d, want 5", got)
	}
	if got := a.Peek(); got != 5 {
		t.Errorf("Peek() after Set = %d, want 5", got)
	}
	if !a.Dirty() {
		t.Error("atom should be dirty before flush")
	}
	if rt.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", rt.Pending())
	}

	q.Drain()
	if a.Dirty() {
		t.Error("atom should be clean after flush")
	}
}

func TestAtomSetSameValueIsGated(t *testing.T) {
	rt, q, _ := newTestRuntime(t)
	a := NewAtom(rt, "x")

	a.Set("x")
	if q.Len() != 0 {
		t.Errorf("unchanged Set should not schedule a flush, queue = %d", q.Len())
	}
	if rt.Stats().Writes != 0 {
		t.Errorf("Writes = %d, want 0", rt.Stats().Writes)
	}
}

func TestAtomUpdate(t *testing.T) {
	rt, _, _ := newTestRuntime(t)
	a := NewAtom(rt, 10)

	a.Update(func(v int) int { return v * 2 })
	a.Update(func(v int) int { return v + 1 })

	if got := a.Peek(); got != 21 {
		t.Errorf("Peek() = %d, want 21", got)
	}
}

func TestAtomEpochStamping(t *testing.T) {
	rt, _, _ := newTestRuntime(t)
	a := NewAtom(rt, 0)
	b := NewAtom(rt, 0)

	start := rt.Epoch()
	a.Set(1)
	b.Set(1)
	a.Set(2)

	if rt.Epoch() != start+3 {
		t.Errorf("Epoch() = %d, want %d", rt.Epoch(), start+3)
	}
	if a.node.lastChanged <= b.node.lastChanged {
		t.Errorf("a.lastChanged = %d should be after b.lastChanged = %d", a.node.lastChanged, b.node.lastChanged)
	}
}

func TestAtomOneFlushPerTurn(t *testing.T) {
	rt, q, _ := newTestRuntime(t)
	a := NewAtom(rt, 0)
	b := NewAtom(rt, 0)

	a.Set(1)
	b.Set(1)
	a.Set(2)

	if q.Len() != 1 {
		t.Fatalf("expected exactly one deferred flush, got %d", q.Len())
	}
	q.Drain()
	if rt.Stats().Flushes != 1 {
		t.Errorf("Flushes = %d, want 1", rt.Stats().Flushes)
	}
}

func TestAtomWithEqual(t *testing.T) {
	rt, q, _ := newTestRuntime(t)
	a := NewAtom(rt, "ABC", WithEqual(strings.EqualFold))

	a.Set("abc")
	if q.Len() != 0 {
		t.Error("custom equality should gate the write")
	}
	if a.Peek() != "ABC" {
		t.Errorf("Peek() = %q, want ABC", a.Peek())
	}
}

func TestAtomAlwaysNotify(t *testing.T) {
	rt, q, _ := newTestRuntime(t)
	a := NewAtom(rt, 1, AlwaysNotify[int]())

	runs := 0
	NewEffect(rt, func() Cleanup {
		_ = a.Get()
		runs++
		return nil
	})

	a.Set(1)
	q.Drain()
	if runs != 2 {
		t.Errorf("runs = %d, want 2", runs)
	}
}
