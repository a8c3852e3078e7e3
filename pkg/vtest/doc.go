// Package vtest provides an in-memory vdom.Backend for tests and tools.
//
// The backend keeps a real mutable tree and validates every operation:
// bindings must be nodes it created, targets must still be attached and
// indices must be in range. Any violation is returned as an error, which
// makes it a strict oracle for reconciler output.
//
// # Quick Start
//
//	func TestList(t *testing.T) {
//	    backend := vtest.NewBackend()
//	    root := vdom.NewRoot(backend, backend.Container())
//	    if _, err := root.Commit(ctx, view(items)); err != nil {
//	        t.Fatal(err)
//	    }
//	    if diff := vtest.Mismatch(backend.Tree(), vtest.Build(view(items))); diff != "" {
//	        t.Errorf("tree mismatch: %s", diff)
//	    }
//	}
//
// # Failure Injection
//
// FailOn and FailAfter make an operation return an error, which exercises
// the stale-root path of vdom.Root:
//
//	backend.FailAfter(vtest.OpCreate, 2, nil) // third create fails with ErrInjected
//
// # Inspecting Operations
//
// Log returns every applied operation in order and Count returns how many
// times one kind ran since the last Reset:
//
//	backend.Reset()
//	root.Commit(ctx, next)
//	if n := backend.Count(vtest.OpCreate); n != 1 {
//	    t.Errorf("creates = %d, want 1", n)
//	}
//
// Node.String renders a compact form such as ul(li[a]("a") li[b]("b")),
// which keeps expected trees readable in test tables.
package vtest
