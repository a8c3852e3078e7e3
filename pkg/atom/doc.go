// Package atom provides the fine-grained reactive store: Atoms, derived
// atoms, Effects and the Runtime that schedules them.
//
// # Core Types
//
// Atom[T] is a mutable reactive cell. Reading it with Get while a consumer
// is running subscribes that consumer; Set and Update write through a
// change gate and queue a notification. Peek reads without subscribing.
//
// Effect is a re-runnable computation. It runs once on creation and again
// whenever an atom it read during its last run changes. Every run clears
// its dependency edges and tracks them again from scratch, so conditional
// reads are always accurate. This costs O(dependencies) per run.
//
// Derived[T] is a consumer that is also an atom: it recomputes when its
// inputs change and forwards the result through a change-gated write.
//
// # Scheduling
//
// A Runtime owns one reactive graph. Writes in the same turn collect into a
// pending set; the first write asks the injected Scheduler to defer a flush.
// The flush orders atoms by the epoch of their last write and notifies each
// atom's dependents in the order they subscribed. Writes issued while a
// flush is running land in a fresh pending set handled by a later flush.
//
//	q := &atom.TaskQueue{}
//	rt := atom.NewRuntime(q)
//	count := atom.NewAtom(rt, 0)
//	atom.NewEffect(rt, func() atom.Cleanup {
//	    fmt.Println("count:", count.Get())
//	    return nil
//	})
//	count.Set(1)
//	count.Set(2)
//	q.Drain() // prints "count: 2" once
//
// The flush order approximates write order. It is not a topological sort, so
// a consumer that depends on two atoms changed in one flush and on a derived
// value of them may briefly observe an inconsistent combination.
//
// A Runtime is not safe for concurrent use. Drive it from a single goroutine,
// for example with the loop package.
package atom
