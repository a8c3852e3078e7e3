// Package el is a small DSL for building vdom trees.
//
// Element constructors take any mix of attributes, event handlers and
// children:
//
//	import . "github.com/vango-dev/atomdom/el"
//
//	Ul(Class("todos"),
//	    Range(items, func(it Item, _ int) *VNode {
//	        return Li(Key(it.ID), ClassIf(it.Done, "done"), it.Title)
//	    }),
//	)
//
// A Key attribute sets the node's reconciliation key instead of a prop.
// nil children and empty attributes are dropped, which keeps conditional
// markup inline.
package el
