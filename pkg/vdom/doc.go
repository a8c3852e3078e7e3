// Package vdom provides the tree model and the reconciliation engine.
//
// # Core Types
//
// VNode is an immutable description of one rendered node. Its Kind is a
// closed variant: KindText, KindElement (identified by Tag) or
// KindComponent (identified by a *Component reference). Binding is the
// opaque handle to the materialized target node; it is set by the Applier
// when a node is created and carried forward by Diff onto the logically
// same node of the next tree.
//
// # Diffing
//
// Diff compares two trees and returns an edit script of Patch values:
//
//	patches := vdom.Diff(prev, next)
//
// Nodes of different type are replaced whole. Same-type nodes get prop
// patches, then their children are reconciled. Keyed child lists use a
// four-pointer head/tail walk with a key table fallback, so common edits
// (append, prepend, swap, reverse) stay linear. Moves for one parent are
// coalesced into a single PatchReorderChildren emitted after that level's
// removals, replacements and creations. Unkeyed lists are diffed by
// position.
//
// # Applying
//
// Applier drives a Backend, the external mutable target, and records the
// bindings of created and replaced nodes. Root retains the previously
// committed tree and runs diff and apply as one step:
//
//	root := vdom.NewRoot(backend, container)
//	root.Commit(ctx, render())
package vdom
