package vdom

// PatchOp is the type of patch operation.
type PatchOp uint8

const (
	PatchCreate          PatchOp = iota + 1 // Insert a new subtree under Parent at Index
	PatchRemove                             // Remove Binding and its subtree
	PatchSetProp                            // Set prop Name to Value on Binding
	PatchRemoveProp                         // Remove prop Name from Binding
	PatchReplace                            // Replace Binding with a new subtree
	PatchReorderChildren                    // Place moved children of Parent
)

// String returns the string representation of the PatchOp.
func (op PatchOp) String() string {
	switch op {
	case PatchCreate:
		return "CREATE"
	case PatchRemove:
		return "REMOVE"
	case PatchSetProp:
		return "SET_PROP"
	case PatchRemoveProp:
		return "REMOVE_PROP"
	case PatchReplace:
		return "REPLACE"
	case PatchReorderChildren:
		return "REORDER_CHILDREN"
	default:
		return "UNKNOWN"
	}
}

// Move places one existing child at its final index.
type Move struct {
	Node *VNode // Node of the new tree; its Binding is resolved at apply time
	Key  string
	To   int
}

// Patch is one edit of a reconciliation script.
//
// Index of a PatchCreate counts positions in the parent's child list after
// the removals and earlier creations of the same level. A
// PatchReorderChildren places each moved child at its final index and fills
// the remaining slots with the other children in their current order.
type Patch struct {
	Op      PatchOp
	Binding Binding // Target of Remove, SetProp, RemoveProp, Replace
	Parent  Binding // Parent of Create and ReorderChildren; nil means the root container
	Node    *VNode  // New node for Create and Replace; patched node otherwise
	Index   int
	Name    string
	Value   any
	Moves   []Move
}

// CountOps tallies patches by operation. Moves inside a reorder are
// counted under PatchReorderChildren.
func CountOps(patches []Patch) map[PatchOp]int {
	counts := make(map[PatchOp]int)
	for _, p := range patches {
		if p.Op == PatchReorderChildren {
			counts[p.Op] += len(p.Moves)
			continue
		}
		counts[p.Op]++
	}
	return counts
}
