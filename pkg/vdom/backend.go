package vdom

// Backend performs mutations on a concrete target tree. Create and replace
// return the binding of the new target node; the Applier then creates the
// node's children one by one, so a backend only materializes a single node
// per call.
type Backend interface {
	// CreateTarget inserts a node built from node.Kind, Tag, Text and Props
	// as the index-th child of parent.
	CreateTarget(parent Binding, index int, node *VNode) (Binding, error)

	// SetProp sets a prop. For text nodes, name is TextProp and value is the
	// new content.
	SetProp(target Binding, name string, value any) error

	// RemoveProp removes a prop.
	RemoveProp(target Binding, name string) error

	// RemoveTarget detaches target and its subtree from its parent.
	RemoveTarget(target Binding) error

	// ReplaceTarget substitutes a childless node built from node for old at
	// the same position.
	ReplaceTarget(old Binding, node *VNode) (Binding, error)

	// ReorderChildren moves the listed children of parent to their final
	// indices. Children not listed keep their relative order and fill the
	// remaining slots.
	ReorderChildren(parent Binding, placements []Placement) error
}

// Placement is a resolved Move.
type Placement struct {
	Binding Binding
	Key     string
	Index   int
}
