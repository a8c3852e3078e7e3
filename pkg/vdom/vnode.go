package vdom

// Kind is the node type discriminator.
type Kind uint8

const (
	KindText      Kind = iota // Text content, no tag
	KindElement               // <div>, <button>, etc.
	KindComponent             // Component reference
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "Text"
	case KindElement:
		return "Element"
	case KindComponent:
		return "Component"
	default:
		return "Unknown"
	}
}

// TextProp is the prop name used to patch the content of a text node.
const TextProp = "#text"

// Binding is an opaque handle to a materialized target node. Only the
// Backend interprets it.
type Binding any

// Props holds node attributes.
type Props map[string]any

// Component identifies a component type. Two component nodes have the same
// type only if they reference the same *Component.
type Component struct {
	Name string
}

// NewComponent creates a component reference.
func NewComponent(name string) *Component {
	return &Component{Name: name}
}

// VNode is one node of a rendered tree.
type VNode struct {
	Kind     Kind
	Tag      string     // KindElement
	Comp     *Component // KindComponent
	Text     string     // KindText
	Props    Props
	Children []*VNode
	Key      string  // Reconciliation key
	Binding  Binding // Set by the Applier after commit
}

// SameType reports whether v and other have the same kind and identity.
func (v *VNode) SameType(other *VNode) bool {
	if v == nil || other == nil || v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindElement:
		return v.Tag == other.Tag
	case KindComponent:
		return v.Comp == other.Comp
	default:
		return true
	}
}

// TypeName returns the tag, component name or "#text".
func (v *VNode) TypeName() string {
	if v == nil {
		return ""
	}
	switch v.Kind {
	case KindElement:
		return v.Tag
	case KindComponent:
		if v.Comp != nil {
			return v.Comp.Name
		}
		return "component"
	default:
		return TextProp
	}
}

// Walk calls fn for v and every descendant in depth-first order.
func (v *VNode) Walk(fn func(*VNode)) {
	if v == nil {
		return
	}
	fn(v)
	for _, c := range v.Children {
		c.Walk(fn)
	}
}

// Count returns the number of nodes in the tree rooted at v.
func (v *VNode) Count() int {
	n := 0
	v.Walk(func(*VNode) { n++ })
	return n
}
