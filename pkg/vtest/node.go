package vtest

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	vdom "github.com/vango-dev/atomdom/pkg/vdom"
)

// Node is one node of the in-memory target tree.
type Node struct {
	ID       int
	Kind     vdom.Kind
	Tag      string
	Comp     string
	Text     string
	Key      string
	Props    map[string]any
	Children []*Node
	Parent   *Node

	owner *Backend
}

func (n *Node) label() string {
	switch n.Kind {
	case vdom.KindText:
		return fmt.Sprintf("#text(%d)", n.ID)
	case vdom.KindComponent:
		return fmt.Sprintf("<%s>(%d)", n.Comp, n.ID)
	default:
		if n.ID == 0 {
			return n.Tag
		}
		return fmt.Sprintf("<%s>(%d)", n.Tag, n.ID)
	}
}

func (n *Node) attached() bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.owner == nil || cur == cur.owner.root {
			return true
		}
	}
	return false
}

func (n *Node) insert(i int, c *Node) {
	c.Parent = n
	n.Children = slices.Insert(n.Children, i, c)
}

func (n *Node) indexOf(c *Node) int {
	return slices.Index(n.Children, c)
}

func (n *Node) detach() {
	p := n.Parent
	if p == nil {
		return
	}
	if i := p.indexOf(n); i >= 0 {
		p.Children = slices.Delete(p.Children, i, i+1)
	}
	n.Parent = nil
}

// Build constructs a detached target tree that mirrors v. Node IDs are zero.
func Build(v *vdom.VNode) *Node {
	if v == nil {
		return nil
	}
	n := &Node{Kind: v.Kind, Tag: v.Tag, Text: v.Text, Key: v.Key}
	if v.Kind == vdom.KindComponent && v.Comp != nil {
		n.Comp = v.Comp.Name
	}
	if len(v.Props) > 0 {
		n.Props = maps.Clone(map[string]any(v.Props))
	}
	for _, c := range v.Children {
		if c == nil {
			continue
		}
		cn := Build(c)
		cn.Parent = n
		n.Children = append(n.Children, cn)
	}
	return n
}

// Snapshot returns the subtree rooted at n as a detached virtual tree.
// The backend's container becomes a component node, so it renders as its
// children. Snapshot of a nil node is nil.
func (n *Node) Snapshot() *vdom.VNode {
	if n == nil {
		return nil
	}
	v := &vdom.VNode{Kind: n.Kind, Tag: n.Tag, Text: n.Text, Key: n.Key}
	switch {
	case n.owner != nil && n == n.owner.root:
		v.Kind, v.Tag = vdom.KindComponent, ""
	case n.Kind == vdom.KindComponent:
		v.Comp = vdom.NewComponent(n.Comp)
	}
	if len(n.Props) > 0 {
		v.Props = maps.Clone(vdom.Props(n.Props))
	}
	for _, c := range n.Children {
		v.Children = append(v.Children, c.Snapshot())
	}
	return v
}

// Equal reports whether two target trees have the same structure, content
// and props. IDs and parents are ignored.
func Equal(a, b *Node) bool {
	return Mismatch(a, b) == ""
}

// Mismatch describes the first difference between a and b, or returns ""
// when they are equal.
func Mismatch(a, b *Node) string {
	return mismatch(a, b, "$")
}

func mismatch(a, b *Node, path string) string {
	switch {
	case a == nil && b == nil:
		return ""
	case a == nil || b == nil:
		return fmt.Sprintf("%s: %v vs %v", path, a, b)
	}
	if a.Kind != b.Kind || a.Tag != b.Tag || a.Comp != b.Comp {
		return fmt.Sprintf("%s: type %s vs %s", path, a.typeName(), b.typeName())
	}
	if a.Text != b.Text {
		return fmt.Sprintf("%s: text %q vs %q", path, a.Text, b.Text)
	}
	if a.Key != b.Key {
		return fmt.Sprintf("%s: key %q vs %q", path, a.Key, b.Key)
	}
	if len(a.Props) != len(b.Props) {
		return fmt.Sprintf("%s: props %v vs %v", path, a.Props, b.Props)
	}
	for k, av := range a.Props {
		bv, ok := b.Props[k]
		if !ok || !vdom.PropEqual(av, bv) {
			return fmt.Sprintf("%s: prop %s %v vs %v", path, k, av, bv)
		}
	}
	if len(a.Children) != len(b.Children) {
		return fmt.Sprintf("%s: %d children vs %d (%s vs %s)", path, len(a.Children), len(b.Children), a, b)
	}
	for i := range a.Children {
		if m := mismatch(a.Children[i], b.Children[i], fmt.Sprintf("%s/%d", path, i)); m != "" {
			return m
		}
	}
	return ""
}

// CheckBindings verifies that every node of v is bound to a target node of
// the same type, and that the binding structure mirrors v.
func CheckBindings(v *vdom.VNode) error {
	if v == nil {
		return nil
	}
	n, ok := v.Binding.(*Node)
	if !ok || n == nil {
		return fmt.Errorf("vtest: %s is unbound", v.TypeName())
	}
	if n.Kind != v.Kind || n.Tag != v.Tag || (v.Comp != nil && n.Comp != v.Comp.Name) {
		return fmt.Errorf("vtest: %s bound to %s", v.TypeName(), n.label())
	}
	kids := 0
	for _, c := range v.Children {
		if c == nil {
			continue
		}
		if err := CheckBindings(c); err != nil {
			return err
		}
		if kids >= len(n.Children) || c.Binding.(*Node) != n.Children[kids] {
			return fmt.Errorf("vtest: child %d of %s bound out of place", kids, n.label())
		}
		kids++
	}
	if kids != len(n.Children) {
		return fmt.Errorf("vtest: %s has %d target children, tree has %d", n.label(), len(n.Children), kids)
	}
	return nil
}

func (n *Node) typeName() string {
	switch n.Kind {
	case vdom.KindText:
		return vdom.TextProp
	case vdom.KindComponent:
		return n.Comp
	default:
		return n.Tag
	}
}

// String renders the subtree in a compact form: tags with keys in
// brackets, text quoted.
func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	var sb strings.Builder
	n.write(&sb)
	return sb.String()
}

func (n *Node) write(sb *strings.Builder) {
	if n.Kind == vdom.KindText {
		fmt.Fprintf(sb, "%q", n.Text)
		return
	}
	sb.WriteString(n.typeName())
	if n.Key != "" {
		fmt.Fprintf(sb, "[%s]", n.Key)
	}
	if len(n.Children) == 0 {
		return
	}
	sb.WriteByte('(')
	for i, c := range n.Children {
		if i > 0 {
			sb.WriteByte(' ')
		}
		c.write(sb)
	}
	sb.WriteByte(')')
}
