package vtest

import (
	"errors"
	"testing"

	vdom "github.com/vango-dev/atomdom/pkg/vdom"
)

func mount(t *testing.T, b *Backend, keys ...string) []*Node {
	t.Helper()
	ul, err := b.CreateTarget(b.Container(), 0, vdom.Element("ul", nil))
	if err != nil {
		t.Fatalf("CreateTarget() error = %v", err)
	}
	nodes := make([]*Node, len(keys))
	for i, k := range keys {
		c, err := b.CreateTarget(ul, i, vdom.Keyed(k, vdom.Element("li", nil)))
		if err != nil {
			t.Fatalf("CreateTarget() error = %v", err)
		}
		nodes[i] = c.(*Node)
	}
	return nodes
}

func order(n *Node) string {
	s := ""
	for _, c := range n.Children {
		s += c.Key
	}
	return s
}

func TestReorderChildren(t *testing.T) {
	tests := []struct {
		name  string
		moves map[string]int
		want  string
	}{
		{"rotate", map[string]int{"c": 0}, "cab"},
		{"to end", map[string]int{"a": 2}, "bca"},
		{"swap", map[string]int{"a": 2, "c": 0}, "cba"},
		{"noop", nil, "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBackend()
			nodes := mount(t, b, "a", "b", "c")
			byKey := map[string]*Node{}
			for _, n := range nodes {
				byKey[n.Key] = n
			}
			var placements []vdom.Placement
			for k, to := range tt.moves {
				placements = append(placements, vdom.Placement{Binding: byKey[k], Key: k, Index: to})
			}

			if err := b.ReorderChildren(b.Tree(), placements); err != nil {
				t.Fatalf("ReorderChildren() error = %v", err)
			}
			if got := order(b.Tree()); got != tt.want {
				t.Errorf("order = %s, want %s", got, tt.want)
			}

			// Applying the same placements again changes nothing.
			if err := b.ReorderChildren(b.Tree(), placements); err != nil {
				t.Fatalf("second ReorderChildren() error = %v", err)
			}
			if got := order(b.Tree()); got != tt.want {
				t.Errorf("order after repeat = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestReorderChildrenRejectsBadPlacements(t *testing.T) {
	b := NewBackend()
	nodes := mount(t, b, "a", "b")
	other := NewBackend()
	foreign := mount(t, other, "z")[0]

	tests := []struct {
		name       string
		placements []vdom.Placement
		want       error
	}{
		{"out of range", []vdom.Placement{{Binding: nodes[0], Index: 2}}, ErrIndex},
		{"foreign", []vdom.Placement{{Binding: foreign, Index: 0}}, ErrForeignBinding},
		{"unbound", []vdom.Placement{{Binding: nil, Index: 0}}, vdom.ErrUnboundTarget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := b.ReorderChildren(b.Tree(), tt.placements)
			if !errors.Is(err, tt.want) {
				t.Errorf("ReorderChildren() error = %v, want %v", err, tt.want)
			}
		})
	}

	conflict := []vdom.Placement{{Binding: nodes[0], Index: 0}, {Binding: nodes[1], Index: 0}}
	if err := b.ReorderChildren(b.Tree(), conflict); err == nil {
		t.Error("conflicting placements accepted")
	}
}

func TestDetachedTarget(t *testing.T) {
	b := NewBackend()
	nodes := mount(t, b, "a")
	if err := b.RemoveTarget(nodes[0]); err != nil {
		t.Fatalf("RemoveTarget() error = %v", err)
	}
	if err := b.SetProp(nodes[0], "class", "x"); !errors.Is(err, ErrDetached) {
		t.Errorf("SetProp() on removed node error = %v, want ErrDetached", err)
	}
}

func TestSetPropUnchangedIsNotRecorded(t *testing.T) {
	b := NewBackend()
	n, err := b.CreateTarget(b.Container(), 0, vdom.Element("div", vdom.Props{"class": "x"}))
	if err != nil {
		t.Fatal(err)
	}
	b.Reset()

	if err := b.SetProp(n, "class", "x"); err != nil {
		t.Fatal(err)
	}
	if err := b.RemoveProp(n, "missing"); err != nil {
		t.Fatal(err)
	}
	if len(b.Log()) != 0 {
		t.Errorf("log = %v, want empty", b.Log())
	}

	if err := b.SetProp(n, "class", "y"); err != nil {
		t.Fatal(err)
	}
	if b.Count(OpSetProp) != 1 {
		t.Errorf("Count(set) = %d, want 1", b.Count(OpSetProp))
	}
}

func TestTextProp(t *testing.T) {
	b := NewBackend()
	div, _ := b.CreateTarget(b.Container(), 0, vdom.Element("div", nil))
	txt, _ := b.CreateTarget(div, 0, vdom.Text("a"))

	if err := b.SetProp(txt, vdom.TextProp, "b"); err != nil {
		t.Fatal(err)
	}
	if txt.(*Node).Text != "b" {
		t.Errorf("Text = %q, want b", txt.(*Node).Text)
	}
	if err := b.SetProp(div, vdom.TextProp, "b"); err == nil {
		t.Error("text prop accepted on element")
	}
	if _, err := b.CreateTarget(txt, 0, vdom.Text("c")); err == nil {
		t.Error("child accepted under text node")
	}
}

func TestReplaceTargetKeepsPosition(t *testing.T) {
	b := NewBackend()
	nodes := mount(t, b, "a", "b", "c")

	n, err := b.ReplaceTarget(nodes[1], vdom.Keyed("x", vdom.Element("p", nil)))
	if err != nil {
		t.Fatal(err)
	}
	if got := order(b.Tree()); got != "axc" {
		t.Errorf("order = %s, want axc", got)
	}
	if n.(*Node).Parent != b.Tree() {
		t.Error("replacement not attached")
	}
}

func TestFailAfter(t *testing.T) {
	b := NewBackend()
	b.FailAfter(OpCreate, 1, nil)

	if _, err := b.CreateTarget(b.Container(), 0, vdom.Element("div", nil)); err != nil {
		t.Fatalf("first create error = %v", err)
	}
	if _, err := b.CreateTarget(b.Container(), 0, vdom.Element("div", nil)); !errors.Is(err, ErrInjected) {
		t.Fatalf("second create error = %v, want ErrInjected", err)
	}
	if _, err := b.CreateTarget(b.Container(), 0, vdom.Element("div", nil)); err != nil {
		t.Fatalf("third create error = %v", err)
	}
}

func TestBuildAndMismatch(t *testing.T) {
	a := Build(vdom.Element("ul", vdom.Props{"id": "x"}, vdom.Keyed("a", vdom.Element("li", nil, "one"))))
	b := Build(vdom.Element("ul", vdom.Props{"id": "x"}, vdom.Keyed("a", vdom.Element("li", nil, "two"))))

	if !Equal(a, a) {
		t.Error("tree not equal to itself")
	}
	if m := Mismatch(a, b); m != `$/0/0: text "one" vs "two"` {
		t.Errorf("Mismatch() = %q", m)
	}
	if a.String() != `ul(li[a]("one"))` {
		t.Errorf("String() = %s", a)
	}
}

func TestSnapshot(t *testing.T) {
	b := NewBackend()
	mount(t, b, "a", "b")

	tree := b.Tree().Snapshot()
	if tree.Kind != vdom.KindElement || tree.Tag != "ul" || len(tree.Children) != 2 {
		t.Fatalf("Snapshot() = %+v", tree)
	}
	if m := Mismatch(Build(tree), b.Tree()); m != "" {
		t.Errorf("snapshot differs from target: %s", m)
	}

	container := b.Root().Snapshot()
	if container.Kind != vdom.KindComponent || container.Tag != "" || len(container.Children) != 1 {
		t.Errorf("container snapshot = %+v, want a component wrapping the tree", container)
	}

	var detached *Node
	if detached.Snapshot() != nil {
		t.Error("nil node should snapshot as nil")
	}
}
