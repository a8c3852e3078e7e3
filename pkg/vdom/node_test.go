package vdom

import (
	"errors"
	"testing"
	"time"
)

func TestCreateNodeElement(t *testing.T) {
	node := CreateNode("div", Props{"class": "card", "key": 7},
		"hello",
		42,
		nil,
		false,
		[]*VNode{Text("a"), nil, Text("b")},
		[]any{"c", Element("span", nil)},
		time.Duration(0),
	)

	if node.Kind != KindElement || node.Tag != "div" {
		t.Fatalf("node = %v %q, want element div", node.Kind, node.Tag)
	}
	if node.Key != "7" {
		t.Errorf("Key = %q, want 7", node.Key)
	}
	if _, ok := node.Props["key"]; ok {
		t.Error("key left in props")
	}
	if node.Props["class"] != "card" {
		t.Errorf("class = %v, want card", node.Props["class"])
	}

	want := []string{"hello", "42", "a", "b", "c", "span", "0s"}
	if len(node.Children) != len(want) {
		t.Fatalf("children = %d, want %d", len(node.Children), len(want))
	}
	for i, c := range node.Children {
		got := c.Text
		if c.Kind == KindElement {
			got = c.Tag
		}
		if got != want[i] {
			t.Errorf("child %d = %q, want %q", i, got, want[i])
		}
	}
}

func TestCreateNodeText(t *testing.T) {
	node := CreateNode(nil, nil, "a", 1, "b")
	if node.Kind != KindText || node.Text != "a1b" {
		t.Errorf("node = %v %q, want text a1b", node.Kind, node.Text)
	}
	if len(node.Children) != 0 {
		t.Errorf("text node has children")
	}
}

func TestCreateNodeComponent(t *testing.T) {
	c := NewComponent("Counter")
	node := ComponentNode(c, Props{"start": 1}, Text("0"))
	if node.Kind != KindComponent || node.Comp != c {
		t.Fatalf("node = %+v", node)
	}
	if node.TypeName() != "Counter" {
		t.Errorf("TypeName() = %q", node.TypeName())
	}
}

func TestCreateNodeUnsupportedTag(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("CreateNode(42) did not panic")
		}
	}()
	CreateNode(42, nil)
}

func TestSameType(t *testing.T) {
	c := NewComponent("A")
	tests := []struct {
		name string
		a, b *VNode
		want bool
	}{
		{"same tag", Element("div", nil), Element("div", nil), true},
		{"different tag", Element("div", nil), Element("p", nil), false},
		{"texts", Text("a"), Text("b"), true},
		{"text vs element", Text("a"), Element("a", nil), false},
		{"same component", ComponentNode(c, nil), ComponentNode(c, nil), true},
		{"component by name only", ComponentNode(c, nil), ComponentNode(NewComponent("A"), nil), false},
		{"nil", Element("div", nil), nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.SameType(tt.b); got != tt.want {
				t.Errorf("SameType() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKeyedAndCount(t *testing.T) {
	tree := Element("ul", nil, Keyed("a", Element("li", nil, "x")), Element("li", nil))
	if tree.Children[0].Key != "a" {
		t.Errorf("Key = %q, want a", tree.Children[0].Key)
	}
	if n := tree.Count(); n != 4 {
		t.Errorf("Count() = %d, want 4", n)
	}
}

func TestKindAndOpStrings(t *testing.T) {
	if KindComponent.String() != "Component" || Kind(9).String() != "Unknown" {
		t.Error("unexpected Kind strings")
	}
	ops := map[PatchOp]string{
		PatchCreate:          "CREATE",
		PatchRemove:          "REMOVE",
		PatchSetProp:         "SET_PROP",
		PatchRemoveProp:      "REMOVE_PROP",
		PatchReplace:         "REPLACE",
		PatchReorderChildren: "REORDER_CHILDREN",
		PatchOp(0):           "UNKNOWN",
	}
	for op, want := range ops {
		if op.String() != want {
			t.Errorf("%d.String() = %q, want %q", op, op.String(), want)
		}
	}
}

func TestPatchErrorUnwrap(t *testing.T) {
	err := &PatchError{Index: 3, Op: PatchRemove, Err: ErrUnboundTarget}
	if !errors.Is(err, ErrUnboundTarget) {
		t.Error("PatchError does not unwrap")
	}
	if err.Error() != "vdom: apply patch 3 (REMOVE): vdom: patch references an unbound target" {
		t.Errorf("Error() = %q", err.Error())
	}
}
