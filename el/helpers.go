package el

import (
	"fmt"

	vdom "github.com/vango-dev/atomdom/pkg/vdom"
)

// Text creates a text node.
func Text(content string) *VNode { return vdom.Text(content) }

// Textf creates a formatted text node.
func Textf(format string, args ...any) *VNode { return vdom.Textf(format, args...) }

// Comp creates a component node whose children are its rendered output.
func Comp(c *Component, args ...any) *VNode {
	n := createElement("", args)
	n.Kind = vdom.KindComponent
	n.Comp = c
	return n
}

// Key creates a key attribute for reconciliation.
// The key is converted to a string using fmt.Sprintf.
func Key(key any) Attr {
	return attr("key", fmt.Sprintf("%v", key))
}

// If returns node if condition is true, otherwise nil.
func If(condition bool, node *VNode) *VNode {
	if condition {
		return node
	}
	return nil
}

// IfElse returns ifTrue if condition is true, otherwise ifFalse.
func IfElse(condition bool, ifTrue, ifFalse *VNode) *VNode {
	if condition {
		return ifTrue
	}
	return ifFalse
}

// When calls fn only if condition is true.
func When(condition bool, fn func() *VNode) *VNode {
	if condition {
		return fn()
	}
	return nil
}

// Unless returns node if condition is false.
func Unless(condition bool, node *VNode) *VNode {
	return If(!condition, node)
}

// Either returns first if it's not nil, otherwise second.
func Either(first, second *VNode) *VNode {
	if first != nil {
		return first
	}
	return second
}

// Case is one branch of Switch.
type Case[T comparable] struct {
	Value     T
	Node      *VNode
	IsDefault bool
}

// Case_ creates a Switch branch.
func Case_[T comparable](value T, node *VNode) Case[T] {
	return Case[T]{Value: value, Node: node}
}

// Default creates the fallback branch of Switch.
func Default[T comparable](node *VNode) Case[T] {
	return Case[T]{Node: node, IsDefault: true}
}

// Switch returns the node of the first case matching value, or the
// default.
func Switch[T comparable](value T, cases ...Case[T]) *VNode {
	for _, c := range cases {
		if !c.IsDefault && c.Value == value {
			return c.Node
		}
	}
	for _, c := range cases {
		if c.IsDefault {
			return c.Node
		}
	}
	return nil
}

// Range maps a slice to nodes, dropping nil results.
func Range[T any](items []T, fn func(item T, index int) *VNode) []*VNode {
	result := make([]*VNode, 0, len(items))
	for i, item := range items {
		if node := fn(item, i); node != nil {
			result = append(result, node)
		}
	}
	return result
}

// Repeat creates n nodes using fn.
func Repeat(n int, fn func(i int) *VNode) []*VNode {
	if n <= 0 {
		return nil
	}
	result := make([]*VNode, 0, n)
	for i := 0; i < n; i++ {
		if node := fn(i); node != nil {
			result = append(result, node)
		}
	}
	return result
}
