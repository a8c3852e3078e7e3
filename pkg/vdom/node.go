package vdom

import (
	"fmt"
	"strconv"
	"strings"
)

// CreateNode builds a node. tag is a string for elements, nil for a text
// node, or a *Component. A "key" prop becomes the node's Key. Children may
// be *VNode, []*VNode, []any, strings, numbers or fmt.Stringer values;
// primitives become text nodes, nil and bool children are dropped.
//
// For text nodes the children are concatenated into the text content.
func CreateNode(tag any, props Props, children ...any) *VNode {
	var node *VNode
	switch t := tag.(type) {
	case nil:
		var sb strings.Builder
		for _, c := range appendChildren(nil, children) {
			if c.Kind == KindText {
				sb.WriteString(c.Text)
			}
		}
		node = Text(sb.String())
	case string:
		node = &VNode{Kind: KindElement, Tag: t}
	case *Component:
		node = &VNode{Kind: KindComponent, Comp: t}
	default:
		panic(fmt.Sprintf("vdom: unsupported node type %T", tag))
	}

	if len(props) > 0 {
		node.Props = make(Props, len(props))
		for k, v := range props {
			if k == "key" {
				node.Key = keyString(v)
				continue
			}
			node.Props[k] = v
		}
	}
	if node.Kind != KindText {
		node.Children = appendChildren(nil, children)
	}
	return node
}

// Element creates an element node.
func Element(tag string, props Props, children ...any) *VNode {
	return CreateNode(tag, props, children...)
}

// ComponentNode creates a node for component c. Children hold its rendered
// output.
func ComponentNode(c *Component, props Props, children ...any) *VNode {
	return CreateNode(c, props, children...)
}

// Text creates a text node.
func Text(content string) *VNode {
	return &VNode{
		Kind: KindText,
		Text: content,
	}
}

// Textf creates a formatted text node.
func Textf(format string, args ...any) *VNode {
	return Text(fmt.Sprintf(format, args...))
}

// Keyed sets the reconciliation key of node and returns it.
func Keyed(key string, node *VNode) *VNode {
	if node != nil {
		node.Key = key
	}
	return node
}

func appendChildren(dst []*VNode, args []any) []*VNode {
	for _, arg := range args {
		switch v := arg.(type) {
		case nil, bool:
			// Ignore (allows conditional children)
		case *VNode:
			if v != nil {
				dst = append(dst, v)
			}
		case []*VNode:
			for _, c := range v {
				if c != nil {
					dst = append(dst, c)
				}
			}
		case []any:
			dst = appendChildren(dst, v)
		case string:
			dst = append(dst, Text(v))
		case int:
			dst = append(dst, Text(strconv.Itoa(v)))
		case int64:
			dst = append(dst, Text(strconv.FormatInt(v, 10)))
		case float64:
			dst = append(dst, Text(strconv.FormatFloat(v, 'f', -1, 64)))
		case fmt.Stringer:
			dst = append(dst, Text(v.String()))
		default:
			dst = append(dst, Text(fmt.Sprint(v)))
		}
	}
	return dst
}

func keyString(v any) string {
	switch k := v.(type) {
	case nil:
		return ""
	case string:
		return k
	case int:
		return strconv.Itoa(k)
	case fmt.Stringer:
		return k.String()
	default:
		return fmt.Sprint(k)
	}
}
