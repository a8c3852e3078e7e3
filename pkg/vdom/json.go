package vdom

import (
	"encoding/json"
	"errors"
	"fmt"
)

// jsonNode is the wire form of a VNode. Exactly one of Tag, Component and
// Text identifies the kind; a node with none of them is an empty text node.
type jsonNode struct {
	Tag       string      `json:"tag,omitempty"`
	Component string      `json:"component,omitempty"`
	Text      *string     `json:"text,omitempty"`
	Key       string      `json:"key,omitempty"`
	Props     Props       `json:"props,omitempty"`
	Children  []*jsonNode `json:"children,omitempty"`
}

// TreeDecoder turns JSON documents into VNode trees. Component names are
// interned, so two trees decoded by the same decoder reference the same
// *Component for the same name and reconcile as the same type.
type TreeDecoder struct {
	components map[string]*Component
}

// NewTreeDecoder creates a decoder with an empty component table.
func NewTreeDecoder() *TreeDecoder {
	return &TreeDecoder{components: make(map[string]*Component)}
}

// Decode parses one tree. A JSON null decodes to a nil tree.
func (d *TreeDecoder) Decode(data []byte) (*VNode, error) {
	var n *jsonNode
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("vdom: decode tree: %w", err)
	}
	if n == nil {
		return nil, nil
	}
	return d.build(n, "$")
}

// Component returns the interned component for name.
func (d *TreeDecoder) Component(name string) *Component {
	c, ok := d.components[name]
	if !ok {
		c = NewComponent(name)
		d.components[name] = c
	}
	return c
}

func (d *TreeDecoder) build(n *jsonNode, path string) (*VNode, error) {
	var v *VNode
	switch {
	case n.Tag != "" && n.Component != "":
		return nil, fmt.Errorf("vdom: decode tree: %s: both tag and component set", path)
	case n.Tag != "":
		v = &VNode{Kind: KindElement, Tag: n.Tag}
	case n.Component != "":
		v = &VNode{Kind: KindComponent, Comp: d.Component(n.Component)}
	default:
		if len(n.Children) > 0 {
			return nil, fmt.Errorf("vdom: decode tree: %s: text node with children", path)
		}
		v = &VNode{Kind: KindText}
		if n.Text != nil {
			v.Text = *n.Text
		}
	}
	if n.Text != nil && v.Kind != KindText {
		return nil, fmt.Errorf("vdom: decode tree: %s: text set on %s node", path, v.Kind)
	}

	v.Key = n.Key
	if len(n.Props) > 0 {
		v.Props = make(Props, len(n.Props))
		for k, val := range n.Props {
			if k == "key" {
				v.Key = keyString(val)
				continue
			}
			v.Props[k] = val
		}
	}
	for i, c := range n.Children {
		if c == nil {
			continue
		}
		child, err := d.build(c, fmt.Sprintf("%s.children[%d]", path, i))
		if err != nil {
			return nil, err
		}
		v.Children = append(v.Children, child)
	}
	return v, nil
}

// MarshalTree encodes a tree in the form accepted by TreeDecoder.
// Bindings are not encoded.
func MarshalTree(v *VNode) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	n, err := toJSON(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(n)
}

var errNilComponent = errors.New("vdom: component node without component")

func toJSON(v *VNode) (*jsonNode, error) {
	n := &jsonNode{Key: v.Key, Props: v.Props}
	switch v.Kind {
	case KindText:
		text := v.Text
		n.Text = &text
		return n, nil
	case KindElement:
		n.Tag = v.Tag
	case KindComponent:
		if v.Comp == nil {
			return nil, errNilComponent
		}
		n.Component = v.Comp.Name
	}
	for _, c := range v.Children {
		if c == nil {
			continue
		}
		cn, err := toJSON(c)
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, cn)
	}
	return n, nil
}
