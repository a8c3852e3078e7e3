// Package patchstream mirrors backend mutations to websocket subscribers.
//
// A Stream wraps any vdom.Backend. Every successful mutation is forwarded
// to the wrapped backend and then published through a Hub as a JSON frame
// that names targets by stable numeric IDs:
//
//	hub := patchstream.NewHub()
//	stream := patchstream.New(backend, hub)
//	root := vdom.NewRoot(stream, stream.Wrap(container))
//	http.Handle("/stream", hub)
package patchstream

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	vdom "github.com/vango-dev/atomdom/pkg/vdom"
)

// Frame operations.
const (
	OpHello      = "hello"
	OpCreate     = "create"
	OpSetProp    = "set"
	OpRemoveProp = "unset"
	OpRemove     = "remove"
	OpReplace    = "replace"
	OpReorder    = "reorder"
)

// Frame is one published mutation.
type Frame struct {
	Seq     uint64      `json:"seq"`
	Op      string      `json:"op"`
	Client  string      `json:"client,omitempty"` // subscriber ID, hello only
	Target  uint64      `json:"target,omitempty"`
	Parent  uint64      `json:"parent,omitempty"`
	Created uint64      `json:"created,omitempty"` // replacement target of a replace
	Index   int         `json:"index"`
	Name    string      `json:"name,omitempty"`
	Value   any         `json:"value,omitempty"`
	Node    *NodeFrame  `json:"node,omitempty"`
	Moves   []MoveFrame `json:"moves,omitempty"`
}

// NodeFrame describes a created node without its children; children
// arrive as their own create frames.
type NodeFrame struct {
	Kind      string         `json:"kind"`
	Tag       string         `json:"tag,omitempty"`
	Component string         `json:"component,omitempty"`
	Text      string         `json:"text,omitempty"`
	Key       string         `json:"key,omitempty"`
	Props     map[string]any `json:"props,omitempty"`
}

// MoveFrame is one placement of a reorder.
type MoveFrame struct {
	Target uint64 `json:"target"`
	Key    string `json:"key,omitempty"`
	Index  int    `json:"index"`
}

// ErrForeignBinding is returned for a binding the stream did not issue.
var ErrForeignBinding = errors.New("patchstream: binding not issued by this stream")

// handle is the binding a Stream hands to the Applier.
type handle struct {
	id    uint64
	inner vdom.Binding
}

// Stream is a vdom.Backend decorator.
type Stream struct {
	inner vdom.Backend
	hub   *Hub

	mu     sync.Mutex
	nextID uint64
}

var _ vdom.Backend = (*Stream)(nil)

// New wraps inner. A nil hub records nothing.
func New(inner vdom.Backend, hub *Hub) *Stream {
	return &Stream{inner: inner, hub: hub}
}

// Wrap issues a binding for a target that exists outside the stream,
// usually the root container.
func (s *Stream) Wrap(inner vdom.Binding) vdom.Binding {
	return s.issue(inner)
}

// Unwrap returns the wrapped backend's binding for b.
func (s *Stream) Unwrap(b vdom.Binding) (vdom.Binding, error) {
	h, err := s.handle(b)
	if err != nil {
		return nil, err
	}
	return h.inner, nil
}

func (s *Stream) issue(inner vdom.Binding) *handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return &handle{id: s.nextID, inner: inner}
}

func (s *Stream) handle(b vdom.Binding) (*handle, error) {
	if b == nil {
		return nil, vdom.ErrUnboundTarget
	}
	h, ok := b.(*handle)
	if !ok || h == nil {
		return nil, fmt.Errorf("%w: %T", ErrForeignBinding, b)
	}
	return h, nil
}

func (s *Stream) publish(f Frame) {
	if s.hub != nil {
		s.hub.Publish(f)
	}
}

// CreateTarget implements vdom.Backend.
func (s *Stream) CreateTarget(parent vdom.Binding, index int, node *vdom.VNode) (vdom.Binding, error) {
	p, err := s.handle(parent)
	if err != nil {
		return nil, err
	}
	b, err := s.inner.CreateTarget(p.inner, index, node)
	if err != nil {
		return nil, err
	}
	h := s.issue(b)
	s.publish(Frame{Op: OpCreate, Target: h.id, Parent: p.id, Index: index, Node: nodeFrame(node)})
	return h, nil
}

// SetProp implements vdom.Backend.
func (s *Stream) SetProp(target vdom.Binding, name string, value any) error {
	h, err := s.handle(target)
	if err != nil {
		return err
	}
	if err := s.inner.SetProp(h.inner, name, value); err != nil {
		return err
	}
	s.publish(Frame{Op: OpSetProp, Target: h.id, Name: name, Value: wireValue(value)})
	return nil
}

// RemoveProp implements vdom.Backend.
func (s *Stream) RemoveProp(target vdom.Binding, name string) error {
	h, err := s.handle(target)
	if err != nil {
		return err
	}
	if err := s.inner.RemoveProp(h.inner, name); err != nil {
		return err
	}
	s.publish(Frame{Op: OpRemoveProp, Target: h.id, Name: name})
	return nil
}

// RemoveTarget implements vdom.Backend.
func (s *Stream) RemoveTarget(target vdom.Binding) error {
	h, err := s.handle(target)
	if err != nil {
		return err
	}
	if err := s.inner.RemoveTarget(h.inner); err != nil {
		return err
	}
	s.publish(Frame{Op: OpRemove, Target: h.id})
	return nil
}

// ReplaceTarget implements vdom.Backend.
func (s *Stream) ReplaceTarget(old vdom.Binding, node *vdom.VNode) (vdom.Binding, error) {
	o, err := s.handle(old)
	if err != nil {
		return nil, err
	}
	b, err := s.inner.ReplaceTarget(o.inner, node)
	if err != nil {
		return nil, err
	}
	h := s.issue(b)
	s.publish(Frame{Op: OpReplace, Target: o.id, Created: h.id, Node: nodeFrame(node)})
	return h, nil
}

// ReorderChildren implements vdom.Backend.
func (s *Stream) ReorderChildren(parent vdom.Binding, placements []vdom.Placement) error {
	p, err := s.handle(parent)
	if err != nil {
		return err
	}
	inner := make([]vdom.Placement, len(placements))
	moves := make([]MoveFrame, len(placements))
	for i, pl := range placements {
		h, err := s.handle(pl.Binding)
		if err != nil {
			return err
		}
		inner[i] = vdom.Placement{Binding: h.inner, Key: pl.Key, Index: pl.Index}
		moves[i] = MoveFrame{Target: h.id, Key: pl.Key, Index: pl.Index}
	}
	if err := s.inner.ReorderChildren(p.inner, inner); err != nil {
		return err
	}
	s.publish(Frame{Op: OpReorder, Parent: p.id, Moves: moves})
	return nil
}

func nodeFrame(v *vdom.VNode) *NodeFrame {
	n := &NodeFrame{
		Kind: v.Kind.String(),
		Tag:  v.Tag,
		Text: v.Text,
		Key:  v.Key,
	}
	if v.Comp != nil {
		n.Component = v.Comp.Name
	}
	if len(v.Props) > 0 {
		n.Props = make(map[string]any, len(v.Props))
		for k, val := range v.Props {
			if w := wireValue(val); w != nil {
				n.Props[k] = w
			}
		}
	}
	return n
}

// wireValue drops values JSON cannot carry, such as event handlers.
func wireValue(v any) any {
	if v == nil {
		return nil
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return nil
	}
	return v
}
