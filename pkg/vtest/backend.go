package vtest

import (
	"errors"
	"fmt"
	"maps"

	vdom "github.com/vango-dev/atomdom/pkg/vdom"
)

var (
	// ErrForeignBinding is returned for a binding this backend did not create.
	ErrForeignBinding = errors.New("vtest: binding not created by this backend")

	// ErrDetached is returned when an operation targets a removed node.
	ErrDetached = errors.New("vtest: target is detached")

	// ErrIndex is returned for an out of range child index.
	ErrIndex = errors.New("vtest: child index out of range")

	// ErrInjected is the default error of FailOn.
	ErrInjected = errors.New("vtest: injected failure")
)

// Op names used in the operation log and counters.
const (
	OpCreate     = "create"
	OpSetProp    = "set"
	OpRemoveProp = "unset"
	OpRemove     = "remove"
	OpReplace    = "replace"
	OpReorder    = "reorder"
)

// ContainerTag is the tag of a backend's container node.
const ContainerTag = "#root"

// Backend is an in-memory target tree.
type Backend struct {
	root   *Node
	nextID int
	log    []string
	counts map[string]int
	fail   map[string]*failure
}

// NewBackend creates a backend with an empty container.
func NewBackend() *Backend {
	b := &Backend{counts: make(map[string]int)}
	b.root = &Node{Kind: vdom.KindElement, Tag: ContainerTag, owner: b}
	return b
}

// Container returns the binding of the root container.
func (b *Backend) Container() vdom.Binding {
	return b.root
}

// Root returns the container node.
func (b *Backend) Root() *Node {
	return b.root
}

// Tree returns the single mounted node, or nil when nothing is mounted.
func (b *Backend) Tree() *Node {
	if len(b.root.Children) == 0 {
		return nil
	}
	return b.root.Children[0]
}

// Log returns the operations applied so far.
func (b *Backend) Log() []string {
	return b.log
}

// Count returns how many operations of kind op succeeded.
func (b *Backend) Count(op string) int {
	return b.counts[op]
}

// Reset clears the log and the counters.
func (b *Backend) Reset() {
	b.log = nil
	clear(b.counts)
}

// FailOn makes the next operation of kind op fail with err, or with
// ErrInjected when err is nil.
func (b *Backend) FailOn(op string, err error) {
	b.FailAfter(op, 0, err)
}

// FailAfter lets n operations of kind op succeed, then fails the next one.
func (b *Backend) FailAfter(op string, n int, err error) {
	if err == nil {
		err = ErrInjected
	}
	if b.fail == nil {
		b.fail = make(map[string]*failure)
	}
	b.fail[op] = &failure{skip: n, err: err}
}

type failure struct {
	skip int
	err  error
}

func (b *Backend) injected(op string) error {
	f, ok := b.fail[op]
	if !ok {
		return nil
	}
	if f.skip > 0 {
		f.skip--
		return nil
	}
	delete(b.fail, op)
	return f.err
}

func (b *Backend) record(op string, format string, args ...any) {
	b.counts[op]++
	b.log = append(b.log, op+" "+fmt.Sprintf(format, args...))
}

func (b *Backend) node(binding vdom.Binding) (*Node, error) {
	n, ok := binding.(*Node)
	if !ok || n == nil || n.owner != b {
		if binding == nil {
			return nil, vdom.ErrUnboundTarget
		}
		return nil, fmt.Errorf("%w: %T", ErrForeignBinding, binding)
	}
	if !n.attached() {
		return nil, fmt.Errorf("%w: %s", ErrDetached, n.label())
	}
	return n, nil
}

func (b *Backend) newNode(v *vdom.VNode) *Node {
	b.nextID++
	n := &Node{
		ID:    b.nextID,
		Kind:  v.Kind,
		Tag:   v.Tag,
		Text:  v.Text,
		Key:   v.Key,
		owner: b,
	}
	if v.Kind == vdom.KindComponent && v.Comp != nil {
		n.Comp = v.Comp.Name
	}
	if len(v.Props) > 0 {
		n.Props = maps.Clone(map[string]any(v.Props))
	}
	return n
}

// CreateTarget implements vdom.Backend.
func (b *Backend) CreateTarget(parent vdom.Binding, index int, v *vdom.VNode) (vdom.Binding, error) {
	if err := b.injected(OpCreate); err != nil {
		return nil, err
	}
	p, err := b.node(parent)
	if err != nil {
		return nil, err
	}
	if p.Kind == vdom.KindText {
		return nil, fmt.Errorf("vtest: create under text node %s", p.label())
	}
	if index < 0 || index > len(p.Children) {
		return nil, fmt.Errorf("%w: %d not in [0,%d] under %s", ErrIndex, index, len(p.Children), p.label())
	}
	n := b.newNode(v)
	p.insert(index, n)
	b.record(OpCreate, "%s@%d in %s", n.label(), index, p.label())
	return n, nil
}

// SetProp implements vdom.Backend. Setting a prop to its current value is
// not recorded.
func (b *Backend) SetProp(target vdom.Binding, name string, value any) error {
	if err := b.injected(OpSetProp); err != nil {
		return err
	}
	n, err := b.node(target)
	if err != nil {
		return err
	}
	if name == vdom.TextProp {
		if n.Kind != vdom.KindText {
			return fmt.Errorf("vtest: %s on %s", vdom.TextProp, n.label())
		}
		text := vdom.PropString(value)
		if n.Text == text {
			return nil
		}
		n.Text = text
		b.record(OpSetProp, "%s text=%q", n.label(), text)
		return nil
	}
	if old, ok := n.Props[name]; ok && vdom.PropEqual(old, value) {
		return nil
	}
	if n.Props == nil {
		n.Props = make(map[string]any)
	}
	n.Props[name] = value
	b.record(OpSetProp, "%s %s=%v", n.label(), name, value)
	return nil
}

// RemoveProp implements vdom.Backend.
func (b *Backend) RemoveProp(target vdom.Binding, name string) error {
	if err := b.injected(OpRemoveProp); err != nil {
		return err
	}
	n, err := b.node(target)
	if err != nil {
		return err
	}
	if _, ok := n.Props[name]; !ok {
		return nil
	}
	delete(n.Props, name)
	b.record(OpRemoveProp, "%s %s", n.label(), name)
	return nil
}

// RemoveTarget implements vdom.Backend.
func (b *Backend) RemoveTarget(target vdom.Binding) error {
	if err := b.injected(OpRemove); err != nil {
		return err
	}
	n, err := b.node(target)
	if err != nil {
		return err
	}
	if n == b.root {
		return errors.New("vtest: cannot remove the container")
	}
	n.detach()
	b.record(OpRemove, "%s", n.label())
	return nil
}

// ReplaceTarget implements vdom.Backend.
func (b *Backend) ReplaceTarget(old vdom.Binding, v *vdom.VNode) (vdom.Binding, error) {
	if err := b.injected(OpReplace); err != nil {
		return nil, err
	}
	o, err := b.node(old)
	if err != nil {
		return nil, err
	}
	if o == b.root {
		return nil, errors.New("vtest: cannot replace the container")
	}
	p := o.Parent
	i := p.indexOf(o)
	o.detach()
	n := b.newNode(v)
	p.insert(i, n)
	b.record(OpReplace, "%s with %s", o.label(), n.label())
	return n, nil
}

// ReorderChildren implements vdom.Backend.
func (b *Backend) ReorderChildren(parent vdom.Binding, placements []vdom.Placement) error {
	if err := b.injected(OpReorder); err != nil {
		return err
	}
	p, err := b.node(parent)
	if err != nil {
		return err
	}
	size := len(p.Children)
	slots := make([]*Node, size)
	placed := make(map[*Node]bool, len(placements))
	for _, pl := range placements {
		n, err := b.node(pl.Binding)
		if err != nil {
			return err
		}
		if n.Parent != p {
			return fmt.Errorf("vtest: reorder %s: not a child of %s", n.label(), p.label())
		}
		if pl.Index < 0 || pl.Index >= size {
			return fmt.Errorf("%w: move %s to %d, %d children", ErrIndex, n.label(), pl.Index, size)
		}
		if slots[pl.Index] != nil || placed[n] {
			return fmt.Errorf("vtest: reorder %s: conflicting placement at %d", n.label(), pl.Index)
		}
		slots[pl.Index] = n
		placed[n] = true
	}
	next := 0
	for _, c := range p.Children {
		if placed[c] {
			continue
		}
		for slots[next] != nil {
			next++
		}
		slots[next] = c
	}
	p.Children = slots
	b.record(OpReorder, "%d in %s", len(placements), p.label())
	return nil
}

var _ vdom.Backend = (*Backend)(nil)
