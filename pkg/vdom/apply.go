package vdom

import (
	"fmt"
)

// ApplierOption configures an Applier.
type ApplierOption func(*Applier)

// Strict makes the Applier panic on a patch that references an unbound
// target instead of returning ErrUnboundTarget.
func Strict() ApplierOption {
	return func(a *Applier) {
		a.strict = true
	}
}

// Applier executes patches against a Backend and writes the resulting
// bindings into the new tree.
type Applier struct {
	backend   Backend
	container Binding
	strict    bool
}

// NewApplier creates an Applier. container is the binding that receives
// root-level creates.
func NewApplier(backend Backend, container Binding, opts ...ApplierOption) *Applier {
	a := &Applier{
		backend:   backend,
		container: container,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Container returns the root container binding.
func (a *Applier) Container() Binding {
	return a.container
}

// Apply executes patches in order. It stops at the first failure and
// returns a *PatchError naming the offending patch.
func (a *Applier) Apply(patches []Patch) error {
	for i := range patches {
		if err := a.apply(&patches[i]); err != nil {
			return &PatchError{Index: i, Op: patches[i].Op, Err: err}
		}
	}
	return nil
}

func (a *Applier) apply(p *Patch) error {
	switch p.Op {
	case PatchCreate:
		parent := p.Parent
		if parent == nil {
			parent = a.container
		}
		if err := a.bound(parent); err != nil {
			return err
		}
		return a.create(parent, p.Index, p.Node)

	case PatchRemove:
		if err := a.bound(p.Binding); err != nil {
			return err
		}
		return a.backend.RemoveTarget(p.Binding)

	case PatchSetProp:
		if err := a.bound(p.Binding); err != nil {
			return err
		}
		return a.backend.SetProp(p.Binding, p.Name, p.Value)

	case PatchRemoveProp:
		if err := a.bound(p.Binding); err != nil {
			return err
		}
		return a.backend.RemoveProp(p.Binding, p.Name)

	case PatchReplace:
		if err := a.bound(p.Binding); err != nil {
			return err
		}
		b, err := a.backend.ReplaceTarget(p.Binding, p.Node)
		if err != nil {
			return err
		}
		p.Node.Binding = b
		return a.createChildren(p.Node)

	case PatchReorderChildren:
		if err := a.bound(p.Parent); err != nil {
			return err
		}
		placements := make([]Placement, len(p.Moves))
		for i, m := range p.Moves {
			if m.Node == nil {
				return a.unbound()
			}
			if err := a.bound(m.Node.Binding); err != nil {
				return err
			}
			placements[i] = Placement{Binding: m.Node.Binding, Key: m.Key, Index: m.To}
		}
		return a.backend.ReorderChildren(p.Parent, placements)

	default:
		return fmt.Errorf("%w: %d", ErrUnknownPatch, p.Op)
	}
}

// create materializes node and its subtree under parent.
func (a *Applier) create(parent Binding, index int, node *VNode) error {
	b, err := a.backend.CreateTarget(parent, index, node)
	if err != nil {
		return err
	}
	node.Binding = b
	return a.createChildren(node)
}

func (a *Applier) createChildren(node *VNode) error {
	i := 0
	for _, c := range node.Children {
		if c == nil {
			continue
		}
		if err := a.create(node.Binding, i, c); err != nil {
			return err
		}
		i++
	}
	return nil
}

func (a *Applier) bound(b Binding) error {
	if b != nil {
		return nil
	}
	return a.unbound()
}

func (a *Applier) unbound() error {
	if a.strict {
		panic(ErrUnboundTarget)
	}
	return ErrUnboundTarget
}
