package vdom

import (
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strconv"
)

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithDiffLogger sets the logger used for the default duplicate key report.
func WithDiffLogger(logger *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithDiffErrorHandler receives malformed-tree errors such as duplicate keys.
func WithDiffErrorHandler(h func(error)) ReconcilerOption {
	return func(r *Reconciler) {
		r.onError = h
	}
}

// Reconciler computes edit scripts. It holds no per-tree state and may be
// shared by several roots.
type Reconciler struct {
	logger  *slog.Logger
	onError func(error)
}

// NewReconciler creates a Reconciler.
func NewReconciler(opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var defaultReconciler = NewReconciler()

// Diff compares two trees with the default reconciler.
func Diff(prev, next *VNode) []Patch {
	return defaultReconciler.Diff(prev, next)
}

// Diff returns the patches that transform prev into next. Bindings of
// matched nodes are carried from prev onto next; nothing else is mutated.
func (r *Reconciler) Diff(prev, next *VNode) []Patch {
	d := &differ{r: r}
	d.root(prev, next)
	return d.patches
}

func (r *Reconciler) report(err error) {
	if r.onError != nil {
		r.onError(err)
		return
	}
	r.logger.Warn("vdom: malformed tree", "error", err)
}

type differ struct {
	r       *Reconciler
	patches []Patch
}

func (d *differ) emit(p Patch) {
	d.patches = append(d.patches, p)
}

// root applies the node rules at the top of the tree.
func (d *differ) root(prev, next *VNode) {
	switch {
	case prev == nil && next == nil:
	case next == nil:
		d.emit(Patch{Op: PatchRemove, Binding: prev.Binding, Node: prev})
	case prev == nil:
		d.emit(Patch{Op: PatchCreate, Node: next})
	default:
		d.node(prev, next)
	}
}

// node diffs two present nodes.
func (d *differ) node(prev, next *VNode) {
	if !prev.SameType(next) {
		d.emit(Patch{Op: PatchReplace, Binding: prev.Binding, Node: next})
		return
	}

	next.Binding = prev.Binding

	if prev.Kind == KindText {
		if prev.Text != next.Text {
			d.emit(Patch{Op: PatchSetProp, Binding: prev.Binding, Node: next, Name: TextProp, Value: next.Text})
		}
		return
	}

	d.props(prev, next)
	d.children(prev, next)
}

// props emits SetProp patches for added or changed props, then RemoveProp
// patches, each in name order.
func (d *differ) props(prev, next *VNode) {
	for _, name := range sortedNames(next.Props) {
		nv := next.Props[name]
		if pv, ok := prev.Props[name]; ok && PropEqual(pv, nv) {
			continue
		}
		d.emit(Patch{Op: PatchSetProp, Binding: prev.Binding, Node: next, Name: name, Value: nv})
	}
	for _, name := range sortedNames(prev.Props) {
		if _, ok := next.Props[name]; ok {
			continue
		}
		d.emit(Patch{Op: PatchRemoveProp, Binding: prev.Binding, Node: next, Name: name})
	}
}

func sortedNames(p Props) []string {
	if len(p) == 0 {
		return nil
	}
	names := make([]string, 0, len(p))
	for name := range p {
		if name == "key" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// children reconciles the child lists of two same-type nodes.
func (d *differ) children(prev, next *VNode) {
	oldKids := compact(prev.Children)
	newKids := compact(next.Children)
	if len(oldKids) == 0 && len(newKids) == 0 {
		return
	}
	if hasKeys(oldKids) || hasKeys(newKids) {
		d.keyed(prev, next, oldKids, newKids)
		return
	}
	d.unkeyed(prev, oldKids, newKids)
}

// unkeyed diffs children by position.
func (d *differ) unkeyed(parent *VNode, oldKids, newKids []*VNode) {
	var removes, creates []Patch
	for i := 0; i < max(len(oldKids), len(newKids)); i++ {
		switch {
		case i >= len(newKids):
			removes = append(removes, Patch{Op: PatchRemove, Binding: oldKids[i].Binding, Node: oldKids[i]})
		case i >= len(oldKids):
			creates = append(creates, Patch{Op: PatchCreate, Parent: parent.Binding, Node: newKids[i], Index: i})
		default:
			d.node(oldKids[i], newKids[i])
		}
	}
	d.patches = append(d.patches, removes...)
	d.patches = append(d.patches, creates...)
}

// keyed runs the four-pointer head/tail walk.
//
// At each step it tries old-head/new-head, old-tail/new-tail,
// old-head/new-tail (a move towards the end), old-tail/new-head (a move
// towards the front), then looks the new head's key up in a table of the
// old children. Matched old slots are tombstoned. Leftover new children
// are created and leftover old children removed.
func (d *differ) keyed(parent, nextParent *VNode, oldKids, newKids []*VNode) {
	d.checkDuplicates(nextParent, newKids)

	consumed := make([]bool, len(oldKids))
	source := make([]int, len(newKids)) // old index per new child, -1 when created
	moved := make([]bool, len(newKids))
	for i := range source {
		source[i] = -1
	}
	var table map[string]int

	match := func(oi, ni int, isMove bool) {
		d.node(oldKids[oi], newKids[ni])
		consumed[oi] = true
		source[ni] = oi
		moved[ni] = isMove
	}

	oldHead, oldTail := 0, len(oldKids)-1
	newHead, newTail := 0, len(newKids)-1
	for oldHead <= oldTail && newHead <= newTail {
		switch {
		case consumed[oldHead]:
			oldHead++
		case consumed[oldTail]:
			oldTail--
		case sameKey(oldKids[oldHead], newKids[newHead]):
			match(oldHead, newHead, false)
			oldHead++
			newHead++
		case sameKey(oldKids[oldTail], newKids[newTail]):
			match(oldTail, newTail, false)
			oldTail--
			newTail--
		case sameKey(oldKids[oldHead], newKids[newTail]):
			match(oldHead, newTail, true)
			oldHead++
			newTail--
		case sameKey(oldKids[oldTail], newKids[newHead]):
			match(oldTail, newHead, true)
			oldTail--
			newHead++
		default:
			if table == nil {
				table = keyTable(oldKids)
			}
			key := newKids[newHead].Key
			if oi, ok := table[key]; ok && key != "" && !consumed[oi] {
				match(oi, newHead, true)
			}
			newHead++
		}
	}

	var removes []Patch
	for oi, old := range oldKids {
		if !consumed[oi] {
			removes = append(removes, Patch{Op: PatchRemove, Binding: old.Binding, Node: old})
		}
	}

	// Position of each retained old child once removals are applied.
	retained := make([]int, len(oldKids))
	pos := 0
	for oi := range oldKids {
		if consumed[oi] {
			retained[oi] = pos
			pos++
		}
	}

	// Creations are placed relative to the children that do not move, so
	// that after the reorder every child lands at its final index.
	var creates []Patch
	var moves []Move
	cursor, inserted := 0, 0
	for ni, child := range newKids {
		switch {
		case source[ni] < 0:
			creates = append(creates, Patch{Op: PatchCreate, Parent: parent.Binding, Node: child, Index: cursor})
			cursor++
			inserted++
		case moved[ni]:
			moves = append(moves, Move{Node: child, Key: child.Key, To: ni})
		default:
			cursor = retained[source[ni]] + inserted + 1
		}
	}

	d.patches = append(d.patches, removes...)
	d.patches = append(d.patches, creates...)
	if len(moves) > 0 {
		d.emit(Patch{Op: PatchReorderChildren, Parent: parent.Binding, Node: nextParent, Moves: moves})
	}
}

func (d *differ) checkDuplicates(parent *VNode, kids []*VNode) {
	var seen map[string]int
	for i, c := range kids {
		if c.Key == "" {
			continue
		}
		if seen == nil {
			seen = make(map[string]int, len(kids))
		}
		if first, dup := seen[c.Key]; dup {
			d.r.report(&DuplicateKeyError{Parent: parent.TypeName(), Key: c.Key, First: first, Second: i})
			continue
		}
		seen[c.Key] = i
	}
}

// keyTable maps keys to old indices. Later siblings win on duplicates.
func keyTable(kids []*VNode) map[string]int {
	table := make(map[string]int, len(kids))
	for i, c := range kids {
		if c.Key != "" {
			table[c.Key] = i
		}
	}
	return table
}

func sameKey(a, b *VNode) bool {
	return a.Key == b.Key
}

func hasKeys(kids []*VNode) bool {
	for _, c := range kids {
		if c.Key != "" {
			return true
		}
	}
	return false
}

// compact drops nil children without copying when there are none.
func compact(kids []*VNode) []*VNode {
	for i, c := range kids {
		if c == nil {
			out := make([]*VNode, 0, len(kids))
			out = append(out, kids[:i]...)
			for _, c := range kids[i+1:] {
				if c != nil {
					out = append(out, c)
				}
			}
			return out
		}
	}
	return kids
}

// PropEqual compares two prop values. Functions compare by code pointer,
// so closures created from the same literal are considered equal.
func PropEqual(a, b any) bool {
	// Fast path for common types
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case int:
		bv, ok := b.(int)
		return ok && av == bv
	case int64:
		bv, ok := b.(int64)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	}

	if b == nil {
		return false
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	if va.Kind() == reflect.Func {
		return va.Pointer() == vb.Pointer()
	}
	return reflect.DeepEqual(a, b)
}

// PropString converts a prop value to its text form.
func PropString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
