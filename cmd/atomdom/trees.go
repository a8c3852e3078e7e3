package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vango-dev/atomdom/internal/errors"
	vdom "github.com/vango-dev/atomdom/pkg/vdom"
	"github.com/vango-dev/atomdom/pkg/vtest"
)

// readTree decodes the tree stored at path. "-" reads stdin.
func readTree(dec *vdom.TreeDecoder, path string, stdin io.Reader) (*vdom.VNode, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, errors.New("E200").WithDetail(path).Wrap(err)
	}

	tree, err := dec.Decode(data)
	if err != nil {
		var syntax *json.SyntaxError
		var typ *json.UnmarshalTypeError
		if stderrors.As(err, &syntax) || stderrors.As(err, &typ) {
			return nil, errors.New("E201").WithJSONError(path, data, err)
		}
		return nil, errors.New("E202").WithDetail(err.Error()).WithSuggestion("Fix the node in " + path)
	}
	return tree, nil
}

// describeTarget names a binding issued by vtest.Backend.
func describeTarget(b vdom.Binding) string {
	n, ok := b.(*vtest.Node)
	if !ok || n == nil {
		return vtest.ContainerTag
	}
	if n.Parent == nil && n.Tag == vtest.ContainerTag {
		return vtest.ContainerTag
	}
	return describeNode(n.ID, n.Kind, n.Tag, n.Comp, n.Key)
}

func describeVNode(v *vdom.VNode) string {
	if v == nil {
		return "<nil>"
	}
	comp := ""
	if v.Comp != nil {
		comp = v.Comp.Name
	}
	if v.Kind == vdom.KindText {
		return fmt.Sprintf("%q", v.Text)
	}
	return describeNode(0, v.Kind, v.Tag, comp, v.Key)
}

func describeNode(id int, kind vdom.Kind, tag, comp, key string) string {
	var sb strings.Builder
	switch kind {
	case vdom.KindText:
		sb.WriteString("#text")
	case vdom.KindComponent:
		sb.WriteString("<" + comp + ">")
	default:
		sb.WriteString("<" + tag + ">")
	}
	if key != "" {
		fmt.Fprintf(&sb, "[%s]", key)
	}
	if id > 0 {
		fmt.Fprintf(&sb, "(%d)", id)
	}
	return sb.String()
}

// describePatch formats one patch on a single line.
func describePatch(p vdom.Patch) string {
	op := fmt.Sprintf("%-16s", p.Op)
	switch p.Op {
	case vdom.PatchCreate:
		return fmt.Sprintf("%s %s[%d] %s", op, describeTarget(p.Parent), p.Index, describeVNode(p.Node))
	case vdom.PatchRemove:
		return fmt.Sprintf("%s %s", op, describeTarget(p.Binding))
	case vdom.PatchSetProp:
		return fmt.Sprintf("%s %s %s=%q", op, describeTarget(p.Binding), p.Name, vdom.PropString(p.Value))
	case vdom.PatchRemoveProp:
		return fmt.Sprintf("%s %s %s", op, describeTarget(p.Binding), p.Name)
	case vdom.PatchReplace:
		return fmt.Sprintf("%s %s -> %s", op, describeTarget(p.Binding), describeVNode(p.Node))
	case vdom.PatchReorderChildren:
		moves := make([]string, len(p.Moves))
		for i, m := range p.Moves {
			moves[i] = fmt.Sprintf("%s->%d", m.Key, m.To)
		}
		return fmt.Sprintf("%s %s %s", op, describeTarget(p.Parent), strings.Join(moves, " "))
	default:
		return op
	}
}

// patchJSON is the machine-readable form of a patch. Targets are vtest
// node IDs; 0 is the container.
type patchJSON struct {
	Op     string          `json:"op"`
	Target int             `json:"target,omitempty"`
	Parent *int            `json:"parent,omitempty"`
	Index  *int            `json:"index,omitempty"`
	Name   string          `json:"name,omitempty"`
	Value  any             `json:"value,omitempty"`
	Node   json.RawMessage `json:"node,omitempty"`
	Moves  []moveJSON      `json:"moves,omitempty"`
}

type moveJSON struct {
	Key string `json:"key"`
	To  int    `json:"to"`
}

func targetID(b vdom.Binding) int {
	if n, ok := b.(*vtest.Node); ok && n != nil {
		return n.ID
	}
	return 0
}

func toPatchJSON(p vdom.Patch) (patchJSON, error) {
	out := patchJSON{Op: p.Op.String()}
	switch p.Op {
	case vdom.PatchCreate, vdom.PatchReorderChildren:
		parent := targetID(p.Parent)
		out.Parent = &parent
	default:
		out.Target = targetID(p.Binding)
	}
	switch p.Op {
	case vdom.PatchCreate:
		index := p.Index
		out.Index = &index
		fallthrough
	case vdom.PatchReplace:
		node, err := vdom.MarshalTree(p.Node)
		if err != nil {
			return out, err
		}
		out.Node = node
	case vdom.PatchSetProp:
		out.Name = p.Name
		out.Value = p.Value
	case vdom.PatchRemoveProp:
		out.Name = p.Name
	case vdom.PatchReorderChildren:
		for _, m := range p.Moves {
			out.Moves = append(out.Moves, moveJSON{Key: m.Key, To: m.To})
		}
	}
	return out, nil
}
