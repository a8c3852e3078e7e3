package render

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strconv"
	"strings"

	vdom "github.com/vango-dev/atomdom/pkg/vdom"
)

// Config configures the renderer.
type Config struct {
	// Pretty enables indented output.
	Pretty bool

	// Indent is one indentation level in pretty mode. Defaults to two spaces.
	Indent string

	// Keys writes a data-key attribute on keyed nodes.
	Keys bool

	// Events writes a data-on-<event> marker for function-valued on* props.
	Events bool
}

// Renderer writes trees as HTML. A Renderer holds no per-render state and
// may be shared.
type Renderer struct {
	config Config
}

// New creates a renderer.
func New(config Config) *Renderer {
	if config.Indent == "" {
		config.Indent = "  "
	}
	return &Renderer{config: config}
}

// RenderToString renders node to a string.
func (r *Renderer) RenderToString(node *vdom.VNode) (string, error) {
	var buf bytes.Buffer
	if err := r.RenderToWriter(&buf, node); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderToWriter renders node to w. A nil node renders nothing.
func (r *Renderer) RenderToWriter(w io.Writer, node *vdom.VNode) error {
	if node == nil {
		return nil
	}
	return r.render(w, vnodeSource{node}, 0)
}

// Target is a mounted tree that can be captured as a virtual tree, such
// as a node of the in-memory target in pkg/vtest.
type Target interface {
	Snapshot() *vdom.VNode
}

// RenderTarget renders the current state of a mounted tree.
func (r *Renderer) RenderTarget(w io.Writer, t Target) error {
	if t == nil {
		return nil
	}
	return r.RenderToWriter(w, t.Snapshot())
}

// source is the view of a node the renderer needs.
type source interface {
	kind() vdom.Kind
	tag() string
	text() string
	key() string
	props() map[string]any
	children() int
	child(i int) source
}

type vnodeSource struct{ n *vdom.VNode }

func (s vnodeSource) kind() vdom.Kind       { return s.n.Kind }
func (s vnodeSource) tag() string           { return s.n.Tag }
func (s vnodeSource) text() string          { return s.n.Text }
func (s vnodeSource) key() string           { return s.n.Key }
func (s vnodeSource) props() map[string]any { return s.n.Props }
func (s vnodeSource) children() int         { return len(s.n.Children) }
func (s vnodeSource) child(i int) source {
	if s.n.Children[i] == nil {
		return nil
	}
	return vnodeSource{s.n.Children[i]}
}

func (r *Renderer) render(w io.Writer, s source, depth int) error {
	switch s.kind() {
	case vdom.KindText:
		return r.renderText(w, s, depth)
	case vdom.KindElement:
		return r.renderElement(w, s, depth)
	case vdom.KindComponent:
		return r.renderChildren(w, s, depth)
	default:
		return fmt.Errorf("render: unknown node kind %d", s.kind())
	}
}

func (r *Renderer) renderText(w io.Writer, s source, depth int) error {
	if r.config.Pretty {
		r.writeIndent(w, depth)
	}
	if _, err := io.WriteString(w, escapeHTML(s.text())); err != nil {
		return err
	}
	if r.config.Pretty {
		_, err := io.WriteString(w, "\n")
		return err
	}
	return nil
}

func (r *Renderer) renderChildren(w io.Writer, s source, depth int) error {
	for i := 0; i < s.children(); i++ {
		c := s.child(i)
		if c == nil {
			continue
		}
		if err := r.render(w, c, depth); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) renderElement(w io.Writer, s source, depth int) error {
	tag := s.tag()
	if tag == "" {
		return fmt.Errorf("render: element without tag")
	}
	if r.config.Pretty {
		r.writeIndent(w, depth)
	}

	var sb strings.Builder
	sb.WriteByte('<')
	sb.WriteString(tag)
	r.writeAttributes(&sb, s)
	sb.WriteByte('>')
	if _, err := io.WriteString(w, sb.String()); err != nil {
		return err
	}

	if voidElements[tag] {
		if r.config.Pretty {
			_, err := io.WriteString(w, "\n")
			return err
		}
		return nil
	}

	// Inline elements and leaves keep their content on the tag's line.
	block := r.config.Pretty && s.children() > 0 && !inlineElements[tag]
	if block {
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
		if err := r.renderChildren(w, s, depth+1); err != nil {
			return err
		}
		r.writeIndent(w, depth)
	} else {
		inner := *r
		inner.config.Pretty = false
		if err := inner.renderChildren(w, s, 0); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintf(w, "</%s>", tag); err != nil {
		return err
	}
	if r.config.Pretty {
		_, err := io.WriteString(w, "\n")
		return err
	}
	return nil
}

// writeAttributes writes props in sorted order.
func (r *Renderer) writeAttributes(sb *strings.Builder, s source) {
	props := s.props()
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	var events []string
	for _, name := range names {
		value := props[name]
		if name == "key" || name == vdom.TextProp || strings.HasPrefix(name, "_") {
			continue
		}
		if isFunc(value) {
			if strings.HasPrefix(name, "on") && len(name) > 2 {
				events = append(events, strings.ToLower(name[2:]))
			}
			continue
		}
		attr := name
		if alias, ok := attrAliases[name]; ok {
			attr = alias
		}
		if b, ok := value.(bool); ok && booleanAttrs[attr] {
			if b {
				sb.WriteByte(' ')
				sb.WriteString(attr)
			}
			continue
		}
		if value == nil {
			continue
		}
		fmt.Fprintf(sb, ` %s="%s"`, attr, escapeAttr(attrString(value)))
	}

	if r.config.Keys && s.key() != "" {
		fmt.Fprintf(sb, ` data-key="%s"`, escapeAttr(s.key()))
	}
	if r.config.Events {
		for _, ev := range events {
			fmt.Fprintf(sb, ` data-on-%s="true"`, ev)
		}
	}
}

func isFunc(v any) bool {
	return v != nil && reflect.TypeOf(v).Kind() == reflect.Func
}

func attrString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return vdom.PropString(v)
	}
}

func (r *Renderer) writeIndent(w io.Writer, depth int) {
	for i := 0; i < depth; i++ {
		io.WriteString(w, r.config.Indent)
	}
}
