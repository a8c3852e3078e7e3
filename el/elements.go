package el

import (
	"strings"

	vdom "github.com/vango-dev/atomdom/pkg/vdom"
)

// createElement creates an element node with the given tag and arguments.
// Arguments can be: nil, Attr, []Attr, EventHandler, Props, *VNode,
// []*VNode, []any, or any child accepted by vdom.CreateNode.
func createElement(tag string, args []any) *VNode {
	node := &VNode{Kind: vdom.KindElement, Tag: tag}
	var children []any

	setProp := func(key string, value any) {
		if key == "" {
			return
		}
		if key == "key" {
			node.Key = vdom.PropString(value)
			return
		}
		if node.Props == nil {
			node.Props = make(Props)
		}
		if key == "class" {
			// Repeated class attributes accumulate.
			if prev, ok := node.Props["class"].(string); ok && prev != "" {
				if s, ok := value.(string); ok && s != "" {
					value = prev + " " + s
				} else {
					return
				}
			}
		}
		node.Props[key] = value
	}

	for _, arg := range args {
		switch v := arg.(type) {
		case nil:
			continue
		case Attr:
			setProp(v.Key, v.Value)
		case []Attr:
			for _, a := range v {
				setProp(a.Key, a.Value)
			}
		case EventHandler:
			if v.Handler != nil {
				setProp(v.Event, v.Handler)
			}
		case Props:
			for k, val := range v {
				setProp(k, val)
			}
		default:
			children = append(children, arg)
		}
	}

	if len(children) > 0 {
		node.Children = vdom.CreateNode(tag, nil, children...).Children
	}
	return node
}

// voidElements are elements that cannot have children.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true,
	"embed": true, "hr": true, "img": true, "input": true,
	"link": true, "meta": true, "source": true, "track": true,
	"wbr": true,
}

// IsVoidElement returns true if the tag is a void element.
func IsVoidElement(tag string) bool {
	return voidElements[strings.ToLower(tag)]
}

// El creates an element with an arbitrary tag.
func El(tag string, args ...any) *VNode { return createElement(tag, args) }

// Document structure elements

func Html(args ...any) *VNode  { return createElement("html", args) }
func Head(args ...any) *VNode  { return createElement("head", args) }
func Body(args ...any) *VNode  { return createElement("body", args) }
func Title(args ...any) *VNode { return createElement("title", args) }
func Meta(args ...any) *VNode  { return createElement("meta", args) }
func Link(args ...any) *VNode  { return createElement("link", args) }

// Content sectioning elements

func Header(args ...any) *VNode  { return createElement("header", args) }
func Footer(args ...any) *VNode  { return createElement("footer", args) }
func Main(args ...any) *VNode    { return createElement("main", args) }
func Nav(args ...any) *VNode     { return createElement("nav", args) }
func Section(args ...any) *VNode { return createElement("section", args) }
func Article(args ...any) *VNode { return createElement("article", args) }
func Aside(args ...any) *VNode   { return createElement("aside", args) }
func H1(args ...any) *VNode      { return createElement("h1", args) }
func H2(args ...any) *VNode      { return createElement("h2", args) }
func H3(args ...any) *VNode      { return createElement("h3", args) }

// Text content elements

func Div(args ...any) *VNode        { return createElement("div", args) }
func P(args ...any) *VNode          { return createElement("p", args) }
func Span(args ...any) *VNode       { return createElement("span", args) }
func Pre(args ...any) *VNode        { return createElement("pre", args) }
func Blockquote(args ...any) *VNode { return createElement("blockquote", args) }
func Ul(args ...any) *VNode         { return createElement("ul", args) }
func Ol(args ...any) *VNode         { return createElement("ol", args) }
func Li(args ...any) *VNode         { return createElement("li", args) }
func Dl(args ...any) *VNode         { return createElement("dl", args) }
func Dt(args ...any) *VNode         { return createElement("dt", args) }
func Dd(args ...any) *VNode         { return createElement("dd", args) }
func Hr(args ...any) *VNode         { return createElement("hr", args) }

// Inline text semantics

func A(args ...any) *VNode      { return createElement("a", args) }
func Strong(args ...any) *VNode { return createElement("strong", args) }
func Em(args ...any) *VNode     { return createElement("em", args) }
func B(args ...any) *VNode      { return createElement("b", args) }
func I(args ...any) *VNode      { return createElement("i", args) }
func Small(args ...any) *VNode  { return createElement("small", args) }
func Code(args ...any) *VNode   { return createElement("code", args) }
func Br(args ...any) *VNode     { return createElement("br", args) }

// Tables

func Table(args ...any) *VNode { return createElement("table", args) }
func Thead(args ...any) *VNode { return createElement("thead", args) }
func Tbody(args ...any) *VNode { return createElement("tbody", args) }
func Tr(args ...any) *VNode    { return createElement("tr", args) }
func Th(args ...any) *VNode    { return createElement("th", args) }
func Td(args ...any) *VNode    { return createElement("td", args) }

// Forms

func Form(args ...any) *VNode     { return createElement("form", args) }
func Input(args ...any) *VNode    { return createElement("input", args) }
func Button(args ...any) *VNode   { return createElement("button", args) }
func Label(args ...any) *VNode    { return createElement("label", args) }
func Select(args ...any) *VNode   { return createElement("select", args) }
func Option(args ...any) *VNode   { return createElement("option", args) }
func Textarea(args ...any) *VNode { return createElement("textarea", args) }

// Embedded content

func Img(args ...any) *VNode { return createElement("img", args) }
