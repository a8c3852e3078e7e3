package el

import (
	"sort"
	"strings"
)

// attr creates an attribute with the given key and value.
func attr(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// Global attributes

// ID sets the id attribute.
func ID(id string) Attr { return attr("id", id) }

// Class sets the class attribute. Multiple classes are joined with spaces.
func Class(classes ...string) Attr { return attr("class", strings.Join(classes, " ")) }

// Style sets the style attribute.
func Style(style string) Attr { return attr("style", style) }

// Data sets a data-* attribute.
func Data(key, value string) Attr { return attr("data-"+key, value) }

// Role sets the role attribute.
func Role(role string) Attr { return attr("role", role) }

// AriaLabel sets aria-label.
func AriaLabel(label string) Attr { return attr("aria-label", label) }

// Hidden sets the hidden attribute.
func Hidden() Attr { return attr("hidden", true) }

// TitleAttr sets the title attribute.
func TitleAttr(title string) Attr { return attr("title", title) }

// Links

func Href(url string) Attr      { return attr("href", url) }
func Target(target string) Attr { return attr("target", target) }
func Rel(rel string) Attr       { return attr("rel", rel) }
func Src(url string) Attr       { return attr("src", url) }
func Alt(text string) Attr      { return attr("alt", text) }

// Forms

func Name(name string) Attr        { return attr("name", name) }
func Value(value string) Attr      { return attr("value", value) }
func Type(t string) Attr           { return attr("type", t) }
func Placeholder(text string) Attr { return attr("placeholder", text) }
func For(id string) Attr           { return attr("for", id) }
func Disabled() Attr               { return attr("disabled", true) }
func Checked() Attr                { return attr("checked", true) }
func Selected() Attr               { return attr("selected", true) }
func Required() Attr               { return attr("required", true) }
func Readonly() Attr               { return attr("readonly", true) }
func Colspan(n int) Attr           { return attr("colspan", n) }
func Charset(charset string) Attr  { return attr("charset", charset) }
func Content(content string) Attr  { return attr("content", content) }
func Prop(key string, v any) Attr  { return attr(key, v) }

// Conditional attributes

// ClassIf adds a class conditionally.
func ClassIf(condition bool, class string) Attr {
	if condition {
		return attr("class", class)
	}
	return Attr{}
}

// AttrIf adds any attribute conditionally.
func AttrIf(condition bool, a Attr) Attr {
	if condition {
		return a
	}
	return Attr{}
}

// Classes merges class values. Accepts string, []string and
// map[string]bool; map entries are added in name order.
func Classes(classes ...any) Attr {
	var result []string
	for _, c := range classes {
		switch v := c.(type) {
		case string:
			if v != "" {
				result = append(result, v)
			}
		case []string:
			for _, s := range v {
				if s != "" {
					result = append(result, s)
				}
			}
		case map[string]bool:
			names := make([]string, 0, len(v))
			for class, include := range v {
				if include && class != "" {
					names = append(names, class)
				}
			}
			sort.Strings(names)
			result = append(result, names...)
		}
	}
	if len(result) == 0 {
		return Attr{}
	}
	return attr("class", strings.Join(result, " "))
}
