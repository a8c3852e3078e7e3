package el

import vdom "github.com/vango-dev/atomdom/pkg/vdom"

// Type aliases for the vdom primitives used by the DSL.
type (
	VNode     = vdom.VNode
	Props     = vdom.Props
	Component = vdom.Component
)

// Attr is one attribute. An Attr with an empty Key is ignored.
type Attr struct {
	Key   string
	Value any
}

// EventHandler binds a handler to an "on"-prefixed prop.
type EventHandler struct {
	Event   string
	Handler any
}
