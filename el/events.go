package el

// event creates an EventHandler with the given name and handler.
// The name is prefixed with "on" (e.g., "click" becomes "onclick").
func event(name string, handler any) EventHandler {
	return EventHandler{Event: "on" + name, Handler: handler}
}

// On handles an arbitrary event.
func On(name string, handler any) EventHandler { return event(name, handler) }

// Mouse events

func OnClick(handler any) EventHandler      { return event("click", handler) }
func OnDblClick(handler any) EventHandler   { return event("dblclick", handler) }
func OnMouseEnter(handler any) EventHandler { return event("mouseenter", handler) }
func OnMouseLeave(handler any) EventHandler { return event("mouseleave", handler) }

// Keyboard events

func OnKeyDown(handler any) EventHandler { return event("keydown", handler) }
func OnKeyUp(handler any) EventHandler   { return event("keyup", handler) }

// Form events

func OnInput(handler any) EventHandler  { return event("input", handler) }
func OnChange(handler any) EventHandler { return event("change", handler) }
func OnSubmit(handler any) EventHandler { return event("submit", handler) }
func OnFocus(handler any) EventHandler  { return event("focus", handler) }
func OnBlur(handler any) EventHandler   { return event("blur", handler) }
