// Package render serializes trees to HTML.
//
// It renders virtual trees and any mounted tree that implements Target,
// such as the in-memory target of pkg/vtest, so a committed tree can be
// checked or served as a page:
//
//	r := render.New(render.Config{})
//	html, err := r.RenderToString(node)
//
//	err = r.RenderTarget(w, backend.Tree())
//
// Text and attribute values are escaped. Function-valued props (event
// handlers) are never written; with Config.Events set they are announced
// as data-on-<event> markers instead. Component nodes render their children
// without a wrapper element.
package render
