package render

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"

	vdom "github.com/vango-dev/atomdom/pkg/vdom"
)

func TestGolden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	card := vdom.NewComponent("Card")
	tests := []struct {
		name   string
		config Config
		render func(r *Renderer, buf *bytes.Buffer) error
	}{
		{
			name:   "list_pretty",
			config: Config{Pretty: true, Keys: true},
			render: func(r *Renderer, buf *bytes.Buffer) error {
				return r.RenderToWriter(buf, vdom.Element("ul", vdom.Props{"class": "todo"},
					vdom.Keyed("a", vdom.Element("li", nil,
						vdom.Element("input", vdom.Props{"type": "checkbox", "checked": true}),
						vdom.Element("span", nil, "Write code"),
					)),
					vdom.Keyed("b", vdom.Element("li", vdom.Props{"class": "done"},
						"Ship", vdom.Element("em", nil, "it"),
					)),
				))
			},
		},
		{
			name:   "component_pretty",
			config: Config{Pretty: true},
			render: func(r *Renderer, buf *bytes.Buffer) error {
				return r.RenderToWriter(buf, vdom.Element("section", nil,
					vdom.ComponentNode(card, nil, vdom.Element("h2", nil, "Title"), "body"),
				))
			},
		},
		{
			name:   "page",
			config: Config{},
			render: func(r *Renderer, buf *bytes.Buffer) error {
				return r.RenderPage(buf, Page{
					Title:     "Todo",
					Body:      vdom.Element("main", nil, vdom.Element("h1", nil, "Todo")),
					Styles:    []string{"h1{margin:0}"},
					StreamURL: "ws://localhost:3000/stream",
				})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := tt.render(New(tt.config), &buf); err != nil {
				t.Fatalf("render error: %v", err)
			}
			g.Assert(t, tt.name, buf.Bytes())
		})
	}
}
