package render

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	vdom "github.com/vango-dev/atomdom/pkg/vdom"
)

// Page is a complete HTML document around a rendered tree.
type Page struct {
	// Title is the document title.
	Title string

	// Lang is the html lang attribute. Defaults to "en".
	Lang string

	// Body is rendered when set.
	Body *vdom.VNode

	// Target is rendered when Body is nil.
	Target Target

	// Styles are inline CSS blocks.
	Styles []string

	// StreamURL, when set, adds a script that subscribes to a patch stream
	// and reloads the page on the first mutation frame.
	StreamURL string
}

const streamScript = `(function(){var ws=new WebSocket(%s);` +
	`ws.onmessage=function(e){var f=JSON.parse(e.data);if(f.op!=="hello"){ws.close();location.reload();}};})();`

// RenderPage writes page to w. When w is an http.Flusher the head is
// flushed before the body is rendered.
func (r *Renderer) RenderPage(w io.Writer, page Page) error {
	lang := page.Lang
	if lang == "" {
		lang = "en"
	}
	flusher, _ := w.(http.Flusher)

	if _, err := fmt.Fprintf(w, "<!DOCTYPE html>\n<html lang=\"%s\">\n<head>\n", escapeAttr(lang)); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "<meta charset=\"utf-8\">\n"); err != nil {
		return err
	}
	if page.Title != "" {
		if _, err := fmt.Fprintf(w, "<title>%s</title>\n", escapeHTML(page.Title)); err != nil {
			return err
		}
	}
	for _, css := range page.Styles {
		if _, err := fmt.Fprintf(w, "<style>%s</style>\n", css); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, "</head>\n<body>\n"); err != nil {
		return err
	}
	if flusher != nil {
		flusher.Flush()
	}

	var err error
	if page.Body != nil {
		err = r.RenderToWriter(w, page.Body)
	} else {
		err = r.RenderTarget(w, page.Target)
	}
	if err != nil {
		return err
	}

	if page.StreamURL != "" {
		if _, err := fmt.Fprintf(w, "\n<script>"+streamScript+"</script>", strconv.Quote(page.StreamURL)); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, "\n</body>\n</html>\n"); err != nil {
		return err
	}
	if flusher != nil {
		flusher.Flush()
	}
	return nil
}
