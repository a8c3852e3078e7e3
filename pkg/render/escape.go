package render

import "strings"

var (
	textEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#39;",
	)

	// attrEscaper also escapes whitespace that would break attribute parsing.
	attrEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#39;",
		"\n", "&#10;",
		"\r", "&#13;",
		"\t", "&#9;",
	)
)

func escapeHTML(s string) string {
	return textEscaper.Replace(s)
}

func escapeAttr(s string) string {
	return attrEscaper.Replace(s)
}
