package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
)

// ANSI color codes for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorWhite  = "\033[37m"
	colorCyan   = "\033[36m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// colorEnabled controls whether ANSI colors are used.
var colorEnabled = true

// DisableColors disables ANSI color output.
func DisableColors() {
	colorEnabled = false
}

// EnableColors enables ANSI color output.
func EnableColors() {
	colorEnabled = true
}

func color(code, text string) string {
	if !colorEnabled {
		return text
	}
	return code + text + colorReset
}

func red(text string) string    { return color(colorRed, text) }
func white(text string) string  { return color(colorWhite, text) }
func cyan(text string) string   { return color(colorCyan, text) }
func yellow(text string) string { return color(colorYellow, text) }
func gray(text string) string   { return color(colorGray, text) }
func bold(text string) string   { return color(colorBold, text) }

// Format returns the diagnostic formatted for a terminal.
func (e *Diagnostic) Format() string {
	var b strings.Builder

	b.WriteString("\n")
	if e.Code != "" {
		b.WriteString(red(bold("ERROR ")))
		b.WriteString(white(bold(e.Code + ": ")))
	} else {
		b.WriteString(red(bold("ERROR: ")))
	}
	b.WriteString(white(e.Message))
	b.WriteString("\n\n")

	if e.Location != nil {
		b.WriteString("  ")
		b.WriteString(cyan(e.Location.String()))
		b.WriteString("\n\n")

		if len(e.Context) > 0 {
			startLine := max(e.Location.Line-2, 1)
			for i, line := range e.Context {
				lineNum := startLine + i
				if lineNum == e.Location.Line {
					fmt.Fprintf(&b, "  %s%4d%s%s\n", red("→ "), lineNum, gray(" │ "), line)
					if e.Location.Column > 0 {
						b.WriteString("        ")
						b.WriteString(gray("│ "))
						b.WriteString(strings.Repeat(" ", e.Location.Column-1))
						b.WriteString(red("^"))
						b.WriteString("\n")
					}
				} else {
					fmt.Fprintf(&b, "    %4d%s%s\n", lineNum, gray(" │ "), line)
				}
			}
			b.WriteString("\n")
		}
	}

	if e.Detail != "" {
		for _, line := range wrapText(e.Detail, 70) {
			b.WriteString("  ")
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if e.Wrapped != nil && e.Wrapped.Error() != e.Detail {
		b.WriteString("  ")
		b.WriteString(yellow("Cause: "))
		b.WriteString(e.Wrapped.Error())
		b.WriteString("\n\n")
	}

	if e.Suggestion != "" {
		b.WriteString("  ")
		b.WriteString(cyan("Hint: "))
		b.WriteString(e.Suggestion)
		b.WriteString("\n\n")
	}

	return b.String()
}

// FormatCompact returns a single-line rendition.
func (e *Diagnostic) FormatCompact() string {
	var b strings.Builder
	if e.Location != nil {
		b.WriteString(e.Location.String())
		b.WriteString(": ")
	}
	b.WriteString(e.Error())
	return b.String()
}

type jsonLocation struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column,omitempty"`
}

type jsonDiagnostic struct {
	Code       string        `json:"code,omitempty"`
	Category   Category      `json:"category"`
	Message    string        `json:"message"`
	Detail     string        `json:"detail,omitempty"`
	Location   *jsonLocation `json:"location,omitempty"`
	Suggestion string        `json:"suggestion,omitempty"`
	Cause      string        `json:"cause,omitempty"`
}

// FormatJSON returns the diagnostic as a JSON object.
func (e *Diagnostic) FormatJSON() string {
	out := jsonDiagnostic{
		Code:       e.Code,
		Category:   e.Category,
		Message:    e.Message,
		Detail:     e.Detail,
		Suggestion: e.Suggestion,
	}
	if e.Location != nil {
		out.Location = &jsonLocation{File: e.Location.File, Line: e.Location.Line, Column: e.Location.Column}
	}
	if e.Wrapped != nil {
		out.Cause = e.Wrapped.Error()
	}
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Sprintf(`{"message":%q}`, e.Error())
	}
	return string(data)
}

// wrapText wraps text to the given width.
func wrapText(text string, width int) []string {
	if text == "" {
		return nil
	}
	if len(text) <= width {
		return []string{text}
	}

	var lines []string
	var current strings.Builder
	for _, word := range strings.Fields(text) {
		if current.Len() > 0 && current.Len()+len(word)+1 > width {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}

// Print writes err to w, formatted when it is a Diagnostic.
func Print(w io.Writer, err error) {
	var d *Diagnostic
	if stderrors.As(err, &d) {
		fmt.Fprint(w, d.Format())
		return
	}
	fmt.Fprintf(w, "\n%s %s\n\n", red(bold("ERROR:")), err.Error())
}
