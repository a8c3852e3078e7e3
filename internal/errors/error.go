package errors

import (
	"bufio"
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
)

// Category represents the type of error.
type Category string

const (
	CategoryConfig  Category = "config"
	CategoryTree    Category = "tree"
	CategoryCommit  Category = "commit"
	CategoryServe   Category = "serve"
	CategoryCLI     Category = "cli"
	CategoryRuntime Category = "runtime"
)

// Location is a position in an input file.
type Location struct {
	File   string
	Line   int
	Column int
}

// String returns the location as file:line[:column].
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Diagnostic is a structured error with a code, location and hint.
type Diagnostic struct {
	// Code is a registered identifier such as "E201".
	Code string

	// Category groups related codes.
	Category Category

	// Message is a short description.
	Message string

	// Detail is a longer explanation.
	Detail string

	// Location is where the problem is, when known.
	Location *Location

	// Context holds the input lines around Location.
	Context []string

	// Suggestion is a hint on how to fix the problem.
	Suggestion string

	// Wrapped is the underlying error.
	Wrapped error
}

// Error implements the error interface.
func (e *Diagnostic) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error.
func (e *Diagnostic) Unwrap() error {
	return e.Wrapped
}

// WithLocation sets the location and reads context lines from file.
func (e *Diagnostic) WithLocation(file string, line, column int) *Diagnostic {
	e.Location = &Location{File: file, Line: line, Column: column}
	e.Context = readContextLines(file, line, 5)
	return e
}

// WithSuggestion sets the hint.
func (e *Diagnostic) WithSuggestion(s string) *Diagnostic {
	e.Suggestion = s
	return e
}

// WithDetail sets the detail text.
func (e *Diagnostic) WithDetail(d string) *Diagnostic {
	e.Detail = d
	return e
}

// WithContext sets the context lines.
func (e *Diagnostic) WithContext(lines []string) *Diagnostic {
	e.Context = lines
	return e
}

// Wrap sets the underlying error.
func (e *Diagnostic) Wrap(err error) *Diagnostic {
	e.Wrapped = err
	return e
}

// WithJSONError locates a JSON syntax or type error within data, the
// contents of file. Other errors only set the detail.
func (e *Diagnostic) WithJSONError(file string, data []byte, err error) *Diagnostic {
	e.Wrapped = err
	var offset int64 = -1
	var syntax *json.SyntaxError
	var typ *json.UnmarshalTypeError
	switch {
	case stderrors.As(err, &syntax):
		offset = syntax.Offset
	case stderrors.As(err, &typ):
		offset = typ.Offset
	}
	if offset < 0 {
		e.Detail = err.Error()
		return e
	}
	line, col := lineColumn(data, offset)
	e.Location = &Location{File: file, Line: line, Column: col}
	e.Context = contextLines(data, line, 5)
	e.Detail = err.Error()
	return e
}

// lineColumn converts a byte offset into a 1-based line and column.
func lineColumn(data []byte, offset int64) (line, col int) {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	prefix := data[:offset]
	line = bytes.Count(prefix, []byte{'\n'}) + 1
	col = int(offset) - (bytes.LastIndexByte(prefix, '\n') + 1)
	if col < 1 {
		col = 1
	}
	return line, col
}

func contextLines(data []byte, targetLine, contextSize int) []string {
	return scanContext(bufio.NewScanner(bytes.NewReader(data)), targetLine, contextSize)
}

// readContextLines reads lines around targetLine from filename.
func readContextLines(filename string, targetLine, contextSize int) []string {
	file, err := os.Open(filename)
	if err != nil {
		return nil
	}
	defer file.Close()
	return scanContext(bufio.NewScanner(file), targetLine, contextSize)
}

func scanContext(scanner *bufio.Scanner, targetLine, contextSize int) []string {
	var lines []string
	lineNum := 0
	startLine := targetLine - contextSize/2
	endLine := targetLine + contextSize/2

	for scanner.Scan() {
		lineNum++
		if lineNum >= startLine && lineNum <= endLine {
			lines = append(lines, scanner.Text())
		}
		if lineNum > endLine {
			break
		}
	}
	return lines
}

// New creates a Diagnostic from a registered code.
func New(code string) *Diagnostic {
	template, ok := registry[code]
	if !ok {
		return &Diagnostic{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &Diagnostic{
		Code:       code,
		Category:   template.Category,
		Message:    template.Message,
		Detail:     template.Detail,
		Suggestion: template.Suggestion,
	}
}

// Newf creates a Diagnostic without a code.
func Newf(category Category, format string, args ...any) *Diagnostic {
	return &Diagnostic{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError returns err if it already is a Diagnostic, otherwise wraps it
// under code.
func FromError(err error, code string) *Diagnostic {
	if err == nil {
		return nil
	}
	var d *Diagnostic
	if stderrors.As(err, &d) {
		return d
	}
	return New(code).Wrap(err)
}
