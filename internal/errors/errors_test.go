package errors

import (
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{"config error", "E100", "Config file not found", CategoryConfig},
		{"tree error", "E201", "Invalid tree JSON", CategoryTree},
		{"commit error", "E300", "Patch application failed", CategoryCommit},
		{"serve error", "E400", "Server failed to start", CategoryServe},
		{"unknown error code", "E999", "Unknown error", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestErrorAndUnwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := New("E101").Wrap(cause)

	if got := err.Error(); got != "E101: Invalid config file: disk full" {
		t.Errorf("Error() = %q", got)
	}
	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if got := Newf(CategoryCLI, "bad %s", "flag").Error(); got != "bad flag" {
		t.Errorf("Newf Error() = %q", got)
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "E300") != nil {
		t.Error("FromError(nil) should be nil")
	}
	d := New("E202")
	if got := FromError(d, "E300"); got != d {
		t.Error("FromError should return an existing diagnostic")
	}
	got := FromError(stderrors.New("boom"), "E300")
	if got.Code != "E300" || got.Wrapped == nil {
		t.Errorf("FromError = %+v", got)
	}
}

func TestWithJSONError(t *testing.T) {
	data := []byte("{\n  \"tag\": \"ul\",\n  \"children\": [,]\n}\n")
	var v any
	jsonErr := json.Unmarshal(data, &v)
	if jsonErr == nil {
		t.Fatal("expected a syntax error")
	}

	d := New("E201").WithJSONError("tree.json", data, jsonErr)
	if d.Location == nil {
		t.Fatal("Location not set")
	}
	if d.Location.File != "tree.json" || d.Location.Line != 3 {
		t.Errorf("Location = %s, want tree.json:3", d.Location)
	}
	if len(d.Context) != 4 {
		t.Errorf("Context = %q, want 4 lines", d.Context)
	}
	if !stderrors.Is(d, jsonErr) {
		t.Error("JSON error not wrapped")
	}

	plain := New("E201").WithJSONError("tree.json", data, stderrors.New("other"))
	if plain.Location != nil || plain.Detail != "other" {
		t.Errorf("non-JSON error = %+v", plain)
	}
}

func TestWithLocationReadsContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "atomdom.json")
	content := "line1\nline2\nline3\nline4\nline5\nline6\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	err := New("E102").WithLocation(path, 4, 2)
	want := []string{"line2", "line3", "line4", "line5", "line6"}
	if strings.Join(err.Context, ",") != strings.Join(want, ",") {
		t.Errorf("Context = %v, want %v", err.Context, want)
	}

	missing := New("E102").WithLocation(filepath.Join(t.TempDir(), "nope"), 1, 1)
	if missing.Context != nil {
		t.Errorf("Context for missing file = %v", missing.Context)
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := New("E201").
		WithContext([]string{"a", "b", "c"}).
		WithSuggestion("fix it").
		Wrap(stderrors.New("unexpected comma"))
	err.Location = &Location{File: "tree.json", Line: 2, Column: 3}

	out := err.Format()
	for _, want := range []string{
		"ERROR E201: Invalid tree JSON",
		"tree.json:2:3",
		"→    2 │ b",
		"│   ^",
		"Cause: unexpected comma",
		"Hint: fix it",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q:\n%s", want, out)
		}
	}
}

func TestFormatCompact(t *testing.T) {
	err := New("E202")
	err.Location = &Location{File: "a.json", Line: 1}
	if got := err.FormatCompact(); got != "a.json:1: E202: Malformed tree" {
		t.Errorf("FormatCompact() = %q", got)
	}
}

func TestFormatJSON(t *testing.T) {
	err := New("E300").Wrap(stderrors.New("rejected"))
	err.Location = &Location{File: "x", Line: 2, Column: 5}

	var got map[string]any
	if e := json.Unmarshal([]byte(err.FormatJSON()), &got); e != nil {
		t.Fatalf("FormatJSON() is not JSON: %v", e)
	}
	if got["code"] != "E300" || got["category"] != "commit" || got["cause"] != "rejected" {
		t.Errorf("FormatJSON() = %v", got)
	}
	loc, ok := got["location"].(map[string]any)
	if !ok || loc["line"] != float64(2) {
		t.Errorf("location = %v", got["location"])
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText(strings.Repeat("word ", 30), 20)
	for _, l := range lines {
		if len(l) > 20 {
			t.Errorf("line %q longer than 20", l)
		}
	}
	if len(lines) < 2 {
		t.Errorf("expected multiple lines, got %d", len(lines))
	}
	if wrapText("", 10) != nil {
		t.Error("empty text should wrap to nil")
	}
}

func TestRegistry(t *testing.T) {
	codes := Codes()
	if len(codes) == 0 {
		t.Fatal("no registered codes")
	}
	for i := 1; i < len(codes); i++ {
		if codes[i-1] >= codes[i] {
			t.Fatalf("Codes() not sorted: %v", codes)
		}
	}
	for _, code := range codes {
		tmpl, ok := GetTemplate(code)
		if !ok || tmpl.Message == "" || tmpl.Category == "" {
			t.Errorf("template %s incomplete: %+v", code, tmpl)
		}
	}

	Register("E999", Template{Category: CategoryRuntime, Message: "custom"})
	defer delete(registry, "E999")
	if New("E999").Message != "custom" {
		t.Error("Register did not take effect")
	}
}
