package errors

import "sort"

// Template defines a registered error code.
type Template struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]Template{
	// ============================================
	// Config Errors (E100-E199)
	// ============================================

	"E100": {
		Category:   CategoryConfig,
		Message:    "Config file not found",
		Detail:     "No atomdom.json was found in the given directory.",
		Suggestion: "Run 'atomdom serve' without --config to use defaults, or create atomdom.json",
	},
	"E101": {
		Category: CategoryConfig,
		Message:  "Invalid config file",
		Detail:   "atomdom.json could not be read or is not valid JSON.",
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "Invalid config value",
	},

	// ============================================
	// Tree Input Errors (E200-E299)
	// ============================================

	"E200": {
		Category: CategoryTree,
		Message:  "Tree file not readable",
	},
	"E201": {
		Category:   CategoryTree,
		Message:    "Invalid tree JSON",
		Suggestion: "Each node is an object with \"tag\", \"component\" or \"text\", plus optional \"key\", \"props\" and \"children\"",
	},
	"E202": {
		Category: CategoryTree,
		Message:  "Malformed tree",
		Detail:   "A node in the tree has conflicting fields.",
	},
	"E203": {
		Category:   CategoryTree,
		Message:    "Duplicate sibling keys",
		Detail:     "Two children of the same parent share a key. Reconciliation falls back to the last one.",
		Suggestion: "Give every keyed sibling a unique key",
	},

	// ============================================
	// Commit Errors (E300-E399)
	// ============================================

	"E300": {
		Category: CategoryCommit,
		Message:  "Patch application failed",
		Detail:   "The backend rejected a patch. The next commit rebuilds the tree.",
	},
	"E301": {
		Category: CategoryCommit,
		Message:  "Unbound patch target",
		Detail:   "A patch referenced a node that was never created in the backend.",
	},

	// ============================================
	// Serve Errors (E400-E499)
	// ============================================

	"E400": {
		Category:   CategoryServe,
		Message:    "Server failed to start",
		Suggestion: "Check that the address is free, or pass --addr",
	},
	"E401": {
		Category: CategoryServe,
		Message:  "Patch stream failed",
	},

	// ============================================
	// Command Line Errors (E500-E599)
	// ============================================

	"E500": {
		Category: CategoryCLI,
		Message:  "Invalid argument",
	},
	"E501": {
		Category: CategoryCLI,
		Message:  "Benchmark failed",
	},
	"E502": {
		Category:   CategoryCLI,
		Message:    "Publish failed",
		Suggestion: "Check the destination and, for s3:// URLs, the AWS_* environment variables",
	},
}

// Codes returns all registered codes in order.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for code.
func GetTemplate(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds or replaces a code.
func Register(code string, template Template) {
	registry[code] = template
}
