// Package errors provides structured diagnostics for the atomdom CLI.
//
// A Diagnostic carries a registered code, a category, an optional source
// location with surrounding lines, and a hint:
//
//	err := errors.New("E201").
//	    WithLocation("prev.json", 4, 9).
//	    WithSuggestion("Remove the trailing comma")
//
//	fmt.Print(err.Format())
//	// ERROR E201: Invalid tree JSON
//	//
//	//   prev.json:4:9
//	//
//	//        3 │   "children": [
//	//   →    4 │     {"tag": "li"},
//	//          │         ^
//	//        5 │   ]
//	//
//	//   Hint: Remove the trailing comma
//
// Codes are grouped by category: E1xx config, E2xx tree input, E3xx
// commit, E4xx serve and E5xx command line.
package errors
