package atom

import (
	"io"
	"log/slog"
	"testing"
)

// newTestRuntime returns a runtime driven by a manual queue, with errors
// collected instead of logged.
func newTestRuntime(t *testing.T, opts ...RuntimeOption) (*Runtime, *TaskQueue, *[]error) {
	t.Helper()
	q := &TaskQueue{}
	errs := &[]error{}
	base := []RuntimeOption{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithErrorHandler(func(err error) {
			*errs = append(*errs, err)
		}),
	}
	rt := NewRuntime(q, append(base, opts...)...)
	return rt, q, errs
}
