package vdom

import (
	"errors"
	"fmt"
)

var (
	// ErrUnboundTarget reports a patch that references a binding that was
	// never created. It indicates a broken invariant in the caller.
	ErrUnboundTarget = errors.New("vdom: patch references an unbound target")

	// ErrDuplicateKey matches every *DuplicateKeyError.
	ErrDuplicateKey = errors.New("vdom: duplicate key")

	// ErrConcurrentCommit is returned when Commit is entered while another
	// commit on the same root is in progress.
	ErrConcurrentCommit = errors.New("vdom: concurrent commit on root")

	// ErrUnknownPatch is returned for a patch with an invalid operation.
	ErrUnknownPatch = errors.New("vdom: unknown patch operation")
)

// DuplicateKeyError reports two siblings sharing a key. Reconciliation
// continues: the later old sibling wins the key table, and a repeated new
// key that finds no unmatched old sibling is created fresh.
type DuplicateKeyError struct {
	Parent string // type name of the parent node
	Key    string
	First  int
	Second int
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("vdom: duplicate key %q under <%s> at children %d and %d", e.Key, e.Parent, e.First, e.Second)
}

// Is reports whether target is ErrDuplicateKey.
func (e *DuplicateKeyError) Is(target error) bool {
	return target == ErrDuplicateKey
}

// PatchError wraps a backend failure with the patch that caused it.
type PatchError struct {
	Index int
	Op    PatchOp
	Err   error
}

func (e *PatchError) Error() string {
	return fmt.Sprintf("vdom: apply patch %d (%s): %v", e.Index, e.Op, e.Err)
}

func (e *PatchError) Unwrap() error {
	return e.Err
}
