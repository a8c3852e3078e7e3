package atom

import (
	"errors"
	"fmt"
)

var (
	// ErrConsumerFailed matches every *ConsumerError.
	ErrConsumerFailed = errors.New("atom: consumer failed")

	// ErrDependencyCycle matches every *CycleError.
	ErrDependencyCycle = errors.New("atom: dependency cycle")

	// ErrFlushBudgetExceeded is reported when flushes keep scheduling more
	// flushes beyond the runtime's chained flush limit. The runaway pending
	// set is dropped.
	ErrFlushBudgetExceeded = errors.New("atom: chained flush budget exceeded")

	// ErrDisposed is returned by Effect.Run after Dispose.
	ErrDisposed = errors.New("atom: consumer disposed")
)

// ConsumerError wraps a panic recovered while an Effect or Derived ran.
type ConsumerError struct {
	Consumer ConsumerID
	Label    string
	Value    any    // recovered panic value
	Stack    []byte // stack captured at recovery
}

func (e *ConsumerError) Error() string {
	name := e.Label
	if name == "" {
		name = fmt.Sprintf("#%d", e.Consumer)
	}
	return fmt.Sprintf("atom: consumer %s failed: %v", name, e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *ConsumerError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Is reports whether target is ErrConsumerFailed.
func (e *ConsumerError) Is(target error) bool {
	return target == ErrConsumerFailed
}

// CycleError describes a rejected dependency edge: Consumer read an atom
// that is computed by a consumer already on the tracking stack.
type CycleError struct {
	Atom     AtomID
	Consumer ConsumerID
	Label    string
}

func (e *CycleError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("atom: dependency cycle: consumer #%d read %q (atom #%d) while computing it", e.Consumer, e.Label, e.Atom)
	}
	return fmt.Sprintf("atom: dependency cycle: consumer #%d read atom #%d while computing it", e.Consumer, e.Atom)
}

// Is reports whether target is ErrDependencyCycle.
func (e *CycleError) Is(target error) bool {
	return target == ErrDependencyCycle
}
