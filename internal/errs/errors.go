package errs

import (
	"errors"
	"fmt"
)

// Common sentinel errors for cross-layer signaling.
var (
	ErrNotFound = errors.New("not_found")
	ErrInvalid  = errors.New("invalid")
	// ErrConflict indicates a transaction was claimed by another session
	// between validation and commit.
	ErrConflict = errors.New("conflict")
	// ErrImmutable indicates an attempt to alter a finalized reconciliation
	// or a transaction it claimed.
	ErrImmutable = errors.New("immutable")
	// ErrNotBalanced indicates finalize was attempted while the residual
	// difference exceeds tolerance.
	ErrNotBalanced = errors.New("not_balanced")
	// ErrAlreadyFinalized guards against a second finalize on the same id.
	ErrAlreadyFinalized = errors.New("already_finalized")
)

// UnbalancedSelectionError reports a failed signed-sum check between the
// statement and system selection groups. Both sums are carried so the
// caller can display the discrepancy without re-deriving it.
type UnbalancedSelectionError struct {
	Currency          string
	StatementSumMinor int64
	SystemSumMinor    int64
}

func (e *UnbalancedSelectionError) Error() string {
	return fmt.Sprintf("unbalanced selection: statement sum %d != system sum %d (minor units, %s)",
		e.StatementSumMinor, e.SystemSumMinor, e.Currency)
}
