package ledger

import (
	"errors"
	"fmt"

	"github.com/roach88/pdaledger/internal/ir"
)

// Kind categorizes service errors.
type Kind string

const (
	// KindDerivationExhausted: no bump produced a valid derived address.
	KindDerivationExhausted Kind = "DERIVATION_EXHAUSTED"

	// KindInvalidInput: the inputs cannot form a derivation (e.g. a
	// category longer than a seed may be).
	KindInvalidInput Kind = "INVALID_INPUT"

	// KindTransport: the ledger could not be reached or answered with
	// something other than a record or "not found".
	KindTransport Kind = "TRANSPORT"

	// KindUnauthorized: the ledger rejected a transaction because the
	// signer is not the derivation owner.
	KindUnauthorized Kind = "UNAUTHORIZED"

	// KindConflict: a create lost the race to a concurrent create.
	// Recovered internally and never returned; used in logs.
	KindConflict Kind = "CONFLICT"

	// KindTimeout: a confirmation wait hit its deadline or was cancelled.
	// The transaction may still finalize.
	KindTimeout Kind = "TIMEOUT"

	// KindDecodeFailure: stored bytes are not the expected record, or the
	// record's category is not the one requested.
	KindDecodeFailure Kind = "DECODE_FAILURE"

	// KindRejected: the ledger failed the transaction for any other reason.
	KindRejected Kind = "REJECTED"
)

// Phase names the step of an operation an error came from.
type Phase string

const (
	PhaseDerive        Phase = "derive"
	PhaseRead          Phase = "read"
	PhaseCreate        Phase = "create"
	PhaseConfirmCreate Phase = "confirm_create"
	PhaseReread        Phase = "reread"
	PhaseUpdate        Phase = "update"
	PhaseConfirmUpdate Phase = "confirm_update"
	PhaseReadBack      Phase = "read_back"
)

// ErrCategoryMismatch is wrapped by KindDecodeFailure errors when a record
// decodes cleanly but carries a different category than requested.
var ErrCategoryMismatch = errors.New("record category does not match")

// Error is returned by every Service operation.
type Error struct {
	// Kind identifies the error category.
	Kind Kind

	// Phase is the step that failed.
	Phase Phase

	// Address is the derived address, zero if derivation failed.
	Address ir.PublicKey

	// Category is the requested category.
	Category string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Address.IsZero() {
		return fmt.Sprintf("%s: %s (category=%q): %v", e.Kind, e.Phase, e.Category, e.Err)
	}
	return fmt.Sprintf("%s: %s (category=%q, address=%s): %v", e.Kind, e.Phase, e.Category, e.Address, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a service error.
// Uses errors.As to handle wrapped errors.
func KindOf(err error) (Kind, bool) {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind, true
	}
	return "", false
}

// IsKind returns true if err is a service error of the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsUnauthorized returns true if the ledger rejected the signer.
func IsUnauthorized(err error) bool {
	return IsKind(err, KindUnauthorized)
}

// IsTimeout returns true if a confirmation wait ran out.
func IsTimeout(err error) bool {
	return IsKind(err, KindTimeout)
}

// IsTransport returns true if the ledger could not be reached.
func IsTransport(err error) bool {
	return IsKind(err, KindTransport)
}
