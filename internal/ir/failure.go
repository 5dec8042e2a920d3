package ir

import (
	"errors"
	"fmt"
)

// FailureCode identifies why the ledger refused to finalize a transaction.
type FailureCode string

const (
	// FailureAccountInUse: create_ledger targeted an address that already
	// holds an account. A concurrent creator finalized first.
	FailureAccountInUse FailureCode = "ACCOUNT_IN_USE"

	// FailureConstraintSeeds: the target address is not derived from the
	// signer, so the signer is not the record owner.
	FailureConstraintSeeds FailureCode = "CONSTRAINT_SEEDS"

	// FailureSignature: the transaction signature did not verify against
	// the declared signer.
	FailureSignature FailureCode = "SIGNATURE_VERIFICATION"

	// FailureAccountNotInitialized: modify_ledger targeted an empty address.
	FailureAccountNotInitialized FailureCode = "ACCOUNT_NOT_INITIALIZED"

	// FailureInvalidInstruction: the instruction data could not be decoded.
	FailureInvalidInstruction FailureCode = "INVALID_INSTRUCTION"
)

// TxFailure is returned when the ledger reports a transaction as failed.
type TxFailure struct {
	Signature Signature
	Code      FailureCode
	Message   string
}

// Error implements the error interface.
func (e *TxFailure) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("transaction %s failed: %s", e.Signature, e.Code)
	}
	return fmt.Sprintf("transaction %s failed: %s: %s", e.Signature, e.Code, e.Message)
}

// FailureCodeOf returns the failure code carried by err, if any.
// Uses errors.As to handle wrapped errors.
func FailureCodeOf(err error) (FailureCode, bool) {
	var fe *TxFailure
	if errors.As(err, &fe) {
		return fe.Code, true
	}
	return "", false
}
