package ir

import "errors"

// LedgerRecord is the per-owner, per-category balance stored at a derived
// address. The owner is implicit: Address is derived from (owner, Category).
type LedgerRecord struct {
	Address  PublicKey `json:"address"`
	Category string    `json:"category"`
	Balance  uint64    `json:"balance"`
}

// ErrAccountNotFound is returned by ledger reads when nothing is stored at
// the requested address. Every other read error is a transport failure.
var ErrAccountNotFound = errors.New("account not found")
