// Package ledger implements the per-owner, per-category record service.
//
// A record lives at an address derived from (owner, category) and is
// created lazily the first time anyone asks for it. The service drives a
// fixed sequence of phases for every operation:
//
//	derive -> read -> [create -> confirm_create -> reread] -> update -> confirm_update -> read_back
//
// Each phase completes before the next starts. Any phase can fail; the
// returned *Error names the phase and the address so the caller can tell
// what state the ledger was left in.
//
// # Races
//
// Two callers ensuring the same record concurrently both see it missing and
// both submit a create. The ledger finalizes one and fails the other with
// ACCOUNT_IN_USE. The loser re-reads and continues as if it had found the
// record: a lost race is never reported to the caller.
//
// # Confirmation
//
// Every submitted transaction is awaited until finalized. Waits honour the
// caller's context and WithConfirmTimeout. A wait that runs out is reported
// as KindTimeout; the transaction may still finalize later. Nothing is
// retried automatically.
package ledger
