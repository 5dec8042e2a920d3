// Package derive computes ledger record addresses.
//
// A record address is not chosen: it is derived from the owner's identity,
// a fixed separator and the category label, hashed together with the
// program namespace. Any party holding (owner, category, program) computes
// the same address, and the ledger performs the same computation to check
// that a transaction's signer owns the address it touches.
//
// # Seed layout
//
//	[owner (32 bytes), "_", category (raw UTF-8)]
//
// The order and the separator are part of the on-ledger contract. Changing
// either moves every record.
//
// # Bump search
//
// A derived address must lie outside the ed25519 curve so that no private
// key exists for it. Find appends a one-byte bump to the seeds, starting at
// 255 and counting down, and returns the first candidate that passes the
// validity predicate. Roughly half of all hashes are off-curve, so the
// first or second bump almost always succeeds.
//
// Everything here is pure: no I/O, no global state.
package derive
