// Package ir provides the shared types for pdaledger.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. Keys, addresses, signatures,
// ledger records and transaction failure codes live here so that the
// deriver, the record service and the simulated ledger agree on them
// without importing each other.
//
// Key design constraints:
//   - Identities and derived addresses share one 32-byte type (PublicKey)
//   - Balances are uint64, matching the on-ledger u64 field
//   - Category strings are raw bytes to the deriver; they are never normalized
//   - Traces use RFC 8785 canonical JSON (canonical.go) for golden comparison
package ir
