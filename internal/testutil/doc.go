// Package testutil provides shared helpers for tests: a running ledger in
// a temp directory and deterministic identities.
package testutil
