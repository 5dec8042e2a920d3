// Package identity provides owner identities: ed25519 keypairs that sign
// ledger transactions, their on-disk JSON form, and funding through a
// faucet.
package identity
