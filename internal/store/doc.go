// Package store is a SQLite-backed, eventually-confirmed ledger.
//
// It stands in for the replicated ledger that holds Ledger accounts: clients
// submit signed transactions and get a signature back immediately; a single
// processor goroutine (Run) applies pending transactions slot by slot and
// marks each one finalized or failed. Reads only ever observe applied state,
// so a read issued between submission and finalization sees the old state,
// exactly the race the record service has to tolerate.
//
// # Tables
//
//   - accounts: derived address -> account data (codec.Ledger layout)
//   - transactions: signature -> signed message, status, failure code, slot
//   - wallets: public key -> lamports credited by the faucet
//
// # Program rules
//
//   - create_ledger(color): the account must equal derive(signer, color)
//     (CONSTRAINT_SEEDS) and must not exist yet (ACCOUNT_IN_USE).
//   - modify_ledger(balance): the account must exist (ACCOUNT_NOT_INITIALIZED)
//     and equal derive(signer, stored color) (CONSTRAINT_SEEDS).
//   - airdrop(lamports): only the faucet may sign.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - One open connection: SQLite has a single writer
package store
