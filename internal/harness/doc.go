// Package harness runs ledger scenarios described in YAML.
//
// A scenario declares named owners, a flow of record operations
// (ensure, set, read) with optional expectations, and assertions over the
// final ledger state. Each run gets a fresh in-memory ledger with its
// processor running, deterministic identities derived from the scenario
// name, and funded owners. The same scenario therefore produces the same
// trace on every run, which RunWithGolden compares against
// testdata/golden/<name>.golden.
//
// Example:
//
//	name: colors
//	description: independent balances per owner and color
//	owners: [O1, O2]
//	flow:
//	  - op: set
//	    owner: O1
//	    category: red
//	    balance: 2
//	    expect: {balance: 2}
//	  - op: set
//	    owner: O2
//	    category: red
//	    signer: O1
//	    balance: 9
//	    expect: {error: UNAUTHORIZED}
//	assertions:
//	  - type: record
//	    owner: O1
//	    category: red
//	    balance: 2
package harness
