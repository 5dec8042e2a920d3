// Package codec encodes the bytes that cross the ledger boundary.
//
// Two formats live here:
//
//   - layout.go: the on-ledger binary layout of Ledger accounts and of the
//     create_ledger / modify_ledger instruction arguments. An 8-byte
//     discriminator followed by little-endian fields, strings prefixed with
//     a u32 length. This layout is owned by the ledger program's schema.
//   - cbor.go: the transaction message envelope that a signer signs, in
//     CBOR Core Deterministic Encoding (RFC 8949 section 4.2) so that the
//     same message always produces the same bytes and thus verifies.
package codec
