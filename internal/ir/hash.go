package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DiscriminatorSize is the length of the type tag that prefixes account
// data and instruction data.
const DiscriminatorSize = 8

// Discriminator namespaces. These are fixed by the on-ledger program and
// must not change: every stored account and every instruction depends on them.
const (
	NamespaceAccount     = "account"
	NamespaceInstruction = "global"
)

// DomainTrace is the domain prefix for trace digests.
// Version suffix enables future algorithm migration.
const DomainTrace = "pdaledger/trace/v1"

// Discriminator is the 8-byte type tag of an account or instruction.
type Discriminator [DiscriminatorSize]byte

// discriminatorFor computes SHA256(namespace + ":" + name)[:8].
func discriminatorFor(namespace, name string) Discriminator {
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	var d Discriminator
	copy(d[:], sum[:DiscriminatorSize])
	return d
}

// AccountDiscriminator returns the tag stored in the first 8 bytes of an
// account of the named type, e.g. AccountDiscriminator("Ledger").
func AccountDiscriminator(name string) Discriminator {
	return discriminatorFor(NamespaceAccount, name)
}

// InstructionDiscriminator returns the tag that selects the named
// instruction, e.g. InstructionDiscriminator("create_ledger").
func InstructionDiscriminator(name string) Discriminator {
	return discriminatorFor(NamespaceInstruction, name)
}

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// TraceDigest computes a content-addressed digest of a trace object.
// Two runs that produce the same trace produce the same digest.
func TraceDigest(trace Object) (string, error) {
	canonical, err := MarshalCanonical(trace)
	if err != nil {
		return "", fmt.Errorf("TraceDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTrace, canonical), nil
}
