package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/roach88/pdaledger/internal/ir"
)

// Account and instruction names known to the ledger program.
const (
	AccountLedger = "Ledger"

	InstructionCreateLedger = "create_ledger"
	InstructionModifyLedger = "modify_ledger"
	InstructionAirdrop      = "airdrop"
)

var (
	ledgerDiscriminator = ir.AccountDiscriminator(AccountLedger)

	instructionNames = map[ir.Discriminator]string{
		ir.InstructionDiscriminator(InstructionCreateLedger): InstructionCreateLedger,
		ir.InstructionDiscriminator(InstructionModifyLedger): InstructionModifyLedger,
		ir.InstructionDiscriminator(InstructionAirdrop):      InstructionAirdrop,
	}
)

var (
	// ErrShortData is returned when the data ends before a field does.
	ErrShortData = errors.New("codec: data too short")

	// ErrDiscriminator is returned when the leading 8 bytes do not name the
	// expected account or a known instruction.
	ErrDiscriminator = errors.New("codec: unexpected discriminator")
)

// Ledger is the record codec for Ledger accounts:
//
//	discriminator[8] | u32 len | category[len] | u64 balance
//
// Trailing bytes are ignored; accounts may be allocated larger than their
// content.
type Ledger struct{}

// Encode serializes rec. The address is not part of the account data.
func (Ledger) Encode(rec ir.LedgerRecord) []byte {
	buf := make([]byte, 0, ir.DiscriminatorSize+4+len(rec.Category)+8)
	buf = append(buf, ledgerDiscriminator[:]...)
	buf = appendString(buf, rec.Category)
	buf = binary.LittleEndian.AppendUint64(buf, rec.Balance)
	return buf
}

// Decode parses account data. The returned record has a zero Address.
func (Ledger) Decode(data []byte) (ir.LedgerRecord, error) {
	var rec ir.LedgerRecord
	r := reader{data: data}

	disc, err := r.discriminator()
	if err != nil {
		return rec, fmt.Errorf("decode ledger: %w", err)
	}
	if disc != ledgerDiscriminator {
		return rec, fmt.Errorf("decode ledger: %w: %x", ErrDiscriminator, disc[:])
	}
	if rec.Category, err = r.string(); err != nil {
		return rec, fmt.Errorf("decode ledger: category: %w", err)
	}
	if rec.Balance, err = r.uint64(); err != nil {
		return rec, fmt.Errorf("decode ledger: balance: %w", err)
	}
	return rec, nil
}

// Instruction is a decoded instruction. Only the fields of the named
// instruction are set.
type Instruction struct {
	Name     string
	Category string // create_ledger
	Balance  uint64 // modify_ledger
	Lamports uint64 // airdrop
}

// EncodeCreateLedger builds create_ledger(color) instruction data.
func EncodeCreateLedger(category string) []byte {
	disc := ir.InstructionDiscriminator(InstructionCreateLedger)
	return appendString(disc[:], category)
}

// EncodeModifyLedger builds modify_ledger(new_balance) instruction data.
func EncodeModifyLedger(balance uint64) []byte {
	disc := ir.InstructionDiscriminator(InstructionModifyLedger)
	return binary.LittleEndian.AppendUint64(disc[:], balance)
}

// EncodeAirdrop builds airdrop(lamports) instruction data.
func EncodeAirdrop(lamports uint64) []byte {
	disc := ir.InstructionDiscriminator(InstructionAirdrop)
	return binary.LittleEndian.AppendUint64(disc[:], lamports)
}

// DecodeInstruction parses instruction data produced by the Encode
// functions above.
func DecodeInstruction(data []byte) (Instruction, error) {
	var ins Instruction
	r := reader{data: data}

	disc, err := r.discriminator()
	if err != nil {
		return ins, fmt.Errorf("decode instruction: %w", err)
	}
	name, ok := instructionNames[disc]
	if !ok {
		return ins, fmt.Errorf("decode instruction: %w: %x", ErrDiscriminator, disc[:])
	}
	ins.Name = name

	switch name {
	case InstructionCreateLedger:
		ins.Category, err = r.string()
	case InstructionModifyLedger:
		ins.Balance, err = r.uint64()
	case InstructionAirdrop:
		ins.Lamports, err = r.uint64()
	}
	if err != nil {
		return ins, fmt.Errorf("decode instruction %s: %w", name, err)
	}
	if r.remaining() != 0 {
		return ins, fmt.Errorf("decode instruction %s: %d trailing bytes", name, r.remaining())
	}
	return ins, nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// reader walks a byte slice front to back.
type reader struct {
	data []byte
	off  int
}

func (r *reader) remaining() int {
	return len(r.data) - r.off
}

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShortData, n, r.off, r.remaining())
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) discriminator() (ir.Discriminator, error) {
	var d ir.Discriminator
	b, err := r.take(ir.DiscriminatorSize)
	if err != nil {
		return d, err
	}
	copy(d[:], b)
	return d, nil
}

func (r *reader) uint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *reader) string() (string, error) {
	lb, err := r.take(4)
	if err != nil {
		return "", err
	}
	n := binary.LittleEndian.Uint32(lb)
	if uint64(n) > uint64(r.remaining()) {
		return "", fmt.Errorf("%w: string length %d exceeds remaining %d", ErrShortData, n, r.remaining())
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
