package store

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/roach88/pdaledger/internal/codec"
	"github.com/roach88/pdaledger/internal/ir"
)

// ErrClosed is returned when submitting to a store whose processor has
// been stopped.
var ErrClosed = errors.New("store: ledger closed")

// SubmitCreate builds, signs and submits create_ledger(category) against
// address. The returned signature is the transaction handle; the record
// exists only once AwaitFinalized reports success.
func (s *Store) SubmitCreate(ctx context.Context, address ir.PublicKey, category string, signer ir.Signer) (ir.Signature, error) {
	return s.submit(ctx, address, codec.EncodeCreateLedger(category), signer)
}

// SubmitUpdate builds, signs and submits modify_ledger(balance).
func (s *Store) SubmitUpdate(ctx context.Context, address ir.PublicKey, balance uint64, signer ir.Signer) (ir.Signature, error) {
	return s.submit(ctx, address, codec.EncodeModifyLedger(balance), signer)
}

// RequestAirdrop credits lamports to a wallet, signed by the faucet.
func (s *Store) RequestAirdrop(ctx context.Context, to ir.PublicKey, lamports uint64) (ir.Signature, error) {
	return s.submit(ctx, to, codec.EncodeAirdrop(lamports), s.faucet)
}

func (s *Store) submit(ctx context.Context, account ir.PublicKey, data []byte, signer ir.Signer) (ir.Signature, error) {
	msg := codec.Message{
		Program: s.program,
		Account: account,
		Signer:  signer.PublicKey(),
		Data:    data,
		Nonce:   s.nonces.Generate(),
	}
	raw, err := codec.EncodeMessage(msg)
	if err != nil {
		return ir.Signature{}, err
	}
	sig, err := signer.Sign(raw)
	if err != nil {
		return ir.Signature{}, fmt.Errorf("sign transaction: %w", err)
	}
	return s.SendTransaction(ctx, raw, sig)
}

// SendTransaction accepts an already signed message. This is the ledger's
// entry point: everything is verified here, nothing is trusted from the
// submitting client.
//
// Submitting the same signed message twice is a no-op that returns the
// same signature.
func (s *Store) SendTransaction(ctx context.Context, message, signature []byte) (ir.Signature, error) {
	sig, err := ir.SignatureFromBytes(signature)
	if err != nil {
		return ir.Signature{}, &ir.TxFailure{Code: ir.FailureSignature, Message: err.Error()}
	}

	msg, err := codec.DecodeMessage(message)
	if err != nil {
		return sig, &ir.TxFailure{Signature: sig, Code: ir.FailureInvalidInstruction, Message: err.Error()}
	}
	if !ed25519.Verify(ed25519.PublicKey(msg.Signer[:]), message, signature) {
		return sig, &ir.TxFailure{Signature: sig, Code: ir.FailureSignature, Message: "signature does not match signer " + msg.Signer.String()}
	}
	if msg.Program != s.program {
		return sig, &ir.TxFailure{Signature: sig, Code: ir.FailureInvalidInstruction, Message: "unknown program " + msg.Program.String()}
	}
	ins, err := codec.DecodeInstruction(msg.Data)
	if err != nil {
		return sig, &ir.TxFailure{Signature: sig, Code: ir.FailureInvalidInstruction, Message: err.Error()}
	}

	if s.queue.Closed() {
		return sig, ErrClosed
	}

	seq := s.seq.Next()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions
		(signature, instruction, account, signer, message, status, seq)
		VALUES (?, ?, ?, ?, ?, 'pending', ?)
		ON CONFLICT(signature) DO NOTHING
	`,
		sig.String(),
		ins.Name,
		msg.Account.String(),
		msg.Signer.String(),
		message,
		seq,
	)
	if err != nil {
		return sig, fmt.Errorf("submit transaction: %w", err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return sig, fmt.Errorf("submit transaction: rows affected: %w", err)
	}
	if inserted == 0 {
		s.logger.Debug("duplicate transaction ignored", "signature", sig)
		return sig, nil
	}

	if !s.queue.Enqueue(sig) {
		// Stays pending in the database; the next Run picks it up.
		return sig, ErrClosed
	}

	s.logger.Debug("transaction submitted",
		"signature", sig,
		"instruction", ins.Name,
		"account", msg.Account,
		"signer", msg.Signer,
		"seq", seq,
	)
	return sig, nil
}
