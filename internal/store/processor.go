package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/roach88/pdaledger/internal/codec"
	"github.com/roach88/pdaledger/internal/ir"
)

// Run is the single-writer processor loop. It applies pending transactions
// and blocks until ctx is cancelled or Stop/Close is called.
//
// CRITICAL: Must be called from exactly ONE goroutine. Every account write
// happens here, which is what makes "last finalized write wins" a total
// order.
//
// Transactions left pending by a previous process are re-queued first, in
// submission order.
//
// A database error while applying a transaction is logged and the
// transaction stays pending; it is retried on the next Run. Program-rule
// violations are not errors: they finalize the transaction as failed.
func (s *Store) Run(ctx context.Context) error {
	if err := s.requeuePending(ctx); err != nil {
		return err
	}

	s.logger.Info("ledger processor starting",
		"program", s.program,
		"slot", s.slots.Current(),
		"slot_duration", s.slotDuration,
	)

	// Immediate mode wakes on every enqueue; slot mode wakes on the ticker.
	var wake <-chan struct{}
	var tick <-chan time.Time
	if s.slotDuration > 0 {
		ticker := time.NewTicker(s.slotDuration)
		defer ticker.Stop()
		tick = ticker.C
	} else {
		wake = s.queue.Wait()
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("ledger processor stopping: context cancelled")
			s.queue.Close()
			return ctx.Err()
		case <-wake:
		case <-tick:
		}

		if s.queue.Closed() && s.queue.Len() == 0 {
			s.logger.Info("ledger processor stopping: queue closed")
			return nil
		}

		s.processSlot(ctx)

		if s.queue.Closed() && s.queue.Len() == 0 {
			s.logger.Info("ledger processor stopping: queue closed")
			return nil
		}
	}
}

// Stop gracefully shuts down the processor. Queued transactions are
// applied before Run returns.
func (s *Store) Stop() {
	s.queue.Close()
}

// requeuePending loads transactions left pending in the database.
func (s *Store) requeuePending(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT signature FROM transactions
		WHERE status = 'pending'
		ORDER BY seq ASC
	`)
	if err != nil {
		return fmt.Errorf("query pending transactions: %w", err)
	}
	defer rows.Close()

	var sigs []ir.Signature
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return fmt.Errorf("scan pending transaction: %w", err)
		}
		sig, err := ir.ParseSignature(text)
		if err != nil {
			return fmt.Errorf("pending transaction: %w", err)
		}
		sigs = append(sigs, sig)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate pending transactions: %w", err)
	}

	if len(sigs) > 0 {
		s.logger.Info("requeueing pending transactions", "count", len(sigs))
	}
	for _, sig := range sigs {
		s.queue.Enqueue(sig)
	}
	return nil
}

// processSlot applies every queued transaction under one new slot number.
func (s *Store) processSlot(ctx context.Context) {
	sigs := s.queue.Drain()
	if len(sigs) == 0 {
		return
	}
	slot := s.slots.Next()

	for _, sig := range sigs {
		if err := s.apply(ctx, sig, slot); err != nil {
			s.logger.Error("transaction apply failed",
				"signature", sig,
				"slot", slot,
				"error", err,
			)
		}
	}
}

// apply executes one transaction and records its outcome atomically.
func (s *Store) apply(ctx context.Context, sig ir.Signature, slot int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("apply: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var message []byte
	var status string
	err = tx.QueryRowContext(ctx, `
		SELECT message, status FROM transactions WHERE signature = ?
	`, sig.String()).Scan(&message, &status)
	if err != nil {
		return fmt.Errorf("apply: load transaction: %w", err)
	}
	if status != StatusPending {
		// Requeued twice; already applied.
		return nil
	}

	failure, err := s.execute(ctx, tx, message, slot)
	if err != nil {
		return fmt.Errorf("apply: %w", err)
	}

	if failure != nil {
		_, err = tx.ExecContext(ctx, `
			UPDATE transactions
			SET status = 'failed', failure_code = ?, failure_message = ?, slot = ?
			WHERE signature = ?
		`, string(failure.Code), failure.Message, slot, sig.String())
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE transactions SET status = 'finalized', slot = ? WHERE signature = ?
		`, slot, sig.String())
	}
	if err != nil {
		return fmt.Errorf("apply: record status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("apply: commit: %w", err)
	}

	if failure != nil {
		s.logger.Info("transaction failed",
			"signature", sig,
			"slot", slot,
			"code", failure.Code,
			"reason", failure.Message,
		)
	} else {
		s.logger.Debug("transaction finalized", "signature", sig, "slot", slot)
	}
	return nil
}

// execute runs the program rules for one message inside tx. A non-nil
// failure finalizes the transaction as failed; a non-nil error aborts it.
func (s *Store) execute(ctx context.Context, tx *sql.Tx, message []byte, slot int64) (*ir.TxFailure, error) {
	msg, err := codec.DecodeMessage(message)
	if err != nil {
		return &ir.TxFailure{Code: ir.FailureInvalidInstruction, Message: err.Error()}, nil
	}
	ins, err := codec.DecodeInstruction(msg.Data)
	if err != nil {
		return &ir.TxFailure{Code: ir.FailureInvalidInstruction, Message: err.Error()}, nil
	}

	switch ins.Name {
	case codec.InstructionCreateLedger:
		return s.createLedger(ctx, tx, msg, ins.Category, slot)
	case codec.InstructionModifyLedger:
		return s.modifyLedger(ctx, tx, msg, ins.Balance, slot)
	case codec.InstructionAirdrop:
		return s.airdrop(ctx, tx, msg, ins.Lamports)
	default:
		return &ir.TxFailure{Code: ir.FailureInvalidInstruction, Message: "unknown instruction " + ins.Name}, nil
	}
}

func (s *Store) createLedger(ctx context.Context, tx *sql.Tx, msg codec.Message, category string, slot int64) (*ir.TxFailure, error) {
	if failure := s.checkSeeds(msg, category); failure != nil {
		return failure, nil
	}

	data := codec.Ledger{}.Encode(ir.LedgerRecord{Category: category})
	result, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (address, program, data, created_slot, updated_slot)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(address) DO NOTHING
	`, msg.Account.String(), s.program.String(), data, slot, slot)
	if err != nil {
		return nil, fmt.Errorf("create ledger: %w", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("create ledger: rows affected: %w", err)
	}
	if inserted == 0 {
		return &ir.TxFailure{
			Code:    ir.FailureAccountInUse,
			Message: "account " + msg.Account.String() + " already in use",
		}, nil
	}
	return nil, nil
}

func (s *Store) modifyLedger(ctx context.Context, tx *sql.Tx, msg codec.Message, balance uint64, slot int64) (*ir.TxFailure, error) {
	var data []byte
	err := tx.QueryRowContext(ctx, `
		SELECT data FROM accounts WHERE address = ?
	`, msg.Account.String()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return &ir.TxFailure{
			Code:    ir.FailureAccountNotInitialized,
			Message: "account " + msg.Account.String() + " is not initialized",
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("modify ledger: load account: %w", err)
	}

	rec, err := codec.Ledger{}.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("modify ledger: %w", err)
	}
	if failure := s.checkSeeds(msg, rec.Category); failure != nil {
		return failure, nil
	}

	rec.Balance = balance
	_, err = tx.ExecContext(ctx, `
		UPDATE accounts SET data = ?, updated_slot = ? WHERE address = ?
	`, codec.Ledger{}.Encode(rec), slot, msg.Account.String())
	if err != nil {
		return nil, fmt.Errorf("modify ledger: %w", err)
	}
	return nil, nil
}

// checkSeeds verifies that msg.Account is derived from msg.Signer and
// category, i.e. that the signer owns the record.
func (s *Store) checkSeeds(msg codec.Message, category string) *ir.TxFailure {
	expected, _, err := s.deriver.LedgerAddress(msg.Signer, category)
	if err != nil {
		return &ir.TxFailure{Code: ir.FailureConstraintSeeds, Message: err.Error()}
	}
	if expected != msg.Account {
		return &ir.TxFailure{
			Code:    ir.FailureConstraintSeeds,
			Message: "account " + msg.Account.String() + " is not derived from signer " + msg.Signer.String(),
		}
	}
	return nil
}

func (s *Store) airdrop(ctx context.Context, tx *sql.Tx, msg codec.Message, lamports uint64) (*ir.TxFailure, error) {
	if msg.Signer != s.faucet.PublicKey() {
		return &ir.TxFailure{
			Code:    ir.FailureConstraintSeeds,
			Message: "airdrop must be signed by the faucet",
		}, nil
	}

	var current int64
	err := tx.QueryRowContext(ctx, `
		SELECT lamports FROM wallets WHERE pubkey = ?
	`, msg.Account.String()).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("airdrop: load wallet: %w", err)
	}
	if lamports > math.MaxInt64-uint64(current) {
		return &ir.TxFailure{Code: ir.FailureInvalidInstruction, Message: "lamports overflow"}, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO wallets (pubkey, lamports) VALUES (?, ?)
		ON CONFLICT(pubkey) DO UPDATE SET lamports = excluded.lamports
	`, msg.Account.String(), current+int64(lamports))
	if err != nil {
		return nil, fmt.Errorf("airdrop: %w", err)
	}
	return nil, nil
}
