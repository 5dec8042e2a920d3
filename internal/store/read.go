package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/pdaledger/internal/codec"
	"github.com/roach88/pdaledger/internal/ir"
)

// Transaction statuses.
const (
	StatusPending   = "pending"
	StatusFinalized = "finalized"
	StatusFailed    = "failed"
)

// ErrUnknownSignature is returned when no transaction has the signature.
var ErrUnknownSignature = errors.New("store: unknown transaction signature")

// TxRecord is the stored state of one transaction.
type TxRecord struct {
	Signature   ir.Signature   `json:"signature"`
	Instruction string         `json:"instruction"`
	Account     ir.PublicKey   `json:"account"`
	Signer      ir.PublicKey   `json:"signer"`
	Status      string         `json:"status"`
	FailureCode ir.FailureCode `json:"failure_code,omitempty"`
	Failure     string         `json:"failure,omitempty"`
	Seq         int64          `json:"seq"`
	Slot        int64          `json:"slot"`
}

// Fetch returns the raw account data stored at address.
// Returns ir.ErrAccountNotFound if nothing is stored there; any other
// error is a failure to talk to the ledger.
func (s *Store) Fetch(ctx context.Context, address ir.PublicKey) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM accounts WHERE address = ?
	`, address.String()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ir.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch account %s: %w", address, err)
	}
	return data, nil
}

// Transaction returns the stored state of a transaction.
// Returns ErrUnknownSignature if it was never submitted.
func (s *Store) Transaction(ctx context.Context, sig ir.Signature) (TxRecord, error) {
	var rec TxRecord
	var account, signer, code string
	err := s.db.QueryRowContext(ctx, `
		SELECT instruction, account, signer, status, failure_code, failure_message, seq, slot
		FROM transactions
		WHERE signature = ?
	`, sig.String()).Scan(
		&rec.Instruction, &account, &signer, &rec.Status, &code, &rec.Failure, &rec.Seq, &rec.Slot,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, fmt.Errorf("%w: %s", ErrUnknownSignature, sig)
	}
	if err != nil {
		return rec, fmt.Errorf("read transaction %s: %w", sig, err)
	}

	rec.Signature = sig
	rec.FailureCode = ir.FailureCode(code)
	if rec.Account, err = ir.ParsePublicKey(account); err != nil {
		return rec, fmt.Errorf("read transaction %s: %w", sig, err)
	}
	if rec.Signer, err = ir.ParsePublicKey(signer); err != nil {
		return rec, fmt.Errorf("read transaction %s: %w", sig, err)
	}
	return rec, nil
}

// AwaitFinalized blocks until the transaction is finalized or failed.
//
// Returns:
//   - nil: the transaction is finalized and its effect is visible to Fetch
//   - *ir.TxFailure: the ledger rejected the transaction
//   - ctx.Err() (wrapped): the caller's deadline passed or ctx was cancelled
//   - any other error: status could not be read
func (s *Store) AwaitFinalized(ctx context.Context, sig ir.Signature) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		rec, err := s.Transaction(ctx, sig)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("await %s: %w", sig, ctxErr)
			}
			return err
		}

		switch rec.Status {
		case StatusFinalized:
			return nil
		case StatusFailed:
			return &ir.TxFailure{Signature: sig, Code: rec.FailureCode, Message: rec.Failure}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("await %s: %w", sig, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Lamports returns the faucet-credited balance of a wallet.
func (s *Store) Lamports(ctx context.Context, pubkey ir.PublicKey) (uint64, error) {
	var lamports int64
	err := s.db.QueryRowContext(ctx, `
		SELECT lamports FROM wallets WHERE pubkey = ?
	`, pubkey.String()).Scan(&lamports)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read wallet %s: %w", pubkey, err)
	}
	return uint64(lamports), nil
}

// Accounts returns every Ledger account ordered by address.
// Returns an empty slice (not nil) if there are none.
func (s *Store) Accounts(ctx context.Context) ([]ir.LedgerRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT address, data FROM accounts ORDER BY address COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	records := []ir.LedgerRecord{}
	for rows.Next() {
		var address string
		var data []byte
		if err := rows.Scan(&address, &data); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		rec, err := codec.Ledger{}.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", address, err)
		}
		if rec.Address, err = ir.ParsePublicKey(address); err != nil {
			return nil, fmt.Errorf("account %s: %w", address, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return records, nil
}

// AccountHistory returns the transactions that targeted address in
// submission order.
func (s *Store) AccountHistory(ctx context.Context, address ir.PublicKey) ([]TxRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT signature FROM transactions WHERE account = ? ORDER BY seq ASC
	`, address.String())
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	var sigs []ir.Signature
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan history: %w", err)
		}
		sig, err := ir.ParseSignature(text)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("history: %w", err)
		}
		sigs = append(sigs, sig)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	rows.Close()

	history := make([]TxRecord, 0, len(sigs))
	for _, sig := range sigs {
		rec, err := s.Transaction(ctx, sig)
		if err != nil {
			return nil, err
		}
		history = append(history, rec)
	}
	return history, nil
}
