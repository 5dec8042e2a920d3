package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/pdaledger/internal/derive"
	"github.com/roach88/pdaledger/internal/identity"
	"github.com/roach88/pdaledger/internal/ir"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial ledger schema
const currentSchemaVersion = 1

const (
	// DefaultSlotDuration is how long the processor waits between slots.
	// Zero means "apply as soon as a transaction arrives".
	DefaultSlotDuration = 0

	// DefaultPollInterval is how often AwaitFinalized checks status.
	DefaultPollInterval = 10 * time.Millisecond
)

// Store is the simulated ledger. One Store is shared by every record
// service in a process; it is safe for concurrent use.
type Store struct {
	db      *sql.DB
	program ir.PublicKey
	deriver derive.Deriver
	faucet  ir.Signer

	queue *txQueue
	seq   *Clock // submission order
	slots *Clock // applied slots

	nonces       NonceGenerator
	slotDuration time.Duration
	pollInterval time.Duration
	logger       *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithSlotDuration sets the time between processor slots. Transactions
// submitted during a slot are applied together when it ends.
func WithSlotDuration(d time.Duration) Option {
	return func(s *Store) {
		s.slotDuration = d
	}
}

// WithPollInterval sets how often AwaitFinalized re-reads status.
func WithPollInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithNonces sets the nonce source for built transactions.
func WithNonces(g NonceGenerator) Option {
	return func(s *Store) {
		s.nonces = g
	}
}

// WithFaucet sets the key allowed to sign airdrops. By default a fresh
// key is generated on Open.
func WithFaucet(signer ir.Signer) Option {
	return func(s *Store) {
		s.faucet = signer
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Open creates or opens a ledger database at the given path for program.
// Applies required pragmas and schema automatically, and resumes the
// submission and slot counters from the stored transactions.
//
// Call Run in a goroutine to start applying transactions.
func Open(path string, program ir.PublicKey, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{
		db:           db,
		program:      program,
		queue:        newTxQueue(),
		nonces:       UUIDv7Nonces{},
		slotDuration: DefaultSlotDuration,
		pollInterval: DefaultPollInterval,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.deriver = derive.Deriver{Program: program, Valid: s.IsValidDerivedAddress}

	if s.faucet == nil {
		kp, err := identity.Generate()
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("generate faucet key: %w", err)
		}
		s.faucet = kp
	}

	var maxSeq, maxSlot int64
	if err := db.QueryRow(`SELECT COALESCE(MAX(seq), 0), COALESCE(MAX(slot), 0) FROM transactions`).Scan(&maxSeq, &maxSlot); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read counters: %w", err)
	}
	s.seq = NewClockAt(maxSeq)
	s.slots = NewClockAt(maxSlot)

	return s, nil
}

// Close closes the database connection.
// Stop the processor (cancel its context or call Stop) first.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	s.queue.Close()
	return s.db.Close()
}

// Program returns the program namespace this ledger serves.
func (s *Store) Program() ir.PublicKey {
	return s.program
}

// Faucet returns the public key allowed to sign airdrops.
func (s *Store) Faucet() ir.PublicKey {
	return s.faucet.PublicKey()
}

// IsValidDerivedAddress reports whether candidate may serve as a derived
// address: it must not be an ed25519 curve point.
func (s *Store) IsValidDerivedAddress(candidate ir.PublicKey) bool {
	return derive.OffCurve(candidate)
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and records the version.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(ctx context.Context, name, expected string) error {
	var value string
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
