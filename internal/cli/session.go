package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/pdaledger/internal/codec"
	"github.com/roach88/pdaledger/internal/config"
	"github.com/roach88/pdaledger/internal/identity"
	"github.com/roach88/pdaledger/internal/ledger"
	"github.com/roach88/pdaledger/internal/store"
	"github.com/roach88/pdaledger/internal/telemetry"
)

const serviceName = "pdaledger"

// session is one command's connection to the ledger: an open store with
// its processor running, and a record service over it.
type session struct {
	ctx     context.Context
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	service *ledger.Service

	cancel   context.CancelFunc
	done     chan error
	shutdown func(context.Context) error
}

// loadConfig resolves configuration and applies the global flag overrides.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, err
	}
	if opts.DB != "" {
		cfg.DBPath = opts.DB
	}
	if opts.Keypair != "" {
		cfg.KeypairPath = opts.Keypair
	}
	if cfg.KeypairPath == "" {
		cfg.KeypairPath = defaultKeypairPath()
	}
	return cfg, nil
}

// defaultKeypairPath is where solana-keygen puts the default wallet.
func defaultKeypairPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "solana", "id.json")
	}
	return filepath.Join(home, ".config", "solana", "id.json")
}

// newLogger writes text logs to w at the configured level, or Debug
// with --verbose.
func newLogger(opts *RootOptions, cfg *config.Config, w io.Writer) *slog.Logger {
	level := cfg.Level()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openSession opens the configured ledger and starts its processor.
// Interrupts cancel the session context. Callers must Close the session.
func openSession(cmd *cobra.Command, opts *RootOptions, f *OutputFormatter) (*session, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, f.Fail(ErrCodeConfig, "failed to load config", err)
	}
	logger := newLogger(opts, cfg, f.GetErrWriter())

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)

	shutdown, err := telemetry.Setup(ctx, serviceName)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	}

	logger.Debug("opening ledger", "path", cfg.DBPath, "program", cfg.ProgramID)
	st, err := store.Open(cfg.DBPath, cfg.ProgramID,
		store.WithSlotDuration(cfg.SlotDuration),
		store.WithPollInterval(cfg.PollInterval),
		store.WithLogger(logger),
	)
	if err != nil {
		cancel()
		_ = shutdown(context.Background())
		return nil, f.Fail(ErrCodeDatabase, "failed to open ledger", err)
	}

	s := &session{
		ctx:    ctx,
		cfg:    cfg,
		logger: logger,
		store:  st,
		service: ledger.New(st, codec.Ledger{}, cfg.ProgramID,
			ledger.WithConfirmTimeout(cfg.ConfirmTimeout),
			ledger.WithLogger(logger),
		),
		cancel:   cancel,
		done:     make(chan error, 1),
		shutdown: shutdown,
	}
	go func() {
		s.done <- st.Run(ctx)
	}()
	return s, nil
}

// Close drains the processor, closes the store and flushes traces.
func (s *session) Close() error {
	s.store.Stop()
	runErr := <-s.done
	s.cancel()

	var errs []error
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		errs = append(errs, fmt.Errorf("ledger processor: %w", runErr))
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close ledger: %w", err))
	}
	if err := s.shutdown(context.Background()); err != nil {
		errs = append(errs, fmt.Errorf("flush traces: %w", err))
	}
	return errors.Join(errs...)
}

// closeSession closes s and logs any error; command results are already
// written by then.
func closeSession(s *session) {
	if err := s.Close(); err != nil {
		s.logger.Error("error closing session", "error", err)
	}
}

// signer loads the configured keypair.
func (s *session) signer(f *OutputFormatter) (*identity.Keypair, error) {
	kp, err := identity.LoadFile(s.cfg.KeypairPath)
	if err != nil {
		return nil, f.Fail(ErrCodeKeypair, "failed to load keypair", err)
	}
	s.logger.Debug("signer loaded", "pubkey", kp.PublicKey(), "path", s.cfg.KeypairPath)
	return kp, nil
}
