// Package config loads pdaledger configuration.
//
// Precedence, lowest first: defaults from the embedded CUE schema, an
// optional CUE file, PDALEDGER_* environment variables. Command-line flags
// are applied on top by the caller.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/caarlos0/env/v11"

	"github.com/roach88/pdaledger/internal/ir"
)

//go:embed schema.cue
var schemaCUE string

// DefaultProgramID is the Ledger program the CLI talks to by default.
const DefaultProgramID = "CUHtiUABtEJKnCjut9Z7KK2j8nF7WN7QJjhbSrr9DHZB"

// Config is the resolved configuration.
type Config struct {
	DBPath          string        `env:"PDALEDGER_DB_PATH"`
	ProgramID       ir.PublicKey  `env:"PDALEDGER_PROGRAM_ID"`
	SlotDuration    time.Duration `env:"PDALEDGER_SLOT_DURATION"`
	PollInterval    time.Duration `env:"PDALEDGER_POLL_INTERVAL"`
	ConfirmTimeout  time.Duration `env:"PDALEDGER_CONFIRM_TIMEOUT"`
	AirdropLamports uint64        `env:"PDALEDGER_AIRDROP_LAMPORTS"`
	KeypairPath     string        `env:"PDALEDGER_KEYPAIR"`
	LogLevel        string        `env:"PDALEDGER_LOG_LEVEL"`
}

// fileConfig mirrors #Config field for field.
type fileConfig struct {
	DBPath          string `json:"db_path"`
	ProgramID       string `json:"program_id"`
	SlotDuration    string `json:"slot_duration"`
	PollInterval    string `json:"poll_interval"`
	ConfirmTimeout  string `json:"confirm_timeout"`
	AirdropLamports uint64 `json:"airdrop_lamports"`
	KeypairPath     string `json:"keypair_path"`
	LogLevel        string `json:"log_level"`
}

// Default returns the schema defaults.
func Default() (*Config, error) {
	return loadFile("", nil)
}

// Load reads the CUE file at path (skipped if path is empty), then applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	var data []byte
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg, err := loadFile(path, data)
	if err != nil {
		return nil, err
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile unifies data with #Config and decodes the result.
func loadFile(path string, data []byte) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}
	value := schema.LookupPath(cue.ParsePath("#Config"))

	if data != nil {
		file := ctx.CompileBytes(data, cue.Filename(path))
		if err := file.Err(); err != nil {
			return nil, fmt.Errorf("compile config %s: %w", path, err)
		}
		value = value.Unify(file)
	}

	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	var fc fileConfig
	if err := value.Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	return fc.resolve()
}

func (fc fileConfig) resolve() (*Config, error) {
	program, err := ir.ParsePublicKey(fc.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("config program_id: %w", err)
	}

	cfg := &Config{
		DBPath:          fc.DBPath,
		ProgramID:       program,
		AirdropLamports: fc.AirdropLamports,
		KeypairPath:     fc.KeypairPath,
		LogLevel:        fc.LogLevel,
	}
	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"slot_duration", fc.SlotDuration, &cfg.SlotDuration},
		{"poll_interval", fc.PollInterval, &cfg.PollInterval},
		{"confirm_timeout", fc.ConfirmTimeout, &cfg.ConfirmTimeout},
	}
	for _, d := range durations {
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return nil, fmt.Errorf("config %s: %w", d.name, err)
		}
		*d.dst = parsed
	}
	return cfg, nil
}

// Validate checks invariants the schema cannot express once environment
// overrides are applied.
func (c *Config) Validate() error {
	var errs []error
	if c.DBPath == "" {
		errs = append(errs, errors.New("db path is required"))
	}
	if c.ProgramID.IsZero() {
		errs = append(errs, errors.New("program id is required"))
	}
	if c.SlotDuration < 0 {
		errs = append(errs, fmt.Errorf("slot duration must not be negative: %s", c.SlotDuration))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be positive: %s", c.PollInterval))
	}
	if c.ConfirmTimeout < 0 {
		errs = append(errs, fmt.Errorf("confirm timeout must not be negative: %s", c.ConfirmTimeout))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Level returns LogLevel as a slog level.
func (c *Config) Level() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
