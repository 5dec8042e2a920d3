package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/roach88/pdaledger/internal/ledger"
)

// Process exit statuses.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the ledger refused or failed the operation, or a scenario failed
	ExitCommandError = 2 // bad arguments, config, keypair or database
)

// Codes for failures that did not come from the record service. Those that
// did are reported under their ledger.Kind.
const (
	ErrCodeGeneric       = "E001"
	ErrCodeConfig        = "E002" // config file or PDALEDGER_* environment
	ErrCodeKeypair       = "E003"
	ErrCodeDatabase      = "E004"
	ErrCodeInvalidArg    = "E005"
	ErrCodeNotFound      = "E006" // scenario path or ledger record
	ErrCodeWriteFailed   = "E007"
	ErrCodeScenarioError = "E008"
)

const (
	statusOK    = "ok"
	statusError = "error"
)

// ExitError is returned by a command that failed after reporting the
// failure. Code is the process exit status.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return WrapExitError(code, message, nil)
}

// WrapExitError returns an ExitError caused by err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the exit status carried by err, or ExitFailure when
// err is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter writes command results either as text or as one JSON
// CLIResponse per line.
type OutputFormatter struct {
	Format    string // "text" or "json"
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; Writer when nil
	Verbose   bool
}

// CLIResponse is the JSON envelope of every command result.
type CLIResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Error  *CLIError   `json:"error,omitempty"`
}

// CLIError describes a failed command. Code is one of the E0xx codes or a
// ledger kind such as UNAUTHORIZED.
type CLIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (f *OutputFormatter) isJSON() bool {
	return f.Format == "json"
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	return json.NewEncoder(f.Writer).Encode(resp)
}

// Success writes data. Text output relies on data's String method.
func (f *OutputFormatter) Success(data interface{}) error {
	if f.isJSON() {
		return f.encode(CLIResponse{Status: statusOK, Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error writes a failure. Details are printed in text mode only when
// verbose.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	if f.isJSON() {
		return f.encode(CLIResponse{
			Status: statusError,
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	if _, err := fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message); err != nil {
		return err
	}
	if f.Verbose && details != nil {
		_, err := fmt.Fprintf(f.Writer, "Details: %s\n", formatDetails(details))
		return err
	}
	return nil
}

// Fail reports err and returns the ExitError the command should return.
// A *ledger.Error is reported under its kind with its phase, category and
// address as details, and exits with ExitFailure. Anything else is a
// command error reported under code.
func (f *OutputFormatter) Fail(code, message string, err error) error {
	exit := ExitCommandError
	var details interface{}

	var lerr *ledger.Error
	if errors.As(err, &lerr) {
		code = string(lerr.Kind)
		exit = ExitFailure
		d := map[string]string{
			"phase":    string(lerr.Phase),
			"category": lerr.Category,
		}
		if !lerr.Address.IsZero() {
			d["address"] = lerr.Address.String()
		}
		details = d
	}

	text := message
	if err != nil {
		text = fmt.Sprintf("%s: %v", message, err)
	}
	_ = f.Error(code, text, details)
	return WrapExitError(exit, message, err)
}

// VerboseLog writes a diagnostic line when verbose. It never writes to
// Writer while ErrWriter is set, so JSON output stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if f.Verbose {
		fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
	}
}

// GetErrWriter returns the writer for diagnostics and logs.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter == nil {
		return f.Writer
	}
	return f.ErrWriter
}

// formatDetails renders string maps as sorted key=value pairs.
func formatDetails(details interface{}) string {
	m, ok := details.(map[string]string)
	if !ok {
		return fmt.Sprint(details)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + m[k]
	}
	return strings.Join(parts, " ")
}
