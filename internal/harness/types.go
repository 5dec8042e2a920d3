package harness

import (
	"github.com/roach88/pdaledger/internal/ir"
)

// Outcomes recorded in the trace besides error kinds.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeError    = "ERROR"
)

// RecordView is the part of a record a trace shows. Addresses are left
// out: they depend on the program id, not on the scenario.
type RecordView struct {
	Category string `json:"category"`
	Balance  uint64 `json:"balance"`
}

// TraceEvent is one executed flow step.
type TraceEvent struct {
	Step     int         `json:"step"`
	Op       string      `json:"op"`
	Owner    string      `json:"owner"`
	Signer   string      `json:"signer,omitempty"` // set only when it differs from Owner
	Category string      `json:"category"`
	Balance  *uint64     `json:"balance,omitempty"` // requested balance for set
	Outcome  string      `json:"outcome"`
	Record   *RecordView `json:"record,omitempty"`
}

// value converts the event to a trace value for canonical encoding.
func (e TraceEvent) value() ir.Object {
	obj := ir.Object{
		"step":     ir.Int(e.Step),
		"op":       ir.String(e.Op),
		"owner":    ir.String(e.Owner),
		"category": ir.String(e.Category),
		"outcome":  ir.String(e.Outcome),
	}
	if e.Signer != "" {
		obj["signer"] = ir.String(e.Signer)
	}
	if e.Balance != nil {
		obj["balance"] = ir.Int(int64(*e.Balance))
	}
	if e.Record != nil {
		obj["record"] = ir.Object{
			"category": ir.String(e.Record.Category),
			"balance":  ir.Int(int64(e.Record.Balance)),
		}
	}
	return obj
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains the executed steps in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failed expectations and assertions.
	Errors []string `json:"errors,omitempty"`

	// Digest is the content hash of the canonical trace.
	Digest string `json:"digest"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an executed step.
func (r *Result) AddTrace(event TraceEvent) {
	r.Trace = append(r.Trace, event)
}

// snapshot returns the canonical trace value for name.
func snapshot(name string, trace []TraceEvent) ir.Object {
	events := make(ir.List, len(trace))
	for i, event := range trace {
		events[i] = event.value()
	}
	return ir.Object{
		"scenario": ir.String(name),
		"trace":    events,
	}
}
