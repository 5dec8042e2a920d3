package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/pdaledger/internal/ledger"
	"github.com/roach88/pdaledger/internal/store"
	"github.com/roach88/pdaledger/internal/testutil"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s/%s -> %s\n", event.Step, event.Op, event.Owner, event.Category, event.Outcome)
	}

	return buf.String()
}

// AssertionContext provides the ledger for state assertions.
type AssertionContext struct {
	Ctx        context.Context
	Store      *store.Store
	Service    *ledger.Service
	Identities *testutil.Identities
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertRecordCount, AssertRecord, AssertMissing:
			if actx == nil || actx.Store == nil || actx.Service == nil || actx.Identities == nil {
				err = fmt.Errorf("assertion[%d]: %s requires ledger context", i, assertion.Type)
				break
			}
			switch assertion.Type {
			case AssertRecordCount:
				err = assertRecordCount(actx, result.Trace, assertion)
			default:
				err = assertRecord(actx, result.Trace, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

// assertTraceCount checks that the op appears exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Op == assertion.Op {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Op),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertRecordCount checks the total number of records in the ledger.
func assertRecordCount(actx *AssertionContext, trace []TraceEvent, assertion Assertion) error {
	records, err := actx.Store.Accounts(actx.Ctx)
	if err != nil {
		return fmt.Errorf("record_count: %w", err)
	}
	if len(records) != assertion.Count {
		return &AssertionError{
			Type:     AssertRecordCount,
			Expected: fmt.Sprintf("%d records", assertion.Count),
			Actual:   fmt.Sprintf("%d records", len(records)),
			Trace:    trace,
		}
	}
	return nil
}

// assertRecord checks that a record exists (record) or not (missing).
func assertRecord(actx *AssertionContext, trace []TraceEvent, assertion Assertion) error {
	owner := actx.Identities.Get(assertion.Owner).PublicKey()
	rec, found, err := actx.Service.Lookup(actx.Ctx, owner, assertion.Category)
	if err != nil {
		return fmt.Errorf("%s %s/%s: %w", assertion.Type, assertion.Owner, assertion.Category, err)
	}

	label := assertion.Owner + "/" + assertion.Category
	switch {
	case assertion.Type == AssertMissing && found:
		return &AssertionError{
			Type:     AssertMissing,
			Expected: fmt.Sprintf("no record for %s", label),
			Actual:   fmt.Sprintf("record with balance %d", rec.Balance),
			Trace:    trace,
		}
	case assertion.Type == AssertRecord && !found:
		return &AssertionError{
			Type:     AssertRecord,
			Expected: fmt.Sprintf("record for %s", label),
			Actual:   "not found",
			Trace:    trace,
		}
	case assertion.Type == AssertRecord && assertion.Balance != nil && rec.Balance != *assertion.Balance:
		return &AssertionError{
			Type:     AssertRecord,
			Expected: fmt.Sprintf("%s balance %d", label, *assertion.Balance),
			Actual:   fmt.Sprintf("balance %d", rec.Balance),
			Trace:    trace,
		}
	}
	return nil
}
