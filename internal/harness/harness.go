package harness

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/pdaledger/internal/codec"
	"github.com/roach88/pdaledger/internal/identity"
	"github.com/roach88/pdaledger/internal/ir"
	"github.com/roach88/pdaledger/internal/ledger"
	"github.com/roach88/pdaledger/internal/store"
	"github.com/roach88/pdaledger/internal/testutil"
)

// DefaultTimeout bounds a whole scenario run.
const DefaultTimeout = 30 * time.Second

// Harness executes one scenario against one ledger.
type Harness struct {
	store   *store.Store
	service *ledger.Service
	ids     *testutil.Identities
	logger  *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic identities ensure reproducible results.
//
// Execution flow:
// 1. Create fresh in-memory ledger and start its processor
// 2. Fund every declared owner from the faucet
// 3. Execute flow steps with expect validation
// 4. Evaluate assertions
// 5. Return result with pass/fail, trace, digest and errors
//
// A returned error means the scenario could not be executed at all;
// failed expectations are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()
	return RunContext(ctx, scenario, testutil.DiscardLogger())
}

// RunContext is Run with an explicit context and logger.
func RunContext(ctx context.Context, scenario *Scenario, logger *slog.Logger) (*Result, error) {
	st, err := store.Open(":memory:", testutil.Program, store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory ledger: %w", err)
	}
	defer st.Close()

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		st.Run(runCtx)
	}()
	defer func() {
		stop()
		<-done
	}()

	h := &Harness{
		store:   st,
		service: ledger.New(st, codec.Ledger{}, st.Program(), ledger.WithLogger(logger)),
		ids:     testutil.NewIdentities(scenario.Name),
		logger:  logger,
	}

	if err := h.fundOwners(ctx, scenario.Owners); err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range scenario.Flow {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("flow step %d: %w", i, err)
		}
		h.executeStep(ctx, i, step, result)
	}

	actx := &AssertionContext{
		Ctx:        ctx,
		Store:      st,
		Service:    h.service,
		Identities: h.ids,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	digest, err := ir.TraceDigest(snapshot(scenario.Name, result.Trace))
	if err != nil {
		return nil, fmt.Errorf("trace digest: %w", err)
	}
	result.Digest = digest
	return result, nil
}

// fundOwners airdrops to every declared owner, as a fresh wallet would be
// funded before its first transaction.
func (h *Harness) fundOwners(ctx context.Context, owners []string) error {
	funder := identity.Funder{Faucet: h.store}
	for _, name := range owners {
		if err := funder.Fund(ctx, h.ids.Get(name).PublicKey()); err != nil {
			return fmt.Errorf("fund owner %s: %w", name, err)
		}
	}
	return nil
}

// executeStep runs one flow step, records it in the trace, and checks its
// expectation.
func (h *Harness) executeStep(ctx context.Context, index int, step Step, result *Result) {
	owner := h.ids.Get(step.Owner)
	event := TraceEvent{
		Step:     index + 1,
		Op:       step.Op,
		Owner:    step.Owner,
		Category: step.Category,
		Balance:  step.Balance,
	}

	var (
		rec   ir.LedgerRecord
		found = true
		err   error
	)
	switch step.Op {
	case OpEnsure:
		rec, err = h.service.EnsureExists(ctx, owner, step.Category)
	case OpSet:
		signer := owner
		if step.Signer != "" && step.Signer != step.Owner {
			event.Signer = step.Signer
			signer = h.ids.Get(step.Signer)
		}
		rec, err = h.service.SetFor(ctx, owner.PublicKey(), signer, step.Category, *step.Balance)
	case OpRead:
		rec, found, err = h.service.Lookup(ctx, owner.PublicKey(), step.Category)
	}

	switch {
	case err != nil:
		event.Outcome = outcomeOf(err)
	case !found:
		event.Outcome = OutcomeNotFound
	default:
		event.Outcome = OutcomeOK
		event.Record = &RecordView{Category: rec.Category, Balance: rec.Balance}
	}
	result.AddTrace(event)

	h.logger.Info("scenario step completed",
		"step", event.Step,
		"op", step.Op,
		"owner", step.Owner,
		"category", step.Category,
		"outcome", event.Outcome,
	)

	for _, msg := range checkExpect(event, step.Expect, err) {
		result.AddError(fmt.Sprintf("flow[%d] %s %s/%s: %s", index, step.Op, step.Owner, step.Category, msg))
	}
}

// outcomeOf returns the error kind, or OutcomeError for errors that did
// not come from the record service.
func outcomeOf(err error) string {
	if kind, ok := ledger.KindOf(err); ok {
		return string(kind)
	}
	return OutcomeError
}

// checkExpect compares a step's outcome with its expectation. A step
// without an expectation must not fail.
func checkExpect(event TraceEvent, expect *Expect, err error) []string {
	var errs []string

	wantError := ""
	if expect != nil {
		wantError = expect.Error
	}
	switch {
	case wantError == "" && err != nil:
		errs = append(errs, fmt.Sprintf("unexpected error: %v", err))
		return errs
	case wantError != "" && err == nil:
		errs = append(errs, fmt.Sprintf("expected error %s, got %s", wantError, event.Outcome))
		return errs
	case wantError != "":
		if event.Outcome != wantError {
			errs = append(errs, fmt.Sprintf("expected error %s, got %s (%v)", wantError, event.Outcome, err))
		}
		return errs
	}

	if expect == nil {
		return nil
	}
	if expect.Found != nil {
		found := event.Outcome == OutcomeOK
		if found != *expect.Found {
			errs = append(errs, fmt.Sprintf("expected found=%t, got %t", *expect.Found, found))
		}
	}
	if expect.Balance != nil {
		if event.Record == nil {
			errs = append(errs, fmt.Sprintf("expected balance %d, got no record", *expect.Balance))
		} else if event.Record.Balance != *expect.Balance {
			errs = append(errs, fmt.Sprintf("expected balance %d, got %d", *expect.Balance, event.Record.Balance))
		}
	}
	return errs
}
