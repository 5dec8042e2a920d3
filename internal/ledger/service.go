package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/pdaledger/internal/derive"
	"github.com/roach88/pdaledger/internal/ir"
)

const tracerName = "github.com/roach88/pdaledger/internal/ledger"

// Service finds, creates and updates ledger records.
//
// Thread-safety: Service holds no mutable state after New and is safe for
// concurrent use. Concurrent operations on the same (owner, category) are
// ordered by the ledger, not by the service.
type Service struct {
	store          Store
	codec          RecordCodec
	deriver        derive.Deriver
	confirmTimeout time.Duration
	logger         *slog.Logger
	tracer         trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithConfirmTimeout bounds each confirmation wait. Zero (the default)
// leaves the caller's context as the only bound.
func WithConfirmTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.confirmTimeout = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTracer sets the tracer used for operation spans. Defaults to the
// global provider's tracer.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// New creates a Service over store for records of program. Addresses are
// derived with the store's validity predicate.
func New(store Store, codec RecordCodec, program ir.PublicKey, opts ...Option) *Service {
	s := &Service{
		store:   store,
		codec:   codec,
		deriver: derive.Deriver{Program: program, Valid: store.IsValidDerivedAddress},
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Address returns the derived address of owner's record for category.
func (s *Service) Address(owner ir.PublicKey, category string) (ir.PublicKey, error) {
	addr, _, err := s.deriver.LedgerAddress(owner, category)
	if err != nil {
		kind := KindDerivationExhausted
		if errors.Is(err, derive.ErrMaxSeedLength) {
			kind = KindInvalidInput
		}
		return ir.PublicKey{}, &Error{Kind: kind, Phase: PhaseDerive, Category: category, Err: err}
	}
	return addr, nil
}

// EnsureExists returns the signer's record for category, creating it with a
// zero balance if it does not exist. Never changes an existing record.
func (s *Service) EnsureExists(ctx context.Context, signer ir.Signer, category string) (ir.LedgerRecord, error) {
	owner := signer.PublicKey()
	ctx, span := s.startSpan(ctx, "ledger.EnsureExists", owner, category)
	defer span.End()

	rec, err := s.ensureExists(ctx, owner, signer, category)
	return rec, endSpan(span, err)
}

// EnsureAndSet sets the signer's record for category to balance, creating
// the record first if needed. Returns the record as read back after the
// update finalized.
func (s *Service) EnsureAndSet(ctx context.Context, signer ir.Signer, category string, balance uint64) (ir.LedgerRecord, error) {
	return s.SetFor(ctx, signer.PublicKey(), signer, category, balance)
}

// SetFor sets owner's record for category to balance with signer's
// authority. The ledger rejects the update with KindUnauthorized unless
// signer is owner; the stored balance is then unchanged.
func (s *Service) SetFor(ctx context.Context, owner ir.PublicKey, signer ir.Signer, category string, balance uint64) (ir.LedgerRecord, error) {
	ctx, span := s.startSpan(ctx, "ledger.EnsureAndSet", owner, category)
	defer span.End()
	span.SetAttributes(attribute.String("ledger.balance", fmt.Sprint(balance)))

	rec, err := s.ensureExists(ctx, owner, signer, category)
	if err != nil {
		return ir.LedgerRecord{}, endSpan(span, err)
	}
	rec, err = s.update(ctx, rec.Address, signer, category, balance)
	return rec, endSpan(span, err)
}

// Lookup reads owner's record for category without creating it.
// found is false if the record does not exist.
func (s *Service) Lookup(ctx context.Context, owner ir.PublicKey, category string) (rec ir.LedgerRecord, found bool, err error) {
	ctx, span := s.startSpan(ctx, "ledger.Lookup", owner, category)
	defer span.End()

	addr, err := s.Address(owner, category)
	if err != nil {
		return ir.LedgerRecord{}, false, endSpan(span, err)
	}
	rec, found, err = s.read(ctx, PhaseRead, addr, category)
	span.SetAttributes(attribute.Bool("ledger.found", found))
	return rec, found, endSpan(span, err)
}

// ensureExists runs derive -> read -> [create -> confirm_create -> reread].
func (s *Service) ensureExists(ctx context.Context, owner ir.PublicKey, signer ir.Signer, category string) (ir.LedgerRecord, error) {
	addr, err := s.Address(owner, category)
	if err != nil {
		return ir.LedgerRecord{}, err
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("ledger.address", addr.String()))

	rec, found, err := s.read(ctx, PhaseRead, addr, category)
	if err != nil {
		return ir.LedgerRecord{}, err
	}
	if found {
		return rec, nil
	}

	s.phase(ctx, PhaseCreate, addr, category)
	sig, err := s.store.SubmitCreate(ctx, addr, category, signer)
	if err != nil {
		return ir.LedgerRecord{}, s.fail(PhaseCreate, addr, category, err)
	}

	s.phase(ctx, PhaseConfirmCreate, addr, category, attribute.String("ledger.signature", sig.String()))
	if err := s.await(ctx, sig); err != nil {
		if kind := classify(err); kind != KindConflict {
			return ir.LedgerRecord{}, &Error{Kind: kind, Phase: PhaseConfirmCreate, Address: addr, Category: category, Err: err}
		}
		s.logger.Info("create lost race, using existing record",
			"address", addr,
			"category", category,
			"signature", sig,
			"kind", KindConflict,
		)
	}

	rec, found, err = s.read(ctx, PhaseReread, addr, category)
	if err != nil {
		return ir.LedgerRecord{}, err
	}
	if !found {
		return ir.LedgerRecord{}, &Error{
			Kind:     KindTransport,
			Phase:    PhaseReread,
			Address:  addr,
			Category: category,
			Err:      fmt.Errorf("record missing after create finalized: %w", ir.ErrAccountNotFound),
		}
	}

	s.logger.Debug("record ensured", "address", addr, "category", category, "signature", sig)
	return rec, nil
}

// update runs update -> confirm_update -> read_back.
func (s *Service) update(ctx context.Context, addr ir.PublicKey, signer ir.Signer, category string, balance uint64) (ir.LedgerRecord, error) {
	s.phase(ctx, PhaseUpdate, addr, category)
	sig, err := s.store.SubmitUpdate(ctx, addr, balance, signer)
	if err != nil {
		return ir.LedgerRecord{}, s.fail(PhaseUpdate, addr, category, err)
	}

	s.phase(ctx, PhaseConfirmUpdate, addr, category, attribute.String("ledger.signature", sig.String()))
	if err := s.await(ctx, sig); err != nil {
		return ir.LedgerRecord{}, s.fail(PhaseConfirmUpdate, addr, category, err)
	}

	rec, found, err := s.read(ctx, PhaseReadBack, addr, category)
	if err != nil {
		return ir.LedgerRecord{}, err
	}
	if !found {
		return ir.LedgerRecord{}, &Error{
			Kind:     KindTransport,
			Phase:    PhaseReadBack,
			Address:  addr,
			Category: category,
			Err:      fmt.Errorf("record missing after update finalized: %w", ir.ErrAccountNotFound),
		}
	}

	s.logger.Debug("record updated",
		"address", addr,
		"category", category,
		"balance", rec.Balance,
		"signature", sig,
	)
	return rec, nil
}

// read fetches and decodes the record at addr. found is false only when
// the store reports ir.ErrAccountNotFound.
func (s *Service) read(ctx context.Context, phase Phase, addr ir.PublicKey, category string) (ir.LedgerRecord, bool, error) {
	s.phase(ctx, phase, addr, category)

	data, err := s.store.Fetch(ctx, addr)
	if errors.Is(err, ir.ErrAccountNotFound) {
		return ir.LedgerRecord{}, false, nil
	}
	if err != nil {
		kind := KindTransport
		if isContextErr(err) {
			kind = KindTimeout
		}
		return ir.LedgerRecord{}, false, &Error{Kind: kind, Phase: phase, Address: addr, Category: category, Err: err}
	}

	rec, err := s.codec.Decode(data)
	if err != nil {
		return ir.LedgerRecord{}, false, &Error{Kind: KindDecodeFailure, Phase: phase, Address: addr, Category: category, Err: err}
	}
	if rec.Category != category {
		return ir.LedgerRecord{}, false, &Error{
			Kind:     KindDecodeFailure,
			Phase:    phase,
			Address:  addr,
			Category: category,
			Err:      fmt.Errorf("%w: stored %q", ErrCategoryMismatch, rec.Category),
		}
	}
	rec.Address = addr
	return rec, true, nil
}

// await waits for sig, bounded by the confirm timeout if one is set.
func (s *Service) await(ctx context.Context, sig ir.Signature) error {
	if s.confirmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.confirmTimeout)
		defer cancel()
	}
	return s.store.AwaitFinalized(ctx, sig)
}

func (s *Service) fail(phase Phase, addr ir.PublicKey, category string, err error) *Error {
	return &Error{Kind: classify(err), Phase: phase, Address: addr, Category: category, Err: err}
}

// classify maps a store error onto a Kind.
func classify(err error) Kind {
	if isContextErr(err) {
		return KindTimeout
	}
	code, ok := ir.FailureCodeOf(err)
	if !ok {
		return KindTransport
	}
	switch code {
	case ir.FailureAccountInUse:
		return KindConflict
	case ir.FailureConstraintSeeds, ir.FailureSignature:
		return KindUnauthorized
	default:
		return KindRejected
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func (s *Service) phase(ctx context.Context, phase Phase, addr ir.PublicKey, category string, attrs ...attribute.KeyValue) {
	s.logger.Debug("ledger phase", "phase", phase, "address", addr, "category", category)
	attrs = append(attrs, attribute.String("ledger.phase", string(phase)))
	trace.SpanFromContext(ctx).AddEvent("phase", trace.WithAttributes(attrs...))
}

func (s *Service) startSpan(ctx context.Context, name string, owner ir.PublicKey, category string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("ledger.owner", owner.String()),
		attribute.String("ledger.category", category),
	))
}

// endSpan records err on span and returns it unchanged.
func endSpan(span trace.Span, err error) error {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return nil
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if kind, ok := KindOf(err); ok {
		span.SetAttributes(attribute.String("ledger.error_kind", string(kind)))
	}
	return err
}
