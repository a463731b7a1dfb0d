package document

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rezonia/invoice-pricer/internal/model"
)

// Session owns the single editable document.
//
// Dispatch serializes actions and publishes each new state with one pointer
// swap, so readers never see a partially updated line set. Rate refreshes go
// through the same path and always apply to the current state.
type Session struct {
	mu    sync.Mutex
	state atomic.Pointer[State]

	log              zerolog.Logger
	lookup           ProductLookup
	onCurrencyChange func(model.CurrencyCode)
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithLogger sets the session logger
func WithLogger(log zerolog.Logger) SessionOption {
	return func(s *Session) {
		s.log = log
	}
}

// WithLookup sets the product lookup used by StageItem
func WithLookup(lookup ProductLookup) SessionOption {
	return func(s *Session) {
		s.lookup = lookup
	}
}

// WithCurrencyChangeHook registers fn to run after the document currency
// changes, outside the session lock. Used to request a rate refresh.
func WithCurrencyChangeHook(fn func(model.CurrencyCode)) SessionOption {
	return func(s *Session) {
		s.onCurrencyChange = fn
	}
}

// NewSession creates a session with an empty document in home currency
func NewSession(home model.CurrencyCode, rates model.RateResolver, opts ...SessionOption) *Session {
	s := &Session{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	initial := NewState(home, rates)
	s.state.Store(&initial)
	return s
}

// State returns the current snapshot
func (s *Session) State() State {
	return *s.state.Load()
}

// Document returns a copy of the current document
func (s *Session) Document() model.Document {
	return s.state.Load().Document.Clone()
}

// Dispatch reduces action against the current state and publishes the result
func (s *Session) Dispatch(action Action) (model.Document, error) {
	s.mu.Lock()
	current := s.state.Load()
	next, err := Reduce(*current, action)
	if err != nil {
		s.mu.Unlock()
		s.logRejected(action, err)
		return current.Document.Clone(), err
	}
	s.state.Store(&next)
	s.mu.Unlock()

	changed := next.Document.Currency != current.Document.Currency
	if changed && s.onCurrencyChange != nil {
		s.onCurrencyChange(next.Document.Currency)
	}

	if next.Document.RateIssue != nil && current.Document.RateIssue == nil {
		s.log.Warn().
			Str("currency", string(next.Document.Currency)).
			Msg("document currency has no exchange rate, submission blocked")
	}
	return next.Document.Clone(), nil
}

// OnRates applies a refreshed rate table. It has the signature of a
// currency.Catalog subscriber.
func (s *Session) OnRates(table *model.RateTable) {
	if _, err := s.Dispatch(RatesRefreshed{Table: table}); err != nil {
		s.log.Error().Err(err).Msg("failed to apply refreshed rates")
	}
}

// StageItem looks itemCode up and stages qty units of it
func (s *Session) StageItem(ctx context.Context, itemCode string, qty decimal.Decimal) (model.Document, error) {
	if s.lookup == nil {
		return s.Document(), errors.New("no product lookup configured")
	}
	product, err := s.lookup.Lookup(ctx, itemCode)
	if err != nil {
		return s.Document(), err
	}
	return s.Dispatch(StageLine{Line: LineFromProduct(product, qty)})
}

// Submit returns the payload of the current document
func (s *Session) Submit() (model.Submission, error) {
	sub, err := s.State().Submission()
	if err != nil {
		s.log.Warn().Err(err).Msg("submission rejected")
	}
	return sub, err
}

func (s *Session) logRejected(action Action, err error) {
	event := s.log.Warn()
	var validationErr *model.ValidationError
	switch {
	case errors.Is(err, model.ErrModeUnchanged):
		event = s.log.Debug()
	case errors.As(err, &validationErr):
		event = event.Str("line", validationErr.LineID).Str("field", validationErr.Field)
	}
	event.Err(err).Str("action", action.Name()).Msg("action rejected")
}
