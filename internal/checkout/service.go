package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/carlosbmello/echef-caixa-web/internal/backend"
	"github.com/carlosbmello/echef-caixa-web/internal/common"
	"github.com/carlosbmello/echef-caixa-web/internal/money"
	"github.com/carlosbmello/echef-caixa-web/internal/obs"
	"github.com/carlosbmello/echef-caixa-web/internal/tabs"
)

// Finalizer commits a settled checkout on the POS backend.
type Finalizer interface {
	FinalizeTransaction(ctx context.Context, in backend.FinalizeInput) (string, error)
}

// SessionGate reports the register's open session, if any.
type SessionGate interface {
	Current(ctx context.Context) (*backend.Session, error)
}

// TabResolver resolves and aggregates tabs for the active group.
type TabResolver interface {
	Resolve(ctx context.Context, identifier string) (*backend.Tab, error)
	Aggregate(ctx context.Context, selected []backend.Tab) (*tabs.Aggregation, error)
}

// TenderLookup resolves a tender method by id.
type TenderLookup interface {
	Method(ctx context.Context, id int64) (*backend.TenderMethod, error)
}

// Service owns the register's single active checkout group. All group state
// is guarded by one mutex; payment appends do no I/O under it, which makes
// each append-and-balance-check atomic with respect to concurrent appends.
type Service struct {
	Backend  Finalizer
	Sessions SessionGate
	Tabs     TabResolver
	Tenders  TenderLookup

	// FinalizeDelay is the pause between settlement and the automatic
	// finalize, giving the operator a moment to see the last entry land.
	FinalizeDelay time.Duration
	Logger        zerolog.Logger

	mu    sync.Mutex
	group *Group

	now func() time.Time
}

func (s *Service) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// Snapshot is the full presentation view of the active checkout group.
type Snapshot struct {
	GroupID    string             `json:"groupId"`
	Tabs       []backend.Tab      `json:"tabs"`
	Items      []backend.LineItem `json:"items"`
	FailedTabs []string           `json:"failedTabs,omitempty"`
	Options    Options            `json:"options"`
	Totals     Totals             `json:"totals"`
	Payments   []PaymentEntry     `json:"payments"`
	Finalizing bool               `json:"finalizing"`
}

// AddTab resolves a tab and adds it to the active group, creating the group
// on first use. Requires an open cash session.
func (s *Service) AddTab(ctx context.Context, identifier string) (*Snapshot, error) {
	if err := s.requireOpenSession(ctx); err != nil {
		return nil, err
	}
	tab, err := s.Tabs.Resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.group == nil {
		s.group = newGroup(s.clock())
	}
	g := s.group
	if err := g.addTab(*tab); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.cancelScheduledFinalizeLocked(g)
	s.mu.Unlock()

	return s.Current(ctx)
}

// RemoveTab takes a tab out of the active group. Any pending auto-finalize
// is cancelled because the totals it was scheduled against are gone.
func (s *Service) RemoveTab(ctx context.Context, tabID int64) (*Snapshot, error) {
	s.mu.Lock()
	g := s.group
	if g == nil {
		s.mu.Unlock()
		return nil, common.InvalidStateError("no active checkout")
	}
	if g.finalizing {
		s.mu.Unlock()
		return nil, common.ConflictError("finalize in progress")
	}
	if err := g.removeTab(tabID); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.cancelScheduledFinalizeLocked(g)
	s.mu.Unlock()

	return s.Current(ctx)
}

// SetOptions updates the group's service charge toggle, surcharge, discount
// and split count.
func (s *Service) SetOptions(ctx context.Context, opts Options) (*Snapshot, error) {
	if opts.Surcharge < 0 {
		return nil, common.ValidationError("surcharge must not be negative")
	}
	if opts.Discount < 0 {
		return nil, common.ValidationError("discount must not be negative")
	}
	if opts.SplitCount < 1 {
		opts.SplitCount = 1
	}

	s.mu.Lock()
	g := s.group
	if g == nil {
		s.mu.Unlock()
		return nil, common.InvalidStateError("no active checkout")
	}
	if g.finalizing {
		s.mu.Unlock()
		return nil, common.ConflictError("finalize in progress")
	}
	g.opts = opts
	s.cancelScheduledFinalizeLocked(g)
	s.mu.Unlock()

	return s.Current(ctx)
}

// Current returns the active group's snapshot, or nil when no checkout is in
// progress. Item aggregation happens outside the lock; if the selection
// mutates while the fetch is in flight the stale result is discarded and the
// fetch retried against the new selection.
func (s *Service) Current(ctx context.Context) (*Snapshot, error) {
	for attempt := 0; attempt < 3; attempt++ {
		s.mu.Lock()
		g := s.group
		if g == nil {
			s.mu.Unlock()
			return nil, nil
		}
		groupID := g.ID
		generation := g.generation
		selected := append([]backend.Tab(nil), g.tabs...)
		s.mu.Unlock()

		agg, err := s.Tabs.Aggregate(ctx, selected)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		g = s.group
		if g == nil || g.ID != groupID || g.generation != generation {
			s.mu.Unlock()
			continue
		}
		snap := &Snapshot{
			GroupID:    g.ID,
			Tabs:       selected,
			Items:      agg.Items,
			FailedTabs: agg.FailedTabs,
			Options:    g.opts,
			Totals:     g.totals(),
			Payments:   append([]PaymentEntry(nil), g.payments...),
			Finalizing: g.finalizing,
		}
		s.mu.Unlock()
		return snap, nil
	}
	return nil, common.ConflictError("checkout selection changed during fetch")
}

// AddPayment stages one tender entry against the active group. The append
// and the settlement check run atomically under the group mutex, so two
// concurrent payments can never both pass the overpayment guard.
func (s *Service) AddPayment(ctx context.Context, tenderMethodID int64, amount money.Money, note *string) (*PaymentEntry, Totals, error) {
	if tenderMethodID <= 0 {
		return nil, Totals{}, common.ValidationError("tender method is required")
	}
	if amount <= 0 {
		return nil, Totals{}, common.ValidationError("payment amount must be positive")
	}
	method, err := s.Tenders.Method(ctx, tenderMethodID)
	if err != nil {
		return nil, Totals{}, err
	}

	entry := PaymentEntry{
		ID:               uuid.NewString(),
		TenderMethodID:   method.ID,
		TenderMethodName: method.Name,
		Amount:           amount,
		Note:             note,
		RecordedAt:       s.clock(),
	}

	s.mu.Lock()
	g := s.group
	if g == nil {
		s.mu.Unlock()
		return nil, Totals{}, common.InvalidStateError("no active checkout")
	}
	if g.finalizing {
		s.mu.Unlock()
		return nil, Totals{}, common.ConflictError("finalize in progress")
	}
	totals, err := g.appendPayment(entry)
	if err != nil {
		s.mu.Unlock()
		s.observePayment(err)
		return nil, totals, err
	}
	if totals.Settled {
		s.scheduleFinalizeLocked(ctx, g)
	}
	s.mu.Unlock()

	s.observePayment(nil)
	s.Logger.Info().
		Str("payment_id", entry.ID).
		Str("tender", entry.TenderMethodName).
		Int64("amount", int64(amount)).
		Bool("settled", totals.Settled).
		Msg("payment staged")
	return &entry, totals, nil
}

// Finalize commits the active group now. The manual path and the scheduled
// path share one guard: whichever sets the finalizing flag first wins, the
// other becomes a no-op or a conflict.
func (s *Service) Finalize(ctx context.Context) (string, error) {
	return s.finalize(ctx, "", "manual")
}

func (s *Service) finalize(ctx context.Context, expectGroupID, trigger string) (string, error) {
	s.mu.Lock()
	g := s.group
	if g == nil || (expectGroupID != "" && g.ID != expectGroupID) {
		s.mu.Unlock()
		if trigger == "auto" {
			return "", nil
		}
		return "", common.InvalidStateError("no active checkout")
	}
	if g.finalizing {
		s.mu.Unlock()
		if trigger == "auto" {
			return "", nil
		}
		return "", common.ConflictError("finalize already in progress")
	}
	totals := g.totals()
	if totals.TotalDue < 0 {
		s.mu.Unlock()
		return "", common.ValidationError("total due is negative; adjust the discount before finalizing")
	}
	if totals.BalanceDue > money.Epsilon {
		s.mu.Unlock()
		return "", common.NotSettledError("checkout is not settled yet")
	}
	g.finalizing = true
	s.cancelScheduledFinalizeLocked(g)
	groupID := g.ID
	input := g.finalizeInput()
	s.mu.Unlock()

	transactionID, err := s.commitFinalize(ctx, groupID, input)
	s.observeFinalize(trigger, err)
	if err != nil {
		return "", err
	}
	s.Logger.Info().
		Str("group_id", groupID).
		Str("transaction_id", transactionID).
		Str("trigger", trigger).
		Msg("checkout finalized")
	return transactionID, nil
}

// commitFinalize performs the I/O half of finalize. On any failure the
// finalizing flag is cleared and the group left intact so the operator can
// retry without re-entering payments.
func (s *Service) commitFinalize(ctx context.Context, groupID string, input backend.FinalizeInput) (string, error) {
	ctx, span := otel.Tracer("checkout").Start(ctx, "checkout.finalize")
	defer span.End()
	span.SetAttributes(
		attribute.String("checkout.group_id", groupID),
		attribute.Int("checkout.tab_count", len(input.TabIDs)),
		attribute.Int("checkout.payment_count", len(input.Payments)),
	)

	release := func() {
		s.mu.Lock()
		if s.group != nil && s.group.ID == groupID {
			s.group.finalizing = false
		}
		s.mu.Unlock()
	}

	if err := s.requireOpenSession(ctx); err != nil {
		span.SetStatus(codes.Error, common.CodeOf(err))
		release()
		return "", err
	}
	transactionID, err := s.Backend.FinalizeTransaction(ctx, input)
	if err != nil {
		span.SetStatus(codes.Error, common.CodeOf(err))
		release()
		return "", err
	}

	s.mu.Lock()
	if s.group != nil && s.group.ID == groupID {
		s.group = nil
	}
	s.mu.Unlock()
	return transactionID, nil
}

// Cancel discards the active group. Staged payments exist only client-side,
// so cancelling before finalize needs no remote reversal.
func (s *Service) Cancel(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.group
	if g == nil {
		return nil
	}
	if g.finalizing {
		return common.ConflictError("finalize in progress")
	}
	s.cancelScheduledFinalizeLocked(g)
	s.group = nil
	return nil
}

func (s *Service) scheduleFinalizeLocked(ctx context.Context, g *Group) {
	if g.timer != nil {
		return
	}
	delay := s.FinalizeDelay
	if delay <= 0 {
		delay = 1500 * time.Millisecond
	}
	groupID := g.ID
	// The timer outlives the request that staged the settling payment, but
	// the backend forwards the operator's bearer token from context, so the
	// callback keeps the request's values while shedding its cancelation.
	detached := context.WithoutCancel(ctx)
	g.timer = time.AfterFunc(delay, func() {
		ctx, cancel := context.WithTimeout(detached, 30*time.Second)
		defer cancel()
		if _, err := s.finalize(ctx, groupID, "auto"); err != nil {
			s.Logger.Warn().Err(err).Str("group_id", groupID).Msg("scheduled finalize failed, group kept for manual retry")
		}
	})
}

func (s *Service) cancelScheduledFinalizeLocked(g *Group) {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

func (s *Service) requireOpenSession(ctx context.Context) error {
	current, err := s.Sessions.Current(ctx)
	if err != nil {
		return err
	}
	if current == nil {
		return common.InvalidStateError("no open cash session")
	}
	return nil
}

func (s *Service) observePayment(err error) {
	if obs.PaymentTotal == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	obs.PaymentTotal.WithLabelValues(result).Inc()
}

func (s *Service) observeFinalize(trigger string, err error) {
	if obs.FinalizeTotal == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	obs.FinalizeTotal.WithLabelValues(trigger, result).Inc()
}
