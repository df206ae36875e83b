package session

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/carlosbmello/echef-caixa-web/internal/backend"
	"github.com/carlosbmello/echef-caixa-web/internal/common"
	"github.com/carlosbmello/echef-caixa-web/internal/lock"
	"github.com/carlosbmello/echef-caixa-web/internal/money"
	"github.com/carlosbmello/echef-caixa-web/internal/obs"
)

// Backend is the slice of the POS client the session service depends on.
type Backend interface {
	GetOpenSession(ctx context.Context) (*backend.Session, error)
	OpenSession(ctx context.Context, openingFloat money.Money) (*backend.Session, error)
	CloseSession(ctx context.Context, sessionID int64, counted money.Money, note *string) (*backend.Session, error)
	CreateMovement(ctx context.Context, kind backend.MovementKind, description string, amount money.Money) (int64, error)
	ListMovements(ctx context.Context, sessionID int64) ([]backend.Movement, error)
	ListSessionPayments(ctx context.Context, sessionID int64) ([]backend.PaymentRecord, error)
}

// Service manages the register's cash session lifecycle. Open and close are
// serialized through a redis lock so two operator windows cannot race.
type Service struct {
	Backend    Backend
	Locks      lock.Locker
	RegisterID string
	LockTTL    time.Duration
	Logger     zerolog.Logger
}

// Open opens a cash session with the given opening float. Exactly one open
// session may exist per register; a second open attempt is a conflict.
func (s *Service) Open(ctx context.Context, openingFloat money.Money) (*backend.Session, error) {
	if openingFloat < 0 {
		return nil, common.ValidationError("opening float must not be negative")
	}
	var opened *backend.Session
	err := s.Locks.TryLock(ctx, lock.SessionKey(s.RegisterID), s.lockTTL(), func(ctx context.Context) error {
		current, err := s.Backend.GetOpenSession(ctx)
		if err != nil {
			return err
		}
		if current != nil {
			return common.ConflictError("a cash session is already open for this register")
		}
		opened, err = s.Backend.OpenSession(ctx, openingFloat)
		return err
	})
	s.observeSession("open", err)
	if err != nil {
		if errors.Is(err, lock.ErrLockHeld) {
			return nil, common.ConflictError("another session operation is in progress")
		}
		return nil, err
	}
	s.Logger.Info().Int64("session_id", opened.ID).Msg("cash session opened")
	return opened, nil
}

// Current returns the open session, or nil when the register is closed.
func (s *Service) Current(ctx context.Context) (*backend.Session, error) {
	return s.Backend.GetOpenSession(ctx)
}

// RecordMovement records an ad-hoc cash movement against the open session.
// Movements require an open session, a positive amount and a description.
func (s *Service) RecordMovement(ctx context.Context, kind backend.MovementKind, description string, amount money.Money) (int64, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return 0, common.ValidationError("movement description is required")
	}
	if amount <= 0 {
		return 0, common.ValidationError("movement amount must be positive")
	}
	current, err := s.Backend.GetOpenSession(ctx)
	if err != nil {
		return 0, err
	}
	if current == nil {
		return 0, common.InvalidStateError("no open cash session")
	}
	id, err := s.Backend.CreateMovement(ctx, kind, description, amount)
	s.observeMovement(kind, err)
	if err != nil {
		return 0, err
	}
	s.Logger.Info().
		Int64("movement_id", id).
		Str("kind", string(kind)).
		Int64("amount", int64(amount)).
		Msg("cash movement recorded")
	return id, nil
}

// Movements lists every movement recorded against the open session.
func (s *Service) Movements(ctx context.Context) ([]backend.Movement, error) {
	current, err := s.requireOpen(ctx)
	if err != nil {
		return nil, err
	}
	return s.Backend.ListMovements(ctx, current.ID)
}

// Payments lists every payment committed during the open session.
func (s *Service) Payments(ctx context.Context) ([]backend.PaymentRecord, error) {
	current, err := s.requireOpen(ctx)
	if err != nil {
		return nil, err
	}
	return s.Backend.ListSessionPayments(ctx, current.ID)
}

// CloseResult is the outcome of closing a session: the closed record plus the
// drawer reconciliation derived from it. Reconciliation is nil when the
// backend omitted the expected amount; the engine never substitutes one, a
// missing figure must not read as a balanced drawer.
type CloseResult struct {
	Session        *backend.Session
	Reconciliation *Reconciliation
}

// Close closes the open session with the counted drawer amount. The backend
// computes the expected amount; the reconciliation reports the discrepancy.
func (s *Service) Close(ctx context.Context, counted money.Money, note *string) (*CloseResult, error) {
	if counted < 0 {
		return nil, common.ValidationError("counted amount must not be negative")
	}
	var result *CloseResult
	err := s.Locks.TryLock(ctx, lock.SessionKey(s.RegisterID), s.lockTTL(), func(ctx context.Context) error {
		current, err := s.Backend.GetOpenSession(ctx)
		if err != nil {
			return err
		}
		if current == nil {
			return common.InvalidStateError("no open cash session")
		}
		closed, err := s.Backend.CloseSession(ctx, current.ID, counted, note)
		if err != nil {
			return err
		}
		result = &CloseResult{Session: closed}
		if closed.ExpectedAmount != nil {
			rec := Reconcile(money.Money(*closed.ExpectedAmount), counted)
			result.Reconciliation = &rec
		}
		return nil
	})
	s.observeSession("close", err)
	if err != nil {
		if errors.Is(err, lock.ErrLockHeld) {
			return nil, common.ConflictError("another session operation is in progress")
		}
		return nil, err
	}
	if result.Reconciliation == nil {
		s.Logger.Warn().
			Int64("session_id", result.Session.ID).
			Msg("cash session closed without an expected amount, reconciliation unavailable")
		return result, nil
	}
	if obs.ReconcileDiscrepancy != nil {
		obs.ReconcileDiscrepancy.Observe(math.Abs(float64(result.Reconciliation.Discrepancy)))
	}
	s.Logger.Info().
		Int64("session_id", result.Session.ID).
		Int64("discrepancy", int64(result.Reconciliation.Discrepancy)).
		Bool("balanced", result.Reconciliation.Balanced).
		Msg("cash session closed")
	return result, nil
}

func (s *Service) requireOpen(ctx context.Context) (*backend.Session, error) {
	current, err := s.Backend.GetOpenSession(ctx)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, common.InvalidStateError("no open cash session")
	}
	return current, nil
}

func (s *Service) lockTTL() time.Duration {
	if s.LockTTL > 0 {
		return s.LockTTL
	}
	return 10 * time.Second
}

func (s *Service) observeSession(op string, err error) {
	if obs.SessionTotal == nil {
		return
	}
	obs.SessionTotal.WithLabelValues(op, resultLabel(err)).Inc()
}

func (s *Service) observeMovement(kind backend.MovementKind, err error) {
	if obs.MovementTotal == nil {
		return
	}
	obs.MovementTotal.WithLabelValues(string(kind), resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
