package printing

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/carlosbmello/echef-caixa-web/internal/backend"
	"github.com/carlosbmello/echef-caixa-web/internal/checkout"
	"github.com/carlosbmello/echef-caixa-web/internal/common"
	"github.com/carlosbmello/echef-caixa-web/internal/money"
	"github.com/carlosbmello/echef-caixa-web/internal/tabs"
)

// Backend is the slice of the POS client the print service depends on.
type Backend interface {
	SubmitConferenceSlip(ctx context.Context, slip backend.ConferenceSlip) error
	ListFailedPrintJobs(ctx context.Context, pointID string) ([]backend.PrintJob, error)
	RetryPrintJob(ctx context.Context, jobID int64) error
}

// Checkout supplies the active checkout snapshot for printing.
type Checkout interface {
	Current(ctx context.Context) (*checkout.Snapshot, error)
}

// Service prints conference slips for the active checkout and requeues
// failed print jobs.
type Service struct {
	Backend  Backend
	Checkout Checkout
	PointID  string
	Logger   zerolog.Logger
}

// PrintConference submits a conference slip for the active checkout. Unlike
// the on-screen view, the printed slip must be complete: if any tab's items
// could not be fetched the print is refused instead of going out short.
func (s *Service) PrintConference(ctx context.Context) error {
	snap, err := s.Checkout.Current(ctx)
	if err != nil {
		return err
	}
	if snap == nil {
		return common.InvalidStateError("no active checkout to print")
	}
	if err := tabs.PartialFetchFailure(&tabs.Aggregation{FailedTabs: snap.FailedTabs}); err != nil {
		return err
	}
	slip := backend.ConferenceSlip{
		PointID:          s.PointID,
		Items:            snap.Items,
		ConsumptionTotal: money.Amount(snap.Totals.Consumption),
		ServiceCharge:    money.Amount(snap.Totals.ServiceCharge),
		ServiceEnabled:   snap.Options.ServiceChargeEnabled,
		Surcharge:        money.Amount(snap.Totals.Surcharge),
		Discount:         money.Amount(snap.Totals.Discount),
		TotalDue:         money.Amount(snap.Totals.TotalDue),
		TotalPaid:        money.Amount(snap.Totals.TotalPaid),
		BalanceDue:       money.Amount(snap.Totals.BalanceDue),
		SplitCount:       snap.Options.SplitCount,
	}
	for _, tab := range snap.Tabs {
		slip.TabIDs = append(slip.TabIDs, tab.ID)
	}
	if err := s.Backend.SubmitConferenceSlip(ctx, slip); err != nil {
		return err
	}
	s.Logger.Info().Str("point", s.PointID).Int("tabs", len(slip.TabIDs)).Msg("conference slip queued")
	return nil
}

// RetryFailed requeues every failed print job for this point and reports how
// many were requeued.
func (s *Service) RetryFailed(ctx context.Context) (int, error) {
	jobs, err := s.Backend.ListFailedPrintJobs(ctx, s.PointID)
	if err != nil {
		return 0, err
	}
	retried := 0
	for _, job := range jobs {
		if err := s.Backend.RetryPrintJob(ctx, job.ID); err != nil {
			s.observeRetry(false)
			s.Logger.Warn().Err(err).Int64("job_id", job.ID).Msg("print job retry failed")
			continue
		}
		s.observeRetry(true)
		retried++
	}
	return retried, nil
}
