package tabs

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/carlosbmello/echef-caixa-web/internal/backend"
	"github.com/carlosbmello/echef-caixa-web/internal/common"
	"github.com/carlosbmello/echef-caixa-web/internal/money"
)

// Backend is the slice of the POS client the tab service depends on.
type Backend interface {
	ResolveTab(ctx context.Context, identifier string) (*backend.Tab, error)
	ListOpenTabs(ctx context.Context) ([]backend.Tab, error)
	ListTabItems(ctx context.Context, tabID int64) ([]backend.LineItem, error)
	CancelLineItem(ctx context.Context, itemID int64, reason string) error
}

// Service resolves customer tabs and aggregates their consumption for
// checkout. Consumption totals come from the order subsystem and are never
// recomputed from line items here.
type Service struct {
	Backend Backend
	Logger  zerolog.Logger
}

// Resolve looks a tab up by number or barcode and verifies it can join a
// checkout: only open tabs are eligible.
func (s *Service) Resolve(ctx context.Context, identifier string) (*backend.Tab, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, common.ValidationError("tab identifier is required")
	}
	tab, err := s.Backend.ResolveTab(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if tab.Status != backend.TabOpen {
		return nil, common.InvalidStateError(fmt.Sprintf("tab %s is %s and cannot be checked out", tab.Number, tab.Status))
	}
	return tab, nil
}

// ListOpen returns every tab currently open on the floor.
func (s *Service) ListOpen(ctx context.Context) ([]backend.Tab, error) {
	return s.Backend.ListOpenTabs(ctx)
}

// CancelItem voids a single order line, recording the reason.
func (s *Service) CancelItem(ctx context.Context, itemID int64, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return common.ValidationError("cancellation reason is required")
	}
	if itemID <= 0 {
		return common.ValidationError("item id must be positive")
	}
	return s.Backend.CancelLineItem(ctx, itemID, reason)
}

// Aggregation is the combined consumption view of one or more tabs.
type Aggregation struct {
	Tabs             []backend.Tab      `json:"tabs"`
	Items            []backend.LineItem `json:"items"`
	ConsumptionTotal money.Money        `json:"consumptionTotal"`
	FailedTabs       []string           `json:"failedTabs,omitempty"`
}

// Complete reports whether line items were fetched for every tab.
func (a *Aggregation) Complete() bool {
	return len(a.FailedTabs) == 0
}

// Aggregate combines the given tabs into one consumption view. The total is
// the sum of the tabs' authoritative totals. Line items are fetched
// concurrently, one fetch per tab, and stitched back in selection order; a
// tab whose items cannot be fetched stays in the total but is reported in
// FailedTabs so callers can warn the operator.
func (s *Service) Aggregate(ctx context.Context, selected []backend.Tab) (*Aggregation, error) {
	agg := &Aggregation{Tabs: selected}
	fetched := make([][]backend.LineItem, len(selected))
	errs := make([]error, len(selected))

	var wg sync.WaitGroup
	for i, tab := range selected {
		agg.ConsumptionTotal += money.Money(tab.ConsumptionTotal)
		wg.Add(1)
		go func(i int, tabID int64) {
			defer wg.Done()
			fetched[i], errs[i] = s.Backend.ListTabItems(ctx, tabID)
		}(i, tab.ID)
	}
	wg.Wait()

	for i, tab := range selected {
		if errs[i] != nil {
			s.Logger.Warn().Err(errs[i]).Str("tab", tab.Number).Msg("tab items unavailable, continuing with totals")
			agg.FailedTabs = append(agg.FailedTabs, tab.Number)
			continue
		}
		for _, item := range fetched[i] {
			item.TabNumber = tab.Number
			agg.Items = append(agg.Items, item)
		}
	}
	return agg, nil
}

// PartialFetchFailure converts an incomplete aggregation into a typed error
// for operations that must not proceed on partial data.
func PartialFetchFailure(a *Aggregation) error {
	if a.Complete() {
		return nil
	}
	return common.PartialFetchError("line items unavailable for some tabs", a.FailedTabs)
}
