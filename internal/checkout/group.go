package checkout

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carlosbmello/echef-caixa-web/internal/backend"
	"github.com/carlosbmello/echef-caixa-web/internal/common"
	"github.com/carlosbmello/echef-caixa-web/internal/money"
)

// Options are the operator-adjustable knobs of a checkout group.
type Options struct {
	ServiceChargeEnabled bool         `json:"serviceChargeEnabled"`
	Surcharge            money.Money  `json:"surcharge"`
	Discount             money.Money  `json:"discount"`
	SplitCount           int          `json:"splitCount"`
}

// PaymentEntry is one staged tender entry. Entries exist only client-side
// until finalize submits the whole sequence atomically.
type PaymentEntry struct {
	ID               string      `json:"id"`
	TenderMethodID   int64       `json:"tenderMethodId"`
	TenderMethodName string      `json:"tenderMethodName"`
	Amount           money.Money `json:"amount"`
	Note             *string     `json:"note,omitempty"`
	RecordedAt       time.Time   `json:"recordedAt"`
}

// Totals is the derived financial state of a checkout group.
type Totals struct {
	Consumption   money.Money `json:"consumption"`
	ServiceCharge money.Money `json:"serviceCharge"`
	Surcharge     money.Money `json:"surcharge"`
	Discount      money.Money `json:"discount"`
	TotalDue      money.Money `json:"totalDue"`
	PerPerson     money.Money `json:"perPerson"`
	TotalPaid     money.Money `json:"totalPaid"`
	BalanceDue    money.Money `json:"balanceDue"`
	Settled       bool        `json:"settled"`
}

// Group is the transient aggregate of the tabs being closed out together.
// All access goes through the owning Service's mutex.
type Group struct {
	ID        string
	CreatedAt time.Time

	tabs     []backend.Tab
	opts     Options
	payments []PaymentEntry

	// generation increments on every selection mutation so an in-flight
	// item aggregation can detect it went stale.
	generation uint64
	finalizing bool
	timer      *time.Timer
}

func newGroup(now time.Time) *Group {
	return &Group{
		ID:        uuid.NewString(),
		CreatedAt: now,
		opts:      Options{ServiceChargeEnabled: true, SplitCount: 1},
	}
}

func (g *Group) hasTab(id int64) bool {
	for _, tab := range g.tabs {
		if tab.ID == id {
			return true
		}
	}
	return false
}

func (g *Group) addTab(tab backend.Tab) error {
	if g.hasTab(tab.ID) {
		return common.ConflictError(fmt.Sprintf("tab %s is already in this checkout", tab.Number))
	}
	g.tabs = append(g.tabs, tab)
	g.generation++
	return nil
}

func (g *Group) removeTab(tabID int64) error {
	for i, tab := range g.tabs {
		if tab.ID == tabID {
			g.tabs = append(g.tabs[:i], g.tabs[i+1:]...)
			g.generation++
			return nil
		}
	}
	return common.NotFoundError("tab is not in this checkout")
}

func (g *Group) consumptionTotal() money.Money {
	var total money.Money
	for _, tab := range g.tabs {
		total += money.Money(tab.ConsumptionTotal)
	}
	return total
}

func (g *Group) totalPaid() money.Money {
	var paid money.Money
	for _, entry := range g.payments {
		paid += entry.Amount
	}
	return paid
}

func (g *Group) totals() Totals {
	consumption := g.consumptionTotal()
	serviceCharge := ServiceCharge(consumption, g.opts.ServiceChargeEnabled)
	due := TotalDue(consumption, serviceCharge, g.opts.Surcharge, g.opts.Discount)
	paid := g.totalPaid()
	balance := due - paid
	if balance < 0 {
		balance = 0
	}
	return Totals{
		Consumption:   consumption,
		ServiceCharge: serviceCharge,
		Surcharge:     g.opts.Surcharge,
		Discount:      g.opts.Discount,
		TotalDue:      due,
		PerPerson:     PerPerson(due, g.opts.SplitCount),
		TotalPaid:     paid,
		BalanceDue:    balance,
		Settled:       due >= 0 && balance <= money.Epsilon,
	}
}

// appendPayment validates and stages one tender entry. The group's ledger is
// append-only: entries are never mutated or reordered after this.
func (g *Group) appendPayment(entry PaymentEntry) (Totals, error) {
	totals := g.totals()
	if totals.TotalDue < 0 {
		return totals, common.ValidationError("total due is negative; adjust the discount before taking payments")
	}
	if entry.Amount > totals.BalanceDue+money.Epsilon {
		return totals, common.OverpaymentError(
			"payment exceeds the balance due",
			map[string]any{"balanceDue": totals.BalanceDue, "amount": entry.Amount},
		)
	}
	g.payments = append(g.payments, entry)
	return g.totals(), nil
}

func (g *Group) finalizeInput() backend.FinalizeInput {
	totals := g.totals()
	input := backend.FinalizeInput{
		TabIDs:        make([]int64, 0, len(g.tabs)),
		ServiceCharge: money.Amount(totals.ServiceCharge),
		Surcharge:     money.Amount(totals.Surcharge),
		Discount:      money.Amount(totals.Discount),
		Payments:      make([]backend.FinalizePayment, 0, len(g.payments)),
	}
	for _, tab := range g.tabs {
		input.TabIDs = append(input.TabIDs, tab.ID)
	}
	for _, entry := range g.payments {
		input.Payments = append(input.Payments, backend.FinalizePayment{
			TenderMethodID:   entry.TenderMethodID,
			TenderMethodName: entry.TenderMethodName,
			Amount:           money.Amount(entry.Amount),
		})
	}
	return input
}
