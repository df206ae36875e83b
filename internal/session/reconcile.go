package session

import "github.com/carlosbmello/echef-caixa-web/internal/money"

// Reconciliation compares the drawer count against the expected amount.
// Discrepancy is counted minus expected: negative means cash is missing,
// positive means the drawer holds more than the ledger accounts for.
type Reconciliation struct {
	Expected    money.Money `json:"expected"`
	Counted     money.Money `json:"counted"`
	Discrepancy money.Money `json:"discrepancy"`
	Balanced    bool        `json:"balanced"`
}

// Reconcile derives the reconciliation for a drawer count.
func Reconcile(expected, counted money.Money) Reconciliation {
	discrepancy := counted - expected
	return Reconciliation{
		Expected:    expected,
		Counted:     counted,
		Discrepancy: discrepancy,
		Balanced:    discrepancy >= -money.Epsilon && discrepancy <= money.Epsilon,
	}
}
