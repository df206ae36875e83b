package checkout

import "github.com/carlosbmello/echef-caixa-web/internal/money"

// ServiceChargeBps is the house service charge rate in basis points. The
// rate is fixed; operators can only toggle it on or off.
const ServiceChargeBps = 1000

// ServiceCharge returns the service charge for the given consumption total,
// rounding half up at the cent.
func ServiceCharge(consumption money.Money, enabled bool) money.Money {
	if !enabled || consumption <= 0 {
		return 0
	}
	return (consumption*ServiceChargeBps + 5000) / 10000
}

// TotalDue combines the checkout components. A negative result is possible
// when the discount exceeds the rest; callers surface that instead of
// clamping it away.
func TotalDue(consumption, serviceCharge, surcharge, discount money.Money) money.Money {
	return consumption + serviceCharge + surcharge - discount
}

// PerPerson splits the total across n people, rounding half up at the cent.
// A split below 1 is treated as 1.
func PerPerson(total money.Money, n int) money.Money {
	if n < 1 {
		n = 1
	}
	if total <= 0 {
		return 0
	}
	divisor := money.Money(n)
	q := total / divisor
	r := total % divisor
	if 2*r >= divisor {
		q++
	}
	return q
}
