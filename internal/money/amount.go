package money

import (
	"encoding/json"
	"fmt"
)

// Amount is a Money value that unmarshals from either a JSON number or a
// decimal string. The backend serialises DECIMAL columns inconsistently
// across endpoints, so both shapes must be accepted; unknown shapes are
// rejected rather than passed through.
type Amount int64

// Cents returns the value in minor units.
func (a Amount) Cents() Money {
	return Money(a)
}

// UnmarshalJSON accepts "283.00", 283 and 283.0.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		cents, err := ParseDecimal(v)
		if err != nil {
			return err
		}
		*a = Amount(cents)
		return nil
	case float64:
		*a = Amount(FromFloat(v))
		return nil
	case nil:
		*a = 0
		return nil
	default:
		return fmt.Errorf("money: unsupported amount shape %T", raw)
	}
}

// MarshalJSON emits the value as a plain JSON number in major units with two
// decimal places, the shape the backend expects on write.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(FormatDecimal(Money(a))), nil
}
