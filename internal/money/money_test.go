package money_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/carlosbmello/echef-caixa-web/internal/money"
)

func TestFromFloatRoundsHalfAwayFromZero(t *testing.T) {
	require.Equal(t, money.Money(28330), money.FromFloat(283.30))
	require.Equal(t, money.Money(1), money.FromFloat(0.005))
	require.Equal(t, money.Money(-1), money.FromFloat(-0.005))
	require.Equal(t, money.Money(31130), money.FromFloat(311.30))
}

func TestParseDecimal(t *testing.T) {
	cents, err := money.ParseDecimal("100.00")
	require.NoError(t, err)
	require.Equal(t, money.Money(10000), cents)

	cents, err = money.ParseDecimal(" 95.00 ")
	require.NoError(t, err)
	require.Equal(t, money.Money(9500), cents)

	_, err = money.ParseDecimal("")
	require.Error(t, err)
	_, err = money.ParseDecimal("abc")
	require.Error(t, err)
}

func TestFormatDecimal(t *testing.T) {
	require.Equal(t, "311.30", money.FormatDecimal(31130))
	require.Equal(t, "0.05", money.FormatDecimal(5))
	require.Equal(t, "-5.00", money.FormatDecimal(-500))
}

func TestAmountUnmarshalBothShapes(t *testing.T) {
	var payload struct {
		FromString money.Amount `json:"fromString"`
		FromNumber money.Amount `json:"fromNumber"`
		Missing    money.Amount `json:"missing"`
	}
	raw := `{"fromString":"50.00","fromNumber":30,"missing":null}`
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	require.Equal(t, money.Money(5000), payload.FromString.Cents())
	require.Equal(t, money.Money(3000), payload.FromNumber.Cents())
	require.Equal(t, money.Money(0), payload.Missing.Cents())

	require.Error(t, json.Unmarshal([]byte(`{"fromString":true}`), &payload))
}

func TestAmountMarshalEmitsNumber(t *testing.T) {
	data, err := json.Marshal(money.Amount(28330))
	require.NoError(t, err)
	require.Equal(t, "283.30", string(data))
}
