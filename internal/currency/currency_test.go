package currency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCurrency_Precedence(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty defaults to INR", "", DefaultCode},
		{"numeric only defaults to INR", "1,234.50", DefaultCode},
		{"corrupted placeholder mid GBP rate", "100?=105.25", "GBP"},
		{"corrupted placeholder EUR rate", "100?=90.00", "EUR"},
		{"corrupted placeholder USD rate", "100?=80.00", "USD"},
		{"corrupted placeholder default EUR", "100?=10.00", "EUR"},
		{"gbp mojibake family", "Gï¿½ 100.00", "GBP"},
		{"explicit three letter code", "EUR 500.00", "EUR"},
		{"dollar symbol", "$500.00", "USD"},
		{"currency name word", "500 us dollar", "USD"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, ExtractCurrency(c.in))
		})
	}
}

func TestExtractForeign_StructuredFull(t *testing.T) {
	f := ExtractForeign("800.00 GBP @ 105.25/GBP = 84200.00")
	require.Equal(t, "GBP", f.Currency)
	assert.True(t, f.ForeignAmount.Equal(parseDecimal("800.00")))
	assert.True(t, f.ExchangeRate.Equal(parseDecimal("105.25")))
	assert.True(t, f.BaseAmount.Equal(parseDecimal("84200.00")))
}

func TestExtractForeign_DerivesRateFromBase(t *testing.T) {
	f := ExtractForeign("100.00 USD = 8300.00")
	require.Equal(t, "USD", f.Currency)
	assert.True(t, f.ForeignAmount.Equal(parseDecimal("100.00")))
	assert.True(t, f.ExchangeRate.Equal(parseDecimal("83")))
}

func TestExtractForeign_AmountOnly(t *testing.T) {
	f := ExtractForeign("$250.00")
	assert.Equal(t, "USD", f.Currency)
	assert.True(t, f.ForeignAmount.Equal(parseDecimal("250.00")))
}

func TestExtractForeign_Fallback(t *testing.T) {
	f := ExtractForeign("plain 42")
	assert.Equal(t, DefaultCode, f.Currency)
	assert.True(t, f.ForeignAmount.Equal(parseDecimal("42")))
}
