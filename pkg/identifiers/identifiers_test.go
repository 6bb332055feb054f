package identifiers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInstrumentIdNormalizes(t *testing.T) {
	id, err := ParseInstrumentId("btcusd.binance")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSD.BINANCE", id.String())
	assert.Equal(t, "BTCUSD", id.Symbol())
	assert.Equal(t, "BINANCE", id.Venue())
}

func TestParseInstrumentIdRejectsMissingDot(t *testing.T) {
	_, err := ParseInstrumentId("BTCUSD")
	assert.Error(t, err)
}

func TestParseInstrumentIdRejectsMultipleDots(t *testing.T) {
	_, err := ParseInstrumentId("BTC.USD.BINANCE")
	assert.Error(t, err)
}

func TestParseInstrumentIdRejectsEmptyComponent(t *testing.T) {
	_, err := ParseInstrumentId(".BINANCE")
	assert.Error(t, err)

	_, err = ParseInstrumentId("BTCUSD.")
	assert.Error(t, err)
}

func TestInstrumentIdEquality(t *testing.T) {
	a := NewInstrumentId("ethusd", "Binance")
	b, err := ParseInstrumentId("ETHUSD.BINANCE")
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
}

func TestNextOrderIdMonotonic(t *testing.T) {
	first := NextOrderId()
	second := NextOrderId()
	assert.Greater(t, uint64(second), uint64(first))
}
