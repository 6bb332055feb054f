package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdoElHodaky/algotrade/pkg/identifiers"
	"github.com/abdoElHodaky/algotrade/pkg/price"
)

func newTestOrder(t *testing.T, qty float64) *Order {
	t.Helper()
	instr := identifiers.NewInstrumentId("BTCUSD", "BINANCE")
	q, err := price.QuantityFromFloat(qty, price.QuantityPrecision)
	require.NoError(t, err)
	return NewOrder("strat-1", instr, Buy, Limit, q, GTC)
}

func TestOrderStartsInitializedWithNoFillAverage(t *testing.T) {
	o := newTestOrder(t, 10)
	assert.Equal(t, Initialized, o.Status)
	assert.False(t, o.HasAvgFillPrice)
	assert.True(t, o.FilledQuantity.IsZero())
}

func TestOrderTransitionRejectsInvalidEdge(t *testing.T) {
	o := newTestOrder(t, 10)
	err := o.transition(Filled)
	require.Error(t, err)
}

func TestOrderTransitionRejectsMutationAfterTerminal(t *testing.T) {
	o := newTestOrder(t, 10)
	require.NoError(t, o.transition(Submitted))
	require.NoError(t, o.transition(Cancelled))
	err := o.transition(PartiallyFilled)
	require.Error(t, err)
}

func TestApplyFillSetsAverageOnFirstFill(t *testing.T) {
	o := newTestOrder(t, 10)
	require.NoError(t, o.transition(Submitted))

	p, err := price.PriceFromFloat(100, price.PricePrecision)
	require.NoError(t, err)
	q, err := price.QuantityFromFloat(4, price.QuantityPrecision)
	require.NoError(t, err)

	require.NoError(t, o.applyFill(Fill{Price: p, Quantity: q}))
	assert.True(t, o.HasAvgFillPrice)
	assert.InDelta(t, 100, o.AvgFillPrice.AsFloat64(), 1e-6)
	assert.Equal(t, PartiallyFilled, o.Status)
}

func TestApplyFillClosesOrderAtFullQuantity(t *testing.T) {
	o := newTestOrder(t, 10)
	require.NoError(t, o.transition(Submitted))

	p, _ := price.PriceFromFloat(100, price.PricePrecision)
	q, _ := price.QuantityFromFloat(10, price.QuantityPrecision)
	require.NoError(t, o.applyFill(Fill{Price: p, Quantity: q}))

	assert.Equal(t, Filled, o.Status)
	assert.True(t, o.IsComplete())
}

func TestStatusIsActiveMatchesActiveSetMembership(t *testing.T) {
	assert.True(t, Submitted.IsActive())
	assert.True(t, Accepted.IsActive())
	assert.True(t, PartiallyFilled.IsActive())
	assert.False(t, Filled.IsActive())
	assert.False(t, Initialized.IsActive())
}
