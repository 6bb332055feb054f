package orderbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdoElHodaky/algotrade/pkg/identifiers"
	"github.com/abdoElHodaky/algotrade/pkg/price"
)

func mustPrice(t *testing.T, v float64) price.Price {
	t.Helper()
	p, err := price.PriceFromFloat(v, 2)
	require.NoError(t, err)
	return p
}

func mustQty(t *testing.T, v float64) price.Quantity {
	t.Helper()
	q, err := price.QuantityFromFloat(v, 2)
	require.NoError(t, err)
	return q
}

func TestOrderBookTopOfBookScenario(t *testing.T) {
	instr := identifiers.NewInstrumentId("ETHUSD", "BINANCE")
	book := New(instr)

	book.Add(BookOrder{Side: Buy, Price: mustPrice(t, 3000.00), Size: mustQty(t, 1.0), OrderID: 1}, 1, 100)
	book.Add(BookOrder{Side: Buy, Price: mustPrice(t, 3000.00), Size: mustQty(t, 2.0), OrderID: 2}, 2, 101)
	book.Add(BookOrder{Side: Sell, Price: mustPrice(t, 3001.00), Size: mustQty(t, 1.5), OrderID: 3}, 3, 102)

	bestBid, ok := book.BestBidPrice()
	require.True(t, ok)
	assert.InDelta(t, 3000.00, bestBid.AsFloat64(), 1e-9)

	bestAsk, ok := book.BestAskPrice()
	require.True(t, ok)
	assert.InDelta(t, 3001.00, bestAsk.AsFloat64(), 1e-9)

	spread, ok := book.Spread()
	require.True(t, ok)
	assert.Equal(t, int64(1_000_000_000), spread) // 1.00 at 1e9 scale

	depth := book.Depth(Buy, 1)
	require.Len(t, depth, 1)
	assert.InDelta(t, 3000.00, depth[0].Price.AsFloat64(), 1e-9)
	assert.InDelta(t, 3.0, depth[0].Size.AsFloat64(), 1e-9)

	assert.True(t, book.CheckIntegrity())

	_, removed := book.Remove(1, Buy, mustPrice(t, 3000.00))
	assert.True(t, removed)
	assert.Equal(t, 2, book.Count())
	bestBid, ok = book.BestBidPrice()
	require.True(t, ok)
	assert.InDelta(t, 3000.00, bestBid.AsFloat64(), 1e-9)
	assert.True(t, book.CheckIntegrity())

	_, removed = book.Remove(2, Buy, mustPrice(t, 3000.00))
	assert.True(t, removed)
	_, ok = book.BestBidPrice()
	assert.False(t, ok)
	assert.True(t, book.CheckIntegrity())
}

func TestOrderBookWouldCrossSpread(t *testing.T) {
	instr := identifiers.NewInstrumentId("BTCUSD", "BINANCE")
	book := New(instr)
	book.Add(BookOrder{Side: Sell, Price: mustPrice(t, 100), Size: mustQty(t, 1), OrderID: 1}, 1, 1)

	assert.True(t, book.WouldCrossSpread(Buy, mustPrice(t, 100)))
	assert.True(t, book.WouldCrossSpread(Buy, mustPrice(t, 101)))
	assert.False(t, book.WouldCrossSpread(Buy, mustPrice(t, 99)))
}

func TestOrderBookMultiLevelIntegrity(t *testing.T) {
	instr := identifiers.NewInstrumentId("BTCUSD", "BINANCE")
	book := New(instr)

	prices := []float64{100, 102, 101, 105, 99}
	for i, p := range prices {
		book.Add(BookOrder{Side: Buy, Price: mustPrice(t, p), Size: mustQty(t, 1), OrderID: uint64(i + 1)}, uint64(i+1), uint64(i+1))
	}
	assert.True(t, book.CheckIntegrity())
	bestBid, ok := book.BestBidPrice()
	require.True(t, ok)
	assert.InDelta(t, 105, bestBid.AsFloat64(), 1e-9)

	for i := range prices {
		book.Remove(uint64(i+1), Buy, mustPrice(t, prices[i]))
		assert.True(t, book.CheckIntegrity())
	}
	assert.Equal(t, 0, book.Count())
}

func TestOrderBookClear(t *testing.T) {
	instr := identifiers.NewInstrumentId("BTCUSD", "BINANCE")
	book := New(instr)
	book.Add(BookOrder{Side: Buy, Price: mustPrice(t, 100), Size: mustQty(t, 1), OrderID: 1}, 1, 1)
	book.Clear(2, 50)
	assert.Equal(t, 0, book.Count())
	assert.Equal(t, uint64(2), book.Sequence())
	_, ok := book.BestBidPrice()
	assert.False(t, ok)
}
