package bar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdoElHodaky/algotrade/pkg/identifiers"
)

func TestTickModeClosesAtExactCount(t *testing.T) {
	instr := identifiers.NewInstrumentId("BTCUSD", "BINANCE")
	barType := Type{InstrumentId: instr, Spec: Specification{Step: 3, Aggregation: Tick}}
	agg := NewAggregator(barType)

	_, closed := agg.UpdateWithTrade(Trade{InstrumentId: instr, Price: 100, Size: 1, TsEvent: 1})
	assert.False(t, closed)
	_, closed = agg.UpdateWithTrade(Trade{InstrumentId: instr, Price: 101, Size: 2, TsEvent: 2})
	assert.False(t, closed)
	b, closed := agg.UpdateWithTrade(Trade{InstrumentId: instr, Price: 99, Size: 3, TsEvent: 3})
	require.True(t, closed)

	assert.Equal(t, 100.0, b.Open)
	assert.Equal(t, 101.0, b.High)
	assert.Equal(t, 99.0, b.Low)
	assert.Equal(t, 99.0, b.Close)
	assert.Equal(t, 6.0, b.Volume)
	assert.Equal(t, uint64(3), b.TickCount)
}

func TestVolumeModeClosesAtThreshold(t *testing.T) {
	instr := identifiers.NewInstrumentId("ETHUSD", "BINANCE")
	barType := Type{InstrumentId: instr, Spec: Specification{Step: 10, Aggregation: Volume}}
	agg := NewAggregator(barType)

	_, closed := agg.UpdateWithTrade(Trade{InstrumentId: instr, Price: 10, Size: 4, TsEvent: 1})
	assert.False(t, closed)
	b, closed := agg.UpdateWithTrade(Trade{InstrumentId: instr, Price: 11, Size: 6, TsEvent: 2})
	require.True(t, closed)
	assert.Equal(t, 10.0, b.Volume)
}

func TestDollarModeClosesAtThreshold(t *testing.T) {
	instr := identifiers.NewInstrumentId("ETHUSD", "BINANCE")
	barType := Type{InstrumentId: instr, Spec: Specification{Step: 1000, Aggregation: Dollar}}
	agg := NewAggregator(barType)

	_, closed := agg.UpdateWithTrade(Trade{InstrumentId: instr, Price: 100, Size: 5, TsEvent: 1})
	assert.False(t, closed) // 500 < 1000
	b, closed := agg.UpdateWithTrade(Trade{InstrumentId: instr, Price: 100, Size: 5, TsEvent: 2})
	require.True(t, closed) // volume=10, close=100 -> 1000 >= 1000
	assert.Equal(t, 10.0, b.Volume)
}

func TestTimeModeClosesAtElapsedDuration(t *testing.T) {
	instr := identifiers.NewInstrumentId("ETHUSD", "BINANCE")
	barType := Type{InstrumentId: instr, Spec: Specification{Step: 1000, Aggregation: Time}}
	agg := NewAggregator(barType)

	_, closed := agg.UpdateWithTrade(Trade{InstrumentId: instr, Price: 10, Size: 1, TsEvent: 0})
	assert.False(t, closed)
	_, closed = agg.UpdateWithTrade(Trade{InstrumentId: instr, Price: 11, Size: 1, TsEvent: 500})
	assert.False(t, closed)
	b, closed := agg.UpdateWithTrade(Trade{InstrumentId: instr, Price: 12, Size: 1, TsEvent: 1000})
	require.True(t, closed)
	assert.Equal(t, uint64(1000), b.TsEvent)
}

func TestAggregatorStartsFreshBarAfterClose(t *testing.T) {
	instr := identifiers.NewInstrumentId("BTCUSD", "BINANCE")
	barType := Type{InstrumentId: instr, Spec: Specification{Step: 1, Aggregation: Tick}}
	agg := NewAggregator(barType)

	b1, closed := agg.UpdateWithTrade(Trade{InstrumentId: instr, Price: 100, Size: 1, TsEvent: 1})
	require.True(t, closed)
	b2, closed := agg.UpdateWithTrade(Trade{InstrumentId: instr, Price: 200, Size: 1, TsEvent: 2})
	require.True(t, closed)

	assert.NotEqual(t, b1.Open, b2.Open)
	recent := agg.RecentBars(10)
	require.Len(t, recent, 2)
}

func TestRecentBarsInvariants(t *testing.T) {
	instr := identifiers.NewInstrumentId("BTCUSD", "BINANCE")
	barType := Type{InstrumentId: instr, Spec: Specification{Step: 1, Aggregation: Tick}}
	agg := NewAggregator(barType)

	for i := 0; i < 5; i++ {
		agg.UpdateWithTrade(Trade{InstrumentId: instr, Price: float64(100 + i), Size: 2, TsEvent: uint64(i)})
	}
	for _, b := range agg.RecentBars(10) {
		assert.LessOrEqual(t, b.Low, b.Open)
		assert.LessOrEqual(t, b.Low, b.Close)
		assert.GreaterOrEqual(t, b.High, b.Open)
		assert.GreaterOrEqual(t, b.High, b.Close)
		assert.Equal(t, 2.0, b.Volume)
	}
}
