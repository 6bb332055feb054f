package strategy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/abdoElHodaky/algotrade/pkg/identifiers"
)

func TestNewContextStartsInitializedWithZeroMetrics(t *testing.T) {
	ctx := NewContext(testConfig("a"))
	assert.Equal(t, Initialized, ctx.State)
	assert.False(t, ctx.IsActive())
	assert.Equal(t, 0.0, ctx.Metrics.WinRate())
	assert.True(t, math.IsInf(ctx.Metrics.ProfitFactor(), 1))
}

func TestRecordTradeTracksWinLossStreaksAndDrawdown(t *testing.T) {
	ctx := NewContext(testConfig("a"))
	instr := identifiers.NewInstrumentId("BTCUSD", "BINANCE")

	ctx.RecordTrade(instr, 10, 1)
	ctx.RecordTrade(instr, 5, 1)
	ctx.RecordTrade(instr, -8, 1)
	ctx.RecordTrade(instr, -2, 1)

	m := ctx.Metrics
	assert.Equal(t, uint64(4), m.TotalTrades)
	assert.Equal(t, uint64(2), m.WinningTrades)
	assert.Equal(t, uint64(2), m.LosingTrades)
	assert.InDelta(t, 5.0, m.TotalPnL, 1e-9)
	assert.Equal(t, uint64(2), m.MaxConsecutiveWins)
	assert.Equal(t, uint64(2), m.MaxConsecutiveLosses)
	// peak PnL hit 15 after the first two trades, ending PnL is 5: drawdown 10.
	assert.InDelta(t, 10.0, m.MaxDrawdown, 1e-9)
	assert.InDelta(t, 0.5, m.WinRate(), 1e-9)
	assert.InDelta(t, 15.0/10.0, m.ProfitFactor(), 1e-9)
}

func TestSetStateUpdatesHeartbeat(t *testing.T) {
	ctx := NewContext(testConfig("a"))
	before := ctx.LastHeartbeat
	ctx.SetState(Running)
	assert.Equal(t, Running, ctx.State)
	assert.GreaterOrEqual(t, ctx.LastHeartbeat, before)
}
