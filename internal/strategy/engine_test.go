package strategy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdoElHodaky/algotrade/internal/bar"
	"github.com/abdoElHodaky/algotrade/internal/cache"
	"github.com/abdoElHodaky/algotrade/internal/tradsyserr"
	"github.com/abdoElHodaky/algotrade/pkg/identifiers"
)

// recordingStrategy counts callback invocations and can be configured
// to fail any of them.
type recordingStrategy struct {
	BaseStrategy
	name string

	starts, stops, trades, quotes, bars, timers int
	failWith                                    error
}

func (s *recordingStrategy) Name() string { return s.name }

func (s *recordingStrategy) OnStart(*Context) error {
	s.starts++
	return s.failWith
}

func (s *recordingStrategy) OnStop(*Context) error {
	s.stops++
	return s.failWith
}

func (s *recordingStrategy) OnTradeTick(*Context, cache.TradeTick) error {
	s.trades++
	return s.failWith
}

func (s *recordingStrategy) OnQuoteTick(*Context, cache.QuoteTick) error {
	s.quotes++
	return s.failWith
}

func (s *recordingStrategy) OnBar(*Context, bar.Bar) error {
	s.bars++
	return s.failWith
}

func (s *recordingStrategy) OnTimer(*Context, string) error {
	s.timers++
	return s.failWith
}

func testConfig(id string, instruments ...identifiers.InstrumentId) Config {
	return Config{StrategyId: identifiers.StrategyId(id), Name: id, Instruments: instruments}
}

func TestAddStrategyRejectsDuplicateId(t *testing.T) {
	e := New()
	require.NoError(t, e.AddStrategy(&recordingStrategy{name: "a"}, testConfig("dup")))
	err := e.AddStrategy(&recordingStrategy{name: "b"}, testConfig("dup"))
	require.Error(t, err)
	assert.True(t, tradsyserr.Is(err, tradsyserr.CodeStrategyIDExists))
}

func TestStartInvokesOnStartAndSetsRunning(t *testing.T) {
	e := New()
	s := &recordingStrategy{name: "a"}
	require.NoError(t, e.AddStrategy(s, testConfig("a")))

	require.NoError(t, e.Start())
	assert.Equal(t, 1, s.starts)

	ctx, ok := e.GetContext("a")
	require.True(t, ok)
	assert.True(t, ctx.IsActive())
}

func TestStartContinuesPastFailingStrategyAndJoinsErrors(t *testing.T) {
	e := New()
	failing := &recordingStrategy{name: "fail", failWith: errors.New("boom")}
	ok := &recordingStrategy{name: "ok"}
	require.NoError(t, e.AddStrategy(failing, testConfig("fail")))
	require.NoError(t, e.AddStrategy(ok, testConfig("ok")))

	err := e.Start()
	require.Error(t, err)
	assert.Equal(t, 1, failing.starts)
	assert.Equal(t, 1, ok.starts, "a failing OnStart must not prevent other strategies from starting")
}

func TestProcessTradeTickNoopsWhenStopped(t *testing.T) {
	e := New()
	s := &recordingStrategy{name: "a"}
	instr := identifiers.NewInstrumentId("BTCUSD", "BINANCE")
	require.NoError(t, e.AddStrategy(s, testConfig("a", instr)))

	err := e.ProcessTradeTick(cache.TradeTick{InstrumentId: instr})
	require.NoError(t, err)
	assert.Equal(t, 0, s.trades)
}

func TestProcessTradeTickFiltersByInstrument(t *testing.T) {
	e := New()
	btc := identifiers.NewInstrumentId("BTCUSD", "BINANCE")
	eth := identifiers.NewInstrumentId("ETHUSD", "BINANCE")

	btcStrat := &recordingStrategy{name: "btc"}
	ethStrat := &recordingStrategy{name: "eth"}
	require.NoError(t, e.AddStrategy(btcStrat, testConfig("btc", btc)))
	require.NoError(t, e.AddStrategy(ethStrat, testConfig("eth", eth)))
	require.NoError(t, e.Start())

	require.NoError(t, e.ProcessTradeTick(cache.TradeTick{InstrumentId: btc}))
	assert.Equal(t, 1, btcStrat.trades)
	assert.Equal(t, 0, ethStrat.trades)
}

func TestProcessBarDispatchesToAllActiveStrategiesRegardlessOfInstrument(t *testing.T) {
	e := New()
	btc := identifiers.NewInstrumentId("BTCUSD", "BINANCE")
	eth := identifiers.NewInstrumentId("ETHUSD", "BINANCE")

	btcStrat := &recordingStrategy{name: "btc"}
	ethStrat := &recordingStrategy{name: "eth"}
	require.NoError(t, e.AddStrategy(btcStrat, testConfig("btc", btc)))
	require.NoError(t, e.AddStrategy(ethStrat, testConfig("eth", eth)))
	require.NoError(t, e.Start())

	b := bar.Bar{Type: bar.Type{InstrumentId: btc}}
	require.NoError(t, e.ProcessBar(b))
	assert.Equal(t, 1, btcStrat.bars)
	assert.Equal(t, 1, ethStrat.bars, "bar dispatch is unscoped by instrument")
}

func TestProcessTimerDispatchesToAllActiveStrategies(t *testing.T) {
	e := New()
	s1 := &recordingStrategy{name: "a"}
	s2 := &recordingStrategy{name: "b"}
	require.NoError(t, e.AddStrategy(s1, testConfig("a")))
	require.NoError(t, e.AddStrategy(s2, testConfig("b")))
	require.NoError(t, e.Start())

	require.NoError(t, e.ProcessTimer("heartbeat"))
	assert.Equal(t, 1, s1.timers)
	assert.Equal(t, 1, s2.timers)
}

func TestStopInvokesOnStopAndClearsActive(t *testing.T) {
	e := New()
	s := &recordingStrategy{name: "a"}
	require.NoError(t, e.AddStrategy(s, testConfig("a")))
	require.NoError(t, e.Start())

	require.NoError(t, e.Stop())
	assert.Equal(t, 1, s.stops)

	ctx, _ := e.GetContext("a")
	assert.False(t, ctx.IsActive())
}

func TestAddStrategyAfterEngineRunningStartsImmediately(t *testing.T) {
	e := New()
	require.NoError(t, e.Start())

	s := &recordingStrategy{name: "late"}
	require.NoError(t, e.AddStrategy(s, testConfig("late")))
	assert.Equal(t, 1, s.starts)

	ctx, ok := e.GetContext("late")
	require.True(t, ok)
	assert.True(t, ctx.IsActive())
}

func TestRemoveStrategyStopsActiveStrategy(t *testing.T) {
	e := New()
	s := &recordingStrategy{name: "a"}
	require.NoError(t, e.AddStrategy(s, testConfig("a")))
	require.NoError(t, e.Start())

	require.NoError(t, e.RemoveStrategy("a"))
	assert.Equal(t, 1, s.stops)
	_, ok := e.GetContext("a")
	assert.False(t, ok)
}
