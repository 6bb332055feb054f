// Package strategy implements the Strategy Engine: strategy registration,
// event dispatch, and per-strategy performance metrics.
package strategy

import (
	"math"
	"sync"

	"github.com/abdoElHodaky/algotrade/pkg/clock"
	"github.com/abdoElHodaky/algotrade/pkg/identifiers"
)

// State is a strategy's position in its lifecycle.
type State int

const (
	Initialized State = iota
	Running
	Paused
	Stopped
	Error
)

// Config is the user-supplied configuration for one strategy.
type Config struct {
	StrategyId      identifiers.StrategyId
	Name            string
	Instruments     []identifiers.InstrumentId
	MaxPositionSize float64
	MaxDailyLoss    float64
	MaxDrawdown     float64
}

// tradesInstrument reports whether cfg scopes the strategy to id.
func (cfg Config) tradesInstrument(id identifiers.InstrumentId) bool {
	for _, want := range cfg.Instruments {
		if want.Equal(id) {
			return true
		}
	}
	return false
}

// Metrics accumulates a strategy's trade and P&L history.
type Metrics struct {
	TotalTrades           uint64
	WinningTrades          uint64
	LosingTrades           uint64
	TotalPnL               float64
	GrossProfit            float64
	GrossLoss              float64
	ConsecutiveWins        uint64
	ConsecutiveLosses      uint64
	MaxConsecutiveWins     uint64
	MaxConsecutiveLosses   uint64
	MaxDrawdown            float64
	peakPnL                float64
	OpenPositions          map[string]float64
	LastUpdateTs           clock.UnixNanos
}

func newMetrics() Metrics {
	return Metrics{OpenPositions: make(map[string]float64)}
}

// WinRate is winning trades over total trades, 0 if none recorded.
func (m Metrics) WinRate() float64 {
	if m.TotalTrades == 0 {
		return 0
	}
	return float64(m.WinningTrades) / float64(m.TotalTrades)
}

// ProfitFactor is gross profit over gross loss; +Inf if no losses yet.
func (m Metrics) ProfitFactor() float64 {
	if m.GrossLoss == 0 {
		return math.Inf(1)
	}
	return m.GrossProfit / m.GrossLoss
}

// Context is the per-strategy execution context a Strategy's callbacks
// receive: its config, lifecycle state, running metrics, and
// heartbeat timestamps.
type Context struct {
	mu sync.Mutex

	Config        Config
	State         State
	Metrics       Metrics
	StartTime     clock.UnixNanos
	LastHeartbeat clock.UnixNanos
}

// NewContext builds a Context in the Initialized state.
func NewContext(cfg Config) *Context {
	now := clock.Now()
	return &Context{
		Config:        cfg,
		State:         Initialized,
		Metrics:       newMetrics(),
		StartTime:     now,
		LastHeartbeat: now,
	}
}

// SetState updates the context's lifecycle state and refreshes the
// heartbeat.
func (c *Context) SetState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.State = s
	c.LastHeartbeat = clock.Now()
}

// IsActive reports whether the context is Running.
func (c *Context) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.State == Running
}

// RecordTrade folds a closed trade's P&L into the strategy's metrics,
// tracking win/loss streaks and drawdown from the running P&L peak.
func (c *Context) RecordTrade(instrumentId identifiers.InstrumentId, pnl, size float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := &c.Metrics
	m.TotalTrades++
	m.TotalPnL += pnl

	switch {
	case pnl > 0:
		m.WinningTrades++
		m.GrossProfit += pnl
		m.ConsecutiveWins++
		m.ConsecutiveLosses = 0
		if m.ConsecutiveWins > m.MaxConsecutiveWins {
			m.MaxConsecutiveWins = m.ConsecutiveWins
		}
	case pnl < 0:
		m.LosingTrades++
		m.GrossLoss += -pnl
		m.ConsecutiveLosses++
		m.ConsecutiveWins = 0
		if m.ConsecutiveLosses > m.MaxConsecutiveLosses {
			m.MaxConsecutiveLosses = m.ConsecutiveLosses
		}
	}

	if m.TotalPnL > m.peakPnL {
		m.peakPnL = m.TotalPnL
	}
	if drawdown := m.peakPnL - m.TotalPnL; drawdown > m.MaxDrawdown {
		m.MaxDrawdown = drawdown
	}

	m.OpenPositions[instrumentId.String()] += size
	m.LastUpdateTs = clock.Now()
}
