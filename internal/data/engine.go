// Package data implements the Data Engine: tick ingestion, aggregator
// fan-out, and cache write-through.
package data

import (
	"sync"
	"sync/atomic"

	"github.com/abdoElHodaky/algotrade/internal/bar"
	"github.com/abdoElHodaky/algotrade/internal/cache"
	"github.com/abdoElHodaky/algotrade/internal/tradsyserr"
)

// Config controls the engine's aggregation behavior.
type Config struct {
	// EnableBarAggregation gates whether trade ticks are forwarded to
	// registered aggregators at all.
	EnableBarAggregation bool
}

// DefaultConfig mirrors the Rust original's defaults.
func DefaultConfig() Config {
	return Config{EnableBarAggregation: true}
}

// Statistics is a snapshot of the engine's monotonic counters.
type Statistics struct {
	TicksProcessed uint64
	BarsGenerated  uint64
}

// Engine is the Stopped -> Running ingestion pipeline: trade and quote
// ticks are cached and, when bar aggregation is enabled, fanned out to
// every registered Aggregator whose BarType matches the tick's
// instrument.
type Engine struct {
	cfg    Config
	market *cache.Market

	runMu     sync.Mutex
	isRunning bool

	aggMu       sync.RWMutex
	aggregators map[bar.Type]*bar.Aggregator

	stats struct {
		ticksProcessed uint64
		barsGenerated  uint64
	}
}

// New builds an Engine writing through to market.
func New(market *cache.Market, cfg Config) *Engine {
	return &Engine{
		cfg:         cfg,
		market:      market,
		aggregators: make(map[bar.Type]*bar.Aggregator),
	}
}

// Start transitions Stopped -> Running, resetting counters. Fails if
// already running.
func (e *Engine) Start() error {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.isRunning {
		return tradsyserr.New(tradsyserr.CodeEngineAlreadyRunning, "data engine is already running")
	}
	e.isRunning = true
	atomic.StoreUint64(&e.stats.ticksProcessed, 0)
	atomic.StoreUint64(&e.stats.barsGenerated, 0)
	return nil
}

// Stop transitions Running -> Stopped. Idempotent.
func (e *Engine) Stop() {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	e.isRunning = false
}

// IsRunning reports the engine's current state.
func (e *Engine) IsRunning() bool {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	return e.isRunning
}

func (e *Engine) requireRunning() error {
	if !e.IsRunning() {
		return tradsyserr.New(tradsyserr.CodeEngineNotRunning, "data engine is not running")
	}
	return nil
}

// ProcessTradeTick writes the tick to the trade cache, then — if bar
// aggregation is enabled — forwards it to every aggregator registered
// for the tick's instrument, caching and returning the first closed Bar.
func (e *Engine) ProcessTradeTick(tick cache.TradeTick) (bar.Bar, bool, error) {
	if err := e.requireRunning(); err != nil {
		return bar.Bar{}, false, err
	}

	e.market.AddTrade(tick)
	atomic.AddUint64(&e.stats.ticksProcessed, 1)

	if !e.cfg.EnableBarAggregation {
		return bar.Bar{}, false, nil
	}

	trade := bar.Trade{
		InstrumentId: tick.InstrumentId,
		Price:        tick.Price,
		Size:         tick.Size,
		TsEvent:      tick.TsEvent,
	}

	var first bar.Bar
	haveFirst := false

	e.aggMu.RLock()
	aggregators := make([]*bar.Aggregator, 0, len(e.aggregators))
	for bt, agg := range e.aggregators {
		if bt.InstrumentId.Equal(tick.InstrumentId) {
			aggregators = append(aggregators, agg)
		}
	}
	e.aggMu.RUnlock()

	for _, agg := range aggregators {
		closed, ok := agg.UpdateWithTrade(trade)
		if !ok {
			continue
		}
		e.market.AddBar(closed)
		atomic.AddUint64(&e.stats.barsGenerated, 1)
		if !haveFirst {
			first = closed
			haveFirst = true
		}
	}

	return first, haveFirst, nil
}

// ProcessQuoteTick writes the tick to the quote cache. No aggregation
// applies to quotes.
func (e *Engine) ProcessQuoteTick(tick cache.QuoteTick) error {
	if err := e.requireRunning(); err != nil {
		return err
	}
	e.market.AddQuote(tick)
	atomic.AddUint64(&e.stats.ticksProcessed, 1)
	return nil
}

// AddBarAggregator registers a fresh Aggregator for bt, replacing any
// prior registration.
func (e *Engine) AddBarAggregator(bt bar.Type) {
	e.aggMu.Lock()
	defer e.aggMu.Unlock()
	e.aggregators[bt] = bar.NewAggregator(bt)
}

// RemoveBarAggregator deregisters bt's aggregator, reporting whether one
// was present.
func (e *Engine) RemoveBarAggregator(bt bar.Type) bool {
	e.aggMu.Lock()
	defer e.aggMu.Unlock()
	if _, ok := e.aggregators[bt]; !ok {
		return false
	}
	delete(e.aggregators, bt)
	return true
}

// GetRecentBars returns up to n most recently closed bars for bt.
func (e *Engine) GetRecentBars(bt bar.Type, n int) []bar.Bar {
	e.aggMu.RLock()
	agg, ok := e.aggregators[bt]
	e.aggMu.RUnlock()
	if !ok {
		return nil
	}
	return agg.RecentBars(n)
}

// Statistics returns a snapshot of the engine's monotonic counters.
func (e *Engine) Statistics() Statistics {
	return Statistics{
		TicksProcessed: atomic.LoadUint64(&e.stats.ticksProcessed),
		BarsGenerated:  atomic.LoadUint64(&e.stats.barsGenerated),
	}
}
