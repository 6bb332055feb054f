package strategy

import (
	"errors"
	"sync"

	"github.com/abdoElHodaky/algotrade/internal/bar"
	"github.com/abdoElHodaky/algotrade/internal/cache"
	"github.com/abdoElHodaky/algotrade/internal/tradsyserr"
	"github.com/abdoElHodaky/algotrade/pkg/identifiers"
)

// registration pairs a registered Strategy with its own Context.
type registration struct {
	strategy Strategy
	context  *Context
}

// Engine is the Strategy Engine: a registry of strategies dispatched
// market-data and timer events while the engine is running. Dispatch is
// synchronous — every matching strategy is invoked on the caller's
// goroutine, in no particular order (the registry is a map), and any
// callback errors are
// collected and joined rather than aborting the dispatch of the
// remaining strategies.
type Engine struct {
	runMu     sync.Mutex
	isRunning bool

	mu           sync.RWMutex
	registration map[identifiers.StrategyId]*registration
}

// New builds an Engine with no strategies registered.
func New() *Engine {
	return &Engine{registration: make(map[identifiers.StrategyId]*registration)}
}

// AddStrategy registers s under cfg.StrategyId, failing
// CodeStrategyIDExists if that id is already registered. If the engine
// is already running, the strategy is started immediately.
func (e *Engine) AddStrategy(s Strategy, cfg Config) error {
	e.mu.Lock()
	if _, exists := e.registration[cfg.StrategyId]; exists {
		e.mu.Unlock()
		return tradsyserr.Newf(tradsyserr.CodeStrategyIDExists, "strategy %q is already registered", cfg.StrategyId)
	}
	ctx := NewContext(cfg)
	reg := &registration{strategy: s, context: ctx}
	e.registration[cfg.StrategyId] = reg
	e.mu.Unlock()

	if e.IsRunning() {
		ctx.SetState(Running)
		if err := s.OnStart(ctx); err != nil {
			ctx.SetState(Error)
			return err
		}
	}
	return nil
}

// RemoveStrategy deregisters a strategy, stopping it first if running.
func (e *Engine) RemoveStrategy(id identifiers.StrategyId) error {
	e.mu.Lock()
	reg, ok := e.registration[id]
	if !ok {
		e.mu.Unlock()
		return tradsyserr.Newf(tradsyserr.CodeStrategyIDExists, "strategy %q is not registered", id)
	}
	delete(e.registration, id)
	e.mu.Unlock()

	if reg.context.IsActive() {
		reg.context.SetState(Stopped)
		return reg.strategy.OnStop(reg.context)
	}
	return nil
}

// GetContext returns the live Context for a registered strategy.
func (e *Engine) GetContext(id identifiers.StrategyId) (*Context, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	reg, ok := e.registration[id]
	if !ok {
		return nil, false
	}
	return reg.context, true
}

// Start transitions the engine to Running and starts every registered
// strategy, collecting and joining any OnStart errors without aborting
// the remaining starts.
func (e *Engine) Start() error {
	e.runMu.Lock()
	if e.isRunning {
		e.runMu.Unlock()
		return tradsyserr.New(tradsyserr.CodeEngineAlreadyRunning, "strategy engine is already running")
	}
	e.isRunning = true
	e.runMu.Unlock()

	e.mu.RLock()
	regs := e.snapshot()
	e.mu.RUnlock()

	var errs []error
	for _, reg := range regs {
		reg.context.SetState(Running)
		if err := reg.strategy.OnStart(reg.context); err != nil {
			reg.context.SetState(Error)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stop transitions the engine to Stopped and stops every registered
// strategy, in the same continue-on-error fashion as Start.
func (e *Engine) Stop() error {
	e.runMu.Lock()
	e.isRunning = false
	e.runMu.Unlock()

	e.mu.RLock()
	regs := e.snapshot()
	e.mu.RUnlock()

	var errs []error
	for _, reg := range regs {
		if !reg.context.IsActive() {
			continue
		}
		reg.context.SetState(Stopped)
		if err := reg.strategy.OnStop(reg.context); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// IsRunning reports the engine's current state.
func (e *Engine) IsRunning() bool {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	return e.isRunning
}

// snapshot must be called with e.mu held (read or write).
func (e *Engine) snapshot() []*registration {
	out := make([]*registration, 0, len(e.registration))
	for _, reg := range e.registration {
		out = append(out, reg)
	}
	return out
}

// ProcessTradeTick dispatches tick to every active strategy scoped to
// tick.InstrumentId. No-ops while the engine is stopped.
func (e *Engine) ProcessTradeTick(tick cache.TradeTick) error {
	if !e.IsRunning() {
		return nil
	}
	var errs []error
	for _, reg := range e.matching(tick.InstrumentId) {
		if err := reg.strategy.OnTradeTick(reg.context, tick); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ProcessQuoteTick dispatches tick to every active strategy scoped to
// tick.InstrumentId. No-ops while the engine is stopped.
func (e *Engine) ProcessQuoteTick(tick cache.QuoteTick) error {
	if !e.IsRunning() {
		return nil
	}
	var errs []error
	for _, reg := range e.matching(tick.InstrumentId) {
		if err := reg.strategy.OnQuoteTick(reg.context, tick); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ProcessBar dispatches b to every active strategy, regardless of its
// configured instrument scope. No-ops while the engine is stopped.
func (e *Engine) ProcessBar(b bar.Bar) error {
	if !e.IsRunning() {
		return nil
	}
	e.mu.RLock()
	regs := e.snapshot()
	e.mu.RUnlock()

	var errs []error
	for _, reg := range regs {
		if !reg.context.IsActive() {
			continue
		}
		if err := reg.strategy.OnBar(reg.context, b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ProcessTimer dispatches a named timer firing to every active strategy.
// No-ops while the engine is stopped.
func (e *Engine) ProcessTimer(name string) error {
	if !e.IsRunning() {
		return nil
	}
	e.mu.RLock()
	regs := e.snapshot()
	e.mu.RUnlock()

	var errs []error
	for _, reg := range regs {
		if !reg.context.IsActive() {
			continue
		}
		if err := reg.strategy.OnTimer(reg.context, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// matching returns the active registrations scoped to instrumentId,
// under e.mu's read lock.
func (e *Engine) matching(instrumentId identifiers.InstrumentId) []*registration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*registration, 0, len(e.registration))
	for _, reg := range e.registration {
		if !reg.context.IsActive() {
			continue
		}
		if !reg.context.Config.tradesInstrument(instrumentId) {
			continue
		}
		out = append(out, reg)
	}
	return out
}
