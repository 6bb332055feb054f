package execution

import (
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/algotrade/internal/bus"
	"github.com/abdoElHodaky/algotrade/internal/tradsyserr"
	"github.com/abdoElHodaky/algotrade/pkg/identifiers"
)

// Config controls engine-wide resource sizing.
type Config struct {
	// SubmitPoolSize bounds the number of concurrent in-flight
	// submit/cancel dispatches to venue adapters.
	SubmitPoolSize int

	// Name identifies this engine instance in exported metrics, via a
	// const label, so several Engines can share one Registerer.
	// Defaults to "default" when Registerer is set and Name is empty.
	Name string
	// Registerer, if non-nil, publishes submitted/cancelled/filled/
	// rejected counters to it. Left nil, no prometheus collectors are
	// created.
	Registerer prometheus.Registerer
}

// DefaultConfig returns sensible defaults for a single-process deployment.
func DefaultConfig() Config {
	return Config{SubmitPoolSize: 32}
}

// engineMetrics mirrors Statistics as prometheus counters, labeled by
// engine instance name so multiple Engines can register against the
// same Registerer without name collisions.
type engineMetrics struct {
	submitted prometheus.Counter
	cancelled prometheus.Counter
	filled    prometheus.Counter
	rejected  prometheus.Counter
}

func newEngineMetrics(registerer prometheus.Registerer, name string) *engineMetrics {
	if registerer == nil {
		return nil
	}
	if name == "" {
		name = "default"
	}
	labels := prometheus.Labels{"engine": name}
	m := &engineMetrics{
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "execution_orders_submitted_total",
			Help:        "Number of orders submitted to a venue.",
			ConstLabels: labels,
		}),
		cancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "execution_orders_cancelled_total",
			Help:        "Number of orders cancelled.",
			ConstLabels: labels,
		}),
		filled: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "execution_orders_filled_total",
			Help:        "Number of orders that reached Filled.",
			ConstLabels: labels,
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "execution_orders_rejected_total",
			Help:        "Number of orders rejected.",
			ConstLabels: labels,
		}),
	}
	registerer.MustRegister(m.submitted, m.cancelled, m.filled, m.rejected)
	return m
}

// orderEntry pairs a cached order with the mutex serializing mutation of
// its filled quantity, so concurrent fills/cancels on the same order
// never race.
type orderEntry struct {
	mu    sync.Mutex
	order *Order
}

// Statistics is a snapshot of the engine's monotonic counters.
type Statistics struct {
	Submitted uint64
	Cancelled uint64
	Filled    uint64
	Rejected  uint64
}

// Engine is the Execution Engine: it owns every order from submit_order
// until it completes, routes submissions to venue adapters, applies
// fills, and publishes OrderSubmitted/OrderCancelled/OrderFilled events.
type Engine struct {
	logger  *zap.Logger
	bus     *bus.Bus
	venues  *venueRegistry
	pool    *ants.Pool
	metrics *engineMetrics

	routingMu sync.RWMutex
	routing   map[string]identifiers.VenueId

	orderMu sync.RWMutex
	orders  map[identifiers.OrderId]*orderEntry

	activeMu sync.RWMutex
	active   map[identifiers.OrderId]struct{}

	strategyMu     sync.RWMutex
	strategyOrders map[identifiers.StrategyId][]identifiers.OrderId

	stats struct {
		submitted, cancelled, filled, rejected uint64
	}
}

// New builds an Engine. logger may be nil.
func New(b *bus.Bus, logger *zap.Logger, cfg Config) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	poolSize := cfg.SubmitPoolSize
	if poolSize <= 0 {
		poolSize = DefaultConfig().SubmitPoolSize
	}
	pool, err := ants.NewPool(poolSize, ants.WithOptions(ants.Options{
		PanicHandler: func(i interface{}) {
			logger.Error("execution submit task panicked", zap.Any("panic", i))
		},
	}))
	if err != nil {
		return nil, tradsyserr.Wrap(err, tradsyserr.CodeExchangeError, "failed to create submission pool")
	}
	return &Engine{
		logger:         logger,
		bus:            b,
		venues:         newVenueRegistry(logger),
		pool:           pool,
		metrics:        newEngineMetrics(cfg.Registerer, cfg.Name),
		routing:        make(map[string]identifiers.VenueId),
		orders:         make(map[identifiers.OrderId]*orderEntry),
		active:         make(map[identifiers.OrderId]struct{}),
		strategyOrders: make(map[identifiers.StrategyId][]identifiers.OrderId),
	}, nil
}

// Close releases the submission pool.
func (e *Engine) Close() {
	e.pool.Release()
}

// ConfigureRouting assigns the venue an instrument's orders route to.
func (e *Engine) ConfigureRouting(instrumentId identifiers.InstrumentId, venue identifiers.VenueId) {
	e.routingMu.Lock()
	defer e.routingMu.Unlock()
	e.routing[instrumentId.String()] = venue
}

// RegisterVenueAdapter registers the adapter backing a venue, wrapped in
// its own circuit breaker.
func (e *Engine) RegisterVenueAdapter(venue identifiers.VenueId, adapter VenueAdapter) {
	e.venues.register(venue, adapter)
}

// SubmitOrder runs the submission protocol: marks the order Submitted,
// indexes it, resolves routing synchronously, publishes OrderSubmitted,
// and dispatches the venue call asynchronously. It returns the assigned
// OrderId once indexing and routing resolution succeed, regardless of
// the adapter's eventual verdict.
func (e *Engine) SubmitOrder(o *Order) (identifiers.OrderId, error) {
	if err := o.transition(Submitted); err != nil {
		return 0, err
	}

	entry := &orderEntry{order: o}
	e.orderMu.Lock()
	e.orders[o.OrderId] = entry
	e.orderMu.Unlock()

	e.activeMu.Lock()
	e.active[o.OrderId] = struct{}{}
	e.activeMu.Unlock()

	e.strategyMu.Lock()
	e.strategyOrders[o.StrategyId] = append(e.strategyOrders[o.StrategyId], o.OrderId)
	e.strategyMu.Unlock()

	e.routingMu.RLock()
	venue, ok := e.routing[o.InstrumentId.String()]
	e.routingMu.RUnlock()
	if !ok {
		return 0, tradsyserr.Newf(tradsyserr.CodeNoRoutingConfigured,
			"no venue routing configured for instrument %q", o.InstrumentId)
	}

	adapter, breaker, ok := e.venues.get(venue)
	if !ok {
		return 0, tradsyserr.Newf(tradsyserr.CodeExchangeNotFound, "no adapter registered for venue %q", venue)
	}

	atomic.AddUint64(&e.stats.submitted, 1)
	if e.metrics != nil {
		e.metrics.submitted.Inc()
	}
	e.publish(TopicOrdersSubmitted, newOrderEvent(o, "submitted"))

	submitErr := e.pool.Submit(func() {
		result, err := breaker.Execute(func() (interface{}, error) {
			return adapter.SubmitOrder(o)
		})
		if err != nil {
			e.logger.Warn("venue submit failed, order remains Submitted",
				zap.Uint64("order_id", uint64(o.OrderId)),
				zap.String("venue", string(venue)),
				zap.Error(err))
			return
		}
		entry.mu.Lock()
		o.VenueOrderId = result.(identifiers.VenueOrderId)
		o.HasVenueId = true
		entry.mu.Unlock()
	})
	if submitErr != nil {
		e.logger.Error("submission pool rejected task", zap.Uint64("order_id", uint64(o.OrderId)), zap.Error(submitErr))
	}

	return o.OrderId, nil
}

// CancelOrder runs the cancel protocol. On adapter error the order is
// left untouched.
func (e *Engine) CancelOrder(orderId identifiers.OrderId) error {
	e.orderMu.RLock()
	entry, ok := e.orders[orderId]
	e.orderMu.RUnlock()
	if !ok {
		return tradsyserr.Newf(tradsyserr.CodeOrderNotFound, "order %d not found", orderId)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.order.Status.IsTerminal() {
		return tradsyserr.Newf(tradsyserr.CodeOrderNotActive, "order %d is already %s", orderId, entry.order.Status)
	}

	e.routingMu.RLock()
	venue, ok := e.routing[entry.order.InstrumentId.String()]
	e.routingMu.RUnlock()
	if ok {
		if err := e.venues.cancel(venue, orderId); err != nil {
			return err
		}
	}

	if err := entry.order.transition(Cancelled); err != nil {
		return err
	}

	e.activeMu.Lock()
	delete(e.active, orderId)
	e.activeMu.Unlock()

	atomic.AddUint64(&e.stats.cancelled, 1)
	if e.metrics != nil {
		e.metrics.cancelled.Inc()
	}
	e.publish(TopicOrdersCancelled, newOrderEvent(entry.order, "cancelled"))
	return nil
}

// MarkAccepted transitions a Submitted order to Accepted. The engine
// never calls this itself — Accepted is an optional waypoint a venue
// adapter may signal through out-of-band acknowledgement plumbing; most
// venues are reflected straight from Submitted to PartiallyFilled/Filled.
func (e *Engine) MarkAccepted(orderId identifiers.OrderId) error {
	e.orderMu.RLock()
	entry, ok := e.orders[orderId]
	e.orderMu.RUnlock()
	if !ok {
		return tradsyserr.Newf(tradsyserr.CodeOrderNotFound, "order %d not found", orderId)
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.order.transition(Accepted)
}

// RejectOrder transitions a Submitted order to Rejected, removing it
// from the active set and publishing on orders.rejected.
func (e *Engine) RejectOrder(orderId identifiers.OrderId, reason string) error {
	e.orderMu.RLock()
	entry, ok := e.orders[orderId]
	e.orderMu.RUnlock()
	if !ok {
		return tradsyserr.Newf(tradsyserr.CodeOrderNotFound, "order %d not found", orderId)
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if err := entry.order.transition(Rejected); err != nil {
		return err
	}
	e.activeMu.Lock()
	delete(e.active, orderId)
	e.activeMu.Unlock()
	atomic.AddUint64(&e.stats.rejected, 1)
	if e.metrics != nil {
		e.metrics.rejected.Inc()
	}
	e.publish(TopicOrdersRejected, newOrderEvent(entry.order, reason))
	return nil
}

// HandleFill applies a fill to its order, recomputing the volume-weighted
// average fill price and transitioning to Filled or PartiallyFilled.
func (e *Engine) HandleFill(f Fill) error {
	e.orderMu.RLock()
	entry, ok := e.orders[f.OrderId]
	e.orderMu.RUnlock()
	if !ok {
		return tradsyserr.Newf(tradsyserr.CodeOrderNotFound, "order %d not found", f.OrderId)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if err := entry.order.applyFill(f); err != nil {
		return err
	}

	if entry.order.Status == Filled {
		e.activeMu.Lock()
		delete(e.active, f.OrderId)
		e.activeMu.Unlock()
		atomic.AddUint64(&e.stats.filled, 1)
		if e.metrics != nil {
			e.metrics.filled.Inc()
		}
	}

	e.publish(TopicOrdersFilled, newOrderEvent(entry.order, "fill"))
	return nil
}

// GetStrategyOrders returns the order ids submitted by a strategy, in
// submission order.
func (e *Engine) GetStrategyOrders(strategyId identifiers.StrategyId) []identifiers.OrderId {
	e.strategyMu.RLock()
	defer e.strategyMu.RUnlock()
	ids := e.strategyOrders[strategyId]
	out := make([]identifiers.OrderId, len(ids))
	copy(out, ids)
	return out
}

// GetActiveOrdersCount returns the number of orders currently in
// Submitted, Accepted, or PartiallyFilled state.
func (e *Engine) GetActiveOrdersCount() int {
	e.activeMu.RLock()
	defer e.activeMu.RUnlock()
	return len(e.active)
}

// GetOrder returns a snapshot copy of the cached order.
func (e *Engine) GetOrder(orderId identifiers.OrderId) (Order, bool) {
	e.orderMu.RLock()
	entry, ok := e.orders[orderId]
	e.orderMu.RUnlock()
	if !ok {
		return Order{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return *entry.order, true
}

// GetStatistics returns a snapshot of the engine's monotonic counters.
func (e *Engine) GetStatistics() Statistics {
	return Statistics{
		Submitted: atomic.LoadUint64(&e.stats.submitted),
		Cancelled: atomic.LoadUint64(&e.stats.cancelled),
		Filled:    atomic.LoadUint64(&e.stats.filled),
		Rejected:  atomic.LoadUint64(&e.stats.rejected),
	}
}

func (e *Engine) publish(topic string, ev OrderEvent) {
	env := bus.NewEnvelope("execution_engine", topic, encodeEvent(ev))
	if err := e.bus.Publish(topic, env); err != nil {
		e.logger.Warn("failed to publish order event", zap.String("topic", topic), zap.Error(err))
	}
}
