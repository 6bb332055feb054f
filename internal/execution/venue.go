package execution

import (
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/algotrade/internal/tradsyserr"
	"github.com/abdoElHodaky/algotrade/pkg/identifiers"
	"github.com/abdoElHodaky/algotrade/pkg/price"
)

// VenueAdapter is the sole wire-facing interface the engine exposes.
// Implementations must be safe for concurrent use; the engine dispatches
// one call per submission without external synchronization.
type VenueAdapter interface {
	SubmitOrder(o *Order) (identifiers.VenueOrderId, error)
	CancelOrder(id identifiers.OrderId) error
	ModifyOrder(id identifiers.OrderId, newQuantity price.Quantity, newPrice price.Price, hasNewPrice bool) error
}

// breakerSettings mirrors the engine's default venue circuit breaker
// configuration: trip after at least 10 requests with a >=50% failure
// ratio, half-open probing after a minute.
func breakerSettings(name string, logger *zap.Logger) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("venue circuit breaker state changed",
				zap.String("venue", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
}

// venueRegistry holds the per-venue adapter and its circuit breaker,
// wrapping every adapter call so a misbehaving venue is isolated without
// the engine itself tracking failure counts.
type venueRegistry struct {
	logger *zap.Logger

	mu       sync.RWMutex
	adapters map[identifiers.VenueId]VenueAdapter
	breakers map[identifiers.VenueId]*gobreaker.CircuitBreaker
}

func newVenueRegistry(logger *zap.Logger) *venueRegistry {
	return &venueRegistry{
		logger:   logger,
		adapters: make(map[identifiers.VenueId]VenueAdapter),
		breakers: make(map[identifiers.VenueId]*gobreaker.CircuitBreaker),
	}
}

func (r *venueRegistry) register(venue identifiers.VenueId, adapter VenueAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[venue] = adapter
	r.breakers[venue] = gobreaker.NewCircuitBreaker(breakerSettings(string(venue), r.logger))
}

func (r *venueRegistry) get(venue identifiers.VenueId) (VenueAdapter, *gobreaker.CircuitBreaker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[venue]
	if !ok {
		return nil, nil, false
	}
	return adapter, r.breakers[venue], true
}

// submit dispatches through the venue's circuit breaker, translating any
// breaker or adapter failure into a CodeExchangeError.
func (r *venueRegistry) submit(venue identifiers.VenueId, o *Order) (identifiers.VenueOrderId, error) {
	adapter, breaker, ok := r.get(venue)
	if !ok {
		return "", tradsyserr.Newf(tradsyserr.CodeExchangeNotFound, "no adapter registered for venue %q", venue)
	}
	result, err := breaker.Execute(func() (interface{}, error) {
		return adapter.SubmitOrder(o)
	})
	if err != nil {
		return "", tradsyserr.Wrap(err, tradsyserr.CodeExchangeError, "venue submit failed")
	}
	return result.(identifiers.VenueOrderId), nil
}

func (r *venueRegistry) cancel(venue identifiers.VenueId, orderId identifiers.OrderId) error {
	adapter, breaker, ok := r.get(venue)
	if !ok {
		return tradsyserr.Newf(tradsyserr.CodeExchangeNotFound, "no adapter registered for venue %q", venue)
	}
	_, err := breaker.Execute(func() (interface{}, error) {
		return nil, adapter.CancelOrder(orderId)
	})
	if err != nil {
		return tradsyserr.Wrap(err, tradsyserr.CodeExchangeError, "venue cancel failed")
	}
	return nil
}
