// Package timer implements the Timer service: named, cancellable
// interval timers whose callbacks fire on their own worker goroutine.
package timer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/abdoElHodaky/algotrade/internal/tradsyserr"
)

// Callback is invoked each time a timer fires. Callbacks run on the
// timer's own worker goroutine and must be safe to call concurrently
// with callbacks for every other registered timer.
type Callback func(name string)

// Config controls callback dispatch rate limiting.
type Config struct {
	// CallbackRate bounds how often, across all timers combined,
	// callbacks may fire — protecting a slow strategy from a
	// misconfigured high-frequency timer starving everything else.
	CallbackRate rate.Limit
	// CallbackBurst is the limiter's burst allowance.
	CallbackBurst int
}

// DefaultConfig allows up to 1000 callback dispatches per second.
func DefaultConfig() Config {
	return Config{CallbackRate: 1000, CallbackBurst: 100}
}

// handle is the running state behind one registered timer.
type handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Service is the Timer service: a registry of named, independently
// cancellable interval timers.
type Service struct {
	logger  *zap.Logger
	limiter *rate.Limiter

	mu     sync.Mutex
	timers map[string]*handle
}

// New builds a Service. logger may be nil.
func New(logger *zap.Logger, cfg Config) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		logger:  logger,
		limiter: rate.NewLimiter(cfg.CallbackRate, cfg.CallbackBurst),
		timers:  make(map[string]*handle),
	}
}

// SetTimer registers a timer firing cb every interval, first firing
// after start has elapsed. If stop is non-nil, the timer cancels itself
// once stop has elapsed since registration. Registering under a name
// already in use replaces the existing timer.
func (s *Service) SetTimer(name string, interval, start time.Duration, stop *time.Duration, cb Callback) error {
	if interval <= 0 {
		return tradsyserr.Newf(tradsyserr.CodeInvalidArgument, "timer %q: interval must be positive", name)
	}

	s.mu.Lock()
	if existing, ok := s.timers[name]; ok {
		existing.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	if stop != nil {
		ctx, cancel = context.WithTimeout(ctx, *stop)
	}
	h := &handle{cancel: cancel, done: make(chan struct{})}
	s.timers[name] = h
	s.mu.Unlock()

	go s.run(ctx, h, name, interval, start, cb)
	return nil
}

// CancelTimer stops and deregisters a timer, reporting whether one was
// registered under that name.
func (s *Service) CancelTimer(name string) bool {
	s.mu.Lock()
	h, ok := s.timers[name]
	if ok {
		delete(s.timers, name)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	h.cancel()
	<-h.done
	return true
}

// IsActive reports whether a timer is currently registered under name.
func (s *Service) IsActive(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[name]
	return ok
}

// Close cancels every registered timer and waits for their workers to
// exit.
func (s *Service) Close() {
	s.mu.Lock()
	handles := make([]*handle, 0, len(s.timers))
	for name, h := range s.timers {
		handles = append(handles, h)
		delete(s.timers, name)
	}
	s.mu.Unlock()

	for _, h := range handles {
		h.cancel()
		<-h.done
	}
}

func (s *Service) run(ctx context.Context, h *handle, name string, interval, start time.Duration, cb Callback) {
	defer close(h.done)

	if start > 0 {
		timer := time.NewTimer(start)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.deregisterSelf(name, h)
			return
		case <-timer.C:
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.fire(ctx, name, cb)
	for {
		select {
		case <-ctx.Done():
			s.deregisterSelf(name, h)
			return
		case <-ticker.C:
			s.fire(ctx, name, cb)
		}
	}
}

func (s *Service) fire(ctx context.Context, name string, cb Callback) {
	if err := s.limiter.Wait(ctx); err != nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("timer callback panicked", zap.String("timer", name), zap.Any("panic", r))
		}
	}()
	cb(name)
}

// deregisterSelf removes a timer's own handle from the registry once
// its context expires on its own (stop duration elapsed) rather than
// via an explicit CancelTimer, so the registry doesn't accumulate dead
// entries.
func (s *Service) deregisterSelf(name string, h *handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.timers[name]; ok && current == h {
		delete(s.timers, name)
	}
}
