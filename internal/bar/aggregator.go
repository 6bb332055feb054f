// Package bar implements OHLCV bar construction across the four
// aggregation modes: time, tick count, volume, and dollar value.
package bar

import (
	"sync"

	"github.com/abdoElHodaky/algotrade/pkg/identifiers"
)

// AggregationMode selects how a BarSpecification closes a bar.
type AggregationMode int

const (
	// Time closes a bar once Step nanoseconds have elapsed since the
	// bar's first tick.
	Time AggregationMode = iota
	// Tick closes a bar once Step trades have been folded in.
	Tick
	// Volume closes a bar once cumulative traded size reaches Step units.
	Volume
	// Dollar closes a bar once cumulative volume * close reaches Step.
	Dollar
)

// Specification is a (step, aggregation mode) pair.
type Specification struct {
	Step        uint64
	Aggregation AggregationMode
}

// Type identifies a bar series: an instrument plus a specification.
type Type struct {
	InstrumentId identifiers.InstrumentId
	Spec         Specification
}

// Trade is the minimal trade-tick view the aggregator consumes.
type Trade struct {
	InstrumentId identifiers.InstrumentId
	Price        float64
	Size         float64
	TsEvent      uint64
}

// Bar is a completed OHLCV tuple.
type Bar struct {
	Type      Type
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	TickCount uint64
	TsEvent   uint64
	TsInit    uint64
}

// maxRetainedBars bounds the completed-bar ring kept per aggregator.
const maxRetainedBars = 1000

// partial is the in-progress bar an Aggregator is building.
type partial struct {
	open      float64
	high      float64
	low       float64
	close     float64
	volume    float64
	tsStart   uint64
	tsLast    uint64
	tickCount uint64
}

// Aggregator maintains at most one open partial bar for a single BarType,
// and a bounded ring of completed bars. Aggregation is sequential: ticks
// must be fed in non-decreasing ts_event order for a given instrument;
// late ticks are silently folded into whatever bar is open (see
// DESIGN.md's open-question decision on monotonic ts_event).
type Aggregator struct {
	mu sync.Mutex

	barType   Type
	current   *partial
	completed []Bar
}

// NewAggregator creates an Aggregator for the given BarType.
func NewAggregator(barType Type) *Aggregator {
	return &Aggregator{barType: barType}
}

// Type returns the aggregator's BarType.
func (a *Aggregator) Type() Type { return a.barType }

// UpdateWithTrade folds a trade tick into the current partial bar,
// starting a fresh one if none is open, and evaluates the close
// predicate exactly once. It returns the completed Bar, if the predicate
// fired on this tick.
func (a *Aggregator) UpdateWithTrade(tick Trade) (Bar, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current == nil {
		a.current = &partial{
			open:      tick.Price,
			high:      tick.Price,
			low:       tick.Price,
			close:     tick.Price,
			volume:    tick.Size,
			tsStart:   tick.TsEvent,
			tsLast:    tick.TsEvent,
			tickCount: 1,
		}
	} else {
		p := a.current
		if tick.Price > p.high {
			p.high = tick.Price
		}
		if tick.Price < p.low {
			p.low = tick.Price
		}
		p.close = tick.Price
		p.volume += tick.Size
		p.tsLast = tick.TsEvent
		p.tickCount++
	}

	if !a.shouldClose(tick.TsEvent) {
		return Bar{}, false
	}
	return a.closeCurrent(tick.TsEvent), true
}

func (a *Aggregator) shouldClose(tsEvent uint64) bool {
	p := a.current
	switch a.barType.Spec.Aggregation {
	case Tick:
		return p.tickCount >= a.barType.Spec.Step
	case Volume:
		return p.volume >= float64(a.barType.Spec.Step)
	case Dollar:
		return p.volume*p.close >= float64(a.barType.Spec.Step)
	case Time:
		return tsEvent >= p.tsStart && tsEvent-p.tsStart >= a.barType.Spec.Step
	default:
		return false
	}
}

func (a *Aggregator) closeCurrent(tsInit uint64) Bar {
	p := a.current
	b := Bar{
		Type:      a.barType,
		Open:      p.open,
		High:      p.high,
		Low:       p.low,
		Close:     p.close,
		Volume:    p.volume,
		TickCount: p.tickCount,
		TsEvent:   p.tsLast,
		TsInit:    tsInit,
	}
	a.current = nil

	a.completed = append(a.completed, b)
	if len(a.completed) > maxRetainedBars {
		a.completed = a.completed[len(a.completed)-maxRetainedBars:]
	}
	return b
}

// RecentBars returns up to count most-recently-completed bars, oldest
// first within the returned slice.
func (a *Aggregator) RecentBars(count int) []Bar {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := len(a.completed)
	start := n - count
	if count <= 0 || start < 0 {
		start = 0
	}
	out := make([]Bar, n-start)
	copy(out, a.completed[start:])
	return out
}
