// Package identifiers provides the value types identifying instruments,
// orders, strategies, and venues across the trading engines.
package identifiers

import (
	"strings"
	"sync/atomic"

	"github.com/segmentio/ksuid"

	"github.com/abdoElHodaky/algotrade/internal/tradsyserr"
)

// InstrumentId identifies a tradable instrument as a (symbol, venue) pair,
// both normalized to uppercase ASCII and joined by a dot.
type InstrumentId struct {
	value string
}

// ParseInstrumentId parses "SYMBOL.VENUE", rejecting empty components or a
// component count other than exactly two.
func ParseInstrumentId(s string) (InstrumentId, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return InstrumentId{}, tradsyserr.Newf(tradsyserr.CodeInvalidIdentifier,
			"instrument id %q must contain exactly one '.'", s)
	}
	symbol, venue := parts[0], parts[1]
	if symbol == "" || venue == "" {
		return InstrumentId{}, tradsyserr.Newf(tradsyserr.CodeInvalidIdentifier,
			"instrument id %q has an empty symbol or venue component", s)
	}
	return NewInstrumentId(symbol, venue), nil
}

// NewInstrumentId builds an InstrumentId from separate symbol and venue
// components, normalizing both to uppercase.
func NewInstrumentId(symbol, venue string) InstrumentId {
	return InstrumentId{value: strings.ToUpper(symbol) + "." + strings.ToUpper(venue)}
}

// String returns the normalized "SYMBOL.VENUE" representation.
func (i InstrumentId) String() string { return i.value }

// Symbol returns the normalized symbol component.
func (i InstrumentId) Symbol() string {
	idx := strings.IndexByte(i.value, '.')
	if idx < 0 {
		return ""
	}
	return i.value[:idx]
}

// Venue returns the normalized venue component.
func (i InstrumentId) Venue() string {
	idx := strings.IndexByte(i.value, '.')
	if idx < 0 {
		return ""
	}
	return i.value[idx+1:]
}

// Equal reports whether two instrument ids refer to the same instrument.
func (i InstrumentId) Equal(other InstrumentId) bool { return i.value == other.value }

// IsZero reports whether the instrument id was never set.
func (i InstrumentId) IsZero() bool { return i.value == "" }

// orderIDCounter is the process-wide monotonic counter backing OrderId,
// starting at 1.
var orderIDCounter uint64

// OrderId is an opaque unsigned integer allocated by a process-wide
// monotonic counter.
type OrderId uint64

// NextOrderId allocates the next OrderId from the process-wide counter.
func NextOrderId() OrderId {
	return OrderId(atomic.AddUint64(&orderIDCounter, 1))
}

// VenueOrderId is an opaque string assigned by the venue.
type VenueOrderId string

// NewVenueOrderId generates a k-sortable opaque venue order id, used by
// test doubles and the mock venue adapter.
func NewVenueOrderId() VenueOrderId {
	return VenueOrderId(ksuid.New().String())
}

// StrategyId identifies a registered strategy.
type StrategyId string

// VenueId identifies a venue / exchange endpoint.
type VenueId string
