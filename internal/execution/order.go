// Package execution implements the Execution Engine: order lifecycle
// management, venue routing, and fill application against pluggable
// venue adapters.
package execution

import (
	"github.com/abdoElHodaky/algotrade/internal/orderbook"
	"github.com/abdoElHodaky/algotrade/internal/tradsyserr"
	"github.com/abdoElHodaky/algotrade/pkg/clock"
	"github.com/abdoElHodaky/algotrade/pkg/identifiers"
	"github.com/abdoElHodaky/algotrade/pkg/price"
)

// Side reuses the order book's bid/ask side so an Order's side and the
// book it eventually reflects agree on representation.
type Side = orderbook.Side

const (
	// Buy is a bid-side order.
	Buy = orderbook.Buy
	// Sell is an ask-side order.
	Sell = orderbook.Sell
)

// OrderType selects how an order's price is determined.
type OrderType int

const (
	Market OrderType = iota
	Limit
	Stop
	StopLimit
)

// TimeInForce governs how long an order persists before the venue
// discards it.
type TimeInForce int

const (
	GTC TimeInForce = iota
	IOC
	FOK
	GTD
	DAY
)

// Status is a position in the order state machine.
type Status int

const (
	Initialized Status = iota
	Submitted
	Accepted
	PartiallyFilled
	Filled
	Cancelled
	Rejected
	Expired
)

// String names a status for logging.
func (s Status) String() string {
	switch s {
	case Initialized:
		return "Initialized"
	case Submitted:
		return "Submitted"
	case Accepted:
		return "Accepted"
	case PartiallyFilled:
		return "PartiallyFilled"
	case Filled:
		return "Filled"
	case Cancelled:
		return "Cancelled"
	case Rejected:
		return "Rejected"
	case Expired:
		return "Expired"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether no further mutation is permitted.
func (s Status) IsTerminal() bool {
	switch s {
	case Filled, Cancelled, Rejected, Expired:
		return true
	default:
		return false
	}
}

// IsActive reports whether an order in this status belongs in the
// active-order index.
func (s Status) IsActive() bool {
	switch s {
	case Submitted, Accepted, PartiallyFilled:
		return true
	default:
		return false
	}
}

// validTransitions enumerates the state machine's allowed edges. Any
// pair absent here is rejected.
var validTransitions = map[Status][]Status{
	Initialized:     {Submitted},
	Submitted:       {Accepted, Rejected, PartiallyFilled, Filled, Cancelled, Expired},
	Accepted:        {PartiallyFilled, Filled, Cancelled, Expired},
	PartiallyFilled: {PartiallyFilled, Filled, Cancelled, Expired},
}

func isValidTransition(from, to Status) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Order is the unit the execution engine tracks from submission to
// completion. Invariant: 0 <= FilledQuantity <= Quantity; AvgFillPrice
// is present iff FilledQuantity > 0.
type Order struct {
	OrderId      identifiers.OrderId
	StrategyId   identifiers.StrategyId
	InstrumentId identifiers.InstrumentId
	VenueOrderId identifiers.VenueOrderId
	HasVenueId   bool

	Side        Side
	Type        OrderType
	Quantity    price.Quantity
	LimitPrice  price.Price
	HasLimit    bool
	StopPrice   price.Price
	HasStop     bool
	TimeInForce TimeInForce

	Status          Status
	FilledQuantity  price.Quantity
	AvgFillPrice    price.Price
	HasAvgFillPrice bool
	Commission      float64

	CreatedTime clock.UnixNanos
	UpdatedTime clock.UnixNanos

	Tags map[string]string
}

// NewOrder builds an order in the Initialized state.
func NewOrder(strategyId identifiers.StrategyId, instrumentId identifiers.InstrumentId, side Side, typ OrderType, quantity price.Quantity, tif TimeInForce) *Order {
	now := clock.Now()
	return &Order{
		OrderId:      identifiers.NextOrderId(),
		StrategyId:   strategyId,
		InstrumentId: instrumentId,
		Side:         side,
		Type:         typ,
		Quantity:     quantity,
		TimeInForce:  tif,
		Status:       Initialized,
		CreatedTime:  now,
		UpdatedTime:  now,
		Tags:         make(map[string]string),
	}
}

// WithLimitPrice sets the order's limit price and returns it for chaining.
func (o *Order) WithLimitPrice(p price.Price) *Order {
	o.LimitPrice = p
	o.HasLimit = true
	return o
}

// WithStopPrice sets the order's stop price and returns it for chaining.
func (o *Order) WithStopPrice(p price.Price) *Order {
	o.StopPrice = p
	o.HasStop = true
	return o
}

// transition moves the order to newStatus, rejecting the mutation if the
// order is already terminal or the edge is not in validTransitions.
func (o *Order) transition(newStatus Status) error {
	if o.Status.IsTerminal() {
		return tradsyserr.Newf(tradsyserr.CodeOrderNotActive,
			"order %d is terminal (%s), cannot transition to %s", o.OrderId, o.Status, newStatus)
	}
	if !isValidTransition(o.Status, newStatus) {
		return tradsyserr.Newf(tradsyserr.CodeOrderNotActive,
			"order %d: invalid transition %s -> %s", o.OrderId, o.Status, newStatus)
	}
	o.Status = newStatus
	o.UpdatedTime = clock.Now()
	return nil
}

// Fill is a single execution event applied atomically to its order; no
// partial fill is ever undone.
type Fill struct {
	OrderId           identifiers.OrderId
	VenueFillId       string
	Price             price.Price
	Quantity          price.Quantity
	Timestamp         clock.UnixNanos
	Commission        float64
	CommissionCcy     string
}

// applyFill updates the order's filled-quantity, volume-weighted average
// fill price, and commission, then transitions status to Filled or
// PartiallyFilled. Returns an error, leaving the order unchanged, if the
// fill would exceed the order's remaining quantity or the order cannot
// take the resulting status transition (for example, it is terminal).
func (o *Order) applyFill(f Fill) error {
	prevFilled := o.FilledQuantity
	prevAvg := o.AvgFillPrice

	newFilled, err := prevFilled.CheckedAdd(f.Quantity)
	if err != nil {
		return err
	}
	if o.Quantity.LessThan(newFilled) {
		return tradsyserr.Newf(tradsyserr.CodeInvalidArgument,
			"order %d: fill would exceed order quantity", o.OrderId)
	}
	target := PartiallyFilled
	if newFilled.GreaterThanOrEqual(o.Quantity) {
		target = Filled
	}
	if o.Status.IsTerminal() || !isValidTransition(o.Status, target) {
		return o.transition(target)
	}

	var newAvg price.Price
	if prevFilled.IsZero() {
		newAvg = f.Price
	} else {
		prevNotional := prevAvg.AsFloat64() * prevFilled.AsFloat64()
		fillNotional := f.Price.AsFloat64() * f.Quantity.AsFloat64()
		avgFloat := (prevNotional + fillNotional) / newFilled.AsFloat64()
		newAvg, err = price.PriceFromFloat(avgFloat, price.PricePrecision)
		if err != nil {
			return err
		}
	}

	o.FilledQuantity = newFilled
	o.AvgFillPrice = newAvg
	o.HasAvgFillPrice = true
	o.Commission += f.Commission

	return o.transition(target)
}

// IsComplete reports whether the order has left the active set for good.
func (o *Order) IsComplete() bool { return o.Status.IsTerminal() }
