package execution

import (
	"encoding/json"

	"github.com/abdoElHodaky/algotrade/pkg/clock"
	"github.com/abdoElHodaky/algotrade/pkg/identifiers"
)

const (
	TopicOrdersSubmitted = "orders.submitted"
	TopicOrdersCancelled = "orders.cancelled"
	TopicOrdersFilled    = "orders.filled"
	TopicOrdersRejected  = "orders.rejected"
)

// OrderEvent is the payload published on the orders.* topics.
type OrderEvent struct {
	OrderId         identifiers.OrderId   `json:"order_id"`
	StrategyId      identifiers.StrategyId `json:"strategy_id"`
	InstrumentId    string                `json:"instrument_id"`
	VenueOrderId    identifiers.VenueOrderId `json:"venue_order_id,omitempty"`
	Status          string                `json:"status"`
	FilledQuantity  float64               `json:"filled_quantity"`
	AvgFillPrice    float64               `json:"avg_fill_price,omitempty"`
	Reason          string                `json:"reason,omitempty"`
	Timestamp       clock.UnixNanos       `json:"timestamp"`
}

func newOrderEvent(o *Order, reason string) OrderEvent {
	ev := OrderEvent{
		OrderId:        o.OrderId,
		StrategyId:     o.StrategyId,
		InstrumentId:   o.InstrumentId.String(),
		Status:         o.Status.String(),
		FilledQuantity: o.FilledQuantity.AsFloat64(),
		Reason:         reason,
		Timestamp:      clock.Now(),
	}
	if o.HasVenueId {
		ev.VenueOrderId = o.VenueOrderId
	}
	if o.HasAvgFillPrice {
		ev.AvgFillPrice = o.AvgFillPrice.AsFloat64()
	}
	return ev
}

func encodeEvent(ev OrderEvent) []byte {
	payload, err := json.Marshal(ev)
	if err != nil {
		// OrderEvent contains only primitive fields; marshaling cannot
		// fail short of an out-of-memory condition.
		panic(err)
	}
	return payload
}
