// Package orderbook implements the price-time-priority order book: a
// passive reflection of external market state, not a matcher. Two
// price-ordered levels (bids descending, asks ascending) each hold a
// time-ordered queue of resting orders.
package orderbook

import (
	"sort"
	"sync"

	"github.com/abdoElHodaky/algotrade/pkg/identifiers"
	"github.com/abdoElHodaky/algotrade/pkg/price"
)

// Side identifies a book side.
type Side int

const (
	// Buy is the bid side.
	Buy Side = iota
	// Sell is the ask side.
	Sell
)

// BookOrder is a single resting order on one side of the book.
type BookOrder struct {
	Side    Side
	Price   price.Price
	Size    price.Quantity
	OrderID uint64
}

// Level summarizes the aggregate size resting at one price.
type Level struct {
	Price price.Price
	Size  price.Quantity
}

// priceLevel is a price key plus its time-ordered queue of resting orders.
type priceLevel struct {
	price price.Price
	queue []BookOrder
}

// Book is a single instrument's order book: an ordered map (sorted slice
// of price levels) per side, each level holding a time-ordered queue of
// BookOrders, with cached best-bid/best-ask for O(1) top-of-book reads.
type Book struct {
	mu sync.RWMutex

	InstrumentId identifiers.InstrumentId

	bids []*priceLevel // sorted descending by price
	asks []*priceLevel // sorted ascending by price

	bidIndex map[int64]int // price.Raw() -> index into bids
	askIndex map[int64]int // price.Raw() -> index into asks

	sequence   uint64
	tsLast     uint64
	count      int
	bestBid    *price.Price
	bestAsk    *price.Price
}

// New creates an empty order book for instrument.
func New(instrument identifiers.InstrumentId) *Book {
	return &Book{
		InstrumentId: instrument,
		bidIndex:     make(map[int64]int),
		askIndex:     make(map[int64]int),
	}
}

// Add appends order to the queue at its price, creating the level if
// needed, and refreshes sequence/timestamp/cached tops. Appending to an
// existing level is O(1) via the price index; creating a new level is
// O(levels), since the sorted slice is shifted and every later level is
// reindexed.
func (b *Book) Add(order BookOrder, sequence uint64, tsEvent uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sequence = sequence
	b.tsLast = tsEvent

	switch order.Side {
	case Buy:
		b.insertInto(&b.bids, b.bidIndex, order, true)
	case Sell:
		b.insertInto(&b.asks, b.askIndex, order, false)
	}
	b.count++
	b.refreshTops()
}

// insertInto finds (or creates, in sorted position) the level for
// order.Price and appends order to its queue. descending selects bid
// ordering (highest first) vs ask ordering (lowest first).
func (b *Book) insertInto(levels *[]*priceLevel, index map[int64]int, order BookOrder, descending bool) {
	raw := order.Price.Raw()
	if idx, ok := index[raw]; ok {
		(*levels)[idx].queue = append((*levels)[idx].queue, order)
		return
	}

	newLevel := &priceLevel{price: order.Price, queue: []BookOrder{order}}
	pos := sort.Search(len(*levels), func(i int) bool {
		if descending {
			return (*levels)[i].price.Raw() <= raw
		}
		return (*levels)[i].price.Raw() >= raw
	})

	*levels = append(*levels, nil)
	copy((*levels)[pos+1:], (*levels)[pos:])
	(*levels)[pos] = newLevel

	// Reindex every level from pos onward (their positions shifted).
	for i := pos; i < len(*levels); i++ {
		index[(*levels)[i].price.Raw()] = i
	}
}

// Remove locates order_id on the given side/price and removes it,
// deleting the level if it becomes empty. O(1) to locate the level via
// the price index, O(queue length) to scan for the order id, and
// O(levels) to shift and reindex when an emptied level is deleted.
func (b *Book) Remove(orderID uint64, side Side, p price.Price) (BookOrder, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var levels *[]*priceLevel
	var index map[int64]int
	if side == Buy {
		levels = &b.bids
		index = b.bidIndex
	} else {
		levels = &b.asks
		index = b.askIndex
	}

	idx, ok := index[p.Raw()]
	if !ok {
		return BookOrder{}, false
	}
	level := (*levels)[idx]
	pos := -1
	for i, o := range level.queue {
		if o.OrderID == orderID {
			pos = i
			break
		}
	}
	if pos < 0 {
		return BookOrder{}, false
	}
	removed := level.queue[pos]
	level.queue = append(level.queue[:pos], level.queue[pos+1:]...)

	if len(level.queue) == 0 {
		*levels = append((*levels)[:idx], (*levels)[idx+1:]...)
		delete(index, p.Raw())
		for i := idx; i < len(*levels); i++ {
			index[(*levels)[i].price.Raw()] = i
		}
	}

	b.count--
	b.refreshTops()
	return removed, true
}

func (b *Book) refreshTops() {
	if len(b.bids) > 0 {
		p := b.bids[0].price
		b.bestBid = &p
	} else {
		b.bestBid = nil
	}
	if len(b.asks) > 0 {
		p := b.asks[0].price
		b.bestAsk = &p
	} else {
		b.bestAsk = nil
	}
}

// BestBidPrice returns the highest resting bid price, if any. O(1).
func (b *Book) BestBidPrice() (price.Price, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.bestBid == nil {
		return price.Price{}, false
	}
	return *b.bestBid, true
}

// BestAskPrice returns the lowest resting ask price, if any. O(1).
func (b *Book) BestAskPrice() (price.Price, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.bestAsk == nil {
		return price.Price{}, false
	}
	return *b.bestAsk, true
}

// Spread returns ask-bid as a raw scaled difference; ok is false if
// either side is empty.
func (b *Book) Spread() (spread int64, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.bestBid == nil || b.bestAsk == nil {
		return 0, false
	}
	return b.bestAsk.Raw() - b.bestBid.Raw(), true
}

// Depth returns the top n levels on side, in price-priority order, with
// each level's size summed across its queued orders.
func (b *Book) Depth(side Side, n int) []Level {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var levels []*priceLevel
	if side == Buy {
		levels = b.bids
	} else {
		levels = b.asks
	}
	if n <= 0 || n > len(levels) {
		n = len(levels)
	}
	out := make([]Level, 0, n)
	for i := 0; i < n; i++ {
		level := levels[i]
		var total price.Quantity
		for _, o := range level.queue {
			total, _ = total.CheckedAdd(o.Size)
		}
		out = append(out, Level{Price: level.price, Size: total})
	}
	return out
}

// WouldCrossSpread reports whether a marketable order on side at p would
// cross the opposite top of book.
func (b *Book) WouldCrossSpread(side Side, p price.Price) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if side == Buy {
		return b.bestAsk != nil && !p.LessThan(*b.bestAsk)
	}
	return b.bestBid != nil && !p.GreaterThan(*b.bestBid)
}

// Clear drops all book state, bumping the sequence and recording the
// clearing timestamp.
func (b *Book) Clear(sequence uint64, tsEvent uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bids = nil
	b.asks = nil
	b.bidIndex = make(map[int64]int)
	b.askIndex = make(map[int64]int)
	b.count = 0
	b.bestBid = nil
	b.bestAsk = nil
	b.sequence = sequence
	b.tsLast = tsEvent
}

// Count returns the total number of resting orders across both sides.
func (b *Book) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Sequence returns the book's current sequence counter.
func (b *Book) Sequence() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sequence
}

// TsLast returns the timestamp of the book's last mutation.
func (b *Book) TsLast() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tsLast
}

// CheckIntegrity verifies the book's published invariants: bid keys
// strictly descending, ask keys strictly ascending, no empty level
// retained, count equal to the sum of queue lengths, and cached tops
// equal to the keyset extremes. It is intended for use in tests.
func (b *Book) CheckIntegrity() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	sum := 0
	for i, lvl := range b.bids {
		if len(lvl.queue) == 0 {
			return false
		}
		sum += len(lvl.queue)
		if i > 0 && !b.bids[i-1].price.GreaterThan(lvl.price) {
			return false
		}
	}
	for i, lvl := range b.asks {
		if len(lvl.queue) == 0 {
			return false
		}
		sum += len(lvl.queue)
		if i > 0 && !lvl.price.GreaterThan(b.asks[i-1].price) {
			return false
		}
	}
	if sum != b.count {
		return false
	}
	if len(b.bids) > 0 {
		if b.bestBid == nil || !b.bestBid.Equal(b.bids[0].price) {
			return false
		}
	} else if b.bestBid != nil {
		return false
	}
	if len(b.asks) > 0 {
		if b.bestAsk == nil || !b.bestAsk.Equal(b.asks[0].price) {
			return false
		}
	} else if b.bestAsk != nil {
		return false
	}
	return true
}
