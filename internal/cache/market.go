package cache

import (
	"strconv"
	"sync"

	"github.com/abdoElHodaky/algotrade/internal/bar"
	"github.com/abdoElHodaky/algotrade/internal/orderbook"
	"github.com/abdoElHodaky/algotrade/pkg/identifiers"
)

// Currency is a minimal currency record, keyed by its ISO-style code.
type Currency struct {
	Code      string
	Precision uint8
}

// MarketConfig configures the typed market/execution cache.
type MarketConfig struct {
	// MaxItemsPerType bounds the per-instrument deque of quotes, trades,
	// and bars.
	MaxItemsPerType int
	// EvictionPolicy is carried through for informational purposes only;
	// see DESIGN.md open-question decisions. Only capacity (above) is
	// contractually observable.
	EvictionPolicy string
}

// DefaultMarketConfig returns a MaxItemsPerType of 10,000 and the FIFO
// eviction policy tag.
func DefaultMarketConfig() MarketConfig {
	return MarketConfig{MaxItemsPerType: 10_000, EvictionPolicy: "FIFO"}
}

// QuoteTick is an immutable top-of-book snapshot.
type QuoteTick struct {
	InstrumentId identifiers.InstrumentId
	BidPrice     float64
	AskPrice     float64
	BidSize      float64
	AskSize      float64
	TsEvent      uint64
	TsInit       uint64
}

// AggressorSide identifies which side initiated a trade.
type AggressorSide int

const (
	// NoAggressor marks auction trades with no identifiable aggressor.
	NoAggressor AggressorSide = iota
	// Buyer marks a trade where the buy side was the aggressor.
	Buyer
	// Seller marks a trade where the sell side was the aggressor.
	Seller
)

// TradeTick is an immutable executed-trade record.
type TradeTick struct {
	InstrumentId identifiers.InstrumentId
	Price        float64
	Size         float64
	Aggressor    AggressorSide
	TsEvent      uint64
	TsInit       uint64
}

// boundedDeque is a ring-buffer-like slice capped at a maximum length,
// discarding the oldest entry on overflow.
type boundedDeque[T any] struct {
	items []T
	cap   int
}

func newBoundedDeque[T any](capacity int) *boundedDeque[T] {
	return &boundedDeque[T]{items: make([]T, 0, capacity), cap: capacity}
}

func (d *boundedDeque[T]) push(item T) {
	if d.cap > 0 && len(d.items) >= d.cap {
		d.items = d.items[1:]
	}
	d.items = append(d.items, item)
}

// recentReversed returns up to limit most-recently-pushed items, newest
// first.
func (d *boundedDeque[T]) recentReversed(limit int) []T {
	n := len(d.items)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]T, limit)
	for i := 0; i < limit; i++ {
		out[i] = d.items[n-1-i]
	}
	return out
}

// Market is the typed market/execution cache: O(1) insertion/lookup for
// currencies, instruments, order books, and bounded deques of quotes,
// trades, and bars, plus a secondary symbol/venue index. Each category
// uses its own reader-writer lock, so writes across categories are not
// atomic with respect to one another.
type Market struct {
	cfg MarketConfig

	currenciesMu sync.RWMutex
	currencies   map[string]Currency

	quotesMu sync.RWMutex
	quotes   map[string]*boundedDeque[QuoteTick]

	tradesMu sync.RWMutex
	trades   map[string]*boundedDeque[TradeTick]

	indexMu         sync.RWMutex
	symbolToInstr   map[string]identifiers.InstrumentId
	venueToInstrSet map[string]map[string]struct{}

	booksMu sync.RWMutex
	books   map[string]*orderbook.Book

	barsMu sync.RWMutex
	bars   map[string]*boundedDeque[bar.Bar]
}

// barKey builds the map key for a BarType: instrument plus aggregation
// mode and step, since two specifications over the same instrument are
// distinct series.
func barKey(bt bar.Type) string {
	return bt.InstrumentId.String() + "|" + barModeTag(bt.Spec.Aggregation) + "|" + strconv.FormatUint(bt.Spec.Step, 10)
}

func barModeTag(mode bar.AggregationMode) string {
	switch mode {
	case bar.Time:
		return "TIME"
	case bar.Tick:
		return "TICK"
	case bar.Volume:
		return "VOLUME"
	case bar.Dollar:
		return "DOLLAR"
	default:
		return "UNKNOWN"
	}
}

// NewMarket creates a typed market cache with the given configuration.
func NewMarket(cfg MarketConfig) *Market {
	return &Market{
		cfg:             cfg,
		currencies:      make(map[string]Currency),
		quotes:          make(map[string]*boundedDeque[QuoteTick]),
		trades:          make(map[string]*boundedDeque[TradeTick]),
		symbolToInstr:   make(map[string]identifiers.InstrumentId),
		venueToInstrSet: make(map[string]map[string]struct{}),
		books:           make(map[string]*orderbook.Book),
		bars:            make(map[string]*boundedDeque[bar.Bar]),
	}
}

// RegisterBook inserts (or replaces) the order book tracked for an
// instrument, giving O(1) subsequent lookup by instrument id.
func (m *Market) RegisterBook(id identifiers.InstrumentId, book *orderbook.Book) {
	m.booksMu.Lock()
	defer m.booksMu.Unlock()
	m.books[id.String()] = book
}

// GetBook looks up the order book registered for an instrument.
func (m *Market) GetBook(id identifiers.InstrumentId) (*orderbook.Book, bool) {
	m.booksMu.RLock()
	defer m.booksMu.RUnlock()
	b, ok := m.books[id.String()]
	return b, ok
}

// AddBar appends a completed bar to its BarType's bounded deque.
func (m *Market) AddBar(b bar.Bar) {
	key := barKey(b.Type)
	m.barsMu.Lock()
	defer m.barsMu.Unlock()
	dq, ok := m.bars[key]
	if !ok {
		dq = newBoundedDeque[bar.Bar](m.cfg.MaxItemsPerType)
		m.bars[key] = dq
	}
	dq.push(b)
}

// GetBars returns the most recent limit bars for a BarType, in
// reverse-chronological order.
func (m *Market) GetBars(bt bar.Type, limit int) []bar.Bar {
	m.barsMu.RLock()
	defer m.barsMu.RUnlock()
	dq, ok := m.bars[barKey(bt)]
	if !ok {
		return nil
	}
	return dq.recentReversed(limit)
}

// AddCurrency inserts or replaces a currency record.
func (m *Market) AddCurrency(c Currency) {
	m.currenciesMu.Lock()
	defer m.currenciesMu.Unlock()
	m.currencies[c.Code] = c
}

// GetCurrency looks up a currency by code.
func (m *Market) GetCurrency(code string) (Currency, bool) {
	m.currenciesMu.RLock()
	defer m.currenciesMu.RUnlock()
	c, ok := m.currencies[code]
	return c, ok
}

// IndexInstrument records an instrument in the secondary symbol/venue
// index, synchronously with the caller's primary instrument write.
func (m *Market) IndexInstrument(id identifiers.InstrumentId) {
	m.indexMu.Lock()
	defer m.indexMu.Unlock()
	m.symbolToInstr[id.Symbol()] = id
	set, ok := m.venueToInstrSet[id.Venue()]
	if !ok {
		set = make(map[string]struct{})
		m.venueToInstrSet[id.Venue()] = set
	}
	set[id.String()] = struct{}{}
}

// InstrumentBySymbol looks up an instrument id by its symbol component.
func (m *Market) InstrumentBySymbol(symbol string) (identifiers.InstrumentId, bool) {
	m.indexMu.RLock()
	defer m.indexMu.RUnlock()
	id, ok := m.symbolToInstr[symbol]
	return id, ok
}

// InstrumentsByVenue returns every instrument id indexed under venue.
func (m *Market) InstrumentsByVenue(venue string) []string {
	m.indexMu.RLock()
	defer m.indexMu.RUnlock()
	set, ok := m.venueToInstrSet[venue]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// AddQuote appends a quote tick to its instrument's bounded deque.
func (m *Market) AddQuote(tick QuoteTick) {
	key := tick.InstrumentId.String()
	m.quotesMu.Lock()
	defer m.quotesMu.Unlock()
	dq, ok := m.quotes[key]
	if !ok {
		dq = newBoundedDeque[QuoteTick](m.cfg.MaxItemsPerType)
		m.quotes[key] = dq
	}
	dq.push(tick)
}

// GetQuotes returns the most recent limit quote ticks for an instrument,
// in reverse-chronological order.
func (m *Market) GetQuotes(id identifiers.InstrumentId, limit int) []QuoteTick {
	m.quotesMu.RLock()
	defer m.quotesMu.RUnlock()
	dq, ok := m.quotes[id.String()]
	if !ok {
		return nil
	}
	return dq.recentReversed(limit)
}

// AddTrade appends a trade tick to its instrument's bounded deque.
func (m *Market) AddTrade(tick TradeTick) {
	key := tick.InstrumentId.String()
	m.tradesMu.Lock()
	defer m.tradesMu.Unlock()
	dq, ok := m.trades[key]
	if !ok {
		dq = newBoundedDeque[TradeTick](m.cfg.MaxItemsPerType)
		m.trades[key] = dq
	}
	dq.push(tick)
}

// GetTrades returns the most recent limit trade ticks for an instrument,
// in reverse-chronological order.
func (m *Market) GetTrades(id identifiers.InstrumentId, limit int) []TradeTick {
	m.tradesMu.RLock()
	defer m.tradesMu.RUnlock()
	dq, ok := m.trades[id.String()]
	if !ok {
		return nil
	}
	return dq.recentReversed(limit)
}
