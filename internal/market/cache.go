// Package market maintains the engine's view of the venue: the contract
// catalog, per-contract order books and ticker quotes.
package market

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/Andrei-Ionita/BRM-Trading-sub000/internal/brm"
	"github.com/Andrei-Ionita/BRM-Trading-sub000/pkg/units"
)

// Quote is the cached best bid/ask for one contract, in cents per MWh.
type Quote struct {
	Bid       units.Cents
	Ask       units.Cents
	HasBid    bool
	HasAsk    bool
	Timestamp int64
}

// Book is the cached order book for one contract. Levels are kept in the
// order the venue sent them; the venue sorts best-first.
type Book struct {
	BuyOrders  []brm.PriceLevel
	SellOrders []brm.PriceLevel
}

// Cache holds the current market view. It is confined to the engine
// goroutine, so it carries no locking.
type Cache struct {
	log       *slog.Logger
	contracts map[string]brm.WireContract
	books     map[string]Book
	quotes    map[string]Quote
}

// NewCache creates an empty market view.
func NewCache(log *slog.Logger) *Cache {
	return &Cache{
		log:       log,
		contracts: make(map[string]brm.WireContract),
		books:     make(map[string]Book),
		quotes:    make(map[string]Quote),
	}
}

// SetContracts replaces the whole contract catalog. Each catalog message
// is a full snapshot, so stale entries must not survive.
func (c *Cache) SetContracts(contracts []brm.WireContract) {
	c.contracts = make(map[string]brm.WireContract, len(contracts))
	for _, ct := range contracts {
		c.contracts[ct.Key()] = ct
	}
	c.log.Debug("contract catalog replaced", "count", len(contracts))
}

// Contract returns the catalog entry for a contract id.
func (c *Cache) Contract(id string) (brm.WireContract, bool) {
	ct, ok := c.contracts[id]
	return ct, ok
}

// ContractCount returns the catalog size.
func (c *Cache) ContractCount() int {
	return len(c.contracts)
}

// SetOrderBook replaces the book for one contract wholesale.
func (c *Cache) SetOrderBook(contractID string, buys, sells []brm.PriceLevel) {
	c.books[contractID] = Book{BuyOrders: buys, SellOrders: sells}
}

// SetTicker updates the quote for one contract. Updates with a timestamp
// older than the cached one are discarded: streams can deliver out of
// order after a reconnect.
func (c *Cache) SetTicker(entry brm.TickerEntry) {
	cached, ok := c.quotes[entry.ContractID]
	if ok && entry.Timestamp < cached.Timestamp {
		c.log.Debug("stale ticker discarded",
			"contract", entry.ContractID,
			"timestamp", entry.Timestamp,
			"cached", cached.Timestamp)
		return
	}

	q := Quote{Timestamp: entry.Timestamp}
	if entry.BidPrice != nil {
		q.Bid = units.CentsFromEUR(decimal.NewFromFloat(*entry.BidPrice))
		q.HasBid = true
	}
	if entry.AskPrice != nil {
		q.Ask = units.CentsFromEUR(decimal.NewFromFloat(*entry.AskPrice))
		q.HasAsk = true
	}
	c.quotes[entry.ContractID] = q
}

// BestBid returns the best bid for a contract: the ticker quote when
// present, otherwise the top of the cached book.
func (c *Cache) BestBid(contractID string) (units.Cents, bool) {
	if q, ok := c.quotes[contractID]; ok && q.HasBid {
		return q.Bid, true
	}
	if b, ok := c.books[contractID]; ok && len(b.BuyOrders) > 0 {
		return units.Cents(b.BuyOrders[0].Price), true
	}
	return 0, false
}

// BestAsk returns the best ask for a contract.
func (c *Cache) BestAsk(contractID string) (units.Cents, bool) {
	if q, ok := c.quotes[contractID]; ok && q.HasAsk {
		return q.Ask, true
	}
	if b, ok := c.books[contractID]; ok && len(b.SellOrders) > 0 {
		return units.Cents(b.SellOrders[0].Price), true
	}
	return 0, false
}

// MidPrice returns the midpoint of the best bid and ask.
func (c *Cache) MidPrice(contractID string) (units.Cents, bool) {
	bid, okBid := c.BestBid(contractID)
	ask, okAsk := c.BestAsk(contractID)
	if !okBid || !okAsk {
		return 0, false
	}
	return (bid + ask) / 2, true
}
