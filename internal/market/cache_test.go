package market

import (
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Andrei-Ionita/BRM-Trading-sub000/internal/brm"
	"github.com/Andrei-Ionita/BRM-Trading-sub000/pkg/units"
)

func newTestCache() *Cache {
	return NewCache(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func f(v float64) *float64 { return &v }

func eurCents(v float64) units.Cents {
	return units.CentsFromEUR(decimal.NewFromFloat(v))
}

func TestSetContractsReplacesCatalog(t *testing.T) {
	c := newTestCache()

	c.SetContracts([]brm.WireContract{
		{ContractID: "BRM_ID_QH_20260824_12_1"},
		{ContractID: "BRM_ID_QH_20260824_12_2"},
	})
	if c.ContractCount() != 2 {
		t.Fatalf("count = %d, want 2", c.ContractCount())
	}

	// Full snapshot: the old entries must disappear.
	c.SetContracts([]brm.WireContract{{ContractID: "BRM_ID_QH_20260824_13_1"}})
	if c.ContractCount() != 1 {
		t.Fatalf("count after replace = %d, want 1", c.ContractCount())
	}
	if _, ok := c.Contract("BRM_ID_QH_20260824_12_1"); ok {
		t.Error("stale contract survived a catalog replacement")
	}
	if _, ok := c.Contract("BRM_ID_QH_20260824_13_1"); !ok {
		t.Error("new contract missing")
	}
}

func TestTickerMonotonicTimestamps(t *testing.T) {
	c := newTestCache()
	id := "BRM_ID_QH_20260824_12_1"

	c.SetTicker(brm.TickerEntry{ContractID: id, BidPrice: f(50.0), Timestamp: 200})

	// An older update must not overwrite the cached quote.
	c.SetTicker(brm.TickerEntry{ContractID: id, BidPrice: f(10.0), Timestamp: 100})

	bid, ok := c.BestBid(id)
	if !ok {
		t.Fatal("expected a bid")
	}
	if bid != eurCents(50.0) {
		t.Errorf("bid = %d, want %d", bid, eurCents(50.0))
	}

	// A newer update wins.
	c.SetTicker(brm.TickerEntry{ContractID: id, BidPrice: f(55.0), Timestamp: 300})
	bid, _ = c.BestBid(id)
	if bid != eurCents(55.0) {
		t.Errorf("bid = %d, want %d", bid, eurCents(55.0))
	}
}

func TestBestQuoteFallsBackToBook(t *testing.T) {
	c := newTestCache()
	id := "BRM_ID_QH_20260824_12_1"

	if _, ok := c.BestBid(id); ok {
		t.Fatal("empty cache must report no bid")
	}
	if _, ok := c.BestAsk(id); ok {
		t.Fatal("empty cache must report no ask")
	}

	c.SetOrderBook(id,
		[]brm.PriceLevel{{Price: 4800, Quantity: 1000}, {Price: 4700, Quantity: 500}},
		[]brm.PriceLevel{{Price: 5200, Quantity: 2000}},
	)

	bid, ok := c.BestBid(id)
	if !ok || bid != 4800 {
		t.Errorf("best bid = (%d, %v), want (4800, true)", bid, ok)
	}
	ask, ok := c.BestAsk(id)
	if !ok || ask != 5200 {
		t.Errorf("best ask = (%d, %v), want (5200, true)", ask, ok)
	}

	// A ticker quote takes precedence over the book.
	c.SetTicker(brm.TickerEntry{ContractID: id, BidPrice: f(49.0), Timestamp: 1})
	bid, _ = c.BestBid(id)
	if bid != eurCents(49.0) {
		t.Errorf("bid = %d, want ticker quote", bid)
	}
	// The ticker carried no ask, so the book still answers.
	ask, _ = c.BestAsk(id)
	if ask != 5200 {
		t.Errorf("ask = %d, want book top", ask)
	}
}

func TestOrderBookReplacedWholesale(t *testing.T) {
	c := newTestCache()
	id := "BRM_ID_QH_20260824_12_1"

	c.SetOrderBook(id, []brm.PriceLevel{{Price: 4800, Quantity: 1000}}, nil)
	c.SetOrderBook(id, nil, []brm.PriceLevel{{Price: 5100, Quantity: 700}})

	if _, ok := c.BestBid(id); ok {
		t.Error("old buy side survived a book replacement")
	}
	ask, ok := c.BestAsk(id)
	if !ok || ask != 5100 {
		t.Errorf("ask = (%d, %v), want (5100, true)", ask, ok)
	}
}

func TestMidPrice(t *testing.T) {
	c := newTestCache()
	id := "BRM_ID_QH_20260824_12_1"

	if _, ok := c.MidPrice(id); ok {
		t.Fatal("mid price needs both sides")
	}

	c.SetTicker(brm.TickerEntry{ContractID: id, BidPrice: f(48.0), AskPrice: f(52.0), Timestamp: 1})
	mid, ok := c.MidPrice(id)
	if !ok || mid != eurCents(50.0) {
		t.Errorf("mid = (%d, %v), want (%d, true)", mid, ok, eurCents(50.0))
	}
}
