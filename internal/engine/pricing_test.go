package engine

import (
	"io"
	"log/slog"
	"testing"

	"github.com/Andrei-Ionita/BRM-Trading-sub000/internal/brm"
	"github.com/Andrei-Ionita/BRM-Trading-sub000/internal/domain"
	"github.com/Andrei-Ionita/BRM-Trading-sub000/internal/market"
	"github.com/Andrei-Ionita/BRM-Trading-sub000/pkg/units"
)

func TestPriceForDefaultsWithoutQuote(t *testing.T) {
	cache := market.NewCache(slog.New(slog.NewTextHandler(io.Discard, nil)))

	if got := priceFor(cache, "c", domain.SideBuy); got != units.Cents(20000) {
		t.Errorf("buy default = %d, want 20000", got)
	}
	if got := priceFor(cache, "c", domain.SideSell); got != units.Cents(5000) {
		t.Errorf("sell default = %d, want 5000", got)
	}
}

func TestPriceForCrossesTheSpread(t *testing.T) {
	cache := market.NewCache(slog.New(slog.NewTextHandler(io.Discard, nil)))
	cache.SetOrderBook("c",
		[]brm.PriceLevel{{Price: 5000, Quantity: 100}}, // best bid 50.00
		[]brm.PriceLevel{{Price: 6000, Quantity: 100}}, // best ask 60.00
	)

	// Buy crosses above the ask, sell below the bid.
	if got := priceFor(cache, "c", domain.SideBuy); got != units.Cents(6060) {
		t.Errorf("buy price = %d, want 6060", got)
	}
	if got := priceFor(cache, "c", domain.SideSell); got != units.Cents(4950) {
		t.Errorf("sell price = %d, want 4950", got)
	}
}
