package engine

import (
	"github.com/shopspring/decimal"

	"github.com/Andrei-Ionita/BRM-Trading-sub000/internal/domain"
	"github.com/Andrei-Ionita/BRM-Trading-sub000/internal/market"
	"github.com/Andrei-Ionita/BRM-Trading-sub000/pkg/units"
)

// Conservative defaults used when no quote is cached for a contract:
// buy wide above, sell wide below any plausible market price.
var (
	defaultBuyPrice  = units.Cents(20000) // 200.00 EUR/MWh
	defaultSellPrice = units.Cents(5000)  // 50.00 EUR/MWh

	// Crossing adjustments so limit orders execute immediately against
	// the resting side.
	buyAdjustment  = decimal.RequireFromString("1.01")
	sellAdjustment = decimal.RequireFromString("0.99")
)

// priceFor derives the limit price for a corrective order from the best
// opposite-side quote, slightly crossed, or the wide default when the
// cache has no quote for the contract.
func priceFor(cache *market.Cache, contractID string, side domain.Side) units.Cents {
	switch side {
	case domain.SideBuy:
		if ask, ok := cache.BestAsk(contractID); ok {
			return adjust(ask, buyAdjustment)
		}
		return defaultBuyPrice
	default:
		if bid, ok := cache.BestBid(contractID); ok {
			return adjust(bid, sellAdjustment)
		}
		return defaultSellPrice
	}
}

func adjust(price units.Cents, factor decimal.Decimal) units.Cents {
	return units.Cents(decimal.NewFromInt(int64(price)).Mul(factor).Round(0).IntPart())
}
