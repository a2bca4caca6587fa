package units

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Cents is a price in integer minor currency units (EUR cents per MWh).
// The venue rejects prices that are not expressible as whole cents.
type Cents int64

var (
	hundred  = decimal.NewFromInt(100)
	four     = decimal.NewFromInt(4)
	thousand = decimal.NewFromInt(1000)

	// MinTradeMW is the smallest tradable quantity on the intraday market.
	MinTradeMW = decimal.RequireFromString("0.1")
)

// CentsFromEUR converts a EUR/MWh price to whole cents, rounding half up.
func CentsFromEUR(eur decimal.Decimal) Cents {
	return Cents(eur.Mul(hundred).Round(0).IntPart())
}

// EUR returns the price in EUR/MWh.
func (c Cents) EUR() decimal.Decimal {
	return decimal.NewFromInt(int64(c)).Div(hundred)
}

func (c Cents) String() string {
	return fmt.Sprintf("%s EUR", c.EUR().StringFixed(2))
}

// RoundMW rounds a power value to the market's 0.1 MW resolution.
func RoundMW(mw decimal.Decimal) decimal.Decimal {
	return mw.Round(1)
}

// MWhToMW converts 15-minute interval energy to average power (MWh * 4).
func MWhToMW(mwh decimal.Decimal) decimal.Decimal {
	return mwh.Mul(four)
}

// MWToMWh converts average power to 15-minute interval energy (MW / 4).
func MWToMWh(mw decimal.Decimal) decimal.Decimal {
	return mw.Div(four)
}

// MWToVenueQty converts MW to the venue's integer volume unit.
// The test environment trades in kW, production in whole MW.
func MWToVenueQty(mw decimal.Decimal, testEnv bool) int64 {
	if testEnv {
		return mw.Mul(thousand).Round(0).IntPart()
	}
	return mw.Round(0).IntPart()
}

// VenueQtyToMW converts the venue's integer volume unit back to MW.
func VenueQtyToMW(qty int64, testEnv bool) decimal.Decimal {
	d := decimal.NewFromInt(qty)
	if testEnv {
		return d.Div(thousand)
	}
	return d
}
