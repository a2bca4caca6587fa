// Package engine runs the reconciliation loop: it compares the
// contracted position against the production forecast for a bounded
// look-ahead window and submits corrective orders for every interval
// whose imbalance exceeds the trading threshold.
package engine

import (
	"github.com/shopspring/decimal"

	"github.com/Andrei-Ionita/BRM-Trading-sub000/internal/domain"
	"github.com/Andrei-Ionita/BRM-Trading-sub000/pkg/units"
)

// Action is one corrective order the loop decided to submit.
type Action struct {
	Interval   int
	ContractID string
	Side       domain.Side
	QuantityMW decimal.Decimal
	Imbalance  decimal.Decimal
}

// tradeWindow returns the inclusive interval range under consideration:
// the width intervals after current, clamped to the end of the day.
// An empty window is signalled by from > to.
func tradeWindow(current, width int) (from, to int) {
	from = current + 1
	to = current + width
	if to > domain.IntervalsPerDay {
		to = domain.IntervalsPerDay
	}
	return from, to
}

// buildActions computes the corrective orders for one tick.
// imbalance = contracted - forecast; a positive imbalance means more was
// sold than will be produced, so the engine buys the difference back.
func buildActions(pos *domain.Position, forecastFor func(interval int) decimal.Decimal, current, width int, threshold decimal.Decimal) []Action {
	from, to := tradeWindow(current, width)

	var actions []Action
	for i := from; i <= to; i++ {
		imbalance := pos.Contracted(i).Sub(forecastFor(i))
		if imbalance.Abs().LessThan(threshold) {
			continue
		}
		quantity := units.RoundMW(imbalance.Abs())

		side := domain.SideSell
		if imbalance.IsPositive() {
			side = domain.SideBuy
		}
		actions = append(actions, Action{
			Interval:   i,
			ContractID: domain.ContractIDFor(pos.DeliveryDate, i, domain.ContractQuarterHourly),
			Side:       side,
			QuantityMW: quantity,
			Imbalance:  imbalance,
		})
	}
	return actions
}
