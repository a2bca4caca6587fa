package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side of a trade from the engine's point of view.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// IntervalRecord is the contracted state of one 15-minute delivery slot.
// All values are MW. Contracted is always recomputed from its inputs:
// contracted = da_sold + idm_sold - idm_bought.
type IntervalRecord struct {
	DASold     decimal.Decimal `json:"da_sold"`
	DAForecast decimal.Decimal `json:"da_forecast"`
	IDMSold    decimal.Decimal `json:"idm_sold"`
	IDMBought  decimal.Decimal `json:"idm_bought"`
	Contracted decimal.Decimal `json:"contracted"`
}

func (r *IntervalRecord) recompute() {
	r.Contracted = r.DASold.Add(r.IDMSold).Sub(r.IDMBought).Round(1)
}

// Position is the per-delivery-date ledger record. All 96 interval keys
// are always present. JSON keys of Intervals are "1".."96".
type Position struct {
	DeliveryDate string                  `json:"delivery_date"`
	Intervals    map[int]*IntervalRecord `json:"intervals"`
	LastUpdated  time.Time               `json:"last_updated"`
}

// NewPosition creates a position with all 96 intervals from day-ahead
// results. Missing intervals default to zero; contracted starts equal to
// da_sold. Deterministic for identical inputs apart from LastUpdated.
func NewPosition(deliveryDate string, daSold, daForecast map[int]decimal.Decimal) *Position {
	p := &Position{
		DeliveryDate: deliveryDate,
		Intervals:    make(map[int]*IntervalRecord, IntervalsPerDay),
		LastUpdated:  time.Now().UTC(),
	}
	for i := 1; i <= IntervalsPerDay; i++ {
		sold := daSold[i].Round(1)
		rec := &IntervalRecord{
			DASold:     sold,
			DAForecast: daForecast[i].Round(2),
			IDMSold:    decimal.Zero,
			IDMBought:  decimal.Zero,
			Contracted: sold,
		}
		p.Intervals[i] = rec
	}
	return p
}

// ApplyTrade adds a trade to an interval and recomputes contracted.
// Quantities are additive: applying the same trade twice double-counts it,
// so callers must apply each confirmed fill exactly once.
func (p *Position) ApplyTrade(interval int, side Side, quantityMW decimal.Decimal) error {
	rec, ok := p.Intervals[interval]
	if !ok {
		return fmt.Errorf("invalid interval %d", interval)
	}

	switch side {
	case SideBuy:
		rec.IDMBought = rec.IDMBought.Add(quantityMW).Round(1)
	case SideSell:
		rec.IDMSold = rec.IDMSold.Add(quantityMW).Round(1)
	default:
		return fmt.Errorf("invalid side %q", side)
	}

	rec.recompute()
	p.LastUpdated = time.Now().UTC()
	return nil
}

// Clone returns a deep copy for handing out as a snapshot.
func (p *Position) Clone() *Position {
	cp := &Position{
		DeliveryDate: p.DeliveryDate,
		Intervals:    make(map[int]*IntervalRecord, len(p.Intervals)),
		LastUpdated:  p.LastUpdated,
	}
	for i, rec := range p.Intervals {
		r := *rec
		cp.Intervals[i] = &r
	}
	return cp
}

// Contracted returns the contracted MW for an interval, zero if absent.
func (p *Position) Contracted(interval int) decimal.Decimal {
	if rec, ok := p.Intervals[interval]; ok {
		return rec.Contracted
	}
	return decimal.Zero
}
