package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Andrei-Ionita/BRM-Trading-sub000/internal/brm"
	"github.com/Andrei-Ionita/BRM-Trading-sub000/internal/domain"
	"github.com/Andrei-Ionita/BRM-Trading-sub000/internal/execution"
	"github.com/Andrei-Ionita/BRM-Trading-sub000/internal/forecast"
	"github.com/Andrei-Ionita/BRM-Trading-sub000/internal/ledger"
	"github.com/Andrei-Ionita/BRM-Trading-sub000/internal/market"
	"github.com/Andrei-Ionita/BRM-Trading-sub000/pkg/units"
)

// State of the reconciliation loop, for logging and introspection.
type State int32

const (
	StateIdle State = iota
	StateComputing
	StateSubmitting
	StateSleeping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateComputing:
		return "computing"
	case StateSubmitting:
		return "submitting"
	case StateSleeping:
		return "sleeping"
	default:
		return "unknown"
	}
}

// Executor is the order-submission capability the loop drives.
type Executor interface {
	PlaceOrder(ctx context.Context, contractID string, interval int, side domain.Side, quantityMW decimal.Decimal, price units.Cents) (string, error)
	OnExecutionReport(ctx context.Context, report brm.ExecutionReport)
}

// ForecastHistory records forecast observations and answers the
// zero-forecast fallback lookup.
type ForecastHistory interface {
	SaveForecast(ctx context.Context, date string, interval int, mw decimal.Decimal) error
	LastNonzeroForecast(ctx context.Context, date string, interval int) (decimal.Decimal, bool, error)
}

// Config tunes one reconciliation run.
type Config struct {
	DeliveryDate    string
	WindowIntervals int
	ThresholdMW     decimal.Decimal
	GateClosure     time.Duration
	TickInterval    time.Duration
	SingleRun       bool
}

// Engine is the reconciliation loop. Stream events and the tick body all
// execute on the goroutine running Run, so the ledger, cache and
// executor need no locking.
type Engine struct {
	cfg      Config
	ledger   *ledger.Ledger
	cache    *market.Cache
	executor Executor
	provider forecast.Provider
	history  ForecastHistory
	log      *slog.Logger

	inbox chan brm.StreamEvent
	state State
	now   func() time.Time
}

// New creates the loop. history may be nil; the fallback then goes
// straight to the day-ahead forecast.
func New(cfg Config, l *ledger.Ledger, cache *market.Cache, exec Executor, provider forecast.Provider, history ForecastHistory, log *slog.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		ledger:   l,
		cache:    cache,
		executor: exec,
		provider: provider,
		history:  history,
		log:      log,
		inbox:    make(chan brm.StreamEvent, 1024),
		now:      time.Now,
	}
}

// Post hands a stream event to the loop. Session callbacks must not
// block, so a full inbox drops the event; every stream the engine
// consumes is snapshot-style and the next message supersedes it.
func (e *Engine) Post(ev brm.StreamEvent) {
	select {
	case e.inbox <- ev:
	default:
		e.log.Warn("engine inbox full, event dropped")
	}
}

// Run executes ticks until the context is cancelled or every interval of
// the delivery date lies in the past. Returns nil on both.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info("reconciliation loop started",
		"date", e.cfg.DeliveryDate,
		"window", e.cfg.WindowIntervals,
		"threshold_mw", e.cfg.ThresholdMW,
		"tick", e.cfg.TickInterval)

	for {
		e.drainInbox(ctx)

		if ctx.Err() != nil {
			return nil
		}

		done, err := e.tick(ctx)
		if err != nil {
			return err
		}
		if done {
			e.log.Info("delivery date complete", "date", e.cfg.DeliveryDate)
			return nil
		}
		if e.cfg.SingleRun {
			return nil
		}

		e.setState(StateSleeping)
		if !e.sleepUntil(ctx, e.nextBoundary()) {
			return nil
		}
	}
}

// tick runs one reconciliation pass. The bool result reports whether the
// delivery date is finished.
func (e *Engine) tick(ctx context.Context) (bool, error) {
	e.setState(StateComputing)

	current, done := e.currentInterval()
	if done {
		return true, nil
	}
	from, to := tradeWindow(current, e.cfg.WindowIntervals)
	if from > to {
		return true, nil
	}

	fc, err := e.provider.Forecast(ctx, e.cfg.DeliveryDate)
	if err != nil {
		// Business error: skip this tick, the loop continues.
		e.log.Error("forecast refresh failed, skipping tick", "err", err)
		e.setState(StateIdle)
		return false, nil
	}
	e.recordForecast(ctx, fc, from, to)

	pos := e.ledger.Position()
	if pos == nil {
		return false, errors.New("engine: ledger not initialized")
	}

	actions := buildActions(pos, func(interval int) decimal.Decimal {
		return e.effectiveForecast(ctx, fc, interval)
	}, current, e.cfg.WindowIntervals, e.cfg.ThresholdMW)

	if len(actions) == 0 {
		e.log.Info("position balanced", "current_interval", current, "window", []int{from, to})
		e.setState(StateIdle)
		return false, nil
	}

	e.setState(StateSubmitting)
	now := e.now()
	for _, a := range actions {
		if !domain.GateOpen(e.cfg.DeliveryDate, a.Interval, now, e.cfg.GateClosure) {
			e.log.Info("gate closed, interval skipped",
				"interval", a.Interval,
				"imbalance_mw", a.Imbalance)
			continue
		}

		price := priceFor(e.cache, a.ContractID, a.Side)
		e.log.Info("imbalance detected",
			"interval", a.Interval,
			"contract", a.ContractID,
			"imbalance_mw", a.Imbalance,
			"side", a.Side,
			"quantity_mw", a.QuantityMW,
			"price", price)

		if _, err := e.executor.PlaceOrder(ctx, a.ContractID, a.Interval, a.Side, a.QuantityMW, price); err != nil {
			if errors.Is(err, execution.ErrNotConnected) {
				e.log.Warn("session down, remaining intervals deferred to next tick")
				break
			}
			e.log.Error("order submission failed", "interval", a.Interval, "err", err)
		}
	}

	e.setState(StateIdle)
	return false, nil
}

// currentInterval maps wall-clock time onto the delivery date. Before
// the date it is 0 so the whole day is tradable; after it the run is
// finished.
func (e *Engine) currentInterval() (current int, done bool) {
	now := e.now().In(domain.VenueLocation())
	today := now.Format(domain.DateLayout)

	switch {
	case today < e.cfg.DeliveryDate:
		return 0, false
	case today > e.cfg.DeliveryDate:
		return 0, true
	default:
		current = domain.CurrentInterval(now)
		return current, current >= domain.IntervalsPerDay
	}
}

// effectiveForecast applies the zero-forecast fallback chain: live
// value, last non-zero historical observation, day-ahead forecast.
func (e *Engine) effectiveForecast(ctx context.Context, fc map[int]decimal.Decimal, interval int) decimal.Decimal {
	if v := fc[interval]; !v.IsZero() {
		return v
	}
	if e.history != nil {
		if v, ok, err := e.history.LastNonzeroForecast(ctx, e.cfg.DeliveryDate, interval); err == nil && ok {
			e.log.Debug("using historical forecast", "interval", interval, "mw", v)
			return v
		}
	}
	return e.ledger.DAForecast(interval)
}

func (e *Engine) recordForecast(ctx context.Context, fc map[int]decimal.Decimal, from, to int) {
	if e.history == nil {
		return
	}
	for i := from; i <= to; i++ {
		if v := fc[i]; !v.IsZero() {
			if err := e.history.SaveForecast(ctx, e.cfg.DeliveryDate, i, v); err != nil {
				e.log.Warn("forecast history write failed", "interval", i, "err", err)
			}
		}
	}
}

// drainInbox applies every queued stream event without blocking.
func (e *Engine) drainInbox(ctx context.Context) {
	for {
		select {
		case ev := <-e.inbox:
			e.handleEvent(ctx, ev)
		default:
			return
		}
	}
}

func (e *Engine) handleEvent(ctx context.Context, ev brm.StreamEvent) {
	switch ev := ev.(type) {
	case brm.ContractsEvent:
		e.cache.SetContracts(ev.Contracts)
	case brm.TickerEvent:
		for _, entry := range ev.Tickers {
			e.cache.SetTicker(entry)
		}
	case brm.LocalViewEvent:
		e.cache.SetOrderBook(ev.ContractID, ev.BuyOrders, ev.SellOrders)
	case brm.ExecutionReportEvent:
		for _, r := range ev.Reports {
			e.executor.OnExecutionReport(ctx, r)
		}
	case brm.PrivateTradeEvent:
		for _, t := range ev.Trades {
			e.log.Info("private trade confirmed",
				"trade_id", t.TradeID,
				"contract", t.ContractID,
				"side", t.Side,
				"quantity", t.Quantity,
				"price", t.Price)
		}
	case brm.DeliveryAreasEvent:
		e.log.Info("delivery areas received", "count", len(ev.Areas))
	case brm.ConfigurationEvent:
		e.log.Info("venue configuration received")
	case brm.UnknownEvent:
		e.log.Debug("unhandled stream event", "destination", ev.Destination)
	}
}

// nextBoundary returns the next tick-aligned instant strictly after now.
func (e *Engine) nextBoundary() time.Time {
	now := e.now()
	return now.Truncate(e.cfg.TickInterval).Add(e.cfg.TickInterval)
}

// sleepUntil waits for the deadline in short increments, processing
// stream events as they arrive. Returns false when cancelled.
func (e *Engine) sleepUntil(ctx context.Context, deadline time.Time) bool {
	for {
		remaining := deadline.Sub(e.now())
		if remaining <= 0 {
			return true
		}
		if remaining > time.Second {
			remaining = time.Second
		}

		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case ev := <-e.inbox:
			timer.Stop()
			e.handleEvent(ctx, ev)
		case <-timer.C:
		}
	}
}

func (e *Engine) setState(s State) {
	if e.state != s {
		e.log.Debug("state transition", "from", e.state, "to", s)
		e.state = s
	}
}
