// Package execution submits orders over the STOMP session, tracks them
// by client order id and reconciles execution reports back into the
// position ledger.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Andrei-Ionita/BRM-Trading-sub000/internal/brm"
	"github.com/Andrei-Ionita/BRM-Trading-sub000/internal/domain"
	"github.com/Andrei-Ionita/BRM-Trading-sub000/internal/infra"
	"github.com/Andrei-Ionita/BRM-Trading-sub000/internal/storage"
	"github.com/Andrei-Ionita/BRM-Trading-sub000/pkg/units"
)

// ErrNotConnected is returned by PlaceOrder when the session is down.
var ErrNotConnected = errors.New("executor: session not connected")

// OrderSender is the session capability the executor needs.
type OrderSender interface {
	Connected() bool
	Send(destination string, body []byte, receiptID string) error
}

// LedgerWriter applies confirmed and optimistic trades to the position.
type LedgerWriter interface {
	ApplyTrade(ctx context.Context, interval int, side domain.Side, quantityMW decimal.Decimal) error
}

// TradeJournal records every submission and terminal outcome.
type TradeJournal interface {
	SaveTrade(ctx context.Context, t storage.TradeRecord) error
}

// Config carries the venue identifiers orders are stamped with.
type Config struct {
	PortfolioID    string
	DeliveryAreaID int
	Destination    string
	DeliveryDate   string
	TestEnv        bool
	DryRun         bool
}

// Executor owns the pending-order set. It is confined to the engine
// goroutine.
type Executor struct {
	cfg     Config
	session OrderSender
	ledger  LedgerWriter
	journal TradeJournal
	limiter *infra.RateLimiter
	log     *slog.Logger

	pending map[string]*domain.PendingOrder // keyed by client order id
}

// New creates an executor. limiter throttles order submission to the
// venue's request budget; nil disables throttling.
func New(cfg Config, session OrderSender, ledger LedgerWriter, journal TradeJournal, limiter *infra.RateLimiter, log *slog.Logger) *Executor {
	return &Executor{
		cfg:     cfg,
		session: session,
		ledger:  ledger,
		journal: journal,
		limiter: limiter,
		log:     log,
		pending: make(map[string]*domain.PendingOrder),
	}
}

// PendingCount returns the number of in-flight orders.
func (e *Executor) PendingCount() int {
	return len(e.pending)
}

// PlaceOrder submits one limit order and returns the request id. The
// position is updated optimistically before any execution report, so the
// next tick sees in-flight intent instead of re-trading the same
// imbalance.
func (e *Executor) PlaceOrder(ctx context.Context, contractID string, interval int, side domain.Side, quantityMW decimal.Decimal, price units.Cents) (string, error) {
	quantityMW = units.RoundMW(quantityMW)
	if quantityMW.LessThan(units.MinTradeMW) {
		return "", fmt.Errorf("quantity %s MW below minimum tradable size", quantityMW)
	}

	if e.cfg.DryRun {
		e.log.Info("dry run: would place order",
			"contract", contractID,
			"interval", interval,
			"side", side,
			"quantity_mw", quantityMW,
			"price", price)
		return "", nil
	}

	if !e.session.Connected() {
		return "", ErrNotConnected
	}
	if e.limiter != nil {
		e.limiter.Wait()
	}

	requestID := uuid.NewString()
	clientOrderID := uuid.NewString()

	req := brm.OrderEntryRequest{
		RequestID:       requestID,
		RejectPartially: false,
		Orders: []brm.OrderEntry{{
			PortfolioID:          e.cfg.PortfolioID,
			ContractIDs:          []string{contractID},
			DeliveryAreaID:       e.cfg.DeliveryAreaID,
			Side:                 string(side),
			OrderType:            brm.OrderTypeLimit,
			UnitPrice:            int64(price),
			Quantity:             units.MWToVenueQty(quantityMW, e.cfg.TestEnv),
			TimeInForce:          brm.TimeInForceIOC,
			ExecutionRestriction: brm.ExecutionRestrictionNone,
			State:                brm.OrderStateActive,
			ClientOrderID:        clientOrderID,
		}},
	}
	body, err := req.Encode()
	if err != nil {
		return "", err
	}
	if err := e.session.Send(e.cfg.Destination, body, requestID); err != nil {
		return "", fmt.Errorf("send order: %w", err)
	}

	order := &domain.PendingOrder{
		RequestID:     requestID,
		ClientOrderID: clientOrderID,
		ContractID:    contractID,
		Interval:      interval,
		Side:          side,
		QuantityMW:    quantityMW,
		Price:         price,
		Status:        domain.OrderPending,
		CreatedAt:     time.Now().UTC(),
	}
	e.pending[clientOrderID] = order

	if err := e.ledger.ApplyTrade(ctx, interval, side, quantityMW); err != nil {
		e.log.Error("optimistic position update failed", "client_order_id", clientOrderID, "err", err)
	} else {
		order.LedgerApplied = true
	}

	e.journalTrade(ctx, order, "SUBMITTED")
	e.log.Info("order submitted",
		"contract", contractID,
		"interval", interval,
		"side", side,
		"quantity_mw", quantityMW,
		"price", price,
		"client_order_id", clientOrderID)
	return requestID, nil
}

// OnExecutionReport reconciles one venue report against the pending set.
// Unmatched reports are logged and dropped: the client order id is the
// sole correlation key, so an unmatched report means a stale restart or
// a duplicate delivery, neither actionable.
func (e *Executor) OnExecutionReport(ctx context.Context, report brm.ExecutionReport) {
	order, ok := e.pending[report.ClientOrderID]
	if !ok {
		e.log.Warn("execution report for unknown order",
			"client_order_id", report.ClientOrderID,
			"status", report.Status())
		return
	}

	status := classifyReportStatus(report.Status())
	switch status {
	case domain.OrderFilled:
		filled := units.VenueQtyToMW(report.ExecutedQuantity, e.cfg.TestEnv)
		if filled.IsZero() {
			filled = order.QuantityMW
		}
		// The optimistic update at submission already credited this
		// quantity; apply only when that write failed.
		if !order.LedgerApplied {
			if err := e.ledger.ApplyTrade(ctx, order.Interval, order.Side, filled); err != nil {
				e.log.Error("position update on fill failed", "client_order_id", order.ClientOrderID, "err", err)
			}
		}
		order.Status = domain.OrderFilled
		e.journalTrade(ctx, order, "FILLED")
		e.log.Info("order filled",
			"client_order_id", order.ClientOrderID,
			"contract", order.ContractID,
			"quantity_mw", filled)

	case domain.OrderRejected, domain.OrderCancelled:
		order.Status = status
		e.journalTrade(ctx, order, string(status))
		e.log.Warn("order not executed",
			"client_order_id", order.ClientOrderID,
			"contract", order.ContractID,
			"status", status)

	default:
		// Intermediate state; keep waiting for a terminal report.
		e.log.Debug("non-terminal execution report",
			"client_order_id", order.ClientOrderID,
			"status", report.Status())
		return
	}

	delete(e.pending, report.ClientOrderID)
}

func (e *Executor) journalTrade(ctx context.Context, order *domain.PendingOrder, status string) {
	if e.journal == nil {
		return
	}
	err := e.journal.SaveTrade(ctx, storage.TradeRecord{
		DeliveryDate:  e.cfg.DeliveryDate,
		Interval:      order.Interval,
		ContractID:    order.ContractID,
		ClientOrderID: order.ClientOrderID,
		Side:          order.Side,
		QuantityMW:    order.QuantityMW,
		Price:         order.Price,
		Status:        status,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		e.log.Warn("trade journal write failed", "client_order_id", order.ClientOrderID, "err", err)
	}
}

// classifyReportStatus maps the venue's report state variants onto the
// local order lifecycle.
func classifyReportStatus(s string) domain.OrderStatus {
	switch s {
	case "FILL", "FILLED", "EXECUTED":
		return domain.OrderFilled
	case "REJE", "REJECTED":
		return domain.OrderRejected
	case "CANC", "CANCELLED":
		return domain.OrderCancelled
	default:
		return domain.OrderPending
	}
}
