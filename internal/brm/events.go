package brm

import (
	"encoding/json"
	"strings"
)

// StreamEvent is a typed event decoded from a MESSAGE frame at the
// session boundary. Downstream components switch on the concrete type
// instead of matching destination strings.
type StreamEvent interface {
	streamEvent()
}

// WireContract is a contract catalog entry as sent by the venue.
type WireContract struct {
	ID            string `json:"id"`
	ContractID    string `json:"contractId"`
	Name          string `json:"name"`
	DeliveryStart string `json:"deliveryStart"`
	DeliveryEnd   string `json:"deliveryEnd"`
	AreaCode      string `json:"areaCode"`
	Status        string `json:"status"`
}

// Key returns whichever id field the venue populated.
func (c WireContract) Key() string {
	if c.ID != "" {
		return c.ID
	}
	return c.ContractID
}

// PriceLevel is one order-book level. Prices are integer cents, volumes
// integer venue volume units.
type PriceLevel struct {
	Price    int64 `json:"price"`
	Quantity int64 `json:"quantity"`
}

// TickerEntry carries last/bid/ask/volume for one contract. Prices are
// EUR per MWh as sent by the venue's ticker stream.
type TickerEntry struct {
	ContractID string   `json:"contractId"`
	LastPrice  *float64 `json:"lastPrice"`
	BidPrice   *float64 `json:"bidPrice"`
	AskPrice   *float64 `json:"askPrice"`
	Volume     float64  `json:"volume"`
	Timestamp  int64    `json:"timestamp"`
}

// DeliveryArea describes one tradable delivery area.
type DeliveryArea struct {
	DeliveryAreaID int    `json:"deliveryAreaId"`
	AreaCode       string `json:"areaCode"`
	Name           string `json:"name"`
}

// ExecutionReport is the venue's order state notification.
type ExecutionReport struct {
	OrderID          string `json:"orderId"`
	ClientOrderID    string `json:"clientOrderId"`
	State            string `json:"state"`
	OrderState       string `json:"orderState"`
	ExecutedQuantity int64  `json:"executedQuantity"`
}

// Status returns whichever state field the venue populated.
func (r ExecutionReport) Status() string {
	if r.State != "" {
		return r.State
	}
	return r.OrderState
}

// PrivateTrade is a trade confirmation on the private stream.
type PrivateTrade struct {
	TradeID    string `json:"tradeId"`
	ContractID string `json:"contractId"`
	Side       string `json:"side"`
	Quantity   int64  `json:"quantity"`
	Price      int64  `json:"price"`
}

type ContractsEvent struct{ Contracts []WireContract }

type DeliveryAreasEvent struct{ Areas []DeliveryArea }

type TickerEvent struct{ Tickers []TickerEntry }

// LocalViewEvent is a wholesale order-book replacement for one contract.
type LocalViewEvent struct {
	ContractID string       `json:"contractId"`
	BuyOrders  []PriceLevel `json:"buyOrders"`
	SellOrders []PriceLevel `json:"sellOrders"`
}

type ExecutionReportEvent struct{ Reports []ExecutionReport }

type PrivateTradeEvent struct{ Trades []PrivateTrade }

// ConfigurationEvent carries portfolios, areas and throttle limits; the
// engine only logs it, so the payload stays raw.
type ConfigurationEvent struct{ Raw json.RawMessage }

// UnknownEvent preserves messages from destinations the engine does not
// model.
type UnknownEvent struct {
	Destination string
	Raw         json.RawMessage
}

func (ContractsEvent) streamEvent()       {}
func (DeliveryAreasEvent) streamEvent()   {}
func (TickerEvent) streamEvent()          {}
func (LocalViewEvent) streamEvent()       {}
func (ExecutionReportEvent) streamEvent() {}
func (PrivateTradeEvent) streamEvent()    {}
func (ConfigurationEvent) streamEvent()   {}
func (UnknownEvent) streamEvent()         {}

// DecodeStreamEvent turns a MESSAGE frame's destination and body into a
// typed event. The venue sends both bare arrays and wrapper objects, so
// each branch accepts either shape.
func DecodeStreamEvent(destination string, body []byte) (StreamEvent, error) {
	switch {
	case strings.Contains(destination, "orderExecutionReport"):
		var ev ExecutionReportEvent
		if err := decodeListOrWrapper(body, "orderExecutionReports", &ev.Reports); err != nil {
			// A single report object is also legal.
			var one ExecutionReport
			if err2 := json.Unmarshal(body, &one); err2 != nil {
				return nil, err
			}
			ev.Reports = []ExecutionReport{one}
		}
		return ev, nil

	case strings.Contains(destination, "privateTrade"):
		var ev PrivateTradeEvent
		if err := decodeListOrWrapper(body, "privateTrades", &ev.Trades); err != nil {
			var one PrivateTrade
			if err2 := json.Unmarshal(body, &one); err2 != nil {
				return nil, err
			}
			ev.Trades = []PrivateTrade{one}
		}
		return ev, nil

	case strings.Contains(destination, "localview"):
		var ev LocalViewEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return nil, err
		}
		return ev, nil

	case strings.Contains(destination, "contracts"):
		var ev ContractsEvent
		if err := decodeListOrWrapper(body, "contracts", &ev.Contracts); err != nil {
			return nil, err
		}
		return ev, nil

	case strings.Contains(destination, "ticker"):
		var ev TickerEvent
		if err := decodeListOrWrapper(body, "tickers", &ev.Tickers); err != nil {
			return nil, err
		}
		return ev, nil

	case strings.Contains(destination, "deliveryAreas"):
		var ev DeliveryAreasEvent
		if err := decodeListOrWrapper(body, "deliveryAreas", &ev.Areas); err != nil {
			return nil, err
		}
		return ev, nil

	case strings.Contains(destination, "configuration"):
		return ConfigurationEvent{Raw: json.RawMessage(body)}, nil

	default:
		return UnknownEvent{Destination: destination, Raw: json.RawMessage(body)}, nil
	}
}

// decodeListOrWrapper unmarshals either a bare JSON array or an object
// wrapping the array under key.
func decodeListOrWrapper[T any](body []byte, key string, out *[]T) error {
	trimmed := strings.TrimLeft(string(body), " \t\r\n")
	if strings.HasPrefix(trimmed, "[") {
		return json.Unmarshal(body, out)
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return err
	}
	if raw, ok := wrapper[key]; ok {
		return json.Unmarshal(raw, out)
	}
	return json.Unmarshal(body, out)
}
