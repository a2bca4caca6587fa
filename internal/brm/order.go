package brm

import (
	"encoding/json"
	"fmt"
)

// Order entry enumerations accepted by the venue.
const (
	OrderTypeLimit = "LIMIT"

	TimeInForceIOC = "IOC" // immediate or cancel
	TimeInForceFOK = "FOK" // fill or kill

	ExecutionRestrictionNone = "NON"
	ExecutionRestrictionAON  = "AON"

	OrderStateActive = "ACTI"
)

// OrderEntry is one order inside an order-entry request. Prices are
// integer cents, quantities integer venue volume units.
type OrderEntry struct {
	PortfolioID          string   `json:"portfolioId"`
	ContractIDs          []string `json:"contractIds"`
	DeliveryAreaID       int      `json:"deliveryAreaId"`
	Side                 string   `json:"side"`
	OrderType            string   `json:"orderType"`
	UnitPrice            int64    `json:"unitPrice"`
	Quantity             int64    `json:"quantity"`
	TimeInForce          string   `json:"timeInForce"`
	ExecutionRestriction string   `json:"executionRestriction"`
	State                string   `json:"state"`
	ClientOrderID        string   `json:"clientOrderId"`
}

// Validate rejects orders the venue would refuse: values not expressible
// in its integer minor units, or missing correlation fields.
func (o OrderEntry) Validate() error {
	if o.PortfolioID == "" {
		return fmt.Errorf("order: missing portfolio id")
	}
	if len(o.ContractIDs) == 0 {
		return fmt.Errorf("order: no contract ids")
	}
	if o.Side != "BUY" && o.Side != "SELL" {
		return fmt.Errorf("order: invalid side %q", o.Side)
	}
	if o.UnitPrice <= 0 {
		return fmt.Errorf("order: unit price must be a positive integer in cents, got %d", o.UnitPrice)
	}
	if o.Quantity <= 0 {
		return fmt.Errorf("order: quantity must be a positive integer, got %d", o.Quantity)
	}
	if o.ClientOrderID == "" {
		return fmt.Errorf("order: missing client order id")
	}
	return nil
}

// OrderEntryRequest is the JSON body of a SEND to the order-entry
// destination.
type OrderEntryRequest struct {
	RequestID       string       `json:"requestId"`
	RejectPartially bool         `json:"rejectPartially"`
	LinkedBasket    bool         `json:"linkedBasket"`
	Orders          []OrderEntry `json:"orders"`
}

// Encode validates every order and marshals the request body.
func (r OrderEntryRequest) Encode() ([]byte, error) {
	if r.RequestID == "" {
		return nil, fmt.Errorf("order request: missing request id")
	}
	for _, o := range r.Orders {
		if err := o.Validate(); err != nil {
			return nil, err
		}
	}
	return json.Marshal(r)
}

// TokenRefreshCommand replaces the session's bearer token without
// reconnecting.
type TokenRefreshCommand struct {
	Type     string `json:"type"`
	OldToken string `json:"oldToken"`
	NewToken string `json:"newToken"`
}

// NewTokenRefreshCommand builds the command payload.
func NewTokenRefreshCommand(oldToken, newToken string) TokenRefreshCommand {
	return TokenRefreshCommand{Type: "TOKEN_REFRESH", OldToken: oldToken, NewToken: newToken}
}
