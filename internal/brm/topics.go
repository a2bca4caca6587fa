package brm

import "fmt"

// Topics builds the per-user destination paths for this venue. The
// configuration topic is the only one outside the /streaming/ prefix.
type Topics struct {
	Username string
	Version  string
}

func (t Topics) user() string {
	return fmt.Sprintf("/user/%s/%s", t.Username, t.Version)
}

func (t Topics) Configuration() string { return t.user() + "/configuration" }
func (t Topics) DeliveryAreas() string { return t.user() + "/streaming/deliveryAreas" }
func (t Topics) Contracts() string     { return t.user() + "/streaming/contracts" }
func (t Topics) Ticker() string        { return t.user() + "/streaming/ticker" }
func (t Topics) ExecutionReports() string {
	return t.user() + "/streaming/orderExecutionReport"
}
func (t Topics) PrivateTrades() string { return t.user() + "/streaming/privateTrade" }

func (t Topics) LocalView(areaID int) string {
	return fmt.Sprintf("%s/streaming/localview/%d", t.user(), areaID)
}

// OrderEntry is the SEND destination for order entry requests.
func (t Topics) OrderEntry() string { return "/" + t.Version + "/orderEntryRequest" }

// Command is the SEND destination for session commands (token refresh).
func (t Topics) Command() string { return "/" + t.Version + "/command" }
