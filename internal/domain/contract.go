package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Contract is a market-assigned tradable unit from the contracts stream.
type Contract struct {
	ID            string
	Name          string
	DeliveryStart string
	DeliveryEnd   string
	AreaCode      string
	Status        string
}

// ContractType selects the delivery-period granularity of a contract id.
type ContractType string

const (
	ContractQuarterHourly ContractType = "QH"
	ContractHourly        ContractType = "H"
)

// ContractIDFor derives the venue contract id for a delivery date and
// interval. Venue-assigned ids are not guaranteed stable across
// reconnects, so the engine derives them locally:
//
//	hourly:         BRM_ID_H_YYYYMMDD_HH
//	quarter-hourly: BRM_ID_QH_YYYYMMDD_HH_Q
func ContractIDFor(deliveryDate string, interval int, typ ContractType) string {
	hour := (interval - 1) / 4
	quarter := (interval-1)%4 + 1
	compact := strings.ReplaceAll(deliveryDate, "-", "")

	if typ == ContractHourly {
		return fmt.Sprintf("BRM_ID_H_%s_%02d", compact, hour)
	}
	return fmt.Sprintf("BRM_ID_QH_%s_%02d_%d", compact, hour, quarter)
}

// ParseContractID extracts the delivery date and interval from a
// quarter-hourly contract id. Hourly ids map to the first interval of
// the hour.
func ParseContractID(id string) (deliveryDate string, interval int, err error) {
	parts := strings.Split(id, "_")
	if len(parts) < 4 || parts[0] != "BRM" || parts[1] != "ID" {
		return "", 0, fmt.Errorf("unrecognized contract id %q", id)
	}

	typ := parts[2]
	compact := parts[3]
	if len(compact) != 8 {
		return "", 0, fmt.Errorf("bad date in contract id %q", id)
	}
	deliveryDate = compact[:4] + "-" + compact[4:6] + "-" + compact[6:8]

	switch typ {
	case "QH":
		if len(parts) != 6 {
			return "", 0, fmt.Errorf("bad quarter-hourly contract id %q", id)
		}
		hour, herr := strconv.Atoi(parts[4])
		quarter, qerr := strconv.Atoi(parts[5])
		if herr != nil || qerr != nil || hour < 0 || hour > 23 || quarter < 1 || quarter > 4 {
			return "", 0, fmt.Errorf("bad delivery period in contract id %q", id)
		}
		return deliveryDate, hour*4 + quarter, nil
	case "H":
		if len(parts) != 5 {
			return "", 0, fmt.Errorf("bad hourly contract id %q", id)
		}
		hour, herr := strconv.Atoi(parts[4])
		if herr != nil || hour < 0 || hour > 23 {
			return "", 0, fmt.Errorf("bad delivery hour in contract id %q", id)
		}
		return deliveryDate, hour*4 + 1, nil
	default:
		return "", 0, fmt.Errorf("unrecognized contract type in %q", id)
	}
}
