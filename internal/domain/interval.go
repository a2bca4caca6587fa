package domain

import (
	"fmt"
	"time"
)

// IntervalsPerDay is the number of 15-minute delivery slots in a trading day.
const IntervalsPerDay = 96

// DateLayout is the delivery-date wire and storage format.
const DateLayout = "2006-01-02"

// The venue trades in CET; the asset's metering runs on EET, one hour
// ahead, which shifts interval numbers by four slots.
var (
	tzCET = mustLoadLocation("Europe/Berlin")
	tzEET = mustLoadLocation("Europe/Bucharest")

	eetToCETOffset = -4
)

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("load location %s: %v", name, err))
	}
	return loc
}

// VenueLocation returns the venue's trading time zone (CET/CEST).
func VenueLocation() *time.Location { return tzCET }

// IntervalOf returns the 1-based 15-minute interval containing t,
// evaluated in t's location.
func IntervalOf(t time.Time) int {
	return t.Hour()*4 + t.Minute()/15 + 1
}

// CurrentInterval returns the interval containing now in venue time.
func CurrentInterval(now time.Time) int {
	return IntervalOf(now.In(tzCET))
}

// EETToCETInterval shifts an EET interval number to CET, wrapping at the
// day boundary.
func EETToCETInterval(eetInterval int) int {
	i := eetInterval + eetToCETOffset
	if i < 1 {
		i += IntervalsPerDay
	}
	return i
}

// CETToEETInterval shifts a CET interval number to EET, wrapping at the
// day boundary.
func CETToEETInterval(cetInterval int) int {
	i := cetInterval - eetToCETOffset
	if i > IntervalsPerDay {
		i -= IntervalsPerDay
	}
	return i
}

// IntervalStart returns the wall-clock start of an interval on a delivery
// date in venue time. Interval 1 starts at 00:00.
func IntervalStart(deliveryDate string, interval int) (time.Time, error) {
	if interval < 1 || interval > IntervalsPerDay {
		return time.Time{}, fmt.Errorf("invalid interval %d", interval)
	}
	d, err := time.ParseInLocation(DateLayout, deliveryDate, tzCET)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid delivery date %q: %w", deliveryDate, err)
	}
	hour := (interval - 1) / 4
	minute := ((interval - 1) % 4) * 15
	return d.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute), nil
}

// GateOpen reports whether the market is still open for an interval:
// more than gateClosure remains until the interval starts.
func GateOpen(deliveryDate string, interval int, now time.Time, gateClosure time.Duration) bool {
	start, err := IntervalStart(deliveryDate, interval)
	if err != nil {
		return false
	}
	return start.Sub(now.In(tzCET)) > gateClosure
}
