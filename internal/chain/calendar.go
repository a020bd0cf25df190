package chain

import (
	"time"

	"github.com/scmhub/calendar"
)

// IsTradingDay reports whether the NYSE is open on the given date.
// Expirations from vendor files occasionally land on holidays when the
// exchange moves settlement; flagging them helps the consumer spot it.
func IsTradingDay(t time.Time) bool {
	nyse := calendar.XNYS()

	// NYSE operates in Eastern time; evaluate at noon to avoid any
	// date boundary ambiguity.
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	y, m, d := t.Date()
	noon := time.Date(y, m, d, 12, 0, 0, 0, loc)
	return nyse.IsBusinessDay(noon)
}
