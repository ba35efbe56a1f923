package cost

import (
	"fmt"
	"strings"
	"time"
)

// Period is the length of a budget window. Windows are aligned to UTC.
type Period string

const (
	PeriodHourly  Period = "hourly"
	PeriodDaily   Period = "daily"
	PeriodMonthly Period = "monthly"
)

// ParsePeriod validates a period name. Empty means daily.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case PeriodHourly, PeriodDaily, PeriodMonthly:
		return p, nil
	case "":
		return PeriodDaily, nil
	}
	return "", fmt.Errorf("%w: unknown period %q", ErrInvalidBudget, s)
}

func (p Period) layout() string {
	switch p {
	case PeriodHourly:
		return "2006-01-02T15"
	case PeriodMonthly:
		return "2006-01"
	default:
		return "2006-01-02"
	}
}

// WindowKey names the window containing t, e.g. "2026-10-15" for daily.
// Keys of the same period sort chronologically.
func (p Period) WindowKey(t time.Time) string {
	return t.UTC().Format(p.layout())
}

// windowsBetween counts the whole windows strictly between the windows keyed
// from and to. Unparseable keys count as adjacent.
func (p Period) windowsBetween(from, to string) int {
	a, errA := time.Parse(p.layout(), from)
	b, errB := time.Parse(p.layout(), to)
	if errA != nil || errB != nil || !a.Before(b) {
		return 0
	}
	var n int
	switch p {
	case PeriodHourly:
		n = int(b.Sub(a) / time.Hour)
	case PeriodMonthly:
		n = (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	default:
		n = int(b.Sub(a) / (24 * time.Hour))
	}
	return max(n-1, 0)
}
