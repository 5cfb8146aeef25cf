package repository

import "time"

// Period is a lookback window of daily history.
type Period string

const (
	Period6M  Period = "6mo"
	Period1Y  Period = "1y"
	Period2Y  Period = "2y"
	Period5Y  Period = "5y"
	PeriodMax Period = "max"
)

// IsValidPeriod returns true if p is a supported period.
func IsValidPeriod(p Period) bool {
	switch p {
	case Period6M, Period1Y, Period2Y, Period5Y, PeriodMax:
		return true
	default:
		return false
	}
}

// DefaultPeriod returns the default training period.
func DefaultPeriod() Period { return Period2Y }

// NormalizePeriod converts raw string to a valid period (or default).
func NormalizePeriod(s string) Period {
	if s == "" {
		return DefaultPeriod()
	}
	p := Period(s)
	if IsValidPeriod(p) {
		return p
	}
	return DefaultPeriod()
}

// Start returns the first calendar day covered by p when the window ends at end.
// PeriodMax returns the zero time.
func (p Period) Start(end time.Time) time.Time {
	switch p {
	case Period6M:
		return end.AddDate(0, -6, 0)
	case Period1Y:
		return end.AddDate(-1, 0, 0)
	case Period2Y:
		return end.AddDate(-2, 0, 0)
	case Period5Y:
		return end.AddDate(-5, 0, 0)
	default:
		return time.Time{}
	}
}
