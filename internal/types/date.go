package types

import (
	"time"

	ierr "github.com/flexprice/billingcore/internal/errors"
)

// NextBillingDate advances start by one unit of the cycle type.
// Month based cycles clamp to the last day of the target month, so
// Jan 31 + 1 month is Feb 29 in a leap year.
func NextBillingDate(start time.Time, cycle BillingCycleType) (time.Time, error) {
	switch cycle {
	case BillingCycleDaily:
		return start.AddDate(0, 0, 1), nil
	case BillingCycleWeekly:
		return start.AddDate(0, 0, 7), nil
	case BillingCycleMonthly:
		return AddClampedDate(start, 0, 1), nil
	case BillingCycleQuarterly:
		return AddClampedDate(start, 0, 3), nil
	case BillingCycleSemiAnnually:
		return AddClampedDate(start, 0, 6), nil
	case BillingCycleAnnually:
		return AddClampedDate(start, 1, 0), nil
	default:
		return start, ierr.NewError("invalid billing cycle type").
			WithHintf("Unsupported billing cycle type %q", cycle).
			Mark(ierr.ErrValidation)
	}
}

// AddClampedDate adds years and months, clamping the day to the end of the resulting month.
func AddClampedDate(t time.Time, years, months int) time.Time {
	y, m, d := t.Date()
	h, min, sec := t.Clock()

	newY := y + years
	newM := time.Month(int(m) + months)

	for newM > 12 {
		newM -= 12
		newY++
	}
	for newM < 1 {
		newM += 12
		newY--
	}

	lastDay := time.Date(newY, newM+1, 0, 0, 0, 0, 0, t.Location()).Day()
	if d > lastDay {
		d = lastDay
	}

	return time.Date(newY, newM, d, h, min, sec, t.Nanosecond(), t.Location())
}

// YearMonth formats t as YYYYMM, the invoice numbering partition.
func YearMonth(t time.Time) string {
	return t.UTC().Format("200601")
}
