// internal/service/modification/proration.go
package modification

import (
	"time"

	xerrors "autopay-service/internal/pkg/errors"
)

// ProrationResult carries the adjustment owed for a mid-period change.
// Exactly one of Credit/Charge is non-zero: Credit when the new amount is
// cheaper, Charge when it is dearer.
type ProrationResult struct {
	Credit int64 `json:"credit"`
	Charge int64 `json:"charge"`
}

// Prorate computes a linear, day-granularity adjustment for changing from
// currentAmount to newAmount at changeDate within [periodStart, periodEnd).
// The remaining fraction of the period is billed at the new rate.
func Prorate(currentAmount, newAmount int64, periodStart, periodEnd, changeDate time.Time) (*ProrationResult, error) {
	if !periodEnd.After(periodStart) {
		return nil, xerrors.Wrap(xerrors.ErrInvalidArgument, "period end must be after period start")
	}
	if changeDate.Before(periodStart) || changeDate.After(periodEnd) {
		return nil, xerrors.Wrap(xerrors.ErrInvalidArgument, "change date outside billing period")
	}

	periodDays := daysBetween(periodStart, periodEnd)
	remainingDays := daysBetween(changeDate, periodEnd)
	if periodDays == 0 {
		return &ProrationResult{}, nil
	}

	diff := newAmount - currentAmount
	adjustment := diff * remainingDays / periodDays

	if adjustment >= 0 {
		return &ProrationResult{Charge: adjustment}, nil
	}
	return &ProrationResult{Credit: -adjustment}, nil
}

func daysBetween(a, b time.Time) int64 {
	if b.Before(a) {
		return 0
	}
	return int64(b.Sub(a).Hours() / 24)
}
