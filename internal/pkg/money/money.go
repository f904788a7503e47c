// internal/pkg/money/money.go
package money

import (
	"math"

	xerrors "autopay-service/internal/pkg/errors"
)

// Amounts are carried as int64 minor units (cents). Arithmetic on spending
// totals must never wrap, so additions go through CheckedAdd.

// CheckedAdd returns a+b, or ErrOverflow if the sum does not fit in int64.
func CheckedAdd(a, b int64) (int64, error) {
	if b > 0 && a > math.MaxInt64-b {
		return 0, xerrors.ErrOverflow
	}
	if b < 0 && a < math.MinInt64-b {
		return 0, xerrors.ErrOverflow
	}
	return a + b, nil
}

// CheckedSub returns a-b with the same overflow discipline.
func CheckedSub(a, b int64) (int64, error) {
	if b == math.MinInt64 {
		return 0, xerrors.ErrOverflow
	}
	return CheckedAdd(a, -b)
}

// SaturatingSub returns a-b floored at zero. Used when releasing a
// reservation: a concurrent period reset may already have zeroed the
// running total, and the release must never drive it negative.
func SaturatingSub(a, b int64) int64 {
	if b >= a {
		return 0
	}
	return a - b
}
