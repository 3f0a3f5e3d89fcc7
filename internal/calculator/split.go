package calculator

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	"github.com/mmynk/splitledger/internal/models"
)

var (
	ErrNoMembers        = errors.New("must have at least one member")
	ErrShareCount       = errors.New("share count must equal member count")
	ErrShareSum         = errors.New("shares must sum to 10000 basis points")
	ErrShareRange       = errors.New("share must be between 0 and 10000 basis points")
	ErrDuplicateMember  = errors.New("member listed more than once")
	ErrUnknownMember    = errors.New("member is not in the group")
	ErrTooManyShares    = errors.New("too many shares for one bill")
	ErrNonPositiveTotal = errors.New("total must be positive")
)

// EvenShares assigns floor(10000 / n) basis points to every member.
// Truncation can leave up to n-1 basis points unassigned; they are not
// redistributed.
func EvenShares(members []string) ([]models.Share, error) {
	if len(members) == 0 {
		return nil, ErrNoMembers
	}

	per := models.TotalShares / int64(len(members))
	shares := make([]models.Share, len(members))
	for i, m := range members {
		shares[i] = models.Share{Member: m, Share: per}
	}
	return shares, nil
}

// ValidateShares checks a custom share set against the group members.
// maxShares <= 0 disables the size bound.
func ValidateShares(shares []models.Share, members []string, maxShares int) error {
	if maxShares > 0 && len(shares) > maxShares {
		return fmt.Errorf("%w: %d > %d", ErrTooManyShares, len(shares), maxShares)
	}
	if len(shares) != len(members) {
		return fmt.Errorf("%w: got %d, want %d", ErrShareCount, len(shares), len(members))
	}

	index := make(map[string]bool, len(members))
	for _, m := range members {
		index[m] = true
	}

	seen := make(map[string]bool, len(shares))
	var sum int64
	for _, sh := range shares {
		if sh.Share < 0 || sh.Share > models.TotalShares {
			return fmt.Errorf("%w: %s has %d", ErrShareRange, sh.Member, sh.Share)
		}
		if !index[sh.Member] {
			return fmt.Errorf("%w: %s", ErrUnknownMember, sh.Member)
		}
		if seen[sh.Member] {
			return fmt.Errorf("%w: %s", ErrDuplicateMember, sh.Member)
		}
		seen[sh.Member] = true
		sum += sh.Share
	}

	if sum != models.TotalShares {
		return fmt.Errorf("%w: got %d", ErrShareSum, sum)
	}
	return nil
}

// Owed computes floor(total * share / totalShares).
func Owed(total, share, totalShares int64) int64 {
	if totalShares <= 0 {
		return 0
	}
	return MulDiv(total, share, totalShares)
}

// MulDiv returns floor(a * b / c) using a 128-bit intermediate product, so
// the result is exact whenever it fits in an int64. Larger quotients
// saturate at math.MaxInt64. Negative a or b and non-positive c yield 0.
func MulDiv(a, b, c int64) int64 {
	if a <= 0 || b <= 0 || c <= 0 {
		return 0
	}
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi >= uint64(c) {
		return math.MaxInt64
	}
	q, _ := bits.Div64(hi, lo, uint64(c))
	if q > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(q)
}

// ApprovalThreshold returns ceil(0.7 * members), the number of distinct
// approvals needed to approve a split.
func ApprovalThreshold(members int) int {
	return (7*members + 9) / 10
}
