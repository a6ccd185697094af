package split

import (
	"fmt"
	"math"
	"strconv"
)

// Size is the size of the test pool: a fraction of rows or a number of rows.
type Size struct {
	fraction float64
	count    int
}

// Fraction is a Size of f*n rows, rounded up. f should be in (0, 1).
func Fraction(f float64) (Size, error) {
	if math.IsNaN(f) || f <= 0 || 1 <= f {
		return Size{}, fmt.Errorf("%w: fraction should be in (0, 1), but %v", ErrInvalidSize, f)
	}
	return Size{fraction: f}, nil
}

// Count is a Size of c rows. c should be 1 or more.
func Count(c int) (Size, error) {
	if c < 1 {
		return Size{}, fmt.Errorf("%w: count should be 1 or more, but %d", ErrInvalidSize, c)
	}
	return Size{count: c}, nil
}

// ParseSize reads v as a fraction when it is in (0, 1), or as a count when it is an integral value >= 1.
func ParseSize(v float64) (Size, error) {
	switch {
	case 0 < v && v < 1:
		return Fraction(v)
	case 1 <= v && v == math.Trunc(v) && v <= math.MaxInt32:
		return Count(int(v))
	}
	return Size{}, fmt.Errorf(
		"%w: %v is neither a fraction in (0, 1) nor an integral count", ErrInvalidSize, v,
	)
}

func (s Size) IsFraction() bool {
	return s.count == 0
}

func (s Size) String() string {
	if s.IsFraction() {
		return strconv.FormatFloat(s.fraction, 'g', -1, 64)
	}
	return strconv.Itoa(s.count)
}

// Resolve decides the number of rows in each pool for n rows.
func (s Size) Resolve(n int) (nTrain int, nTest int, err error) {
	if n <= 0 {
		return 0, 0, ErrEmptyDataset
	}

	switch {
	case s.IsFraction() && s.fraction == 0:
		return 0, 0, fmt.Errorf("%w: size is not specified", ErrInvalidSize)
	case s.IsFraction():
		nTest = int(math.Ceil(s.fraction * float64(n)))
	default:
		if n <= s.count {
			return 0, 0, fmt.Errorf(
				"%w: test size %d should be smaller than the number of rows (%d)",
				ErrInvalidSize, s.count, n,
			)
		}
		nTest = s.count
	}

	nTrain = n - nTest
	if nTrain <= 0 {
		return 0, 0, fmt.Errorf(
			"%w: with %d rows and test size %s, the train pool will be empty",
			ErrInvalidSize, n, s,
		)
	}
	return nTrain, nTest, nil
}
