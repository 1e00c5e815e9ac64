package kvp

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// ErrInvalidNumeric is returned when a numeric string cannot be parsed.
var ErrInvalidNumeric = errors.New("kvp: invalid numeric")

// Numeric is a fixed-point amount stored as a rational Num/Denom. The zero
// value is 0/0, which callers should treat as "unset"; NewNumeric normalises
// a zero denominator to 1.
type Numeric struct {
	Num   int64 `json:"num" cbor:"n"`
	Denom int64 `json:"denom" cbor:"d"`
}

// NewNumeric builds num/denom with the sign carried on the numerator.
// A math.MinInt64 operand that cannot be negated is halved together with
// its partner when both are even, and clamped to -math.MaxInt64 otherwise.
func NewNumeric(num, denom int64) Numeric {
	if denom == 0 {
		denom = 1
	}
	if denom < 0 {
		if (num == math.MinInt64 || denom == math.MinInt64) && num%2 == 0 && denom%2 == 0 {
			num, denom = num/2, denom/2
		}
		if num == math.MinInt64 {
			num = -math.MaxInt64
		}
		if denom == math.MinInt64 {
			denom = -math.MaxInt64
		}
		num, denom = -num, -denom
	}
	return Numeric{Num: num, Denom: denom}
}

// IsZero reports whether n is the zero value (not merely equal to zero).
func (n Numeric) IsZero() bool {
	return n.Num == 0 && n.Denom == 0
}

func (n Numeric) Float64() float64 {
	if n.Denom == 0 {
		return 0
	}
	return float64(n.Num) / float64(n.Denom)
}

func (n Numeric) String() string {
	return fmt.Sprintf("%d/%d", n.Num, n.Denom)
}

func (n Numeric) rat() *big.Rat {
	if n.Denom == 0 {
		return new(big.Rat)
	}
	return big.NewRat(n.Num, n.Denom)
}

// Equal compares by value: 1/2 == 50/100.
func (n Numeric) Equal(other Numeric) bool {
	if n.Denom == 0 || other.Denom == 0 {
		return n == other
	}
	return n.rat().Cmp(other.rat()) == 0
}

// Reduce returns n in lowest terms.
func (n Numeric) Reduce() Numeric {
	if n.Denom == 0 {
		return n
	}
	r := n.rat()
	if !r.Num().IsInt64() || !r.Denom().IsInt64() {
		return n
	}
	return Numeric{Num: r.Num().Int64(), Denom: r.Denom().Int64()}
}

// ParseNumeric accepts "num/denom" or a bare integer.
func ParseNumeric(input string) (Numeric, error) {
	value := strings.TrimSpace(input)
	if value == "" {
		return Numeric{}, fmt.Errorf("%w: empty", ErrInvalidNumeric)
	}
	numPart, denomPart, found := strings.Cut(value, "/")
	num, err := strconv.ParseInt(strings.TrimSpace(numPart), 10, 64)
	if err != nil {
		return Numeric{}, fmt.Errorf("%w: %q", ErrInvalidNumeric, input)
	}
	if !found {
		return NewNumeric(num, 1), nil
	}
	denom, err := strconv.ParseInt(strings.TrimSpace(denomPart), 10, 64)
	if err != nil || denom == 0 {
		return Numeric{}, fmt.Errorf("%w: %q", ErrInvalidNumeric, input)
	}
	return NewNumeric(num, denom), nil
}
