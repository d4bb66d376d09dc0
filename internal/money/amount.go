// Package money holds decimal amounts without ever touching a float.
//
// Amounts travel through the engine as decimal strings; internally they
// are kept as *big.Rat, the same type native/swap/oracle.go uses for
// exchange rates, and only converted to a chain's smallest unit at the
// chain-client boundary.
package money

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// ErrInvalidAmount is returned when a decimal string cannot be parsed.
var ErrInvalidAmount = errors.New("money: invalid amount")

// Amount is an arbitrary-precision decimal quantity.
type Amount struct {
	r *big.Rat
}

// Zero is the additive identity.
var Zero = Amount{r: new(big.Rat)}

// Parse converts a decimal string ("10", "10.50", "0.000001") into an Amount.
func Parse(s string) (Amount, error) {
	if s == "" {
		return Amount{}, fmt.Errorf("%w: empty string", ErrInvalidAmount)
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return Amount{r: r}, nil
}

// MustParse is Parse but panics on error; for constants only.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromInt64 builds an exact integer amount.
func FromInt64(v int64) Amount {
	return Amount{r: new(big.Rat).SetInt64(v)}
}

// Frac builds the exact rational num/den, e.g. Frac(50, 100) for a 50%
// payout split share.
func Frac(num, den int64) Amount {
	return Amount{r: big.NewRat(num, den)}
}

func (a Amount) rat() *big.Rat {
	if a.r == nil {
		return new(big.Rat)
	}
	return a.r
}

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool { return a.rat().Sign() == 0 }

// Sign returns -1, 0, or 1.
func (a Amount) Sign() int { return a.rat().Sign() }

// Cmp compares two amounts, returning -1, 0, or 1.
func (a Amount) Cmp(b Amount) int { return a.rat().Cmp(b.rat()) }

// GreaterThan reports a > b.
func (a Amount) GreaterThan(b Amount) bool { return a.Cmp(b) > 0 }

// Add returns a+b.
func (a Amount) Add(b Amount) Amount {
	return Amount{r: new(big.Rat).Add(a.rat(), b.rat())}
}

// Sub returns a-b.
func (a Amount) Sub(b Amount) Amount {
	return Amount{r: new(big.Rat).Sub(a.rat(), b.rat())}
}

// Mul returns a*b.
func (a Amount) Mul(b Amount) Amount {
	return Amount{r: new(big.Rat).Mul(a.rat(), b.rat())}
}

// String renders the amount as a plain decimal string with up to 18
// fractional digits, trimming trailing zeros and any resulting "." suffix.
func (a Amount) String() string {
	s := a.rat().FloatString(18)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if s == "" || s == "-" {
		s = "0"
	}
	return s
}

// ScaleToUnits converts the amount to an integer count of the smallest unit
// for a chain with the given number of decimals (e.g. 18 for most EVM
// stablecoins, 6 for USDC-on-some-chains), rounding half away from zero.
func (a Amount) ScaleToUnits(decimals int) (*big.Int, error) {
	if decimals < 0 {
		return nil, fmt.Errorf("money: negative decimals %d", decimals)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	scaled := new(big.Rat).Mul(a.rat(), new(big.Rat).SetInt(scale))
	num := scaled.Num()
	den := scaled.Denom()
	if den.Cmp(big.NewInt(1)) == 0 {
		return new(big.Int).Set(num), nil
	}
	// round half away from zero
	abs := new(big.Int).Abs(num)
	q, rem := new(big.Int).QuoRem(abs, den, new(big.Int))
	if new(big.Int).Lsh(rem, 1).Cmp(den) >= 0 {
		q.Add(q, big.NewInt(1))
	}
	if num.Sign() < 0 {
		q.Neg(q)
	}
	return q, nil
}

// MarshalJSON renders the amount as a JSON string, matching the decimal
// string wire format used everywhere else in this engine.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON parses a JSON string (or bare JSON number) into an Amount.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ScaleToUint256 is ScaleToUnits narrowed to a fixed 256-bit word, the
// native integer width of EVM storage slots and calldata; chain clients
// use this instead of ScaleToUnits when the scaled value is about to be
// ABI-encoded.
func (a Amount) ScaleToUint256(decimals int) (*uint256.Int, error) {
	units, err := a.ScaleToUnits(decimals)
	if err != nil {
		return nil, err
	}
	if units.Sign() < 0 {
		return nil, fmt.Errorf("money: negative amount cannot fit uint256")
	}
	v, overflow := uint256.FromBig(units)
	if overflow {
		return nil, fmt.Errorf("money: amount overflows uint256")
	}
	return v, nil
}

// FromUnits converts an integer smallest-unit amount back into an Amount.
func FromUnits(units *big.Int, decimals int) Amount {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return Amount{r: new(big.Rat).SetFrac(units, scale)}
}
