// Package price implements the fixed-point Price and Quantity primitives
// used throughout the trading engines. Both types are transparent wrappers
// over a scaled integer so that equality and ordering are bit-exact and
// arithmetic never silently overflows or underflows.
package price

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/abdoElHodaky/algotrade/internal/tradsyserr"
)

const (
	// PricePrecision is the number of decimal places a Price's internal
	// representation carries.
	PricePrecision = 9
	priceScale     = 1_000_000_000

	// QuantityPrecision is the number of decimal places a Quantity's
	// internal representation carries.
	QuantityPrecision = 8
	quantityScale     = 100_000_000
)

// Price is a fixed-point, strictly positive scalar scaled by 1e9.
type Price struct {
	raw int64
}

// Quantity is a fixed-point, non-negative scalar scaled by 1e8.
type Quantity struct {
	raw uint64
}

// NewPriceFromRaw builds a Price from an integer expressed at the given
// precision (0-9), scaling it up to the internal 1e9 representation.
func NewPriceFromRaw(raw int64, precision uint8) (Price, error) {
	if precision > PricePrecision {
		return Price{}, tradsyserr.Newf(tradsyserr.CodePrecisionRange,
			"price precision %d exceeds maximum %d", precision, PricePrecision)
	}
	if raw <= 0 {
		return Price{}, tradsyserr.Newf(tradsyserr.CodeNonPositivePrice,
			"price must be strictly positive, got raw=%d", raw)
	}
	factor := int64(math.Pow10(int(PricePrecision - precision)))
	adjusted, ok := checkedMulInt64(raw, factor)
	if !ok {
		return Price{}, tradsyserr.New(tradsyserr.CodeOverflow, "price scaling overflow")
	}
	return Price{raw: adjusted}, nil
}

// PriceFromFloat constructs a Price from a float64 at the given precision
// (0-9), rounding half-to-even at that precision before scaling.
func PriceFromFloat(value float64, precision uint8) (Price, error) {
	if !isFinite(value) {
		return Price{}, tradsyserr.Newf(tradsyserr.CodeInvalidFloat, "price value %v is not finite", value)
	}
	if value <= 0 {
		return Price{}, tradsyserr.Newf(tradsyserr.CodeNonPositivePrice, "price must be strictly positive, got %v", value)
	}
	if precision > PricePrecision {
		return Price{}, tradsyserr.Newf(tradsyserr.CodePrecisionRange,
			"price precision %d exceeds maximum %d", precision, PricePrecision)
	}
	multiplier := math.Pow10(int(precision))
	rounded := math.RoundToEven(value * multiplier)
	if rounded <= 0 || rounded > math.MaxInt64 {
		return Price{}, tradsyserr.New(tradsyserr.CodeOverflow, "price value out of range after rounding")
	}
	return NewPriceFromRaw(int64(rounded), precision)
}

// Raw returns the internal 1e9-scaled integer representation.
func (p Price) Raw() int64 { return p.raw }

// AsFloat64 converts the price back to a floating point value.
func (p Price) AsFloat64() float64 {
	return float64(p.raw) / priceScale
}

// AsDecimal converts the price to an exact decimal.Decimal value.
func (p Price) AsDecimal() decimal.Decimal {
	return decimal.New(p.raw, -PricePrecision)
}

// Equal reports whether two prices are bit-exact equal.
func (p Price) Equal(other Price) bool { return p.raw == other.raw }

// LessThan reports whether p is strictly less than other.
func (p Price) LessThan(other Price) bool { return p.raw < other.raw }

// GreaterThan reports whether p is strictly greater than other.
func (p Price) GreaterThan(other Price) bool { return p.raw > other.raw }

// CheckedAdd adds two prices, failing on overflow.
func (p Price) CheckedAdd(other Price) (Price, error) {
	sum, ok := checkedAddInt64(p.raw, other.raw)
	if !ok {
		return Price{}, tradsyserr.New(tradsyserr.CodeOverflow, "price addition overflow")
	}
	return Price{raw: sum}, nil
}

// CheckedSub subtracts other from p, failing on overflow or a non-positive result.
func (p Price) CheckedSub(other Price) (Price, error) {
	diff, ok := checkedSubInt64(p.raw, other.raw)
	if !ok {
		return Price{}, tradsyserr.New(tradsyserr.CodeOverflow, "price subtraction overflow")
	}
	if diff <= 0 {
		return Price{}, tradsyserr.Newf(tradsyserr.CodeNonPositivePrice, "price subtraction result %d is not positive", diff)
	}
	return Price{raw: diff}, nil
}

// CheckedMulFloat multiplies the price by a floating point factor, failing
// on overflow, non-finite factors, or a non-positive result.
func (p Price) CheckedMulFloat(factor float64) (Price, error) {
	if !isFinite(factor) {
		return Price{}, tradsyserr.Newf(tradsyserr.CodeInvalidFloat, "multiplication factor %v is not finite", factor)
	}
	result := math.RoundToEven(float64(p.raw) * factor)
	if result <= 0 || result >= math.MaxInt64 {
		return Price{}, tradsyserr.New(tradsyserr.CodeOverflow, "price multiplication overflow")
	}
	return Price{raw: int64(result)}, nil
}

// NewQuantityFromRaw builds a Quantity from an integer expressed at the
// given precision (0-8), scaling it up to the internal 1e8 representation.
func NewQuantityFromRaw(raw uint64, precision uint8) (Quantity, error) {
	if precision > QuantityPrecision {
		return Quantity{}, tradsyserr.Newf(tradsyserr.CodePrecisionRange,
			"quantity precision %d exceeds maximum %d", precision, QuantityPrecision)
	}
	factor := uint64(math.Pow10(int(QuantityPrecision - precision)))
	adjusted, ok := checkedMulUint64(raw, factor)
	if !ok {
		return Quantity{}, tradsyserr.New(tradsyserr.CodeOverflow, "quantity scaling overflow")
	}
	return Quantity{raw: adjusted}, nil
}

// QuantityFromFloat constructs a Quantity from a float64 at the given
// precision (0-8), rounding half-to-even at that precision before scaling.
func QuantityFromFloat(value float64, precision uint8) (Quantity, error) {
	if !isFinite(value) {
		return Quantity{}, tradsyserr.Newf(tradsyserr.CodeInvalidFloat, "quantity value %v is not finite", value)
	}
	if value < 0 {
		return Quantity{}, tradsyserr.Newf(tradsyserr.CodeInvalidFloat, "quantity must be non-negative, got %v", value)
	}
	if precision > QuantityPrecision {
		return Quantity{}, tradsyserr.Newf(tradsyserr.CodePrecisionRange,
			"quantity precision %d exceeds maximum %d", precision, QuantityPrecision)
	}
	multiplier := math.Pow10(int(precision))
	rounded := math.RoundToEven(value * multiplier)
	if rounded < 0 || rounded > math.MaxInt64 {
		return Quantity{}, tradsyserr.New(tradsyserr.CodeOverflow, "quantity value out of range after rounding")
	}
	return NewQuantityFromRaw(uint64(rounded), precision)
}

// Raw returns the internal 1e8-scaled integer representation.
func (q Quantity) Raw() uint64 { return q.raw }

// AsFloat64 converts the quantity back to a floating point value.
func (q Quantity) AsFloat64() float64 {
	return float64(q.raw) / quantityScale
}

// AsDecimal converts the quantity to an exact decimal.Decimal value.
func (q Quantity) AsDecimal() decimal.Decimal {
	return decimal.New(int64(q.raw), -QuantityPrecision)
}

// IsZero reports whether the quantity is exactly zero.
func (q Quantity) IsZero() bool { return q.raw == 0 }

// Equal reports whether two quantities are bit-exact equal.
func (q Quantity) Equal(other Quantity) bool { return q.raw == other.raw }

// LessThan reports whether q is strictly less than other.
func (q Quantity) LessThan(other Quantity) bool { return q.raw < other.raw }

// GreaterThanOrEqual reports whether q is greater than or equal to other.
func (q Quantity) GreaterThanOrEqual(other Quantity) bool { return q.raw >= other.raw }

// CheckedAdd adds two quantities, failing on overflow.
func (q Quantity) CheckedAdd(other Quantity) (Quantity, error) {
	sum, ok := checkedAddUint64(q.raw, other.raw)
	if !ok {
		return Quantity{}, tradsyserr.New(tradsyserr.CodeOverflow, "quantity addition overflow")
	}
	return Quantity{raw: sum}, nil
}

// CheckedSub subtracts other from q, failing on underflow.
func (q Quantity) CheckedSub(other Quantity) (Quantity, error) {
	if other.raw > q.raw {
		return Quantity{}, tradsyserr.New(tradsyserr.CodeOverflow, "quantity subtraction underflow")
	}
	return Quantity{raw: q.raw - other.raw}, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func checkedAddInt64(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}

func checkedSubInt64(a, b int64) (int64, bool) {
	diff := a - b
	if (b < 0 && diff < a) || (b > 0 && diff > a) {
		return 0, false
	}
	return diff, true
}

func checkedMulInt64(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	result := a * b
	if result/b != a {
		return 0, false
	}
	return result, true
}

func checkedAddUint64(a, b uint64) (uint64, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}

func checkedMulUint64(a, b uint64) (uint64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	result := a * b
	if result/b != a {
		return 0, false
	}
	return result, true
}
