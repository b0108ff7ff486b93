package domain

import "math/bits"

// Account is a caller identity supplied by the host.
type Account string

func (a Account) Empty() bool { return a == "" }

// Amount is value in integer minor units.
type Amount uint64

type Quantity uint64

func (a Amount) Add(b Amount) (Amount, error) {
	sum, carry := bits.Add64(uint64(a), uint64(b), 0)
	if carry != 0 {
		return 0, ErrAmountOverflow
	}
	return Amount(sum), nil
}

func (a Amount) Sub(b Amount) (Amount, error) {
	if b > a {
		return 0, ErrAmountUnderflow
	}
	return a - b, nil
}

// Mul returns price × quantity, failing instead of wrapping.
func (a Amount) Mul(q Quantity) (Amount, error) {
	hi, lo := bits.Mul64(uint64(a), uint64(q))
	if hi != 0 {
		return 0, ErrAmountOverflow
	}
	return Amount(lo), nil
}

// Bps returns a × bps / 10000 rounded down. The product is computed in 128
// bits so it cannot overflow for bps ≤ 10000.
func (a Amount) Bps(bps uint64) (Amount, error) {
	return MulDiv(a, bps, BpsDenominator)
}

func MulDiv(a Amount, mul, div uint64) (Amount, error) {
	if div == 0 {
		return 0, ErrAmountOverflow
	}
	hi, lo := bits.Mul64(uint64(a), mul)
	if hi >= div {
		return 0, ErrAmountOverflow
	}
	quo, _ := bits.Div64(hi, lo, div)
	return Amount(quo), nil
}

func (q Quantity) Add(b Quantity) (Quantity, error) {
	sum, carry := bits.Add64(uint64(q), uint64(b), 0)
	if carry != 0 {
		return 0, ErrQuantityOverflow
	}
	return Quantity(sum), nil
}

func MinAmount(a, b Amount) Amount {
	if a < b {
		return a
	}
	return b
}
