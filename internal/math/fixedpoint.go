package math

import (
	"math/big"
	"sync"
)

// DecimalConfig defines fixed-point precision
type DecimalConfig struct {
	DecimalPrecision int   // Number of decimal places
	Scale            int64 // 10^DecimalPrecision
}

var (
	// StakeConfig is the precision for all wagered value (0.000001 units)
	StakeConfig = DecimalConfig{DecimalPrecision: 6, Scale: 1_000_000}
)

// Int128 is a pooled big.Int for intermediate calculations
var int128Pool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getInt128() *big.Int {
	return int128Pool.Get().(*big.Int)
}

func putInt128(v *big.Int) {
	v.SetInt64(0) // Clear before returning to pool
	int128Pool.Put(v)
}

// MultiplyInt128 performs a * b using int128 to prevent overflow
func MultiplyInt128(a, b int64) *big.Int {
	result := getInt128()
	result.Mul(big.NewInt(a), big.NewInt(b))
	return result
}

// DivideInt128 performs numerator / denominator with the given rounding
func DivideInt128(numerator *big.Int, denominator int64, roundingMode RoundingMode) int64 {
	denom := big.NewInt(denominator)
	quotient := getInt128()
	remainder := getInt128()

	quotient.DivMod(numerator, denom, remainder)

	result := quotient.Int64()

	switch roundingMode {
	case RoundUp:
		// Ceiling: DivMod leaves a non-negative remainder
		if remainder.Sign() != 0 {
			result++
		}
	case RoundHalfEven:
		// Banker's rounding: if remainder == denominator/2, round to even
		half := big.NewInt(denominator / 2)
		cmp := remainder.Cmp(half)

		if cmp > 0 {
			result++
		} else if cmp == 0 && denominator%2 == 0 {
			if result%2 != 0 {
				result++
			}
		}
	}

	putInt128(quotient)
	putInt128(remainder)

	return result
}

type RoundingMode int

const (
	RoundDown RoundingMode = iota // Truncation toward zero (payout default)
	RoundHalfEven
	RoundUp
)

// ComputePercentage calculates pool * pct / 100 with truncation.
// Used for the platform fee and party reward cuts of the losing pool.
func ComputePercentage(pool, pct int64) int64 {
	raw := MultiplyInt128(pool, pct)
	result := DivideInt128(raw, 100, RoundDown)
	putInt128(raw)
	return result
}

// ComputeProportionalShare calculates (stake * remainder) / winPool with
// truncation. The wagered amount is the numerator before any normalization,
// so a small stake loses at most one indivisible unit to the residual.
func ComputeProportionalShare(stake, remainder, winPool int64) int64 {
	if winPool == 0 {
		return 0
	}
	raw := MultiplyInt128(stake, remainder)
	result := DivideInt128(raw, winPool, RoundDown)
	putInt128(raw)
	return result
}
