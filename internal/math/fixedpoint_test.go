package math_test

import (
	"testing"

	fpmath "github.com/AgoraXchange/agora-contract/internal/math"
)

func TestComputePercentage(t *testing.T) {
	cases := []struct {
		pool, pct, want int64
	}{
		{1_000_000, 2, 20_000},
		{1_000_000, 10, 100_000},
		{0, 2, 0},
		{1, 2, 0},      // truncates
		{99, 2, 1},     // 1.98 truncates to 1
		{50, 2, 1},     // exactly 1
		{3, 10, 0},     // 0.3 truncates to 0
		{1_000_000_000_000, 10, 100_000_000_000},
	}
	for _, tc := range cases {
		got := fpmath.ComputePercentage(tc.pool, tc.pct)
		if got != tc.want {
			t.Errorf("ComputePercentage(%d, %d) = %d, want %d", tc.pool, tc.pct, got, tc.want)
		}
	}
}

func TestComputeProportionalShare(t *testing.T) {
	cases := []struct {
		stake, remainder, winPool, want int64
	}{
		{2_000_000, 880_000, 3_000_000, 586_666}, // truncated share
		{1_000_000, 880_000, 3_000_000, 293_333},
		{3_000_000, 880_000, 3_000_000, 880_000}, // sole winner takes everything
		{0, 880_000, 3_000_000, 0},
		{1_000_000, 0, 3_000_000, 0},
	}
	for _, tc := range cases {
		got := fpmath.ComputeProportionalShare(tc.stake, tc.remainder, tc.winPool)
		if got != tc.want {
			t.Errorf("ComputeProportionalShare(%d, %d, %d) = %d, want %d",
				tc.stake, tc.remainder, tc.winPool, got, tc.want)
		}
	}
}

func TestComputeProportionalShare_ZeroWinPool(t *testing.T) {
	if got := fpmath.ComputeProportionalShare(1_000, 500, 0); got != 0 {
		t.Errorf("zero win pool should yield 0, got %d", got)
	}
}

func TestComputeProportionalShare_NoOverflow(t *testing.T) {
	// stake * remainder overflows int64; the intermediate must be 128-bit
	stake := int64(5_000_000_000_000_000)
	remainder := int64(9_000_000_000_000_000)
	winPool := int64(10_000_000_000_000_000)

	got := fpmath.ComputeProportionalShare(stake, remainder, winPool)
	want := int64(4_500_000_000_000_000)
	if got != want {
		t.Errorf("got %d, want %d", got, want)
	}
}

func TestDivideInt128_RoundDown(t *testing.T) {
	raw := fpmath.MultiplyInt128(7, 3)
	if got := fpmath.DivideInt128(raw, 2, fpmath.RoundDown); got != 10 {
		t.Errorf("21/2 rounded down = %d, want 10", got)
	}
}

func TestDivideInt128_RoundUp(t *testing.T) {
	raw := fpmath.MultiplyInt128(7, 3)
	if got := fpmath.DivideInt128(raw, 2, fpmath.RoundUp); got != 11 {
		t.Errorf("21/2 rounded up = %d, want 11", got)
	}

	exact := fpmath.MultiplyInt128(10, 2)
	if got := fpmath.DivideInt128(exact, 2, fpmath.RoundUp); got != 10 {
		t.Errorf("20/2 rounded up = %d, want 10", got)
	}

	small := fpmath.MultiplyInt128(1, 1)
	if got := fpmath.DivideInt128(small, 100, fpmath.RoundUp); got != 1 {
		t.Errorf("1/100 rounded up = %d, want 1", got)
	}
}

func TestShareSumNeverExceedsRemainder(t *testing.T) {
	// Sum of truncated shares must never exceed the distributable remainder
	stakes := []int64{1, 3, 7, 999_999, 2_000_001}
	var winPool int64
	for _, s := range stakes {
		winPool += s
	}
	remainder := int64(5_000_000)

	var sum int64
	for _, s := range stakes {
		sum += fpmath.ComputeProportionalShare(s, remainder, winPool)
	}
	if sum > remainder {
		t.Errorf("share sum %d exceeds remainder %d", sum, remainder)
	}
}
