package quant

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/stat/distuv"
)

func TestNormalCDF_AtZero(t *testing.T) {
	// The coefficients sum to 1 - 1e-9, so N(0) sits within the approximation error of 0.5.
	if got := NormalCDF(0); math.Abs(got-0.5) > 1e-8 {
		t.Errorf("NormalCDF(0) = %v, want 0.5", got)
	}
}

func TestNormalCDF_MatchesReference(t *testing.T) {
	for x := -8.0; x <= 8.0; x += 0.01 {
		want := distuv.UnitNormal.CDF(x)
		if got := NormalCDF(x); math.Abs(got-want) > 2e-7 {
			t.Fatalf("NormalCDF(%v) = %v, reference %v", x, got, want)
		}
	}
}

func TestNormalCDF_Range(t *testing.T) {
	for _, x := range []float64{-1e6, -40, -1, 1, 40, 1e6} {
		got := NormalCDF(x)
		if got < 0 || got > 1 {
			t.Errorf("NormalCDF(%v) = %v, outside [0,1]", x, got)
		}
	}
}

func TestNormalCDF_Monotone(t *testing.T) {
	prev := NormalCDF(-10)
	for x := -10.0; x <= 10.0; x += 0.001 {
		cur := NormalCDF(x)
		if cur < prev-1e-15 {
			t.Fatalf("NormalCDF decreased at %v: %v < %v", x, cur, prev)
		}
		prev = cur
	}
}

func TestNormalCDF_Symmetry(t *testing.T) {
	for _, x := range []float64{1e-6, 0.1, 0.5, 1, 1.96, 3, 6} {
		if diff := NormalCDF(-x) - (1 - NormalCDF(x)); math.Abs(diff) > 1e-15 {
			t.Errorf("N(-%v) != 1 - N(%v), diff %v", x, x, diff)
		}
	}
}
