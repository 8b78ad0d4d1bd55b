package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// Inputs carries the eleven raw valuation scalars in host order.
// It holds no invariant; see NewOptionParameters for the validated form.
type Inputs struct {
	SharePrice      float64 `json:"share_price"`
	StrikePrice     float64 `json:"strike_price"`
	TimeToMaturity  float64 `json:"time_to_maturity"` // years
	VestingPeriod   float64 `json:"vesting_period"`   // years
	RiskFree        float64 `json:"risk_free"`
	Sigma           float64 `json:"sigma"`
	DivRate         float64 `json:"div_rate"`
	ExitPreVesting  float64 `json:"exit_pre_vesting"`
	ExitPostVesting float64 `json:"exit_post_vesting"`
	Multiple        float64 `json:"multiple"`
	Steps           int     `json:"steps"`
}

// StepsFromFloat converts a host-supplied float step count, truncating toward zero.
func StepsFromFloat(f float64) int {
	if math.IsNaN(f) {
		return 0
	}
	return int(f)
}

// Method identifies which path produced a Valuation
type Method string

const (
	MethodExpiry     Method = "expiry"      // time to maturity is zero
	MethodClosedForm Method = "closed_form" // vesting equals maturity
	MethodLattice    Method = "lattice"
	MethodInvalid    Method = "invalid" // inputs could not size a lattice
)

// Valuation is the engine result: fair value and expected life in years
type Valuation struct {
	Value        float64 `json:"value"`
	ExpectedLife float64 `json:"expected_life"`
	Method       Method  `json:"method"`
}

// Pair returns the ordered host result [value, expected life]
func (v Valuation) Pair() []float64 {
	return []float64{v.Value, v.ExpectedLife}
}

// Rounded returns value and expected life as decimals rounded to places.
// Non-finite results round to zero.
func (v Valuation) Rounded(places int32) (value, life decimal.Decimal) {
	return roundFloat(v.Value, places), roundFloat(v.ExpectedLife, places)
}

func roundFloat(f float64, places int32) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f).Round(places)
}
