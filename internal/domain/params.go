package domain

import "math"

// NonNegative is a finite value >= 0 (prices, times, the exercise multiple).
// The zero value is valid and equals 0.
type NonNegative struct {
	v float64
}

// NewNonNegative validates value and wraps it
func NewNonNegative(value float64, parameter string) (NonNegative, error) {
	if value >= 0 && !math.IsInf(value, 0) {
		return NonNegative{v: value}, nil
	}
	return NonNegative{}, &ParameterError{Kind: KindNonNegative, Parameter: parameter, Value: value}
}

// Float64 returns the wrapped value
func (n NonNegative) Float64() float64 { return n.v }

// Min returns the smaller of n and other
func (n NonNegative) Min(other NonNegative) NonNegative {
	if n.v <= other.v {
		return n
	}
	return other
}

// MinFloat validates other and returns the smaller of n and other.
func (n NonNegative) MinFloat(other float64) (NonNegative, error) {
	o, err := NewNonNegative(other, "comparison_value")
	if err != nil {
		return NonNegative{}, err
	}
	return n.Min(o), nil
}

// StepCount is a lattice step count > 0
type StepCount struct {
	n int
}

// NewStepCount validates value and wraps it
func NewStepCount(value int, parameter string) (StepCount, error) {
	if value > 0 {
		return StepCount{n: value}, nil
	}
	return StepCount{}, &ParameterError{Kind: KindStepCount, Parameter: parameter, Value: float64(value)}
}

// Int returns the wrapped count
func (s StepCount) Int() int { return s.n }

// Rate is a finite value strictly inside (0, 1): risk-free rate, dividend yield, exit rates.
type Rate struct {
	v float64
}

// NewRate validates value and wraps it
func NewRate(value float64, parameter string) (Rate, error) {
	if value > 0 && value < 1 {
		return Rate{v: value}, nil
	}
	return Rate{}, &ParameterError{Kind: KindRate, Parameter: parameter, Value: value}
}

// Float64 returns the wrapped value
func (r Rate) Float64() float64 { return r.v }

// Volatility is a finite value > 0
type Volatility struct {
	v float64
}

// NewVolatility validates value and wraps it
func NewVolatility(value float64) (Volatility, error) {
	if value > 0 && !math.IsInf(value, 0) {
		return Volatility{v: value}, nil
	}
	return Volatility{}, &ParameterError{Kind: KindVolatility, Parameter: "sigma", Value: value}
}

// Float64 returns the wrapped value
func (v Volatility) Float64() float64 { return v.v }

// OptionParameters is the validated form of Inputs.
// Build it with NewOptionParameters; it is never mutated afterwards.
type OptionParameters struct {
	sharePrice      NonNegative
	strikePrice     NonNegative
	timeToMaturity  NonNegative
	vestingPeriod   NonNegative
	riskFree        Rate
	sigma           Volatility
	divRate         Rate
	exitPreVesting  Rate
	exitPostVesting Rate
	multiple        NonNegative
	steps           StepCount
}

// NewOptionParameters validates every input in host order and returns the first failure.
// The vesting period is clamped to the time to maturity.
func NewOptionParameters(in Inputs) (OptionParameters, error) {
	var (
		p   OptionParameters
		err error
	)

	if p.sharePrice, err = NewNonNegative(in.SharePrice, "share_price"); err != nil {
		return OptionParameters{}, err
	}
	if p.strikePrice, err = NewNonNegative(in.StrikePrice, "strike_price"); err != nil {
		return OptionParameters{}, err
	}
	if p.timeToMaturity, err = NewNonNegative(in.TimeToMaturity, "time_to_maturity"); err != nil {
		return OptionParameters{}, err
	}
	vesting, err := NewNonNegative(in.VestingPeriod, "vesting_period")
	if err != nil {
		return OptionParameters{}, err
	}
	p.vestingPeriod = vesting.Min(p.timeToMaturity)

	if p.riskFree, err = NewRate(in.RiskFree, "risk_free"); err != nil {
		return OptionParameters{}, err
	}
	if p.sigma, err = NewVolatility(in.Sigma); err != nil {
		return OptionParameters{}, err
	}
	if p.divRate, err = NewRate(in.DivRate, "div_rate"); err != nil {
		return OptionParameters{}, err
	}
	if p.exitPreVesting, err = NewRate(in.ExitPreVesting, "exit_pre_vesting"); err != nil {
		return OptionParameters{}, err
	}
	if p.exitPostVesting, err = NewRate(in.ExitPostVesting, "exit_post_vesting"); err != nil {
		return OptionParameters{}, err
	}
	if p.multiple, err = NewNonNegative(in.Multiple, "multiple"); err != nil {
		return OptionParameters{}, err
	}
	if p.steps, err = NewStepCount(in.Steps, "steps"); err != nil {
		return OptionParameters{}, err
	}

	return p, nil
}

func (p OptionParameters) SharePrice() NonNegative     { return p.sharePrice }
func (p OptionParameters) StrikePrice() NonNegative    { return p.strikePrice }
func (p OptionParameters) TimeToMaturity() NonNegative { return p.timeToMaturity }
func (p OptionParameters) VestingPeriod() NonNegative  { return p.vestingPeriod }
func (p OptionParameters) RiskFree() Rate              { return p.riskFree }
func (p OptionParameters) Sigma() Volatility           { return p.sigma }
func (p OptionParameters) DivRate() Rate               { return p.divRate }
func (p OptionParameters) ExitPreVesting() Rate        { return p.exitPreVesting }
func (p OptionParameters) ExitPostVesting() Rate       { return p.exitPostVesting }
func (p OptionParameters) Multiple() NonNegative       { return p.multiple }
func (p OptionParameters) Steps() StepCount            { return p.steps }

// Inputs returns the validated values as plain inputs
func (p OptionParameters) Inputs() Inputs {
	return Inputs{
		SharePrice:      p.sharePrice.v,
		StrikePrice:     p.strikePrice.v,
		TimeToMaturity:  p.timeToMaturity.v,
		VestingPeriod:   p.vestingPeriod.v,
		RiskFree:        p.riskFree.v,
		Sigma:           p.sigma.v,
		DivRate:         p.divRate.v,
		ExitPreVesting:  p.exitPreVesting.v,
		ExitPostVesting: p.exitPostVesting.v,
		Multiple:        p.multiple.v,
		Steps:           p.steps.n,
	}
}
