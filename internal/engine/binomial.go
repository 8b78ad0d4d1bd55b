// Package engine values employee stock options on a binomial lattice.
//
// Two entry points exist with different trust levels. BinomialValue accepts raw
// inputs, applies a few clamps and otherwise trusts them: malformed values flow
// through as NaN or nonsensical numbers. Value takes domain.OptionParameters,
// which can only be built through validation.
//
// Both are pure functions of their inputs and safe for concurrent use.
package engine

import (
	"math"

	"eso_go/internal/domain"
	"eso_go/internal/quant"
)

const (
	// machineEpsilon is the gap between 1.0 and the next float64.
	machineEpsilon = 0x1p-52

	// vestStepEpsilon pushes exact multiples of dt onto the intended step.
	vestStepEpsilon = 0.001
)

// Value runs the lattice on validated parameters.
func Value(p domain.OptionParameters) domain.Valuation {
	return BinomialValue(p.Inputs())
}

// BinomialValue returns the fair value and expected life of an employee stock option.
//
// Shortcuts, in order:
//   - a strike of exactly zero is replaced by quant.ZeroStrikeEpsilon
//   - the vesting period is clamped to the time to maturity
//   - zero maturity returns [max(S-K, 0), 0]
//   - vesting equal to maturity returns [BlackScholesCall, maturity]
//
// Otherwise the lattice is built with in.Steps steps. A negative step count
// cannot size a lattice and yields [NaN, NaN].
func BinomialValue(in domain.Inputs) domain.Valuation {
	strike := in.StrikePrice
	if strike == 0 {
		strike = quant.ZeroStrikeEpsilon
	}

	maturity := in.TimeToMaturity
	vesting := in.VestingPeriod
	if vesting > maturity {
		vesting = maturity
	}

	if maturity == 0 {
		return domain.Valuation{
			Value:        math.Max(in.SharePrice-strike, 0),
			ExpectedLife: 0,
			Method:       domain.MethodExpiry,
		}
	}

	if math.Abs(vesting-maturity) < machineEpsilon {
		return domain.Valuation{
			Value:        quant.BlackScholesCall(in.SharePrice, strike, maturity, in.RiskFree, in.DivRate, in.Sigma),
			ExpectedLife: maturity,
			Method:       domain.MethodClosedForm,
		}
	}

	if in.Steps < 0 {
		return domain.Valuation{Value: math.NaN(), ExpectedLife: math.NaN(), Method: domain.MethodInvalid}
	}

	value, life := valueLattice(in, strike, vesting)
	return domain.Valuation{Value: value, ExpectedLife: life, Method: domain.MethodLattice}
}

// valueLattice performs the forward price build and the backward induction.
// Option value and both duration accumulators are filled in the same pass
// because they share the exercise and forfeiture branching at every node.
func valueLattice(in domain.Inputs, strike, vesting float64) (value, expectedLife float64) {
	steps := in.Steps
	maturity := in.TimeToMaturity

	// 1. Lattice parameters
	dt := maturity / float64(steps)
	u := math.Exp(in.Sigma * math.Sqrt(dt))
	d := 1.0 / u
	r := math.Exp(in.RiskFree * dt)

	var p float64
	if math.Abs(u-d) < machineEpsilon {
		p = 1.0 // zero-volatility lattice
	} else {
		p = (math.Exp((in.RiskFree-in.DivRate)*dt) - d) / (u - d)
	}

	vestStep := vestingStep(vesting/dt+vestStepEpsilon, steps)

	// Per-step survival and exit probabilities
	px := math.Pow(1.0-in.ExitPostVesting, dt)
	qx := 1.0 - px
	pxPre := math.Pow(1.0-in.ExitPreVesting, dt)

	uPow := make([]float64, steps+1)
	dPow := make([]float64, steps+1)
	for k := 0; k <= steps; k++ {
		uPow[k] = math.Pow(u, float64(k))
		dPow[k] = math.Pow(d, float64(k))
	}

	l := acquireLattice(steps)
	defer releaseLattice(l)
	trigger := strike * in.Multiple

	// 2. Share prices and intrinsic values
	for i := steps; i >= 0; i-- {
		for j := 0; j <= i; j++ {
			n := l.idx(i, j)
			l.price[n] = in.SharePrice * uPow[j] * dPow[i-j]
			l.intrinsic[n] = math.Max(l.price[n]-strike, 0)
		}
	}

	// 3. Terminal nodes: exercise or expiry at maturity accrues the full horizon
	for j := 0; j <= steps; j++ {
		n := l.idx(steps, j)
		l.value[n] = l.intrinsic[n]
		l.durDen[n] = l.intrinsic[n]
		l.durNum[n] = l.intrinsic[n] * maturity
	}

	// 4. Backward induction
	for i := steps - 1; i >= 0; i-- {
		step := float64(i)
		for j := 0; j <= i; j++ {
			n := l.idx(i, j)
			up := l.idx(i+1, j+1)
			down := l.idx(i+1, j)

			continuation := (p*l.value[up] + (1.0-p)*l.value[down]) / r
			childNum := p*l.durNum[up] + (1.0-p)*l.durNum[down]
			childDen := p*l.durDen[up] + (1.0-p)*l.durDen[down]
			intrinsic := l.intrinsic[n]

			if i >= vestStep {
				exercise := intrinsic > continuation || l.price[n] >= trigger
				if exercise {
					l.value[n] = intrinsic
					l.durDen[n] = intrinsic
					l.durNum[n] = intrinsic * step * dt
				} else {
					// An exiting holder forfeits continuation and realises intrinsic value.
					l.value[n] = px*continuation + qx*intrinsic
					l.durDen[n] = px*childDen + qx*intrinsic
					l.durNum[n] = px*childNum + qx*intrinsic*step*dt
				}
				continue
			}

			// Unvested: exit forfeits everything. Duration terms carry no pxPre weighting,
			// unlike the vested branch above.
			l.value[n] = pxPre * continuation
			l.durDen[n] = childDen
			l.durNum[n] = childNum
		}
	}

	root := l.idx(0, 0)
	if l.durDen[root] != 0 {
		expectedLife = l.durNum[root] / l.durDen[root]
	}
	return l.value[root], expectedLife
}

// vestingStep truncates f to a step index in [0, steps+1].
func vestingStep(f float64, steps int) int {
	if !(f > 0) {
		return 0
	}
	if f > float64(steps+1) {
		return steps + 1
	}
	return int(f)
}
