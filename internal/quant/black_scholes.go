package quant

import "math"

// ZeroStrikeEpsilon replaces a strike of exactly zero to keep ln(S/K) finite.
const ZeroStrikeEpsilon = 0.001

// BlackScholesCall values a European call with continuous dividend yield.
//
// A zero volatility skips d1/d2 and returns the deterministic discounted payoff
// max(S*e^(-qT) - K*e^(-rT), 0).
func BlackScholesCall(sharePrice, strikePrice, timeToMaturity, riskFree, divRate, sigma float64) float64 {
	if strikePrice == 0 {
		strikePrice = ZeroStrikeEpsilon
	}

	discountedShare := sharePrice * math.Exp(-divRate*timeToMaturity)
	discountedStrike := strikePrice * math.Exp(-riskFree*timeToMaturity)

	if sigma == 0 {
		return math.Max(discountedShare-discountedStrike, 0)
	}

	sqrtT := math.Sqrt(timeToMaturity)
	d1 := (math.Log(sharePrice/strikePrice) + timeToMaturity*(riskFree-divRate+0.5*sigma*sigma)) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT

	return discountedShare*NormalCDF(d1) - discountedStrike*NormalCDF(d2)
}
