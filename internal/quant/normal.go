// Package quant holds closed-form pricing helpers used by the lattice engine.
package quant

import "math"

// Abramowitz & Stegun 7.1.26 coefficients
const (
	asP  = 0.3275911
	asA1 = 0.254829592
	asA2 = -0.284496736
	asA3 = 1.421413741
	asA4 = -1.453152027
	asA5 = 1.061405429
)

// NormalCDF returns P(Z <= x) for a standard normal Z.
// The rational approximation of erf has absolute error below 1.5e-7.
// x must be finite.
func NormalCDF(x float64) float64 {
	sign := 1.0
	if x < 0 {
		sign = -1.0
	}
	z := math.Abs(x) / math.Sqrt2

	t := 1.0 / (1.0 + asP*z)
	y := 1.0 - (((((asA5*t+asA4)*t)+asA3)*t+asA2)*t+asA1)*t*math.Exp(-z*z)

	return 0.5 * (1.0 + sign*y)
}
