package stats

import "gonum.org/v1/gonum/stat"

// Fit is an ordinary least squares line y = Slope*x + Intercept.
type Fit struct {
	Slope     float64
	Intercept float64
	RSquared  float64
	N         int
}

// LinearRegression fits y on x. When y is constant the line fits exactly and
// RSquared is 1.
func LinearRegression(xs, ys []float64) (Fit, error) {
	if len(xs) != len(ys) {
		return Fit{}, ErrLengthMismatch
	}
	n := len(xs)
	if n < 2 {
		return Fit{}, ErrInsufficientPoints
	}
	if stat.Variance(xs, nil) == 0 {
		return Fit{}, ErrNoVariance
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	fit := Fit{
		Slope:     beta,
		Intercept: alpha,
		N:         n,
	}
	// RSquared divides by the spread of y
	if stat.Variance(ys, nil) == 0 {
		fit.RSquared = 1
		return fit, nil
	}

	r2 := stat.RSquared(xs, ys, nil, alpha, beta)
	if r2 < 0 {
		r2 = 0
	}
	if r2 > 1 {
		r2 = 1
	}
	fit.RSquared = r2
	return fit, nil
}
