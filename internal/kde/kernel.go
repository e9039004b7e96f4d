package kde

import "math"

// invSqrt2Pi is 1/√(2π).
var invSqrt2Pi = 1 / math.Sqrt(2*math.Pi)

// Gaussian evaluates the 1-D Gaussian kernel with the given bandwidth at the
// given distance. The kernel is never truncated, so every point contributes
// to every cell however far away it is.
//
// bandwidth must be positive; Config.Validate is where that is enforced.
func Gaussian(distance, bandwidth float64) float64 {
	u := distance / bandwidth
	return invSqrt2Pi / bandwidth * math.Exp(-0.5*u*u)
}

// Peak returns the kernel value at distance zero.
func Peak(bandwidth float64) float64 {
	return invSqrt2Pi / bandwidth
}
