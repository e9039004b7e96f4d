package kde

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGaussian_PeakAtZero(t *testing.T) {
	t.Parallel()

	for _, h := range []float64{0.1, 1, 2.5, 8, 40} {
		want := 1 / (h * math.Sqrt(2*math.Pi))
		assert.InDelta(t, want, Gaussian(0, h), 1e-15, "bandwidth %v", h)
		assert.Equal(t, Peak(h), Gaussian(0, h), "bandwidth %v", h)
	}
}

func TestGaussian_StrictlyDecreasing(t *testing.T) {
	t.Parallel()

	for _, h := range []float64{1, 8, 25} {
		prev := Gaussian(0, h)
		for d := 0.25; d <= 6*h; d += 0.25 {
			k := Gaussian(d, h)
			if k >= prev {
				t.Fatalf("h=%v: kernel(%v)=%v not below kernel(%v)=%v", h, d, k, d-0.25, prev)
			}
			prev = k
		}
	}
}

func TestGaussian_SymmetricAndPositive(t *testing.T) {
	t.Parallel()

	for _, d := range []float64{0.5, 3, 17, 60} {
		assert.Equal(t, Gaussian(d, 8), Gaussian(-d, 8))
		assert.Greater(t, Gaussian(d, 8), 0.0)
	}
}

func TestGaussian_KnownValue(t *testing.T) {
	t.Parallel()

	// One bandwidth away the kernel is peak·e^(-1/2).
	assert.InDelta(t, Peak(8)*math.Exp(-0.5), Gaussian(8, 8), 1e-15)
}
