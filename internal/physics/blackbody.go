package physics

import "math"

// Uniform is the random capability the samplers need.
type Uniform interface {
	Float64() float64
}

const blackbodySeriesLimit = 1000

var blackbodyNorm = math.Pow(math.Pi, 4) / 90

// SampleBlackbody draws a frequency from a Planck distribution at
// temperature using the Carter-Cashwell series method.
func SampleBlackbody(rng Uniform, temperature float64) float64 {
	xi0 := rng.Float64() * blackbodyNorm
	l := 1
	sum := 1.0
	for sum < xi0 && l < blackbodySeriesLimit {
		l++
		fl := float64(l)
		sum += 1 / (fl * fl * fl * fl)
	}

	product := openUnit(rng) * openUnit(rng) * openUnit(rng) * openUnit(rng)
	x := -math.Log(product) / float64(l)

	return x * Boltzmann * temperature / Planck
}

// SampleOutwardMu draws a flux-weighted direction cosine into the outer
// hemisphere.
func SampleOutwardMu(rng Uniform) float64 {
	return math.Sqrt(openUnit(rng))
}

// SampleIsotropicMu draws a direction cosine uniformly in [-1, 1].
func SampleIsotropicMu(rng Uniform) float64 {
	return 2*rng.Float64() - 1
}

// openUnit maps [0,1) onto (0,1].
func openUnit(rng Uniform) float64 {
	return 1 - rng.Float64()
}
