package physics

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlackbodyLuminosityRoundTrip(t *testing.T) {
	t.Parallel()

	const r = 8.64e14
	l := BlackbodyLuminosity(r, 10_000)
	assert.InEpsilon(t, 4*math.Pi*r*r*StefanBoltzmann*1e16, l, 1e-12)
	assert.InEpsilon(t, 10_000, BlackbodyTemperature(r, l), 1e-12)
}

func TestWavelengthConversions(t *testing.T) {
	t.Parallel()

	nu := WavelengthToFrequency(6562.8)
	assert.InEpsilon(t, 4.568e14, nu, 1e-3)
	assert.InEpsilon(t, 6562.8, FrequencyToWavelength(nu), 1e-12)
}

func TestDopplerFactors(t *testing.T) {
	t.Parallel()

	const tExp = 10.0
	r := 0.05 * SpeedOfLight * tExp
	assert.InDelta(t, 0.95, Doppler(1, r, tExp), 1e-12)
	assert.InDelta(t, 1.05, Doppler(-1, r, tExp), 1e-12)
	assert.InDelta(t, 1, Doppler(0, r, tExp), 0)
	assert.InDelta(t, 1/0.95, InverseDoppler(1, r, tExp), 1e-12)
}

func TestRadiationTemperatureOfBlackbodyField(t *testing.T) {
	t.Parallel()

	// For an undiluted Planck field nu_bar / J = (360 zeta(5) / pi^4) k T / h.
	const temp = 12_000.0
	ratio := 360 * 1.0369277551433699 / math.Pow(math.Pi, 4) * Boltzmann * temp / Planck
	assert.InEpsilon(t, temp, RadiationTemperature(ratio, 1), 1e-12)
	assert.Zero(t, RadiationTemperature(1, 0))
}

func TestDilutionFactor(t *testing.T) {
	t.Parallel()

	const tRad, volume, dt = 8000.0, 1e45, 2.0
	j := 0.25 * 4 * StefanBoltzmann * math.Pow(tRad, 4) * volume * dt
	assert.InEpsilon(t, 0.25, DilutionFactor(j, tRad, volume, dt), 1e-12)
	assert.Zero(t, DilutionFactor(j, 0, volume, dt))
}

func TestGeometricDilution(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.5, GeometricDilution(1, 1))
	assert.Equal(t, 0.5, GeometricDilution(1, 0.5))
	assert.InDelta(t, 0.5*(1-math.Sqrt(0.75)), GeometricDilution(1, 2), 1e-12)
	assert.Less(t, GeometricDilution(1, 100), 1e-4)
}

func TestSampleBlackbodyMeanEnergy(t *testing.T) {
	t.Parallel()

	const (
		temp = 10_000.0
		n    = 200_000
	)
	rng := rand.New(rand.NewPCG(1, 2))
	sum := 0.0
	for range n {
		nu := SampleBlackbody(rng, temp)
		assert.Positive(t, nu)
		sum += Planck * nu / (Boltzmann * temp)
	}

	// Energy-weighted Planck mean of h nu / k T is 360 zeta(5) / pi^4.
	want := 360 * 1.0369277551433699 / math.Pow(math.Pi, 4)
	assert.InDelta(t, want, sum/n, 0.03)
}

func TestSampleDirections(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(3, 4))
	const n = 100_000
	var outward, isotropic float64
	for range n {
		mu := SampleOutwardMu(rng)
		assert.True(t, mu > 0 && mu <= 1)
		outward += mu

		iso := SampleIsotropicMu(rng)
		assert.True(t, iso >= -1 && iso < 1)
		isotropic += iso
	}

	assert.InDelta(t, 2.0/3.0, outward/n, 0.005)
	assert.InDelta(t, 0, isotropic/n, 0.01)
}
