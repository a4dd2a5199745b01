// Package physics holds CGS constants and the closed-form radiation relations
// shared by the plasma, opacity, transport and estimator packages.
package physics

import "math"

const (
	SpeedOfLight    = 2.99792458e10    // cm/s
	Planck          = 6.62607015e-27   // erg s
	Boltzmann       = 1.380649e-16     // erg/K
	StefanBoltzmann = 5.670374419e-5   // erg/(cm2 s K4)
	ThomsonCross    = 6.6524587321e-25 // cm2
	ElectronMass    = 9.1093837015e-28 // g
	AtomicMass      = 1.66053906660e-24
	ElectronVolt    = 1.602176634e-12 // erg

	// SobolevCoefficient is pi e^2 / (m_e c) in cm2/s.
	SobolevCoefficient = 0.026540081

	// FreeFreeCoefficient is the gaunt-averaged Kramers prefactor in CGS.
	FreeFreeCoefficient = 3.692e8

	Angstrom = 1e-8 // cm
	KmPerS   = 1e5  // cm/s
	Day      = 86400.0

	SolarLuminosity = 3.828e33 // erg/s
)

// radiationTemperatureFactor is pi^4 / (360 zeta(5)) * h / k.
var radiationTemperatureFactor = math.Pow(math.Pi, 4) / (360 * 1.0369277551433699) * Planck / Boltzmann

// Doppler returns the lab-to-comoving frequency factor 1 - mu v/c for
// homologous flow at radius r.
func Doppler(mu, r, timeExplosion float64) float64 {
	return 1 - mu*r/(timeExplosion*SpeedOfLight)
}

func InverseDoppler(mu, r, timeExplosion float64) float64 {
	return 1 / Doppler(mu, r, timeExplosion)
}

// BlackbodyLuminosity is 4 pi r^2 sigma T^4.
func BlackbodyLuminosity(radius, temperature float64) float64 {
	return 4 * math.Pi * radius * radius * StefanBoltzmann * math.Pow(temperature, 4)
}

func BlackbodyTemperature(radius, luminosity float64) float64 {
	return math.Pow(luminosity/(4*math.Pi*radius*radius*StefanBoltzmann), 0.25)
}

// RadiationTemperature converts the frequency-weighted and plain path-length
// estimators into a radiation temperature.
func RadiationTemperature(nuBar, j float64) float64 {
	if j <= 0 {
		return 0
	}
	return radiationTemperatureFactor * nuBar / j
}

// DilutionFactor returns W such that J = W B(T_rad).
func DilutionFactor(j, tRad, volume, timeStep float64) float64 {
	if tRad <= 0 || volume <= 0 || timeStep <= 0 {
		return 0
	}
	return j / (4 * StefanBoltzmann * math.Pow(tRad, 4) * volume * timeStep)
}

// GeometricDilution is the dilution of a photosphere of radius rInner seen
// from radius r.
func GeometricDilution(rInner, r float64) float64 {
	if r <= rInner {
		return 0.5
	}
	x := rInner / r
	return 0.5 * (1 - math.Sqrt(1-x*x))
}

func FrequencyToWavelength(nu float64) float64 {
	return SpeedOfLight / nu / Angstrom
}

func WavelengthToFrequency(angstrom float64) float64 {
	return SpeedOfLight / (angstrom * Angstrom)
}
