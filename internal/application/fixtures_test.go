package application

import (
	"github.com/bnema/mcrt/internal/domain"
	"github.com/bnema/mcrt/internal/physics"
)

func hydrogen() *domain.AtomData {
	line := func(lower, upper int, wavelength, f, a float64) domain.Line {
		return domain.Line{
			AtomicNumber: 1,
			Lower:        lower,
			Upper:        upper,
			Wavelength:   wavelength,
			Nu:           physics.WavelengthToFrequency(wavelength),
			FLu:          f,
			AUL:          a,
		}
	}
	return &domain.AtomData{
		Elements: []domain.Element{{
			Symbol:       "H",
			AtomicNumber: 1,
			Mass:         1.00794,
			Ions: []domain.Ion{
				{Charge: 0, IonizationEnergy: 13.598, Levels: []domain.Level{{Energy: 0, Weight: 2}, {Energy: 10.199, Weight: 8}, {Energy: 12.088, Weight: 18}}},
				{Charge: 1, Levels: []domain.Level{{Energy: 0, Weight: 1}}},
			},
		}},
		Lines: []domain.Line{
			line(0, 1, 1215.67, 0.4164, 4.699e8),
			line(0, 2, 1025.72, 0.0791, 5.575e7),
			line(1, 2, 6562.8, 0.6407, 4.41e7),
		},
	}
}

// transparentConfig is a single empty shell: every packet escapes.
func transparentConfig() domain.Configuration {
	cfg := domain.DefaultConfiguration()
	cfg.Name = "transparent"
	cfg.Workers = 2
	cfg.Supernova.TimeExplosion = 10 * physics.Day
	cfg.Supernova.LuminosityRequested = 1e43
	cfg.Model.Velocities = []float64{1e9, 2e9}
	cfg.Model.Density = domain.DensityConfig{Kind: domain.DensityUniform, Value: 0}
	cfg.Model.Abundances = domain.AbundanceConfig{Uniform: map[string]float64{"H": 1}}
	cfg.Packets.Count = 100
	cfg.Packets.LastCount = 200
	cfg.Convergence.HoldIterations = 1
	cfg.Spectrum = domain.SpectrumConfig{NuMin: 1e13, NuMax: 1e17, Bins: 200}
	return cfg
}

// scatteringConfig puts an electron-scattering optical depth of roughly
// nine in the inner shell and leaves the outer shell empty.
func scatteringConfig() domain.Configuration {
	cfg := transparentConfig()
	cfg.Name = "scattering"
	cfg.Model.Velocities = []float64{1e9, 1.5e9, 2e9}
	cfg.Model.Density = domain.DensityConfig{Kind: domain.DensityExplicit, Values: []float64{5e-14, 0}}
	cfg.Packets.Count = 200
	cfg.Packets.LastCount = 400
	cfg.Convergence.MaxIterations = 2
	cfg.Virtual.LogLimit = 25
	return cfg
}
