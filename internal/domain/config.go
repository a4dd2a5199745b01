package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type DensityKind string

const (
	DensityUniform  DensityKind = "uniform"
	DensityPowerLaw DensityKind = "power_law"
	DensityExplicit DensityKind = "explicit"
)

type IonizationMode string

const (
	IonizationLTE     IonizationMode = "lte"
	IonizationNebular IonizationMode = "nebular"
)

type ExcitationMode string

const (
	ExcitationLTE       ExcitationMode = "lte"
	ExcitationDiluteLTE ExcitationMode = "dilute-lte"
)

type LineInteractionMode string

const (
	LineInteractionScatter    LineInteractionMode = "scatter"
	LineInteractionDownbranch LineInteractionMode = "downbranch"
)

type MetricKind string

const (
	MetricMaxRelative MetricKind = "max_relative"
	MetricRMSRelative MetricKind = "rms_relative"
)

// Configuration is the fully resolved, immutable input of a run. All
// quantities are CGS.
type Configuration struct {
	Name        string
	Seed        uint64
	Workers     int
	Supernova   SupernovaConfig
	Model       ModelConfig
	Plasma      PlasmaConfig
	Packets     PacketsConfig
	Convergence ConvergenceConfig
	Spectrum    SpectrumConfig
	Virtual     VirtualConfig
}

type SupernovaConfig struct {
	TimeExplosion       float64
	LuminosityRequested float64
	// InnerTemperature seeds the photosphere; zero derives it from the
	// requested luminosity.
	InnerTemperature float64
}

type ModelConfig struct {
	// Velocities are the shell boundaries, ascending.
	Velocities []float64
	Density    DensityConfig
	Abundances AbundanceConfig
}

type DensityConfig struct {
	Kind     DensityKind
	Value    float64
	Rho0     float64
	V0       float64
	Exponent float64
	T0       float64
	Values   []float64
}

// AbundanceConfig holds mass fractions keyed by element symbol, either one
// set for every shell or one set per shell.
type AbundanceConfig struct {
	Uniform map[string]float64
	Shells  []map[string]float64
}

func (a AbundanceConfig) ForShell(i int) map[string]float64 {
	if len(a.Shells) > 0 {
		return a.Shells[i]
	}
	return a.Uniform
}

type PlasmaConfig struct {
	Ionization            IonizationMode
	Excitation            ExcitationMode
	LineInteraction       LineInteractionMode
	ReemissionProbability float64
	InitialTRad           float64
	// ElectronTemperatureRatio links T_e to T_rad.
	ElectronTemperatureRatio float64
}

type PacketsConfig struct {
	Count     int
	LastCount int
	// TimeStep is the duration represented by one pass; zero means 1/L so
	// that a pass carries unit energy.
	TimeStep          float64
	MaxSteps          int
	StepLimitWarnRate float64
}

type ConvergenceConfig struct {
	Metric               MetricKind
	Threshold            float64
	HoldIterations       int
	DivergenceWindow     int
	DivergenceBound      float64
	MaxIterations        int
	DampingConstant      float64
	TInnerUpdateExponent float64
	Timeout              time.Duration
}

type SpectrumConfig struct {
	NuMin float64
	NuMax float64
	Bins  int
}

type VirtualConfig struct {
	Enabled        bool
	PerInteraction int
	Bins           int
	LogLimit       int
}

// DefaultConfiguration carries the defaults applied before a file is decoded.
func DefaultConfiguration() Configuration {
	return Configuration{
		Name:    "mcrt",
		Seed:    23111963,
		Workers: 0,
		Model: ModelConfig{
			Density: DensityConfig{Kind: DensityUniform},
		},
		Plasma: PlasmaConfig{
			Ionization:               IonizationNebular,
			Excitation:               ExcitationDiluteLTE,
			LineInteraction:          LineInteractionScatter,
			ReemissionProbability:    1,
			ElectronTemperatureRatio: 0.9,
		},
		Packets: PacketsConfig{
			Count:             10_000,
			LastCount:         50_000,
			MaxSteps:          1_000_000,
			StepLimitWarnRate: 0.01,
		},
		Convergence: ConvergenceConfig{
			Metric:               MetricMaxRelative,
			Threshold:            0.05,
			HoldIterations:       3,
			DivergenceWindow:     5,
			DivergenceBound:      10,
			MaxIterations:        20,
			DampingConstant:      0.5,
			TInnerUpdateExponent: -0.5,
		},
		Spectrum: SpectrumConfig{Bins: 1000},
		Virtual: VirtualConfig{
			PerInteraction: 3,
			Bins:           4000,
			LogLimit:       10_000,
		},
	}
}

// Validate collects every problem rather than stopping at the first.
func (c Configuration) Validate() error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if c.Workers < 0 {
		add(configErr("workers", "must not be negative, got %d", c.Workers))
	}

	sn := c.Supernova
	if sn.TimeExplosion <= 0 {
		add(configErr("supernova.time_explosion", "must be positive, got %g", sn.TimeExplosion))
	}
	if sn.LuminosityRequested <= 0 {
		add(configErr("supernova.luminosity_requested", "must be positive, got %g", sn.LuminosityRequested))
	}
	if sn.InnerTemperature < 0 {
		add(configErr("supernova.inner_temperature", "must not be negative, got %g", sn.InnerTemperature))
	}

	add(c.Model.validate())
	add(c.Plasma.validate())

	p := c.Packets
	if p.Count < 1 {
		add(configErr("packets.count", "must be at least 1, got %d", p.Count))
	}
	if p.LastCount < 1 {
		add(configErr("packets.last_count", "must be at least 1, got %d", p.LastCount))
	}
	if p.TimeStep < 0 {
		add(configErr("packets.time_step", "must not be negative, got %g", p.TimeStep))
	}
	if p.MaxSteps < 1 {
		add(configErr("packets.max_steps", "must be at least 1, got %d", p.MaxSteps))
	}
	if p.StepLimitWarnRate < 0 || p.StepLimitWarnRate > 1 {
		add(configErr("packets.step_limit_warn_rate", "must be within [0, 1], got %g", p.StepLimitWarnRate))
	}

	add(c.Convergence.validate())

	s := c.Spectrum
	if s.NuMin <= 0 || s.NuMax <= s.NuMin {
		add(configErr("spectrum", "frequency range [%g, %g] is empty", s.NuMin, s.NuMax))
	}
	if s.Bins < 1 {
		add(configErr("spectrum.bins", "must be at least 1, got %d", s.Bins))
	}

	if c.Virtual.Enabled {
		add(c.Virtual.Validate())
	}

	return errors.Join(errs...)
}

// Validate checks the virtual packet settings regardless of Enabled, for
// callers that switch virtual packets on after the configuration passed.
func (v VirtualConfig) Validate() error {
	var errs []error
	if v.PerInteraction < 1 {
		errs = append(errs, configErr("virtual.per_interaction", "must be at least 1, got %d", v.PerInteraction))
	}
	if v.Bins < 1 {
		errs = append(errs, configErr("virtual.bins", "must be at least 1, got %d", v.Bins))
	}
	return errors.Join(errs...)
}

func (m ModelConfig) validate() error {
	if len(m.Velocities) < 2 {
		return configErr("model.velocity", "need at least two boundaries, got %d", len(m.Velocities))
	}
	if m.Velocities[0] <= 0 {
		return configErr("model.velocity", "inner velocity must be positive, got %g", m.Velocities[0])
	}
	for i := 1; i < len(m.Velocities); i++ {
		if m.Velocities[i] <= m.Velocities[i-1] {
			return configErr("model.velocity", "boundaries must increase monotonically (index %d: %g <= %g)", i, m.Velocities[i], m.Velocities[i-1])
		}
	}
	shells := len(m.Velocities) - 1

	d := m.Density
	switch d.Kind {
	case DensityUniform:
		if d.Value < 0 {
			return configErr("model.density.value", "must not be negative, got %g", d.Value)
		}
	case DensityPowerLaw:
		if d.Rho0 < 0 || d.V0 <= 0 || d.T0 <= 0 {
			return configErr("model.density", "power law needs rho_0 >= 0, v_0 > 0 and t_0 > 0")
		}
	case DensityExplicit:
		if len(d.Values) != shells {
			return configErr("model.density.values", "expected %d values, got %d", shells, len(d.Values))
		}
		for i, v := range d.Values {
			if v < 0 {
				return configErr("model.density.values", "shell %d density is negative", i)
			}
		}
	default:
		return configErr("model.density.type", "unsupported density profile %q", d.Kind)
	}

	a := m.Abundances
	if len(a.Shells) > 0 && len(a.Shells) != shells {
		return configErr("model.abundances.shells", "expected %d shells, got %d", shells, len(a.Shells))
	}
	sets := a.Shells
	if len(sets) == 0 {
		sets = []map[string]float64{a.Uniform}
	}
	for i, set := range sets {
		total := 0.0
		for symbol, fraction := range set {
			if strings.TrimSpace(symbol) == "" {
				return configErr("model.abundances", "empty element symbol")
			}
			if fraction < 0 {
				return configErr("model.abundances", "%s fraction is negative", symbol)
			}
			total += fraction
		}
		if len(set) > 0 && (total < 0.999 || total > 1.001) {
			return configErr("model.abundances", "set %d mass fractions sum to %.4f, want 1", i, total)
		}
	}

	return nil
}

func (p PlasmaConfig) validate() error {
	switch p.Ionization {
	case IonizationLTE, IonizationNebular:
	default:
		return configErr("plasma.ionization", "unsupported mode %q", p.Ionization)
	}
	switch p.Excitation {
	case ExcitationLTE, ExcitationDiluteLTE:
	default:
		return configErr("plasma.excitation", "unsupported mode %q", p.Excitation)
	}
	switch p.LineInteraction {
	case LineInteractionScatter, LineInteractionDownbranch:
	default:
		return configErr("plasma.line_interaction", "unsupported mode %q", p.LineInteraction)
	}
	if p.ReemissionProbability < 0 || p.ReemissionProbability > 1 {
		return configErr("plasma.reemission_probability", "must be within [0, 1], got %g", p.ReemissionProbability)
	}
	if p.ElectronTemperatureRatio <= 0 {
		return configErr("plasma.electron_temperature_ratio", "must be positive, got %g", p.ElectronTemperatureRatio)
	}
	if p.InitialTRad < 0 {
		return configErr("plasma.initial_t_rad", "must not be negative, got %g", p.InitialTRad)
	}
	return nil
}

func (c ConvergenceConfig) validate() error {
	switch c.Metric {
	case MetricMaxRelative, MetricRMSRelative:
	default:
		return configErr("convergence.metric", "unsupported metric %q", c.Metric)
	}
	if c.Threshold <= 0 {
		return configErr("convergence.threshold", "must be positive, got %g", c.Threshold)
	}
	if c.HoldIterations < 1 {
		return configErr("convergence.hold_iterations", "must be at least 1, got %d", c.HoldIterations)
	}
	if c.DivergenceWindow < 2 {
		return configErr("convergence.divergence_window", "must be at least 2, got %d", c.DivergenceWindow)
	}
	if c.DivergenceBound <= c.Threshold {
		return configErr("convergence.divergence_bound", "must exceed the threshold (%g <= %g)", c.DivergenceBound, c.Threshold)
	}
	if c.MaxIterations < 1 {
		return configErr("convergence.max_iterations", "must be at least 1, got %d", c.MaxIterations)
	}
	if c.DampingConstant <= 0 || c.DampingConstant > 1 {
		return configErr("convergence.damping_constant", "must be within (0, 1], got %g", c.DampingConstant)
	}
	if c.Timeout < 0 {
		return configErr("convergence.timeout", "must not be negative, got %s", c.Timeout)
	}
	return nil
}

// Fingerprint is a short human-readable summary used in run files.
func (c Configuration) Fingerprint() string {
	return fmt.Sprintf("%s shells=%d packets=%d/%d seed=%d", c.Name, len(c.Model.Velocities)-1, c.Packets.Count, c.Packets.LastCount, c.Seed)
}
