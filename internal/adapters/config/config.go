// Package config resolves run configurations from files, raw maps or
// already built values into a validated domain.Configuration.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/bnema/mcrt/internal/domain"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"gonum.org/v1/gonum/floats"
)

const envPrefix = "MCRT"

var ErrAmbiguousInput = errors.New("exactly one configuration input must be set")

// Input is the tagged union accepted by Resolve. Exactly one field is set.
type Input struct {
	Path     string
	Raw      map[string]any
	Resolved *domain.Configuration
}

type Loader struct {
	fs  afero.Fs
	env bool
}

type Option func(*Loader)

// WithoutEnv ignores MCRT_* environment overrides.
func WithoutEnv() Option {
	return func(l *Loader) { l.env = false }
}

func NewLoader(fs afero.Fs, opts ...Option) *Loader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	l := &Loader{fs: fs, env: true}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Resolve turns any input form into a validated configuration.
func (l *Loader) Resolve(in Input) (domain.Configuration, error) {
	set := 0
	if in.Path != "" {
		set++
	}
	if in.Raw != nil {
		set++
	}
	if in.Resolved != nil {
		set++
	}
	if set != 1 {
		return domain.Configuration{}, fmt.Errorf("%w (got %d)", ErrAmbiguousInput, set)
	}

	switch {
	case in.Resolved != nil:
		cfg := *in.Resolved
		if err := cfg.Validate(); err != nil {
			return domain.Configuration{}, err
		}
		return cfg, nil
	case in.Raw != nil:
		v := l.newViper()
		if err := v.MergeConfigMap(in.Raw); err != nil {
			return domain.Configuration{}, fmt.Errorf("merge raw configuration: %w", err)
		}
		return decode(v)
	default:
		return l.Load(in.Path)
	}
}

// Load reads a TOML, YAML or JSON file chosen by extension.
func (l *Loader) Load(path string) (domain.Configuration, error) {
	v := l.newViper()
	v.SetConfigFile(path)
	if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext == "" {
		v.SetConfigType("toml")
	}
	if err := v.ReadInConfig(); err != nil {
		return domain.Configuration{}, fmt.Errorf("read configuration %s: %w", path, err)
	}
	return decode(v)
}

func (l *Loader) newViper() *viper.Viper {
	v := viper.New()
	v.SetFs(l.fs)
	setDefaults(v)
	if l.env {
		v.SetEnvPrefix(envPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
	}
	return v
}

func setDefaults(v *viper.Viper) {
	d := domain.DefaultConfiguration()
	v.SetDefault("name", d.Name)
	v.SetDefault("seed", d.Seed)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("supernova.inner_temperature", d.Supernova.InnerTemperature)
	v.SetDefault("model.density.type", string(d.Model.Density.Kind))
	v.SetDefault("plasma.ionization", string(d.Plasma.Ionization))
	v.SetDefault("plasma.excitation", string(d.Plasma.Excitation))
	v.SetDefault("plasma.line_interaction", string(d.Plasma.LineInteraction))
	v.SetDefault("plasma.reemission_probability", d.Plasma.ReemissionProbability)
	v.SetDefault("plasma.initial_t_rad", d.Plasma.InitialTRad)
	v.SetDefault("plasma.electron_temperature_ratio", d.Plasma.ElectronTemperatureRatio)
	v.SetDefault("packets.count", d.Packets.Count)
	v.SetDefault("packets.last_count", d.Packets.LastCount)
	v.SetDefault("packets.time_step", d.Packets.TimeStep)
	v.SetDefault("packets.max_steps", d.Packets.MaxSteps)
	v.SetDefault("packets.step_limit_warn_rate", d.Packets.StepLimitWarnRate)
	v.SetDefault("convergence.metric", string(d.Convergence.Metric))
	v.SetDefault("convergence.threshold", d.Convergence.Threshold)
	v.SetDefault("convergence.hold_iterations", d.Convergence.HoldIterations)
	v.SetDefault("convergence.divergence_window", d.Convergence.DivergenceWindow)
	v.SetDefault("convergence.divergence_bound", d.Convergence.DivergenceBound)
	v.SetDefault("convergence.max_iterations", d.Convergence.MaxIterations)
	v.SetDefault("convergence.damping_constant", d.Convergence.DampingConstant)
	v.SetDefault("convergence.t_inner_update_exponent", d.Convergence.TInnerUpdateExponent)
	v.SetDefault("convergence.timeout", d.Convergence.Timeout.String())
	v.SetDefault("spectrum.bins", d.Spectrum.Bins)
	v.SetDefault("virtual.enabled", d.Virtual.Enabled)
	v.SetDefault("virtual.per_interaction", d.Virtual.PerInteraction)
	v.SetDefault("virtual.bins", d.Virtual.Bins)
	v.SetDefault("virtual.log_limit", d.Virtual.LogLimit)
}

func decode(v *viper.Viper) (domain.Configuration, error) {
	var file fileConfig
	err := v.Unmarshal(&file,
		viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
			quantityHook(),
			mapstructure.StringToSliceHookFunc(","),
		)),
		func(c *mapstructure.DecoderConfig) { c.ErrorUnused = true },
	)
	if err != nil {
		return domain.Configuration{}, &domain.ConfigurationError{Field: "config", Reason: err.Error()}
	}

	cfg, err := file.resolve()
	if err != nil {
		return domain.Configuration{}, err
	}
	if err := cfg.Validate(); err != nil {
		return domain.Configuration{}, err
	}
	return cfg, nil
}

type fileConfig struct {
	Name        string          `mapstructure:"name"`
	Seed        uint64          `mapstructure:"seed"`
	Workers     int             `mapstructure:"workers"`
	Supernova   supernovaFile   `mapstructure:"supernova"`
	Model       modelFile       `mapstructure:"model"`
	Plasma      plasmaFile      `mapstructure:"plasma"`
	Packets     packetsFile     `mapstructure:"packets"`
	Convergence convergenceFile `mapstructure:"convergence"`
	Spectrum    spectrumFile    `mapstructure:"spectrum"`
	Virtual     virtualFile     `mapstructure:"virtual"`
}

type supernovaFile struct {
	TimeExplosion       float64 `mapstructure:"time_explosion"`
	LuminosityRequested float64 `mapstructure:"luminosity_requested"`
	InnerTemperature    float64 `mapstructure:"inner_temperature"`
}

type modelFile struct {
	Velocity   velocityFile  `mapstructure:"velocity"`
	Density    densityFile   `mapstructure:"density"`
	Abundances abundanceFile `mapstructure:"abundances"`
}

// velocityFile is either an explicit boundary list or a linear grid of num
// shells between start and stop.
type velocityFile struct {
	Start  float64   `mapstructure:"start"`
	Stop   float64   `mapstructure:"stop"`
	Num    int       `mapstructure:"num"`
	Values []float64 `mapstructure:"values"`
}

type densityFile struct {
	Type     string    `mapstructure:"type"`
	Value    float64   `mapstructure:"value"`
	Rho0     float64   `mapstructure:"rho_0"`
	V0       float64   `mapstructure:"v_0"`
	Exponent float64   `mapstructure:"exponent"`
	T0       float64   `mapstructure:"t_0"`
	Values   []float64 `mapstructure:"values"`
}

type abundanceFile struct {
	Uniform map[string]float64   `mapstructure:"uniform"`
	Shells  []map[string]float64 `mapstructure:"shells"`
}

type plasmaFile struct {
	Ionization               string  `mapstructure:"ionization"`
	Excitation               string  `mapstructure:"excitation"`
	LineInteraction          string  `mapstructure:"line_interaction"`
	ReemissionProbability    float64 `mapstructure:"reemission_probability"`
	InitialTRad              float64 `mapstructure:"initial_t_rad"`
	ElectronTemperatureRatio float64 `mapstructure:"electron_temperature_ratio"`
}

type packetsFile struct {
	Count             int     `mapstructure:"count"`
	LastCount         int     `mapstructure:"last_count"`
	TimeStep          float64 `mapstructure:"time_step"`
	MaxSteps          int     `mapstructure:"max_steps"`
	StepLimitWarnRate float64 `mapstructure:"step_limit_warn_rate"`
}

type convergenceFile struct {
	Metric               string        `mapstructure:"metric"`
	Threshold            float64       `mapstructure:"threshold"`
	HoldIterations       int           `mapstructure:"hold_iterations"`
	DivergenceWindow     int           `mapstructure:"divergence_window"`
	DivergenceBound      float64       `mapstructure:"divergence_bound"`
	MaxIterations        int           `mapstructure:"max_iterations"`
	DampingConstant      float64       `mapstructure:"damping_constant"`
	TInnerUpdateExponent float64       `mapstructure:"t_inner_update_exponent"`
	Timeout              time.Duration `mapstructure:"timeout"`
}

type virtualFile struct {
	Enabled        bool `mapstructure:"enabled"`
	PerInteraction int  `mapstructure:"per_interaction"`
	Bins           int  `mapstructure:"bins"`
	LogLimit       int  `mapstructure:"log_limit"`
}

// spectrumFile accepts frequencies or wavelengths for either end of the
// range; the ends are ordered after conversion.
type spectrumFile struct {
	Start frequency `mapstructure:"start"`
	Stop  frequency `mapstructure:"stop"`
	Bins  int       `mapstructure:"bins"`
}

func (f fileConfig) resolve() (domain.Configuration, error) {
	velocities, err := f.Model.Velocity.boundaries()
	if err != nil {
		return domain.Configuration{}, err
	}

	nuMin, nuMax := float64(f.Spectrum.Start), float64(f.Spectrum.Stop)
	if nuMin > nuMax {
		nuMin, nuMax = nuMax, nuMin
	}

	shells := make([]map[string]float64, 0, len(f.Model.Abundances.Shells))
	for _, set := range f.Model.Abundances.Shells {
		shells = append(shells, canonicalSymbols(set))
	}
	if len(shells) == 0 {
		shells = nil
	}

	return domain.Configuration{
		Name:    f.Name,
		Seed:    f.Seed,
		Workers: f.Workers,
		Supernova: domain.SupernovaConfig{
			TimeExplosion:       f.Supernova.TimeExplosion,
			LuminosityRequested: f.Supernova.LuminosityRequested,
			InnerTemperature:    f.Supernova.InnerTemperature,
		},
		Model: domain.ModelConfig{
			Velocities: velocities,
			Density: domain.DensityConfig{
				Kind:     domain.DensityKind(strings.ToLower(f.Model.Density.Type)),
				Value:    f.Model.Density.Value,
				Rho0:     f.Model.Density.Rho0,
				V0:       f.Model.Density.V0,
				Exponent: f.Model.Density.Exponent,
				T0:       f.Model.Density.T0,
				Values:   f.Model.Density.Values,
			},
			Abundances: domain.AbundanceConfig{
				Uniform: canonicalSymbols(f.Model.Abundances.Uniform),
				Shells:  shells,
			},
		},
		Plasma: domain.PlasmaConfig{
			Ionization:               domain.IonizationMode(strings.ToLower(f.Plasma.Ionization)),
			Excitation:               domain.ExcitationMode(strings.ToLower(f.Plasma.Excitation)),
			LineInteraction:          domain.LineInteractionMode(strings.ToLower(f.Plasma.LineInteraction)),
			ReemissionProbability:    f.Plasma.ReemissionProbability,
			InitialTRad:              f.Plasma.InitialTRad,
			ElectronTemperatureRatio: f.Plasma.ElectronTemperatureRatio,
		},
		Packets: domain.PacketsConfig{
			Count:             f.Packets.Count,
			LastCount:         f.Packets.LastCount,
			TimeStep:          f.Packets.TimeStep,
			MaxSteps:          f.Packets.MaxSteps,
			StepLimitWarnRate: f.Packets.StepLimitWarnRate,
		},
		Convergence: domain.ConvergenceConfig{
			Metric:               domain.MetricKind(strings.ToLower(f.Convergence.Metric)),
			Threshold:            f.Convergence.Threshold,
			HoldIterations:       f.Convergence.HoldIterations,
			DivergenceWindow:     f.Convergence.DivergenceWindow,
			DivergenceBound:      f.Convergence.DivergenceBound,
			MaxIterations:        f.Convergence.MaxIterations,
			DampingConstant:      f.Convergence.DampingConstant,
			TInnerUpdateExponent: f.Convergence.TInnerUpdateExponent,
			Timeout:              f.Convergence.Timeout,
		},
		Spectrum: domain.SpectrumConfig{NuMin: nuMin, NuMax: nuMax, Bins: f.Spectrum.Bins},
		Virtual: domain.VirtualConfig{
			Enabled:        f.Virtual.Enabled,
			PerInteraction: f.Virtual.PerInteraction,
			Bins:           f.Virtual.Bins,
			LogLimit:       f.Virtual.LogLimit,
		},
	}, nil
}

func (v velocityFile) boundaries() ([]float64, error) {
	if len(v.Values) > 0 {
		if v.Num > 0 {
			return nil, &domain.ConfigurationError{Field: "model.velocity", Reason: "set either values or start/stop/num, not both"}
		}
		return v.Values, nil
	}
	if v.Num < 1 {
		return nil, &domain.ConfigurationError{Field: "model.velocity.num", Reason: fmt.Sprintf("must be at least 1, got %d", v.Num)}
	}
	out := make([]float64, v.Num+1)
	floats.Span(out, v.Start, v.Stop)
	return out, nil
}

// canonicalSymbols restores element symbol case lost to key folding.
func canonicalSymbols(set map[string]float64) map[string]float64 {
	if set == nil {
		return nil
	}
	out := make(map[string]float64, len(set))
	for symbol, fraction := range set {
		out[canonicalSymbol(symbol)] = fraction
	}
	return out
}

func canonicalSymbol(symbol string) string {
	runes := []rune(strings.ToLower(strings.TrimSpace(symbol)))
	if len(runes) == 0 {
		return ""
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
