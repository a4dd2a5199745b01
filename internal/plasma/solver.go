// Package plasma derives per-shell ionization, excitation and opacity
// coefficients from the radiation field parameters (T_rad, W) of each shell.
package plasma

import (
	"fmt"
	"math"

	"github.com/bnema/mcrt/internal/domain"
	"github.com/bnema/mcrt/internal/physics"
)

const (
	electronDensityTolerance = 1e-6
	electronDensityMaxIter   = 200
	minElectronFraction      = 1e-12
)

type lineRef struct {
	element int
	charge  int
	lower   int
	upper   int
}

// Solver is immutable once built and safe for concurrent use.
type Solver struct {
	cfg       domain.PlasmaConfig
	atoms     *domain.AtomData
	geometry  domain.Geometry
	lines     []domain.Line
	refs      []lineRef
	densities []float64
	// nuclei[shell][element] in cm-3.
	nuclei [][]float64
}

func NewSolver(cfg domain.Configuration, atoms *domain.AtomData, geometry domain.Geometry) (*Solver, error) {
	if atoms == nil {
		return nil, fmt.Errorf("%w: atom data is nil", domain.ErrAtomData)
	}

	densities, err := shellDensities(cfg, geometry)
	if err != nil {
		return nil, err
	}

	nuclei := make([][]float64, geometry.NumShells())
	for i := range nuclei {
		nuclei[i] = make([]float64, len(atoms.Elements))
		for symbol, fraction := range cfg.Model.Abundances.ForShell(i) {
			idx, ok := atoms.ElementIndex(symbol)
			if !ok {
				return nil, &domain.ConfigurationError{
					Field:  "model.abundances",
					Reason: fmt.Sprintf("element %q is missing from the atom data", symbol),
				}
			}
			mass := atoms.Elements[idx].Mass * physics.AtomicMass
			nuclei[i][idx] += densities[i] * fraction / mass
		}
	}

	lines := atoms.SortedLines()
	refs := make([]lineRef, len(lines))
	for i, line := range lines {
		idx, ok := atoms.ElementByNumber(line.AtomicNumber)
		if !ok {
			return nil, fmt.Errorf("%w: line %d references Z=%d", domain.ErrAtomData, i, line.AtomicNumber)
		}
		refs[i] = lineRef{element: idx, charge: line.Charge, lower: line.Lower, upper: line.Upper}
	}

	return &Solver{
		cfg:       cfg.Plasma,
		atoms:     atoms,
		geometry:  geometry,
		lines:     lines,
		refs:      refs,
		densities: densities,
		nuclei:    nuclei,
	}, nil
}

func shellDensities(cfg domain.Configuration, geometry domain.Geometry) ([]float64, error) {
	d := cfg.Model.Density
	out := make([]float64, geometry.NumShells())
	for i, shell := range geometry.Shells {
		switch d.Kind {
		case domain.DensityUniform:
			out[i] = d.Value
		case domain.DensityPowerLaw:
			v := geometry.Velocity(shell.MidRadius())
			out[i] = d.Rho0 * math.Pow(v/d.V0, d.Exponent) * math.Pow(geometry.TimeExplosion/d.T0, -3)
		case domain.DensityExplicit:
			out[i] = d.Values[i]
		default:
			return nil, &domain.ConfigurationError{Field: "model.density.type", Reason: fmt.Sprintf("unsupported density profile %q", d.Kind)}
		}
	}
	return out, nil
}

func (s *Solver) Lines() []domain.Line {
	return s.lines
}

// Initial builds the first-iteration state: T_rad from the configuration or
// the photosphere, W from the geometric dilution at each shell centre.
func (s *Solver) Initial(tInner float64) *domain.PlasmaState {
	tRad := make([]float64, s.geometry.NumShells())
	w := make([]float64, s.geometry.NumShells())
	for i, shell := range s.geometry.Shells {
		tRad[i] = tInner
		if s.cfg.InitialTRad > 0 {
			tRad[i] = s.cfg.InitialTRad
		}
		w[i] = physics.GeometricDilution(s.geometry.InnerRadius(), shell.MidRadius())
	}
	return s.Compute(tInner, tRad, w)
}

// Compute solves every shell for the given radiation field.
func (s *Solver) Compute(tInner float64, tRad, w []float64) *domain.PlasmaState {
	state := &domain.PlasmaState{
		TInner:   tInner,
		Geometry: s.geometry,
		Lines:    s.lines,
		Shells:   make([]domain.ShellPlasma, s.geometry.NumShells()),
	}
	for i := range state.Shells {
		state.Shells[i] = s.solveShell(i, tRad[i], w[i])
	}
	return state
}

func (s *Solver) solveShell(i int, tRad, w float64) domain.ShellPlasma {
	tElectron := s.cfg.ElectronTemperatureRatio * tRad
	shell := domain.ShellPlasma{
		TRad:            tRad,
		W:               w,
		TElectron:       tElectron,
		Density:         s.densities[i],
		NumberDensities: append([]float64(nil), s.nuclei[i]...),
		LineTau:         make([]float64, len(s.lines)),
	}

	partitions := s.partitionFunctions(tRad, w)
	fractions, ne := s.ionize(s.nuclei[i], partitions, tRad, tElectron, w)
	shell.IonFractions = fractions
	shell.ElectronDensity = ne
	shell.LevelPopulations = s.levelPopulations(s.nuclei[i], fractions, partitions, tRad, w)
	shell.ElectronOpacity = ne * physics.ThomsonCross
	shell.FreeFreeCoefficient = s.freeFreeCoefficient(s.nuclei[i], fractions, ne, tElectron)

	for l, ref := range s.refs {
		shell.LineTau[l] = s.sobolevTau(l, ref, shell.LevelPopulations)
	}

	return shell
}

// partitionFunctions returns Z[element][charge].
func (s *Solver) partitionFunctions(tRad, w float64) [][]float64 {
	beta := 1 / (physics.Boltzmann * tRad)
	out := make([][]float64, len(s.atoms.Elements))
	for e, el := range s.atoms.Elements {
		out[e] = make([]float64, len(el.Ions))
		for q, ion := range el.Ions {
			z := 0.0
			for j, level := range ion.Levels {
				weight := level.Weight * math.Exp(-level.Energy*physics.ElectronVolt*beta)
				if j > 0 && s.cfg.Excitation == domain.ExcitationDiluteLTE {
					weight *= w
				}
				z += weight
			}
			out[e][q] = z
		}
	}
	return out
}

func (s *Solver) levelPopulations(nuclei []float64, fractions, partitions [][]float64, tRad, w float64) [][][]float64 {
	beta := 1 / (physics.Boltzmann * tRad)
	out := make([][][]float64, len(s.atoms.Elements))
	for e, el := range s.atoms.Elements {
		out[e] = make([][]float64, len(el.Ions))
		for q, ion := range el.Ions {
			pops := make([]float64, len(ion.Levels))
			nIon := nuclei[e] * fractions[e][q]
			if nIon > 0 && partitions[e][q] > 0 {
				for j, level := range ion.Levels {
					weight := level.Weight * math.Exp(-level.Energy*physics.ElectronVolt*beta)
					if j > 0 && s.cfg.Excitation == domain.ExcitationDiluteLTE {
						weight *= w
					}
					pops[j] = nIon * weight / partitions[e][q]
				}
			}
			out[e][q] = pops
		}
	}
	return out
}

func (s *Solver) freeFreeCoefficient(nuclei []float64, fractions [][]float64, ne, tElectron float64) float64 {
	if ne <= 0 || tElectron <= 0 {
		return 0
	}
	sum := 0.0
	for e := range s.atoms.Elements {
		for q := 1; q < len(fractions[e]); q++ {
			sum += float64(q*q) * nuclei[e] * fractions[e][q]
		}
	}
	return physics.FreeFreeCoefficient * ne * sum / math.Sqrt(tElectron)
}

func (s *Solver) sobolevTau(l int, ref lineRef, pops [][][]float64) float64 {
	line := s.lines[l]
	levels := s.atoms.Elements[ref.element].Ions[ref.charge].Levels
	nLower := pops[ref.element][ref.charge][ref.lower]
	if nLower <= 0 {
		return 0
	}
	nUpper := pops[ref.element][ref.charge][ref.upper]
	stimulated := 1 - (levels[ref.lower].Weight*nUpper)/(levels[ref.upper].Weight*nLower)
	if stimulated <= 0 {
		return 0
	}
	wavelength := physics.SpeedOfLight / line.Nu
	return physics.SobolevCoefficient * line.FLu * wavelength * s.geometry.TimeExplosion * nLower * stimulated
}
