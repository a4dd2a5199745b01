package domain

import "slices"

// ShellPlasma is the physical state of one shell.
type ShellPlasma struct {
	TRad            float64
	W               float64
	TElectron       float64
	Density         float64
	ElectronDensity float64
	// NumberDensities are nuclei per cm3, aligned with AtomData.Elements.
	NumberDensities []float64
	// IonFractions[element][charge] sum to one per element.
	IonFractions [][]float64
	// LevelPopulations[element][charge][level] in cm-3.
	LevelPopulations [][][]float64

	ElectronOpacity float64
	// FreeFreeCoefficient gives chi_ff(nu) = coeff * nu^-3 * (1 - exp(-h nu / k T_e)).
	FreeFreeCoefficient float64
	// LineTau holds Sobolev optical depths aligned with PlasmaState.Lines.
	LineTau []float64
}

// Transparent reports whether no interaction channel is open in the shell.
func (s ShellPlasma) Transparent() bool {
	if s.ElectronOpacity > 0 || s.FreeFreeCoefficient > 0 {
		return false
	}
	for _, tau := range s.LineTau {
		if tau > 0 {
			return false
		}
	}
	return true
}

// PlasmaState is read-only while a transport pass is in flight.
type PlasmaState struct {
	TInner   float64
	Geometry Geometry
	Shells   []ShellPlasma
	// Lines is the frequency-descending line list shared by every shell.
	Lines []Line
}

func (p *PlasmaState) Shell(i int) *ShellPlasma {
	return &p.Shells[i]
}

// Clone deep-copies the per-shell state. Geometry and Lines are shared
// since they never change during a run.
func (p *PlasmaState) Clone() *PlasmaState {
	out := &PlasmaState{
		TInner:   p.TInner,
		Geometry: p.Geometry,
		Lines:    p.Lines,
		Shells:   make([]ShellPlasma, len(p.Shells)),
	}
	for i, s := range p.Shells {
		c := s
		c.NumberDensities = slices.Clone(s.NumberDensities)
		c.LineTau = slices.Clone(s.LineTau)
		c.IonFractions = make([][]float64, len(s.IonFractions))
		for e := range s.IonFractions {
			c.IonFractions[e] = slices.Clone(s.IonFractions[e])
		}
		c.LevelPopulations = make([][][]float64, len(s.LevelPopulations))
		for e := range s.LevelPopulations {
			c.LevelPopulations[e] = make([][]float64, len(s.LevelPopulations[e]))
			for q := range s.LevelPopulations[e] {
				c.LevelPopulations[e][q] = slices.Clone(s.LevelPopulations[e][q])
			}
		}
		out.Shells[i] = c
	}
	return out
}

func (p *PlasmaState) TRad() []float64 {
	out := make([]float64, len(p.Shells))
	for i, s := range p.Shells {
		out[i] = s.TRad
	}
	return out
}

func (p *PlasmaState) W() []float64 {
	out := make([]float64, len(p.Shells))
	for i, s := range p.Shells {
		out[i] = s.W
	}
	return out
}
