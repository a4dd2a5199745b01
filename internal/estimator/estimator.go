// Package estimator reduces the interaction events of a pass into per-shell
// radiation field estimates.
package estimator

import (
	"slices"

	"github.com/bnema/mcrt/internal/domain"
	"github.com/bnema/mcrt/internal/physics"
)

// Summary is the radiation field seen by one pass.
type Summary struct {
	PacketCount int
	TimeStep    float64
	// J is the path-length estimator sum(E_cmf * l) per shell.
	J []float64
	// NuBar is the frequency-weighted estimator sum(E_cmf * nu_cmf * l).
	NuBar []float64
	TRad  []float64
	W     []float64
	// Deposited is the energy removed from the radiation field per shell.
	Deposited []float64
	// Interactions counts events per shell and type.
	Interactions []map[domain.InteractionType]int
}

// Sampled reports whether any packet travelled through shell i.
func (s Summary) Sampled(i int) bool {
	return s.J[i] > 0
}

type Estimator struct {
	geometry domain.Geometry
}

func New(geometry domain.Geometry) *Estimator {
	return &Estimator{geometry: geometry}
}

// Aggregate is a pure reduction. Events are put in canonical order first so
// the floating-point sums do not depend on the order they arrive in.
func (e *Estimator) Aggregate(events []domain.InteractionEvent, packetCount int, timeStep float64) Summary {
	n := e.geometry.NumShells()
	s := Summary{
		PacketCount:  packetCount,
		TimeStep:     timeStep,
		J:            make([]float64, n),
		NuBar:        make([]float64, n),
		TRad:         make([]float64, n),
		W:            make([]float64, n),
		Deposited:    make([]float64, n),
		Interactions: make([]map[domain.InteractionType]int, n),
	}
	for i := range s.Interactions {
		s.Interactions[i] = make(map[domain.InteractionType]int)
	}

	ordered := slices.Clone(events)
	slices.SortFunc(ordered, compare)

	for _, ev := range ordered {
		if ev.Shell < 0 || ev.Shell >= n {
			continue
		}
		if ev.PathLength > 0 {
			contribution := ev.SegmentEnergy * ev.PathLength
			s.J[ev.Shell] += contribution
			s.NuBar[ev.Shell] += contribution * ev.SegmentNu
		}
		switch ev.Type {
		case domain.InteractionContinuum, domain.InteractionStepLimit:
			s.Deposited[ev.Shell] += ev.Energy
		}
		s.Interactions[ev.Shell][ev.Type]++
	}

	for i, shell := range e.geometry.Shells {
		s.TRad[i] = physics.RadiationTemperature(s.NuBar[i], s.J[i])
		s.W[i] = physics.DilutionFactor(s.J[i], s.TRad[i], shell.Volume(), timeStep)
	}

	return s
}

func compare(a, b domain.InteractionEvent) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	default:
		return 0
	}
}
