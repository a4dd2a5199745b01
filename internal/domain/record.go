package domain

import "time"

type ConvergenceState int

const (
	StateRunning ConvergenceState = iota
	StateConverged
	StateDiverged
	StateMaxIterReached
	StateCancelled
)

func (s ConvergenceState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateConverged:
		return "converged"
	case StateDiverged:
		return "diverged"
	case StateMaxIterReached:
		return "max_iter_reached"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func ParseConvergenceState(raw string) ConvergenceState {
	for s := StateRunning; s <= StateCancelled; s++ {
		if s.String() == raw {
			return s
		}
	}
	return StateRunning
}

// Terminal reports whether the run loop stops in this state.
func (s ConvergenceState) Terminal() bool {
	return s != StateRunning
}

// EnergyBudget splits the energy of one pass by packet fate.
type EnergyBudget struct {
	Emitted    float64
	Escaped    float64
	Absorbed   float64
	Reabsorbed float64
}

// Residual is the energy unaccounted for by terminal states.
func (b EnergyBudget) Residual() float64 {
	return b.Emitted - b.Escaped - b.Absorbed - b.Reabsorbed
}

// IterationRecord is the append-only snapshot of one iteration.
type IterationRecord struct {
	Iteration   int
	State       ConvergenceState
	Metric      float64
	PacketCount int
	Energy      EnergyBudget
	// LuminosityEmitted is the escaped luminosity of the pass.
	LuminosityEmitted float64
	TInner            float64
	TInnerNext        float64
	TRad              []float64
	W                 []float64
	TRadDelta         []float64
	WDelta            []float64
	Interactions      map[InteractionType]int
	StepLimitHits     int
	Moments           SpectrumMoments
	Duration          time.Duration
	// Final marks the record of the high-statistics spectrum pass.
	Final bool
}
