package plasma

import (
	"math"

	"github.com/bnema/mcrt/internal/domain"
	"github.com/bnema/mcrt/internal/physics"
	"gonum.org/v1/gonum/floats"
)

// logSahaFactors returns log Phi for each stage transition of every
// element, where Phi_q = n_{q+1} n_e / n_q.
func (s *Solver) logSahaFactors(partitions [][]float64, tRad, tElectron, w float64) [][]float64 {
	kT := physics.Boltzmann * tRad
	thermal := 1.5 * math.Log(2*math.Pi*physics.ElectronMass*kT/(physics.Planck*physics.Planck))

	nebular := 0.0
	if s.cfg.Ionization == domain.IonizationNebular {
		nebular = math.Log(w) + 0.5*math.Log(tElectron/tRad)
	}

	out := make([][]float64, len(s.atoms.Elements))
	for e, el := range s.atoms.Elements {
		out[e] = make([]float64, max(len(el.Ions)-1, 0))
		for q := 0; q+1 < len(el.Ions); q++ {
			chi := el.Ions[q].IonizationEnergy * physics.ElectronVolt
			out[e][q] = math.Ln2 + math.Log(partitions[e][q+1]) - math.Log(partitions[e][q]) + thermal - chi/kT + nebular
		}
	}
	return out
}

// ionize solves the coupled Saha balance and charge conservation by damped
// fixed-point iteration on the electron density.
func (s *Solver) ionize(nuclei []float64, partitions [][]float64, tRad, tElectron, w float64) ([][]float64, float64) {
	fractions := make([][]float64, len(s.atoms.Elements))
	for e, el := range s.atoms.Elements {
		fractions[e] = make([]float64, len(el.Ions))
		fractions[e][0] = 1
	}

	total := floats.Sum(nuclei)
	if total <= 0 || tRad <= 0 || (s.cfg.Ionization == domain.IonizationNebular && w <= 0) {
		return fractions, 0
	}

	logPhi := s.logSahaFactors(partitions, tRad, tElectron, w)
	ne := total
	floor := minElectronFraction * total

	for iter := 0; iter < electronDensityMaxIter; iter++ {
		logNe := math.Log(ne)
		next := 0.0
		for e := range s.atoms.Elements {
			stageFractions(fractions[e], logPhi[e], logNe)
			for q, f := range fractions[e] {
				next += float64(q) * f * nuclei[e]
			}
		}
		next = math.Max(next, floor)

		if math.Abs(next-ne) <= electronDensityTolerance*ne {
			ne = next
			break
		}
		ne = 0.5 * (ne + next)
	}

	for e := range s.atoms.Elements {
		stageFractions(fractions[e], logPhi[e], math.Log(ne))
	}

	return fractions, ne
}

// stageFractions fills dst with normalised ion stage fractions.
func stageFractions(dst, logPhi []float64, logNe float64) {
	logs := make([]float64, len(dst))
	for q := 1; q < len(dst); q++ {
		logs[q] = logs[q-1] + logPhi[q-1] - logNe
	}
	norm := floats.LogSumExp(logs)
	for q := range dst {
		dst[q] = math.Exp(logs[q] - norm)
	}
}
