// Package opacity implements the interaction model of a homologous flow:
// electron scattering, free-free absorption and Sobolev line resonances.
package opacity

import (
	"math"
	"sort"

	"github.com/bnema/mcrt/internal/domain"
	"github.com/bnema/mcrt/internal/physics"
	"github.com/bnema/mcrt/internal/ports"
)

type upperLevel struct {
	atomicNumber int
	charge       int
	level        int
}

// Sobolev is safe for concurrent use; it only reads the plasma state.
type Sobolev struct {
	mode  domain.LineInteractionMode
	lines []domain.Line
	// branches lists, per upper level, the line indices decaying from it.
	branches map[upperLevel][]int
}

var _ ports.OpacityModel = (*Sobolev)(nil)

// NewSobolev expects lines in the descending-frequency order used by the
// plasma state.
func NewSobolev(mode domain.LineInteractionMode, lines []domain.Line) *Sobolev {
	branches := make(map[upperLevel][]int)
	for i, line := range lines {
		key := upperLevel{atomicNumber: line.AtomicNumber, charge: line.Charge, level: line.Upper}
		branches[key] = append(branches[key], i)
	}
	return &Sobolev{mode: mode, lines: lines, branches: branches}
}

func (m *Sobolev) NextInteraction(p *domain.Packet, plasma *domain.PlasmaState, rng ports.Random) ports.Interaction {
	shell := plasma.Geometry.Shells[p.Shell]
	sp := &plasma.Shells[p.Shell]
	t := plasma.Geometry.TimeExplosion

	distance, outward := BoundaryDistance(p.R, p.Mu, shell)
	best := ports.Interaction{
		Distance: distance,
		Type:     domain.InteractionBoundary,
		Outward:  outward,
		Line:     -1,
		NextLine: p.NextLine,
	}

	nuCmf := p.ComovingNu(t)

	if sp.ElectronOpacity > 0 {
		d := rng.OpticalDepth() / sp.ElectronOpacity
		if d < best.Distance {
			best.Distance, best.Type = d, domain.InteractionScatter
		}
	}

	if chi := FreeFree(sp, nuCmf); chi > 0 {
		d := rng.OpticalDepth() / chi
		if d < best.Distance {
			best.Distance, best.Type = d, domain.InteractionContinuum
		}
	}

	tauEvent := rng.OpticalDepth()
	tauTrace := 0.0
	cursor := p.NextLine
	for cursor < len(m.lines) {
		d := lineDistance(p, nuCmf, m.lines[cursor].Nu, t)
		if d >= best.Distance {
			break
		}
		tauTrace += sp.LineTau[cursor]
		cursor++
		if tauTrace >= tauEvent {
			best.Distance = d
			best.Type = domain.InteractionLine
			best.Line = cursor - 1
			break
		}
	}
	best.NextLine = cursor

	return best
}

func (m *Sobolev) SegmentDepth(p *domain.Packet, plasma *domain.PlasmaState, distance float64) (float64, int) {
	sp := &plasma.Shells[p.Shell]
	t := plasma.Geometry.TimeExplosion
	nuCmf := p.ComovingNu(t)

	tau := (sp.ElectronOpacity + FreeFree(sp, nuCmf)) * distance
	cursor := p.NextLine
	for cursor < len(m.lines) {
		if lineDistance(p, nuCmf, m.lines[cursor].Nu, t) >= distance {
			break
		}
		tau += sp.LineTau[cursor]
		cursor++
	}
	return tau, cursor
}

func (m *Sobolev) Reemit(p *domain.Packet, plasma *domain.PlasmaState, in ports.Interaction, rng ports.Random) (float64, int) {
	sp := &plasma.Shells[p.Shell]

	if in.Type == domain.InteractionLine && in.Line >= 0 {
		emit := in.Line
		if m.mode == domain.LineInteractionDownbranch {
			emit = m.downbranch(in.Line, sp, rng)
		}
		return m.lines[emit].Nu, emit + 1
	}

	nu := physics.SampleBlackbody(rng, sp.TElectron)
	return nu, NextLineIndex(m.lines, nu)
}

// downbranch picks a decay channel of the absorbing line's upper level,
// weighted by the energy each channel lets escape.
func (m *Sobolev) downbranch(absorbed int, sp *domain.ShellPlasma, rng ports.Random) int {
	line := m.lines[absorbed]
	candidates := m.branches[upperLevel{atomicNumber: line.AtomicNumber, charge: line.Charge, level: line.Upper}]
	if len(candidates) <= 1 {
		return absorbed
	}

	weights := make([]float64, len(candidates))
	total := 0.0
	for i, idx := range candidates {
		c := m.lines[idx]
		weights[i] = c.AUL * c.Nu * escapeProbability(sp.LineTau[idx])
		total += weights[i]
	}
	if total <= 0 {
		return absorbed
	}

	target := rng.Float64() * total
	for i, w := range weights {
		target -= w
		if target < 0 {
			return candidates[i]
		}
	}
	return candidates[len(candidates)-1]
}

// BoundaryDistance is the straight-line distance to the shell edge the
// packet will cross, and whether that edge is the outer one.
func BoundaryDistance(r, mu float64, shell domain.Shell) (float64, bool) {
	sin2 := 1 - mu*mu
	if mu < 0 {
		disc := shell.InnerRadius*shell.InnerRadius - r*r*sin2
		if disc >= 0 {
			return math.Max(-r*mu-math.Sqrt(disc), 0), false
		}
	}
	disc := math.Max(shell.OuterRadius*shell.OuterRadius-r*r*sin2, 0)
	return math.Max(-r*mu+math.Sqrt(disc), 0), true
}

// FreeFree is chi_ff at comoving frequency nu.
func FreeFree(sp *domain.ShellPlasma, nu float64) float64 {
	if sp.FreeFreeCoefficient <= 0 || nu <= 0 || sp.TElectron <= 0 {
		return 0
	}
	x := physics.Planck * nu / (physics.Boltzmann * sp.TElectron)
	return sp.FreeFreeCoefficient * -math.Expm1(-x) / (nu * nu * nu)
}

// NextLineIndex returns the first line redward of the comoving frequency nu.
func NextLineIndex(lines []domain.Line, nu float64) int {
	return sort.Search(len(lines), func(i int) bool {
		return lines[i].Nu < nu
	})
}

func lineDistance(p *domain.Packet, nuCmf, nuLine, timeExplosion float64) float64 {
	d := (nuCmf - nuLine) / p.Nu * physics.SpeedOfLight * timeExplosion
	return math.Max(d, 0)
}

func escapeProbability(tau float64) float64 {
	if tau < 1e-6 {
		return 1
	}
	return -math.Expm1(-tau) / tau
}
