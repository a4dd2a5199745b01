package opacity

import (
	"testing"

	"github.com/bnema/mcrt/internal/domain"
	"github.com/bnema/mcrt/internal/physics"
	"github.com/bnema/mcrt/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedRandom replays constant draws.
type fixedRandom struct {
	u   float64
	tau float64
}

func (r fixedRandom) Float64() float64      { return r.u }
func (r fixedRandom) OpticalDepth() float64 { return r.tau }
func (r fixedRandom) IntN(n int) int        { return int(r.u * float64(n)) }

const timeExplosion = 10 * physics.Day

func lineEvent(i int) ports.Interaction {
	return ports.Interaction{Type: domain.InteractionLine, Line: i, NextLine: i + 1}
}

func continuum() ports.Interaction {
	return ports.Interaction{Type: domain.InteractionContinuum, Line: -1}
}

func lines() []domain.Line {
	mk := func(lower, upper int, wavelength, a float64) domain.Line {
		return domain.Line{AtomicNumber: 1, Lower: lower, Upper: upper, Wavelength: wavelength, Nu: physics.WavelengthToFrequency(wavelength), AUL: a}
	}
	// Descending frequency.
	return []domain.Line{
		mk(0, 2, 1025.72, 5.575e7),
		mk(0, 1, 1215.67, 4.699e8),
		mk(1, 2, 6562.8, 4.41e7),
	}
}

func state(t *testing.T, shells ...domain.ShellPlasma) *domain.PlasmaState {
	t.Helper()

	velocities := make([]float64, len(shells)+1)
	for i := range velocities {
		velocities[i] = 1e9 * float64(i+1)
	}
	geometry, err := domain.NewGeometry(timeExplosion, velocities)
	require.NoError(t, err)
	for i := range shells {
		if shells[i].LineTau == nil {
			shells[i].LineTau = make([]float64, len(lines()))
		}
	}
	return &domain.PlasmaState{TInner: 10000, Geometry: geometry, Shells: shells, Lines: lines()}
}

func TestBoundaryDistance(t *testing.T) {
	t.Parallel()

	shell := domain.Shell{InnerRadius: 1e14, OuterRadius: 2e14}

	tests := []struct {
		name    string
		r       float64
		mu      float64
		want    float64
		outward bool
	}{
		{name: "radial outward from inner edge", r: 1e14, mu: 1, want: 1e14, outward: true},
		{name: "radial inward from middle", r: 1.5e14, mu: -1, want: 0.5e14, outward: false},
		{name: "at outer edge moving out", r: 2e14, mu: 1, want: 0, outward: true},
		{name: "grazing inward misses inner edge", r: 1.9e14, mu: -0.1, outward: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d, outward := BoundaryDistance(tt.r, tt.mu, shell)
			assert.GreaterOrEqual(t, d, 0.0)
			assert.Equal(t, tt.outward, outward)
			if tt.want > 0 || tt.outward && tt.r == shell.OuterRadius {
				assert.InDelta(t, tt.want, d, 1e-3*shell.OuterRadius)
			}
			if outward {
				// The endpoint lies on the outer sphere.
				x := tt.r*tt.r + d*d + 2*tt.r*d*tt.mu
				assert.InEpsilon(t, shell.OuterRadius*shell.OuterRadius, x, 1e-9)
			}
		})
	}
}

func TestNextInteractionTransparentShellIsBoundary(t *testing.T) {
	t.Parallel()

	plasma := state(t, domain.ShellPlasma{TElectron: 9000})
	model := NewSobolev(domain.LineInteractionScatter, plasma.Lines)
	shell := plasma.Geometry.Shells[0]
	p := &domain.Packet{R: shell.InnerRadius, Mu: 1, Nu: 5e14, Energy: 1}

	in := model.NextInteraction(p, plasma, fixedRandom{u: 0.5, tau: 1e-9})

	assert.Equal(t, domain.InteractionBoundary, in.Type)
	assert.True(t, in.Outward)
	assert.InEpsilon(t, shell.Width(), in.Distance, 1e-12)
	assert.Equal(t, -1, in.Line)
}

func TestNextInteractionBoundaryWinsTies(t *testing.T) {
	t.Parallel()

	plasma := state(t, domain.ShellPlasma{ElectronOpacity: 1e-10, TElectron: 9000}, domain.ShellPlasma{TElectron: 9000})
	model := NewSobolev(domain.LineInteractionScatter, plasma.Lines)
	shell := plasma.Geometry.Shells[0]
	p := &domain.Packet{R: shell.OuterRadius, Mu: 1, Nu: 5e14, Energy: 1}

	// A zero optical depth draw puts the scattering exactly at the edge.
	in := model.NextInteraction(p, plasma, fixedRandom{u: 0.5, tau: 0})

	assert.Equal(t, domain.InteractionBoundary, in.Type)
	assert.Zero(t, in.Distance)
	assert.True(t, in.Outward)
}

func TestNextInteractionElectronScatter(t *testing.T) {
	t.Parallel()

	plasma := state(t, domain.ShellPlasma{ElectronOpacity: 1e-8, TElectron: 9000})
	model := NewSobolev(domain.LineInteractionScatter, plasma.Lines)
	p := &domain.Packet{R: plasma.Geometry.InnerRadius(), Mu: 0.5, Nu: 5e14, Energy: 1}

	in := model.NextInteraction(p, plasma, fixedRandom{u: 0.5, tau: 1})

	assert.Equal(t, domain.InteractionScatter, in.Type)
	assert.InEpsilon(t, 1e8, in.Distance, 1e-12)
}

func TestNextInteractionLineResonance(t *testing.T) {
	t.Parallel()

	ls := lines()
	tau := []float64{0, 1e6, 0}
	plasma := state(t, domain.ShellPlasma{TElectron: 9000, LineTau: tau})
	model := NewSobolev(domain.LineInteractionScatter, plasma.Lines)

	r := plasma.Geometry.InnerRadius()
	// Comoving frequency slightly blueward of Lyman alpha, already past Lyman beta.
	nuCmf := ls[1].Nu * 1.001
	p := &domain.Packet{R: r, Mu: 1, Energy: 1, NextLine: 1}
	p.Nu = nuCmf / p.Doppler(timeExplosion)

	in := model.NextInteraction(p, plasma, fixedRandom{u: 0.5, tau: 1})

	require.Equal(t, domain.InteractionLine, in.Type)
	assert.Equal(t, 1, in.Line)
	assert.Equal(t, 2, in.NextLine)
	want := (nuCmf - ls[1].Nu) / p.Nu * physics.SpeedOfLight * timeExplosion
	assert.InEpsilon(t, want, in.Distance, 1e-9)
}

func TestNextInteractionPassesThinLines(t *testing.T) {
	t.Parallel()

	ls := lines()
	plasma := state(t, domain.ShellPlasma{TElectron: 9000, LineTau: []float64{0, 1e-3, 0}})
	model := NewSobolev(domain.LineInteractionScatter, plasma.Lines)

	p := &domain.Packet{R: plasma.Geometry.InnerRadius(), Mu: 1, Energy: 1, NextLine: 1}
	p.Nu = ls[1].Nu * 1.001 / p.Doppler(timeExplosion)

	in := model.NextInteraction(p, plasma, fixedRandom{u: 0.5, tau: 1})

	assert.Equal(t, domain.InteractionBoundary, in.Type)
	assert.Equal(t, 2, in.NextLine)

	depth, cursor := model.SegmentDepth(p, plasma, in.Distance)
	assert.InDelta(t, 1e-3, depth, 1e-15)
	assert.Equal(t, 2, cursor)
}

func TestReemitScatterKeepsLine(t *testing.T) {
	t.Parallel()

	plasma := state(t, domain.ShellPlasma{TElectron: 9000})
	model := NewSobolev(domain.LineInteractionScatter, plasma.Lines)
	p := &domain.Packet{R: plasma.Geometry.InnerRadius(), Mu: 1, Nu: 1e15, Energy: 1}

	nu, next := model.Reemit(p, plasma, lineEvent(2), fixedRandom{u: 0.9})
	assert.Equal(t, plasma.Lines[2].Nu, nu)
	assert.Equal(t, 3, next)
}

func TestReemitDownbranchPicksChannel(t *testing.T) {
	t.Parallel()

	plasma := state(t, domain.ShellPlasma{TElectron: 9000})
	model := NewSobolev(domain.LineInteractionDownbranch, plasma.Lines)
	p := &domain.Packet{R: plasma.Geometry.InnerRadius(), Mu: 1, Nu: 1e15, Energy: 1}

	// Lyman beta and H alpha share the upper level. Lyman beta dominates
	// A*nu, so a low draw picks it and a high draw picks H alpha.
	nu, next := model.Reemit(p, plasma, lineEvent(0), fixedRandom{u: 0.01})
	assert.Equal(t, plasma.Lines[0].Nu, nu)
	assert.Equal(t, 1, next)

	nu, next = model.Reemit(p, plasma, lineEvent(0), fixedRandom{u: 0.999})
	assert.Equal(t, plasma.Lines[2].Nu, nu)
	assert.Equal(t, 3, next)

	// Lyman alpha has a single channel.
	nu, _ = model.Reemit(p, plasma, lineEvent(1), fixedRandom{u: 0.999})
	assert.Equal(t, plasma.Lines[1].Nu, nu)
}

func TestReemitContinuumIsThermal(t *testing.T) {
	t.Parallel()

	plasma := state(t, domain.ShellPlasma{TElectron: 9000})
	model := NewSobolev(domain.LineInteractionScatter, plasma.Lines)
	p := &domain.Packet{R: plasma.Geometry.InnerRadius(), Mu: 1, Nu: 1e15, Energy: 1}

	nu, next := model.Reemit(p, plasma, continuum(), fixedRandom{u: 0.5})
	require.Positive(t, nu)
	assert.Equal(t, NextLineIndex(plasma.Lines, nu), next)
}

func TestNextLineIndex(t *testing.T) {
	t.Parallel()

	ls := lines()
	assert.Equal(t, 0, NextLineIndex(ls, ls[0].Nu*2))
	assert.Equal(t, 1, NextLineIndex(ls, ls[0].Nu))
	assert.Equal(t, 2, NextLineIndex(ls, ls[1].Nu*0.99))
	assert.Equal(t, 3, NextLineIndex(ls, 1))
}

func TestFreeFree(t *testing.T) {
	t.Parallel()

	sp := &domain.ShellPlasma{FreeFreeCoefficient: 1e-20, TElectron: 10000}
	low := FreeFree(sp, 1e14)
	high := FreeFree(sp, 1e15)

	assert.Positive(t, low)
	assert.Greater(t, low, high)
	assert.Zero(t, FreeFree(&domain.ShellPlasma{TElectron: 10000}, 1e14))
}
