package transport

import (
	"math"

	"github.com/bnema/mcrt/internal/domain"
	"github.com/bnema/mcrt/internal/opacity"
	"github.com/bnema/mcrt/internal/ports"
)

// virtualTauCutoff stops tracing a virtual packet once its escape weight is
// negligible.
const virtualTauCutoff = 30

// VirtualPacket is a spectrum-only packet spawned at an emission point and
// traced straight to the outer boundary.
type VirtualPacket struct {
	PacketID int
	// Nu is the lab frame frequency at the emission point.
	Nu float64
	// Energy is the lab frame weight before attenuation.
	Energy          float64
	Tau             float64
	Shell           int
	LastInteraction domain.InteractionType
}

// Escaped is the energy reaching the observer.
func (v VirtualPacket) Escaped() float64 {
	if math.IsInf(v.Tau, 1) {
		return 0
	}
	return v.Energy * math.Exp(-v.Tau)
}

type VirtualTracer struct {
	opacity ports.OpacityModel
	plasma  *domain.PlasmaState
	count   int
}

func NewVirtualTracer(opacity ports.OpacityModel, plasma *domain.PlasmaState, perInteraction int) *VirtualTracer {
	return &VirtualTracer{opacity: opacity, plasma: plasma, count: max(perInteraction, 1)}
}

// Spawn emits the virtual packets of p's last emission. Directions are
// stratified over the cone that misses the photosphere; photosphere
// emission is flux weighted, every other emission is isotropic.
func (v *VirtualTracer) Spawn(p domain.Packet, rng ports.Random) []VirtualPacket {
	geometry := v.plasma.Geometry
	t := geometry.TimeExplosion
	rInner := geometry.InnerRadius()

	muMin := 0.0
	if p.R > rInner {
		x := rInner / p.R
		muMin = -math.Sqrt(1 - x*x)
	}
	photosphere := p.LastInteraction == domain.InteractionEmission
	if photosphere {
		muMin = 0
	}

	nuCmf := p.ComovingNu(t)
	width := (1 - muMin) / float64(v.count)

	out := make([]VirtualPacket, 0, v.count)
	for i := range v.count {
		mu := muMin + (float64(i)+rng.Float64())*width
		weight := 0.5 * width
		if photosphere {
			weight = 2 * mu * width
		}

		vp := p
		vp.Mu = mu
		vp.Nu = nuCmf / vp.Doppler(t)
		out = append(out, VirtualPacket{
			PacketID:        p.ID,
			Nu:              vp.Nu,
			Energy:          p.Energy * weight,
			Tau:             v.trace(vp),
			Shell:           p.Shell,
			LastInteraction: p.LastInteraction,
		})
	}
	return out
}

// trace returns the optical depth from p's position to the outer boundary,
// or +Inf when the ray hits the photosphere or is opaque.
func (v *VirtualTracer) trace(p domain.Packet) float64 {
	shells := v.plasma.Geometry.Shells
	last := len(shells) - 1
	tau := 0.0

	for range 2*len(shells) + 2 {
		d, outward := opacity.BoundaryDistance(p.R, p.Mu, shells[p.Shell])
		depth, cursor := v.opacity.SegmentDepth(&p, v.plasma, d)
		tau += depth
		if tau > virtualTauCutoff {
			return math.Inf(1)
		}

		move(&p, d)
		p.NextLine = cursor
		if outward {
			if p.Shell == last {
				return tau
			}
			p.Shell++
			p.R = shells[p.Shell].InnerRadius
		} else {
			if p.Shell == 0 {
				return math.Inf(1)
			}
			p.Shell--
			p.R = shells[p.Shell].OuterRadius
		}
	}
	return math.Inf(1)
}
