// Package transport propagates packets through the shell grid and runs whole
// transport passes over a frozen plasma state.
package transport

import (
	"math"

	"github.com/bnema/mcrt/internal/domain"
	"github.com/bnema/mcrt/internal/physics"
	"github.com/bnema/mcrt/internal/ports"
)

// radiusTolerance is the relative slack allowed between a packet's radius
// and the shell it claims to occupy.
const radiusTolerance = 1e-9

// Trajectory is the full history of one packet in a pass.
type Trajectory struct {
	Packet      domain.Packet
	Events      []domain.InteractionEvent
	StepLimited bool
	Virtual     []VirtualPacket
}

// Engine moves one packet at a time. It holds no per-packet state and is
// shared by every worker of a pass.
type Engine struct {
	opacity    ports.OpacityModel
	plasma     *domain.PlasmaState
	reemission float64
	maxSteps   int
	virtual    *VirtualTracer
}

func NewEngine(opacity ports.OpacityModel, plasma *domain.PlasmaState, reemission float64, maxSteps int, virtual *VirtualTracer) *Engine {
	return &Engine{
		opacity:    opacity,
		plasma:     plasma,
		reemission: reemission,
		maxSteps:   maxSteps,
		virtual:    virtual,
	}
}

// Propagate runs p until it escapes, is absorbed or is reabsorbed by the
// photosphere. The only error is a GeometryError.
func (e *Engine) Propagate(p domain.Packet, rng ports.Random, vrng ports.Random) (Trajectory, error) {
	geometry := e.plasma.Geometry
	t := geometry.TimeExplosion
	last := geometry.NumShells() - 1

	tr := Trajectory{}
	seq := 0
	record := func(ev domain.InteractionEvent) {
		ev.PacketID = p.ID
		ev.Seq = seq
		seq++
		tr.Events = append(tr.Events, ev)
	}
	spawn := func() {
		if e.virtual != nil {
			tr.Virtual = append(tr.Virtual, e.virtual.Spawn(p, vrng)...)
		}
	}

	if err := e.checkPosition(&p); err != nil {
		return tr, err
	}

	nuCmf := p.ComovingNu(t)
	record(domain.InteractionEvent{
		Shell:    p.Shell,
		Type:     domain.InteractionEmission,
		NuBefore: nuCmf,
		NuAfter:  nuCmf,
		Line:     -1,
	})
	p.Status = domain.StatusInProcess
	p.LastInteraction = domain.InteractionEmission
	spawn()

	for {
		if p.Steps >= e.maxSteps {
			nuCmf := p.ComovingNu(t)
			record(domain.InteractionEvent{
				Shell:    p.Shell,
				Type:     domain.InteractionStepLimit,
				NuBefore: nuCmf,
				Energy:   p.Energy,
				Line:     -1,
			})
			p.Status = domain.StatusAbsorbed
			p.LastInteraction = domain.InteractionStepLimit
			tr.Packet = p
			tr.StepLimited = true
			return tr, nil
		}
		p.Steps++

		in := e.opacity.NextInteraction(&p, e.plasma, rng)
		if math.IsNaN(in.Distance) || in.Distance < 0 || math.IsInf(in.Distance, 0) {
			return tr, &domain.GeometryError{PacketID: p.ID, Shell: p.Shell, Radius: p.R, Reason: "invalid interaction distance"}
		}

		ev := domain.InteractionEvent{
			Shell:         p.Shell,
			Type:          in.Type,
			PathLength:    in.Distance,
			SegmentEnergy: p.ComovingEnergy(t),
			SegmentNu:     p.ComovingNu(t),
			Line:          in.Line,
		}

		move(&p, in.Distance)
		p.NextLine = in.NextLine
		ev.NuBefore = p.ComovingNu(t)
		p.LastInteraction = in.Type

		switch in.Type {
		case domain.InteractionBoundary:
			if err := e.cross(&p, in.Outward, last); err != nil {
				return tr, err
			}
			ev.NuAfter = ev.NuBefore
			switch p.Status {
			case domain.StatusEscaped:
				ev.Type = domain.InteractionEscape
				ev.Energy = p.Energy
				p.LastInteraction = domain.InteractionEscape
			case domain.StatusReabsorbed:
				ev.Type = domain.InteractionReabsorb
				ev.Energy = p.Energy
				p.LastInteraction = domain.InteractionReabsorb
			}
			record(ev)
			if p.Status.Terminal() {
				tr.Packet = p
				return tr, nil
			}

		case domain.InteractionScatter:
			redirect(&p, ev.NuBefore, rng, t)
			ev.NuAfter = ev.NuBefore
			record(ev)
			spawn()

		case domain.InteractionLine:
			nu, next := e.opacity.Reemit(&p, e.plasma, in, rng)
			redirect(&p, nu, rng, t)
			p.NextLine = next
			ev.NuAfter = nu
			record(ev)
			spawn()

		case domain.InteractionContinuum:
			if rng.Float64() >= e.reemission {
				ev.Energy = p.Energy
				record(ev)
				p.Status = domain.StatusAbsorbed
				tr.Packet = p
				return tr, nil
			}
			nu, next := e.opacity.Reemit(&p, e.plasma, in, rng)
			redirect(&p, nu, rng, t)
			p.NextLine = next
			ev.NuAfter = nu
			record(ev)
			spawn()

		default:
			return tr, &domain.GeometryError{PacketID: p.ID, Shell: p.Shell, Radius: p.R, Reason: "unknown interaction " + in.Type.String()}
		}
	}
}

// cross moves p over the boundary it has reached and snaps its radius onto
// the shared edge.
func (e *Engine) cross(p *domain.Packet, outward bool, last int) error {
	shells := e.plasma.Geometry.Shells
	if outward {
		p.R = shells[p.Shell].OuterRadius
		if p.Shell == last {
			p.Status = domain.StatusEscaped
			return nil
		}
		p.Shell++
	} else {
		p.R = shells[p.Shell].InnerRadius
		if p.Shell == 0 {
			p.Status = domain.StatusReabsorbed
			return nil
		}
		p.Shell--
	}
	return e.checkPosition(p)
}

func (e *Engine) checkPosition(p *domain.Packet) error {
	shells := e.plasma.Geometry.Shells
	if p.Shell < 0 || p.Shell >= len(shells) {
		return &domain.GeometryError{PacketID: p.ID, Shell: p.Shell, Radius: p.R, Reason: "shell index outside the grid"}
	}
	if !shells[p.Shell].Contains(p.R, radiusTolerance) {
		return &domain.GeometryError{PacketID: p.ID, Shell: p.Shell, Radius: p.R, Reason: "radius outside its shell"}
	}
	return nil
}

// move advances p by distance along its ray.
func move(p *domain.Packet, distance float64) {
	if distance == 0 {
		return
	}
	r := math.Sqrt(p.R*p.R + distance*distance + 2*p.R*distance*p.Mu)
	p.Mu = (p.Mu*p.R + distance) / r
	p.Mu = math.Max(-1, math.Min(1, p.Mu))
	p.R = r
}

// redirect gives p an isotropic comoving direction and the lab frequency
// matching the comoving frequency nuCmf. The energy weight is unchanged.
func redirect(p *domain.Packet, nuCmf float64, rng ports.Random, timeExplosion float64) {
	p.Mu = physics.SampleIsotropicMu(rng)
	p.Nu = nuCmf / p.Doppler(timeExplosion)
}
