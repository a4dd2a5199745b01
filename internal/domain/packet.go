package domain

import "github.com/bnema/mcrt/internal/physics"

type PacketStatus int

const (
	// StatusEmitted marks a packet fresh from a source that has not been
	// propagated yet.
	StatusEmitted PacketStatus = iota
	StatusInProcess
	StatusAbsorbed
	StatusEscaped
	StatusReabsorbed
)

func (s PacketStatus) String() string {
	switch s {
	case StatusEmitted:
		return "emitted"
	case StatusInProcess:
		return "in_process"
	case StatusAbsorbed:
		return "absorbed"
	case StatusEscaped:
		return "escaped"
	case StatusReabsorbed:
		return "reabsorbed"
	default:
		return "unknown"
	}
}

func (s PacketStatus) Terminal() bool {
	return s == StatusAbsorbed || s == StatusEscaped || s == StatusReabsorbed
}

// Packet is a Monte Carlo energy packet. Nu is the lab-frame frequency; the
// comoving frequency follows from the position and direction.
type Packet struct {
	ID     int
	Shell  int
	R      float64
	Mu     float64
	Nu     float64
	Energy float64
	Status PacketStatus
	// NextLine indexes the first line of PlasmaState.Lines still ahead of
	// the packet in comoving frequency.
	NextLine        int
	LastInteraction InteractionType
	Steps           int
}

func (p *Packet) Doppler(timeExplosion float64) float64 {
	return physics.Doppler(p.Mu, p.R, timeExplosion)
}

func (p *Packet) ComovingNu(timeExplosion float64) float64 {
	return p.Nu * p.Doppler(timeExplosion)
}

func (p *Packet) ComovingEnergy(timeExplosion float64) float64 {
	return p.Energy * p.Doppler(timeExplosion)
}

// Boundary describes the inner emitting surface for one pass.
type Boundary struct {
	Radius      float64
	Temperature float64
	Luminosity  float64
	TimeStep    float64
}

// Energy is the total energy a source must emit over the pass.
func (b Boundary) Energy() float64 {
	return b.Luminosity * b.TimeStep
}

// PacketRequest is what a PacketSource is asked to produce.
type PacketRequest struct {
	Count     int
	Iteration int
	Seed      uint64
	Boundary  Boundary
	Plasma    *PlasmaState
}
