package ports

import "github.com/bnema/mcrt/internal/domain"

// Random is the per-packet random handle handed to the opacity model.
type Random interface {
	Float64() float64
	OpticalDepth() float64
	IntN(n int) int
}

// Interaction is the next event on a packet's path.
type Interaction struct {
	Distance float64
	Type     domain.InteractionType
	// Outward tells which boundary is crossed when Type is a boundary.
	Outward bool
	// Line is the resonant line index for line events, -1 otherwise.
	Line int
	// NextLine is the packet's line cursor after travelling Distance.
	NextLine int
}

type OpacityModel interface {
	// NextInteraction never returns a negative distance. Boundary crossing
	// wins exact ties.
	NextInteraction(p *domain.Packet, plasma *domain.PlasmaState, rng Random) Interaction
	// SegmentDepth is the optical depth accumulated over distance along the
	// packet's current ray inside its shell, and the line cursor at the end.
	SegmentDepth(p *domain.Packet, plasma *domain.PlasmaState, distance float64) (float64, int)
	// Reemit picks the comoving frequency and line cursor of a packet
	// re-emitted after an absorption in the given shell.
	Reemit(p *domain.Packet, plasma *domain.PlasmaState, interaction Interaction, rng Random) (nu float64, nextLine int)
}
