package domain

type InteractionType int

const (
	InteractionNone InteractionType = iota
	InteractionBoundary
	InteractionScatter
	InteractionLine
	InteractionContinuum
	InteractionEmission
	InteractionEscape
	InteractionReabsorb
	InteractionStepLimit
)

var interactionNames = [...]string{
	InteractionNone:      "none",
	InteractionBoundary:  "boundary",
	InteractionScatter:   "electron_scatter",
	InteractionLine:      "line",
	InteractionContinuum: "continuum_absorption",
	InteractionEmission:  "emission",
	InteractionEscape:    "escape",
	InteractionReabsorb:  "reabsorb",
	InteractionStepLimit: "step_limit",
}

func (t InteractionType) String() string {
	if t < 0 || int(t) >= len(interactionNames) {
		return "unknown"
	}
	return interactionNames[t]
}

// InteractionTypes lists every type in declaration order.
func InteractionTypes() []InteractionType {
	out := make([]InteractionType, 0, len(interactionNames))
	for t := range interactionNames {
		out = append(out, InteractionType(t))
	}
	return out
}

// InteractionEvent records one transition of a packet together with the
// flight segment that led to it. Frequencies are comoving.
type InteractionEvent struct {
	PacketID int
	Seq      int
	Shell    int
	Type     InteractionType
	NuBefore float64
	NuAfter  float64
	// Energy is the energy deposited in the shell or removed from the pass.
	Energy float64
	// PathLength is the segment travelled inside Shell before the event.
	PathLength float64
	// SegmentEnergy and SegmentNu are the comoving energy and frequency at
	// the start of the segment.
	SegmentEnergy float64
	SegmentNu     float64
	Line          int
}

// Less orders events canonically by packet and sequence.
func (e InteractionEvent) Less(o InteractionEvent) bool {
	if e.PacketID != o.PacketID {
		return e.PacketID < o.PacketID
	}
	return e.Seq < o.Seq
}
