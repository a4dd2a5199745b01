// Package random derives independent, reproducible random streams per packet.
//
// Every packet of every pass gets its own PCG stream keyed by the run seed,
// the consumer, the iteration and the packet id, so a pass produces identical
// trajectories no matter how packets are partitioned across workers.
package random

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Purpose separates the streams of the components drawing for one packet.
type Purpose uint64

const (
	PurposeSource Purpose = iota + 1
	PurposeTransport
	PurposeVirtual
)

// Stream is a per-packet random handle. It is not safe for concurrent use.
type Stream struct {
	rng *rand.Rand
	tau distuv.Exponential
}

func NewStream(seed uint64, purpose Purpose, iteration int, packetID int) *Stream {
	hi := mix(mix(seed, uint64(purpose)), uint64(iteration))
	lo := mix(uint64(packetID), 0x9e3779b97f4a7c15)
	src := rand.NewPCG(hi, lo)
	return &Stream{
		rng: rand.New(src),
		tau: distuv.Exponential{Rate: 1, Src: src},
	}
}

// Float64 returns a uniform value in [0, 1).
func (s *Stream) Float64() float64 {
	return s.rng.Float64()
}

// OpticalDepth draws an exponentially distributed optical depth.
func (s *Stream) OpticalDepth() float64 {
	return s.tau.Rand()
}

// IntN returns a uniform integer in [0, n).
func (s *Stream) IntN(n int) int {
	return s.rng.IntN(n)
}

// mix is the splitmix64 finalizer applied to a+b.
func mix(a, b uint64) uint64 {
	z := a + b*0xbf58476d1ce4e5b9 + 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
