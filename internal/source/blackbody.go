// Package source generates the packets of a transport pass at the inner
// boundary.
package source

import (
	"context"
	"fmt"
	"math"

	"github.com/bnema/mcrt/internal/domain"
	"github.com/bnema/mcrt/internal/opacity"
	"github.com/bnema/mcrt/internal/physics"
	"github.com/bnema/mcrt/internal/ports"
	"github.com/bnema/mcrt/internal/random"
)

// energyTolerance bounds the relative mismatch between the packet energies
// and the boundary energy of a pass.
const energyTolerance = 1e-9

// Blackbody emits equal-weight packets from the photosphere with Planck
// frequencies and flux-weighted outward directions.
type Blackbody struct{}

var _ ports.PacketSource = Blackbody{}

func NewBlackbody() Blackbody {
	return Blackbody{}
}

func (Blackbody) Generate(ctx context.Context, req domain.PacketRequest) ([]domain.Packet, error) {
	if req.Count < 1 {
		return nil, fmt.Errorf("%w: packet count must be at least 1, got %d", domain.ErrPacketSourceContract, req.Count)
	}
	if req.Plasma == nil {
		return nil, fmt.Errorf("%w: plasma state is nil", domain.ErrPacketSourceContract)
	}

	b := req.Boundary
	t := req.Plasma.Geometry.TimeExplosion
	weight := b.Energy() / float64(req.Count)

	packets := make([]domain.Packet, req.Count)
	for i := range packets {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		rng := random.NewStream(req.Seed, random.PurposeSource, req.Iteration, i)
		nuCmf := physics.SampleBlackbody(rng, b.Temperature)
		p := domain.Packet{
			ID:       i,
			Shell:    0,
			R:        b.Radius,
			Mu:       physics.SampleOutwardMu(rng),
			Energy:   weight,
			Status:   domain.StatusEmitted,
			NextLine: opacity.NextLineIndex(req.Plasma.Lines, nuCmf),
		}
		p.Nu = nuCmf / p.Doppler(t)
		packets[i] = p
	}

	return packets, nil
}

// CheckContract verifies that a source honoured the request: the exact
// packet count, positive weights, emitted status, positions inside the
// shell grid and a total energy matching the boundary.
func CheckContract(req domain.PacketRequest, packets []domain.Packet) error {
	if len(packets) != req.Count {
		return fmt.Errorf("%w: requested %d packets, got %d", domain.ErrPacketSourceContract, req.Count, len(packets))
	}

	geometry := req.Plasma.Geometry
	total := 0.0
	for i, p := range packets {
		if p.Energy <= 0 || math.IsNaN(p.Energy) || math.IsInf(p.Energy, 0) {
			return fmt.Errorf("%w: packet %d has energy %g", domain.ErrPacketSourceContract, i, p.Energy)
		}
		if p.Nu <= 0 || math.IsNaN(p.Nu) {
			return fmt.Errorf("%w: packet %d has frequency %g", domain.ErrPacketSourceContract, i, p.Nu)
		}
		if p.Mu < -1 || p.Mu > 1 {
			return fmt.Errorf("%w: packet %d has direction cosine %g", domain.ErrPacketSourceContract, i, p.Mu)
		}
		if p.Status != domain.StatusEmitted {
			return fmt.Errorf("%w: packet %d has status %s", domain.ErrPacketSourceContract, i, p.Status)
		}
		if p.Shell < 0 || p.Shell >= geometry.NumShells() || !geometry.Shells[p.Shell].Contains(p.R, 1e-9) {
			return fmt.Errorf("%w: packet %d at r=%g is outside shell %d", domain.ErrPacketSourceContract, i, p.R, p.Shell)
		}
		total += p.Energy
	}

	want := req.Boundary.Energy()
	if math.Abs(total-want) > energyTolerance*want {
		return fmt.Errorf("%w: packets carry %.12e erg, boundary emits %.12e erg", domain.ErrPacketSourceContract, total, want)
	}

	return nil
}

// Renormalize rescales packet energies so they sum to total, keeping their
// relative weights.
func Renormalize(packets []domain.Packet, total float64) {
	sum := 0.0
	for _, p := range packets {
		sum += p.Energy
	}
	if sum <= 0 {
		return
	}
	scale := total / sum
	for i := range packets {
		packets[i].Energy *= scale
	}
}
