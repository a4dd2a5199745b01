package ports

import (
	"context"

	"github.com/bnema/mcrt/internal/domain"
)

// PacketSource produces the packets of one pass. Implementations must return
// exactly req.Count packets whose energies sum to req.Boundary.Energy().
type PacketSource interface {
	Generate(ctx context.Context, req domain.PacketRequest) ([]domain.Packet, error)
}
