// Package file saves packet ensembles to TOML and replays them as a packet
// source.
package file

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/bnema/mcrt/internal/domain"
	"github.com/bnema/mcrt/internal/opacity"
	"github.com/bnema/mcrt/internal/ports"
	"github.com/bnema/mcrt/internal/source"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
)

const (
	currentSchemaVersion = 1
	packetFileMode       = 0o644
)

var ErrEmptyPacketFile = errors.New("packet file holds no packets")

// fileSchema stores packets column-wise. Frequencies are lab-frame Hz.
type fileSchema struct {
	Version int       `toml:"version"`
	Nu      []float64 `toml:"nu"`
	Mu      []float64 `toml:"mu"`
	Energy  []float64 `toml:"energy"`
}

// Source replays saved packets from the inner boundary. Requests for more
// packets than were saved cycle through the file in order; energies are
// rescaled to the boundary energy of each pass.
type Source struct {
	nu     []float64
	mu     []float64
	energy []float64
}

var _ ports.PacketSource = (*Source)(nil)

func Open(fs afero.Fs, path string) (*Source, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read packet file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode packet file: %w", err)
	}
	if file.Version > currentSchemaVersion {
		return nil, fmt.Errorf("unsupported packet schema version %d (current %d)", file.Version, currentSchemaVersion)
	}
	if len(file.Nu) == 0 {
		return nil, ErrEmptyPacketFile
	}
	if len(file.Mu) != len(file.Nu) || len(file.Energy) != len(file.Nu) {
		return nil, fmt.Errorf("packet file columns differ in length: nu=%d mu=%d energy=%d", len(file.Nu), len(file.Mu), len(file.Energy))
	}
	for i := range file.Nu {
		if file.Nu[i] <= 0 || file.Energy[i] <= 0 || math.Abs(file.Mu[i]) > 1 {
			return nil, fmt.Errorf("packet file entry %d is not a valid packet", i)
		}
	}

	return &Source{nu: file.Nu, mu: file.Mu, energy: file.Energy}, nil
}

func (s *Source) Len() int {
	return len(s.nu)
}

func (s *Source) Generate(ctx context.Context, req domain.PacketRequest) ([]domain.Packet, error) {
	if req.Count < 1 {
		return nil, fmt.Errorf("%w: packet count must be at least 1, got %d", domain.ErrPacketSourceContract, req.Count)
	}
	if req.Plasma == nil {
		return nil, fmt.Errorf("%w: plasma state is nil", domain.ErrPacketSourceContract)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t := req.Plasma.Geometry.TimeExplosion
	packets := make([]domain.Packet, req.Count)
	for i := range packets {
		j := i % len(s.nu)
		mu := math.Abs(s.mu[j])
		if mu == 0 {
			mu = 1
		}
		p := domain.Packet{
			ID:     i,
			R:      req.Boundary.Radius,
			Mu:     mu,
			Nu:     s.nu[j],
			Energy: s.energy[j],
			Status: domain.StatusEmitted,
		}
		p.NextLine = opacity.NextLineIndex(req.Plasma.Lines, p.ComovingNu(t))
		packets[i] = p
	}
	source.Renormalize(packets, req.Boundary.Energy())

	return packets, nil
}

// Save writes the escaped packets of a pass. Other packets carry no
// emergent spectrum and are skipped.
func Save(fs afero.Fs, path string, packets []domain.Packet) (int, error) {
	file := fileSchema{Version: currentSchemaVersion}
	for _, p := range packets {
		if p.Status != domain.StatusEscaped {
			continue
		}
		file.Nu = append(file.Nu, p.Nu)
		file.Mu = append(file.Mu, p.Mu)
		file.Energy = append(file.Energy, p.Energy)
	}
	if len(file.Nu) == 0 {
		return 0, ErrEmptyPacketFile
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return 0, fmt.Errorf("encode packet file: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create packet directory: %w", err)
		}
	}
	if err := afero.WriteFile(fs, path, data, os.FileMode(packetFileMode)); err != nil {
		return 0, fmt.Errorf("write packet file: %w", err)
	}

	return len(file.Nu), nil
}
