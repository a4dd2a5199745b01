package source

import (
	"context"
	"errors"
	"testing"

	"github.com/bnema/mcrt/internal/domain"
	"github.com/bnema/mcrt/internal/physics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request(t *testing.T, count int) domain.PacketRequest {
	t.Helper()

	geometry, err := domain.NewGeometry(10*physics.Day, []float64{1e9, 2e9})
	require.NoError(t, err)
	return domain.PacketRequest{
		Count:     count,
		Iteration: 1,
		Seed:      99,
		Boundary: domain.Boundary{
			Radius:      geometry.InnerRadius(),
			Temperature: 10000,
			Luminosity:  1e43,
			TimeStep:    1e-43,
		},
		Plasma: &domain.PlasmaState{TInner: 10000, Geometry: geometry, Shells: make([]domain.ShellPlasma, 1)},
	}
}

func TestBlackbodyHonoursContract(t *testing.T) {
	t.Parallel()

	for _, count := range []int{1, 7, 1000} {
		req := request(t, count)
		packets, err := NewBlackbody().Generate(context.Background(), req)
		require.NoError(t, err)
		require.NoError(t, CheckContract(req, packets))

		for i, p := range packets {
			assert.Equal(t, i, p.ID)
			assert.Equal(t, 0, p.Shell)
			assert.Equal(t, req.Boundary.Radius, p.R)
			assert.Greater(t, p.Mu, 0.0)
			assert.LessOrEqual(t, p.Mu, 1.0)
			assert.InEpsilon(t, 1.0/float64(count), p.Energy, 1e-12)
		}
	}
}

func TestBlackbodyIsDeterministic(t *testing.T) {
	t.Parallel()

	req := request(t, 64)
	a, err := NewBlackbody().Generate(context.Background(), req)
	require.NoError(t, err)
	b, err := NewBlackbody().Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	req.Iteration++
	c, err := NewBlackbody().Generate(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, a[0].Nu, c[0].Nu)
}

func TestBlackbodyMeanFrequencyFollowsWien(t *testing.T) {
	t.Parallel()

	req := request(t, 20000)
	packets, err := NewBlackbody().Generate(context.Background(), req)
	require.NoError(t, err)

	sum := 0.0
	for _, p := range packets {
		sum += p.Nu * p.Doppler(req.Plasma.Geometry.TimeExplosion)
	}
	// Mean photon-energy-weighted frequency of a Planck spectrum is 3.832 kT/h.
	want := 3.832 * physics.Boltzmann * 10000 / physics.Planck
	assert.InEpsilon(t, want, sum/float64(len(packets)), 0.02)
}

func TestBlackbodyRejectsEmptyRequest(t *testing.T) {
	t.Parallel()

	_, err := NewBlackbody().Generate(context.Background(), request(t, 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPacketSourceContract))
}

func TestCheckContractDetectsViolations(t *testing.T) {
	t.Parallel()

	req := request(t, 4)
	valid, err := NewBlackbody().Generate(context.Background(), req)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func([]domain.Packet) []domain.Packet
	}{
		{name: "short", mutate: func(p []domain.Packet) []domain.Packet { return p[:3] }},
		{name: "energy", mutate: func(p []domain.Packet) []domain.Packet { p[0].Energy *= 2; return p }},
		{name: "negative energy", mutate: func(p []domain.Packet) []domain.Packet { p[1].Energy = -1; return p }},
		{name: "status", mutate: func(p []domain.Packet) []domain.Packet { p[2].Status = domain.StatusEscaped; return p }},
		{name: "outside grid", mutate: func(p []domain.Packet) []domain.Packet { p[3].R *= 10; return p }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			packets := tt.mutate(append([]domain.Packet(nil), valid...))
			err := CheckContract(req, packets)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrPacketSourceContract)
		})
	}
}

func TestRenormalize(t *testing.T) {
	t.Parallel()

	packets := []domain.Packet{{Energy: 1}, {Energy: 3}}
	Renormalize(packets, 2)

	assert.InDelta(t, 0.5, packets[0].Energy, 1e-15)
	assert.InDelta(t, 1.5, packets[1].Energy, 1e-15)
}
