package estimator

import (
	"math/rand/v2"
	"testing"

	"github.com/bnema/mcrt/internal/domain"
	"github.com/bnema/mcrt/internal/physics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func geometry(t *testing.T) domain.Geometry {
	t.Helper()

	g, err := domain.NewGeometry(10*physics.Day, []float64{1e9, 1.5e9, 2e9})
	require.NoError(t, err)
	return g
}

func events(n int) []domain.InteractionEvent {
	rng := rand.New(rand.NewPCG(1, 2))
	types := []domain.InteractionType{domain.InteractionBoundary, domain.InteractionScatter, domain.InteractionLine, domain.InteractionContinuum}
	out := make([]domain.InteractionEvent, 0, n)
	for i := range n {
		out = append(out, domain.InteractionEvent{
			PacketID:      i / 5,
			Seq:           i % 5,
			Shell:         rng.IntN(2),
			Type:          types[rng.IntN(len(types))],
			PathLength:    rng.Float64() * 1e14,
			SegmentEnergy: 1e-3 * (0.5 + rng.Float64()),
			SegmentNu:     1e14 + rng.Float64()*1e15,
			Energy:        rng.Float64() * 1e-3,
		})
	}
	return out
}

func TestAggregateIsOrderIndependent(t *testing.T) {
	t.Parallel()

	est := New(geometry(t))
	evs := events(2000)
	want := est.Aggregate(evs, 400, 1)

	shuffled := append([]domain.InteractionEvent(nil), evs...)
	rng := rand.New(rand.NewPCG(9, 9))
	for range 5 {
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		got := est.Aggregate(shuffled, 400, 1)
		assert.Equal(t, want, got)
	}
}

func TestAggregateDoesNotReorderInput(t *testing.T) {
	t.Parallel()

	evs := events(50)
	evs[0], evs[49] = evs[49], evs[0]
	first := evs[0]

	New(geometry(t)).Aggregate(evs, 10, 1)
	assert.Equal(t, first, evs[0])
}

func TestAggregateEstimators(t *testing.T) {
	t.Parallel()

	g := geometry(t)
	nu := 6e14
	evs := []domain.InteractionEvent{
		{PacketID: 0, Seq: 1, Shell: 0, Type: domain.InteractionBoundary, PathLength: 2e14, SegmentEnergy: 0.5, SegmentNu: nu},
		{PacketID: 0, Seq: 2, Shell: 1, Type: domain.InteractionContinuum, PathLength: 1e14, SegmentEnergy: 0.5, SegmentNu: nu, Energy: 0.5},
		{PacketID: 1, Seq: 1, Shell: 0, Type: domain.InteractionScatter, PathLength: 1e14, SegmentEnergy: 0.5, SegmentNu: nu},
		{PacketID: 1, Seq: 0, Shell: 0, Type: domain.InteractionEmission},
		{PacketID: 2, Seq: 0, Shell: 7, Type: domain.InteractionEmission, PathLength: 1e20},
	}

	s := New(g).Aggregate(evs, 2, 1)

	assert.InEpsilon(t, 1.5e14, s.J[0], 1e-12)
	assert.InEpsilon(t, 0.5e14, s.J[1], 1e-12)
	assert.InEpsilon(t, physics.RadiationTemperature(nu*1.5e14, 1.5e14), s.TRad[0], 1e-12)
	assert.InEpsilon(t, physics.DilutionFactor(s.J[0], s.TRad[0], g.Shells[0].Volume(), 1), s.W[0], 1e-12)
	assert.Equal(t, []float64{0, 0.5}, s.Deposited)
	assert.Equal(t, 1, s.Interactions[0][domain.InteractionScatter])
	assert.Equal(t, 1, s.Interactions[0][domain.InteractionEmission])
	assert.Equal(t, 1, s.Interactions[1][domain.InteractionContinuum])
	assert.True(t, s.Sampled(0))
}

func TestAggregateEmptyPass(t *testing.T) {
	t.Parallel()

	s := New(geometry(t)).Aggregate(nil, 0, 1)
	assert.Equal(t, []float64{0, 0}, s.TRad)
	assert.Equal(t, []float64{0, 0}, s.W)
	assert.False(t, s.Sampled(1))
}
