package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bnema/mcrt/internal/application"
	"github.com/bnema/mcrt/internal/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func iterationEvent(iteration int, final bool) application.CallbackEvent {
	return application.CallbackEvent{
		Trigger:   application.TriggerIteration,
		Iteration: iteration,
		Record: domain.IterationRecord{
			Iteration:   iteration,
			State:       domain.StateRunning,
			Metric:      0.125,
			PacketCount: 1000,
			TInner:      10500,
			Energy:      domain.EnergyBudget{Emitted: 2, Escaped: 1.5, Absorbed: 0.1, Reabsorbed: 0.4},
			Interactions: map[domain.InteractionType]int{
				domain.InteractionScatter: 30,
				domain.InteractionEscape:  900,
			},
			StepLimitHits: 2,
			Duration:      250 * time.Millisecond,
			Final:         final,
		},
	}
}

func TestObserveUpdatesCollectors(t *testing.T) {
	t.Parallel()

	r := NewRecorder("w7")
	require.NoError(t, r.Observe(context.Background(), iterationEvent(1, false)))
	require.NoError(t, r.Observe(context.Background(), iterationEvent(2, false)))
	require.NoError(t, r.Observe(context.Background(), iterationEvent(3, true)))

	assert.InDelta(t, 2, testutil.ToFloat64(r.iterations.WithLabelValues("running")), 0)
	assert.InDelta(t, 0.125, testutil.ToFloat64(r.metric), 0)
	assert.InDelta(t, 10500, testutil.ToFloat64(r.tInner), 0)
	assert.InDelta(t, 0.75, testutil.ToFloat64(r.energyFraction.WithLabelValues("escaped")), 1e-12)
	assert.InDelta(t, 0.2, testutil.ToFloat64(r.energyFraction.WithLabelValues("reabsorbed")), 1e-12)
	assert.InDelta(t, 2000, testutil.ToFloat64(r.packets.WithLabelValues("iteration")), 0)
	assert.InDelta(t, 1000, testutil.ToFloat64(r.packets.WithLabelValues("final")), 0)
	assert.InDelta(t, 90, testutil.ToFloat64(r.interactions.WithLabelValues("electron_scatter")), 0)
	assert.InDelta(t, 6, testutil.ToFloat64(r.stepLimitHits), 0)
	assert.Equal(t, 2, testutil.CollectAndCount(r.passDuration))
}

func TestHandlerExposesRegistry(t *testing.T) {
	t.Parallel()

	r := NewRecorder("w7")
	require.NoError(t, r.Observe(context.Background(), iterationEvent(1, false)))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `mcrt_convergence_metric{run="w7"} 0.125`)
	assert.Contains(t, body, `mcrt_iterations_total{run="w7",state="running"} 1`)
	assert.Contains(t, body, "mcrt_transport_pass_duration_seconds_bucket")
}

func TestRegisterHooksIntoSimulation(t *testing.T) {
	t.Parallel()

	cfg := domain.DefaultConfiguration()
	cfg.Supernova.TimeExplosion = 864000
	cfg.Supernova.LuminosityRequested = 1e43
	cfg.Model.Velocities = []float64{1e9, 2e9}
	cfg.Model.Abundances.Uniform = map[string]float64{"H": 1}
	cfg.Packets.Count = 50
	cfg.Packets.LastCount = 50
	cfg.Convergence.HoldIterations = 1
	cfg.Spectrum = domain.SpectrumConfig{NuMin: 1e13, NuMax: 1e17, Bins: 10}

	sim, err := application.NewSimulation(cfg, &domain.AtomData{Elements: []domain.Element{{
		Symbol: "H", AtomicNumber: 1, Mass: 1.008,
		Ions: []domain.Ion{
			{Charge: 0, IonizationEnergy: 13.6, Levels: []domain.Level{{Weight: 2}}},
			{Charge: 1, Levels: []domain.Level{{Weight: 1}}},
		},
	}}})
	require.NoError(t, err)

	r := NewRecorder("transparent")
	require.NoError(t, r.Register(sim))
	_, err = sim.Run(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(r.iterations.WithLabelValues("converged")), 0)
	assert.InDelta(t, 50, testutil.ToFloat64(r.packets.WithLabelValues("final")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.energyFraction.WithLabelValues("escaped")), 1e-9)
}

func TestServeStopsWithContext(t *testing.T) {
	t.Parallel()

	r := NewRecorder("w7")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr, err := r.Serve(ctx, "127.0.0.1:0", zerolog.Nop())
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr.String() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "go_goroutines"))
}
