package perfmon_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/KredoKodo/KopioRapido-sub000/internal/clock"
	"github.com/KredoKodo/KopioRapido-sub000/model"
	"github.com/KredoKodo/KopioRapido-sub000/perfmon"
)

func TestShouldAdjust_InsufficientSamples(t *testing.T) {
	mon := perfmon.New()
	mon.RecordSample("op1", 100, 4)

	adjust, _, reason := mon.ShouldAdjust("op1")
	require.False(t, adjust)
	require.Equal(t, "insufficient-samples", reason)
}

func TestShouldAdjust_Degraded(t *testing.T) {
	mon := perfmon.New()

	start := time.Now()
	clock.Freeze(start)
	defer clock.Unfreeze()

	speeds := []float64{100, 100, 100, 40, 30}
	for i, s := range speeds {
		clock.Freeze(start.Add(time.Duration(i) * time.Second))
		mon.RecordSample("op1", s, 8)
	}

	clock.Freeze(start.Add(10 * time.Second))

	adjust, newConcurrency, reason := mon.ShouldAdjust("op1")
	require.True(t, adjust)
	require.Equal(t, "degraded", reason)
	require.Equal(t, 6, newConcurrency) // floor(0.75*8)
}

func TestShouldAdjust_Probe(t *testing.T) {
	mon := perfmon.New()

	start := time.Now()
	clock.Freeze(start)
	defer clock.Unfreeze()

	for i := 0; i < 6; i++ {
		clock.Freeze(start.Add(time.Duration(i) * time.Second))
		mon.RecordSample("op1", 100, 2)
	}

	clock.Freeze(start.Add(10 * time.Second))

	adjust, newConcurrency, reason := mon.ShouldAdjust("op1")
	require.True(t, adjust)
	require.Equal(t, "probe", reason)
	require.Equal(t, 4, newConcurrency)
}

func TestRecordAdaptation_ResetsProbeEligibility(t *testing.T) {
	mon := perfmon.New()

	start := time.Now()
	clock.Freeze(start)
	defer clock.Unfreeze()

	for i := 0; i < 6; i++ {
		clock.Freeze(start.Add(time.Duration(i) * time.Second))
		mon.RecordSample("op1", 100, 2)
	}

	mon.RecordAdaptation("op1", 4)

	clock.Freeze(start.Add(20 * time.Second))

	for i := 0; i < 6; i++ {
		clock.Freeze(start.Add(time.Duration(20+i) * time.Second))
		mon.RecordSample("op1", 100, 2)
	}

	clock.Freeze(start.Add(40 * time.Second))

	adjust, _, reason := mon.ShouldAdjust("op1")
	require.False(t, adjust)
	require.Equal(t, "optimal", reason)
}

func TestMetrics_EmptyIsStable(t *testing.T) {
	mon := perfmon.New()
	metrics := mon.Metrics("unknown")
	require.Equal(t, model.TrendStable, metrics.Trend)
}
