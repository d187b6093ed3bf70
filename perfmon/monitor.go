// Package perfmon implements the Performance Monitor (C8, spec §4.8): a
// time-windowed FIFO of speed samples per operation, trend detection, and
// concurrency-adjustment recommendations. State is sharded by operation ID
// behind a map guarded by its own mutex (REDESIGN FLAGS §9 option (b)),
// avoiding one ConcurrentDictionary-style shared structure per field.
package perfmon

import (
	"math"
	"sync"
	"time"

	"github.com/KredoKodo/KopioRapido-sub000/internal/clock"
	"github.com/KredoKodo/KopioRapido-sub000/model"
)

const (
	windowSize           = 10
	trendWindowSize      = 5
	minSamplesToAdjust   = 5
	minSecondsBetweenAdapt = 5 * time.Second

	degradedEfficiencyThreshold = 0.7
	increasingFactor            = 1.2
	maxConcurrencyCap           = 32
	probeConcurrencyCeiling     = 4
)

type opState struct {
	mu sync.Mutex

	samples         []model.PerformanceSample
	peak            float64
	concurrency     int
	adaptationCount int
	lastAdaptation  time.Time
}

// Monitor tracks performance samples per operation.
type Monitor struct {
	mu   sync.Mutex
	ops  map[string]*opState
}

// New creates an empty Monitor.
func New() *Monitor {
	return &Monitor{ops: map[string]*opState{}}
}

func (m *Monitor) state(id string) *opState {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.ops[id]
	if !ok {
		st = &opState{}
		m.ops[id] = st
	}

	return st
}

// Forget drops an operation's tracked state once it terminates.
func (m *Monitor) Forget(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.ops, id)
}

// RecordSample appends a speed observation, keeping only the most recent
// windowSize samples (spec §4.8).
func (m *Monitor) RecordSample(id string, speedMBps float64, concurrency int) {
	st := m.state(id)

	st.mu.Lock()
	defer st.mu.Unlock()

	st.samples = append(st.samples, model.PerformanceSample{
		Timestamp:   clock.Now(),
		SpeedMBps:   speedMBps,
		Concurrency: concurrency,
	})

	if len(st.samples) > windowSize {
		st.samples = st.samples[len(st.samples)-windowSize:]
	}

	if speedMBps > st.peak {
		st.peak = speedMBps
	}

	st.concurrency = concurrency
}

// Metrics returns the current aggregate view for id.
func (m *Monitor) Metrics(id string) model.PerformanceMetrics {
	st := m.state(id)

	st.mu.Lock()
	defer st.mu.Unlock()

	return m.metricsLocked(st)
}

func (m *Monitor) metricsLocked(st *opState) model.PerformanceMetrics {
	var metrics model.PerformanceMetrics

	if len(st.samples) == 0 {
		metrics.Trend = model.TrendStable
		return metrics
	}

	current := st.samples[len(st.samples)-1].SpeedMBps

	var sum float64
	for _, s := range st.samples {
		sum += s.SpeedMBps
	}

	average := sum / float64(len(st.samples))

	metrics.Current = current
	metrics.Average = average
	metrics.Peak = st.peak
	metrics.MovingAverage = average
	metrics.AdaptationCount = st.adaptationCount
	metrics.Trend = detectTrend(st.samples)

	if st.peak > 0 {
		metrics.EfficiencyRatio = current / st.peak
	}

	if metrics.EfficiencyRatio < degradedEfficiencyThreshold {
		metrics.Bottleneck = "degraded-throughput"
	} else {
		metrics.Bottleneck = "none"
	}

	return metrics
}

// detectTrend applies spec §4.8's linear regression + coefficient-of-
// variation rule over the most recent trendWindowSize samples.
func detectTrend(samples []model.PerformanceSample) model.Trend {
	window := samples
	if len(window) > trendWindowSize {
		window = window[len(window)-trendWindowSize:]
	}

	if len(window) < 2 { //nolint:mnd
		return model.TrendStable
	}

	mean, stddev := meanStddev(window)
	if mean > 0 && stddev/mean > 0.3 { //nolint:mnd
		return model.TrendVolatile
	}

	slope := linearRegressionSlope(window)

	switch {
	case mean > 0 && slope > 0.05*mean: //nolint:mnd
		return model.TrendIncreasing
	case mean > 0 && slope < -0.05*mean: //nolint:mnd
		return model.TrendDecreasing
	default:
		return model.TrendStable
	}
}

func meanStddev(samples []model.PerformanceSample) (mean, stddev float64) {
	var sum float64
	for _, s := range samples {
		sum += s.SpeedMBps
	}

	mean = sum / float64(len(samples))

	var variance float64
	for _, s := range samples {
		d := s.SpeedMBps - mean
		variance += d * d
	}

	variance /= float64(len(samples))

	return mean, math.Sqrt(variance)
}

// linearRegressionSlope fits y = a + b*x over x=0..n-1, returning b.
func linearRegressionSlope(samples []model.PerformanceSample) float64 {
	n := float64(len(samples))

	var sumX, sumY, sumXY, sumXX float64

	for i, s := range samples {
		x := float64(i)
		y := s.SpeedMBps

		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}

	return (n*sumXY - sumX*sumY) / denom
}

// ShouldAdjust implements spec §4.8's ordered rule evaluation.
func (m *Monitor) ShouldAdjust(id string) (adjust bool, newConcurrency int, reason string) {
	st := m.state(id)

	st.mu.Lock()
	defer st.mu.Unlock()

	if len(st.samples) < minSamplesToAdjust {
		return false, 0, "insufficient-samples"
	}

	if !st.lastAdaptation.IsZero() && clock.Now().Sub(st.lastAdaptation) < minSecondsBetweenAdapt {
		return false, 0, "cooling-down"
	}

	metrics := m.metricsLocked(st)
	current := st.concurrency

	if metrics.EfficiencyRatio < degradedEfficiencyThreshold && current > 1 {
		proposed := int(float64(current) * 0.75) //nolint:mnd
		if proposed < 1 {
			proposed = 1
		}

		return true, proposed, "degraded"
	}

	if metrics.Trend == model.TrendIncreasing && metrics.Current > metrics.Average*increasingFactor && current < maxConcurrencyCap {
		return true, current + 2, "improving" //nolint:mnd
	}

	if current < probeConcurrencyCeiling && metrics.Trend == model.TrendStable && st.adaptationCount == 0 {
		proposed := current * 2
		if proposed > 8 { //nolint:mnd
			proposed = 8
		}

		return true, proposed, "probe"
	}

	return false, 0, "optimal"
}

// RecordAdaptation records that concurrency was adjusted to newConcurrency.
func (m *Monitor) RecordAdaptation(id string, newConcurrency int) {
	st := m.state(id)

	st.mu.Lock()
	defer st.mu.Unlock()

	st.concurrency = newConcurrency
	st.adaptationCount++
	st.lastAdaptation = clock.Now()
}
