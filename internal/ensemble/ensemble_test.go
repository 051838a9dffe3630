package ensemble

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Bouric0076/publicbridge-core/internal/analyzer"
)

// stubAnalyzer is a deterministic in-memory adapter for combiner tests.
type stubAnalyzer struct {
	id     string
	axes   []analyzer.Axis
	result analyzer.Result
	delay  time.Duration
	calls  atomic.Int32
}

func (s *stubAnalyzer) ID() string            { return s.id }
func (s *stubAnalyzer) Axes() []analyzer.Axis { return s.axes }
func (s *stubAnalyzer) Health() analyzer.Health {
	return analyzer.Health{Available: true}
}

func (s *stubAnalyzer) Analyze(ctx context.Context, _ analyzer.Input) analyzer.Result {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return analyzer.DegradedResult(s.id, analyzer.ErrAdapterTimeout)
		}
	}
	r := s.result
	r.AnalyzerID = s.id
	return r
}

func categoryStub(id string, weight float64, scores map[string]float64, confidence float64) Member {
	return Member{
		Analyzer: &stubAnalyzer{
			id:   id,
			axes: []analyzer.Axis{analyzer.AxisCategory, analyzer.AxisUrgency},
			result: analyzer.Result{
				Confidence: confidence,
				Scores: map[analyzer.Axis]map[string]float64{
					analyzer.AxisCategory: scores,
				},
			},
		},
		Weight: weight,
	}
}

func TestAnalyze_EmptyTextShortCircuits(t *testing.T) {
	stub := &stubAnalyzer{id: "a", axes: []analyzer.Axis{analyzer.AxisCategory}}
	ens := New(Default(), Member{Analyzer: stub, Weight: 1})

	out := ens.Analyze(context.Background(), analyzer.Input{Text: "   \n\t"})

	require.Equal(t, analyzer.CategoryGeneral, out.Category)
	require.Zero(t, out.Confidence)
	require.Zero(t, out.IntentConfidence)
	require.Equal(t, int32(0), stub.calls.Load(), "adapters must not run for empty input")
}

func TestAnalyze_AllAdaptersFail(t *testing.T) {
	failing := &stubAnalyzer{
		id:     "broken",
		axes:   []analyzer.Axis{analyzer.AxisCategory},
		result: analyzer.DegradedResult("broken", analyzer.ErrAdapterUnavailable),
	}
	ens := New(Default(), Member{Analyzer: failing, Weight: 1})

	out := ens.Analyze(context.Background(), analyzer.Input{Text: "water pipe burst"})

	require.Equal(t, analyzer.CategoryGeneral, out.Category)
	require.Equal(t, 0.1, out.Confidence)
	require.True(t, out.Degraded)
	require.Empty(t, out.Contributing)
}

func TestAnalyze_SingleAdapterConfidencePassthrough(t *testing.T) {
	// With one member, normalization by responding weight must be a no-op.
	ens := New(Default(), categoryStub("solo", 3.5, map[string]float64{
		"healthcare": 0.8,
		"general":    0.2,
	}, 0.8))

	out := ens.Analyze(context.Background(), analyzer.Input{Text: "clinic has no medicine"})

	require.Equal(t, analyzer.CategoryHealthcare, out.Category)
	require.InDelta(t, 0.8, out.CategoryScores[analyzer.CategoryHealthcare], 1e-9)
	require.InDelta(t, 0.8, out.Confidence, 1e-9)
	require.False(t, out.Degraded)
	require.Equal(t, []string{"solo"}, out.Contributing)
}

func TestAnalyze_WeightedMajority(t *testing.T) {
	heavy := categoryStub("heavy", 2.0, map[string]float64{"infrastructure": 0.9}, 0.9)
	light := categoryStub("light", 1.0, map[string]float64{"healthcare": 0.9}, 0.9)
	ens := New(Default(), heavy, light)

	out := ens.Analyze(context.Background(), analyzer.Input{Text: "road collapsed near the clinic"})

	// infrastructure: 0.9*2/3 = 0.6, healthcare: 0.9*1/3 = 0.3
	require.Equal(t, analyzer.CategoryInfrastructure, out.Category)
	require.InDelta(t, 0.6, out.CategoryScores[analyzer.CategoryInfrastructure], 1e-9)
	require.InDelta(t, 0.3, out.CategoryScores[analyzer.CategoryHealthcare], 1e-9)
}

func TestAnalyze_TieBreakFirstRegistered(t *testing.T) {
	// healthcare comes after infrastructure in canonical order, so winning
	// this tie proves the first-registered responder is preferred.
	first := categoryStub("first", 1.0, map[string]float64{"healthcare": 0.6}, 0.6)
	second := categoryStub("second", 1.0, map[string]float64{"infrastructure": 0.6}, 0.6)
	ens := New(Default(), first, second)

	for i := 0; i < 25; i++ {
		out := ens.Analyze(context.Background(), analyzer.Input{Text: "ambiguous report"})
		require.Equal(t, analyzer.CategoryHealthcare, out.Category)
	}
}

func TestAnalyze_SlowAdapterDegradesNotBlocks(t *testing.T) {
	slow := Member{Analyzer: &stubAnalyzer{
		id:    "slow",
		axes:  []analyzer.Axis{analyzer.AxisCategory},
		delay: 5 * time.Second,
	}, Weight: 1}
	fast := categoryStub("fast", 1.0, map[string]float64{"utilities": 0.7}, 0.7)

	ens := New(Config{AdapterTimeout: 50 * time.Millisecond}, slow, fast)

	start := time.Now()
	out := ens.Analyze(context.Background(), analyzer.Input{Text: "no electricity since morning"})
	elapsed := time.Since(start)

	require.Less(t, elapsed, 2*time.Second, "slow adapter must not block the ensemble")
	require.True(t, out.Degraded)
	require.Equal(t, analyzer.CategoryUtilities, out.Category)
	require.Equal(t, []string{"fast"}, out.Contributing)
}

func TestAnalyze_CallerDeadlineKeepsPartialResults(t *testing.T) {
	slow := Member{Analyzer: &stubAnalyzer{
		id:    "slow",
		axes:  []analyzer.Axis{analyzer.AxisCategory},
		delay: 5 * time.Second,
	}, Weight: 1}
	fast := categoryStub("fast", 1.0, map[string]float64{"environment": 0.7}, 0.7)

	ens := New(Config{AdapterTimeout: 10 * time.Second}, fast, slow)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	out := ens.Analyze(ctx, analyzer.Input{Text: "garbage dumped in the river"})

	require.True(t, out.Degraded)
	require.Equal(t, analyzer.CategoryEnvironment, out.Category)
}

func TestAnalyze_MetricsAndKeywords(t *testing.T) {
	a := Member{Analyzer: &stubAnalyzer{
		id:   "a",
		axes: []analyzer.Axis{analyzer.AxisCategory, analyzer.AxisUrgency},
		result: analyzer.Result{
			Confidence: 0.9,
			Scores: map[analyzer.Axis]map[string]float64{
				analyzer.AxisCategory: {"emergency": 0.9},
				analyzer.AxisUrgency:  {"critical": 0.9},
			},
			Metrics:  map[string]float64{"urgency_score": 0.9, "emotional_intensity": 0.6},
			Keywords: []string{"fire", "hospital"},
		},
	}, Weight: 1}
	b := Member{Analyzer: &stubAnalyzer{
		id:   "b",
		axes: []analyzer.Axis{analyzer.AxisCategory, analyzer.AxisUrgency},
		result: analyzer.Result{
			Confidence: 0.7,
			Scores: map[analyzer.Axis]map[string]float64{
				analyzer.AxisCategory: {"emergency": 0.7},
				analyzer.AxisUrgency:  {"critical": 0.7},
			},
			Metrics:  map[string]float64{"urgency_score": 0.7},
			Keywords: []string{"fire", "smoke"},
		},
	}, Weight: 1}

	out := New(Default(), a, b).Analyze(context.Background(), analyzer.Input{Text: "fire at the hospital"})

	require.Equal(t, analyzer.CategoryEmergency, out.Category)
	require.Equal(t, analyzer.UrgencyCritical, out.Urgency)
	require.InDelta(t, 0.8, out.UrgencyScore, 1e-9)
	// Only member a reported emotional intensity; the average covers it alone.
	require.InDelta(t, 0.6, out.EmotionalIntensity, 1e-9)
	require.Equal(t, []string{"fire", "hospital", "smoke"}, out.Keywords)
	require.ElementsMatch(t, []string{"a", "b"}, out.Contributing)
}

func TestNew_NonPositiveWeightsDefaultToOne(t *testing.T) {
	a := categoryStub("a", 0, map[string]float64{"education": 0.5}, 0.5)
	a.Weight = 0
	b := categoryStub("b", -2, map[string]float64{"education": 0.5}, 0.5)
	b.Weight = -2
	ens := New(Default(), a, b)

	out := ens.Analyze(context.Background(), analyzer.Input{Text: "school has no desks"})

	require.Equal(t, analyzer.CategoryEducation, out.Category)
	require.InDelta(t, 0.5, out.CategoryScores[analyzer.CategoryEducation], 1e-9)
}

func TestNew_BlendsDefaultIndependently(t *testing.T) {
	// A half-set blend pair must not silently drop the unset axis from the
	// overall confidence.
	dual := Member{
		Analyzer: &stubAnalyzer{
			id:   "dual",
			axes: []analyzer.Axis{analyzer.AxisCategory, analyzer.AxisUrgency},
			result: analyzer.Result{
				Scores: map[analyzer.Axis]map[string]float64{
					analyzer.AxisCategory: {"infrastructure": 0.8},
					analyzer.AxisUrgency:  {"high": 0.5},
				},
			},
		},
		Weight: 1,
	}

	ens := New(Config{CategoryBlend: 0.7}, dual)
	out := ens.Analyze(context.Background(), analyzer.Input{Text: "bridge is cracking"})
	// Signal blend falls back to its default 0.4.
	require.InDelta(t, (0.8*0.7+0.5*0.4)/1.1, out.Confidence, 1e-9)

	ens = New(Config{SignalBlend: 0.8}, dual)
	out = ens.Analyze(context.Background(), analyzer.Input{Text: "bridge is cracking"})
	// Category blend falls back to its default 0.6.
	require.InDelta(t, (0.8*0.6+0.5*0.8)/1.4, out.Confidence, 1e-9)
}
