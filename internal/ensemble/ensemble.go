// Copyright 2026 The PublicBridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ensemble combines heterogeneous, unreliable analyzers into single
// bounded-confidence decisions. Adapters run concurrently under a per-adapter
// timeout; results are combined deterministically regardless of completion
// order, and the ensemble always returns a result even when every adapter
// fails.
package ensemble

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Bouric0076/publicbridge-core/internal/analyzer"
)

// Config carries the tunables of the ensemble. The literal values are
// configuration, not load-bearing constants; Default() mirrors the historical
// defaults.
type Config struct {
	// AdapterTimeout bounds each adapter invocation.
	AdapterTimeout time.Duration
	// CategoryBlend and SignalBlend weight the category-axis confidence and
	// the sentiment/urgency-axis confidence in the overall confidence.
	CategoryBlend float64
	SignalBlend   float64
}

// Default returns the stock ensemble configuration.
func Default() Config {
	return Config{
		AdapterTimeout: 2 * time.Second,
		CategoryBlend:  0.6,
		SignalBlend:    0.4,
	}
}

// Member is one registered adapter with its static reliability weight.
// Registration order is the tie-break priority: first registered wins.
type Member struct {
	Analyzer analyzer.Analyzer
	Weight   float64
}

// Ensemble fans analysis out to its members and combines the results.
type Ensemble struct {
	cfg     Config
	members []Member
}

// New builds an ensemble over the given members. Members with non-positive
// weights are given weight 1.
func New(cfg Config, members ...Member) *Ensemble {
	if cfg.AdapterTimeout <= 0 {
		cfg.AdapterTimeout = Default().AdapterTimeout
	}
	if cfg.CategoryBlend <= 0 {
		cfg.CategoryBlend = Default().CategoryBlend
	}
	if cfg.SignalBlend <= 0 {
		cfg.SignalBlend = Default().SignalBlend
	}
	ms := make([]Member, len(members))
	copy(ms, members)
	for i := range ms {
		if ms[i].Weight <= 0 {
			ms[i].Weight = 1
		}
	}
	return &Ensemble{cfg: cfg, members: ms}
}

// Members returns the registered member count.
func (e *Ensemble) Members() int { return len(e.members) }

// CombinedAnalysis is the single decision derived from all responding
// adapters. It is recomputed per call and carries no identity beyond the
// request.
type CombinedAnalysis struct {
	Category       analyzer.Category            `json:"category"`
	CategoryScores map[analyzer.Category]float64 `json:"category_scores"`

	Sentiment          analyzer.Sentiment `json:"sentiment"`
	Urgency            analyzer.Urgency   `json:"urgency"`
	UrgencyScore       float64            `json:"urgency_score"`
	EmotionalIntensity float64            `json:"emotional_intensity"`

	Intent           string  `json:"intent"`
	IntentConfidence float64 `json:"intent_confidence"`

	// Confidence is the overall bounded confidence in [0,1].
	Confidence float64 `json:"confidence"`

	Keywords     []string `json:"keywords,omitempty"`
	Contributing []string `json:"contributing_analyzers,omitempty"`
	// Degraded is true when at least one adapter failed or timed out.
	Degraded bool `json:"degraded"`
}

// Neutral defaults used when no adapter can answer. Documented behavior, not
// an error path: the ensemble never raises and never returns nil.
const (
	defaultAllFailedConfidence = 0.1
	defaultUrgencyScore        = 0.5
)

func defaultAnalysis(confidence float64) CombinedAnalysis {
	return CombinedAnalysis{
		Category:           analyzer.CategoryGeneral,
		CategoryScores:     map[analyzer.Category]float64{analyzer.CategoryGeneral: confidence},
		Sentiment:          analyzer.SentimentNeutral,
		Urgency:            analyzer.UrgencyMedium,
		UrgencyScore:       defaultUrgencyScore,
		EmotionalIntensity: 0,
		Intent:             analyzer.IntentGeneral,
		IntentConfidence:   confidence,
		Confidence:         confidence,
	}
}

// Analyze runs all members concurrently and combines their outputs.
//
// Empty text short-circuits to the neutral default without invoking any
// adapter. If the caller's ctx expires mid-flight, adapters still in flight
// are abandoned and whatever landed before the deadline is combined.
func (e *Ensemble) Analyze(ctx context.Context, in analyzer.Input) CombinedAnalysis {
	if strings.TrimSpace(in.Text) == "" {
		return defaultAnalysis(0)
	}
	in = in.Truncated()

	results, collected := e.fanOut(ctx, in)
	return e.combine(results, collected)
}

// fanOut invokes every member under the per-adapter timeout. The returned
// collected mask marks slots that are safe to read; uncollected members are
// treated as timed out.
func (e *Ensemble) fanOut(ctx context.Context, in analyzer.Input) ([]analyzer.Result, []bool) {
	n := len(e.members)
	results := make([]analyzer.Result, n)
	collected := make([]bool, n)
	done := make(chan int, n)

	for i := range e.members {
		go func(i int, m Member) {
			tctx, cancel := context.WithTimeout(ctx, e.cfg.AdapterTimeout)
			defer cancel()

			resCh := make(chan analyzer.Result, 1)
			go func() { resCh <- m.Analyzer.Analyze(tctx, in) }()

			select {
			case r := <-resCh:
				results[i] = r
			case <-tctx.Done():
				// Non-responding adapters are recorded as degraded,
				// not retried within the same call.
				results[i] = analyzer.DegradedResult(m.Analyzer.ID(), analyzer.ErrAdapterTimeout)
			}
			done <- i
		}(i, e.members[i])
	}

	for range e.members {
		select {
		case i := <-done:
			collected[i] = true
		case <-ctx.Done():
			// Whole-request deadline: abandon in-flight adapters, keep
			// partial results already landed.
			return results, collected
		}
	}
	return results, collected
}

func (e *Ensemble) combine(results []analyzer.Result, collected []bool) CombinedAnalysis {
	out := defaultAnalysis(defaultAllFailedConfidence)
	out.Contributing = nil

	catLabel, catScores, catConf, catOK := e.combineAxis(analyzer.AxisCategory, results, collected)
	if catOK {
		out.Category = analyzer.ParseCategory(catLabel)
		out.CategoryScores = make(map[analyzer.Category]float64, len(catScores))
		for label, s := range catScores {
			out.CategoryScores[analyzer.ParseCategory(label)] = s
		}
	}

	sentLabel, _, _, sentOK := e.combineAxis(analyzer.AxisSentiment, results, collected)
	if sentOK {
		out.Sentiment = analyzer.Sentiment(sentLabel)
	}

	urgLabel, _, urgConf, urgOK := e.combineAxis(analyzer.AxisUrgency, results, collected)
	if urgOK {
		out.Urgency = analyzer.ParseUrgency(urgLabel)
	}

	intentLabel, _, intentConf, intentOK := e.combineAxis(analyzer.AxisIntent, results, collected)
	if intentOK {
		out.Intent = intentLabel
		out.IntentConfidence = intentConf
	}

	if v, ok := e.weightedMetric("urgency_score", results, collected); ok {
		out.UrgencyScore = v
	}
	if v, ok := e.weightedMetric("emotional_intensity", results, collected); ok {
		out.EmotionalIntensity = v
	}

	for i, m := range e.members {
		if !collected[i] {
			out.Degraded = true
			continue
		}
		r := results[i]
		if r.Degraded {
			out.Degraded = true
			log.WithFields(log.Fields{"analyzer": m.Analyzer.ID(), "error": r.Error}).
				Debug("analyzer degraded during ensemble combine")
			continue
		}
		out.Contributing = append(out.Contributing, r.AnalyzerID)
		for _, kw := range r.Keywords {
			out.Keywords = appendKeyword(out.Keywords, kw)
		}
	}

	// Overall confidence blends the category axis with the signal axes,
	// renormalized over the axes that actually answered.
	switch {
	case catOK && urgOK:
		total := e.cfg.CategoryBlend + e.cfg.SignalBlend
		out.Confidence = analyzer.Clamp01((catConf*e.cfg.CategoryBlend + urgConf*e.cfg.SignalBlend) / total)
	case catOK:
		out.Confidence = analyzer.Clamp01(catConf)
	case urgOK:
		out.Confidence = analyzer.Clamp01(urgConf)
	default:
		out.Confidence = defaultAllFailedConfidence
	}

	return out
}

// combineAxis accumulates weighted label scores across responding members and
// picks the winner. Confidence is the winning score normalized by the sum of
// weights of the adapters that responded for this axis, so a partially
// degraded ensemble does not report artificially low confidence.
func (e *Ensemble) combineAxis(axis analyzer.Axis, results []analyzer.Result, collected []bool) (winner string, scores map[string]float64, confidence float64, ok bool) {
	accumulated := make(map[string]float64)
	respondedWeight := 0.0
	var respondingIdx []int

	for i, m := range e.members {
		if !analyzer.Supports(m.Analyzer, axis) {
			continue
		}
		if !collected[i] || results[i].Degraded {
			continue
		}
		axisScores := results[i].Scores[axis]
		if len(axisScores) == 0 {
			continue
		}
		respondedWeight += m.Weight
		respondingIdx = append(respondingIdx, i)
		for label, s := range axisScores {
			accumulated[label] += analyzer.Clamp01(s) * m.Weight
		}
	}
	if respondedWeight == 0 || len(accumulated) == 0 {
		return "", nil, 0, false
	}

	// Deterministic argmax: canonical label order first, then break exact
	// ties in favor of the first-registered responding adapter's top label.
	labels := analyzer.AxisLabels(axis)
	if labels == nil {
		for label := range accumulated {
			labels = append(labels, label)
		}
		sortLabels(labels)
	}
	best := ""
	bestScore := -1.0
	for _, label := range labels {
		if s, present := accumulated[label]; present && s > bestScore {
			best, bestScore = label, s
		}
	}
	for _, i := range respondingIdx {
		if top, _, topOK := results[i].Top(axis); topOK && accumulated[top] == bestScore {
			best = top
			break
		}
	}

	normalized := make(map[string]float64, len(accumulated))
	for label, s := range accumulated {
		normalized[label] = analyzer.Clamp01(s / respondedWeight)
	}
	return best, normalized, analyzer.Clamp01(bestScore / respondedWeight), true
}

// weightedMetric averages a scalar metric across responding members that
// provide it, weighted by member weight.
func (e *Ensemble) weightedMetric(name string, results []analyzer.Result, collected []bool) (float64, bool) {
	var sum, weight float64
	for i, m := range e.members {
		if !collected[i] || results[i].Degraded {
			continue
		}
		v, present := results[i].Metrics[name]
		if !present {
			continue
		}
		sum += analyzer.Clamp01(v) * m.Weight
		weight += m.Weight
	}
	if weight == 0 {
		return 0, false
	}
	return analyzer.Clamp01(sum / weight), true
}

func appendKeyword(keywords []string, kw string) []string {
	if len(keywords) >= 10 {
		return keywords
	}
	for _, existing := range keywords {
		if existing == kw {
			return keywords
		}
	}
	return append(keywords, kw)
}

func sortLabels(labels []string) {
	for i := 1; i < len(labels); i++ {
		for j := i; j > 0 && labels[j] < labels[j-1]; j-- {
			labels[j], labels[j-1] = labels[j-1], labels[j]
		}
	}
}
