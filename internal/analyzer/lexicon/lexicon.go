// Copyright 2026 The PublicBridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package lexicon implements the rule-based sentiment and urgency analyzer.
// It scores civic-domain word lists for polarity, detects urgency levels from
// indicator tables, and derives an emotional intensity for citizen distress.
package lexicon

import (
	"context"
	"strings"

	"github.com/Bouric0076/publicbridge-core/internal/analyzer"
)

const analyzerID = "lexicon-sentiment"

// MetricSentimentScore, MetricUrgencyScore and MetricEmotionalIntensity are
// the Result.Metrics keys this adapter populates.
const (
	MetricSentimentScore     = "sentiment_score"
	MetricUrgencyScore       = "urgency_score"
	MetricEmotionalIntensity = "emotional_intensity"
	MetricFrustration        = "citizen_frustration"
)

type urgencyRules struct {
	keywords   []string
	multiplier float64
}

// Analyzer scores sentiment, urgency and emotional intensity from fixed
// civic-domain lexicons. Stateless and safe for concurrent use.
type Analyzer struct {
	positive       []string
	negative       []string
	urgentNegative []string
	urgency        map[analyzer.Urgency]urgencyRules
	timeSensitive  []string
	escalation     []string
}

// New builds the lexicon analyzer with the built-in word tables.
func New() *Analyzer {
	return &Analyzer{
		positive: []string{
			"good", "excellent", "great", "wonderful", "amazing",
			"helpful", "efficient", "professional", "courteous",
			"responsive", "effective", "satisfactory", "pleased",
			"grateful", "appreciate", "thank", "impressed",
			"addressed", "resolved", "fixed", "improved",
		},
		negative: []string{
			"bad", "terrible", "awful", "horrible", "disgusting",
			"frustrated", "angry", "disappointed", "unsatisfied",
			"useless", "pathetic", "ridiculous", "unacceptable",
			"broken", "failed", "problem", "issue", "concern",
			"complain", "ignored", "neglected", "dismissed",
		},
		urgentNegative: []string{
			"urgent", "emergency", "critical", "immediate",
			"life-threatening", "dangerous", "unsafe", "hazardous",
			"disaster", "crisis", "panic", "desperate",
			"severe", "serious", "alarming", "worried",
		},
		urgency: map[analyzer.Urgency]urgencyRules{
			analyzer.UrgencyCritical: {
				keywords: []string{
					"emergency", "life-threatening", "critical", "urgent",
					"immediate", "dangerous", "unsafe", "hazardous",
					"disaster", "crisis", "accident", "injury",
					"fire", "flood", "earthquake", "medical emergency",
				},
				multiplier: 2.0,
			},
			analyzer.UrgencyHigh: {
				keywords: []string{
					"important", "serious", "severe", "significant",
					"major", "alarming", "concerning", "broken",
					"failed", "outage", "disruption",
				},
				multiplier: 1.5,
			},
			analyzer.UrgencyMedium: {
				keywords: []string{
					"issue", "problem", "concern", "inconvenience",
					"delay", "slow", "inefficient", "improvement",
				},
				multiplier: 1.0,
			},
			analyzer.UrgencyLow: {
				keywords: []string{
					"suggestion", "feedback", "comment", "observation",
					"minor", "small", "slight", "consider", "maybe", "possibly",
				},
				multiplier: 0.5,
			},
		},
		timeSensitive: []string{
			"as soon as possible", "immediately", "right now",
			"today", "this week", "urgently needed",
		},
		escalation: []string{
			"multiple times", "repeatedly", "still not", "ongoing",
			"continues to", "keeps happening", "persists",
		},
	}
}

func (a *Analyzer) ID() string { return analyzerID }

func (a *Analyzer) Axes() []analyzer.Axis {
	return []analyzer.Axis{analyzer.AxisSentiment, analyzer.AxisUrgency}
}

func (a *Analyzer) Health() analyzer.Health {
	return analyzer.Health{Available: true}
}

// Analyze scores sentiment and urgency for the input text.
func (a *Analyzer) Analyze(ctx context.Context, in analyzer.Input) analyzer.Result {
	return analyzer.Guard(analyzerID, func() analyzer.Result {
		if err := ctx.Err(); err != nil {
			return analyzer.DegradedResult(analyzerID, analyzer.ErrAdapterTimeout)
		}
		in = in.Truncated()
		text := strings.ToLower(in.Text)

		sentScores, sentScore, sentConf, frustration := a.scoreSentiment(text)
		urgScores, urgScore, urgConf := a.scoreUrgency(text, in.Context)
		intensity := a.emotionalIntensity(text, in.Text)

		return analyzer.Result{
			AnalyzerID: analyzerID,
			Confidence: min(sentConf, urgConf),
			Scores: map[analyzer.Axis]map[string]float64{
				analyzer.AxisSentiment: sentScores,
				analyzer.AxisUrgency:   urgScores,
			},
			Metrics: map[string]float64{
				MetricSentimentScore:     sentScore,
				MetricUrgencyScore:       urgScore,
				MetricEmotionalIntensity: intensity,
				MetricFrustration:        frustration,
			},
		}
	})
}

// scoreSentiment counts weighted lexicon hits and maps the polarity onto
// positive/negative/neutral label scores.
func (a *Analyzer) scoreSentiment(text string) (scores map[string]float64, sentimentScore, confidence, frustration float64) {
	var pos, neg float64
	var hits int
	for _, w := range a.positive {
		if strings.Contains(text, w) {
			pos += 1.0
			hits++
		}
	}
	for _, w := range a.negative {
		if strings.Contains(text, w) {
			neg += 1.2
			hits++
			frustration += 0.2
		}
	}
	for _, w := range a.urgentNegative {
		if strings.Contains(text, w) {
			neg += 1.5
			hits++
		}
	}
	for _, phrase := range a.escalation {
		if strings.Contains(text, phrase) {
			frustration += 0.3
		}
	}
	frustration = analyzer.Clamp01(frustration)

	if pos+neg == 0 {
		return map[string]float64{
			string(analyzer.SentimentPositive): 0,
			string(analyzer.SentimentNegative): 0,
			string(analyzer.SentimentNeutral):  0.6,
		}, 0.5, 0.5, frustration
	}

	polarity := (pos - neg) / (pos + neg) // [-1,1]
	scores = map[string]float64{
		string(analyzer.SentimentPositive): analyzer.Clamp01(polarity),
		string(analyzer.SentimentNegative): analyzer.Clamp01(-polarity),
		string(analyzer.SentimentNeutral):  analyzer.Clamp01(1 - abs(polarity)),
	}
	confidence = analyzer.Clamp01(0.5 + 0.1*float64(hits))
	if confidence > 0.95 {
		confidence = 0.95
	}
	return scores, analyzer.Clamp01((polarity + 1) / 2), confidence, frustration
}

// scoreUrgency scores each urgency level from its indicator table, applies
// time-sensitivity boosters, and derives a normalized urgency score. A small
// medium baseline keeps indicator-free text from collapsing to LOW.
func (a *Analyzer) scoreUrgency(text string, ctx map[string]any) (scores map[string]float64, urgencyScore, confidence float64) {
	raw := map[analyzer.Urgency]float64{analyzer.UrgencyMedium: 0.3}
	hits := 0
	for level, rules := range a.urgency {
		for _, kw := range rules.keywords {
			if strings.Contains(text, kw) {
				raw[level] += 0.3 * rules.multiplier
				hits++
			}
		}
	}
	for _, phrase := range a.timeSensitive {
		if strings.Contains(text, phrase) {
			raw[analyzer.UrgencyCritical] += 0.3
			raw[analyzer.UrgencyHigh] += 0.2
		}
	}
	for _, phrase := range a.escalation {
		if strings.Contains(text, phrase) {
			raw[analyzer.UrgencyHigh] += 0.2
		}
	}
	if hint, ok := ctx["urgency_hint"].(string); ok && hint != "" {
		raw[analyzer.ParseUrgency(hint)] += 0.5
	}

	scores = make(map[string]float64, len(analyzer.Urgencies))
	top := 0.0
	for _, level := range analyzer.Urgencies {
		s := analyzer.Clamp01(raw[level])
		scores[string(level)] = s
		if s > top {
			top = s
		}
	}
	confidence = analyzer.Clamp01(0.4 + 0.15*float64(hits))
	if confidence > 0.95 {
		confidence = 0.95
	}
	return scores, top, confidence
}

// emotionalIntensity estimates citizen distress from urgent wording,
// punctuation and shouting.
func (a *Analyzer) emotionalIntensity(lower, original string) float64 {
	var intensity float64
	for _, w := range a.urgentNegative {
		if strings.Contains(lower, w) {
			intensity += 0.25
		}
	}
	intensity += 0.1 * float64(strings.Count(original, "!"))
	if upper := upperRatio(original); upper > 0.5 && len(original) > 10 {
		intensity += 0.2
	}
	return analyzer.Clamp01(intensity)
}

func upperRatio(s string) float64 {
	var letters, upper int
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			letters++
			upper++
		case r >= 'a' && r <= 'z':
			letters++
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
