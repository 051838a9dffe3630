// Copyright 2026 The PublicBridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package analyzer defines the uniform capability contract shared by every
// report analyzer backend (remote LLM, keyword rules, sentiment lexicons).
// The ensemble treats all implementations identically through this contract.
package analyzer

import "strings"

// Category is the civic category a citizen report is classified into.
type Category string

const (
	CategoryInfrastructure     Category = "infrastructure"
	CategoryHealthcare         Category = "healthcare"
	CategoryPublicSafety       Category = "public_safety"
	CategoryEducation          Category = "education"
	CategoryEnvironment        Category = "environment"
	CategoryCorruption         Category = "corruption"
	CategoryTransportation     Category = "transportation"
	CategoryUtilities          Category = "utilities"
	CategoryGovernmentServices Category = "government_services"
	CategoryEmergency          Category = "emergency"
	CategoryGeneral            Category = "general"
)

// Categories lists all categories in canonical order. The order is load-bearing:
// ties in ensemble voting resolve to the earliest label in this list.
var Categories = []Category{
	CategoryInfrastructure,
	CategoryHealthcare,
	CategoryPublicSafety,
	CategoryEducation,
	CategoryEnvironment,
	CategoryCorruption,
	CategoryTransportation,
	CategoryUtilities,
	CategoryGovernmentServices,
	CategoryEmergency,
	CategoryGeneral,
}

// ParseCategory normalizes a string into a known Category.
// Unknown or empty values map to CategoryGeneral, never to an error.
func ParseCategory(s string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return known
		}
	}
	return CategoryGeneral
}

// Urgency is the urgency level detected in a report.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Urgencies lists urgency levels in canonical (ascending) order.
var Urgencies = []Urgency{UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical}

// ParseUrgency normalizes a string into a known Urgency, defaulting to medium.
func ParseUrgency(s string) Urgency {
	u := Urgency(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Urgencies {
		if u == known {
			return known
		}
	}
	return UrgencyMedium
}

// Sentiment is the overall sentiment of a report or chat message.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Sentiments lists sentiment labels in canonical order.
var Sentiments = []Sentiment{SentimentPositive, SentimentNegative, SentimentNeutral}

// Axis identifies one dimension of analysis an adapter can produce scores for.
type Axis string

const (
	AxisCategory  Axis = "category"
	AxisSentiment Axis = "sentiment"
	AxisUrgency   Axis = "urgency"
	AxisIntent    Axis = "intent"
)

// AxisLabels returns the canonical label universe for an axis, in tie-break
// order. Intent has an open label set and returns nil.
func AxisLabels(axis Axis) []string {
	switch axis {
	case AxisCategory:
		labels := make([]string, len(Categories))
		for i, c := range Categories {
			labels[i] = string(c)
		}
		return labels
	case AxisSentiment:
		labels := make([]string, len(Sentiments))
		for i, s := range Sentiments {
			labels[i] = string(s)
		}
		return labels
	case AxisUrgency:
		labels := make([]string, len(Urgencies))
		for i, u := range Urgencies {
			labels[i] = string(u)
		}
		return labels
	default:
		return nil
	}
}

// Intent labels recognized by the chat pipeline. The set is open: adapters may
// emit others, but these are the ones the response synthesizer understands.
const (
	IntentGreeting      = "greeting"
	IntentReportHelp    = "report_help"
	IntentStatusInquiry = "status_inquiry"
	IntentCivicInfo     = "civic_info"
	IntentComplaint     = "complaint"
	IntentEmergency     = "emergency"
	IntentAppreciation  = "appreciation"
	IntentGoodbye       = "goodbye"
	IntentGeneral       = "general"
)

// Input is the immutable payload handed to every analyzer for one call.
type Input struct {
	Text    string         `json:"text"`
	Context map[string]any `json:"context,omitempty"`
}

// MaxTextLength bounds the text an adapter has to look at. Oversized input is
// truncated rather than rejected.
const MaxTextLength = 10000

// Truncated returns the input with its text capped at MaxTextLength runes.
func (in Input) Truncated() Input {
	runes := []rune(in.Text)
	if len(runes) <= MaxTextLength {
		return in
	}
	return Input{Text: string(runes[:MaxTextLength]), Context: in.Context}
}

// Result is the outcome of one adapter invocation. It is never mutated after
// creation. A failed invocation is represented as a degraded result with zero
// confidence, never as an error or a panic escaping the adapter.
type Result struct {
	AnalyzerID string `json:"analyzer_id"`
	// Confidence is the adapter's confidence in its top answer, in [0,1].
	Confidence float64 `json:"confidence"`
	// Scores holds per-axis label scores in [0,1]. Label score sums are
	// independent signals, not a probability distribution.
	Scores map[Axis]map[string]float64 `json:"scores,omitempty"`
	// Metrics carries scalar side channels such as urgency_score,
	// emotional_intensity and sentiment_score, each in [0,1].
	Metrics map[string]float64 `json:"metrics,omitempty"`
	// Keywords are the matched terms that drove the classification.
	Keywords []string `json:"keywords,omitempty"`
	Degraded bool     `json:"degraded"`
	Error    string   `json:"error,omitempty"`
}

// Top returns the winning label and its score for an axis, iterating the
// canonical label order so the answer is deterministic. ok is false when the
// result carries no scores for the axis.
func (r Result) Top(axis Axis) (label string, score float64, ok bool) {
	scores := r.Scores[axis]
	if len(scores) == 0 {
		return "", 0, false
	}
	labels := AxisLabels(axis)
	if labels == nil {
		for l := range scores {
			labels = append(labels, l)
		}
		sortStrings(labels)
	}
	best := ""
	bestScore := -1.0
	for _, l := range labels {
		if s, present := scores[l]; present && s > bestScore {
			best, bestScore = l, s
		}
	}
	if best == "" {
		return "", 0, false
	}
	return best, bestScore, true
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

// Clamp01 bounds a score to [0,1]. Analyzer outputs use it so the invariant
// "every score field stays in [0,1]" holds regardless of backend behavior.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
