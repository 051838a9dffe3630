// Copyright 2026 The PublicBridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package priority derives a bounded priority score and a recommended action
// from a combined analysis. Pure functions over value inputs; no clock, no
// I/O, no stored state, so identical inputs always produce identical outputs.
package priority

import "github.com/Bouric0076/publicbridge-core/internal/analyzer"

// Action is the processing track recommended for a report.
type Action string

const (
	ActionManualReview      Action = "manual_review_required"
	ActionEmergencyResponse Action = "immediate_emergency_response"
	ActionFastTrack         Action = "fast_track_processing"
	ActionStandard          Action = "standard_processing"
	ActionRoutine           Action = "routine_processing"
)

// ReviewThreshold is the confidence floor below which a report always goes to
// manual review, regardless of its priority score.
const ReviewThreshold = 0.6

// Weights are the blend coefficients of the priority formula. They are
// configuration, not constants; Default() carries the stock values.
type Weights struct {
	Urgency    float64 `yaml:"urgency" json:"urgency"`
	Category   float64 `yaml:"category" json:"category"`
	Confidence float64 `yaml:"confidence" json:"confidence"`
	Emotional  float64 `yaml:"emotional" json:"emotional"`
}

// Default returns the stock priority weights.
func Default() Weights {
	return Weights{
		Urgency:    0.4,
		Category:   0.3,
		Confidence: 0.2,
		Emotional:  0.1,
	}
}

var urgencyWeights = map[analyzer.Urgency]float64{
	analyzer.UrgencyCritical: 1.0,
	analyzer.UrgencyHigh:     0.8,
	analyzer.UrgencyMedium:   0.5,
	analyzer.UrgencyLow:      0.2,
}

var categoryWeights = map[analyzer.Category]float64{
	analyzer.CategoryEmergency:          1.0,
	analyzer.CategoryPublicSafety:       0.9,
	analyzer.CategoryHealthcare:         0.85,
	analyzer.CategoryCorruption:         0.8,
	analyzer.CategoryInfrastructure:     0.7,
	analyzer.CategoryUtilities:          0.7,
	analyzer.CategoryEnvironment:        0.6,
	analyzer.CategoryTransportation:     0.6,
	analyzer.CategoryEducation:          0.5,
	analyzer.CategoryGovernmentServices: 0.5,
	analyzer.CategoryGeneral:            0.3,
}

// UrgencyWeight returns the base weight for an urgency level, 0.5 for unknown
// levels.
func UrgencyWeight(u analyzer.Urgency) float64 {
	if w, ok := urgencyWeights[u]; ok {
		return w
	}
	return 0.5
}

// CategoryWeight returns the civic importance weight for a category, 0.5 for
// unknown categories.
func CategoryWeight(c analyzer.Category) float64 {
	if w, ok := categoryWeights[c]; ok {
		return w
	}
	return 0.5
}

// Score computes the priority score in [0,1] for a classified report.
// Emotional intensity acts as a boost on top of the weighted blend, so
// citizen distress can only raise priority, never lower it.
func (w Weights) Score(category analyzer.Category, urgency analyzer.Urgency, confidence, emotionalIntensity float64) float64 {
	score := UrgencyWeight(urgency)*w.Urgency +
		CategoryWeight(category)*w.Category +
		analyzer.Clamp01(confidence)*w.Confidence
	score += analyzer.Clamp01(emotionalIntensity) * w.Emotional
	return analyzer.Clamp01(score)
}

// Recommend maps a scored report onto its processing track. The ladder is
// ordered: low confidence always wins, then critical urgency, then the
// priority tiers.
func Recommend(urgency analyzer.Urgency, priorityScore, confidence float64) Action {
	if confidence < ReviewThreshold {
		return ActionManualReview
	}
	if urgency == analyzer.UrgencyCritical {
		return ActionEmergencyResponse
	}
	if priorityScore >= 0.8 && urgency == analyzer.UrgencyHigh {
		return ActionFastTrack
	}
	if priorityScore >= 0.6 {
		return ActionStandard
	}
	return ActionRoutine
}
