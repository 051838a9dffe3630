// Copyright 2026 The PublicBridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package keyword implements the rule-based category and intent classifier.
// It is the always-available fallback behind the remote LLM adapter: keyword
// matching with position weighting, regex pattern recognition, and contextual
// boosts from report metadata.
package keyword

import (
	"context"
	"regexp"
	"strings"

	"github.com/Bouric0076/publicbridge-core/internal/analyzer"
)

const analyzerID = "keyword-classifier"

// Blend weights for the three classification passes.
var blend = struct {
	keyword    float64
	pattern    float64
	contextual float64
}{0.40, 0.35, 0.25}

type categoryRules struct {
	keywords []string
	patterns []*regexp.Regexp
	weight   float64
}

// Classifier scores report text against per-category keyword and pattern
// tables. It is stateless after construction and safe for concurrent use.
type Classifier struct {
	rules   map[analyzer.Category]categoryRules
	intents map[string][]string
}

// New builds a Classifier with the built-in civic rule tables.
func New() *Classifier {
	return &Classifier{rules: buildCategoryRules(), intents: buildIntentKeywords()}
}

func (c *Classifier) ID() string { return analyzerID }

func (c *Classifier) Axes() []analyzer.Axis {
	return []analyzer.Axis{analyzer.AxisCategory, analyzer.AxisIntent}
}

func (c *Classifier) Health() analyzer.Health {
	return analyzer.Health{Available: true}
}

// Analyze classifies the input text. Failures inside the rule tables are
// converted to a degraded result, never raised.
func (c *Classifier) Analyze(ctx context.Context, in analyzer.Input) analyzer.Result {
	return analyzer.Guard(analyzerID, func() analyzer.Result {
		if err := ctx.Err(); err != nil {
			return analyzer.DegradedResult(analyzerID, analyzer.ErrAdapterTimeout)
		}
		in = in.Truncated()
		text := strings.ToLower(in.Text)

		keywordScores := c.keywordScores(text)
		patternScores := c.patternScores(in.Text)
		contextScores := c.contextScores(text, in.Context)

		combined := make(map[string]float64, len(c.rules))
		for _, cat := range analyzer.Categories {
			score := keywordScores[cat]*blend.keyword +
				patternScores[cat]*blend.pattern +
				contextScores[cat]*blend.contextual
			combined[string(cat)] = analyzer.Clamp01(score)
		}

		intentScores := c.intentScores(text)

		res := analyzer.Result{
			AnalyzerID: analyzerID,
			Scores: map[analyzer.Axis]map[string]float64{
				analyzer.AxisCategory: combined,
				analyzer.AxisIntent:   intentScores,
			},
		}
		if top, score, ok := res.Top(analyzer.AxisCategory); ok {
			res.Confidence = score
			res.Keywords = c.matchedKeywords(text, analyzer.Category(top))
		}
		return res
	})
}

// keywordScores implements the keyword pass: each hit contributes a position
// weight (earlier mentions count more), normalized per category and scaled by
// the category weight, then max-normalized across categories.
func (c *Classifier) keywordScores(text string) map[analyzer.Category]float64 {
	scores := make(map[analyzer.Category]float64, len(c.rules))
	maxScore := 0.0
	for cat, rules := range c.rules {
		var score float64
		for _, kw := range rules.keywords {
			if idx := strings.Index(text, kw); idx >= 0 {
				score += 1.0 / float64(idx+1)
			}
		}
		if len(rules.keywords) > 0 {
			score = score / float64(len(rules.keywords)) * rules.weight
		}
		scores[cat] = score
		if score > maxScore {
			maxScore = score
		}
	}
	if maxScore > 0 {
		for cat := range scores {
			scores[cat] /= maxScore
		}
	}
	return scores
}

// patternScores counts regex matches per category, 0.3 per match scaled by the
// category weight, capped at 1.0.
func (c *Classifier) patternScores(text string) map[analyzer.Category]float64 {
	scores := make(map[analyzer.Category]float64, len(c.rules))
	for cat, rules := range c.rules {
		matches := 0
		for _, p := range rules.patterns {
			matches += len(p.FindAllStringIndex(text, -1))
		}
		scores[cat] = analyzer.Clamp01(float64(matches) * 0.3 * rules.weight)
	}
	return scores
}

// contextScores folds in report metadata: location type, caller-provided
// category hints, and emergency wording.
func (c *Classifier) contextScores(text string, ctx map[string]any) map[analyzer.Category]float64 {
	scores := make(map[analyzer.Category]float64)

	if ctx != nil {
		if loc, ok := ctx["location_type"].(string); ok {
			for cat, boost := range locationBoosts(loc) {
				scores[cat] += boost
			}
		}
		if hint, ok := ctx["category_hint"].(string); ok && hint != "" {
			scores[analyzer.ParseCategory(hint)] += 0.5
		}
	}

	for _, kw := range emergencyContextKeywords {
		if strings.Contains(text, kw) {
			scores[analyzer.CategoryEmergency] += 0.4
			break
		}
	}

	for cat, s := range scores {
		scores[cat] = analyzer.Clamp01(s)
	}
	return scores
}

func (c *Classifier) intentScores(text string) map[string]float64 {
	scores := make(map[string]float64, len(c.intents))
	for intent, keywords := range c.intents {
		hits := 0
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				hits++
			}
		}
		if hits > 0 {
			scores[intent] = analyzer.Clamp01(0.5 + 0.2*float64(hits))
		}
	}
	if len(scores) == 0 {
		scores[analyzer.IntentGeneral] = 0.4
	}
	return scores
}

func (c *Classifier) matchedKeywords(text string, cat analyzer.Category) []string {
	rules, ok := c.rules[cat]
	if !ok {
		return nil
	}
	var matched []string
	for _, kw := range rules.keywords {
		if strings.Contains(text, kw) {
			matched = append(matched, kw)
			if len(matched) == 5 {
				break
			}
		}
	}
	return matched
}

func locationBoosts(locationType string) map[analyzer.Category]float64 {
	switch locationType {
	case "hospital":
		return map[analyzer.Category]float64{analyzer.CategoryHealthcare: 0.8}
	case "school":
		return map[analyzer.Category]float64{analyzer.CategoryEducation: 0.8}
	case "police_station":
		return map[analyzer.Category]float64{analyzer.CategoryPublicSafety: 0.8}
	case "government_office":
		return map[analyzer.Category]float64{analyzer.CategoryGovernmentServices: 0.6}
	case "residential_area":
		return map[analyzer.Category]float64{
			analyzer.CategoryInfrastructure: 0.4,
			analyzer.CategoryUtilities:      0.3,
		}
	case "commercial_area":
		return map[analyzer.Category]float64{
			analyzer.CategoryInfrastructure: 0.5,
			analyzer.CategoryTransportation: 0.4,
		}
	default:
		return nil
	}
}

var emergencyContextKeywords = []string{
	"emergency", "urgent", "immediate", "critical", "life-threatening",
}

func buildCategoryRules() map[analyzer.Category]categoryRules {
	return map[analyzer.Category]categoryRules{
		analyzer.CategoryInfrastructure: {
			keywords: []string{
				"road", "bridge", "building", "construction", "pothole",
				"sidewalk", "street", "highway", "infrastructure",
				"drainage", "sewer", "water pipe", "maintenance",
				"repair", "damaged", "broken",
			},
			patterns: compile(
				`\b(road|bridge|building)\s+(repair|maintenance|construction)\b`,
				`\b(damaged|broken|pothole|crack)\s+(road|bridge|sidewalk)\b`,
				`\binfrastructure\s+(issue|problem|concern)\b`,
			),
			weight: 1.0,
		},
		analyzer.CategoryHealthcare: {
			keywords: []string{
				"hospital", "clinic", "doctor", "nurse", "medical",
				"health", "sick", "disease", "medicine", "treatment",
				"patient", "ambulance", "healthcare", "vaccine", "epidemic",
			},
			patterns: compile(
				`\b(hospital|clinic)\s+(issue|problem|concern)\b`,
				`\b(medical|healthcare)\s+(service|treatment)\b`,
				`\b(doctor|nurse|staff)\s+(shortage|unavailable)\b`,
			),
			weight: 1.2,
		},
		analyzer.CategoryPublicSafety: {
			keywords: []string{
				"police", "crime", "safety", "security", "accident",
				"theft", "robbery", "violence", "fire", "danger",
				"threat", "attack", "assault",
			},
			patterns: compile(
				`\b(police|crime|safety)\s+(issue|concern|problem)\b`,
				`\b(accident|emergency|fire)\s+(incident|situation)\b`,
				`\b(dangerous|unsafe|threat)\s+(area|location|situation)\b`,
			),
			weight: 1.5,
		},
		analyzer.CategoryEducation: {
			keywords: []string{
				"school", "teacher", "student", "education", "university",
				"college", "classroom", "academic", "curriculum",
				"tuition", "scholarship", "textbook",
			},
			patterns: compile(
				`\b(school|university|college)\s+(issue|problem|concern)\b`,
				`\b(teacher|student|education)\s+(shortage|quality)\b`,
				`\b(classroom|facility)\s+(condition|maintenance)\b`,
			),
			weight: 1.0,
		},
		analyzer.CategoryEnvironment: {
			keywords: []string{
				"pollution", "waste", "garbage", "environment", "contamination",
				"toxic", "chemical", "smoke", "noise", "deforestation", "climate",
			},
			patterns: compile(
				`\b(air|water)\s+(pollution|contamination)\b`,
				`\b(waste|garbage)\s+(disposal|management)\b`,
				`\b(environmental|climate)\s+(issue|concern)\b`,
			),
			weight: 1.1,
		},
		analyzer.CategoryCorruption: {
			keywords: []string{
				"corruption", "bribe", "bribery", "fraud", "embezzlement",
				"kickback", "extortion", "misuse", "abuse", "unethical",
				"transparency", "accountability",
			},
			patterns: compile(
				`\b(corruption|bribe|fraud)\s+(allegation|report)\b`,
				`\b(embezzlement|kickback|extortion)\s+incident\b`,
				`\b(misuse|abuse)\s+of\s+(power|funds|authority)\b`,
			),
			weight: 1.3,
		},
		analyzer.CategoryTransportation: {
			keywords: []string{
				"bus", "train", "metro", "transportation", "traffic",
				"congestion", "parking", "vehicle", "route", "schedule", "delay",
			},
			patterns: compile(
				`\b(bus|train|metro)\s+(delay|cancellation|issue)\b`,
				`\b(traffic|congestion|parking)\s+(problem|issue)\b`,
				`\b(transportation|public\s+transport)\s+service\b`,
			),
			weight: 1.0,
		},
		analyzer.CategoryUtilities: {
			keywords: []string{
				"electricity", "power", "water", "gas", "internet",
				"utility", "outage", "disconnection", "billing", "supply", "grid",
			},
			patterns: compile(
				`\b(electricity|power|water)\s+(outage|disconnection)\b`,
				`\b(utility|service)\s+(issue|problem|billing)\b`,
				`\b(internet|network)\s+(connection|speed|issue)\b`,
			),
			weight: 1.0,
		},
		analyzer.CategoryEmergency: {
			keywords: []string{
				"emergency", "urgent", "immediate", "critical",
				"life-threatening", "disaster", "flood", "earthquake",
				"fire", "medical emergency", "injury",
			},
			patterns: compile(
				`\b(emergency|urgent|immediate|critical)\b`,
				`\b(life-threatening|disaster|flood|earthquake)\b`,
				`\b(medical\s+emergency|fire|accident)\b`,
			),
			weight: 2.0,
		},
	}
}

func buildIntentKeywords() map[string][]string {
	return map[string][]string{
		analyzer.IntentGreeting: {
			"hello", "hi ", "hey", "good morning", "good afternoon", "good evening",
		},
		analyzer.IntentReportHelp: {
			"report", "submit", "file a", "complain about", "how do i report", "raise an issue",
		},
		analyzer.IntentStatusInquiry: {
			"status", "progress", "update on", "follow up", "track", "any news",
		},
		analyzer.IntentCivicInfo: {
			"service", "county", "government", "office hours", "where can i", "information",
		},
		analyzer.IntentComplaint: {
			"frustrated", "angry", "disappointed", "unacceptable", "terrible", "still not",
		},
		analyzer.IntentEmergency: {
			"emergency", "urgent", "help now", "immediately", "life-threatening", "danger",
		},
		analyzer.IntentAppreciation: {
			"thank", "thanks", "appreciate", "grateful", "well done",
		},
		analyzer.IntentGoodbye: {
			"bye", "goodbye", "see you", "that's all", "that is all",
		},
	}
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(`(?i)`+p))
	}
	return out
}
