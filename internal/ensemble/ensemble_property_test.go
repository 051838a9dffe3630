package ensemble

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/Bouric0076/publicbridge-core/internal/analyzer"
	"github.com/Bouric0076/publicbridge-core/internal/analyzer/keyword"
	"github.com/Bouric0076/publicbridge-core/internal/analyzer/lexicon"
)

func TestEnsembleProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	ens := New(Default(),
		Member{Analyzer: keyword.New(), Weight: 0.6},
		Member{Analyzer: lexicon.New(), Weight: 0.4},
	)

	known := make(map[analyzer.Category]bool, len(analyzer.Categories))
	for _, c := range analyzer.Categories {
		known[c] = true
	}

	properties.Property("confidence stays within [0,1] for arbitrary text", prop.ForAll(
		func(text string) bool {
			out := ens.Analyze(context.Background(), analyzer.Input{Text: text})
			return out.Confidence >= 0 && out.Confidence <= 1
		},
		gen.AnyString(),
	))

	properties.Property("category is always a known label", prop.ForAll(
		func(text string) bool {
			out := ens.Analyze(context.Background(), analyzer.Input{Text: text})
			return known[out.Category]
		},
		gen.AnyString(),
	))

	properties.Property("signal scores stay within [0,1]", prop.ForAll(
		func(text string) bool {
			out := ens.Analyze(context.Background(), analyzer.Input{Text: text})
			if out.UrgencyScore < 0 || out.UrgencyScore > 1 {
				return false
			}
			if out.EmotionalIntensity < 0 || out.EmotionalIntensity > 1 {
				return false
			}
			return out.IntentConfidence >= 0 && out.IntentConfidence <= 1
		},
		gen.AlphaString(),
	))

	properties.Property("analysis is deterministic for the same input", prop.ForAll(
		func(text string) bool {
			first := ens.Analyze(context.Background(), analyzer.Input{Text: text})
			second := ens.Analyze(context.Background(), analyzer.Input{Text: text})
			return first.Category == second.Category &&
				first.Urgency == second.Urgency &&
				first.Intent == second.Intent &&
				first.Confidence == second.Confidence
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
