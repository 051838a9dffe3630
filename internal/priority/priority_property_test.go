package priority

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/Bouric0076/publicbridge-core/internal/analyzer"
)

func TestPriorityProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	w := Default()

	genCategory := gen.OneConstOf(
		analyzer.CategoryInfrastructure,
		analyzer.CategoryHealthcare,
		analyzer.CategoryPublicSafety,
		analyzer.CategoryEducation,
		analyzer.CategoryEnvironment,
		analyzer.CategoryCorruption,
		analyzer.CategoryTransportation,
		analyzer.CategoryUtilities,
		analyzer.CategoryGovernmentServices,
		analyzer.CategoryEmergency,
		analyzer.CategoryGeneral,
	)
	genUrgency := gen.OneConstOf(
		analyzer.UrgencyLow,
		analyzer.UrgencyMedium,
		analyzer.UrgencyHigh,
		analyzer.UrgencyCritical,
	)

	properties.Property("score stays within [0,1]", prop.ForAll(
		func(c analyzer.Category, u analyzer.Urgency, confidence, emotional float64) bool {
			s := w.Score(c, u, confidence, emotional)
			return s >= 0 && s <= 1
		},
		genCategory,
		genUrgency,
		gen.Float64Range(-1, 2),
		gen.Float64Range(-1, 2),
	))

	properties.Property("higher urgency never lowers the score", prop.ForAll(
		func(c analyzer.Category, confidence, emotional float64) bool {
			low := w.Score(c, analyzer.UrgencyLow, confidence, emotional)
			medium := w.Score(c, analyzer.UrgencyMedium, confidence, emotional)
			high := w.Score(c, analyzer.UrgencyHigh, confidence, emotional)
			critical := w.Score(c, analyzer.UrgencyCritical, confidence, emotional)
			return low <= medium && medium <= high && high <= critical
		},
		genCategory,
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
	))

	properties.Property("sub-threshold confidence always recommends manual review", prop.ForAll(
		func(u analyzer.Urgency, score float64, confidence float64) bool {
			if confidence >= ReviewThreshold {
				return true
			}
			return Recommend(u, score, confidence) == ActionManualReview
		},
		genUrgency,
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}
