// Copyright 2026 The PublicBridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package routing

import (
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/Bouric0076/publicbridge-core/internal/analyzer"
)

// Request is one routing question for a classified report.
type Request struct {
	Category analyzer.Category `json:"category"`
	Urgency  analyzer.Urgency  `json:"urgency"`
	Location string            `json:"location,omitempty"`
}

// Decision is the routing answer. Route never fails: when nothing matches the
// category the default department is assigned at low confidence.
type Decision struct {
	DepartmentID           string   `json:"department_id"`
	DepartmentName         string   `json:"department_name"`
	Confidence             float64  `json:"confidence"`
	Reason                 string   `json:"routing_reason"`
	EstimatedResponseHours float64  `json:"estimated_response_time"`
	EscalationPath         []string `json:"escalation_path"`
	Alternatives           []string `json:"alternative_departments"`
	PriorityAdjustment     string   `json:"priority_adjustment"`
}

// Priority adjustment verdicts carried on a Decision.
const (
	AdjustBoost    = "boost"
	AdjustMaintain = "maintain"
	AdjustReduce   = "reduce"
)

// Engine scores directory candidates and produces routing decisions.
type Engine struct {
	dir *Directory
}

// NewEngine builds an engine over the given directory.
func NewEngine(dir *Directory) *Engine {
	return &Engine{dir: dir}
}

// Directory exposes the engine's backing directory.
func (e *Engine) Directory() *Directory { return e.dir }

type scored struct {
	p     Profile
	score float64
}

// Route selects the department for a report. Candidates are departments with
// expertise for the category; when none match, the default department is
// assigned with the fallback confidence. The candidate set is never empty.
func (e *Engine) Route(req Request) Decision {
	all := e.dir.Snapshot()
	if len(all) == 0 {
		// Empty directory: synthesize a bare default decision so callers
		// still get a well-formed answer.
		return Decision{
			DepartmentID:       DefaultDepartmentID,
			DepartmentName:     "General Administration",
			Confidence:         0.3,
			Reason:             "Fallback: no departments registered",
			EscalationPath:     []string{DefaultDepartmentID},
			PriorityAdjustment: AdjustMaintain,
		}
	}

	candidates := make([]Profile, 0, len(all))
	for _, p := range all {
		if p.Covers(req.Category) {
			candidates = append(candidates, p)
		}
	}
	fellBack := false
	if len(candidates) == 0 {
		fellBack = true
		if p, ok := e.dir.Get(DefaultDepartmentID); ok {
			candidates = append(candidates, p)
		} else {
			candidates = append(candidates, all[0])
		}
	}

	ranked := e.rank(candidates, all, req.Urgency)
	best := ranked[0]

	confidence := e.confidence(ranked, fellBack)
	decision := Decision{
		DepartmentID:           best.p.ID,
		DepartmentName:         best.p.Name,
		Confidence:             confidence,
		Reason:                 e.reason(best.p, best.score, req.Urgency, fellBack),
		EstimatedResponseHours: estimateResponse(best.p, req.Urgency),
		EscalationPath:         escalationPath(best.p.ID, req.Urgency),
		Alternatives:           alternatives(ranked),
		PriorityAdjustment:     adjustment(best.score, req.Urgency),
	}

	log.WithFields(log.Fields{
		"category":   req.Category,
		"urgency":    req.Urgency,
		"department": decision.DepartmentID,
		"confidence": decision.Confidence,
		"fallback":   fellBack,
	}).Debug("report routed")
	return decision
}

// Override rebuilds a decision around an operator-pinned department. The
// confidence tier is kept, but everything derived from the primary is
// recomputed so the decision stays internally consistent: the escalation
// path starts at the pinned department, the response estimate reflects its
// workload, and the pinned department never lists itself as an alternative.
func (e *Engine) Override(d Decision, p Profile, urgency analyzer.Urgency, reason string) Decision {
	d.DepartmentID = p.ID
	d.DepartmentName = p.Name
	d.Reason = reason
	d.EstimatedResponseHours = estimateResponse(p, urgency)
	d.EscalationPath = escalationPath(p.ID, urgency)
	var alts []string
	for _, id := range d.Alternatives {
		if id != p.ID {
			alts = append(alts, id)
		}
	}
	d.Alternatives = alts
	return d
}

// rank scores every candidate and sorts descending. The sort is stable over
// registration order, so exact score ties resolve deterministically.
func (e *Engine) rank(candidates, all []Profile, urgency analyzer.Urgency) []scored {
	maxWorkload, maxResponse, avgStaff := directoryStats(all)

	ranked := make([]scored, len(candidates))
	for i, p := range candidates {
		ranked[i] = scored{p: p, score: departmentScore(p, urgency, maxWorkload, maxResponse, avgStaff)}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	return ranked
}

func directoryStats(all []Profile) (maxWorkload, maxResponse, avgStaff float64) {
	var staffSum float64
	for _, p := range all {
		if float64(p.Workload) > maxWorkload {
			maxWorkload = float64(p.Workload)
		}
		if p.ResponseHours > maxResponse {
			maxResponse = p.ResponseHours
		}
		staffSum += float64(p.Staff)
	}
	avgStaff = staffSum / float64(len(all))
	return maxWorkload, maxResponse, avgStaff
}

// departmentScore blends workload headroom, track record, responsiveness,
// staffing and urgency fit into a single [0,1] score.
func departmentScore(p Profile, urgency analyzer.Urgency, maxWorkload, maxResponse, avgStaff float64) float64 {
	var score float64
	if maxWorkload > 0 {
		score += (1 - float64(p.Workload)/maxWorkload) * 0.25
	} else {
		score += 0.25
	}
	score += p.SuccessRate * 0.20
	if maxResponse > 0 {
		score += (1 - p.ResponseHours/maxResponse) * 0.20
	} else {
		score += 0.20
	}
	if avgStaff > 0 {
		score += minF(float64(p.Staff)/avgStaff, 1.0) * 0.15
	}
	score += urgencyMatch(p.EscalationLevel, urgency) * 0.20
	return score
}

var routingUrgencyWeights = map[analyzer.Urgency]float64{
	analyzer.UrgencyCritical: 1.0,
	analyzer.UrgencyHigh:     0.8,
	analyzer.UrgencyMedium:   0.6,
	analyzer.UrgencyLow:      0.4,
}

// urgencyMatch favors high-escalation departments for urgent reports.
func urgencyMatch(escalationLevel int, urgency analyzer.Urgency) float64 {
	w, ok := routingUrgencyWeights[urgency]
	if !ok {
		w = 0.5
	}
	return minF(float64(escalationLevel)/3.0+w, 1.0)
}

// confidence maps the ranking onto the fixed decision-confidence tiers.
func (e *Engine) confidence(ranked []scored, fellBack bool) float64 {
	if fellBack {
		return 0.3
	}
	best := ranked[0].score
	gap := best
	if len(ranked) > 1 {
		gap = best - ranked[1].score
	}
	switch {
	case best >= 0.8 && gap >= 0.2:
		return 0.9
	case best >= 0.6 && gap >= 0.1:
		return 0.7
	default:
		return 0.3
	}
}

func (e *Engine) reason(p Profile, score float64, urgency analyzer.Urgency, fellBack bool) string {
	var reasons []string
	if fellBack {
		reasons = append(reasons, "Fallback: no department covers this category")
	}
	if urgency == analyzer.UrgencyCritical {
		reasons = append(reasons, "Critical urgency requires immediate attention")
	}
	switch {
	case score >= 0.8:
		reasons = append(reasons, "Excellent department match")
	case score >= 0.6:
		reasons = append(reasons, "Good department expertise match")
	default:
		reasons = append(reasons, "Best available department")
	}
	if p.SuccessRate >= 0.9 {
		reasons = append(reasons, "High success rate")
	}
	if p.ResponseHours <= 12 {
		reasons = append(reasons, "Fast response capability")
	}
	return strings.Join(reasons, ", ")
}

var urgencyResponseFactors = map[analyzer.Urgency]float64{
	analyzer.UrgencyCritical: 0.3,
	analyzer.UrgencyHigh:     0.7,
	analyzer.UrgencyMedium:   1.0,
	analyzer.UrgencyLow:      1.2,
}

// estimateResponse scales the department's average response time by its
// current workload and the report's urgency.
func estimateResponse(p Profile, urgency analyzer.Urgency) float64 {
	factor, ok := urgencyResponseFactors[urgency]
	if !ok {
		factor = 1.0
	}
	workloadFactor := 1.0 + float64(p.Workload)/100.0
	return p.ResponseHours * workloadFactor * factor
}

// escalationPath starts at the primary department. Critical reports escalate
// through emergency services to the executive tier; high urgency escalates to
// general administration. Duplicate tiers are collapsed.
func escalationPath(primaryID string, urgency analyzer.Urgency) []string {
	path := []string{primaryID}
	appendTier := func(id string) {
		for _, existing := range path {
			if existing == id {
				return
			}
		}
		path = append(path, id)
	}
	switch urgency {
	case analyzer.UrgencyCritical:
		appendTier(EmergencyServicesID)
		appendTier(MayorOfficeID)
	case analyzer.UrgencyHigh:
		appendTier(DefaultDepartmentID)
	}
	return path
}

// alternatives lists up to three runner-up department ids.
func alternatives(ranked []scored) []string {
	var out []string
	for _, s := range ranked[1:] {
		out = append(out, s.p.ID)
		if len(out) == 3 {
			break
		}
	}
	return out
}

func adjustment(score float64, urgency analyzer.Urgency) string {
	switch {
	case urgency == analyzer.UrgencyCritical || score >= 0.9:
		return AdjustBoost
	case urgency == analyzer.UrgencyLow && score <= 0.5:
		return AdjustReduce
	default:
		return AdjustMaintain
	}
}
