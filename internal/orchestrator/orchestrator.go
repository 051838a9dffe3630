// Copyright 2026 The PublicBridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package orchestrator composes the classification ensemble, priority
// calculator, routing engine and session manager into the two top-level
// operations: report analysis and chat turns. Every call returns a
// well-formed payload; component failures are absorbed into documented
// fallbacks and surfaced through error counters, never as hard failures.
package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/Bouric0076/publicbridge-core/internal/analyzer"
	"github.com/Bouric0076/publicbridge-core/internal/ensemble"
	"github.com/Bouric0076/publicbridge-core/internal/metrics"
	"github.com/Bouric0076/publicbridge-core/internal/priority"
	"github.com/Bouric0076/publicbridge-core/internal/routing"
	"github.com/Bouric0076/publicbridge-core/internal/routing/steering"
	"github.com/Bouric0076/publicbridge-core/internal/session"
	"github.com/Bouric0076/publicbridge-core/internal/store"
)

// Deps are the orchestrator's collaborators. Ensemble, Router and Sessions
// are required; Steering and Store are optional.
type Deps struct {
	Ensemble *ensemble.Ensemble
	Weights  priority.Weights
	Router   *routing.Engine
	Steering *steering.Engine
	Sessions *session.Manager
	Store    store.Store
	// Analyzers is the adapter list used for health reporting.
	Analyzers []analyzer.Analyzer
}

const feedbackQueueSize = 64

type feedbackTask struct {
	reportID      string
	departmentID  string
	responseHours float64
	success       bool
}

// Orchestrator is the orchestration core entry point.
type Orchestrator struct {
	ensemble  *ensemble.Ensemble
	weights   priority.Weights
	router    *routing.Engine
	steering  *steering.Engine
	sessions  *session.Manager
	store     store.Store
	analyzers []analyzer.Analyzer

	analysisErrors atomic.Int64
	chatErrors     atomic.Int64
	routingErrors  atomic.Int64

	feedback  chan feedbackTask
	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New builds the orchestrator and starts its feedback workers.
func New(deps Deps) *Orchestrator {
	o := &Orchestrator{
		ensemble:  deps.Ensemble,
		weights:   deps.Weights,
		router:    deps.Router,
		steering:  deps.Steering,
		sessions:  deps.Sessions,
		store:     deps.Store,
		analyzers: deps.Analyzers,
		feedback:  make(chan feedbackTask, feedbackQueueSize),
		stop:      make(chan struct{}),
	}
	if o.weights == (priority.Weights{}) {
		o.weights = priority.Default()
	}
	for i := 0; i < 2; i++ {
		o.wg.Add(1)
		go o.feedbackWorker()
	}
	return o
}

// ReportRequest is one citizen report to analyze.
type ReportRequest struct {
	Text         string `json:"text"`
	CategoryHint string `json:"category_hint,omitempty"`
	UrgencyHint  string `json:"urgency_hint,omitempty"`
	Location     string `json:"location,omitempty"`
}

// ReportAnalysis is the complete analysis of one report.
type ReportAnalysis struct {
	ReportID           string             `json:"report_id"`
	Category           analyzer.Category  `json:"category"`
	Confidence         float64            `json:"confidence"`
	Urgency            analyzer.Urgency   `json:"urgency_level"`
	UrgencyScore       float64            `json:"urgency_score"`
	Sentiment          analyzer.Sentiment `json:"sentiment"`
	EmotionalIntensity float64            `json:"emotional_intensity"`
	PriorityScore      float64            `json:"priority_score"`
	RecommendedAction  priority.Action    `json:"recommended_action"`
	Keywords           []string           `json:"keywords_found,omitempty"`
	ModelsUsed         []string           `json:"models_used,omitempty"`
	Routing            routing.Decision   `json:"routing"`
	Degraded           bool               `json:"degraded"`
	CreatedAt          time.Time          `json:"created_at"`
}

// AnalyzeReport classifies, prioritizes and routes one report. It never
// fails: a panicking component yields the documented fallback analysis and
// bumps the error counter.
func (o *Orchestrator) AnalyzeReport(ctx context.Context, req ReportRequest) (out ReportAnalysis) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			o.analysisErrors.Add(1)
			metrics.FallbackResponse("analyze_report")
			log.WithField("panic", rec).Error("report analysis failed, substituting fallback")
			out = o.fallbackAnalysis(req)
		}
	}()

	in := analyzer.Input{Text: req.Text, Context: map[string]any{}}
	if req.CategoryHint != "" {
		in.Context["category_hint"] = req.CategoryHint
	}
	if req.UrgencyHint != "" {
		in.Context["urgency_hint"] = req.UrgencyHint
	}
	if req.Location != "" {
		in.Context["location"] = req.Location
	}

	comb := o.ensemble.Analyze(ctx, in)
	if comb.Degraded {
		o.recordDegradations(comb)
	}

	score := o.weights.Score(comb.Category, comb.Urgency, comb.Confidence, comb.EmotionalIntensity)
	action := priority.Recommend(comb.Urgency, score, comb.Confidence)

	decision := o.route(routing.Request{
		Category: comb.Category,
		Urgency:  comb.Urgency,
		Location: req.Location,
	}, comb.Intent)

	out = ReportAnalysis{
		ReportID:           uuid.New().String(),
		Category:           comb.Category,
		Confidence:         comb.Confidence,
		Urgency:            comb.Urgency,
		UrgencyScore:       comb.UrgencyScore,
		Sentiment:          comb.Sentiment,
		EmotionalIntensity: comb.EmotionalIntensity,
		PriorityScore:      score,
		RecommendedAction:  action,
		Keywords:           comb.Keywords,
		ModelsUsed:         comb.Contributing,
		Routing:            decision,
		Degraded:           comb.Degraded,
		CreatedAt:          start,
	}

	o.persistReport(ctx, req, out)
	metrics.ObserveAnalysis(string(out.Category), time.Since(start))
	return out
}

// fallbackAnalysis is the statically defined payload substituted when
// analysis itself fails.
func (o *Orchestrator) fallbackAnalysis(req ReportRequest) ReportAnalysis {
	return ReportAnalysis{
		ReportID:          uuid.New().String(),
		Category:          analyzer.CategoryGeneral,
		Confidence:        0.1,
		Urgency:           analyzer.UrgencyMedium,
		UrgencyScore:      0.5,
		Sentiment:         analyzer.SentimentNeutral,
		PriorityScore:     0.5,
		RecommendedAction: priority.ActionManualReview,
		Routing: routing.Decision{
			DepartmentID:       routing.DefaultDepartmentID,
			DepartmentName:     "General Administration",
			Confidence:         0.3,
			Reason:             "Fallback: analysis unavailable",
			EscalationPath:     []string{routing.DefaultDepartmentID},
			PriorityAdjustment: routing.AdjustMaintain,
		},
		Degraded:  true,
		CreatedAt: time.Now(),
	}
}

// route runs the engine and applies any matching steering override.
func (o *Orchestrator) route(req routing.Request, intent string) routing.Decision {
	decision := o.router.Route(req)

	if o.steering != nil {
		rule, ok := o.steering.Match(steering.Context{
			Category: string(req.Category),
			Urgency:  string(req.Urgency),
			Location: req.Location,
			Intent:   intent,
			Hour:     time.Now().Hour(),
		})
		if ok && rule.Department != decision.DepartmentID {
			if p, found := o.router.Directory().Get(rule.Department); found {
				log.WithFields(log.Fields{
					"rule":       rule.Name,
					"department": rule.Department,
				}).Info("steering rule overrides routing decision")
				decision = o.router.Override(decision, p, req.Urgency, steeringReason(rule))
			} else {
				log.Warnf("Steering rule %s targets unknown department %s, ignoring", rule.Name, rule.Department)
			}
		}
	}

	metrics.RoutingDecision(decision.DepartmentID)
	return decision
}

func steeringReason(rule steering.Rule) string {
	if rule.Reason != "" {
		return rule.Reason
	}
	return "Operator steering rule: " + rule.Name
}

// RouteReport answers a standalone routing question.
func (o *Orchestrator) RouteReport(req routing.Request) routing.Decision {
	return o.route(req, "")
}

func (o *Orchestrator) persistReport(ctx context.Context, req ReportRequest, a ReportAnalysis) {
	if o.store == nil {
		return
	}
	rec := store.ReportRecord{
		ID:                 a.ReportID,
		Text:               req.Text,
		Category:           string(a.Category),
		Urgency:            string(a.Urgency),
		PriorityScore:      a.PriorityScore,
		Confidence:         a.Confidence,
		RecommendedAction:  string(a.RecommendedAction),
		AssignedDepartment: a.Routing.DepartmentID,
		Status:             store.StatusAssigned,
		Location:           req.Location,
		CreatedAt:          a.CreatedAt,
	}
	if err := o.store.SaveReport(ctx, rec); err != nil {
		log.WithError(err).WithField("report", a.ReportID).Warn("failed to persist report")
	}
}

func (o *Orchestrator) recordDegradations(comb ensemble.CombinedAnalysis) {
	contributing := make(map[string]bool, len(comb.Contributing))
	for _, id := range comb.Contributing {
		contributing[id] = true
	}
	for _, a := range o.analyzers {
		if !contributing[a.ID()] {
			metrics.AdapterDegraded(a.ID())
		}
	}
}

// ResolveReport records the outcome of a handled report. The department
// feedback is applied asynchronously through the feedback queue; when the
// queue is full the task runs inline so no outcome is lost.
func (o *Orchestrator) ResolveReport(ctx context.Context, reportID, departmentID string, responseHours float64, success bool) {
	task := feedbackTask{
		reportID:      reportID,
		departmentID:  departmentID,
		responseHours: responseHours,
		success:       success,
	}
	select {
	case o.feedback <- task:
	default:
		log.Warn("feedback queue full, applying department feedback inline")
		o.applyFeedback(task)
	}
}

func (o *Orchestrator) feedbackWorker() {
	defer o.wg.Done()
	for {
		select {
		case task := <-o.feedback:
			o.applyFeedback(task)
		case <-o.stop:
			// Drain whatever is queued before exiting.
			for {
				select {
				case task := <-o.feedback:
					o.applyFeedback(task)
				default:
					return
				}
			}
		}
	}
}

func (o *Orchestrator) applyFeedback(task feedbackTask) {
	if err := o.router.Directory().UpdatePerformance(task.departmentID, task.responseHours, task.success); err != nil {
		o.routingErrors.Add(1)
		log.WithError(err).WithField("department", task.departmentID).
			Warn("failed to apply department feedback")
	}
	if o.store != nil && task.reportID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		status := store.StatusResolved
		resolvedAt := time.Now()
		if !task.success {
			status = store.StatusOpen
			resolvedAt = time.Time{}
		}
		if err := o.store.UpdateReportStatus(ctx, task.reportID, status, resolvedAt); err != nil {
			log.WithError(err).WithField("report", task.reportID).
				Warn("failed to update report status")
		}
	}
}

// Stats returns a snapshot of orchestrator health counters and component
// analytics.
func (o *Orchestrator) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"analysis_errors": o.analysisErrors.Load(),
		"chat_errors":     o.chatErrors.Load(),
		"routing_errors":  o.routingErrors.Load(),
		"departments":     o.router.Directory().Analytics(),
	}
	if o.sessions != nil {
		stats["conversations"] = o.sessions.Stats()
	}
	return stats
}

// Health reports adapter availability and error counters.
func (o *Orchestrator) Health() map[string]interface{} {
	adapters := make(map[string]interface{}, len(o.analyzers))
	healthy := true
	for _, a := range o.analyzers {
		h := a.Health()
		adapters[a.ID()] = map[string]interface{}{
			"available": h.Available,
			"detail":    h.Detail,
		}
		if !h.Available {
			healthy = false
		}
	}
	return map[string]interface{}{
		"healthy":         healthy,
		"adapters":        adapters,
		"analysis_errors": o.analysisErrors.Load(),
		"chat_errors":     o.chatErrors.Load(),
	}
}

// Close stops the feedback workers and the session manager.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		close(o.stop)
		o.wg.Wait()
		if o.sessions != nil {
			o.sessions.Close()
		}
	})
}
