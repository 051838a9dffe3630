// Copyright 2026 The PublicBridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package orchestrator

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/Bouric0076/publicbridge-core/internal/analyzer"
	"github.com/Bouric0076/publicbridge-core/internal/metrics"
	"github.com/Bouric0076/publicbridge-core/internal/session"
)

// NoInputResponse is the documented reply for an empty chat message.
const NoInputResponse = "I'm sorry, I didn't receive any input. How can I help you?"

// fallbackChatResponse is substituted when chat handling itself fails.
const fallbackChatResponse = "I'm having trouble processing your request right now. You can still submit reports through the PublicBridge portal, or try again in a moment."

// ChatRequest is one citizen chat message. A missing SessionID starts a new
// session for the user.
type ChatRequest struct {
	Message   string         `json:"message"`
	SessionID string         `json:"session_id,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
}

// Intent is the classified intent of a chat message.
type Intent struct {
	Primary    string  `json:"primary_intent"`
	Confidence float64 `json:"confidence"`
}

// ChatResponse is the assistant's reply plus the analysis behind it.
type ChatResponse struct {
	Response           string             `json:"response"`
	Confidence         float64            `json:"confidence"`
	Intent             Intent             `json:"intent"`
	Sentiment          analyzer.Sentiment `json:"sentiment_analysis"`
	RequiresEscalation bool               `json:"requires_escalation"`
	SessionID          string             `json:"session_id"`
	Degraded           bool               `json:"degraded"`
}

// HandleChatTurn analyzes one chat message, updates the session, and
// synthesizes a reply. A caller-supplied session id that is unknown or
// expired surfaces as a typed error; all other failures are absorbed into a
// fallback reply.
func (o *Orchestrator) HandleChatTurn(ctx context.Context, req ChatRequest) (out ChatResponse, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			o.chatErrors.Add(1)
			metrics.FallbackResponse("chat_turn")
			log.WithField("panic", rec).Error("chat turn failed, substituting fallback")
			out = ChatResponse{
				Response:   fallbackChatResponse,
				Confidence: 0.1,
				Intent:     Intent{Primary: analyzer.IntentGeneral, Confidence: 0.1},
				Sentiment:  analyzer.SentimentNeutral,
				SessionID:  req.SessionID,
				Degraded:   true,
			}
			err = nil
		}
	}()

	if strings.TrimSpace(req.Message) == "" {
		return ChatResponse{
			Response:   NoInputResponse,
			Confidence: 0,
			Intent:     Intent{Primary: analyzer.IntentGeneral, Confidence: 0},
			Sentiment:  analyzer.SentimentNeutral,
			SessionID:  req.SessionID,
		}, nil
	}

	sessionID := req.SessionID
	if sessionID == "" {
		userID := req.UserID
		if userID == "" {
			userID = "anonymous"
		}
		sessionID, err = o.sessions.StartSession(ctx, userID, req.Context)
		if err != nil {
			o.chatErrors.Add(1)
			return ChatResponse{}, err
		}
	}

	comb := o.ensemble.Analyze(ctx, analyzer.Input{Text: req.Message, Context: req.Context})
	if comb.Degraded {
		o.recordDegradations(comb)
	}

	reply := respond(comb.Intent, comb.IntentConfidence, req.Message)
	escalate := comb.Intent == analyzer.IntentEmergency ||
		comb.Urgency == analyzer.UrgencyCritical ||
		wantsHuman(req.Message)

	_, err = o.sessions.AddTurn(ctx, sessionID, session.Turn{
		UserInput:         req.Message,
		AssistantResponse: reply,
		Intent:            comb.Intent,
		IntentConfidence:  comb.IntentConfidence,
		Sentiment:         string(comb.Sentiment),
	})
	if err != nil {
		// Unknown or expired session ids are caller misuse and surface
		// as typed errors.
		o.chatErrors.Add(1)
		return ChatResponse{}, err
	}

	metrics.ChatTurn()
	metrics.SetActiveSessions(o.sessions.ActiveSessions())

	confidence := comb.IntentConfidence
	if confidence == 0 {
		confidence = comb.Confidence
	}
	return ChatResponse{
		Response:           reply,
		Confidence:         confidence,
		Intent:             Intent{Primary: comb.Intent, Confidence: comb.IntentConfidence},
		Sentiment:          comb.Sentiment,
		RequiresEscalation: escalate,
		SessionID:          sessionID,
		Degraded:           comb.Degraded,
	}, nil
}

// EndChatSession closes a session with an optional satisfaction score
// (negative means unrated).
func (o *Orchestrator) EndChatSession(ctx context.Context, sessionID string, satisfaction float64) {
	o.sessions.EndSession(ctx, sessionID, satisfaction)
	metrics.SetActiveSessions(o.sessions.ActiveSessions())
}

// SweepSessions expires idle sessions and returns how many were removed.
func (o *Orchestrator) SweepSessions(ctx context.Context) int {
	n := o.sessions.Sweep(ctx)
	metrics.SessionsExpired(n)
	metrics.SetActiveSessions(o.sessions.ActiveSessions())
	return n
}

// ConversationContext exposes the read-only session projection.
func (o *Orchestrator) ConversationContext(ctx context.Context, sessionID, depth string) (session.ContextView, error) {
	return o.sessions.GetContext(ctx, sessionID, depth)
}

func wantsHuman(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "human") || strings.Contains(lower, "representative")
}

// respond synthesizes the canned reply for a classified intent.
func respond(intent string, confidence float64, message string) string {
	switch intent {
	case analyzer.IntentGreeting:
		return "Hello! I'm your PublicBridge civic engagement assistant. I can help you with government services, report submissions, and tracking. How can I assist you today?"
	case analyzer.IntentCivicInfo:
		if strings.Contains(strings.ToLower(message), "publicbridge") {
			return "PublicBridge is a civic engagement platform that connects citizens with county governments in Kenya. You can use it to report issues, track progress, access government services, and engage with your local representatives."
		}
		return "I can provide information about government services, county departments, and civic processes in Kenya. What specific information do you need?"
	case analyzer.IntentReportHelp:
		return "I can guide you through submitting a report to your county government. Please describe the issue you'd like to report, and I'll help you with the next steps."
	case analyzer.IntentStatusInquiry:
		return "To check your report status, you can either provide your report reference number or log into your PublicBridge dashboard where all your submissions are tracked with real-time updates."
	case analyzer.IntentAppreciation:
		return "Thank you for your kind words! I'm here to help make government services more accessible. Is there anything else I can assist you with today?"
	case analyzer.IntentComplaint:
		return "I understand your frustration. Let me help you address this issue properly. Can you provide more details about the problem you're experiencing? I can guide you through the appropriate channels for resolution."
	case analyzer.IntentEmergency:
		return "This sounds urgent. For immediate emergencies, please contact your local emergency services. For urgent government issues, I can help you submit a high-priority report that will be fast-tracked to the relevant department."
	case analyzer.IntentGoodbye:
		return "Thank you for using PublicBridge! Feel free to return anytime you need assistance with government services or civic engagement."
	default:
		if confidence < 0.3 {
			return "I want to help you, but I need a bit more information. I can assist with: reporting issues to county governments, checking report status, finding government services, or answering questions about civic processes. What would you like to know?"
		}
		return "I'm here to help with government services and civic engagement in Kenya. You can ask me about reporting issues, tracking submissions, finding contact information for departments, or general civic processes. How can I assist you?"
	}
}

// StartSessionSweeper runs the session manager's background sweeper.
func (o *Orchestrator) StartSessionSweeper() {
	o.sessions.StartSweeper()
}
