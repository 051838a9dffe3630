// Copyright 2026 The PublicBridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package session manages conversational state for citizen chat. Sessions
// move created -> active -> expired or closed, never backwards. Short-term
// turns live on the session; turns beyond the window spill verbatim into the
// per-user long-term history.
package session

import (
	"errors"
	"time"
)

// Typed session failures. These surface to the caller; they are not
// swallowed into defaults because a bad session id is caller misuse.
var (
	ErrSessionNotFound = errors.New("session: not found")
	ErrSessionExpired  = errors.New("session: expired")
)

// State is the lifecycle state of a session.
type State string

const (
	StateCreated State = "created"
	StateActive  State = "active"
	StateExpired State = "expired"
	StateClosed  State = "closed"
)

// Context depth levels for GetContext.
const (
	DepthShort = "short"
	DepthFull  = "full"
)

// Turn is one user/assistant exchange. Once recorded a turn is immutable;
// spilling to long-term history copies it verbatim.
type Turn struct {
	ID                string         `json:"turn_id"`
	UserInput         string         `json:"user_input"`
	AssistantResponse string         `json:"assistant_response"`
	Intent            string         `json:"intent"`
	IntentConfidence  float64        `json:"intent_confidence"`
	Sentiment         string         `json:"sentiment"`
	Timestamp         time.Time      `json:"timestamp"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// Session is one active conversation. Turns holds only the short-term
// window; older turns live in the user's long-term history.
type Session struct {
	ID             string         `json:"session_id"`
	UserID         string         `json:"user_id"`
	State          State          `json:"state"`
	StartedAt      time.Time      `json:"started_at"`
	LastActivity   time.Time      `json:"last_activity"`
	Turns          []Turn         `json:"turns"`
	Context        map[string]any `json:"session_context,omitempty"`
	Goals          []string       `json:"goals,omitempty"`
	CompletedGoals []string       `json:"completed_goals,omitempty"`
}

// Profile accumulates per-user personalization state across sessions.
type Profile struct {
	UserID              string    `json:"user_id"`
	PreferredLanguage   string    `json:"preferred_language"`
	CommunicationStyle  string    `json:"communication_style"`
	FrequentTopics      []string  `json:"frequent_topics,omitempty"`
	SatisfactionHistory []float64 `json:"satisfaction_history,omitempty"`
	LastInteraction     time.Time `json:"last_interaction"`
	TotalInteractions   int       `json:"total_interactions"`
}

// ContextView is the read-only projection returned by GetContext. Building
// it never mutates session state.
type ContextView struct {
	SessionID      string         `json:"session_id"`
	UserID         string         `json:"user_id"`
	State          State          `json:"state"`
	SessionStart   time.Time      `json:"session_start"`
	TurnCount      int            `json:"turn_count"`
	SessionContext map[string]any `json:"session_context,omitempty"`
	RecentTurns    []Turn         `json:"recent_conversation,omitempty"`

	// Populated only at DepthFull.
	ActiveGoals    []string `json:"active_goals,omitempty"`
	CompletedGoals []string `json:"completed_goals,omitempty"`
	Profile        *Profile `json:"user_profile,omitempty"`
}
