// Copyright 2026 The PublicBridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package session

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const shardCount = 16

// Config carries the session manager tunables.
type Config struct {
	// Window is the short-term turn window per session.
	Window int
	// Timeout is the inactivity duration after which a session expires.
	Timeout time.Duration
	// SweepInterval is the background sweeper period. Zero disables the
	// background sweeper; sweeps still run opportunistically on
	// StartSession.
	SweepInterval time.Duration
}

// DefaultConfig returns the stock session configuration.
func DefaultConfig() Config {
	return Config{
		Window:        10,
		Timeout:       30 * time.Minute,
		SweepInterval: 5 * time.Minute,
	}
}

type sessionShard struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

type profileShard struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// Manager owns all active sessions and user profiles. Both maps are sharded
// so concurrent requests for unrelated users never contend on one lock.
type Manager struct {
	cfg      Config
	history  HistoryStore
	fallback *MemoryHistory

	sessions [shardCount]*sessionShard
	profiles [shardCount]*profileShard

	statsMu       sync.Mutex
	conversations int
	intentCounts  map[string]int
	satisfaction  []float64

	stop      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	now func() time.Time
}

// NewManager builds a session manager. A nil history store falls back to the
// in-process store.
func NewManager(cfg Config, history HistoryStore) *Manager {
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	fallback := NewMemoryHistory()
	if history == nil {
		history = fallback
	}
	m := &Manager{
		cfg:          cfg,
		history:      history,
		fallback:     fallback,
		intentCounts: make(map[string]int),
		stop:         make(chan struct{}),
		now:          time.Now,
	}
	for i := range m.sessions {
		m.sessions[i] = &sessionShard{sessions: make(map[string]*Session)}
		m.profiles[i] = &profileShard{profiles: make(map[string]*Profile)}
	}
	return m
}

func shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % shardCount)
}

func (m *Manager) sessionShardFor(id string) *sessionShard { return m.sessions[shardIndex(id)] }
func (m *Manager) profileShardFor(id string) *profileShard { return m.profiles[shardIndex(id)] }

// StartSession creates an active session for the user, lazily creating the
// user profile, and opportunistically sweeps expired sessions first.
func (m *Manager) StartSession(ctx context.Context, userID string, initial map[string]any) (string, error) {
	m.Sweep(ctx)

	id := uuid.New().String()
	now := m.now()
	s := &Session{
		ID:           id,
		UserID:       userID,
		State:        StateActive,
		StartedAt:    now,
		LastActivity: now,
		Context:      initial,
	}

	shard := m.sessionShardFor(id)
	shard.mu.Lock()
	shard.sessions[id] = s
	shard.mu.Unlock()

	m.ensureProfile(userID)
	log.WithFields(log.Fields{"session": id, "user": userID}).Info("session started")
	return id, nil
}

func (m *Manager) ensureProfile(userID string) {
	shard := m.profileShardFor(userID)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	if _, ok := shard.profiles[userID]; !ok {
		shard.profiles[userID] = &Profile{
			UserID:             userID,
			PreferredLanguage:  "en",
			CommunicationStyle: "formal",
			LastInteraction:    m.now(),
		}
	}
}

// AddTurn records one exchange on an active session. Non-existent sessions
// fail with ErrSessionNotFound; sessions past the inactivity timeout fail
// with ErrSessionExpired. Both error paths leave all state untouched.
// When the short-term window is full, the oldest turn moves verbatim to the
// user's long-term history.
func (m *Manager) AddTurn(ctx context.Context, sessionID string, turn Turn) (Turn, error) {
	shard := m.sessionShardFor(sessionID)
	shard.mu.Lock()
	s, ok := shard.sessions[sessionID]
	if !ok {
		shard.mu.Unlock()
		return Turn{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	now := m.now()
	if now.Sub(s.LastActivity) > m.cfg.Timeout {
		shard.mu.Unlock()
		return Turn{}, fmt.Errorf("%w: %s", ErrSessionExpired, sessionID)
	}

	turn.ID = uuid.New().String()
	turn.Timestamp = now
	turn.Metadata = turnMetadata(turn)

	s.Turns = append(s.Turns, turn)
	s.LastActivity = now

	var spilled *Turn
	if len(s.Turns) > m.cfg.Window {
		old := s.Turns[0]
		s.Turns = append([]Turn(nil), s.Turns[1:]...)
		spilled = &old
	}
	userID := s.UserID
	shard.mu.Unlock()

	if spilled != nil {
		m.spill(ctx, userID, []Turn{*spilled})
	}
	m.touchProfile(userID, turn)
	m.recordIntent(turn.Intent)

	log.WithFields(log.Fields{"session": sessionID, "turn": turn.ID}).Debug("turn added")
	return turn, nil
}

// spill appends turns to long-term history. A failing external store falls
// back to the in-process store so spilled turns are never discarded.
func (m *Manager) spill(ctx context.Context, userID string, turns []Turn) {
	if err := m.history.Append(ctx, userID, turns); err != nil {
		log.WithError(err).WithField("user", userID).
			Warn("history store append failed, keeping turns in memory")
		_ = m.fallback.Append(ctx, userID, turns)
	}
}

func (m *Manager) touchProfile(userID string, turn Turn) {
	shard := m.profileShardFor(userID)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	p, ok := shard.profiles[userID]
	if !ok {
		return
	}
	p.LastInteraction = turn.Timestamp
	p.TotalInteractions++
	if turn.Intent != "" && !containsString(p.FrequentTopics, turn.Intent) {
		p.FrequentTopics = append(p.FrequentTopics, turn.Intent)
		if len(p.FrequentTopics) > 10 {
			p.FrequentTopics = p.FrequentTopics[len(p.FrequentTopics)-10:]
		}
	}
}

func (m *Manager) recordIntent(intent string) {
	if intent == "" {
		intent = "unknown"
	}
	m.statsMu.Lock()
	m.intentCounts[intent]++
	m.statsMu.Unlock()
}

// GetContext returns a read-only projection of the session. DepthShort
// carries only the recent turns; DepthFull adds goals and the user profile.
func (m *Manager) GetContext(ctx context.Context, sessionID, depth string) (ContextView, error) {
	shard := m.sessionShardFor(sessionID)
	shard.mu.RLock()
	s, ok := shard.sessions[sessionID]
	if !ok {
		shard.mu.RUnlock()
		return ContextView{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	view := ContextView{
		SessionID:      s.ID,
		UserID:         s.UserID,
		State:          s.State,
		SessionStart:   s.StartedAt,
		TurnCount:      len(s.Turns),
		SessionContext: s.Context,
	}
	recent := s.Turns
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	view.RecentTurns = append([]Turn(nil), recent...)

	if depth == DepthFull {
		view.ActiveGoals = append([]string(nil), s.Goals...)
		view.CompletedGoals = append([]string(nil), s.CompletedGoals...)
	}
	userID := s.UserID
	shard.mu.RUnlock()

	if depth == DepthFull {
		pshard := m.profileShardFor(userID)
		pshard.mu.RLock()
		if p, ok := pshard.profiles[userID]; ok {
			copied := *p
			copied.FrequentTopics = append([]string(nil), p.FrequentTopics...)
			copied.SatisfactionHistory = append([]float64(nil), p.SatisfactionHistory...)
			view.Profile = &copied
		}
		pshard.mu.RUnlock()
	}
	return view, nil
}

// UpdateGoals replaces the session's active goals.
func (m *Manager) UpdateGoals(sessionID string, goals []string) error {
	shard := m.sessionShardFor(sessionID)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	s, ok := shard.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	s.Goals = append([]string(nil), goals...)
	return nil
}

// CompleteGoal moves one goal from active to completed.
func (m *Manager) CompleteGoal(sessionID, goal string) error {
	shard := m.sessionShardFor(sessionID)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	s, ok := shard.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	for i, g := range s.Goals {
		if g == goal {
			s.Goals = append(s.Goals[:i], s.Goals[i+1:]...)
			s.CompletedGoals = append(s.CompletedGoals, goal)
			return nil
		}
	}
	return nil
}

// EndSession closes a session, spilling all remaining turns to long-term
// history. A satisfaction score >= 0 is recorded on the user profile;
// negative means unrated. Ending an unknown session is a no-op.
func (m *Manager) EndSession(ctx context.Context, sessionID string, satisfaction float64) {
	shard := m.sessionShardFor(sessionID)
	shard.mu.Lock()
	s, ok := shard.sessions[sessionID]
	if !ok {
		shard.mu.Unlock()
		return
	}
	s.State = StateClosed
	turns := s.Turns
	userID := s.UserID
	delete(shard.sessions, sessionID)
	shard.mu.Unlock()

	m.spill(ctx, userID, turns)

	if satisfaction >= 0 {
		pshard := m.profileShardFor(userID)
		pshard.mu.Lock()
		if p, ok := pshard.profiles[userID]; ok {
			p.SatisfactionHistory = append(p.SatisfactionHistory, satisfaction)
		}
		pshard.mu.Unlock()

		m.statsMu.Lock()
		m.satisfaction = append(m.satisfaction, satisfaction)
		if len(m.satisfaction) > 1000 {
			m.satisfaction = m.satisfaction[len(m.satisfaction)-1000:]
		}
		m.statsMu.Unlock()
	}

	m.statsMu.Lock()
	m.conversations++
	m.statsMu.Unlock()

	log.WithFields(log.Fields{"session": sessionID, "turns": len(turns)}).Info("session ended")
}

// Sweep expires every session past the inactivity timeout, spilling its
// turns to long-term history. Returns the number of sessions expired. This
// is the only automatic lifecycle transition.
func (m *Manager) Sweep(ctx context.Context) int {
	now := m.now()
	expired := 0
	for _, shard := range m.sessions {
		var victims []*Session
		shard.mu.Lock()
		for id, s := range shard.sessions {
			if now.Sub(s.LastActivity) > m.cfg.Timeout {
				s.State = StateExpired
				victims = append(victims, s)
				delete(shard.sessions, id)
			}
		}
		shard.mu.Unlock()

		for _, s := range victims {
			m.spill(ctx, s.UserID, s.Turns)
			expired++
			log.WithFields(log.Fields{"session": s.ID, "user": s.UserID}).
				Debug("session expired")
		}
	}
	if expired > 0 {
		m.statsMu.Lock()
		m.conversations += expired
		m.statsMu.Unlock()
	}
	return expired
}

// StartSweeper runs Sweep periodically until Close. Safe to skip entirely;
// semantics do not depend on it.
func (m *Manager) StartSweeper() {
	if m.cfg.SweepInterval <= 0 {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Sweep(context.Background())
			case <-m.stop:
				return
			}
		}
	}()
}

// Close stops the background sweeper.
func (m *Manager) Close() {
	m.closeOnce.Do(func() { close(m.stop) })
	m.wg.Wait()
}

// ActiveSessions returns the number of live sessions.
func (m *Manager) ActiveSessions() int {
	total := 0
	for _, shard := range m.sessions {
		shard.mu.RLock()
		total += len(shard.sessions)
		shard.mu.RUnlock()
	}
	return total
}

// History exposes the long-term history store.
func (m *Manager) History() HistoryStore { return m.history }

// Stats returns a snapshot of conversation analytics.
func (m *Manager) Stats() map[string]interface{} {
	m.statsMu.Lock()
	intents := make(map[string]int, len(m.intentCounts))
	for k, v := range m.intentCounts {
		intents[k] = v
	}
	conversations := m.conversations
	var avgSatisfaction float64
	if len(m.satisfaction) > 0 {
		var sum float64
		for _, s := range m.satisfaction {
			sum += s
		}
		avgSatisfaction = sum / float64(len(m.satisfaction))
	}
	m.statsMu.Unlock()

	return map[string]interface{}{
		"active_sessions":      m.ActiveSessions(),
		"total_conversations":  conversations,
		"most_common_intents":  intents,
		"average_satisfaction": avgSatisfaction,
	}
}

// turnMetadata derives cheap signal flags from the exchange.
func turnMetadata(t Turn) map[string]any {
	lower := strings.ToLower(t.UserInput)
	return map[string]any{
		"user_input_length":    len(t.UserInput),
		"response_length":      len(t.AssistantResponse),
		"primary_intent":       t.Intent,
		"intent_confidence":    t.IntentConfidence,
		"contains_question":    strings.Contains(t.UserInput, "?"),
		"contains_gratitude":   containsAny(lower, "thank", "thanks", "appreciate"),
		"contains_frustration": containsAny(lower, "frustrated", "angry", "annoyed"),
	}
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
