package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, cfg Config) (*Manager, *MemoryHistory) {
	t.Helper()
	hist := NewMemoryHistory()
	m := NewManager(cfg, hist)
	t.Cleanup(m.Close)
	return m, hist
}

func TestStartSession_CreatesActiveSessionAndProfile(t *testing.T) {
	m, _ := newTestManager(t, DefaultConfig())
	ctx := context.Background()

	id, err := m.StartSession(ctx, "citizen-1", map[string]any{"channel": "web"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	view, err := m.GetContext(ctx, id, DepthFull)
	require.NoError(t, err)
	require.Equal(t, StateActive, view.State)
	require.Equal(t, "citizen-1", view.UserID)
	require.Equal(t, "web", view.SessionContext["channel"])
	require.NotNil(t, view.Profile)
	require.Equal(t, "en", view.Profile.PreferredLanguage)
	require.Equal(t, "formal", view.Profile.CommunicationStyle)
}

func TestAddTurn_WindowSpillsToHistory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Window = 3
	m, hist := newTestManager(t, cfg)
	ctx := context.Background()

	id, err := m.StartSession(ctx, "citizen-1", nil)
	require.NoError(t, err)

	inputs := []string{"one", "two", "three", "four", "five"}
	for _, in := range inputs {
		_, err := m.AddTurn(ctx, id, Turn{UserInput: in, AssistantResponse: "ok"})
		require.NoError(t, err)
	}

	view, err := m.GetContext(ctx, id, DepthShort)
	require.NoError(t, err)
	require.Equal(t, 3, view.TurnCount)
	require.Equal(t, "three", view.RecentTurns[0].UserInput)
	require.Equal(t, "five", view.RecentTurns[2].UserInput)

	// Spilled turns land in long-term history verbatim, oldest first.
	n, err := hist.Count(ctx, "citizen-1")
	require.NoError(t, err)
	require.Equal(t, 2, n)
	spilled, err := hist.Recent(ctx, "citizen-1", 10)
	require.NoError(t, err)
	require.Equal(t, "one", spilled[0].UserInput)
	require.Equal(t, "two", spilled[1].UserInput)

	// No turn is lost: window plus history equals everything added.
	require.Equal(t, len(inputs), view.TurnCount+n)
}

func TestAddTurn_UnknownSession(t *testing.T) {
	m, _ := newTestManager(t, DefaultConfig())

	_, err := m.AddTurn(context.Background(), "no-such-session", Turn{UserInput: "hi"})
	require.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestAddTurn_ExpiredSessionLeavesStateUntouched(t *testing.T) {
	m, hist := newTestManager(t, DefaultConfig())
	ctx := context.Background()

	base := time.Now()
	m.now = func() time.Time { return base }

	id, err := m.StartSession(ctx, "citizen-1", nil)
	require.NoError(t, err)
	_, err = m.AddTurn(ctx, id, Turn{UserInput: "hello", Intent: "greeting"})
	require.NoError(t, err)

	m.now = func() time.Time { return base.Add(31 * time.Minute) }

	_, err = m.AddTurn(ctx, id, Turn{UserInput: "still there?"})
	require.True(t, errors.Is(err, ErrSessionExpired))

	// The failed call must not have mutated the session or spilled anything.
	view, err := m.GetContext(ctx, id, DepthShort)
	require.NoError(t, err)
	require.Equal(t, 1, view.TurnCount)
	n, err := hist.Count(ctx, "citizen-1")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestAddTurn_MetadataFlags(t *testing.T) {
	m, _ := newTestManager(t, DefaultConfig())
	ctx := context.Background()

	id, err := m.StartSession(ctx, "citizen-1", nil)
	require.NoError(t, err)

	turn, err := m.AddTurn(ctx, id, Turn{
		UserInput:         "Thanks, but where is my report?",
		AssistantResponse: "Let me check.",
		Intent:            "status_inquiry",
		IntentConfidence:  0.8,
	})
	require.NoError(t, err)
	require.NotEmpty(t, turn.ID)
	require.False(t, turn.Timestamp.IsZero())
	require.Equal(t, true, turn.Metadata["contains_question"])
	require.Equal(t, true, turn.Metadata["contains_gratitude"])
	require.Equal(t, false, turn.Metadata["contains_frustration"])
	require.Equal(t, "status_inquiry", turn.Metadata["primary_intent"])
}

func TestSweep_ExpiresIdleSessionsAndSpills(t *testing.T) {
	m, hist := newTestManager(t, DefaultConfig())
	ctx := context.Background()

	base := time.Now()
	m.now = func() time.Time { return base }

	idle, err := m.StartSession(ctx, "idle-user", nil)
	require.NoError(t, err)
	_, err = m.AddTurn(ctx, idle, Turn{UserInput: "hello"})
	require.NoError(t, err)

	m.now = func() time.Time { return base.Add(20 * time.Minute) }
	fresh, err := m.StartSession(ctx, "fresh-user", nil)
	require.NoError(t, err)

	m.now = func() time.Time { return base.Add(35 * time.Minute) }
	require.Equal(t, 1, m.Sweep(ctx))

	_, err = m.GetContext(ctx, idle, DepthShort)
	require.True(t, errors.Is(err, ErrSessionNotFound))
	_, err = m.GetContext(ctx, fresh, DepthShort)
	require.NoError(t, err)

	n, err := hist.Count(ctx, "idle-user")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestEndSession_SpillsAndRecordsSatisfaction(t *testing.T) {
	m, hist := newTestManager(t, DefaultConfig())
	ctx := context.Background()

	id, err := m.StartSession(ctx, "citizen-1", nil)
	require.NoError(t, err)
	_, err = m.AddTurn(ctx, id, Turn{UserInput: "report a pothole"})
	require.NoError(t, err)

	m.EndSession(ctx, id, 0.9)

	_, err = m.GetContext(ctx, id, DepthShort)
	require.True(t, errors.Is(err, ErrSessionNotFound))

	n, err := hist.Count(ctx, "citizen-1")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	stats := m.Stats()
	require.Equal(t, 1, stats["total_conversations"])
	require.InDelta(t, 0.9, stats["average_satisfaction"].(float64), 1e-9)

	// Ending twice, or ending an unknown session, is a no-op.
	m.EndSession(ctx, id, 0.1)
	m.EndSession(ctx, "ghost", 0.1)
	require.Equal(t, 1, m.Stats()["total_conversations"])
}

func TestEndSession_NegativeSatisfactionIsUnrated(t *testing.T) {
	m, _ := newTestManager(t, DefaultConfig())
	ctx := context.Background()

	id, err := m.StartSession(ctx, "citizen-1", nil)
	require.NoError(t, err)
	m.EndSession(ctx, id, -1)

	stats := m.Stats()
	require.Equal(t, 1, stats["total_conversations"])
	require.Zero(t, stats["average_satisfaction"].(float64))
}

func TestGoals_UpdateAndComplete(t *testing.T) {
	m, _ := newTestManager(t, DefaultConfig())
	ctx := context.Background()

	id, err := m.StartSession(ctx, "citizen-1", nil)
	require.NoError(t, err)

	require.NoError(t, m.UpdateGoals(id, []string{"submit_report", "check_status"}))
	require.NoError(t, m.CompleteGoal(id, "submit_report"))

	view, err := m.GetContext(ctx, id, DepthFull)
	require.NoError(t, err)
	require.Equal(t, []string{"check_status"}, view.ActiveGoals)
	require.Equal(t, []string{"submit_report"}, view.CompletedGoals)

	require.True(t, errors.Is(m.UpdateGoals("ghost", nil), ErrSessionNotFound))
	require.True(t, errors.Is(m.CompleteGoal("ghost", "x"), ErrSessionNotFound))
}

func TestGetContext_ShortDepthOmitsProfile(t *testing.T) {
	m, _ := newTestManager(t, DefaultConfig())
	ctx := context.Background()

	id, err := m.StartSession(ctx, "citizen-1", nil)
	require.NoError(t, err)

	view, err := m.GetContext(ctx, id, DepthShort)
	require.NoError(t, err)
	require.Nil(t, view.Profile)
	require.Empty(t, view.ActiveGoals)
}

func TestGetContext_RecentTurnsCappedAtFive(t *testing.T) {
	m, _ := newTestManager(t, DefaultConfig())
	ctx := context.Background()

	id, err := m.StartSession(ctx, "citizen-1", nil)
	require.NoError(t, err)
	for i := 0; i < 8; i++ {
		_, err := m.AddTurn(ctx, id, Turn{UserInput: "msg"})
		require.NoError(t, err)
	}

	view, err := m.GetContext(ctx, id, DepthShort)
	require.NoError(t, err)
	require.Equal(t, 8, view.TurnCount)
	require.Len(t, view.RecentTurns, 5)
}

func TestProfile_TracksInteractions(t *testing.T) {
	m, _ := newTestManager(t, DefaultConfig())
	ctx := context.Background()

	id, err := m.StartSession(ctx, "citizen-1", nil)
	require.NoError(t, err)
	_, err = m.AddTurn(ctx, id, Turn{UserInput: "hi", Intent: "greeting"})
	require.NoError(t, err)
	_, err = m.AddTurn(ctx, id, Turn{UserInput: "report", Intent: "report_help"})
	require.NoError(t, err)
	_, err = m.AddTurn(ctx, id, Turn{UserInput: "hi again", Intent: "greeting"})
	require.NoError(t, err)

	view, err := m.GetContext(ctx, id, DepthFull)
	require.NoError(t, err)
	require.Equal(t, 3, view.Profile.TotalInteractions)
	require.Equal(t, []string{"greeting", "report_help"}, view.Profile.FrequentTopics)
}

func TestStats_CountsIntents(t *testing.T) {
	m, _ := newTestManager(t, DefaultConfig())
	ctx := context.Background()

	id, err := m.StartSession(ctx, "citizen-1", nil)
	require.NoError(t, err)
	_, err = m.AddTurn(ctx, id, Turn{UserInput: "hi", Intent: "greeting"})
	require.NoError(t, err)
	_, err = m.AddTurn(ctx, id, Turn{UserInput: "??"})
	require.NoError(t, err)

	intents := m.Stats()["most_common_intents"].(map[string]int)
	require.Equal(t, 1, intents["greeting"])
	require.Equal(t, 1, intents["unknown"])
	require.Equal(t, 1, m.ActiveSessions())
}
