package game

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizarena/backend/internal/config"
	"github.com/quizarena/backend/internal/game/answer"
	"github.com/quizarena/backend/internal/game/scoring"
	"github.com/quizarena/backend/pkg/ws"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// sinkRecorder captures emitted events in order.
type sinkRecorder struct {
	mu   sync.Mutex
	msgs []ws.Message
}

func (s *sinkRecorder) Emit(_ string, msg ws.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
}

func (s *sinkRecorder) count(msgType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.msgs {
		if m.Type == msgType {
			n++
		}
	}
	return n
}

func (s *sinkRecorder) all(msgType string) []json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []json.RawMessage
	for _, m := range s.msgs {
		if m.Type == msgType {
			out = append(out, m.Payload)
		}
	}
	return out
}

func (s *sinkRecorder) last(msgType string) json.RawMessage {
	all := s.all(msgType)
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

// lastIndex returns the position of the last event of msgType, or -1.
func (s *sinkRecorder) lastIndex(msgType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i, m := range s.msgs {
		if m.Type == msgType {
			idx = i
		}
	}
	return idx
}

type stubOracle struct {
	mu     sync.Mutex
	mods   map[string]*scoring.Modifiers
	award  XPAward
	failXP bool
	xps    map[string]int
}

func (o *stubOracle) PlayerModifiers(_ context.Context, playerID string) (*scoring.Modifiers, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mods[playerID], nil
}

func (o *stubOracle) AwardXP(_ context.Context, playerID string, xp int) (XPAward, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failXP {
		return XPAward{}, fmt.Errorf("oracle unavailable")
	}
	if o.xps == nil {
		o.xps = make(map[string]int)
	}
	o.xps[playerID] = xp
	return o.award, nil
}

type stubStore struct {
	mu      sync.Mutex
	created []SessionRecord
	closed  []string
	results []ResultRecord
	fail    bool
}

func (s *stubStore) CreateSession(_ context.Context, rec SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("db down")
	}
	s.created = append(s.created, rec)
	return nil
}

func (s *stubStore) CloseSession(_ context.Context, sessionID string, _ map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("db down")
	}
	s.closed = append(s.closed, sessionID)
	return nil
}

func (s *stubStore) RecordResult(_ context.Context, rec ResultRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("db down")
	}
	s.results = append(s.results, rec)
	return nil
}

type stubLobbies struct {
	mu       sync.Mutex
	lobbies  map[string]*LobbyDescriptor
	statuses map[string]string
	deleted  map[string]bool
}

func newStubLobbies() *stubLobbies {
	return &stubLobbies{
		lobbies:  make(map[string]*LobbyDescriptor),
		statuses: make(map[string]string),
		deleted:  make(map[string]bool),
	}
}

func (l *stubLobbies) Descriptor(code string) (*LobbyDescriptor, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lob, ok := l.lobbies[code]
	if !ok {
		return nil, fmt.Errorf("lobby not found")
	}
	return lob, nil
}

func (l *stubLobbies) SetStatus(code, status string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.statuses[code] = status
}

func (l *stubLobbies) Delete(code string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deleted[code] = true
}

func (l *stubLobbies) wasDeleted(code string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.deleted[code]
}

type stubQuestions struct {
	qs  []*Question
	err error
}

func (s *stubQuestions) RandomQuestions(context.Context, []int64, int) ([]*Question, error) {
	return s.qs, s.err
}

// fakeClock is an adjustable time source for elapsed-time computation.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func defaultGameConfig() config.Game {
	return config.Game{
		RoundSeconds:         60,
		DuelRoundSeconds:     30,
		SyncCountdownSeconds: 0,
		NextQuestionDelay:    time.Millisecond,
		DisconnectGrace:      30 * time.Millisecond,
		WagerPhaseSeconds:    15,
		MaxMultiplier:        5,
		SurvivalLives:        3,
		DefaultQuestionCount: 10,
		FallbackSetID:        1,
	}
}

type testDeps struct {
	sink     *sinkRecorder
	store    *stubStore
	oracle   *stubOracle
	lobbies  *stubLobbies
	registry *Registry
	clock    *fakeClock
	cfg      config.Game
}

const testLobbyCode = "AB12CD"

func testLobby(playerIDs []string) *LobbyDescriptor {
	lobby := &LobbyDescriptor{
		Code:       testLobbyCode,
		HostID:     playerIDs[0],
		MaxPlayers: 8,
		Status:     LobbyStatusWaiting,
	}
	for i, id := range playerIDs {
		lobby.Players = append(lobby.Players, LobbyPlayerInfo{
			ID:        id,
			Name:      "Player " + id,
			Level:     1,
			IsHost:    i == 0,
			Connected: true,
		})
	}
	return lobby
}

// newTestSession builds an engine with stubbed collaborators. The tick
// interval defaults to an hour so the round clock never fires on its own.
func newTestSession(t *testing.T, mode Mode, playerIDs []string, questions []*Question, mutate func(*LobbyDescriptor, *testDeps)) (*Engine, *testDeps) {
	t.Helper()

	d := &testDeps{
		sink:     &sinkRecorder{},
		store:    &stubStore{},
		oracle:   &stubOracle{},
		lobbies:  newStubLobbies(),
		registry: NewRegistry(),
		clock:    newFakeClock(),
		cfg:      defaultGameConfig(),
	}

	lobby := testLobby(playerIDs)
	tick := time.Hour
	if mutate != nil {
		mutate(lobby, d)
	}
	if d.cfg.SyncCountdownSeconds > 0 || d.cfg.WagerPhaseSeconds < 15 || d.cfg.RoundSeconds < 60 {
		tick = 5 * time.Millisecond
	}
	d.lobbies.lobbies[lobby.Code] = lobby

	engine := NewEngine(lobby, mode, questions, Deps{
		Sink:         d.sink,
		Oracle:       d.oracle,
		Store:        d.store,
		Lobbies:      d.lobbies,
		Registry:     d.registry,
		Config:       d.cfg,
		Logger:       testLogger(),
		Now:          d.clock.now,
		RNG:          rand.New(rand.NewSource(1)),
		TickInterval: tick,
	})
	require.NoError(t, d.registry.Create(lobby.Code, engine))
	t.Cleanup(d.registry.CleanupAll)
	return engine, d
}

func waitForEvent(t *testing.T, sink *sinkRecorder, msgType string, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return sink.count(msgType) >= n
	}, 2*time.Second, time.Millisecond, "waiting for %d %q events", n, msgType)
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	require.NotNil(t, raw)
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func mcQuestion(id int64, correct string) *Question {
	return &Question{
		ID:            id,
		Prompt:        "question",
		Options:       []string{correct, "red herring"},
		CorrectAnswer: correct,
		Kind:          answer.KindMultipleChoice,
	}
}

func TestArcadeHappyPath(t *testing.T) {
	questions := []*Question{mcQuestion(1, "Berlin"), mcQuestion(2, "16")}
	engine, d := newTestSession(t, ModeArcade, []string{"p1", "p2"}, questions, nil)

	engine.Start()
	waitForEvent(t, d.sink, ws.TypeQuestionStarted, 1)
	assert.Equal(t, 1, d.sink.count(ws.TypeGameStarted))

	d.clock.advance(10 * time.Second)
	require.NoError(t, engine.SubmitAnswer("p1", "Berlin", nil))
	d.clock.advance(5 * time.Second)
	require.NoError(t, engine.SubmitAnswer("p2", "wrong", nil))

	first := decode[ws.AnswerReceivedPayload](t, d.sink.all(ws.TypeAnswerReceived)[0])
	assert.True(t, first.IsCorrect)
	assert.Equal(t, 833, first.ScoreDelta, "round(1000 * 50/60) at x1")
	assert.Equal(t, 1, first.Streak)
	assert.Equal(t, 1.5, first.Multiplier)

	waitForEvent(t, d.sink, ws.TypeQuestionStarted, 2)
	d.clock.advance(5 * time.Second)
	require.NoError(t, engine.SubmitAnswer("p1", "16", nil))
	d.clock.advance(2 * time.Second)
	require.NoError(t, engine.SubmitAnswer("p2", "16", nil))

	waitForEvent(t, d.sink, ws.TypeGameEnded, 1)

	assert.Equal(t, 2, d.sink.count(ws.TypeQuestionEnded))

	ended := decode[ws.GameEndedPayload](t, d.sink.last(ws.TypeGameEnded))
	require.Len(t, ended.Leaderboard, 2)
	assert.Equal(t, "p1", ended.Leaderboard[0].PlayerID)
	assert.Equal(t, 2209, ended.Leaderboard[0].Score)
	assert.Equal(t, "p2", ended.Leaderboard[1].PlayerID)
	assert.Equal(t, 883, ended.Leaderboard[1].Score)
	assert.Equal(t, 240, ended.Leaderboard[0].XPAwarded)

	over := decode[ws.GameOverPayload](t, d.sink.last(ws.TypeGameOver))
	assert.Equal(t, map[string]int{"p1": 2209, "p2": 883}, over.Scores)

	engine.mu.Lock()
	assert.Equal(t, 2, engine.state.Players["p1"].Streak)
	assert.Equal(t, 1, engine.state.Players["p2"].Streak)
	engine.mu.Unlock()

	_, active := d.registry.Get(testLobbyCode)
	assert.False(t, active, "session removed from registry")
	assert.True(t, d.lobbies.wasDeleted(testLobbyCode))
	assert.Equal(t, []string{engine.SessionID()}, d.store.closed)
}

func TestFastestFingerZeroOut(t *testing.T) {
	engine, d := newTestSession(t, ModeFastestFinger, []string{"p1", "p2", "p3"}, []*Question{mcQuestion(1, "A")}, nil)

	engine.Start()
	waitForEvent(t, d.sink, ws.TypeQuestionStarted, 1)

	d.clock.advance(2 * time.Second)
	require.NoError(t, engine.SubmitAnswer("p1", "A", nil))
	d.clock.advance(time.Second)
	require.NoError(t, engine.SubmitAnswer("p2", "A", nil))
	d.clock.advance(time.Second)
	require.NoError(t, engine.SubmitAnswer("p3", "A", nil))

	waitForEvent(t, d.sink, ws.TypeGameEnded, 1)

	received := d.sink.all(ws.TypeAnswerReceived)
	require.Len(t, received, 3)

	first := decode[ws.AnswerReceivedPayload](t, received[0])
	require.NotNil(t, first.IsFirstCorrect)
	assert.True(t, *first.IsFirstCorrect)
	assert.Positive(t, first.ScoreDelta)

	for _, raw := range received[1:] {
		late := decode[ws.AnswerReceivedPayload](t, raw)
		require.NotNil(t, late.IsFirstCorrect)
		assert.False(t, *late.IsFirstCorrect)
		assert.Zero(t, late.ScoreDelta, "late correct answers earn nothing")
		assert.Zero(t, late.NewScore)
		assert.Equal(t, 1, late.Streak, "streak still advances")
	}
}

func TestSurvivalElimination(t *testing.T) {
	questions := []*Question{mcQuestion(1, "A"), mcQuestion(2, "B"), mcQuestion(3, "C")}
	engine, d := newTestSession(t, ModeSurvival, []string{"p1", "p2"}, questions, nil)

	engine.Start()
	answers := []string{"A", "B", "C"}
	for round := 0; round < 3; round++ {
		waitForEvent(t, d.sink, ws.TypeQuestionStarted, round+1)
		d.clock.advance(time.Second)
		require.NoError(t, engine.SubmitAnswer("p1", "wrong", nil))
		require.NoError(t, engine.SubmitAnswer("p2", answers[round], nil))
	}

	waitForEvent(t, d.sink, ws.TypeGameEnded, 1)

	lives := d.sink.all(ws.TypeLivesUpdated)
	require.Len(t, lives, 3)
	assert.Equal(t, 0, decode[ws.LivesUpdatedPayload](t, lives[2]).Lives)

	assert.Equal(t, 1, d.sink.count(ws.TypePlayerEliminated))
	winner := decode[ws.SurvivalWinnerPayload](t, d.sink.last(ws.TypeSurvivalWinner))
	assert.Equal(t, "p2", winner.PlayerID)
}

func TestSurvivalEliminatedPlayerCannotAnswer(t *testing.T) {
	questions := []*Question{mcQuestion(1, "A"), mcQuestion(2, "B")}
	engine, d := newTestSession(t, ModeSurvival, []string{"p1", "p2", "p3"}, questions,
		func(_ *LobbyDescriptor, d *testDeps) {
			d.cfg.SurvivalLives = 1
		})

	engine.Start()
	waitForEvent(t, d.sink, ws.TypeQuestionStarted, 1)

	require.NoError(t, engine.SubmitAnswer("p1", "wrong", nil))
	require.NoError(t, engine.SubmitAnswer("p2", "A", nil))
	require.NoError(t, engine.SubmitAnswer("p3", "A", nil))

	waitForEvent(t, d.sink, ws.TypeQuestionStarted, 2)

	err := engine.SubmitAnswer("p1", "B", nil)
	require.Error(t, err)
	assert.Equal(t, CodeEliminated, AsError(err).Code)
}

func TestWagerScoring(t *testing.T) {
	engine, d := newTestSession(t, ModeWager, []string{"p1", "p2"}, []*Question{mcQuestion(1, "A")}, nil)

	engine.Start()
	waitForEvent(t, d.sink, ws.TypeQuestionStarted, 1)

	over := 150
	err := engine.SubmitAnswer("p2", "A", &over)
	require.Error(t, err)
	assert.Equal(t, CodeInvalidWager, AsError(err).Code)

	half := 50
	require.NoError(t, engine.SubmitAnswer("p1", "A", &half))
	p1 := decode[ws.AnswerReceivedPayload](t, d.sink.last(ws.TypeAnswerReceived))
	assert.Equal(t, 150, p1.NewScore, "100 + floor(100 * 50%)")
	assert.Equal(t, 50, p1.ScoreDelta)
	require.NotNil(t, p1.WagerAmount)
	assert.Equal(t, 50, *p1.WagerAmount)

	all := 100
	require.NoError(t, engine.SubmitAnswer("p2", "wrong", &all))
	p2 := decode[ws.AnswerReceivedPayload](t, d.sink.last(ws.TypeAnswerReceived))
	assert.Equal(t, 0, p2.NewScore)
	assert.Equal(t, -100, p2.ScoreDelta, "delta reflects the applied change")

	waitForEvent(t, d.sink, ws.TypeGameEnded, 1)
	final := decode[ws.GameOverPayload](t, d.sink.last(ws.TypeGameOver))
	assert.Equal(t, map[string]int{"p1": 150, "p2": 0}, final.Scores)
}

func TestWagerPhaseCollectsBeforeQuestion(t *testing.T) {
	engine, d := newTestSession(t, ModeWager, []string{"p1", "p2"}, []*Question{mcQuestion(1, "A")},
		func(lobby *LobbyDescriptor, _ *testDeps) {
			lobby.Settings.WagerPhase = true
		})

	engine.Start()
	waitForEvent(t, d.sink, ws.TypeGameStarted, 1)

	require.NoError(t, engine.SubmitWager("p1", 50))
	waitForEvent(t, d.sink, ws.TypeWagerSubmitted, 1)
	assert.Zero(t, d.sink.count(ws.TypeQuestionStarted), "question withheld during wager phase")

	err := engine.SubmitAnswer("p1", "A", nil)
	require.Error(t, err)
	assert.Equal(t, CodeNoQuestion, AsError(err).Code)

	require.NoError(t, engine.SubmitWager("p2", 0))
	waitForEvent(t, d.sink, ws.TypeQuestionStarted, 1)

	err = engine.SubmitWager("p1", 25)
	require.Error(t, err)
	assert.Equal(t, CodeNoWagerPhase, AsError(err).Code)

	// Recorded wagers ride into scoring.
	require.NoError(t, engine.SubmitAnswer("p1", "A", nil))
	p1 := decode[ws.AnswerReceivedPayload](t, d.sink.last(ws.TypeAnswerReceived))
	assert.Equal(t, 150, p1.NewScore)

	require.NoError(t, engine.SubmitAnswer("p2", "A", nil))
	p2 := decode[ws.AnswerReceivedPayload](t, d.sink.last(ws.TypeAnswerReceived))
	assert.Equal(t, 100, p2.NewScore, "defaulted wager of 0 gains nothing")
}

func TestWagerPhaseTimesOut(t *testing.T) {
	engine, d := newTestSession(t, ModeWager, []string{"p1", "p2"}, []*Question{mcQuestion(1, "A")},
		func(lobby *LobbyDescriptor, d *testDeps) {
			lobby.Settings.WagerPhase = true
			d.cfg.WagerPhaseSeconds = 2
		})

	engine.Start()
	waitForEvent(t, d.sink, ws.TypeQuestionStarted, 1)

	engine.mu.Lock()
	for _, id := range engine.state.Roster {
		p := engine.state.Players[id]
		require.NotNil(t, p.Wager)
		assert.Zero(t, *p.Wager, "missing wagers default to zero")
	}
	engine.mu.Unlock()
}

func TestDuelRotation(t *testing.T) {
	questions := []*Question{mcQuestion(1, "A"), mcQuestion(2, "B")}
	engine, d := newTestSession(t, ModeDuel, []string{"p1", "p2", "p3", "p4"}, questions, nil)

	engine.Start()
	waitForEvent(t, d.sink, ws.TypeDuelQuestionStarted, 1)

	started := decode[ws.QuestionStartedPayload](t, d.sink.last(ws.TypeDuelQuestionStarted))
	require.Len(t, started.Duelists, 2)
	a, b := started.Duelists[0], started.Duelists[1]

	engine.mu.Lock()
	queue := append([]string(nil), engine.state.DuelQueue...)
	engine.mu.Unlock()
	require.Len(t, queue, 4)

	// Spectators cannot answer.
	err := engine.SubmitAnswer(queue[2], "A", nil)
	require.Error(t, err)
	assert.Equal(t, CodeNotDuelist, AsError(err).Code)

	// B answers correct and faster; A is wrong.
	d.clock.advance(2 * time.Second)
	require.NoError(t, engine.SubmitAnswer(b, "A", nil))
	d.clock.advance(time.Second)
	require.NoError(t, engine.SubmitAnswer(a, "wrong", nil))

	waitForEvent(t, d.sink, ws.TypeDuelResult, 1)
	result := decode[ws.DuelResultPayload](t, d.sink.last(ws.TypeDuelResult))
	assert.Equal(t, b, result.WinnerID)
	assert.Equal(t, a, result.LoserID)
	assert.False(t, result.Draw)
	assert.Equal(t, 1, result.Wins[b])

	engine.mu.Lock()
	rotated := append([]string(nil), engine.state.DuelQueue...)
	engine.mu.Unlock()
	assert.Equal(t, []string{b, queue[2], queue[3], a}, rotated)

	// Winner defends against the next challenger.
	waitForEvent(t, d.sink, ws.TypeDuelQuestionStarted, 2)
	next := decode[ws.QuestionStartedPayload](t, d.sink.last(ws.TypeDuelQuestionStarted))
	assert.Equal(t, []string{b, queue[2]}, next.Duelists)

	engine.mu.Lock()
	for _, id := range engine.state.Roster {
		p := engine.state.Players[id]
		inPair := id == b || id == queue[2]
		assert.Equal(t, inPair, p.IsDueling, "dueling flags track the current pair")
	}
	engine.mu.Unlock()
}

func TestDuelDrawAndFinalWinner(t *testing.T) {
	questions := []*Question{mcQuestion(1, "A"), mcQuestion(2, "B")}
	engine, d := newTestSession(t, ModeDuel, []string{"p1", "p2", "p3"}, questions, nil)

	engine.Start()
	waitForEvent(t, d.sink, ws.TypeDuelQuestionStarted, 1)

	started := decode[ws.QuestionStartedPayload](t, d.sink.last(ws.TypeDuelQuestionStarted))
	require.Len(t, started.Duelists, 2)
	a, b := started.Duelists[0], started.Duelists[1]

	engine.mu.Lock()
	queue := append([]string(nil), engine.state.DuelQueue...)
	engine.mu.Unlock()

	// Both duelists miss: nobody wins, nobody rotates.
	require.NoError(t, engine.SubmitAnswer(a, "wrong", nil))
	require.NoError(t, engine.SubmitAnswer(b, "also wrong", nil))

	waitForEvent(t, d.sink, ws.TypeDuelResult, 1)
	result := decode[ws.DuelResultPayload](t, d.sink.last(ws.TypeDuelResult))
	assert.True(t, result.Draw)
	assert.Empty(t, result.WinnerID)
	assert.Zero(t, result.Wins[a])
	assert.Zero(t, result.Wins[b])

	engine.mu.Lock()
	afterDraw := append([]string(nil), engine.state.DuelQueue...)
	engine.mu.Unlock()
	assert.Equal(t, queue, afterDraw, "a draw leaves the queue untouched")

	// The same pair re-duels on the next question.
	waitForEvent(t, d.sink, ws.TypeDuelQuestionStarted, 2)
	rematch := decode[ws.QuestionStartedPayload](t, d.sink.last(ws.TypeDuelQuestionStarted))
	assert.Equal(t, []string{a, b}, rematch.Duelists)

	// Second round decides it: b wins the duel and, with it, the session.
	require.NoError(t, engine.SubmitAnswer(b, "B", nil))
	require.NoError(t, engine.SubmitAnswer(a, "wrong", nil))

	waitForEvent(t, d.sink, ws.TypeDuelEnded, 1)
	ended := decode[ws.DuelEndedPayload](t, d.sink.last(ws.TypeDuelEnded))
	assert.Equal(t, b, ended.WinnerID)
	assert.Equal(t, 1, ended.Wins)

	waitForEvent(t, d.sink, ws.TypeGameEnded, 1)
	assert.Less(t, d.sink.lastIndex(ws.TypeDuelEnded), d.sink.lastIndex(ws.TypeGameEnded),
		"duel-ended precedes game-ended")
}

func TestSyncCountdownPrecedesGameStart(t *testing.T) {
	engine, d := newTestSession(t, ModeArcade, []string{"p1", "p2"}, []*Question{mcQuestion(1, "A")},
		func(_ *LobbyDescriptor, d *testDeps) {
			d.cfg.SyncCountdownSeconds = 5
		})

	engine.Start()
	waitForEvent(t, d.sink, ws.TypeGameStarted, 1)

	ticks := d.sink.all(ws.TypeGameSyncing)
	require.Len(t, ticks, 5)
	for i, raw := range ticks {
		tick := decode[ws.GameSyncingPayload](t, raw)
		assert.Equal(t, 5-i, tick.Countdown)
	}

	assert.Less(t, d.sink.lastIndex(ws.TypeGameSyncing), d.sink.lastIndex(ws.TypeGameStarted),
		"all countdown ticks precede game-started")
	waitForEvent(t, d.sink, ws.TypeQuestionStarted, 1)
}

func TestDisconnectGraceAndReconnect(t *testing.T) {
	engine, d := newTestSession(t, ModeArcade, []string{"p1", "p2"}, []*Question{mcQuestion(1, "A")}, nil)

	engine.Start()
	waitForEvent(t, d.sink, ws.TypeQuestionStarted, 1)

	engine.Disconnect("p1")
	assert.Equal(t, 1, d.sink.count(ws.TypePlayerDisconnected))

	time.Sleep(5 * time.Millisecond)
	engine.Reconnect("p1")
	waitForEvent(t, d.sink, ws.TypePlayerReconnected, 1)

	time.Sleep(60 * time.Millisecond) // past the 30ms grace window
	assert.Zero(t, d.sink.count(ws.TypeDisconnectConfirmed), "reconnect cancelled the grace timer")

	engine.mu.Lock()
	assert.True(t, engine.state.Players["p1"].Connected)
	engine.mu.Unlock()
}

func TestAllDisconnectedEndsSession(t *testing.T) {
	engine, d := newTestSession(t, ModeArcade, []string{"p1", "p2"}, []*Question{mcQuestion(1, "A")}, nil)

	engine.Start()
	waitForEvent(t, d.sink, ws.TypeQuestionStarted, 1)

	engine.Disconnect("p1")
	engine.Disconnect("p2")

	waitForEvent(t, d.sink, ws.TypeDisconnectConfirmed, 2)
	waitForEvent(t, d.sink, ws.TypeGameEnded, 1)

	_, active := d.registry.Get(testLobbyCode)
	assert.False(t, active)
}

func TestEstimationPartialScore(t *testing.T) {
	q := &Question{
		ID:            1,
		Prompt:        "estimate",
		CorrectAnswer: "100",
		Kind:          answer.KindEstimation,
		Estimation: &answer.Estimation{
			CorrectValue:  100,
			Tolerance:     10,
			ToleranceType: answer.ToleranceAbsolute,
		},
	}
	engine, d := newTestSession(t, ModeArcade, []string{"p1"}, []*Question{q}, nil)

	engine.Start()
	waitForEvent(t, d.sink, ws.TypeQuestionStarted, 1)

	require.NoError(t, engine.SubmitAnswer("p1", "95", nil))

	received := decode[ws.AnswerReceivedPayload](t, d.sink.last(ws.TypeAnswerReceived))
	assert.True(t, received.IsCorrect)
	assert.InDelta(t, 0.5, received.PartialScore, 1e-9)
	assert.Equal(t, 500, received.ScoreDelta, "round(1000 * 0.5 * 1)")
	assert.Equal(t, 1, received.Streak, "partial credit advances the streak")
}

func TestPracticeWaitGate(t *testing.T) {
	q := &Question{
		ID:            1,
		Prompt:        "Welcher Fluss fließt durch Hamburg?",
		CorrectAnswer: "Elbe",
		Kind:          answer.KindFreeText,
		Hint:          "Mündet bei Cuxhaven.",
	}
	engine, d := newTestSession(t, ModePractice, []string{"p1", "p2"}, []*Question{q}, nil)

	engine.Start()
	waitForEvent(t, d.sink, ws.TypeQuestionStarted, 1)

	require.NoError(t, engine.SubmitAnswer("p1", "Weser", nil))
	wrong := decode[ws.AnswerReceivedPayload](t, d.sink.last(ws.TypeAnswerReceived))
	assert.False(t, wrong.IsCorrect)
	assert.True(t, wrong.WaitForContinue)
	assert.Equal(t, "Elbe", wrong.CorrectAnswer)
	assert.Equal(t, "Mündet bei Cuxhaven.", wrong.Hint)
	assert.Zero(t, wrong.ScoreDelta, "practice never scores")

	err := engine.SubmitAnswer("p1", "Elbe", nil)
	require.Error(t, err)
	assert.Equal(t, CodeAlreadyAnswered, AsError(err).Code)

	require.NoError(t, engine.SubmitAnswer("p2", "elbe", nil))
	assert.Zero(t, d.sink.count(ws.TypeQuestionEnded), "round waits for the continue")

	require.NoError(t, engine.PracticeContinue("p1"))
	waitForEvent(t, d.sink, ws.TypeGameEnded, 1)

	assert.Zero(t, d.sink.count(ws.TypeTimeUpdate), "practice runs without a clock")
	ended := decode[ws.GameEndedPayload](t, d.sink.last(ws.TypeGameEnded))
	for _, entry := range ended.Leaderboard {
		assert.Zero(t, entry.XPAwarded, "no XP in practice")
		assert.Zero(t, entry.Score)
	}
}

func TestRoundTimeoutDrivesTicksAndReset(t *testing.T) {
	engine, d := newTestSession(t, ModeArcade, []string{"p1", "p2"}, []*Question{mcQuestion(1, "A")},
		func(_ *LobbyDescriptor, d *testDeps) {
			d.cfg.RoundSeconds = 3
		})

	engine.Start()
	waitForEvent(t, d.sink, ws.TypeGameEnded, 1)

	updates := d.sink.all(ws.TypeTimeUpdate)
	require.Len(t, updates, 3, "one time-update per deadline second")
	assert.Equal(t, 0, decode[ws.TimeUpdatePayload](t, updates[2]).TimeRemaining)

	assert.Less(t, d.sink.lastIndex(ws.TypeTimeUpdate), d.sink.lastIndex(ws.TypeQuestionEnded),
		"no time-update after question-ended")

	results := decode[ws.QuestionResultsPayload](t, d.sink.last(ws.TypeQuestionResults))
	require.Len(t, results.Results, 2)
	for _, r := range results.Results {
		assert.False(t, r.Answered)
		assert.Zero(t, r.Streak, "non-answerers lose their streak")
		assert.Equal(t, 1.0, r.Multiplier, "non-answerers reset to x1")
	}
}

func TestSubmitAnswerGuards(t *testing.T) {
	engine, d := newTestSession(t, ModeArcade, []string{"p1", "p2"}, []*Question{mcQuestion(1, "A")}, nil)

	// No round yet.
	err := engine.SubmitAnswer("p1", "A", nil)
	require.Error(t, err)
	assert.Equal(t, CodeNoQuestion, AsError(err).Code)

	engine.Start()
	waitForEvent(t, d.sink, ws.TypeQuestionStarted, 1)

	err = engine.SubmitAnswer("ghost", "A", nil)
	require.Error(t, err)
	assert.Equal(t, CodeUnknownPlayer, AsError(err).Code)

	require.NoError(t, engine.SubmitAnswer("p1", "A", nil))
	err = engine.SubmitAnswer("p1", "A", nil)
	require.Error(t, err)
	assert.Equal(t, CodeAlreadyAnswered, AsError(err).Code)

	// A contending in-flight submission is rejected immediately.
	engine.submitMu.Lock()
	engine.inFlight["p2"] = struct{}{}
	engine.submitMu.Unlock()
	err = engine.SubmitAnswer("p2", "A", nil)
	require.Error(t, err)
	assert.Equal(t, CodeInProgress, AsError(err).Code)
	engine.submitMu.Lock()
	delete(engine.inFlight, "p2")
	engine.submitMu.Unlock()
}

func TestEndSessionSurvivesPersistenceFailure(t *testing.T) {
	engine, d := newTestSession(t, ModeArcade, []string{"p1"}, []*Question{mcQuestion(1, "A")},
		func(_ *LobbyDescriptor, d *testDeps) {
			d.store.fail = true
			d.oracle.failXP = true
		})

	engine.Start()
	waitForEvent(t, d.sink, ws.TypeQuestionStarted, 1)
	require.NoError(t, engine.SubmitAnswer("p1", "A", nil))

	waitForEvent(t, d.sink, ws.TypeGameEnded, 1)

	_, active := d.registry.Get(testLobbyCode)
	assert.False(t, active, "engine always leaves the registry")
	assert.True(t, d.lobbies.wasDeleted(testLobbyCode), "lobby deletion always attempted")
}

func TestScoreNeverNegative(t *testing.T) {
	engine, d := newTestSession(t, ModeWager, []string{"p1"}, []*Question{mcQuestion(1, "A"), mcQuestion(2, "B")}, nil)

	engine.Start()
	waitForEvent(t, d.sink, ws.TypeQuestionStarted, 1)

	all := 100
	require.NoError(t, engine.SubmitAnswer("p1", "wrong", &all))

	engine.mu.Lock()
	score := engine.state.Players["p1"].Score
	engine.mu.Unlock()
	assert.GreaterOrEqual(t, score, 0)
	assert.Equal(t, 0, score)

	waitForEvent(t, d.sink, ws.TypeQuestionStarted, 2)
	require.NoError(t, engine.SubmitAnswer("p1", "wrong", &all))

	engine.mu.Lock()
	assert.Equal(t, 0, engine.state.Players["p1"].Score)
	engine.mu.Unlock()
}

func TestMultiplierStaysWithinBounds(t *testing.T) {
	questions := make([]*Question, 12)
	for i := range questions {
		questions[i] = mcQuestion(int64(i+1), "A")
	}
	engine, d := newTestSession(t, ModeArcade, []string{"p1"}, questions, nil)

	engine.Start()
	for round := 0; round < 12; round++ {
		waitForEvent(t, d.sink, ws.TypeQuestionStarted, round+1)
		require.NoError(t, engine.SubmitAnswer("p1", "A", nil))

		received := decode[ws.AnswerReceivedPayload](t, d.sink.last(ws.TypeAnswerReceived))
		assert.LessOrEqual(t, received.Multiplier, 5.0)
		assert.GreaterOrEqual(t, received.Multiplier, 1.0)
	}
	waitForEvent(t, d.sink, ws.TypeGameEnded, 1)
}
