package game

import (
	"context"
	"encoding/json"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quizarena/backend/internal/config"
	"github.com/quizarena/backend/internal/game/answer"
	"github.com/quizarena/backend/internal/game/scoring"
	"github.com/quizarena/backend/pkg/ws"
)

// externalCallTimeout bounds every I/O call made while holding the engine
// lock. Failures are logged and never corrupt engine state.
const externalCallTimeout = 3 * time.Second

// Deps bundles the engine's collaborators. Sink, Oracle, Store, Lobbies and
// Registry are required; Scores is optional.
type Deps struct {
	Sink     EventSink
	Oracle   ModifierOracle
	Store    SessionStore
	Scores   ScoreRecorder
	Lobbies  LobbyControl
	Registry *Registry
	Config   config.Game
	Scoring  scoring.Config
	Logger   zerolog.Logger

	// Now, RNG and TickInterval are injectable for tests. TickInterval is
	// the length of one countdown second; it defaults to a real second.
	Now          func() time.Time
	RNG          *rand.Rand
	TickInterval time.Duration
}

// Engine is the per-lobby session state machine. All state mutations happen
// under mu; timer callbacks re-acquire the lock and validate the round
// generation so stale ticks are dropped.
type Engine struct {
	mu    sync.Mutex
	state *State
	rules Ruleset
	cfg   config.Game

	wagerPhaseEnabled bool

	sink     EventSink
	oracle   ModifierOracle
	store    SessionStore
	scores   ScoreRecorder
	lobbies  LobbyControl
	registry *Registry
	scorer   *scoring.Engine
	logger   zerolog.Logger

	now          func() time.Time
	rng          *rand.Rand
	tickInterval time.Duration

	clock      *RoundClock
	roundGen   int
	nextTimer  *time.Timer
	wagerTimer *time.Timer

	stopCh    chan struct{}
	stopOnce  sync.Once
	finished  bool
	destroyed bool

	// Per-(lobby, player) submission guard; a contending submission fails
	// immediately with IN_PROGRESS.
	submitMu sync.Mutex
	inFlight map[string]struct{}
}

// NewEngine builds an engine for a lobby. The caller registers it with the
// Registry and then calls Start.
func NewEngine(lobby *LobbyDescriptor, mode Mode, questions []*Question, deps Deps) *Engine {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	rng := deps.RNG
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	tick := deps.TickInterval
	if tick <= 0 {
		tick = time.Second
	}

	state := &State{
		LobbyCode:      lobby.Code,
		SessionID:      uuid.NewString(),
		Mode:           mode,
		Questions:      questions,
		TotalQuestions: len(questions),
		CurrentIndex:   -1,
		Active:         true,
		Players:        make(map[string]*Player, len(lobby.Players)),
	}
	for _, info := range lobby.Players {
		state.Players[info.ID] = &Player{
			ID:         info.ID,
			Name:       info.Name,
			Character:  info.Character,
			Level:      info.Level,
			IsHost:     info.IsHost,
			Connected:  info.Connected,
			Multiplier: 1,
		}
		state.Roster = append(state.Roster, info.ID)
	}

	e := &Engine{
		state:             state,
		rules:             rulesetFor(mode),
		cfg:               deps.Config,
		wagerPhaseEnabled: lobby.Settings.WagerPhase,
		sink:              deps.Sink,
		oracle:            deps.Oracle,
		store:             deps.Store,
		scores:            deps.Scores,
		lobbies:           deps.Lobbies,
		registry:          deps.Registry,
		scorer:            scoring.NewEngine(deps.Scoring),
		logger:            deps.Logger.With().Str("lobby_code", lobby.Code).Str("session_id", state.SessionID).Logger(),
		now:               now,
		rng:               rng,
		tickInterval:      tick,
		stopCh:            make(chan struct{}),
		inFlight:          make(map[string]struct{}),
	}
	e.rules.Init(e)
	return e
}

// SessionID returns the session identifier.
func (e *Engine) SessionID() string {
	return e.state.SessionID
}

// IsHost reports whether the player is the session host.
func (e *Engine) IsHost(playerID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.state.player(playerID)
	return p != nil && p.IsHost
}

// Start resolves modifiers, records the session, runs the sync countdown and
// begins the first round. Called once, after registry registration.
func (e *Engine) Start() {
	e.lobbies.SetStatus(e.state.LobbyCode, LobbyStatusStarting)

	ctx, cancel := context.WithTimeout(context.Background(), externalCallTimeout)
	defer cancel()

	mods := make(map[string]*scoring.Modifiers, len(e.state.Roster))
	for _, id := range e.state.Roster {
		m, err := e.oracle.PlayerModifiers(ctx, id)
		if err != nil {
			e.logger.Warn().Err(err).Str("player_id", id).Msg("modifier lookup failed, playing without modifiers")
			continue
		}
		mods[id] = m
	}

	e.mu.Lock()
	for id, m := range mods {
		e.state.Players[id].Modifiers = m
	}
	rec := SessionRecord{
		ID:            e.state.SessionID,
		LobbyCode:     e.state.LobbyCode,
		Mode:          e.state.Mode,
		QuestionCount: e.state.TotalQuestions,
		StartedAt:     e.now(),
	}
	e.mu.Unlock()

	if err := e.store.CreateSession(ctx, rec); err != nil {
		e.logger.Warn().Err(err).Msg("failed to create session record")
	}

	activeSessions.Inc()
	sessionsStarted.WithLabelValues(string(e.state.Mode)).Inc()
	e.logger.Info().Str("mode", string(e.state.Mode)).Int("questions", e.state.TotalQuestions).Msg("session starting")

	go e.runSyncCountdown()
}

func (e *Engine) runSyncCountdown() {
	for i := e.cfg.SyncCountdownSeconds; i > 0; i-- {
		e.emitUnlocked(ws.TypeGameSyncing, ws.GameSyncingPayload{
			LobbyCode: e.state.LobbyCode,
			Countdown: i,
		})
		select {
		case <-time.After(e.tickInterval):
		case <-e.stopCh:
			return
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return
	}

	e.lobbies.SetStatus(e.state.LobbyCode, LobbyStatusPlaying)
	e.emit(ws.TypeGameStarted, ws.GameStartedPayload{
		LobbyCode:      e.state.LobbyCode,
		SessionID:      e.state.SessionID,
		GameMode:       string(e.state.Mode),
		TotalQuestions: e.state.TotalQuestions,
	})
	e.startNextQuestionLocked()
}

// SubmitAnswer processes one answer submission for the current question.
func (e *Engine) SubmitAnswer(playerID, submitted string, wagerPercent *int) error {
	e.submitMu.Lock()
	if _, busy := e.inFlight[playerID]; busy {
		e.submitMu.Unlock()
		return ErrInProgress
	}
	e.inFlight[playerID] = struct{}{}
	e.submitMu.Unlock()
	defer func() {
		e.submitMu.Lock()
		delete(e.inFlight, playerID)
		e.submitMu.Unlock()
	}()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.destroyed || !e.state.Active {
		return ErrNotActive
	}
	q := e.state.Current
	if q == nil || e.state.WagerPhaseActive {
		return ErrNoQuestion
	}
	p := e.state.player(playerID)
	if p == nil {
		return ErrUnknownPlayer
	}
	if p.Eliminated {
		return ErrEliminated
	}
	if e.state.Mode == ModeDuel && !p.IsDueling {
		return ErrNotDuelist
	}
	if p.HasAnswered || p.AwaitingContinue {
		return ErrAlreadyAnswered
	}

	d := &decision{}
	if e.state.Mode == ModeWager {
		switch {
		case wagerPercent != nil:
			if *wagerPercent < 0 || *wagerPercent > 100 {
				return ErrInvalidWager
			}
			d.wagerPercent = *wagerPercent
		case p.Wager != nil:
			d.wagerPercent = *p.Wager
		}
	}

	elapsed := int(e.now().Sub(e.state.QuestionStartedAt) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}

	check := answer.Check(submitted, q.grading())
	d.check = check

	p.HasAnswered = true
	p.Submitted = true
	p.CurrentAnswer = submitted
	p.CurrentAnswerCorrect = check.Correct
	p.CurrentPartial = check.Partial
	p.AnswerElapsedSec = elapsed

	if e.state.Mode != ModePractice {
		in := scoring.Input{
			ElapsedSeconds:  elapsed,
			DeadlineSeconds: e.rules.DeadlineSeconds(e.cfg),
			Multiplier:      p.Multiplier,
			Streak:          p.Streak,
			Modifiers:       p.Modifiers,
			Context: scoring.Context{
				QuestionIndex:  e.state.CurrentIndex,
				TotalQuestions: e.state.TotalQuestions,
				WrongStreak:    p.WrongStreak,
				FreeWrongUsed:  p.FreeWrongUsed,
			},
		}
		var res scoring.Result
		switch {
		case check.Correct && check.Partial >= 1:
			res = e.scorer.CalculateScore(true, in)
		case check.Partial > 0:
			res = e.scorer.CalculatePartialScore(check.Partial, in)
		default:
			res = e.scorer.CalculateScore(false, in)
		}
		d.score = res
		d.delta = res.Points
	}

	e.rules.OnAnswer(e, p, d)

	// The mode hooks have had their say; apply the final delta exactly once.
	// The delta reported outward is the applied state change, post-clamp.
	oldScore := p.Score
	newScore := oldScore + d.delta
	if newScore < 0 {
		newScore = 0
	}
	p.Score = newScore
	d.delta = newScore - oldScore
	p.RoundDelta = d.delta

	if e.state.Mode != ModePractice {
		p.Streak = d.score.NewStreak
		p.Multiplier = d.score.NewMultiplier
		if d.score.FreeWrongUsed {
			p.FreeWrongUsed++
		}
	}
	if check.Correct {
		p.CorrectCount++
		p.WrongStreak = 0
	} else {
		p.WrongCount++
		p.WrongStreak++
	}
	answersTotal.WithLabelValues(answerResultLabel(check)).Inc()

	e.emit(ws.TypeAnswerReceived, ws.AnswerReceivedPayload{
		LobbyCode:       e.state.LobbyCode,
		PlayerID:        p.ID,
		IsCorrect:       check.Correct,
		PartialScore:    check.Partial,
		Points:          d.delta,
		ScoreDelta:      d.delta,
		NewScore:        p.Score,
		Streak:          p.Streak,
		Multiplier:      p.Multiplier,
		IsFirstCorrect:  d.isFirstCorrect,
		LivesRemaining:  d.livesRemaining,
		WagerAmount:     d.wagerAmount,
		WaitForContinue: d.waitForContinue,
		CorrectAnswer:   d.correctAnswer,
		Hint:            d.hint,
	})

	e.logger.Debug().
		Str("player_id", p.ID).
		Int("question_index", e.state.CurrentIndex).
		Bool("correct", check.Correct).
		Int("delta", d.delta).
		Msg("answer accepted")

	if !d.waitForContinue && e.allAnsweredLocked() {
		e.endCurrentQuestionLocked()
	}
	return nil
}

// SubmitWager records a wager during an open wager phase. The percentage is
// clamped to [0, 100].
func (e *Engine) SubmitWager(playerID string, pct int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.destroyed || !e.state.Active {
		return ErrNotActive
	}
	if !e.state.WagerPhaseActive {
		return ErrNoWagerPhase
	}
	p := e.state.player(playerID)
	if p == nil {
		return ErrUnknownPlayer
	}

	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	w := pct
	p.Wager = &w

	e.emit(ws.TypeWagerSubmitted, ws.WagerSubmittedPayload{
		LobbyCode:    e.state.LobbyCode,
		PlayerID:     playerID,
		WagerPercent: pct,
	})

	for _, id := range e.state.Roster {
		if e.state.Players[id].Wager == nil {
			return nil
		}
	}
	e.closeWagerPhaseLocked()
	return nil
}

// PracticeContinue acknowledges a wrong practice answer and unblocks the
// round for this player.
func (e *Engine) PracticeContinue(playerID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.destroyed || !e.state.Active || e.state.Mode != ModePractice {
		return ErrNotActive
	}
	if e.state.Current == nil {
		return ErrNoQuestion
	}
	p := e.state.player(playerID)
	if p == nil {
		return ErrUnknownPlayer
	}
	if !p.AwaitingContinue {
		if p.HasAnswered {
			return ErrAlreadyAnswered
		}
		return ErrNoQuestion
	}

	p.AwaitingContinue = false
	p.HasAnswered = true

	if e.allAnsweredLocked() {
		e.endCurrentQuestionLocked()
	}
	return nil
}

// Disconnect announces a dropped player and arms the grace timer. If the
// player does not reconnect within the grace window, the disconnect is
// confirmed and, when nobody is left, the session ends.
func (e *Engine) Disconnect(playerID string) {
	e.mu.Lock()
	if e.destroyed || e.state.player(playerID) == nil {
		e.mu.Unlock()
		return
	}
	lobby := e.state.LobbyCode
	grace := e.cfg.DisconnectGrace
	e.emit(ws.TypePlayerDisconnected, ws.PlayerConnectionPayload{
		LobbyCode: lobby,
		PlayerID:  playerID,
	})
	e.mu.Unlock()

	e.registry.ScheduleGrace(lobby, playerID, grace, func() {
		e.confirmDisconnect(playerID)
	})
}

func (e *Engine) confirmDisconnect(playerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.destroyed {
		return
	}
	p := e.state.player(playerID)
	if p == nil {
		return
	}
	p.Connected = false

	ctx, cancel := context.WithTimeout(context.Background(), externalCallTimeout)
	defer cancel()
	err := e.store.RecordResult(ctx, ResultRecord{
		SessionID:    e.state.SessionID,
		PlayerID:     p.ID,
		Score:        p.Score,
		CorrectCount: p.CorrectCount,
		WrongCount:   p.WrongCount,
		FinalStreak:  p.Streak,
		Disconnected: true,
	})
	if err != nil {
		e.logger.Warn().Err(err).Str("player_id", playerID).Msg("failed to persist disconnect result")
	}

	e.emit(ws.TypeDisconnectConfirmed, ws.PlayerConnectionPayload{
		LobbyCode: e.state.LobbyCode,
		PlayerID:  playerID,
	})

	for _, id := range e.state.Roster {
		if e.state.Players[id].Connected {
			return
		}
	}
	e.logger.Info().Msg("all players disconnected, ending session")
	e.endSessionLocked()
}

// Reconnect restores a player inside the grace window.
func (e *Engine) Reconnect(playerID string) {
	e.registry.CancelGrace(e.state.LobbyCode, playerID)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.destroyed {
		return
	}
	p := e.state.player(playerID)
	if p == nil {
		return
	}
	p.Connected = true
	e.emit(ws.TypePlayerReconnected, ws.PlayerConnectionPayload{
		LobbyCode: e.state.LobbyCode,
		PlayerID:  playerID,
	})
}

// Abort terminates the session immediately (host left or lobby torn down).
func (e *Engine) Abort() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.endSessionLocked()
}

// Shutdown tears the engine down without emissions. Used by CleanupAll.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.destroyed {
		return
	}
	e.finished = true
	e.destroyed = true
	e.state.Active = false
	e.cancelTimersLocked()
	e.stopOnce.Do(func() { close(e.stopCh) })
	activeSessions.Dec()
}

func (e *Engine) startNextQuestionLocked() {
	if e.destroyed {
		return
	}
	if e.state.CurrentIndex >= e.state.TotalQuestions-1 {
		e.endSessionLocked()
		return
	}

	e.state.CurrentIndex++
	q := e.state.Questions[e.state.CurrentIndex]
	e.state.Current = q

	if len(q.Options) > 1 {
		e.rng.Shuffle(len(q.Options), func(i, j int) {
			q.Options[i], q.Options[j] = q.Options[j], q.Options[i]
		})
	}

	for _, id := range e.state.Roster {
		p := e.state.Players[id]
		p.HasAnswered = false
		p.Submitted = false
		p.CurrentAnswer = ""
		p.CurrentAnswerCorrect = false
		p.CurrentPartial = 0
		p.RoundDelta = 0
		p.AnswerElapsedSec = 0
		p.AwaitingContinue = false
		p.IsDueling = false
		p.Spectating = false
		p.Wager = nil
	}

	if !e.rules.OnRoundStart(e) {
		return
	}

	if e.state.Mode == ModeWager && e.wagerPhaseEnabled {
		e.openWagerPhaseLocked()
		return
	}
	e.beginRoundLocked()
}

func (e *Engine) openWagerPhaseLocked() {
	e.state.WagerPhaseActive = true

	deadline := time.Duration(e.cfg.WagerPhaseSeconds) * e.tickInterval
	e.wagerTimer = time.AfterFunc(deadline, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.destroyed || !e.state.WagerPhaseActive {
			return
		}
		e.closeWagerPhaseLocked()
	})
}

func (e *Engine) closeWagerPhaseLocked() {
	if e.wagerTimer != nil {
		e.wagerTimer.Stop()
		e.wagerTimer = nil
	}
	for _, id := range e.state.Roster {
		p := e.state.Players[id]
		if p.Wager == nil {
			zero := 0
			p.Wager = &zero
		}
	}
	e.state.WagerPhaseActive = false
	e.beginRoundLocked()
}

// beginRoundLocked stamps the round start, emits question-started and arms
// the round clock.
func (e *Engine) beginRoundLocked() {
	q := e.state.Current
	e.state.QuestionStartedAt = e.now()

	deadline := e.rules.DeadlineSeconds(e.cfg)
	e.state.TimeRemaining = deadline

	e.roundGen++
	gen := e.roundGen

	payload := ws.QuestionStartedPayload{
		LobbyCode:      e.state.LobbyCode,
		QuestionIndex:  e.state.CurrentIndex,
		TotalQuestions: e.state.TotalQuestions,
		QuestionID:     q.ID,
		Prompt:         q.Prompt,
		Options:        q.Options,
		Kind:           string(q.Kind),
		Category:       q.Category,
		TimeLimit:      deadline,
	}
	msgType := ws.TypeQuestionStarted
	if e.state.Mode == ModeDuel {
		msgType = ws.TypeDuelQuestionStarted
		payload.Duelists = append([]string(nil), e.state.CurrentDuelPair...)
	}
	e.emit(msgType, payload)

	if deadline > 0 {
		e.clock = NewRoundClock(deadline, e.tickInterval, RoundClockHooks{
			OnTick:    func(remaining int) { e.handleTick(gen, remaining) },
			OnWarning: func(remaining int) { e.handleWarning(gen, remaining) },
			OnExpire:  func() { e.handleExpire(gen) },
		})
		e.clock.Start()
	}
}

func (e *Engine) handleTick(gen, remaining int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.destroyed || gen != e.roundGen || e.state.Current == nil {
		return
	}
	e.state.TimeRemaining = remaining
	e.emit(ws.TypeTimeUpdate, ws.TimeUpdatePayload{
		LobbyCode:     e.state.LobbyCode,
		TimeRemaining: remaining,
	})
}

func (e *Engine) handleWarning(gen, remaining int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.destroyed || gen != e.roundGen || e.state.Current == nil {
		return
	}
	e.emit(ws.TypeTimeWarning, ws.TimeUpdatePayload{
		LobbyCode:     e.state.LobbyCode,
		TimeRemaining: remaining,
	})
}

func (e *Engine) handleExpire(gen int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.destroyed || gen != e.roundGen {
		return
	}
	e.endCurrentQuestionLocked()
}

func (e *Engine) allAnsweredLocked() bool {
	for _, id := range e.state.Roster {
		if !e.state.Players[id].HasAnswered {
			return false
		}
	}
	return true
}

// endCurrentQuestionLocked resolves the round, emits the result events, and
// either ends the session or schedules the next question. The clock is
// cancelled and the round generation bumped before anything is emitted, so
// no time-update can follow question-ended.
func (e *Engine) endCurrentQuestionLocked() {
	q := e.state.Current
	if q == nil {
		return
	}

	e.roundGen++
	if e.clock != nil {
		e.clock.Cancel()
		e.clock = nil
	}

	e.rules.OnRoundEnd(e)
	if e.finished {
		return
	}

	results := make([]ws.PlayerRoundResult, 0, len(e.state.Roster))
	scores := make(map[string]int, len(e.state.Roster))
	for _, id := range e.state.Roster {
		p := e.state.Players[id]
		if !p.Submitted && !p.Eliminated && !p.Spectating {
			p.Streak = 0
			p.Multiplier = 1
		}
		results = append(results, ws.PlayerRoundResult{
			PlayerID:   p.ID,
			Name:       p.Name,
			Answer:     p.CurrentAnswer,
			Answered:   p.Submitted,
			IsCorrect:  p.CurrentAnswerCorrect,
			Partial:    p.CurrentPartial,
			ScoreDelta: p.RoundDelta,
			Score:      p.Score,
			Streak:     p.Streak,
			Multiplier: p.Multiplier,
			ElapsedSec: p.AnswerElapsedSec,
		})
		scores[p.ID] = p.Score
	}

	e.emit(ws.TypeQuestionResults, ws.QuestionResultsPayload{
		LobbyCode:     e.state.LobbyCode,
		QuestionIndex: e.state.CurrentIndex,
		CorrectAnswer: q.CorrectAnswer,
		Results:       results,
	})
	e.emit(ws.TypeQuestionEnded, ws.QuestionEndedPayload{
		LobbyCode:     e.state.LobbyCode,
		QuestionIndex: e.state.CurrentIndex,
		CorrectAnswer: q.CorrectAnswer,
		Scores:        scores,
	})

	e.state.Current = nil
	e.state.TimeRemaining = 0

	if e.state.Mode == ModeSurvival {
		if (survivalRules{}).resolveIfDecided(e) {
			return
		}
	}

	if e.state.CurrentIndex >= e.state.TotalQuestions-1 {
		e.endSessionLocked()
		return
	}

	e.nextTimer = time.AfterFunc(e.cfg.NextQuestionDelay, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.destroyed {
			return
		}
		e.nextTimer = nil
		e.startNextQuestionLocked()
	})
}

// endSessionLocked finalizes the session: end-game bonuses, XP, persistence,
// leaderboards, final emissions, and teardown. Every external call is
// independent and non-fatal; registry removal and lobby deletion always run.
func (e *Engine) endSessionLocked() {
	if e.finished {
		return
	}
	e.finished = true
	e.state.Active = false
	e.cancelTimersLocked()

	e.rules.OnSessionEnd(e)

	ctx, cancel := context.WithTimeout(context.Background(), externalCallTimeout)
	defer cancel()

	stats := make(map[string]scoring.Stats, len(e.state.Roster))
	for _, id := range e.state.Roster {
		p := e.state.Players[id]
		st := scoring.Stats{
			CorrectCount: p.CorrectCount,
			WrongCount:   p.WrongCount,
			FinalStreak:  p.Streak,
		}
		stats[id] = st
		p.Score = e.scorer.ApplyEndGameBonuses(p.Score, p.Modifiers, st)
	}

	xps := make(map[string]int, len(e.state.Roster))
	awards := make(map[string]XPAward, len(e.state.Roster))
	if e.state.Mode != ModePractice {
		for _, id := range e.state.Roster {
			p := e.state.Players[id]
			baseXP := p.Score/10 + p.CorrectCount*10
			xp := e.scorer.CalculateModifiedXP(baseXP, p.Modifiers, stats[id])
			award, err := e.oracle.AwardXP(ctx, id, xp)
			if err != nil {
				e.logger.Warn().Err(err).Str("player_id", id).Msg("xp award failed")
				continue
			}
			xps[id] = xp
			awards[id] = award
			if award.LevelUp {
				p.Level = award.NewLevel
			}
		}
	}

	scores := make(map[string]int, len(e.state.Roster))
	for _, id := range e.state.Roster {
		scores[id] = e.state.Players[id].Score
	}
	if err := e.store.CloseSession(ctx, e.state.SessionID, scores); err != nil {
		e.logger.Warn().Err(err).Msg("failed to close session record")
	}
	for _, id := range e.state.Roster {
		p := e.state.Players[id]
		err := e.store.RecordResult(ctx, ResultRecord{
			SessionID:    e.state.SessionID,
			PlayerID:     p.ID,
			Score:        p.Score,
			CorrectCount: p.CorrectCount,
			WrongCount:   p.WrongCount,
			FinalStreak:  p.Streak,
			XPAwarded:    xps[id],
			Disconnected: !p.Connected,
		})
		if err != nil {
			e.logger.Warn().Err(err).Str("player_id", id).Msg("failed to record result")
		}
	}

	if e.scores != nil && e.state.Mode != ModePractice {
		for _, id := range e.state.Roster {
			p := e.state.Players[id]
			err := e.scores.RecordScore(ctx, string(e.state.Mode), ScoreEntry{
				PlayerID: p.ID,
				Name:     p.Name,
				Score:    p.Score,
			})
			if err != nil {
				e.logger.Warn().Err(err).Str("player_id", id).Msg("failed to record leaderboard score")
			}
		}
	}

	ranked := make([]*Player, 0, len(e.state.Roster))
	for _, id := range e.state.Roster {
		ranked = append(ranked, e.state.Players[id])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	leaderboard := make([]ws.LeaderboardEntry, len(ranked))
	for i, p := range ranked {
		award := awards[p.ID]
		leaderboard[i] = ws.LeaderboardEntry{
			Rank:          i + 1,
			PlayerID:      p.ID,
			Name:          p.Name,
			Score:         p.Score,
			CorrectCount:  p.CorrectCount,
			WrongCount:    p.WrongCount,
			XPAwarded:     xps[p.ID],
			LevelUp:       award.LevelUp,
			OldLevel:      award.OldLevel,
			NewLevel:      award.NewLevel,
			UnlockedPerks: award.NewlyUnlockedPerks,
		}
	}

	e.emit(ws.TypeGameEnded, ws.GameEndedPayload{
		LobbyCode:   e.state.LobbyCode,
		SessionID:   e.state.SessionID,
		GameMode:    string(e.state.Mode),
		Leaderboard: leaderboard,
	})
	for _, p := range ranked {
		award, ok := awards[p.ID]
		if !ok || !award.LevelUp {
			continue
		}
		e.emit(ws.TypePlayerLevelUp, ws.PlayerLevelUpPayload{
			LobbyCode:     e.state.LobbyCode,
			PlayerID:      p.ID,
			OldLevel:      award.OldLevel,
			NewLevel:      award.NewLevel,
			UnlockedPerks: award.NewlyUnlockedPerks,
		})
	}
	e.emit(ws.TypeGameOver, ws.GameOverPayload{
		LobbyCode: e.state.LobbyCode,
		Scores:    scores,
	})

	e.logger.Info().Msg("session ended")
	activeSessions.Dec()

	e.destroyed = true
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.registry.Destroy(e.state.LobbyCode)
	e.lobbies.Delete(e.state.LobbyCode)
}

func (e *Engine) cancelTimersLocked() {
	e.roundGen++
	if e.clock != nil {
		e.clock.Cancel()
		e.clock = nil
	}
	if e.nextTimer != nil {
		e.nextTimer.Stop()
		e.nextTimer = nil
	}
	if e.wagerTimer != nil {
		e.wagerTimer.Stop()
		e.wagerTimer = nil
	}
	e.state.WagerPhaseActive = false
}

func (e *Engine) emit(msgType string, payload any) {
	e.emitUnlocked(msgType, payload)
}

func (e *Engine) emitUnlocked(msgType string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		e.logger.Error().Err(err).Str("type", msgType).Msg("failed to marshal event payload")
		return
	}
	e.sink.Emit(e.state.LobbyCode, ws.Message{Type: msgType, Payload: raw})
}

func answerResultLabel(r answer.Result) string {
	switch {
	case r.Correct && r.Partial >= 1:
		return "correct"
	case r.Partial > 0:
		return "partial"
	default:
		return "wrong"
	}
}
