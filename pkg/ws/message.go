package ws

import "encoding/json"

// MessageType constants for the WebSocket protocol.
const (
	// Client -> Server
	TypeJoinLobby        = "join-lobby"
	TypeLeaveLobby       = "leave-lobby"
	TypePlayerReady      = "player-ready"
	TypeStartGame        = "start-game"
	TypeSubmitAnswer     = "submit-answer"
	TypeSubmitWager      = "submit-wager"
	TypePracticeContinue = "practice-continue"

	// Server -> Client
	TypeConnected             = "connected"
	TypeJoinSuccess           = "join-success"
	TypeJoinError             = "join-error"
	TypeLeaveSuccess          = "leave-success"
	TypeLeaveError            = "leave-error"
	TypeLobbyUpdated          = "lobby-updated"
	TypeLobbyDeleted          = "lobby-deleted"
	TypeGameSyncing           = "game-syncing"
	TypeGameStarted           = "game-started"
	TypeQuestionStarted       = "question-started"
	TypeDuelQuestionStarted   = "duel-question-started"
	TypeTimeUpdate            = "time-update"
	TypeTimeWarning           = "time-warning"
	TypeAnswerReceived        = "answer-received"
	TypeWagerSubmitted        = "wager-submitted"
	TypeLivesUpdated          = "lives-updated"
	TypePlayerEliminated      = "player-eliminated"
	TypeSurvivalWinner        = "survival-winner"
	TypeDuelResult            = "duel-result"
	TypeDuelEnded             = "duel-ended"
	TypeQuestionResults       = "question-results"
	TypeQuestionEnded         = "question-ended"
	TypeGameEnded             = "game-ended"
	TypeGameOver              = "game-over"
	TypePlayerLevelUp         = "player-level-up"
	TypePlayerDisconnected    = "player-disconnected"
	TypeDisconnectConfirmed   = "player-disconnect-confirmed"
	TypePlayerReconnected     = "player-reconnected"
	TypeError                 = "error"
)

// Message wraps all WebSocket payloads with a type tag.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client Messages (incoming)

type JoinLobbyPayload struct {
	LobbyCode string `json:"lobbyCode"`
	Password  string `json:"password,omitempty"`
	Character string `json:"character,omitempty"`
}

type LeaveLobbyPayload struct {
	LobbyCode string `json:"lobbyCode"`
}

type PlayerReadyPayload struct {
	LobbyCode string `json:"lobbyCode"`
	IsReady   bool   `json:"isReady"`
}

type StartGamePayload struct {
	LobbyCode string `json:"lobbyCode"`
}

type SubmitAnswerPayload struct {
	LobbyCode    string `json:"lobbyCode"`
	Answer       string `json:"answer"`
	WagerPercent *int   `json:"wagerPercent,omitempty"`
}

type SubmitWagerPayload struct {
	LobbyCode    string `json:"lobbyCode"`
	WagerPercent int    `json:"wagerPercent"`
}

type PracticeContinuePayload struct {
	LobbyCode string `json:"lobbyCode"`
}

// Server Messages (outgoing)

type ConnectedPayload struct {
	PlayerID string `json:"playerId"`
}

type LobbyPlayer struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Character string `json:"character,omitempty"`
	Level     int    `json:"level"`
	IsHost    bool   `json:"isHost"`
	IsReady   bool   `json:"isReady"`
	Connected bool   `json:"connected"`
}

type LobbyStatePayload struct {
	LobbyCode      string        `json:"lobbyCode"`
	Name           string        `json:"name,omitempty"`
	HostID         string        `json:"hostId"`
	Players        []LobbyPlayer `json:"players"`
	MaxPlayers     int           `json:"maxPlayers"`
	Status         string        `json:"status"`
	GameMode       string        `json:"gameMode"`
	SlotsRemaining int           `json:"slotsRemaining"`
}

type LobbyDeletedPayload struct {
	LobbyCode string `json:"lobbyCode"`
}

type GameSyncingPayload struct {
	LobbyCode string `json:"lobbyCode"`
	Countdown int    `json:"countdown"`
}

type GameStartedPayload struct {
	LobbyCode      string `json:"lobbyCode"`
	SessionID      string `json:"sessionId"`
	GameMode       string `json:"gameMode"`
	TotalQuestions int    `json:"totalQuestions"`
}

type QuestionStartedPayload struct {
	LobbyCode      string   `json:"lobbyCode"`
	QuestionIndex  int      `json:"questionIndex"`
	TotalQuestions int      `json:"totalQuestions"`
	QuestionID     int64    `json:"questionId"`
	Prompt         string   `json:"prompt"`
	Options        []string `json:"options,omitempty"`
	Kind           string   `json:"kind"`
	Category       string   `json:"category,omitempty"`
	TimeLimit      int      `json:"timeLimit"`
	Duelists       []string `json:"duelists,omitempty"`
}

type TimeUpdatePayload struct {
	LobbyCode     string `json:"lobbyCode"`
	TimeRemaining int    `json:"timeRemaining"`
}

type AnswerReceivedPayload struct {
	LobbyCode    string  `json:"lobbyCode"`
	PlayerID     string  `json:"playerId"`
	IsCorrect    bool    `json:"isCorrect"`
	PartialScore float64 `json:"partialScore"`
	// Points is the legacy field; ScoreDelta/NewScore are authoritative.
	Points     int     `json:"points"`
	ScoreDelta int     `json:"scoreDelta"`
	NewScore   int     `json:"newScore"`
	Streak     int     `json:"streak"`
	Multiplier float64 `json:"multiplier"`

	IsFirstCorrect  *bool  `json:"isFirstCorrect,omitempty"`
	LivesRemaining  *int   `json:"livesRemaining,omitempty"`
	WagerAmount     *int   `json:"wagerAmount,omitempty"`
	WaitForContinue bool   `json:"waitForContinue,omitempty"`
	CorrectAnswer   string `json:"correctAnswer,omitempty"`
	Hint            string `json:"hint,omitempty"`
}

type WagerSubmittedPayload struct {
	LobbyCode    string `json:"lobbyCode"`
	PlayerID     string `json:"playerId"`
	WagerPercent int    `json:"wagerPercent"`
}

type LivesUpdatedPayload struct {
	LobbyCode string `json:"lobbyCode"`
	PlayerID  string `json:"playerId"`
	Lives     int    `json:"lives"`
}

type PlayerEliminatedPayload struct {
	LobbyCode string `json:"lobbyCode"`
	PlayerID  string `json:"playerId"`
}

type SurvivalWinnerPayload struct {
	LobbyCode string `json:"lobbyCode"`
	PlayerID  string `json:"playerId"`
	Name      string `json:"name"`
}

type DuelResultPayload struct {
	LobbyCode string         `json:"lobbyCode"`
	WinnerID  string         `json:"winnerId,omitempty"`
	LoserID   string         `json:"loserId,omitempty"`
	Draw      bool           `json:"draw"`
	Wins      map[string]int `json:"wins"`
}

type DuelEndedPayload struct {
	LobbyCode string `json:"lobbyCode"`
	WinnerID  string `json:"winnerId"`
	Name      string `json:"name"`
	Wins      int    `json:"wins"`
}

type PlayerRoundResult struct {
	PlayerID   string  `json:"playerId"`
	Name       string  `json:"name"`
	Answer     string  `json:"answer"`
	Answered   bool    `json:"answered"`
	IsCorrect  bool    `json:"isCorrect"`
	Partial    float64 `json:"partial"`
	ScoreDelta int     `json:"scoreDelta"`
	Score      int     `json:"score"`
	Streak     int     `json:"streak"`
	Multiplier float64 `json:"multiplier"`
	ElapsedSec int     `json:"elapsedSeconds"`
}

type QuestionResultsPayload struct {
	LobbyCode     string              `json:"lobbyCode"`
	QuestionIndex int                 `json:"questionIndex"`
	CorrectAnswer string              `json:"correctAnswer"`
	Results       []PlayerRoundResult `json:"results"`
}

type QuestionEndedPayload struct {
	LobbyCode     string         `json:"lobbyCode"`
	QuestionIndex int            `json:"questionIndex"`
	CorrectAnswer string         `json:"correctAnswer"`
	Scores        map[string]int `json:"scores"`
}

type LeaderboardEntry struct {
	Rank          int      `json:"rank"`
	PlayerID      string   `json:"playerId"`
	Name          string   `json:"name"`
	Score         int      `json:"score"`
	CorrectCount  int      `json:"correctCount"`
	WrongCount    int      `json:"wrongCount"`
	XPAwarded     int      `json:"xpAwarded"`
	LevelUp       bool     `json:"levelUp"`
	OldLevel      int      `json:"oldLevel,omitempty"`
	NewLevel      int      `json:"newLevel,omitempty"`
	UnlockedPerks []string `json:"newlyUnlockedPerks,omitempty"`
}

type GameEndedPayload struct {
	LobbyCode   string             `json:"lobbyCode"`
	SessionID   string             `json:"sessionId"`
	GameMode    string             `json:"gameMode"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

// GameOverPayload is the legacy flat end-of-game event.
type GameOverPayload struct {
	LobbyCode string         `json:"lobbyCode"`
	Scores    map[string]int `json:"scores"`
}

type PlayerLevelUpPayload struct {
	LobbyCode     string   `json:"lobbyCode"`
	PlayerID      string   `json:"playerId"`
	OldLevel      int      `json:"oldLevel"`
	NewLevel      int      `json:"newLevel"`
	UnlockedPerks []string `json:"newlyUnlockedPerks,omitempty"`
}

type PlayerConnectionPayload struct {
	LobbyCode string `json:"lobbyCode"`
	PlayerID  string `json:"playerId"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
