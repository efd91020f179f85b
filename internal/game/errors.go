package game

// Error codes returned to the originating caller. They are never broadcast.
const (
	CodeNotHost         = "NOT_HOST"
	CodeAlreadyActive   = "ALREADY_ACTIVE"
	CodeNotActive       = "NOT_ACTIVE"
	CodeNoQuestion      = "NO_QUESTION"
	CodeUnknownPlayer   = "UNKNOWN_PLAYER"
	CodeAlreadyAnswered = "ALREADY_ANSWERED"
	CodeInProgress      = "IN_PROGRESS"
	CodeNotDuelist      = "NOT_DUELIST"
	CodeEliminated      = "ELIMINATED"
	CodeInvalidWager    = "INVALID_WAGER"
	CodeNoWagerPhase    = "NO_WAGER_PHASE"
	CodeInternal        = "INTERNAL"
)

// Error is a typed engine error with a stable code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrNotHost         = &Error{Code: CodeNotHost, Message: "only the host can start the game"}
	ErrAlreadyActive   = &Error{Code: CodeAlreadyActive, Message: "a session is already active for this lobby"}
	ErrNotActive       = &Error{Code: CodeNotActive, Message: "no active session for this lobby"}
	ErrNoQuestion      = &Error{Code: CodeNoQuestion, Message: "no question is currently active"}
	ErrUnknownPlayer   = &Error{Code: CodeUnknownPlayer, Message: "player is not part of this session"}
	ErrAlreadyAnswered = &Error{Code: CodeAlreadyAnswered, Message: "answer already submitted for this question"}
	ErrInProgress      = &Error{Code: CodeInProgress, Message: "a submission is already in progress"}
	ErrNotDuelist      = &Error{Code: CodeNotDuelist, Message: "only the active duelists may answer"}
	ErrEliminated      = &Error{Code: CodeEliminated, Message: "eliminated players cannot answer"}
	ErrInvalidWager    = &Error{Code: CodeInvalidWager, Message: "wager must be between 0 and 100 percent"}
	ErrNoWagerPhase    = &Error{Code: CodeNoWagerPhase, Message: "no wager phase is open"}
	ErrInternal        = &Error{Code: CodeInternal, Message: "internal error"}
)

// AsError extracts the typed error, wrapping anything else as INTERNAL.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return &Error{Code: CodeInternal, Message: err.Error()}
}
