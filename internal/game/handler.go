package game

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/quizarena/backend/internal/auth"
	"github.com/quizarena/backend/pkg/ws"
)

// LobbyManager is the full lobby surface the WebSocket handler drives. The
// manager broadcasts lobby-updated and lobby-deleted itself.
type LobbyManager interface {
	LobbyControl
	Join(lobbyCode, password string, p LobbyPlayerInfo) (*LobbyDescriptor, error)
	Leave(lobbyCode, playerID string) error
	SetReady(lobbyCode, playerID string, ready bool) error
	SetConnected(lobbyCode, playerID string, connected bool)
	LobbiesOf(playerID string) []string
}

// HubSink adapts the WebSocket hub to the engine's EventSink.
type HubSink struct {
	hub    *ws.Hub
	logger zerolog.Logger
}

// NewHubSink wraps a hub as an EventSink.
func NewHubSink(hub *ws.Hub, logger zerolog.Logger) *HubSink {
	return &HubSink{hub: hub, logger: logger}
}

// Emit broadcasts an event to a lobby. Undeliverable connections are not an
// engine concern; they are logged and dropped.
func (s *HubSink) Emit(lobbyCode string, msg ws.Message) {
	if err := s.hub.BroadcastToLobby(lobbyCode, msg); err != nil {
		s.logger.Debug().Err(err).Str("lobby_code", lobbyCode).Str("type", msg.Type).Msg("broadcast incomplete")
	}
	// A deleted lobby has no further events; release the broadcast group.
	if msg.Type == ws.TypeLobbyDeleted {
		s.hub.DropLobby(lobbyCode)
	}
}

// Handler routes WebSocket messages to the lobby manager and game service.
type Handler struct {
	service *Service
	lobbies LobbyManager
	hub     *ws.Hub
	tokens  *auth.TokenManager
	logger  zerolog.Logger
}

// NewHandler creates a game WebSocket handler.
func NewHandler(service *Service, lobbies LobbyManager, hub *ws.Hub, tokens *auth.TokenManager, logger zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		lobbies: lobbies,
		hub:     hub,
		tokens:  tokens,
		logger:  logger,
	}
}

// HandleConnection runs a player's connection until the peer goes away.
func (h *Handler) HandleConnection(conn *websocket.Conn, claims *auth.Claims) {
	playerID := claims.PlayerID
	wsConn := ws.NewConnection(conn, h.logger)
	wasReconnect := h.hub.RegisterConnection(playerID, wsConn)

	go wsConn.WritePump()

	h.send(playerID, ws.TypeConnected, ws.ConnectedPayload{PlayerID: playerID})

	if wasReconnect {
		for _, code := range h.lobbies.LobbiesOf(playerID) {
			h.hub.JoinLobby(code, playerID)
			h.lobbies.SetConnected(code, playerID, true)
			h.service.Reconnect(code, playerID)
		}
	}

	wsConn.ReadPump(func(msg ws.Message) error {
		return h.handleMessage(context.Background(), claims, msg)
	})

	h.hub.UnregisterConnection(playerID, wsConn)

	// A replacement connection means the player already reconnected; only a
	// real drop starts the grace flow.
	if h.hub.IsConnected(playerID) {
		return
	}
	for _, code := range h.lobbies.LobbiesOf(playerID) {
		h.lobbies.SetConnected(code, playerID, false)
		h.service.Disconnect(code, playerID)
	}
}

func (h *Handler) handleMessage(ctx context.Context, claims *auth.Claims, msg ws.Message) error {
	playerID := claims.PlayerID

	switch msg.Type {
	case ws.TypeJoinLobby:
		return h.handleJoinLobby(claims, msg.Payload)
	case ws.TypeLeaveLobby:
		return h.handleLeaveLobby(playerID, msg.Payload)
	case ws.TypePlayerReady:
		return h.handlePlayerReady(playerID, msg.Payload)
	case ws.TypeStartGame:
		return h.handleStartGame(ctx, playerID, msg.Payload)
	case ws.TypeSubmitAnswer:
		return h.handleSubmitAnswer(playerID, msg.Payload)
	case ws.TypeSubmitWager:
		return h.handleSubmitWager(playerID, msg.Payload)
	case ws.TypePracticeContinue:
		return h.handlePracticeContinue(playerID, msg.Payload)
	default:
		return h.sendError(playerID, ws.TypeError, &Error{
			Code:    CodeInternal,
			Message: fmt.Sprintf("unknown message type: %s", msg.Type),
		})
	}
}

func (h *Handler) handleJoinLobby(claims *auth.Claims, payload json.RawMessage) error {
	var req ws.JoinLobbyPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return h.sendError(claims.PlayerID, ws.TypeJoinError, ErrInternal)
	}

	character := req.Character
	if character == "" {
		character = claims.Character
	}

	lobby, err := h.lobbies.Join(req.LobbyCode, req.Password, LobbyPlayerInfo{
		ID:        claims.PlayerID,
		Name:      claims.Name,
		Character: character,
		Level:     claims.Level,
		Connected: true,
	})
	if err != nil {
		return h.sendError(claims.PlayerID, ws.TypeJoinError, err)
	}

	h.hub.JoinLobby(req.LobbyCode, claims.PlayerID)
	return h.send(claims.PlayerID, ws.TypeJoinSuccess, lobbyState(lobby))
}

func (h *Handler) handleLeaveLobby(playerID string, payload json.RawMessage) error {
	var req ws.LeaveLobbyPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return h.sendError(playerID, ws.TypeLeaveError, ErrInternal)
	}

	// A leaving host aborts any running session; anyone else is treated as a
	// disconnect so the round can finish without them.
	if engine, ok := h.service.registry.Get(req.LobbyCode); ok {
		if engine.IsHost(playerID) {
			engine.Abort()
		} else {
			engine.Disconnect(playerID)
		}
	}

	if err := h.lobbies.Leave(req.LobbyCode, playerID); err != nil {
		return h.sendError(playerID, ws.TypeLeaveError, err)
	}
	h.hub.LeaveLobby(req.LobbyCode, playerID)
	return h.send(playerID, ws.TypeLeaveSuccess, ws.LobbyDeletedPayload{LobbyCode: req.LobbyCode})
}

func (h *Handler) handlePlayerReady(playerID string, payload json.RawMessage) error {
	var req ws.PlayerReadyPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return h.sendError(playerID, ws.TypeError, ErrInternal)
	}
	if err := h.lobbies.SetReady(req.LobbyCode, playerID, req.IsReady); err != nil {
		return h.sendError(playerID, ws.TypeError, err)
	}
	return nil
}

func (h *Handler) handleStartGame(ctx context.Context, playerID string, payload json.RawMessage) error {
	var req ws.StartGamePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return h.sendError(playerID, ws.TypeError, ErrInternal)
	}
	if err := h.service.StartSession(ctx, req.LobbyCode, playerID); err != nil {
		return h.sendError(playerID, ws.TypeError, err)
	}
	return nil
}

func (h *Handler) handleSubmitAnswer(playerID string, payload json.RawMessage) error {
	var req ws.SubmitAnswerPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return h.sendError(playerID, ws.TypeError, ErrInternal)
	}
	if err := h.service.SubmitAnswer(req.LobbyCode, playerID, req.Answer, req.WagerPercent); err != nil {
		return h.sendError(playerID, ws.TypeError, err)
	}
	return nil
}

func (h *Handler) handleSubmitWager(playerID string, payload json.RawMessage) error {
	var req ws.SubmitWagerPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return h.sendError(playerID, ws.TypeError, ErrInternal)
	}
	if err := h.service.SubmitWager(req.LobbyCode, playerID, req.WagerPercent); err != nil {
		return h.sendError(playerID, ws.TypeError, err)
	}
	return nil
}

func (h *Handler) handlePracticeContinue(playerID string, payload json.RawMessage) error {
	var req ws.PracticeContinuePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return h.sendError(playerID, ws.TypeError, ErrInternal)
	}
	if err := h.service.PracticeContinue(req.LobbyCode, playerID); err != nil {
		return h.sendError(playerID, ws.TypeError, err)
	}
	return nil
}

func (h *Handler) send(playerID, msgType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return h.hub.SendToPlayer(playerID, ws.Message{Type: msgType, Payload: raw})
}

// sendError reports a failure to the originating player only.
func (h *Handler) sendError(playerID, msgType string, err error) error {
	ge := AsError(err)
	return h.send(playerID, msgType, ws.ErrorPayload{Code: ge.Code, Message: ge.Message})
}

func lobbyState(lobby *LobbyDescriptor) ws.LobbyStatePayload {
	players := make([]ws.LobbyPlayer, len(lobby.Players))
	for i, p := range lobby.Players {
		players[i] = ws.LobbyPlayer{
			ID:        p.ID,
			Name:      p.Name,
			Character: p.Character,
			Level:     p.Level,
			IsHost:    p.IsHost,
			IsReady:   p.IsReady,
			Connected: p.Connected,
		}
	}
	return ws.LobbyStatePayload{
		LobbyCode:      lobby.Code,
		Name:           lobby.Name,
		HostID:         lobby.HostID,
		Players:        players,
		MaxPlayers:     lobby.MaxPlayers,
		Status:         lobby.Status,
		GameMode:       lobby.Settings.GameMode,
		SlotsRemaining: lobby.MaxPlayers - len(players),
	}
}
