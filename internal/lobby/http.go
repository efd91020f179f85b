package lobby

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/quizarena/backend/internal/auth"
	"github.com/quizarena/backend/internal/game"
	httperrors "github.com/quizarena/backend/pkg/http/errors"
)

// HTTPHandlers exposes lobby management over REST. Roster changes flow over
// the WebSocket; creation and settings changes happen here.
type HTTPHandlers struct {
	mgr    *Manager
	tokens *auth.TokenManager
	logger zerolog.Logger
}

func NewHTTPHandlers(mgr *Manager, tokens *auth.TokenManager, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		mgr:    mgr,
		tokens: tokens,
		logger: logger.With().Str("component", "lobby_http").Logger(),
	}
}

type settingsRequest struct {
	GameMode              string  `json:"gameMode"`
	QuestionSetIDs        []int64 `json:"questionSetIds"`
	SelectedQuestionCount int     `json:"selectedQuestionCount"`
	WagerPhase            bool    `json:"wagerPhase"`
}

func (s settingsRequest) toSettings() game.LobbySettings {
	return game.LobbySettings{
		GameMode:              s.GameMode,
		QuestionSetIDs:        s.QuestionSetIDs,
		SelectedQuestionCount: s.SelectedQuestionCount,
		WagerPhase:            s.WagerPhase,
	}
}

type createRequest struct {
	Name       string          `json:"name"`
	MaxPlayers int             `json:"maxPlayers"`
	Password   string          `json:"password"`
	Settings   settingsRequest `json:"settings"`
}

type lobbyResponse struct {
	LobbyCode  string          `json:"lobbyCode"`
	Name       string          `json:"name,omitempty"`
	HostID     string          `json:"hostId"`
	MaxPlayers int             `json:"maxPlayers"`
	Status     string          `json:"status"`
	Private    bool            `json:"private"`
	Settings   settingsRequest `json:"settings"`
}

// HandleCreate registers a new lobby with the caller as host.
// Route: POST /v1/lobbies
func (h *HTTPHandlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	claims := h.authenticate(w, r)
	if claims == nil {
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}

	desc, err := h.mgr.Create(CreateRequest{
		Name:       req.Name,
		MaxPlayers: req.MaxPlayers,
		Password:   req.Password,
		Settings:   req.Settings.toSettings(),
		Host: game.LobbyPlayerInfo{
			ID:        claims.PlayerID,
			Name:      claims.Name,
			Character: claims.Character,
			Level:     claims.Level,
		},
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("lobby creation failed")
		httperrors.RespondInternalError(w, "Could not create lobby")
		return
	}

	h.logger.Info().Str("lobby_code", desc.Code).Str("host_id", claims.PlayerID).Msg("lobby created")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(descriptorResponse(desc, req.Password != ""))
}

// HandleUpdateSettings changes a waiting lobby's game settings. Host only.
// Route: PUT /v1/lobbies/{code}/settings
func (h *HTTPHandlers) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	claims := h.authenticate(w, r)
	if claims == nil {
		return
	}

	code := r.PathValue("code")
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}

	if err := h.mgr.UpdateSettings(code, claims.PlayerID, req.toSettings()); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandlers) authenticate(w http.ResponseWriter, r *http.Request) *auth.Claims {
	token := auth.BearerToken(r)
	if token == "" {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Missing token")
		return nil
	}
	claims, err := h.tokens.Validate(token)
	if err != nil {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Invalid token")
		return nil
	}
	return claims
}

func (h *HTTPHandlers) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httperrors.RespondError(w, http.StatusNotFound, ErrNotFound.Code, ErrNotFound.Message)
	case errors.Is(err, game.ErrNotHost):
		httperrors.RespondError(w, http.StatusForbidden, game.ErrNotHost.Code, game.ErrNotHost.Message)
	case errors.Is(err, ErrInProgress):
		httperrors.RespondError(w, http.StatusConflict, ErrInProgress.Code, ErrInProgress.Message)
	default:
		ge := game.AsError(err)
		httperrors.RespondError(w, http.StatusBadRequest, ge.Code, ge.Message)
	}
}

func descriptorResponse(desc *game.LobbyDescriptor, private bool) lobbyResponse {
	return lobbyResponse{
		LobbyCode:  desc.Code,
		Name:       desc.Name,
		HostID:     desc.HostID,
		MaxPlayers: desc.MaxPlayers,
		Status:     desc.Status,
		Private:    private,
		Settings: settingsRequest{
			GameMode:              desc.Settings.GameMode,
			QuestionSetIDs:        desc.Settings.QuestionSetIDs,
			SelectedQuestionCount: desc.Settings.SelectedQuestionCount,
			WagerPhase:            desc.Settings.WagerPhase,
		},
	}
}
