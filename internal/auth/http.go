package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	httperrors "github.com/quizarena/backend/pkg/http/errors"
)

// PlayerStore persists player identities.
type PlayerStore interface {
	CreateGuest(ctx context.Context, p Player) error
	GetPlayer(ctx context.Context, id string) (Player, error)
}

// HTTPHandlers exposes the identity endpoints: guest creation and profile
// lookup. Accounts and OAuth live outside this service.
type HTTPHandlers struct {
	tokens  *TokenManager
	players PlayerStore
	logger  zerolog.Logger
}

func NewHTTPHandlers(tokens *TokenManager, players PlayerStore, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		tokens:  tokens,
		players: players,
		logger:  logger.With().Str("component", "auth_http").Logger(),
	}
}

// BearerToken extracts the connection token from the Authorization header,
// falling back to the token query parameter.
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

type guestRequest struct {
	Name      string `json:"name"`
	Character string `json:"character"`
}

type identityResponse struct {
	PlayerID  string `json:"playerId"`
	Name      string `json:"name"`
	Character string `json:"character,omitempty"`
	Level     int    `json:"level"`
	Token     string `json:"token,omitempty"`
}

// HandleGuest issues a fresh guest identity together with its connection
// token. Route: POST /v1/auth/guest
func (h *HTTPHandlers) HandleGuest(w http.ResponseWriter, r *http.Request) {
	var req guestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}

	id := uuid.NewString()
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "Gast-" + id[:4]
	}

	p := Player{ID: id, Name: name, Character: req.Character, Level: 1}
	if err := h.players.CreateGuest(r.Context(), p); err != nil {
		h.logger.Error().Err(err).Msg("guest creation failed")
		httperrors.RespondInternalError(w, "Could not create guest")
		return
	}

	token, err := h.tokens.Generate(p)
	if err != nil {
		h.logger.Error().Err(err).Msg("token generation failed")
		httperrors.RespondInternalError(w, "Could not issue token")
		return
	}

	h.logger.Info().Str("player_id", id).Msg("guest created")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(identityResponse{
		PlayerID:  p.ID,
		Name:      p.Name,
		Character: p.Character,
		Level:     p.Level,
		Token:     token,
	})
}

// HandleMe returns the profile behind a connection token.
// Route: GET /v1/users/me
func (h *HTTPHandlers) HandleMe(w http.ResponseWriter, r *http.Request) {
	token := BearerToken(r)
	if token == "" {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Missing token")
		return
	}
	claims, err := h.tokens.Validate(token)
	if err != nil {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Invalid token")
		return
	}

	p, err := h.players.GetPlayer(r.Context(), claims.PlayerID)
	if err != nil {
		h.logger.Warn().Err(err).Str("player_id", claims.PlayerID).Msg("profile lookup failed")
		httperrors.RespondNotFound(w, httperrors.ErrCodeNotFound, "Player not found")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(identityResponse{
		PlayerID:  p.ID,
		Name:      p.Name,
		Character: p.Character,
		Level:     p.Level,
	})
}
