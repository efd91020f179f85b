package perks

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/quizarena/backend/internal/auth"
	"github.com/quizarena/backend/internal/db/repository"
	httperrors "github.com/quizarena/backend/pkg/http/errors"
)

// CatalogStore is the perk-catalog surface the HTTP handlers need.
type CatalogStore interface {
	PlayerCatalog(ctx context.Context, playerID string) ([]repository.Perk, error)
	SetEquipped(ctx context.Context, playerID string, perkID int64, equipped bool) (bool, error)
}

// HTTPHandlers exposes the perk catalog and equip toggling.
type HTTPHandlers struct {
	svc     *Service
	catalog CatalogStore
	tokens  *auth.TokenManager
	logger  zerolog.Logger
}

func NewHTTPHandlers(svc *Service, catalog CatalogStore, tokens *auth.TokenManager, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		svc:     svc,
		catalog: catalog,
		tokens:  tokens,
		logger:  logger.With().Str("component", "perks_http").Logger(),
	}
}

// HandleCatalog lists all perks with the caller's unlock and equip state.
// Route: GET /v1/perks
func (h *HTTPHandlers) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	claims := h.authenticate(w, r)
	if claims == nil {
		return
	}

	perks, err := h.catalog.PlayerCatalog(r.Context(), claims.PlayerID)
	if err != nil {
		h.logger.Error().Err(err).Str("player_id", claims.PlayerID).Msg("perk catalog load failed")
		httperrors.RespondInternalError(w, "Could not load perks")
		return
	}
	if perks == nil {
		perks = []repository.Perk{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"perks": perks})
}

// HandleEquip toggles one of the caller's unlocked perks.
// Route: PUT /v1/perks/{id}/equip
func (h *HTTPHandlers) HandleEquip(w http.ResponseWriter, r *http.Request) {
	claims := h.authenticate(w, r)
	if claims == nil {
		return
	}

	perkID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid perk id")
		return
	}

	var req struct {
		Equipped bool `json:"equipped"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}

	ok, err := h.catalog.SetEquipped(r.Context(), claims.PlayerID, perkID, req.Equipped)
	if err != nil {
		h.logger.Error().Err(err).Int64("perk_id", perkID).Msg("perk equip failed")
		httperrors.RespondInternalError(w, "Could not update perk")
		return
	}
	if !ok {
		httperrors.RespondNotFound(w, httperrors.ErrCodeNotFound, "Perk not available at your level")
		return
	}

	// The next session must see the new loadout.
	h.svc.InvalidateModifiers(r.Context(), claims.PlayerID)
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
