package question

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/quizarena/backend/internal/db/repository"
	httperrors "github.com/quizarena/backend/pkg/http/errors"
)

// SetCatalog lists the curated question sets.
type SetCatalog interface {
	ListSets(ctx context.Context) ([]repository.QuestionSet, error)
}

// HTTPHandler serves the question-set catalog so clients can populate the
// lobby settings picker.
type HTTPHandler struct {
	catalog SetCatalog
	logger  zerolog.Logger
}

func NewHTTPHandler(catalog SetCatalog, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		catalog: catalog,
		logger:  logger.With().Str("component", "question_http").Logger(),
	}
}

// HandleListSets serves all question sets with their sizes.
// Route: GET /v1/question-sets
func (h *HTTPHandler) HandleListSets(w http.ResponseWriter, r *http.Request) {
	sets, err := h.catalog.ListSets(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("question set listing failed")
		httperrors.RespondInternalError(w, "Could not list question sets")
		return
	}
	if sets == nil {
		sets = []repository.QuestionSet{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"sets": sets})
}
