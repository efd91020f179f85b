package lobby

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizarena/backend/internal/auth"
)

func newTestHTTP(t *testing.T) (*Manager, http.Handler, string) {
	t.Helper()
	m, _ := newTestManager()
	tokens := auth.NewTokenManager(auth.TokenConfig{Secret: []byte("test-secret")})
	h := NewHTTPHandlers(m, tokens, zerolog.Nop())

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/lobbies", h.HandleCreate)
	mux.HandleFunc("PUT /v1/lobbies/{code}/settings", h.HandleUpdateSettings)

	token, err := tokens.Generate(auth.Player{ID: "p1", Name: "Lena", Level: 2})
	require.NoError(t, err)
	return m, mux, token
}

func TestHandleCreateRequiresToken(t *testing.T) {
	_, mux, _ := newTestHTTP(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/v1/lobbies", strings.NewReader(`{}`)))
	assert.Equal(t, 401, rec.Code)
}

func TestHandleCreateRegistersLobby(t *testing.T) {
	m, mux, token := newTestHTTP(t)

	body := `{"name":"Freitagsrunde","maxPlayers":4,"settings":{"gameMode":"survival","selectedQuestionCount":5}}`
	req := httptest.NewRequest("POST", "/v1/lobbies", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, 201, rec.Code)

	var resp lobbyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "p1", resp.HostID)
	assert.Equal(t, 4, resp.MaxPlayers)
	assert.Equal(t, "survival", resp.Settings.GameMode)
	assert.False(t, resp.Private)

	desc, err := m.Descriptor(resp.LobbyCode)
	require.NoError(t, err)
	assert.True(t, desc.Players[0].IsHost)
}

func TestHandleUpdateSettings(t *testing.T) {
	m, mux, token := newTestHTTP(t)

	desc, err := m.Create(CreateRequest{Name: "Runde", Host: host("p1")})
	require.NoError(t, err)

	req := httptest.NewRequest("PUT", "/v1/lobbies/"+desc.Code+"/settings", strings.NewReader(`{"gameMode":"wager","wagerPhase":true}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, 204, rec.Code)

	updated, err := m.Descriptor(desc.Code)
	require.NoError(t, err)
	assert.Equal(t, "wager", updated.Settings.GameMode)
	assert.True(t, updated.Settings.WagerPhase)
}

func TestHandleUpdateSettingsRejectsNonHost(t *testing.T) {
	m, mux, token := newTestHTTP(t)

	// Lobby hosted by someone else; the token belongs to p1.
	desc, err := m.Create(CreateRequest{Name: "Fremde Runde", Host: host("p9")})
	require.NoError(t, err)

	req := httptest.NewRequest("PUT", "/v1/lobbies/"+desc.Code+"/settings", strings.NewReader(`{"gameMode":"arcade"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, 403, rec.Code)
}

func TestHandleUpdateSettingsUnknownLobby(t *testing.T) {
	_, mux, token := newTestHTTP(t)

	req := httptest.NewRequest("PUT", "/v1/lobbies/999999/settings", strings.NewReader(`{"gameMode":"arcade"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, 404, rec.Code)
}
