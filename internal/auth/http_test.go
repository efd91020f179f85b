package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPlayerStore struct {
	created []Player
	err     error
}

func (s *stubPlayerStore) CreateGuest(_ context.Context, p Player) error {
	if s.err != nil {
		return s.err
	}
	s.created = append(s.created, p)
	return nil
}

func (s *stubPlayerStore) GetPlayer(_ context.Context, id string) (Player, error) {
	for _, p := range s.created {
		if p.ID == id {
			return p, nil
		}
	}
	return Player{}, fmt.Errorf("player %s not found", id)
}

func newTestHandlers(store *stubPlayerStore) (*HTTPHandlers, *TokenManager) {
	tokens := NewTokenManager(TokenConfig{Secret: []byte("test-secret")})
	return NewHTTPHandlers(tokens, store, zerolog.Nop()), tokens
}

func TestHandleGuestCreatesIdentity(t *testing.T) {
	store := &stubPlayerStore{}
	h, tokens := newTestHandlers(store)

	rec := httptest.NewRecorder()
	h.HandleGuest(rec, httptest.NewRequest("POST", "/v1/auth/guest", strings.NewReader(`{"name":"Lena","character":"fox"}`)))
	require.Equal(t, 201, rec.Code)

	var resp struct {
		PlayerID string `json:"playerId"`
		Name     string `json:"name"`
		Level    int    `json:"level"`
		Token    string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Lena", resp.Name)
	assert.Equal(t, 1, resp.Level)
	require.Len(t, store.created, 1)
	assert.Equal(t, resp.PlayerID, store.created[0].ID)

	claims, err := tokens.Validate(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.PlayerID, claims.PlayerID)
}

func TestHandleGuestDefaultsName(t *testing.T) {
	store := &stubPlayerStore{}
	h, _ := newTestHandlers(store)

	rec := httptest.NewRecorder()
	h.HandleGuest(rec, httptest.NewRequest("POST", "/v1/auth/guest", strings.NewReader(`{}`)))
	require.Equal(t, 201, rec.Code)
	require.Len(t, store.created, 1)
	assert.True(t, strings.HasPrefix(store.created[0].Name, "Gast-"))
}

func TestHandleGuestRejectsBadBody(t *testing.T) {
	h, _ := newTestHandlers(&stubPlayerStore{})

	rec := httptest.NewRecorder()
	h.HandleGuest(rec, httptest.NewRequest("POST", "/v1/auth/guest", strings.NewReader("{")))
	assert.Equal(t, 400, rec.Code)
}

func TestHandleMe(t *testing.T) {
	store := &stubPlayerStore{created: []Player{{ID: "p1", Name: "Lena", Level: 2}}}
	h, tokens := newTestHandlers(store)

	token, err := tokens.Generate(store.created[0])
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.HandleMe(rec, req)
	require.Equal(t, 200, rec.Code)

	var resp struct {
		PlayerID string `json:"playerId"`
		Name     string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "p1", resp.PlayerID)
	assert.Equal(t, "Lena", resp.Name)
}

func TestHandleMeRequiresToken(t *testing.T) {
	h, _ := newTestHandlers(&stubPlayerStore{})

	rec := httptest.NewRecorder()
	h.HandleMe(rec, httptest.NewRequest("GET", "/v1/users/me", nil))
	assert.Equal(t, 401, rec.Code)
}
