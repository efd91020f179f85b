// Package lobby manages pre-game lobbies: creation, join/leave, readiness,
// host-configured settings, and password protection. The manager is the
// authoritative in-memory store; Redis carries best-effort snapshots so
// operators can inspect lobbies across instances.
package lobby

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/quizarena/backend/internal/game"
	"github.com/quizarena/backend/pkg/ws"
)

const (
	// DefaultMaxPlayers applies when the creator does not pick a size.
	DefaultMaxPlayers = 8

	snapshotKeyPrefix = "lobby:snapshot:"
	snapshotTTL       = 24 * time.Hour
	snapshotTimeout   = 3 * time.Second

	// staleAfter is how long an untouched waiting lobby survives the sweeper.
	staleAfter = 6 * time.Hour
)

// Lobby error codes, delivered to the originating player only.
var (
	ErrNotFound      = &game.Error{Code: "LOBBY_NOT_FOUND", Message: "lobby not found"}
	ErrFull          = &game.Error{Code: "LOBBY_FULL", Message: "lobby is full"}
	ErrWrongPassword = &game.Error{Code: "WRONG_PASSWORD", Message: "wrong lobby password"}
	ErrNotMember     = &game.Error{Code: "NOT_IN_LOBBY", Message: "player is not in this lobby"}
	ErrInProgress    = &game.Error{Code: "GAME_IN_PROGRESS", Message: "lobby game already in progress"}
)

type lobby struct {
	code         string
	name         string
	hostID       string
	maxPlayers   int
	status       string
	settings     game.LobbySettings
	players      []game.LobbyPlayerInfo
	passwordHash []byte
	createdAt    time.Time
	touchedAt    time.Time
}

// CreateRequest describes a new lobby.
type CreateRequest struct {
	Name       string
	MaxPlayers int
	Password   string
	Settings   game.LobbySettings
	Host       game.LobbyPlayerInfo
}

// Manager owns all lobbies on this instance. Safe for concurrent use.
type Manager struct {
	redis  *redis.Client // nil disables snapshots
	sink   game.EventSink
	logger zerolog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	lobbies map[string]*lobby
}

// NewManager creates a lobby manager. The sink receives lobby-updated and
// lobby-deleted broadcasts.
func NewManager(redisClient *redis.Client, sink game.EventSink, logger zerolog.Logger) *Manager {
	return &Manager{
		redis:   redisClient,
		sink:    sink,
		logger:  logger.With().Str("component", "lobby").Logger(),
		now:     time.Now,
		lobbies: make(map[string]*lobby),
	}
}

// Create generates a unique 6-digit code and registers the lobby with the
// creator as host.
func (m *Manager) Create(req CreateRequest) (*game.LobbyDescriptor, error) {
	var hash []byte
	if req.Password != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash lobby password: %w", err)
		}
		hash = h
	}

	maxPlayers := req.MaxPlayers
	if maxPlayers <= 0 {
		maxPlayers = DefaultMaxPlayers
	}
	host := req.Host
	host.IsHost = true
	host.Connected = true

	m.mu.Lock()
	code := m.generateCodeLocked()
	l := &lobby{
		code:         code,
		name:         req.Name,
		hostID:       host.ID,
		maxPlayers:   maxPlayers,
		status:       game.LobbyStatusWaiting,
		settings:     req.Settings,
		players:      []game.LobbyPlayerInfo{host},
		passwordHash: hash,
		createdAt:    m.now(),
		touchedAt:    m.now(),
	}
	m.lobbies[code] = l
	desc := l.descriptor()
	m.mu.Unlock()

	m.snapshot(desc)
	m.logger.Info().Str("lobby_code", code).Str("host_id", host.ID).Msg("lobby created")
	return desc, nil
}

// Join adds a player to a lobby. Rejoining is idempotent: an existing member
// is marked connected and handed the current state.
func (m *Manager) Join(lobbyCode, password string, p game.LobbyPlayerInfo) (*game.LobbyDescriptor, error) {
	m.mu.Lock()
	l, ok := m.lobbies[lobbyCode]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNotFound
	}

	for i := range l.players {
		if l.players[i].ID == p.ID {
			l.players[i].Connected = true
			l.touchedAt = m.now()
			desc := l.descriptor()
			m.mu.Unlock()
			m.broadcastUpdated(desc)
			return desc, nil
		}
	}

	if l.status != game.LobbyStatusWaiting {
		m.mu.Unlock()
		return nil, ErrInProgress
	}
	if len(l.players) >= l.maxPlayers {
		m.mu.Unlock()
		return nil, ErrFull
	}
	if len(l.passwordHash) > 0 {
		if err := bcrypt.CompareHashAndPassword(l.passwordHash, []byte(password)); err != nil {
			m.mu.Unlock()
			return nil, ErrWrongPassword
		}
	}

	p.IsHost = false
	p.IsReady = false
	p.Connected = true
	l.players = append(l.players, p)
	l.touchedAt = m.now()
	desc := l.descriptor()
	m.mu.Unlock()

	m.broadcastUpdated(desc)
	m.snapshot(desc)
	m.logger.Info().Str("lobby_code", lobbyCode).Str("player_id", p.ID).Int("players", len(desc.Players)).Msg("player joined lobby")
	return desc, nil
}

// Leave removes a player. A departing host dissolves the lobby; the last
// player leaving does too.
func (m *Manager) Leave(lobbyCode, playerID string) error {
	m.mu.Lock()
	l, ok := m.lobbies[lobbyCode]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}

	idx := -1
	for i := range l.players {
		if l.players[i].ID == playerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return ErrNotMember
	}

	l.players = append(l.players[:idx], l.players[idx+1:]...)
	l.touchedAt = m.now()

	if playerID == l.hostID || len(l.players) == 0 {
		delete(m.lobbies, lobbyCode)
		m.mu.Unlock()
		m.broadcastDeleted(lobbyCode)
		m.dropSnapshot(lobbyCode)
		m.logger.Info().Str("lobby_code", lobbyCode).Msg("lobby dissolved")
		return nil
	}

	desc := l.descriptor()
	m.mu.Unlock()
	m.broadcastUpdated(desc)
	m.snapshot(desc)
	return nil
}

// SetReady flips a player's ready flag.
func (m *Manager) SetReady(lobbyCode, playerID string, ready bool) error {
	m.mu.Lock()
	l, ok := m.lobbies[lobbyCode]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	found := false
	for i := range l.players {
		if l.players[i].ID == playerID {
			l.players[i].IsReady = ready
			found = true
			break
		}
	}
	if !found {
		m.mu.Unlock()
		return ErrNotMember
	}
	l.touchedAt = m.now()
	desc := l.descriptor()
	m.mu.Unlock()

	m.broadcastUpdated(desc)
	return nil
}

// SetConnected records a player's transport state. Unknown lobby or player is
// a no-op; connection churn must never fail.
func (m *Manager) SetConnected(lobbyCode, playerID string, connected bool) {
	m.mu.Lock()
	l, ok := m.lobbies[lobbyCode]
	if !ok {
		m.mu.Unlock()
		return
	}
	for i := range l.players {
		if l.players[i].ID == playerID {
			l.players[i].Connected = connected
			break
		}
	}
	desc := l.descriptor()
	m.mu.Unlock()

	m.broadcastUpdated(desc)
}

// UpdateSettings replaces the lobby settings. Host only, and only before the
// game starts.
func (m *Manager) UpdateSettings(lobbyCode, playerID string, settings game.LobbySettings) error {
	m.mu.Lock()
	l, ok := m.lobbies[lobbyCode]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if l.hostID != playerID {
		m.mu.Unlock()
		return game.ErrNotHost
	}
	if l.status != game.LobbyStatusWaiting {
		m.mu.Unlock()
		return ErrInProgress
	}
	l.settings = settings
	l.touchedAt = m.now()
	desc := l.descriptor()
	m.mu.Unlock()

	m.broadcastUpdated(desc)
	m.snapshot(desc)
	return nil
}

// LobbiesOf lists the lobby codes a player belongs to.
func (m *Manager) LobbiesOf(playerID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var codes []string
	for code, l := range m.lobbies {
		for i := range l.players {
			if l.players[i].ID == playerID {
				codes = append(codes, code)
				break
			}
		}
	}
	return codes
}

// Descriptor returns a copy of the lobby's current state.
func (m *Manager) Descriptor(lobbyCode string) (*game.LobbyDescriptor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.lobbies[lobbyCode]
	if !ok {
		return nil, ErrNotFound
	}
	return l.descriptor(), nil
}

// SetStatus transitions the lobby lifecycle status.
func (m *Manager) SetStatus(lobbyCode, status string) {
	m.mu.Lock()
	l, ok := m.lobbies[lobbyCode]
	if !ok {
		m.mu.Unlock()
		return
	}
	l.status = status
	l.touchedAt = m.now()
	desc := l.descriptor()
	m.mu.Unlock()

	m.broadcastUpdated(desc)
	m.snapshot(desc)
}

// Delete removes a lobby and announces its deletion.
func (m *Manager) Delete(lobbyCode string) {
	m.mu.Lock()
	_, ok := m.lobbies[lobbyCode]
	if ok {
		delete(m.lobbies, lobbyCode)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	m.broadcastDeleted(lobbyCode)
	m.dropSnapshot(lobbyCode)
	m.logger.Info().Str("lobby_code", lobbyCode).Msg("lobby deleted")
}

// Count reports the number of live lobbies.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.lobbies)
}

// RunSweeper periodically dissolves waiting lobbies nobody has touched for
// staleAfter. Blocks until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	cutoff := m.now().Add(-staleAfter)

	m.mu.Lock()
	var stale []string
	for code, l := range m.lobbies {
		if l.status == game.LobbyStatusWaiting && l.touchedAt.Before(cutoff) {
			stale = append(stale, code)
			delete(m.lobbies, code)
		}
	}
	m.mu.Unlock()

	for _, code := range stale {
		m.broadcastDeleted(code)
		m.dropSnapshot(code)
		m.logger.Info().Str("lobby_code", code).Msg("stale lobby swept")
	}
}

func (l *lobby) descriptor() *game.LobbyDescriptor {
	return &game.LobbyDescriptor{
		Code:       l.code,
		Name:       l.name,
		HostID:     l.hostID,
		Players:    append([]game.LobbyPlayerInfo(nil), l.players...),
		MaxPlayers: l.maxPlayers,
		Status:     l.status,
		Settings:   l.settings,
	}
}

// generateCodeLocked produces a unique 6-digit numeric code. Leading-zero
// codes are avoided so the code survives naive integer handling in clients.
func (m *Manager) generateCodeLocked() string {
	for {
		code := fmt.Sprintf("%06d", 100000+rand.Intn(900000))
		if _, exists := m.lobbies[code]; !exists {
			return code
		}
	}
}

func (m *Manager) broadcastUpdated(desc *game.LobbyDescriptor) {
	payload := statePayload(desc)
	raw, err := json.Marshal(payload)
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to marshal lobby state")
		return
	}
	m.sink.Emit(desc.Code, ws.Message{Type: ws.TypeLobbyUpdated, Payload: raw})
}

func (m *Manager) broadcastDeleted(lobbyCode string) {
	raw, err := json.Marshal(ws.LobbyDeletedPayload{LobbyCode: lobbyCode})
	if err != nil {
		return
	}
	m.sink.Emit(lobbyCode, ws.Message{Type: ws.TypeLobbyDeleted, Payload: raw})
}

func statePayload(desc *game.LobbyDescriptor) ws.LobbyStatePayload {
	players := make([]ws.LobbyPlayer, len(desc.Players))
	for i, p := range desc.Players {
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
		LobbyCode:      desc.Code,
		Name:           desc.Name,
		HostID:         desc.HostID,
		Players:        players,
		MaxPlayers:     desc.MaxPlayers,
		Status:         desc.Status,
		GameMode:       desc.Settings.GameMode,
		SlotsRemaining: desc.MaxPlayers - len(players),
	}
}

func (m *Manager) snapshot(desc *game.LobbyDescriptor) {
	if m.redis == nil {
		return
	}
	raw, err := json.Marshal(desc)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()
	if err := m.redis.Set(ctx, snapshotKeyPrefix+desc.Code, raw, snapshotTTL).Err(); err != nil {
		m.logger.Warn().Err(err).Str("lobby_code", desc.Code).Msg("lobby snapshot write failed")
	}
}

func (m *Manager) dropSnapshot(lobbyCode string) {
	if m.redis == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()
	if err := m.redis.Del(ctx, snapshotKeyPrefix+lobbyCode).Err(); err != nil {
		m.logger.Warn().Err(err).Str("lobby_code", lobbyCode).Msg("lobby snapshot delete failed")
	}
}
