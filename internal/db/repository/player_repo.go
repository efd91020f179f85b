package repository

import (
	"context"
	"fmt"

	"github.com/quizarena/backend/internal/auth"
)

// PlayerRepository manages player identity rows.
type PlayerRepository struct {
	db DBTX
}

func NewPlayerRepository(db DBTX) *PlayerRepository {
	return &PlayerRepository{db: db}
}

var _ auth.PlayerStore = (*PlayerRepository)(nil)

// CreateGuest registers a new guest player at level 1 with zero XP.
func (r *PlayerRepository) CreateGuest(ctx context.Context, p auth.Player) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO players (id, name, character, level, xp)
		VALUES ($1, $2, $3, 1, 0)`, p.ID, p.Name, p.Character)
	if err != nil {
		return fmt.Errorf("insert guest player: %w", err)
	}
	return nil
}

// GetPlayer loads a player's identity fields.
func (r *PlayerRepository) GetPlayer(ctx context.Context, id string) (auth.Player, error) {
	var p auth.Player
	err := r.db.QueryRow(ctx, `
		SELECT id, name, character, level
		FROM players
		WHERE id = $1`, id).Scan(&p.ID, &p.Name, &p.Character, &p.Level)
	if err != nil {
		return auth.Player{}, fmt.Errorf("load player %s: %w", id, err)
	}
	return p, nil
}
