package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/quizarena/backend/internal/game/scoring"
)

// perkEffect is the jsonb shape of a perk's gameplay effect. All fields are
// additive across equipped perks.
type perkEffect struct {
	ExtraPoints      int     `json:"extra_points,omitempty"`
	ScoreBoostPct    float64 `json:"score_boost_pct,omitempty"`
	MultiplierGain   float64 `json:"multiplier_gain,omitempty"`
	FreeWrongAnswers int     `json:"free_wrong_answers,omitempty"`
	LateRoundBonus   int     `json:"late_round_bonus,omitempty"`
	ComebackBonus    int     `json:"comeback_bonus,omitempty"`
	AccuracyBonusPct float64 `json:"accuracy_bonus_pct,omitempty"`
	EndGameBonusPct  float64 `json:"end_game_bonus_pct,omitempty"`
	XPBoostPct       float64 `json:"xp_boost_pct,omitempty"`
}

// PerkRepository reads the perk catalog and maintains player XP and levels.
type PerkRepository struct {
	db DBTX
}

func NewPerkRepository(db DBTX) *PerkRepository {
	return &PerkRepository{db: db}
}

// EquippedModifiers sums the effects of a player's equipped perks. A player
// with no equipped perks gets nil, meaning "no modifiers".
func (r *PerkRepository) EquippedModifiers(ctx context.Context, playerID string) (*scoring.Modifiers, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.effect
		FROM player_perks pp
		JOIN perks p ON p.id = pp.perk_id
		WHERE pp.player_id = $1 AND pp.equipped`, playerID)
	if err != nil {
		return nil, fmt.Errorf("query equipped perks for %s: %w", playerID, err)
	}
	defer rows.Close()

	var mods *scoring.Modifiers
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan perk effect: %w", err)
		}
		var eff perkEffect
		if err := json.Unmarshal(raw, &eff); err != nil {
			return nil, fmt.Errorf("decode perk effect: %w", err)
		}
		if mods == nil {
			mods = &scoring.Modifiers{}
		}
		mods.ExtraPoints += eff.ExtraPoints
		mods.ScoreBoostPct += eff.ScoreBoostPct
		mods.MultiplierGain += eff.MultiplierGain
		mods.FreeWrongAnswers += eff.FreeWrongAnswers
		mods.LateRoundBonus += eff.LateRoundBonus
		mods.ComebackBonus += eff.ComebackBonus
		mods.AccuracyBonusPct += eff.AccuracyBonusPct
		mods.EndGameBonusPct += eff.EndGameBonusPct
		mods.XPBoostPct += eff.XPBoostPct
	}
	return mods, rows.Err()
}

// AddXP credits xp to a player and returns the balance before and after.
func (r *PerkRepository) AddXP(ctx context.Context, playerID string, xp int) (oldXP, newXP int, err error) {
	err = r.db.QueryRow(ctx, `
		UPDATE players
		SET xp = xp + $2
		WHERE id = $1
		RETURNING xp - $2, xp`, playerID, xp).Scan(&oldXP, &newXP)
	if err != nil {
		return 0, 0, fmt.Errorf("add xp for %s: %w", playerID, err)
	}
	return oldXP, newXP, nil
}

// SetLevel stores a player's derived level.
func (r *PerkRepository) SetLevel(ctx context.Context, playerID string, level int) error {
	if _, err := r.db.Exec(ctx, `UPDATE players SET level = $2 WHERE id = $1`, playerID, level); err != nil {
		return fmt.Errorf("set level for %s: %w", playerID, err)
	}
	return nil
}

// Perk is one catalog entry, with the player's relation to it when loaded
// through PlayerCatalog.
type Perk struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	UnlockLevel int             `json:"unlockLevel"`
	Effect      json.RawMessage `json:"effect"`
	Unlocked    bool            `json:"unlocked"`
	Equipped    bool            `json:"equipped"`
}

// PlayerCatalog lists all perks annotated with the player's unlock and equip
// state.
func (r *PerkRepository) PlayerCatalog(ctx context.Context, playerID string) ([]Perk, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.id, p.name, p.description, p.unlock_level, p.effect,
		       p.unlock_level <= pl.level, COALESCE(pp.equipped, false)
		FROM perks p
		CROSS JOIN players pl
		LEFT JOIN player_perks pp ON pp.perk_id = p.id AND pp.player_id = pl.id
		WHERE pl.id = $1
		ORDER BY p.unlock_level, p.name`, playerID)
	if err != nil {
		return nil, fmt.Errorf("query perk catalog for %s: %w", playerID, err)
	}
	defer rows.Close()

	var perks []Perk
	for rows.Next() {
		var p Perk
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.UnlockLevel, &p.Effect, &p.Unlocked, &p.Equipped); err != nil {
			return nil, fmt.Errorf("scan perk catalog row: %w", err)
		}
		perks = append(perks, p)
	}
	return perks, rows.Err()
}

// SetEquipped flips a perk for a player. The perk must be unlocked at the
// player's current level; an ineligible perk leaves zero rows touched.
func (r *PerkRepository) SetEquipped(ctx context.Context, playerID string, perkID int64, equipped bool) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO player_perks (player_id, perk_id, equipped)
		SELECT pl.id, p.id, $3
		FROM players pl
		JOIN perks p ON p.id = $2 AND p.unlock_level <= pl.level
		WHERE pl.id = $1
		ON CONFLICT (player_id, perk_id) DO UPDATE
		SET equipped = EXCLUDED.equipped`,
		playerID, perkID, equipped)
	if err != nil {
		return false, fmt.Errorf("equip perk %d for %s: %w", perkID, playerID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// UnlockedBetween lists perk names that unlock above oldLevel up to and
// including newLevel.
func (r *PerkRepository) UnlockedBetween(ctx context.Context, oldLevel, newLevel int) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT name FROM perks
		WHERE unlock_level > $1 AND unlock_level <= $2
		ORDER BY unlock_level, name`, oldLevel, newLevel)
	if err != nil {
		return nil, fmt.Errorf("query unlocked perks: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan perk name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
