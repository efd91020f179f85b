package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/quizarena/backend/internal/game"
)

// SessionRepository persists game sessions and per-player results. It
// implements the engine's SessionStore; every call is best-effort from the
// engine's side, so errors here only ever surface as warnings.
type SessionRepository struct {
	db DBTX
}

var _ game.SessionStore = (*SessionRepository)(nil)

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

// CreateSession inserts the session row at game start.
func (r *SessionRepository) CreateSession(ctx context.Context, rec game.SessionRecord) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO game_sessions (id, lobby_code, mode, question_count, started_at)
		VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.LobbyCode, string(rec.Mode), rec.QuestionCount, rec.StartedAt)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", rec.ID, err)
	}
	return nil
}

// CloseSession stamps the end time and stores the final score map.
func (r *SessionRepository) CloseSession(ctx context.Context, sessionID string, scores map[string]int) error {
	finalScores, err := json.Marshal(scores)
	if err != nil {
		return fmt.Errorf("encode final scores: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		UPDATE game_sessions
		SET ended_at = now(), final_scores = $2
		WHERE id = $1`, sessionID, finalScores)
	if err != nil {
		return fmt.Errorf("close session %s: %w", sessionID, err)
	}
	return nil
}

// RecordResult upserts one player's result line. A disconnect writes a
// provisional row; session end overwrites it with final numbers.
func (r *SessionRepository) RecordResult(ctx context.Context, rec game.ResultRecord) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO session_results (session_id, player_id, score, correct_count, wrong_count,
		                             final_streak, xp_awarded, disconnected)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id, player_id) DO UPDATE
		SET score = EXCLUDED.score,
		    correct_count = EXCLUDED.correct_count,
		    wrong_count = EXCLUDED.wrong_count,
		    final_streak = EXCLUDED.final_streak,
		    xp_awarded = EXCLUDED.xp_awarded,
		    disconnected = EXCLUDED.disconnected`,
		rec.SessionID, rec.PlayerID, rec.Score, rec.CorrectCount, rec.WrongCount,
		rec.FinalStreak, rec.XPAwarded, rec.Disconnected)
	if err != nil {
		return fmt.Errorf("record result for %s in session %s: %w", rec.PlayerID, rec.SessionID, err)
	}
	return nil
}
