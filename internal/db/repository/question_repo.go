package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/quizarena/backend/internal/game"
	"github.com/quizarena/backend/internal/game/answer"
)

// QuestionRepository reads curated questions and question sets.
type QuestionRepository struct {
	db DBTX
}

func NewQuestionRepository(db DBTX) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// QuestionSet is a named group of questions.
type QuestionSet struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	QuestionCount int    `json:"questionCount"`
}

// BySet loads every question in a set. Random sampling happens in the
// question service so cached pools stay reusable across sessions.
func (r *QuestionRepository) BySet(ctx context.Context, setID int64) ([]*game.Question, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, set_id, prompt, options, correct_answer, kind, hint, category, difficulty,
		       estimation, correct_order, pairs
		FROM questions
		WHERE set_id = $1`, setID)
	if err != nil {
		return nil, fmt.Errorf("query questions for set %d: %w", setID, err)
	}
	defer rows.Close()

	var questions []*game.Question
	for rows.Next() {
		var (
			q          game.Question
			kind       string
			options    []byte
			estimation []byte
			order      []byte
			pairs      []byte
		)
		err := rows.Scan(&q.ID, &q.SetID, &q.Prompt, &options, &q.CorrectAnswer, &kind,
			&q.Hint, &q.Category, &q.Difficulty, &estimation, &order, &pairs)
		if err != nil {
			return nil, fmt.Errorf("scan question row: %w", err)
		}
		q.Kind = answer.Kind(kind)

		if len(options) > 0 {
			if err := json.Unmarshal(options, &q.Options); err != nil {
				return nil, fmt.Errorf("decode options for question %d: %w", q.ID, err)
			}
		}
		if len(estimation) > 0 {
			q.Estimation = &answer.Estimation{}
			if err := json.Unmarshal(estimation, q.Estimation); err != nil {
				return nil, fmt.Errorf("decode estimation for question %d: %w", q.ID, err)
			}
		}
		if len(order) > 0 {
			if err := json.Unmarshal(order, &q.CorrectOrder); err != nil {
				return nil, fmt.Errorf("decode correct order for question %d: %w", q.ID, err)
			}
		}
		if len(pairs) > 0 {
			if err := json.Unmarshal(pairs, &q.Pairs); err != nil {
				return nil, fmt.Errorf("decode pairs for question %d: %w", q.ID, err)
			}
		}
		questions = append(questions, &q)
	}
	return questions, rows.Err()
}

// ListSets returns all question sets with their sizes.
func (r *QuestionRepository) ListSets(ctx context.Context) ([]QuestionSet, error) {
	rows, err := r.db.Query(ctx, `
		SELECT s.id, s.name, s.description, COUNT(q.id)
		FROM question_sets s
		LEFT JOIN questions q ON q.set_id = s.id
		GROUP BY s.id, s.name, s.description
		ORDER BY s.id`)
	if err != nil {
		return nil, fmt.Errorf("query question sets: %w", err)
	}
	defer rows.Close()

	var sets []QuestionSet
	for rows.Next() {
		var s QuestionSet
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.QuestionCount); err != nil {
			return nil, fmt.Errorf("scan question set row: %w", err)
		}
		sets = append(sets, s)
	}
	return sets, rows.Err()
}

// Insert stores one question, returning its id.
func (r *QuestionRepository) Insert(ctx context.Context, q *game.Question) (int64, error) {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return 0, fmt.Errorf("encode options: %w", err)
	}
	var estimation, order, pairs []byte
	if q.Estimation != nil {
		if estimation, err = json.Marshal(q.Estimation); err != nil {
			return 0, fmt.Errorf("encode estimation: %w", err)
		}
	}
	if len(q.CorrectOrder) > 0 {
		if order, err = json.Marshal(q.CorrectOrder); err != nil {
			return 0, fmt.Errorf("encode correct order: %w", err)
		}
	}
	if len(q.Pairs) > 0 {
		if pairs, err = json.Marshal(q.Pairs); err != nil {
			return 0, fmt.Errorf("encode pairs: %w", err)
		}
	}

	var id int64
	err = r.db.QueryRow(ctx, `
		INSERT INTO questions (set_id, prompt, options, correct_answer, kind, hint, category, difficulty,
		                       estimation, correct_order, pairs)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		q.SetID, q.Prompt, options, q.CorrectAnswer, string(q.Kind), q.Hint, q.Category, q.Difficulty,
		estimation, order, pairs).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert question: %w", err)
	}
	return id, nil
}
