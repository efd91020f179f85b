// Package answer implements type-aware correctness checking for submitted
// answers. Checking is pure: no state, no side effects, and malformed input
// never fails hard, it simply scores zero.
package answer

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Kind enumerates the supported answer kinds.
type Kind string

const (
	KindMultipleChoice Kind = "multiple_choice"
	KindTrueFalse      Kind = "true_false"
	KindFreeText       Kind = "free_text"
	KindFillInBlank    Kind = "fill_in_blank"
	KindEstimation     Kind = "estimation"
	KindOrdering       Kind = "ordering"
	KindMatching       Kind = "matching"
)

// Tolerance types for estimation questions.
const (
	ToleranceAbsolute   = "absolute"
	TolerancePercentage = "percentage"
)

// Estimation holds grading metadata for estimation questions.
type Estimation struct {
	CorrectValue  float64 `json:"correct_value"`
	Tolerance     float64 `json:"tolerance"`
	ToleranceType string  `json:"tolerance_type"`
}

// Pair is a single left/right match in a matching question.
type Pair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// Question carries the grading-relevant parts of a question.
type Question struct {
	Kind          Kind
	CorrectAnswer string
	Estimation    *Estimation
	CorrectOrder  []int
	Pairs         []Pair
}

// Result of checking one submission.
type Result struct {
	Correct bool
	Partial float64 // in [0,1]
}

// Check grades a submitted answer against a question.
func Check(submitted string, q Question) Result {
	switch q.Kind {
	case KindMultipleChoice, KindTrueFalse:
		return exact(submitted, q.CorrectAnswer)
	case KindFreeText, KindFillInBlank:
		return loose(submitted, q.CorrectAnswer)
	case KindEstimation:
		if q.Estimation == nil {
			return exact(submitted, q.CorrectAnswer)
		}
		return checkEstimation(submitted, *q.Estimation)
	case KindOrdering:
		if len(q.CorrectOrder) == 0 {
			return exact(submitted, q.CorrectAnswer)
		}
		return checkOrdering(submitted, q.CorrectOrder)
	case KindMatching:
		if len(q.Pairs) == 0 {
			return exact(submitted, q.CorrectAnswer)
		}
		return checkMatching(submitted, q.Pairs)
	default:
		return exact(submitted, q.CorrectAnswer)
	}
}

func exact(submitted, correct string) Result {
	if submitted == correct {
		return Result{Correct: true, Partial: 1}
	}
	return Result{}
}

func loose(submitted, correct string) Result {
	if strings.EqualFold(strings.TrimSpace(submitted), strings.TrimSpace(correct)) {
		return Result{Correct: true, Partial: 1}
	}
	return Result{}
}

func checkEstimation(submitted string, rule Estimation) Result {
	x, err := parseNumber(submitted)
	if err != nil {
		return Result{}
	}

	distance := math.Abs(x - rule.CorrectValue)

	tolerance := rule.Tolerance
	if rule.ToleranceType == TolerancePercentage {
		tolerance = math.Abs(rule.CorrectValue) * rule.Tolerance / 100
	}

	if tolerance <= 0 {
		if distance == 0 {
			return Result{Correct: true, Partial: 1}
		}
		return Result{}
	}

	partial := 1 - distance/tolerance
	if partial < 0 {
		partial = 0
	}
	return Result{Correct: partial > 0, Partial: partial}
}

func checkOrdering(submitted string, correct []int) Result {
	order, err := parseIntList(submitted)
	if err != nil || len(order) != len(correct) {
		return Result{}
	}

	matches := 0
	for i, v := range order {
		if v == correct[i] {
			matches++
		}
	}
	partial := float64(matches) / float64(len(correct))
	return Result{Correct: partial > 0, Partial: partial}
}

func checkMatching(submitted string, correct []Pair) Result {
	pairs, err := parsePairs(submitted)
	if err != nil {
		return Result{}
	}

	matches := 0
	for _, p := range pairs {
		for _, c := range correct {
			if p.Left == c.Left && p.Right == c.Right {
				matches++
				break
			}
		}
	}
	partial := float64(matches) / float64(len(correct))
	if partial > 1 {
		partial = 1
	}
	return Result{Correct: partial > 0, Partial: partial}
}

// parseNumber accepts both "3.14" and the decimal-comma form "3,14".
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	return strconv.ParseFloat(s, 64)
}

// parseIntList accepts a JSON array ("[2,0,1]") or a plain comma list ("2,0,1").
func parseIntList(s string) ([]int, error) {
	s = strings.TrimSpace(s)

	var fromJSON []int
	if err := json.Unmarshal([]byte(s), &fromJSON); err == nil {
		return fromJSON, nil
	}

	s = strings.Trim(s, "[]")
	if s == "" {
		return nil, strconv.ErrSyntax
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// parsePairs accepts a JSON array of {left,right} objects or a compact
// "left:right,left:right" form.
func parsePairs(s string) ([]Pair, error) {
	s = strings.TrimSpace(s)

	var fromJSON []Pair
	if err := json.Unmarshal([]byte(s), &fromJSON); err == nil {
		return fromJSON, nil
	}

	if s == "" {
		return nil, strconv.ErrSyntax
	}
	parts := strings.Split(s, ",")
	out := make([]Pair, 0, len(parts))
	for _, p := range parts {
		left, right, ok := strings.Cut(p, ":")
		if !ok {
			return nil, strconv.ErrSyntax
		}
		out = append(out, Pair{Left: strings.TrimSpace(left), Right: strings.TrimSpace(right)})
	}
	return out, nil
}
