package game

import "github.com/quizarena/backend/internal/game/answer"

// FallbackQuestions returns up to count questions from the built-in set. The
// engine substitutes these when the configured question sets yield nothing
// usable. Fallback questions carry negative identifiers so they are never
// confused with catalog questions.
func FallbackQuestions(count int) []*Question {
	qs := fallbackSet()
	if count > 0 && count < len(qs) {
		qs = qs[:count]
	}
	return qs
}

func fallbackSet() []*Question {
	return []*Question{
		{
			ID:            -1,
			Prompt:        "Was ist die Hauptstadt von Deutschland?",
			Options:       []string{"Berlin", "München", "Hamburg", "Köln"},
			CorrectAnswer: "Berlin",
			Kind:          answer.KindMultipleChoice,
			Category:      "Geographie",
		},
		{
			ID:            -2,
			Prompt:        "Wie viele Bundesländer hat Deutschland?",
			Options:       []string{"14", "15", "16", "17"},
			CorrectAnswer: "16",
			Kind:          answer.KindMultipleChoice,
			Category:      "Geographie",
		},
		{
			ID:            -3,
			Prompt:        "Der Rhein mündet in die Nordsee.",
			Options:       []string{"true", "false"},
			CorrectAnswer: "true",
			Kind:          answer.KindTrueFalse,
			Category:      "Geographie",
		},
		{
			ID:            -4,
			Prompt:        "Wer komponierte die 9. Sinfonie mit der \"Ode an die Freude\"?",
			Options:       []string{"Bach", "Beethoven", "Mozart", "Brahms"},
			CorrectAnswer: "Beethoven",
			Kind:          answer.KindMultipleChoice,
			Category:      "Musik",
		},
		{
			ID:            -5,
			Prompt:        "Welcher Fluss fließt durch Hamburg?",
			CorrectAnswer: "Elbe",
			Kind:          answer.KindFreeText,
			Hint:          "Er mündet bei Cuxhaven in die Nordsee.",
			Category:      "Geographie",
		},
		{
			ID:            -6,
			Prompt:        "In welchem Jahr fiel die Berliner Mauer?",
			Options:       []string{"1987", "1989", "1990", "1991"},
			CorrectAnswer: "1989",
			Kind:          answer.KindMultipleChoice,
			Category:      "Geschichte",
		},
		{
			ID:            -7,
			Prompt:        "Die Zugspitze ist der höchste Berg Deutschlands.",
			Options:       []string{"true", "false"},
			CorrectAnswer: "true",
			Kind:          answer.KindTrueFalse,
			Category:      "Geographie",
		},
		{
			ID:            -8,
			Prompt:        "Wer schrieb \"Faust\"?",
			CorrectAnswer: "Goethe",
			Kind:          answer.KindFreeText,
			Hint:          "Geboren 1749 in Frankfurt am Main.",
			Category:      "Literatur",
		},
		{
			ID:            -9,
			Prompt:        "Wie hoch ist die Zugspitze ungefähr (in Metern)?",
			CorrectAnswer: "2962",
			Kind:          answer.KindEstimation,
			Estimation: &answer.Estimation{
				CorrectValue:  2962,
				Tolerance:     150,
				ToleranceType: answer.ToleranceAbsolute,
			},
			Category: "Geographie",
		},
		{
			ID:            -10,
			Prompt:        "Welches Bundesland hat die meisten Einwohner?",
			Options:       []string{"Bayern", "Nordrhein-Westfalen", "Baden-Württemberg", "Hessen"},
			CorrectAnswer: "Nordrhein-Westfalen",
			Kind:          answer.KindMultipleChoice,
			Category:      "Geographie",
		},
	}
}
