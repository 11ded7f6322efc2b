package opentdb

import (
	"html"
	"math/rand/v2"
	"strings"

	"github.com/certsherpa/quiz-app/internal/quiz"
)

// ToQuestions turns trivia items into four-option questions. The correct
// answer lands at a random position; items that do not have exactly three
// wrong answers are skipped.
func ToQuestions(raw []RawQuestion, rng *rand.Rand) []quiz.Question {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	out := make([]quiz.Question, 0, len(raw))
	for _, item := range raw {
		if len(item.IncorrectAnswers) != len(quiz.Options)-1 {
			continue
		}
		text := strings.TrimSpace(html.UnescapeString(item.Question))
		if text == "" {
			continue
		}

		answers := make([]string, 0, len(quiz.Options))
		answers = append(answers, html.UnescapeString(item.CorrectAnswer))
		for _, wrong := range item.IncorrectAnswers {
			answers = append(answers, html.UnescapeString(wrong))
		}

		correct := rng.IntN(len(answers))
		answers[0], answers[correct] = answers[correct], answers[0]

		out = append(out, quiz.Question{
			Text:          text,
			OptionA:       answers[0],
			OptionB:       answers[1],
			OptionC:       answers[2],
			OptionD:       answers[3],
			CorrectAnswer: string(quiz.Options[correct]),
		})
	}
	return out
}
