package quiz

import (
	"fmt"
	"strings"
)

// KeyField names a question field that may carry the grading key.
type KeyField string

const (
	KeyCorrectAnswer    KeyField = "correctAnswer"
	KeyCorrectAnswerAlt KeyField = "correctanswer"
	KeySolution         KeyField = "solution"
)

// DefaultPrecedence is the order in which key fields are consulted.
var DefaultPrecedence = []KeyField{KeyCorrectAnswer, KeyCorrectAnswerAlt, KeySolution}

const (
	messageCorrect   = "Correct"
	messageIncorrect = "Incorrect"
)

type Grade struct {
	Correct bool   `json:"correct"`
	Key     string `json:"key,omitempty"`
	Message string `json:"message"`
}

// ParsePrecedence converts configured field names into a precedence list.
// An empty input yields DefaultPrecedence.
func ParsePrecedence(fields []string) ([]KeyField, error) {
	if len(fields) == 0 {
		return append([]KeyField(nil), DefaultPrecedence...), nil
	}

	out := make([]KeyField, 0, len(fields))
	seen := make(map[KeyField]bool, len(fields))
	for _, raw := range fields {
		field := KeyField(strings.TrimSpace(raw))
		switch field {
		case KeyCorrectAnswer, KeyCorrectAnswerAlt, KeySolution:
		default:
			return nil, fmt.Errorf("unknown grading key field %q", raw)
		}
		if seen[field] {
			continue
		}
		seen[field] = true
		out = append(out, field)
	}
	return out, nil
}

type Grader struct {
	precedence []KeyField
}

func NewGrader(precedence ...KeyField) Grader {
	if len(precedence) == 0 {
		precedence = DefaultPrecedence
	}
	return Grader{precedence: append([]KeyField(nil), precedence...)}
}

// Key resolves the normalized grading key of a question. The boolean is false
// when none of the configured fields holds a value.
func (g Grader) Key(question Question) (string, bool) {
	precedence := g.precedence
	if len(precedence) == 0 {
		precedence = DefaultPrecedence
	}

	for _, field := range precedence {
		if key := normalizeKey(fieldValue(question, field)); key != "" {
			return key, true
		}
	}
	return "", false
}

// Grade never fails: an unresolved key grades the choice as incorrect.
func (g Grader) Grade(question Question, choice Option) Grade {
	key, ok := g.Key(question)
	correct := ok && choice != "" && key == string(choice)
	return Grade{
		Correct: correct,
		Key:     key,
		Message: gradeMessage(correct, question.Solution),
	}
}

func gradeMessage(correct bool, solution string) string {
	message := messageIncorrect
	if correct {
		message = messageCorrect
	}
	if strings.TrimSpace(solution) != "" {
		message += " — " + solution
	}
	return message
}

func fieldValue(question Question, field KeyField) string {
	switch field {
	case KeyCorrectAnswer:
		return question.CorrectAnswer
	case KeyCorrectAnswerAlt:
		return question.CorrectAnswerAlt
	case KeySolution:
		return question.Solution
	default:
		return ""
	}
}
