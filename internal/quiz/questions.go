package quiz

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/certsherpa/quiz-app/internal/images"
)

type Option string

const (
	OptionA Option = "A"
	OptionB Option = "B"
	OptionC Option = "C"
	OptionD Option = "D"
)

// Options lists the selectable letters in display order.
var Options = []Option{OptionA, OptionB, OptionC, OptionD}

// ParseOption accepts a letter in any case with surrounding whitespace.
func ParseOption(raw string) (Option, error) {
	letter := Option(normalizeKey(raw))
	switch letter {
	case OptionA, OptionB, OptionC, OptionD:
		return letter, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidOption, raw)
	}
}

// ID is the backend-assigned question identifier. Backends hand it out either
// as a JSON number or a string; both decode to the same textual form.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*id = ""
		return nil
	}
	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*id = ID(text)
		return nil
	}

	var number json.Number
	if err := json.Unmarshal(trimmed, &number); err != nil {
		return fmt.Errorf("question id: %w", err)
	}
	*id = ID(number.String())
	return nil
}

// MarshalJSON writes canonical integers as JSON numbers and everything else,
// "007" included, as a string.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.isCanonicalInt() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ID) isCanonicalInt() bool {
	n, err := strconv.ParseInt(string(id), 10, 64)
	return err == nil && strconv.FormatInt(n, 10) == string(id)
}

func (id ID) String() string {
	return string(id)
}

// IsNumeric reports whether the identifier is made only of ASCII digits.
func (id ID) IsNumeric() bool {
	return images.IsNumericCode(string(id))
}

type Question struct {
	ID               ID     `json:"id"`
	Text             string `json:"question_text" yaml:"question_text"`
	OptionA          string `json:"option_a" yaml:"option_a"`
	OptionB          string `json:"option_b" yaml:"option_b"`
	OptionC          string `json:"option_c" yaml:"option_c"`
	OptionD          string `json:"option_d" yaml:"option_d"`
	CorrectAnswer    string `json:"correctAnswer,omitempty" yaml:"correct_answer"`
	CorrectAnswerAlt string `json:"correctanswer,omitempty" yaml:"-"`
	Solution         string `json:"solution,omitempty" yaml:"solution"`
	ImageURL         string `json:"image_url,omitempty" yaml:"image_url"`
	ImageAlt         string `json:"image_alt,omitempty" yaml:"image_alt"`
	ImageCode        string `json:"image_code,omitempty" yaml:"image_code"`
}

// OptionText returns the display text of a choice, or "" for an unknown letter.
func (q Question) OptionText(option Option) string {
	switch option {
	case OptionA:
		return q.OptionA
	case OptionB:
		return q.OptionB
	case OptionC:
		return q.OptionC
	case OptionD:
		return q.OptionD
	default:
		return ""
	}
}

// DiscoveryCode is the identifier used to build image candidate names.
func (q Question) DiscoveryCode() string {
	if code := strings.TrimSpace(q.ImageCode); code != "" {
		return code
	}
	return strings.TrimSpace(q.ID.String())
}

func (q Question) ImageSubject() images.Subject {
	return images.Subject{
		ID:          strings.TrimSpace(q.ID.String()),
		Code:        strings.TrimSpace(q.ImageCode),
		ExplicitURL: q.ImageURL,
		ExplicitAlt: q.ImageAlt,
	}
}

// Response is one submitted answer. It is written once and never updated.
type Response struct {
	QuestionID     ID     `json:"question_id"`
	SelectedOption Option `json:"selected_option"`
}

func normalizeKey(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
