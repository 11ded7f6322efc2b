package sqlstore

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/certsherpa/quiz-app/internal/quiz"
)

type seedFile struct {
	Questions []quiz.Question `yaml:"questions"`
}

// DecodeSeed reads a YAML seed document of the form
//
//	questions:
//	  - question_text: "2+2?"
//	    option_a: "3"
//	    option_b: "4"
//	    correct_answer: B
func DecodeSeed(r io.Reader) ([]quiz.Question, error) {
	var seed seedFile
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&seed); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	return seed.Questions, nil
}
