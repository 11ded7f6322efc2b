package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/certsherpa/quiz-app/internal/quiz"
)

var _ quiz.Source = (*Store)(nil)

func (s *Store) FetchRandomQuestion(ctx context.Context) (quiz.Question, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, question_text, option_a, option_b, option_c, option_d,
			correct_answer, solution, image_url, image_alt, image_code
		 FROM questions
		 ORDER BY RANDOM()
		 LIMIT 1`,
	)

	var (
		id       int64
		question quiz.Question
	)
	err := row.Scan(
		&id,
		&question.Text,
		&question.OptionA,
		&question.OptionB,
		&question.OptionC,
		&question.OptionD,
		&question.CorrectAnswer,
		&question.Solution,
		&question.ImageURL,
		&question.ImageAlt,
		&question.ImageCode,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return quiz.Question{}, quiz.ErrNoQuestion
	}
	if err != nil {
		return quiz.Question{}, err
	}
	question.ID = quiz.ID(strconv.FormatInt(id, 10))
	return question, nil
}

func (s *Store) InsertResponse(ctx context.Context, response quiz.Response) error {
	option, err := quiz.ParseOption(string(response.SelectedOption))
	if err != nil {
		return err
	}
	if strings.TrimSpace(response.QuestionID.String()) == "" {
		return errors.New("question_id is required")
	}

	_, err = s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO responses (question_id, selected_option, created_at_unix) VALUES (?, ?, ?)`),
		response.QuestionID.String(),
		string(option),
		time.Now().Unix(),
	)
	return err
}

// ImportQuestions inserts questions in one transaction. Questions whose text
// already exists in the bank are skipped; the number of new rows is returned.
func (s *Store) ImportQuestions(ctx context.Context, source string, questions []quiz.Question) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.rebind(
		`INSERT INTO questions (
			question_text, option_a, option_b, option_c, option_d,
			correct_answer, solution, image_url, image_alt, image_code,
			source, created_at_unix
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (question_text) DO NOTHING`,
	))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	now := time.Now().Unix()
	inserted := 0
	for i, question := range questions {
		text := strings.TrimSpace(question.Text)
		if text == "" {
			return 0, fmt.Errorf("question %d: question_text is required", i)
		}
		key := strings.TrimSpace(question.CorrectAnswer)
		if key != "" {
			option, err := quiz.ParseOption(key)
			if err != nil {
				return 0, fmt.Errorf("question %d: %w", i, err)
			}
			key = string(option)
		}

		result, err := stmt.ExecContext(ctx,
			text,
			question.OptionA,
			question.OptionB,
			question.OptionC,
			question.OptionD,
			key,
			question.Solution,
			question.ImageURL,
			question.ImageAlt,
			question.ImageCode,
			source,
			now,
		)
		if err != nil {
			return 0, err
		}
		if affected, err := result.RowsAffected(); err == nil {
			inserted += int(affected)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

func (s *Store) CountQuestions(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CountResponses returns how many responses were recorded for a question.
func (s *Store) CountResponses(ctx context.Context, questionID quiz.ID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT COUNT(*) FROM responses WHERE question_id = ?`),
		questionID.String(),
	).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
