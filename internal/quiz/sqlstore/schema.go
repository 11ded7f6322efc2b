package sqlstore

import (
	"context"
)

func (s *Store) initSchema(ctx context.Context) error {
	idColumn := `id INTEGER PRIMARY KEY AUTOINCREMENT`
	if s.driver == DriverPostgres {
		idColumn = `id BIGSERIAL PRIMARY KEY`
	}

	// responses.question_id is TEXT so rows from any question source fit.
	statements := []string{
		`CREATE TABLE IF NOT EXISTS questions (
			` + idColumn + `,
			question_text TEXT NOT NULL,
			option_a TEXT NOT NULL DEFAULT '',
			option_b TEXT NOT NULL DEFAULT '',
			option_c TEXT NOT NULL DEFAULT '',
			option_d TEXT NOT NULL DEFAULT '',
			correct_answer TEXT NOT NULL DEFAULT '',
			solution TEXT NOT NULL DEFAULT '',
			image_url TEXT NOT NULL DEFAULT '',
			image_alt TEXT NOT NULL DEFAULT '',
			image_code TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			created_at_unix BIGINT NOT NULL
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_questions_text ON questions(question_text);`,
		`CREATE TABLE IF NOT EXISTS responses (
			` + idColumn + `,
			question_id TEXT NOT NULL,
			selected_option TEXT NOT NULL,
			created_at_unix BIGINT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_responses_question ON responses(question_id);`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
