package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/certsherpa/quiz-app/internal/quiz"
)

var _ quiz.Source = (*Client)(nil)

// FetchRandomQuestion calls the random-question RPC. The function may return
// a set of rows, a single row or null depending on how it was declared.
func (c *Client) FetchRandomQuestion(ctx context.Context) (quiz.Question, error) {
	var raw json.RawMessage
	path := "/rest/v1/rpc/" + url.PathEscape(c.rpc)
	if err := c.doJSON(ctx, http.MethodPost, path, nil, struct{}{}, &raw); err != nil {
		return quiz.Question{}, err
	}
	return decodeQuestion(raw)
}

func decodeQuestion(raw json.RawMessage) (quiz.Question, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return quiz.Question{}, quiz.ErrNoQuestion
	}

	if trimmed[0] == '[' {
		var rows []quiz.Question
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return quiz.Question{}, fmt.Errorf("decode question rows: %w", err)
		}
		if len(rows) == 0 {
			return quiz.Question{}, quiz.ErrNoQuestion
		}
		return rows[0], nil
	}

	var question quiz.Question
	if err := json.Unmarshal(trimmed, &question); err != nil {
		return quiz.Question{}, fmt.Errorf("decode question: %w", err)
	}
	if question.ID == "" && question.Text == "" {
		return quiz.Question{}, quiz.ErrNoQuestion
	}
	return question, nil
}

// InsertResponse appends one row to the responses table.
func (c *Client) InsertResponse(ctx context.Context, response quiz.Response) error {
	header := http.Header{}
	header.Set("Prefer", "return=minimal")
	path := "/rest/v1/" + url.PathEscape(c.responsesTable)
	return c.doJSON(ctx, http.MethodPost, path, header, response, nil)
}
