package userclient

import (
	"errors"
	"fmt"

	"github.com/certsherpa/quiz-app/internal/images"
	"github.com/certsherpa/quiz-app/internal/quiz"
)

var ErrSessionNotFound = errors.New("session not found")

// translateError maps service error codes back onto the session errors the
// local state machine returns, keeping the API error in the chain.
func translateError(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	var sentinel error
	switch apiErr.Code {
	case "not_found":
		sentinel = ErrSessionNotFound
	case "busy":
		sentinel = quiz.ErrBusy
	case "invalid_transition":
		sentinel = quiz.ErrInvalidTransition
	case "no_selection":
		sentinel = quiz.ErrNoSelection
	case "invalid_option":
		sentinel = quiz.ErrInvalidOption
	case "persist_failed":
		sentinel = quiz.ErrPersistFailed
	default:
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, apiErr)
}

// DescribeError turns transport failures into a message naming the server.
func DescribeError(err error, serverURL string) error {
	if errors.Is(err, ErrServiceUnavailable) {
		return fmt.Errorf("quiz service unavailable at %s", serverURL)
	}
	return err
}

func toSnapshot(payload sessionPayload) quiz.Snapshot {
	snapshot := quiz.Snapshot{
		State:         payload.State,
		Selected:      payload.Selected,
		Answered:      payload.Answered,
		ErrorMessage:  payload.ErrorMessage,
		Images:        toImages(payload.Images),
		ImagesPending: payload.ImagesPending,
		Generation:    payload.Generation,
	}
	if snapshot.State == "" {
		snapshot.State = quiz.StateIdle
	}
	if payload.Question != nil {
		question := toQuestion(*payload.Question)
		snapshot.Question = &question
	}
	if payload.Grade != nil {
		grade := *payload.Grade
		snapshot.Grade = &grade
	}
	return snapshot
}

func toQuestion(payload questionPayload) quiz.Question {
	question := quiz.Question{
		ID:       payload.ID,
		Text:     payload.Text,
		ImageURL: payload.ImageURL,
		ImageAlt: payload.ImageAlt,
	}
	for _, option := range payload.Options {
		switch option.Letter {
		case quiz.OptionA:
			question.OptionA = option.Text
		case quiz.OptionB:
			question.OptionB = option.Text
		case quiz.OptionC:
			question.OptionC = option.Text
		case quiz.OptionD:
			question.OptionD = option.Text
		}
	}
	return question
}

func toImages(in []imagePayload) []images.Image {
	if len(in) == 0 {
		return nil
	}
	out := make([]images.Image, 0, len(in))
	for _, img := range in {
		kind := img.Kind
		if kind == "" {
			kind = images.KindOf(img.Name)
		}
		out = append(out, images.Image{Name: img.Name, URL: img.URL, Alt: img.Alt, Kind: kind})
	}
	return out
}
