package userclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/certsherpa/quiz-app/internal/images"
	"github.com/certsherpa/quiz-app/internal/quiz"
)

const defaultHTTPTimeout = 5 * time.Second

// Session drives a session hosted by quiz-service. It mirrors the local
// state machine's methods; Snapshot returns the state of the last response.
type Session struct {
	client  *HTTPClient
	mode    quiz.SubmitMode
	timeout time.Duration

	mu   sync.Mutex
	id   string
	last sessionPayload
}

// NewSession prepares a remote session. Nothing is created on the server
// until Start is called. timeout bounds Select and Close, which take no context.
func NewSession(client *HTTPClient, mode quiz.SubmitMode, timeout time.Duration) *Session {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &Session{
		client:  client,
		mode:    mode,
		timeout: timeout,
		last:    sessionPayload{State: quiz.StateIdle},
	}
}

// ID is the server-assigned session id, empty before Start.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *Session) Mode() quiz.SubmitMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last.Mode != "" {
		return s.last.Mode
	}
	if s.mode == "" {
		return quiz.SubmitTwoStep
	}
	return s.mode
}

func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.id != "" {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	payload, err := s.client.CreateSession(ctx, s.mode)
	if err != nil {
		return translateError(err)
	}

	s.mu.Lock()
	s.id = payload.SessionID
	s.last = payload
	s.mu.Unlock()
	return fetchError(payload)
}

func (s *Session) LoadNext(ctx context.Context) error {
	id, err := s.requireID()
	if err != nil {
		return err
	}

	payload, err := s.client.Next(ctx, id)
	if err != nil {
		return s.fail(err)
	}
	s.store(payload)
	return fetchError(payload)
}

func (s *Session) Select(choice quiz.Option) error {
	option, err := quiz.ParseOption(string(choice))
	if err != nil {
		return err
	}
	id, err := s.requireID()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	payload, err := s.client.Select(ctx, id, option)
	if err != nil {
		return s.fail(err)
	}
	s.store(payload)
	return nil
}

// Submit returns the grade of this call's answer: the graded state's grade in
// two-step mode, or the service's post-hoc grade in simple mode. Advancing
// from a graded question returns a nil grade.
func (s *Session) Submit(ctx context.Context) (*quiz.Grade, error) {
	id, err := s.requireID()
	if err != nil {
		return nil, err
	}

	payload, err := s.client.Submit(ctx, id)
	if err != nil {
		return nil, s.fail(err)
	}
	s.store(payload)

	var grade *quiz.Grade
	switch {
	case payload.LastGrade != nil:
		grade = payload.LastGrade
	case payload.State == quiz.StateGraded && payload.Grade != nil:
		grade = payload.Grade
	}
	return grade, fetchError(payload)
}

func (s *Session) Snapshot() quiz.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return toSnapshot(s.last)
}

// AwaitImages asks the service to wait for discovery on the current question.
func (s *Session) AwaitImages(ctx context.Context) ([]images.Image, error) {
	id, err := s.requireID()
	if err != nil {
		return nil, err
	}

	payload, err := s.client.GetSession(ctx, id, true)
	if err != nil {
		return nil, s.fail(err)
	}
	s.store(payload)
	return toImages(payload.Images), nil
}

// Close deletes the remote session. A session the server already expired is
// not an error.
func (s *Session) Close() {
	s.mu.Lock()
	id := s.id
	s.mu.Unlock()
	if id == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	_ = s.client.DeleteSession(ctx, id)
}

func (s *Session) requireID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id == "" {
		return "", quiz.ErrInvalidTransition
	}
	return s.id, nil
}

func (s *Session) store(payload sessionPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = payload
}

// fail keeps the snapshot attached to an error response, if any.
func (s *Session) fail(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.session != nil {
		s.store(*apiErr.session)
	}
	return translateError(err)
}

func fetchError(payload sessionPayload) error {
	if payload.State != quiz.StateError {
		return nil
	}
	return fmt.Errorf("%w: %s", quiz.ErrFetchFailed, payload.ErrorMessage)
}
