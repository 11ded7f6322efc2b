package quiz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/certsherpa/quiz-app/internal/images"
	"github.com/certsherpa/quiz-app/internal/metrics"
)

type State string

const (
	StateIdle      State = "idle"
	StateLoading   State = "loading"
	StateDisplayed State = "displayed"
	StateGraded    State = "graded"
	StateError     State = "error"
)

type SubmitMode string

const (
	// SubmitSimple grades, persists and advances in one call.
	SubmitSimple SubmitMode = "simple"
	// SubmitTwoStep grades and persists on the first call and advances on the second.
	SubmitTwoStep SubmitMode = "two_step"
)

func ParseSubmitMode(raw string) (SubmitMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(SubmitTwoStep), "two-step", "twostep":
		return SubmitTwoStep, nil
	case string(SubmitSimple):
		return SubmitSimple, nil
	default:
		return "", fmt.Errorf("unknown submit mode %q", raw)
	}
}

// ImageResolver turns a question's image reference into displayable images.
type ImageResolver interface {
	Resolve(ctx context.Context, subject images.Subject) []images.Image
}

// Snapshot is the read-only view handed to renderers.
type Snapshot struct {
	State         State          `json:"state"`
	Question      *Question      `json:"question,omitempty"`
	Selected      Option         `json:"selected_option,omitempty"`
	Grade         *Grade         `json:"grade,omitempty"`
	Answered      bool           `json:"answered"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	Images        []images.Image `json:"images"`
	ImagesPending bool           `json:"images_pending"`
	Generation    uint64         `json:"generation"`
}

type SessionOption func(*Session)

func WithSubmitMode(mode SubmitMode) SessionOption {
	return func(s *Session) {
		if mode != "" {
			s.mode = mode
		}
	}
}

func WithGrader(grader Grader) SessionOption {
	return func(s *Session) {
		s.grader = grader
	}
}

func WithImageResolver(resolver ImageResolver) SessionOption {
	return func(s *Session) {
		s.resolver = resolver
	}
}

// WithReselectAfterGrade lets the user change the selection while a graded
// question is still on screen. The recorded response is not changed.
func WithReselectAfterGrade(allow bool) SessionOption {
	return func(s *Session) {
		s.allowReselect = allow
	}
}

func WithLogger(log *zap.Logger) SessionOption {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

// Session is the quiz state machine:
//
//	idle -> loading -> displayed -> graded -> loading -> ...
//
// with error reachable from loading and left only through LoadNext. At most
// one load or submit runs at a time.
type Session struct {
	source        Source
	resolver      ImageResolver
	grader        Grader
	mode          SubmitMode
	allowReselect bool
	log           *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	state         State
	question      *Question
	selected      Option
	grade         *Grade
	answered      bool
	errMessage    string
	busy          bool
	started       bool
	closed        bool
	generation    uint64
	images        []images.Image
	imagesPending bool
	imagesDone    chan struct{}
}

func NewSession(source Source, opts ...SessionOption) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	close(done)

	s := &Session{
		source:     source,
		grader:     NewGrader(),
		mode:       SubmitTwoStep,
		log:        zap.NewNop(),
		ctx:        ctx,
		cancel:     cancel,
		state:      StateIdle,
		imagesDone: done,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) Mode() SubmitMode {
	return s.mode
}

// Start performs the initial load. Only the first call has an effect.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	return s.LoadNext(ctx)
}

// LoadNext discards the current question and fetches a new random one. A
// failed fetch leaves the session in StateError; the returned error wraps
// ErrFetchFailed.
func (s *Session) LoadNext(ctx context.Context) error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	s.started = true
	s.beginLoadLocked()
	s.mu.Unlock()

	return s.fetch(ctx)
}

// Select records a tentative choice. It has no side effect beyond session state.
func (s *Session) Select(choice Option) error {
	option, err := ParseOption(string(choice))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy {
		return ErrBusy
	}
	switch s.state {
	case StateDisplayed:
	case StateGraded:
		if !s.allowReselect {
			return ErrInvalidTransition
		}
	default:
		return ErrInvalidTransition
	}

	s.selected = option
	return nil
}

// Submit grades and records the selected option. In two-step mode the first
// call stops at StateGraded and the second advances. In simple mode the grade
// is returned and the session advances immediately.
//
// A persist failure returns an error wrapping ErrPersistFailed and leaves the
// question and selection in place so the caller can submit again.
func (s *Session) Submit(ctx context.Context) (*Grade, error) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return nil, ErrBusy
	}

	if s.state == StateGraded {
		s.beginLoadLocked()
		s.mu.Unlock()
		return nil, s.fetch(ctx)
	}

	if s.state != StateDisplayed || s.question == nil {
		s.mu.Unlock()
		return nil, ErrInvalidTransition
	}
	if s.selected == "" {
		s.mu.Unlock()
		return nil, ErrNoSelection
	}

	question := *s.question
	choice := s.selected
	s.busy = true
	s.errMessage = ""
	s.mu.Unlock()

	grade := s.grader.Grade(question, choice)
	err := s.source.InsertResponse(ctx, Response{
		QuestionID:     question.ID,
		SelectedOption: choice,
	})

	s.mu.Lock()
	if err != nil {
		s.busy = false
		s.errMessage = serviceMessage(err)
		s.mu.Unlock()

		metrics.ResponsesRecorded.WithLabelValues("failed").Inc()
		s.log.Warn("response persist failed",
			zap.String("question_id", question.ID.String()),
			zap.String("selected_option", string(choice)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}

	metrics.ResponsesRecorded.WithLabelValues(gradeLabel(grade)).Inc()

	if s.mode == SubmitTwoStep {
		s.busy = false
		s.state = StateGraded
		s.grade = &grade
		s.answered = true
		s.mu.Unlock()
		return &grade, nil
	}

	s.beginLoadLocked()
	s.mu.Unlock()

	if err := s.fetch(ctx); err != nil {
		return &grade, err
	}
	return &grade, nil
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := Snapshot{
		State:         s.state,
		Selected:      s.selected,
		Answered:      s.answered,
		ErrorMessage:  s.errMessage,
		Images:        cloneImages(s.images),
		ImagesPending: s.imagesPending,
		Generation:    s.generation,
	}
	if s.question != nil {
		question := *s.question
		snapshot.Question = &question
	}
	if s.grade != nil {
		grade := *s.grade
		snapshot.Grade = &grade
	}
	return snapshot
}

// AwaitImages blocks until image discovery for the current question settles
// and returns its result.
func (s *Session) AwaitImages(ctx context.Context) ([]images.Image, error) {
	s.mu.Lock()
	done := s.imagesDone
	s.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneImages(s.images), nil
}

// Close stops outstanding image discovery. Results that arrive later are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.generation++
	s.mu.Unlock()
	s.cancel()
}

func (s *Session) beginLoadLocked() {
	s.busy = true
	s.state = StateLoading
	s.question = nil
	s.selected = ""
	s.grade = nil
	s.answered = false
	s.errMessage = ""
	s.generation++
	s.images = nil
	s.imagesPending = false
	s.imagesDone = make(chan struct{})
}

func (s *Session) fetch(ctx context.Context) error {
	question, err := s.source.FetchRandomQuestion(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false

	if err != nil {
		s.state = StateError
		s.errMessage = fetchMessage(err)
		close(s.imagesDone)

		result := "error"
		if errors.Is(err, ErrNoQuestion) {
			result = "empty"
		}
		metrics.QuestionsLoaded.WithLabelValues(result).Inc()
		s.log.Warn("question fetch failed", zap.String("message", s.errMessage), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	metrics.QuestionsLoaded.WithLabelValues("ok").Inc()
	s.question = &question
	s.state = StateDisplayed
	s.startDiscoveryLocked(question)
	return nil
}

// startDiscoveryLocked resolves images in the background. The generation
// captured here must still be current when the result lands, otherwise the
// result belongs to a replaced question and is dropped.
func (s *Session) startDiscoveryLocked(question Question) {
	done := s.imagesDone
	if s.resolver == nil || s.closed {
		close(done)
		return
	}

	generation := s.generation
	subject := question.ImageSubject()
	s.imagesPending = true

	go func() {
		defer close(done)

		found := s.resolver.Resolve(s.ctx, subject)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed || generation != s.generation {
			s.log.Debug("dropping stale image discovery",
				zap.String("question_id", subject.ID),
				zap.Uint64("generation", generation),
				zap.Uint64("current_generation", s.generation),
			)
			return
		}
		s.images = found
		s.imagesPending = false
	}()
}

func gradeLabel(grade Grade) string {
	if grade.Correct {
		return "correct"
	}
	return "incorrect"
}

func cloneImages(in []images.Image) []images.Image {
	if in == nil {
		return nil
	}
	return append([]images.Image(nil), in...)
}
