package quiz

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/certsherpa/quiz-app/internal/images"
)

type serviceError struct {
	message string
}

func (e serviceError) Error() string          { return "rpc failed: " + e.message }
func (e serviceError) ServiceMessage() string { return e.message }

type fakeSource struct {
	mu         sync.Mutex
	questions  []Question
	fetchErrs  []error
	insertErr  error
	fetchCalls int
	responses  []Response
	block      chan struct{}
}

func (f *fakeSource) FetchRandomQuestion(ctx context.Context) (Question, error) {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	call := f.fetchCalls
	f.fetchCalls++
	if call < len(f.fetchErrs) && f.fetchErrs[call] != nil {
		return Question{}, f.fetchErrs[call]
	}
	if len(f.questions) == 0 {
		return Question{}, ErrNoQuestion
	}
	return f.questions[call%len(f.questions)], nil
}

func (f *fakeSource) InsertResponse(ctx context.Context, response Response) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.responses = append(f.responses, response)
	return nil
}

func (f *fakeSource) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls
}

func (f *fakeSource) recorded() []Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Response(nil), f.responses...)
}

func additionQuestion() Question {
	return Question{ID: "7", Text: "2+2?", OptionA: "3", OptionB: "4", CorrectAnswer: "B"}
}

func TestTwoStepSubmitRecordsThenWaits(t *testing.T) {
	source := &fakeSource{questions: []Question{additionQuestion(), {ID: "8", Text: "next"}}}
	session := NewSession(source)
	ctx := context.Background()

	if err := session.Start(ctx); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if err := session.Select(OptionB); err != nil {
		t.Fatalf("Select returned error: %v", err)
	}

	grade, err := session.Submit(ctx)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if !grade.Correct || grade.Message != "Correct" {
		t.Fatalf("unexpected grade %+v", grade)
	}

	responses := source.recorded()
	if len(responses) != 1 || responses[0] != (Response{QuestionID: "7", SelectedOption: OptionB}) {
		t.Fatalf("unexpected recorded responses %+v", responses)
	}

	snap := session.Snapshot()
	if snap.State != StateGraded || !snap.Answered || snap.Question.ID != "7" {
		t.Fatalf("expected graded snapshot for question 7, got %+v", snap)
	}
	if source.calls() != 1 {
		t.Fatalf("expected no auto-advance, got %d fetches", source.calls())
	}

	if _, err := session.Submit(ctx); err != nil {
		t.Fatalf("second Submit returned error: %v", err)
	}
	snap = session.Snapshot()
	if snap.State != StateDisplayed || snap.Question.ID != "8" || snap.Selected != "" || snap.Grade != nil || snap.Answered {
		t.Fatalf("expected fresh question after second submit, got %+v", snap)
	}
	if len(source.recorded()) != 1 {
		t.Fatalf("second submit must not record another response")
	}
}

func TestSimpleSubmitAdvancesImmediately(t *testing.T) {
	source := &fakeSource{questions: []Question{additionQuestion(), {ID: "8", Text: "next", Solution: "a"}}}
	session := NewSession(source, WithSubmitMode(SubmitSimple))
	ctx := context.Background()

	if err := session.Start(ctx); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	_ = session.Select(OptionA)

	grade, err := session.Submit(ctx)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if grade == nil || grade.Correct || grade.Message != "Incorrect" {
		t.Fatalf("unexpected grade %+v", grade)
	}

	snap := session.Snapshot()
	if snap.State != StateDisplayed || snap.Question.ID != "8" || snap.Grade != nil {
		t.Fatalf("expected next question without grade, got %+v", snap)
	}
}

func TestEmptyFetchShowsNoQuestionAndRetryRefetches(t *testing.T) {
	source := &fakeSource{}
	session := NewSession(source)
	ctx := context.Background()

	err := session.Start(ctx)
	if !errors.Is(err, ErrFetchFailed) || !errors.Is(err, ErrNoQuestion) {
		t.Fatalf("expected fetch failure wrapping ErrNoQuestion, got %v", err)
	}
	snap := session.Snapshot()
	if snap.State != StateError || snap.ErrorMessage != "No question available" {
		t.Fatalf("unexpected error snapshot %+v", snap)
	}

	source.mu.Lock()
	source.questions = []Question{additionQuestion()}
	source.mu.Unlock()

	if err := session.LoadNext(ctx); err != nil {
		t.Fatalf("retry returned error: %v", err)
	}
	if source.calls() != 2 {
		t.Fatalf("expected retry to re-issue the fetch, got %d calls", source.calls())
	}
	if snap := session.Snapshot(); snap.State != StateDisplayed || snap.ErrorMessage != "" {
		t.Fatalf("expected displayed state after retry, got %+v", snap)
	}
}

func TestFailedReloadDropsPreviousQuestion(t *testing.T) {
	source := &fakeSource{
		questions: []Question{additionQuestion()},
		fetchErrs: []error{nil, serviceError{message: "statement timeout"}},
	}
	session := NewSession(source)
	ctx := context.Background()

	if err := session.Start(ctx); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if snap := session.Snapshot(); snap.Question == nil {
		t.Fatalf("expected a displayed question")
	}

	source.mu.Lock()
	source.block = make(chan struct{})
	source.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- session.LoadNext(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for session.Snapshot().State != StateLoading {
		if time.Now().After(deadline) {
			t.Fatalf("session never entered loading")
		}
		time.Sleep(time.Millisecond)
	}
	if snap := session.Snapshot(); snap.Question != nil {
		t.Fatalf("expected no question while loading, got %+v", snap.Question)
	}

	close(source.block)
	if err := <-done; !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("expected fetch failure, got %v", err)
	}
	snap := session.Snapshot()
	if snap.State != StateError || snap.Question != nil || snap.ErrorMessage != "statement timeout" {
		t.Fatalf("expected error snapshot without the old question, got %+v", snap)
	}
}

func TestFetchErrorSurfacesServiceMessage(t *testing.T) {
	source := &fakeSource{fetchErrs: []error{serviceError{message: "permission denied for table questions"}}}
	session := NewSession(source)

	_ = session.Start(context.Background())
	if snap := session.Snapshot(); snap.ErrorMessage != "permission denied for table questions" {
		t.Fatalf("unexpected error message %q", snap.ErrorMessage)
	}
}

func TestStartRunsOnce(t *testing.T) {
	source := &fakeSource{questions: []Question{additionQuestion()}}
	session := NewSession(source)

	_ = session.Start(context.Background())
	_ = session.Start(context.Background())
	if source.calls() != 1 {
		t.Fatalf("expected one initial load, got %d", source.calls())
	}
}

func TestPersistFailureKeepsQuestionAndSelection(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	source := &fakeSource{
		questions: []Question{additionQuestion()},
		insertErr: serviceError{message: "new row violates row-level security policy"},
	}
	session := NewSession(source, WithLogger(zap.New(core)))
	ctx := context.Background()

	_ = session.Start(ctx)
	_ = session.Select(OptionC)

	_, err := session.Submit(ctx)
	if !errors.Is(err, ErrPersistFailed) {
		t.Fatalf("expected ErrPersistFailed, got %v", err)
	}

	snap := session.Snapshot()
	if snap.State != StateDisplayed || snap.Selected != OptionC || snap.Question.ID != "7" || snap.Answered {
		t.Fatalf("expected displayed question with selection kept, got %+v", snap)
	}
	if snap.ErrorMessage != "new row violates row-level security policy" {
		t.Fatalf("unexpected error message %q", snap.ErrorMessage)
	}
	if logs.FilterMessage("response persist failed").Len() != 1 {
		t.Fatalf("expected persist failure to be logged")
	}

	source.mu.Lock()
	source.insertErr = nil
	source.mu.Unlock()

	grade, err := session.Submit(ctx)
	if err != nil {
		t.Fatalf("retried Submit returned error: %v", err)
	}
	if grade.Correct {
		t.Fatalf("expected C to be graded incorrect")
	}
	if snap := session.Snapshot(); snap.ErrorMessage != "" || snap.State != StateGraded {
		t.Fatalf("expected error cleared after successful retry, got %+v", snap)
	}
}

func TestSelectAndSubmitGuards(t *testing.T) {
	source := &fakeSource{questions: []Question{additionQuestion()}}
	session := NewSession(source)
	ctx := context.Background()

	if err := session.Select(OptionA); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition before load, got %v", err)
	}
	if _, err := session.Submit(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition before load, got %v", err)
	}

	_ = session.Start(ctx)
	if _, err := session.Submit(ctx); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("expected ErrNoSelection, got %v", err)
	}
	if err := session.Select("E"); !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("expected ErrInvalidOption, got %v", err)
	}
	if err := session.Select(" b "); err != nil {
		t.Fatalf("Select returned error: %v", err)
	}
	if snap := session.Snapshot(); snap.Selected != OptionB {
		t.Fatalf("expected normalized selection B, got %q", snap.Selected)
	}

	if _, err := session.Submit(ctx); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if err := session.Select(OptionA); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected reselect after grade to be rejected, got %v", err)
	}
}

func TestReselectAfterGradeWhenAllowed(t *testing.T) {
	source := &fakeSource{questions: []Question{additionQuestion()}}
	session := NewSession(source, WithReselectAfterGrade(true))
	ctx := context.Background()

	_ = session.Start(ctx)
	_ = session.Select(OptionB)
	_, _ = session.Submit(ctx)

	if err := session.Select(OptionD); err != nil {
		t.Fatalf("expected reselect to be allowed, got %v", err)
	}
	snap := session.Snapshot()
	if snap.Selected != OptionD || snap.Grade == nil || !snap.Grade.Correct {
		t.Fatalf("reselect must not change the recorded grade, got %+v", snap)
	}
	if responses := source.recorded(); len(responses) != 1 || responses[0].SelectedOption != OptionB {
		t.Fatalf("reselect must not change the recorded response, got %+v", responses)
	}
}

func TestLoadRejectedWhileBusy(t *testing.T) {
	source := &fakeSource{questions: []Question{additionQuestion()}, block: make(chan struct{})}
	session := NewSession(source)

	done := make(chan error, 1)
	go func() {
		done <- session.LoadNext(context.Background())
	}()

	deadline := time.Now().Add(2 * time.Second)
	for session.Snapshot().State != StateLoading {
		if time.Now().After(deadline) {
			t.Fatalf("session never entered loading")
		}
		time.Sleep(time.Millisecond)
	}

	if err := session.LoadNext(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if err := session.Select(OptionA); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy for select while loading, got %v", err)
	}

	close(source.block)
	if err := <-done; err != nil {
		t.Fatalf("LoadNext returned error: %v", err)
	}
	if source.calls() != 1 {
		t.Fatalf("expected a single fetch, got %d", source.calls())
	}
}

type stubResolver struct {
	mu      sync.Mutex
	calls   []images.Subject
	release map[string]chan struct{}
	results map[string][]images.Image
}

func (r *stubResolver) Resolve(ctx context.Context, subject images.Subject) []images.Image {
	r.mu.Lock()
	r.calls = append(r.calls, subject)
	wait := r.release[subject.ID]
	result := r.results[subject.ID]
	r.mu.Unlock()

	if wait != nil {
		<-wait
	}
	return result
}

func TestDiscoveryResultsApplyToCurrentQuestion(t *testing.T) {
	resolver := &stubResolver{results: map[string][]images.Image{
		"7": {{Name: "Q.png", URL: "https://cdn/Q.png", Kind: images.KindRaster}},
	}}
	source := &fakeSource{questions: []Question{additionQuestion()}}
	session := NewSession(source, WithImageResolver(resolver))
	ctx := context.Background()

	_ = session.Start(ctx)
	found, err := session.AwaitImages(ctx)
	if err != nil {
		t.Fatalf("AwaitImages returned error: %v", err)
	}
	if len(found) != 1 || found[0].Name != "Q.png" {
		t.Fatalf("unexpected images %+v", found)
	}
	if snap := session.Snapshot(); snap.ImagesPending || len(snap.Images) != 1 {
		t.Fatalf("expected settled images in snapshot, got %+v", snap)
	}
}

func TestStaleDiscoveryIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	resolver := &stubResolver{
		release: map[string]chan struct{}{"7": release},
		results: map[string][]images.Image{
			"7": {{Name: "stale.png"}},
			"8": {{Name: "fresh.png"}},
		},
	}
	source := &fakeSource{questions: []Question{additionQuestion(), {ID: "8", Text: "next"}}}
	session := NewSession(source, WithImageResolver(resolver))
	ctx := context.Background()

	_ = session.Start(ctx)
	if err := session.LoadNext(ctx); err != nil {
		t.Fatalf("LoadNext returned error: %v", err)
	}

	found, err := session.AwaitImages(ctx)
	if err != nil {
		t.Fatalf("AwaitImages returned error: %v", err)
	}
	if len(found) != 1 || found[0].Name != "fresh.png" {
		t.Fatalf("expected fresh images, got %+v", found)
	}

	close(release)
	time.Sleep(20 * time.Millisecond)

	snap := session.Snapshot()
	if snap.Question.ID != "8" || len(snap.Images) != 1 || snap.Images[0].Name != "fresh.png" {
		t.Fatalf("stale discovery leaked into snapshot: %+v", snap)
	}
}

func TestCloseDropsLateDiscovery(t *testing.T) {
	release := make(chan struct{})
	resolver := &stubResolver{
		release: map[string]chan struct{}{"7": release},
		results: map[string][]images.Image{"7": {{Name: "late.png"}}},
	}
	source := &fakeSource{questions: []Question{additionQuestion()}}
	session := NewSession(source, WithImageResolver(resolver))
	ctx := context.Background()

	_ = session.Start(ctx)
	session.Close()
	close(release)

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	found, err := session.AwaitImages(waitCtx)
	if err != nil {
		t.Fatalf("AwaitImages returned error: %v", err)
	}
	if len(found) != 0 {
		t.Fatalf("expected late results to be dropped, got %+v", found)
	}
}

func TestDiscoverySubjectCarriesImageFields(t *testing.T) {
	resolver := &stubResolver{}
	question := Question{ID: "11", Text: "q", ImageCode: " NET3 ", ImageURL: "diagram.svg", ImageAlt: "Topology"}
	session := NewSession(&fakeSource{questions: []Question{question}}, WithImageResolver(resolver))

	_ = session.Start(context.Background())
	_, _ = session.AwaitImages(context.Background())

	resolver.mu.Lock()
	defer resolver.mu.Unlock()
	if len(resolver.calls) != 1 {
		t.Fatalf("expected one resolve call, got %d", len(resolver.calls))
	}
	got := resolver.calls[0]
	if got.ID != "11" || got.Code != "NET3" || got.ExplicitURL != "diagram.svg" || got.ExplicitAlt != "Topology" {
		t.Fatalf("unexpected subject %+v", got)
	}
}

func TestParseSubmitMode(t *testing.T) {
	tests := map[string]SubmitMode{
		"":         SubmitTwoStep,
		"two_step": SubmitTwoStep,
		"Two-Step": SubmitTwoStep,
		"simple":   SubmitSimple,
	}
	for raw, want := range tests {
		got, err := ParseSubmitMode(raw)
		if err != nil || got != want {
			t.Fatalf("ParseSubmitMode(%q) = %q, %v; want %q", raw, got, err, want)
		}
	}
	if _, err := ParseSubmitMode("instant"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
