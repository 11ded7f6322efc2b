package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/certsherpa/quiz-app/internal/images"
	"github.com/certsherpa/quiz-app/internal/quiz"
)

type stubSource struct {
	mu        sync.Mutex
	questions []quiz.Question
	next      int
	insertErr error
	responses []quiz.Response
}

func (s *stubSource) FetchRandomQuestion(ctx context.Context) (quiz.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.questions) {
		return quiz.Question{}, quiz.ErrNoQuestion
	}
	q := s.questions[s.next]
	s.next++
	return q, nil
}

func (s *stubSource) InsertResponse(ctx context.Context, response quiz.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.responses = append(s.responses, response)
	return nil
}

type stubResolver struct{}

func (stubResolver) Resolve(ctx context.Context, subject images.Subject) []images.Image {
	if subject.DiscoveryCode() == "" || images.IsNumericCode(subject.DiscoveryCode()) {
		return nil
	}
	return []images.Image{{Name: subject.DiscoveryCode() + ".svg", URL: "https://cdn/" + subject.DiscoveryCode() + ".svg", Kind: images.KindVector}}
}

type persistError struct{}

func (persistError) Error() string          { return "insert failed" }
func (persistError) ServiceMessage() string { return "duplicate key value" }

func newTestServer(t *testing.T, source *stubSource) (*httptest.Server, *Registry) {
	t.Helper()
	registry := NewRegistry(time.Hour)
	factory := func(opts ...quiz.SessionOption) *quiz.Session {
		all := append([]quiz.SessionOption{quiz.WithImageResolver(stubResolver{})}, opts...)
		return quiz.NewSession(source, all...)
	}
	api := NewAPI(factory, registry, WithResolver(stubResolver{}), WithImageWait(time.Second))
	srv := httptest.NewServer(NewRouter(api, RouterOptions{}))
	t.Cleanup(srv.Close)
	return srv, registry
}

func doRequest(t *testing.T, method, url string, body any) (int, sessionResponse, errorResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var raw bytes.Buffer
	_, _ = raw.ReadFrom(resp.Body)

	var session sessionResponse
	var apiErr errorResponse
	if resp.StatusCode >= 400 {
		_ = json.Unmarshal(raw.Bytes(), &apiErr)
	} else if raw.Len() > 0 {
		_ = json.Unmarshal(raw.Bytes(), &session)
	}
	return resp.StatusCode, session, apiErr
}

func TestSessionLifecycleTwoStep(t *testing.T) {
	source := &stubSource{questions: []quiz.Question{
		{ID: "7", Text: "2+2?", OptionA: "3", OptionB: "4", CorrectAnswer: "B", ImageCode: "MATH1"},
		{ID: "8", Text: "Next?", OptionA: "x", CorrectAnswer: "A"},
	}}
	srv, _ := newTestServer(t, source)

	status, created, _ := doRequest(t, http.MethodPost, srv.URL+"/sessions", nil)
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if created.State != quiz.StateDisplayed || created.Question == nil || created.Question.ID != "7" {
		t.Fatalf("unexpected created session %+v", created)
	}
	if created.Mode != quiz.SubmitTwoStep {
		t.Fatalf("expected two-step default, got %q", created.Mode)
	}
	if len(created.Question.Options) != 4 || created.Question.Options[1].Text != "4" {
		t.Fatalf("unexpected options %+v", created.Question.Options)
	}
	base := srv.URL + "/sessions/" + created.SessionID

	status, snap, _ := doRequest(t, http.MethodGet, base+"?wait_images=true", nil)
	if status != http.StatusOK || len(snap.Images) != 1 || snap.Images[0].Name != "MATH1.svg" || snap.Images[0].Kind != images.KindVector {
		t.Fatalf("unexpected images after wait: %d %+v", status, snap.Images)
	}

	status, _, apiErr := doRequest(t, http.MethodPost, base+"/submit", nil)
	if status != http.StatusBadRequest || apiErr.Error == "" {
		t.Fatalf("expected 400 without selection, got %d %+v", status, apiErr)
	}

	status, _, _ = doRequest(t, http.MethodPost, base+"/select", selectRequest{Option: "z"})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid option, got %d", status)
	}

	status, snap, _ = doRequest(t, http.MethodPost, base+"/select", selectRequest{Option: "b"})
	if status != http.StatusOK || snap.Selected != quiz.OptionB {
		t.Fatalf("unexpected select result %d %+v", status, snap)
	}

	status, snap, _ = doRequest(t, http.MethodPost, base+"/submit", nil)
	if status != http.StatusOK || snap.State != quiz.StateGraded || snap.Grade == nil || snap.Grade.Message != "Correct" {
		t.Fatalf("unexpected graded snapshot %d %+v", status, snap)
	}
	if len(source.responses) != 1 || source.responses[0].QuestionID != "7" || source.responses[0].SelectedOption != quiz.OptionB {
		t.Fatalf("unexpected recorded responses %+v", source.responses)
	}

	status, _, _ = doRequest(t, http.MethodPost, base+"/select", selectRequest{Option: "a"})
	if status != http.StatusConflict {
		t.Fatalf("expected 409 for reselect after grade, got %d", status)
	}

	status, snap, _ = doRequest(t, http.MethodPost, base+"/submit", nil)
	if status != http.StatusOK || snap.State != quiz.StateDisplayed || snap.Question.ID != "8" {
		t.Fatalf("expected advance to question 8, got %d %+v", status, snap)
	}

	status, snap, _ = doRequest(t, http.MethodPost, base+"/next", nil)
	if status != http.StatusOK || snap.State != quiz.StateError || snap.ErrorMessage != quiz.NoQuestionMessage {
		t.Fatalf("expected error state when bank is exhausted, got %d %+v", status, snap)
	}

	status, _, _ = doRequest(t, http.MethodDelete, base, nil)
	if status != http.StatusNoContent {
		t.Fatalf("expected 204 on delete, got %d", status)
	}
	status, _, _ = doRequest(t, http.MethodGet, base, nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", status)
	}
}

func TestSimpleModeReturnsLastGrade(t *testing.T) {
	source := &stubSource{questions: []quiz.Question{
		{ID: "7", Text: "2+2?", CorrectAnswer: "B", Solution: "four"},
		{ID: "8", Text: "Next?"},
	}}
	srv, _ := newTestServer(t, source)

	_, created, _ := doRequest(t, http.MethodPost, srv.URL+"/sessions", createSessionRequest{Mode: "simple"})
	if created.Mode != quiz.SubmitSimple {
		t.Fatalf("expected simple mode, got %q", created.Mode)
	}
	base := srv.URL + "/sessions/" + created.SessionID

	doRequest(t, http.MethodPost, base+"/select", selectRequest{Option: "A"})
	status, snap, _ := doRequest(t, http.MethodPost, base+"/submit", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if snap.LastGrade == nil || snap.LastGrade.Correct || snap.LastGrade.Message != "Incorrect — four" {
		t.Fatalf("unexpected last grade %+v", snap.LastGrade)
	}
	if snap.Question == nil || snap.Question.ID != "8" || snap.Grade != nil {
		t.Fatalf("expected session to have advanced, got %+v", snap)
	}
}

func TestSubmitPersistFailureReturns502(t *testing.T) {
	source := &stubSource{
		questions: []quiz.Question{{ID: "7", Text: "2+2?", CorrectAnswer: "B"}},
		insertErr: persistError{},
	}
	srv, _ := newTestServer(t, source)

	_, created, _ := doRequest(t, http.MethodPost, srv.URL+"/sessions", nil)
	base := srv.URL + "/sessions/" + created.SessionID
	doRequest(t, http.MethodPost, base+"/select", selectRequest{Option: "C"})

	status, _, apiErr := doRequest(t, http.MethodPost, base+"/submit", nil)
	if status != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", status)
	}
	if apiErr.Error != "duplicate key value" || apiErr.Code != codePersistFailed {
		t.Fatalf("expected service message with persist code, got %+v", apiErr)
	}
	if apiErr.Session == nil || apiErr.Session.State != quiz.StateDisplayed || apiErr.Session.Selected != quiz.OptionC {
		t.Fatalf("expected displayed session with selection kept, got %+v", apiErr.Session)
	}
}

func TestCreateSessionRejectsUnknownMode(t *testing.T) {
	srv, registry := newTestServer(t, &stubSource{})

	status, _, _ := doRequest(t, http.MethodPost, srv.URL+"/sessions?mode=instant", nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	if registry.Len() != 0 {
		t.Fatalf("expected no session to be registered")
	}
}

func TestHandleImages(t *testing.T) {
	srv, _ := newTestServer(t, &stubSource{})

	resp, err := http.Get(srv.URL + "/images?id=482")
	if err != nil {
		t.Fatalf("GET /images: %v", err)
	}
	var numeric imagesResponse
	_ = json.NewDecoder(resp.Body).Decode(&numeric)
	resp.Body.Close()
	if len(numeric.Images) != 0 {
		t.Fatalf("expected no images for numeric id, got %+v", numeric.Images)
	}

	resp, err = http.Get(srv.URL + "/images?code=NET3")
	if err != nil {
		t.Fatalf("GET /images: %v", err)
	}
	var found imagesResponse
	_ = json.NewDecoder(resp.Body).Decode(&found)
	resp.Body.Close()
	if len(found.Images) != 1 || found.Images[0].Box.Responsive {
		t.Fatalf("unexpected images %+v", found.Images)
	}

	resp, err = http.Get(srv.URL + "/images")
	if err != nil {
		t.Fatalf("GET /images: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without subject, got %d", resp.StatusCode)
	}
}

func TestRegistrySweepClosesIdleSessions(t *testing.T) {
	registry := NewRegistry(time.Minute)
	now := time.Unix(1700000000, 0)
	registry.now = func() time.Time { return now }

	idle := registry.Add(quiz.NewSession(&stubSource{}))
	active := registry.Add(quiz.NewSession(&stubSource{}))

	now = now.Add(50 * time.Second)
	if _, err := registry.Get(active); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	now = now.Add(30 * time.Second)

	if removed := registry.Sweep(); removed != 1 {
		t.Fatalf("expected one session swept, got %d", removed)
	}
	if _, err := registry.Get(idle); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected idle session to be gone, got %v", err)
	}
	if _, err := registry.Get(active); err != nil {
		t.Fatalf("expected active session to remain, got %v", err)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, &stubSource{})

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if resp.StatusCode != http.StatusOK || !strings.EqualFold(body["status"].(string), "ok") {
		t.Fatalf("unexpected health response %d %v", resp.StatusCode, body)
	}
}
