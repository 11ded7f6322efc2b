package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/certsherpa/quiz-app/internal/images"
	"github.com/certsherpa/quiz-app/internal/quiz"
)

func (a *API) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": a.sessions.Len(),
	})
}

func (a *API) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	if a.factory == nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "quiz service unavailable"})
		return
	}

	request := createSessionRequest{Mode: r.URL.Query().Get("mode")}
	if r.ContentLength != 0 {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
			return
		}
	}

	var opts []quiz.SessionOption
	if strings.TrimSpace(request.Mode) != "" {
		mode, err := quiz.ParseSubmitMode(request.Mode)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		opts = append(opts, quiz.WithSubmitMode(mode))
	}

	session := a.factory(opts...)
	id := a.sessions.Add(session)

	// A failed first load is reported through the snapshot's error state.
	if err := session.Start(r.Context()); err != nil {
		a.log.Warn("initial question load failed", zap.String("session_id", id), zap.Error(err))
	}

	writeJSON(w, http.StatusCreated, toSessionResponse(id, session.Mode(), session.Snapshot()))
}

func (a *API) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	id, session, ok := a.lookup(w, r)
	if !ok {
		return
	}

	if parseBoolParam(r, "wait_images") {
		ctx, cancel := context.WithTimeout(r.Context(), a.imageWait)
		_, _ = session.AwaitImages(ctx)
		cancel()
	}

	writeJSON(w, http.StatusOK, toSessionResponse(id, session.Mode(), session.Snapshot()))
}

func (a *API) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session_id")
	if !a.sessions.Remove(id) {
		writeServiceError(w, ErrSessionNotFound, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleNext loads a fresh question. Fetch failures leave the session in its
// error state, which the snapshot carries; only conflicts are errors here.
func (a *API) HandleNext(w http.ResponseWriter, r *http.Request) {
	id, session, ok := a.lookup(w, r)
	if !ok {
		return
	}

	if err := session.LoadNext(r.Context()); err != nil && !errors.Is(err, quiz.ErrFetchFailed) {
		snapshot := toSessionResponse(id, session.Mode(), session.Snapshot())
		writeServiceError(w, err, &snapshot)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(id, session.Mode(), session.Snapshot()))
}

func (a *API) HandleSelect(w http.ResponseWriter, r *http.Request) {
	id, session, ok := a.lookup(w, r)
	if !ok {
		return
	}

	defer r.Body.Close()
	var request selectRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	if err := session.Select(quiz.Option(request.Option)); err != nil {
		snapshot := toSessionResponse(id, session.Mode(), session.Snapshot())
		writeServiceError(w, err, &snapshot)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(id, session.Mode(), session.Snapshot()))
}

func (a *API) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	id, session, ok := a.lookup(w, r)
	if !ok {
		return
	}

	grade, err := session.Submit(r.Context())
	response := toSessionResponse(id, session.Mode(), session.Snapshot())
	if err != nil && !errors.Is(err, quiz.ErrFetchFailed) {
		writeServiceError(w, err, &response)
		return
	}
	if session.Mode() == quiz.SubmitSimple {
		response.LastGrade = grade
	}
	writeJSON(w, http.StatusOK, response)
}

func (a *API) HandleImages(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	subject := images.Subject{
		ID:          strings.TrimSpace(query.Get("id")),
		Code:        strings.TrimSpace(query.Get("code")),
		ExplicitURL: strings.TrimSpace(query.Get("image_url")),
		ExplicitAlt: strings.TrimSpace(query.Get("image_alt")),
	}
	if subject.ID == "" && subject.Code == "" && subject.ExplicitURL == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "one of id, code or image_url is required"})
		return
	}

	var found []images.Image
	if a.resolver != nil {
		found = a.resolver.Resolve(r.Context(), subject)
	}
	writeJSON(w, http.StatusOK, imagesResponse{Images: toImageViews(found)})
}

func (a *API) lookup(w http.ResponseWriter, r *http.Request) (string, *quiz.Session, bool) {
	id := chi.URLParam(r, "session_id")
	session, err := a.sessions.Get(id)
	if err != nil {
		writeServiceError(w, err, nil)
		return "", nil, false
	}
	return id, session, true
}
