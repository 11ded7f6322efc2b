package userclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/certsherpa/quiz-app/internal/images"
	"github.com/certsherpa/quiz-app/internal/quiz"
)

const defaultServer = "http://127.0.0.1:8080"

var ErrServiceUnavailable = errors.New("quiz service unavailable")

type APIError struct {
	StatusCode int
	Code       string
	Message    string

	// session is the snapshot the service attached to the error, if any.
	session *sessionPayload
}

func (e *APIError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return e.Message
}

type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

type questionPayload struct {
	ID       quiz.ID         `json:"id"`
	Text     string          `json:"question_text"`
	Options  []optionPayload `json:"options"`
	ImageURL string          `json:"image_url,omitempty"`
	ImageAlt string          `json:"image_alt,omitempty"`
}

type optionPayload struct {
	Letter quiz.Option `json:"letter"`
	Text   string      `json:"text"`
}

type imagePayload struct {
	Name string      `json:"name"`
	URL  string      `json:"url"`
	Alt  string      `json:"alt"`
	Kind images.Kind `json:"kind"`
}

type sessionPayload struct {
	SessionID     string           `json:"session_id"`
	Mode          quiz.SubmitMode  `json:"mode"`
	State         quiz.State       `json:"state"`
	Question      *questionPayload `json:"question,omitempty"`
	Selected      quiz.Option      `json:"selected_option,omitempty"`
	Grade         *quiz.Grade      `json:"grade,omitempty"`
	Answered      bool             `json:"answered"`
	ErrorMessage  string           `json:"error_message,omitempty"`
	Images        []imagePayload   `json:"images"`
	ImagesPending bool             `json:"images_pending"`
	Generation    uint64           `json:"generation"`
	LastGrade     *quiz.Grade      `json:"last_grade,omitempty"`
}

type imagesPayload struct {
	Images []imagePayload `json:"images"`
}

type createSessionRequest struct {
	Mode quiz.SubmitMode `json:"mode,omitempty"`
}

type selectRequest struct {
	Option quiz.Option `json:"option"`
}

type errorResponse struct {
	Error   string          `json:"error"`
	Code    string          `json:"code,omitempty"`
	Session *sessionPayload `json:"session,omitempty"`
}

func NewHTTPClient(baseURL string, httpClient *http.Client) *HTTPClient {
	baseURL = strings.TrimSpace(baseURL)
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = defaultServer
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

func (c *HTTPClient) CreateSession(ctx context.Context, mode quiz.SubmitMode) (sessionPayload, error) {
	var payload sessionPayload
	err := c.doJSON(ctx, http.MethodPost, "/sessions", createSessionRequest{Mode: mode}, &payload)
	return payload, err
}

func (c *HTTPClient) GetSession(ctx context.Context, sessionID string, waitImages bool) (sessionPayload, error) {
	path := sessionPath(sessionID)
	if waitImages {
		path += "?wait_images=true"
	}

	var payload sessionPayload
	err := c.doJSON(ctx, http.MethodGet, path, nil, &payload)
	return payload, err
}

func (c *HTTPClient) Next(ctx context.Context, sessionID string) (sessionPayload, error) {
	var payload sessionPayload
	err := c.doJSON(ctx, http.MethodPost, sessionPath(sessionID)+"/next", nil, &payload)
	return payload, err
}

func (c *HTTPClient) Select(ctx context.Context, sessionID string, option quiz.Option) (sessionPayload, error) {
	var payload sessionPayload
	err := c.doJSON(ctx, http.MethodPost, sessionPath(sessionID)+"/select", selectRequest{Option: option}, &payload)
	return payload, err
}

func (c *HTTPClient) Submit(ctx context.Context, sessionID string) (sessionPayload, error) {
	var payload sessionPayload
	err := c.doJSON(ctx, http.MethodPost, sessionPath(sessionID)+"/submit", nil, &payload)
	return payload, err
}

func (c *HTTPClient) DeleteSession(ctx context.Context, sessionID string) error {
	return c.doJSON(ctx, http.MethodDelete, sessionPath(sessionID), nil, nil)
}

// ResolveImages asks the service to resolve images for an arbitrary subject.
func (c *HTTPClient) ResolveImages(ctx context.Context, subject images.Subject) ([]images.Image, error) {
	query := url.Values{}
	if subject.ID != "" {
		query.Set("id", subject.ID)
	}
	if subject.Code != "" {
		query.Set("code", subject.Code)
	}
	if subject.ExplicitURL != "" {
		query.Set("image_url", subject.ExplicitURL)
	}
	if subject.ExplicitAlt != "" {
		query.Set("image_alt", subject.ExplicitAlt)
	}

	var payload imagesPayload
	if err := c.doJSON(ctx, http.MethodGet, "/images?"+query.Encode(), nil, &payload); err != nil {
		return nil, err
	}
	return toImages(payload.Images), nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, requestBody any, responseBody any) error {
	fullURL := c.baseURL + path

	var body io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return err
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		apiErr := APIError{StatusCode: response.StatusCode}
		var payload errorResponse
		if err := json.NewDecoder(response.Body).Decode(&payload); err == nil {
			apiErr.Message = strings.TrimSpace(payload.Error)
			apiErr.Code = payload.Code
			apiErr.session = payload.Session
		}
		if apiErr.Message == "" {
			apiErr.Message = response.Status
		}
		return &apiErr
	}

	if responseBody == nil || response.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(response.Body).Decode(responseBody)
}

func sessionPath(sessionID string) string {
	return "/sessions/" + url.PathEscape(sessionID)
}
