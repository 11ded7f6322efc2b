package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ErrServiceUnavailable = errors.New("supabase unavailable")

var tracer = otel.Tracer("github.com/certsherpa/quiz-app/internal/supabase")

// APIError is a non-2xx answer from the project API. Message carries the text
// the service sent back, which is what the user gets to see.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return e.Message
}

func (e *APIError) ServiceMessage() string {
	return e.Message
}

type errorResponse struct {
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
}

func (r errorResponse) text() string {
	for _, candidate := range []string{r.Message, r.ErrorDescription, r.Msg, r.Error} {
		if trimmed := strings.TrimSpace(candidate); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

type Config struct {
	URL               string
	APIKey            string
	RandomQuestionRPC string
	ResponsesTable    string
}

// Client talks to a Supabase project over its REST and storage endpoints.
type Client struct {
	baseURL        string
	apiKey         string
	rpc            string
	responsesTable string
	httpClient     *http.Client
}

func NewClient(cfg Config, httpClient *http.Client) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	rpc := strings.TrimSpace(cfg.RandomQuestionRPC)
	if rpc == "" {
		rpc = "get_random_question"
	}
	table := strings.TrimSpace(cfg.ResponsesTable)
	if table == "" {
		table = "responses"
	}

	return &Client{
		baseURL:        baseURL,
		apiKey:         cfg.APIKey,
		rpc:            rpc,
		responsesTable: table,
		httpClient:     httpClient,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		request.Header.Set("apikey", c.apiKey)
		request.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return request, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, header http.Header, requestBody any, responseBody any) (err error) {
	ctx, span := tracer.Start(ctx, "supabase "+method, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("supabase.path", path),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var body io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	request, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	for key, values := range header {
		for _, value := range values {
			request.Header.Add(key, value)
		}
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer response.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", response.StatusCode))

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return decodeAPIError(response)
	}

	if responseBody == nil {
		_, _ = io.Copy(io.Discard, response.Body)
		return nil
	}
	return json.NewDecoder(response.Body).Decode(responseBody)
}

func decodeAPIError(response *http.Response) *APIError {
	apiErr := APIError{StatusCode: response.StatusCode}
	var payload errorResponse
	if err := json.NewDecoder(response.Body).Decode(&payload); err == nil {
		apiErr.Message = payload.text()
	}
	if apiErr.Message == "" {
		apiErr.Message = response.Status
	}
	return &apiErr
}
