package quiz

import (
	"context"
	"errors"
	"strings"
)

// NoQuestionMessage is shown when the backend has nothing to hand out and
// did not say why.
const NoQuestionMessage = "No question available"

var (
	ErrNoQuestion        = errors.New("no question available")
	ErrFetchFailed       = errors.New("question fetch failed")
	ErrPersistFailed     = errors.New("response persist failed")
	ErrBusy              = errors.New("another operation is in flight")
	ErrInvalidTransition = errors.New("operation not allowed in current state")
	ErrNoSelection       = errors.New("no option selected")
	ErrInvalidOption     = errors.New("invalid option")
)

// Source is the backend question service a session reads from and writes to.
type Source interface {
	// FetchRandomQuestion returns ErrNoQuestion when the backend has no rows.
	FetchRandomQuestion(ctx context.Context) (Question, error)
	InsertResponse(ctx context.Context, response Response) error
}

// ServiceMessenger is implemented by backend errors that carry a
// human-readable message from the service itself.
type ServiceMessenger interface {
	ServiceMessage() string
}

func fetchMessage(err error) string {
	if errors.Is(err, ErrNoQuestion) {
		return NoQuestionMessage
	}
	if message := serviceMessage(err); message != "" {
		return message
	}
	return NoQuestionMessage
}

func serviceMessage(err error) string {
	if err == nil {
		return ""
	}
	var messenger ServiceMessenger
	if errors.As(err, &messenger) {
		if message := strings.TrimSpace(messenger.ServiceMessage()); message != "" {
			return message
		}
	}
	return strings.TrimSpace(err.Error())
}
