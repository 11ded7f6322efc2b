package httpapi

import (
	"github.com/certsherpa/quiz-app/internal/images"
	"github.com/certsherpa/quiz-app/internal/quiz"
)

// questionView is the question as shown to players. Answer keys stay on the
// server; grading happens there.
type questionView struct {
	ID       quiz.ID      `json:"id"`
	Text     string       `json:"question_text"`
	Options  []optionView `json:"options"`
	ImageURL string       `json:"image_url,omitempty"`
	ImageAlt string       `json:"image_alt,omitempty"`
}

type optionView struct {
	Letter quiz.Option `json:"letter"`
	Text   string      `json:"text"`
}

type imageView struct {
	Name string      `json:"name"`
	URL  string      `json:"url"`
	Alt  string      `json:"alt"`
	Kind images.Kind `json:"kind"`
	Box  images.Box  `json:"box"`
}

type sessionResponse struct {
	SessionID     string          `json:"session_id"`
	Mode          quiz.SubmitMode `json:"mode"`
	State         quiz.State      `json:"state"`
	Question      *questionView   `json:"question,omitempty"`
	Selected      quiz.Option     `json:"selected_option,omitempty"`
	Grade         *quiz.Grade     `json:"grade,omitempty"`
	Answered      bool            `json:"answered"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	Images        []imageView     `json:"images"`
	ImagesPending bool            `json:"images_pending"`
	Generation    uint64          `json:"generation"`
	// LastGrade is the grade of the answer just submitted in simple mode,
	// where the session has already moved on.
	LastGrade *quiz.Grade `json:"last_grade,omitempty"`
}

type createSessionRequest struct {
	Mode string `json:"mode"`
}

type selectRequest struct {
	Option string `json:"option"`
}

type imagesResponse struct {
	Images []imageView `json:"images"`
}

type errorResponse struct {
	Error   string           `json:"error"`
	Code    string           `json:"code,omitempty"`
	Session *sessionResponse `json:"session,omitempty"`
}

func toSessionResponse(id string, mode quiz.SubmitMode, snap quiz.Snapshot) sessionResponse {
	response := sessionResponse{
		SessionID:     id,
		Mode:          mode,
		State:         snap.State,
		Selected:      snap.Selected,
		Grade:         snap.Grade,
		Answered:      snap.Answered,
		ErrorMessage:  snap.ErrorMessage,
		Images:        toImageViews(snap.Images),
		ImagesPending: snap.ImagesPending,
		Generation:    snap.Generation,
	}
	if snap.Question != nil {
		view := toQuestionView(*snap.Question)
		response.Question = &view
	}
	return response
}

func toQuestionView(q quiz.Question) questionView {
	options := make([]optionView, 0, len(quiz.Options))
	for _, letter := range quiz.Options {
		options = append(options, optionView{Letter: letter, Text: q.OptionText(letter)})
	}
	return questionView{
		ID:       q.ID,
		Text:     q.Text,
		Options:  options,
		ImageURL: q.ImageURL,
		ImageAlt: q.ImageAlt,
	}
}

func toImageViews(in []images.Image) []imageView {
	out := make([]imageView, 0, len(in))
	for _, img := range in {
		out = append(out, imageView{
			Name: img.Name,
			URL:  img.URL,
			Alt:  img.Alt,
			Kind: img.Kind,
			Box:  img.Box(),
		})
	}
	return out
}
