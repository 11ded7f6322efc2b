package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/certsherpa/quiz-app/internal/images"
	"github.com/certsherpa/quiz-app/internal/quiz"
)

const defaultImageWait = 2 * time.Second

// Controller is a quiz session as seen by the renderer. *quiz.Session drives
// a local session; *userclient.Session drives one hosted by quiz-service.
type Controller interface {
	Start(ctx context.Context) error
	LoadNext(ctx context.Context) error
	Select(choice quiz.Option) error
	Submit(ctx context.Context) (*quiz.Grade, error)
	Snapshot() quiz.Snapshot
	AwaitImages(ctx context.Context) ([]images.Image, error)
}

type Config struct {
	// ImageWait bounds how long a render waits for image discovery.
	// Negative disables waiting.
	ImageWait time.Duration
}

func Run(ctx context.Context, in io.Reader, out io.Writer, session Controller, cfg Config) error {
	if session == nil {
		return errors.New("quiz session is required")
	}
	wait := cfg.ImageWait
	if wait == 0 {
		wait = defaultImageWait
	}

	reader := bufio.NewReader(in)
	printHelp(out)

	fmt.Fprintln(out, "\nLoading question...")
	if err := session.Start(ctx); err != nil && !errors.Is(err, quiz.ErrFetchFailed) {
		return err
	}

	var notice string
	for {
		snapshot := session.Snapshot()
		if snapshot.ImagesPending && wait > 0 {
			waitCtx, cancel := context.WithTimeout(ctx, wait)
			_, _ = session.AwaitImages(waitCtx)
			cancel()
			snapshot = session.Snapshot()
		}

		render(out, snapshot)
		if notice != "" {
			fmt.Fprintln(out, notice)
			notice = ""
		}
		fmt.Fprint(out, prompt(snapshot.State))

		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || strings.TrimSpace(line) == "") {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		command := strings.ToLower(strings.TrimSpace(line))
		switch command {
		case "quit", "exit", "q":
			return nil
		case "help", "?":
			printHelp(out)
		case "next", "retry":
			fmt.Fprintln(out, "\nLoading question...")
			notice = describe(session.LoadNext(ctx))
		case "", "submit":
			if snapshot.State == quiz.StateError {
				notice = "Type retry to load another question or quit to exit."
				continue
			}
			grade, err := session.Submit(ctx)
			notice = describe(err)
			if notice == "" && grade != nil && snapshot.State == quiz.StateDisplayed && session.Snapshot().State != quiz.StateGraded {
				// Simple mode has moved on; show the grade of the answer just sent.
				notice = "Previous answer: " + grade.Message
			}
		default:
			option, err := quiz.ParseOption(command)
			if err != nil {
				notice = "Unknown command. Type help for usage."
				continue
			}
			notice = describe(session.Select(option))
		}
	}
}

func render(out io.Writer, snapshot quiz.Snapshot) {
	fmt.Fprintln(out)
	switch snapshot.State {
	case quiz.StateIdle, quiz.StateLoading:
		fmt.Fprintln(out, "Loading question...")
	case quiz.StateError:
		message := snapshot.ErrorMessage
		if message == "" {
			message = quiz.NoQuestionMessage
		}
		fmt.Fprintf(out, "Error: %s\n", message)
	case quiz.StateDisplayed, quiz.StateGraded:
		renderQuestion(out, snapshot)
	}
}

func renderQuestion(out io.Writer, snapshot quiz.Snapshot) {
	question := snapshot.Question
	if question == nil {
		return
	}

	fmt.Fprintf(out, "%s\n\n", question.Text)
	for _, img := range snapshot.Images {
		fmt.Fprintf(out, "[image] %s (%s)\n        %s\n", img.Alt, boxHint(img), img.URL)
	}
	if snapshot.ImagesPending {
		fmt.Fprintln(out, "[image] still looking...")
	}
	if len(snapshot.Images) > 0 || snapshot.ImagesPending {
		fmt.Fprintln(out)
	}

	for _, letter := range quiz.Options {
		marker := " "
		if snapshot.Selected == letter {
			marker = ">"
		}
		fmt.Fprintf(out, "%s %s. %s\n", marker, letter, question.OptionText(letter))
	}

	if snapshot.Grade != nil {
		fmt.Fprintf(out, "\n%s\n", snapshot.Grade.Message)
	}
	if snapshot.ErrorMessage != "" {
		fmt.Fprintf(out, "\nCould not record your answer: %s\n", snapshot.ErrorMessage)
	}
}

func boxHint(img images.Image) string {
	box := img.Box()
	if !box.Responsive {
		return "vector, natural size"
	}
	return fmt.Sprintf("raster, fits %dx%d", box.Width, box.Height)
}

func prompt(state quiz.State) string {
	switch state {
	case quiz.StateError:
		return "\n(retry/quit) > "
	case quiz.StateGraded:
		return "\n(Enter for next question) > "
	default:
		return "\n(A-D, submit, next, quit) > "
	}
}

func describe(err error) string {
	switch {
	case err == nil, errors.Is(err, quiz.ErrFetchFailed), errors.Is(err, quiz.ErrPersistFailed):
		// Both show up in the rendered snapshot.
		return ""
	case errors.Is(err, quiz.ErrNoSelection):
		return "Select an option first."
	case errors.Is(err, quiz.ErrInvalidTransition):
		return "That is not available right now."
	case errors.Is(err, quiz.ErrBusy):
		return "Still working on the previous request."
	default:
		return fmt.Sprintf("error: %v", err)
	}
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  a-d        select an option")
	fmt.Fprintln(out, "  submit     submit the selection (or press Enter)")
	fmt.Fprintln(out, "  next       load another question")
	fmt.Fprintln(out, "  retry      reload after an error")
	fmt.Fprintln(out, "  quit")
}
