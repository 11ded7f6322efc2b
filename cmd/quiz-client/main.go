package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/certsherpa/quiz-app/internal/cli"
	"github.com/certsherpa/quiz-app/internal/quiz"
	"github.com/certsherpa/quiz-app/internal/userclient"
)

func main() {
	server := flag.String("server", "http://127.0.0.1:8080", "quiz service base URL")
	mode := flag.String("mode", "", "submit mode: two_step or simple (server default when empty)")
	timeout := flag.Duration("timeout", 5*time.Second, "HTTP timeout")
	imageWait := flag.Duration("image-wait", 2*time.Second, "how long to wait for question images; negative disables")
	flag.Parse()

	var submitMode quiz.SubmitMode
	if *mode != "" {
		parsed, err := quiz.ParseSubmitMode(*mode)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		submitMode = parsed
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := userclient.NewHTTPClient(*server, &http.Client{Timeout: *timeout + *imageWait})
	session := userclient.NewSession(client, submitMode, *timeout)

	err := cli.Run(ctx, os.Stdin, os.Stdout, session, cli.Config{ImageWait: *imageWait})
	session.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", userclient.DescribeError(err, client.BaseURL()))
		os.Exit(1)
	}
}
