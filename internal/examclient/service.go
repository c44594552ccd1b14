package examclient

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultServer       = "http://127.0.0.1:8080"
	defaultHistoryLimit = 10
	defaultHTTPTimeout  = 5 * time.Second
)

type Config struct {
	ServerURL    string
	HistoryLimit int
	HTTPTimeout  time.Duration
}

// exam is the exam the terminal is working on. The server keeps no session;
// the state token is all there is.
type exam struct {
	topic string
	view  examView
}

func (e *exam) active() bool {
	return e != nil && e.view.State != ""
}

func Run(ctx context.Context, in io.Reader, out io.Writer, cfg Config) error {
	serverURL := strings.TrimSpace(cfg.ServerURL)
	if serverURL == "" {
		serverURL = defaultServer
	}
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	client := NewHTTPClient(serverURL, &http.Client{Timeout: timeout})
	reader := bufio.NewReader(in)
	var current *exam

	fmt.Fprintf(out, "exam-client\nserver=%s\n\n", serverURL)
	printHelp(out)

	for {
		fmt.Fprint(out, "\n> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		args := strings.Fields(line)
		command := strings.ToLower(args[0])

		switch command {
		case "help":
			printHelp(out)
		case "exit", "quit":
			return nil
		case "topics":
			if err := runTopics(ctx, out, client); err != nil {
				fmt.Fprintf(out, "error: %v\n", describeClientError(err, serverURL))
			}
		case "start":
			if len(args) != 2 {
				fmt.Fprintln(out, "usage: start <topic>")
				continue
			}
			view, err := client.Start(ctx, args[1], "")
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", describeClientError(err, serverURL))
				continue
			}
			current = &exam{topic: args[1], view: view}
			printView(out, view)
		case "resume":
			if len(args) != 3 {
				fmt.Fprintln(out, "usage: resume <topic> <token>")
				continue
			}
			view, err := client.State(ctx, args[1], args[2])
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", describeClientError(err, serverURL))
				continue
			}
			current = &exam{topic: args[1], view: view}
			printView(out, view)
		case "history":
			limit, parseErr := parsePositiveLimit(args, 1, historyLimit)
			if parseErr != nil {
				fmt.Fprintf(out, "invalid history limit: %v\n", parseErr)
				continue
			}
			topicRef := ""
			if current != nil {
				topicRef = current.topic
			}
			if err := runHistory(ctx, out, client, topicRef, limit); err != nil {
				fmt.Fprintf(out, "error: %v\n", describeClientError(err, serverURL))
			}
		case "show", "answer", "next", "prev", "submit", "finish", "review", "token":
			if !current.active() {
				fmt.Fprintln(out, "no exam in progress. use 'start <topic>' or 'resume <topic> <token>'.")
				continue
			}
			if err := runExamCommand(ctx, out, client, current, command, args[1:]); err != nil {
				fmt.Fprintf(out, "error: %v\n", describeClientError(err, serverURL))
			}
		default:
			fmt.Fprintln(out, "unknown command. type 'help' for usage.")
		}
	}
}

func runExamCommand(ctx context.Context, out io.Writer, client *HTTPClient, current *exam, command string, args []string) error {
	var (
		view examView
		err  error
	)

	switch command {
	case "show":
		printView(out, current.view)
		return nil
	case "token":
		fmt.Fprintln(out, current.view.State)
		return nil
	case "review":
		review, err := client.Review(ctx, current.view.State)
		if err != nil {
			return err
		}
		current.view.State = review.State
		printReview(out, review)
		return nil
	case "answer":
		if len(args) != 1 {
			fmt.Fprintln(out, "usage: answer <1-4>")
			return nil
		}
		optionCount := 4
		if question := current.view.Question; question != nil {
			optionCount = len(question.Options)
		}
		choice, ok := parseChoice(args[0], optionCount)
		if !ok {
			fmt.Fprintf(out, "answer must be 1-%d or A-%c\n", optionCount, 'A'+optionCount-1)
			return nil
		}
		view, err = client.Answer(ctx, current.view.State, &choice)
	default:
		view, err = client.Transition(ctx, command, current.view.State)
	}
	if err != nil {
		return err
	}

	current.view = view
	printView(out, view)
	if command == "submit" && view.SubmitArmed {
		fmt.Fprintln(out, "Type 'submit' again to confirm.")
	}
	return nil
}

func runTopics(ctx context.Context, out io.Writer, client *HTTPClient) error {
	payload, err := client.Topics(ctx)
	if err != nil {
		return err
	}

	if len(payload.ExamTopics) == 0 {
		fmt.Fprintln(out, "No exam topics.")
		return nil
	}

	fmt.Fprintln(out, "Exam topics:")
	for _, item := range payload.ExamTopics {
		fmt.Fprintf(out, "%d. %s\n", item.Number, item.Name)
	}
	if payload.Blueprint != nil {
		fmt.Fprintf(out, "%d questions, %s\n", payload.Blueprint.TotalQuestions, formatDuration(payload.Blueprint.DurationSeconds))
	}
	return nil
}

func runHistory(ctx context.Context, out io.Writer, client *HTTPClient, topicRef string, limit int) error {
	results, err := client.Results(ctx, topicRef, limit)
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Fprintln(out, "No recorded exams.")
		return nil
	}

	fmt.Fprintln(out, "Recorded exams:")
	for idx, entry := range results {
		fmt.Fprintf(out, "%d. %s %d/%d (%.1f%%) %s %s\n",
			idx+1,
			entry.TopicPath,
			entry.Score,
			entry.Total,
			entry.Percent,
			entry.Reason,
			entry.SubmittedAt.Format(time.RFC3339),
		)
	}
	return nil
}
