package examclient

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  help")
	fmt.Fprintln(out, "  topics")
	fmt.Fprintln(out, "  start <topic>")
	fmt.Fprintln(out, "  show")
	fmt.Fprintln(out, "  answer <1-4>")
	fmt.Fprintln(out, "  next | prev")
	fmt.Fprintln(out, "  submit (twice to confirm) | finish (on the last question)")
	fmt.Fprintln(out, "  review")
	fmt.Fprintln(out, "  history [limit]")
	fmt.Fprintln(out, "  token")
	fmt.Fprintln(out, "  resume <topic> <token>")
	fmt.Fprintln(out, "  exit")
}

func printView(out io.Writer, view examView) {
	for _, warning := range view.Warnings {
		fmt.Fprintf(out, "warning: %s\n", warning)
	}
	if view.Resumed {
		fmt.Fprintln(out, "Resumed saved exam.")
	}

	if view.submitted() {
		score, percent := 0, 0.0
		if view.Score != nil {
			score = *view.Score
		}
		if view.Percent != nil {
			percent = *view.Percent
		}
		fmt.Fprintf(out, "Exam submitted. Score: %d/%d (%.1f%%)\n", score, view.Total, percent)
		if view.SubmittedBy != "" {
			fmt.Fprintf(out, "Submitted by: %s\n", view.SubmittedBy)
		}
		fmt.Fprintln(out, "Type 'review' to see the answers.")
		return
	}

	fmt.Fprintf(out, "%s | Q%d/%d | answered %d | time left %s\n",
		view.Topic.Name,
		view.CurrentIndex+1,
		view.Total,
		view.Answered,
		formatDuration(view.RemainingSeconds),
	)
	question := view.Question
	if question == nil {
		return
	}
	fmt.Fprintf(out, "\n%s\n", question.Question)
	if question.Source != "" {
		fmt.Fprintf(out, "(%s)\n", question.Source)
	}
	fmt.Fprintln(out)
	for idx, option := range question.Options {
		marker := " "
		if question.UserChoice != nil && *question.UserChoice == idx {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %c. %s\n", marker, 'A'+idx, option)
	}
}

func printReview(out io.Writer, review reviewResponse) {
	fmt.Fprintf(out, "Score: %d/%d (%.1f%%)\n", review.Score, review.Total, review.Percent)
	for _, item := range review.Items {
		verdict := "wrong"
		switch {
		case item.UserChoice == nil:
			verdict = "unanswered"
		case item.IsCorrect:
			verdict = "correct"
		}
		fmt.Fprintf(out, "\n%d. [%s] %s\n", item.Number, verdict, item.Question)
		fmt.Fprintf(out, "   answer: %s\n", optionLabel(item.Options, item.CorrectIndex))
		if item.UserChoice != nil && !item.IsCorrect {
			fmt.Fprintf(out, "   yours:  %s\n", optionLabel(item.Options, *item.UserChoice))
		}
		if strings.TrimSpace(item.Explanation) != "" {
			fmt.Fprintf(out, "   %s\n", item.Explanation)
		}
	}
}

func optionLabel(options []string, idx int) string {
	if idx < 0 || idx >= len(options) {
		return "unknown"
	}
	return fmt.Sprintf("%c. %s", 'A'+idx, options[idx])
}

// parseChoice accepts 1-n or a letter and returns the 0-based option index.
func parseChoice(value string, optionCount int) (int, bool) {
	value = strings.ToUpper(strings.TrimSpace(value))
	if n, err := strconv.Atoi(value); err == nil {
		if n < 1 || n > optionCount {
			return 0, false
		}
		return n - 1, true
	}
	if len(value) != 1 {
		return 0, false
	}
	idx := int(value[0] - 'A')
	if idx < 0 || idx >= optionCount {
		return 0, false
	}
	return idx, true
}

func parsePositiveLimit(args []string, index int, defaultValue int) (int, error) {
	if len(args) <= index {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(args[index])
	if err != nil || value <= 0 {
		return 0, errors.New("must be a positive integer")
	}
	return value, nil
}

func formatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func describeClientError(err error, serverURL string) error {
	if errors.Is(err, ErrServiceUnavailable) {
		return fmt.Errorf("exam service unavailable at %s", serverURL)
	}
	return err
}
