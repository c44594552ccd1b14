// Package cli is the terminal learn mode: one topic, in file order, with the
// answer and explanation shown after every question.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"exam-app/internal/bank"
	"exam-app/internal/learn"
)

const maxAttempts = 3

var errQuit = errors.New("quit")

// PoolSource loads the question pool of a topic.
type PoolSource interface {
	Pool(topic bank.Topic) (*bank.Pool, error)
}

type Options struct {
	// Topic is a topic path, name or number. Empty asks interactively.
	Topic string
	// StartFrom is the 1-based question to begin with; 0 means the first.
	StartFrom int
}

func Run(ctx context.Context, in io.Reader, out io.Writer, catalog *bank.Catalog, pools PoolSource, opts Options) error {
	topics := catalog.Topics()
	if len(topics) == 0 {
		return fmt.Errorf("no topic files found in %s", catalog.Dir())
	}

	reader := bufio.NewReader(in)

	topic, err := chooseTopic(reader, out, catalog, opts.Topic)
	if err != nil {
		if errors.Is(err, errQuit) {
			return nil
		}
		return err
	}

	pool, err := pools.Pool(topic)
	if err != nil {
		return fmt.Errorf("load %s: %w", topic.Name, err)
	}
	learner, err := learn.New(pool)
	if err != nil {
		return fmt.Errorf("%s: %w", topic.Name, err)
	}
	if opts.StartFrom > 0 {
		if err := learner.StartFrom(opts.StartFrom); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "Learning %s (%d questions). Answer with 1-%d, \"q\" to quit.\n", topic.Name, learner.Total(), bank.OptionCount)
	if len(pool.Warnings) > 0 {
		fmt.Fprintf(out, "Warning: %d question(s) have an unreadable correct answer and default to option 1:\n", len(pool.Warnings))
		for _, warning := range pool.Warnings {
			fmt.Fprintf(out, "  %s\n", warning)
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if learner.Finished() {
			fmt.Fprintf(out, "\nFinished %s: %d/%d correct.\n", topic.Name, learner.Correct(), learner.Total())
			if !askYesNo(reader, out, "Start again from question 1? [y/N] ") {
				return nil
			}
			learner.Restart()
			continue
		}

		question, err := learner.Current()
		if err != nil {
			return err
		}
		printQuestion(out, learner.Position(), learner.Total(), question)

		choice, err := getAnswer(reader, out, len(question.Options))
		fmt.Fprintln(out)
		switch {
		case errors.Is(err, errQuit):
			fmt.Fprintf(out, "Stopped at question %d: %d correct so far.\n", learner.Position(), learner.Correct())
			return nil
		case err != nil:
			feedback, skipErr := learner.Skip()
			if skipErr != nil {
				return skipErr
			}
			fmt.Fprintf(out, "Skipping. Correct answer was %d. %s\n", feedback.CorrectIndex+1, feedback.CorrectText)
			printExplanation(out, feedback)
		default:
			feedback, checkErr := learner.Check(choice)
			if checkErr != nil {
				return checkErr
			}
			if feedback.Correct {
				fmt.Fprintln(out, "Correct!")
			} else {
				fmt.Fprintf(out, "Wrong. Correct answer was %d. %s\n", feedback.CorrectIndex+1, feedback.CorrectText)
			}
			printExplanation(out, feedback)
		}

		fmt.Fprintf(out, "Question %d | correct so far: %d\n", learner.Position(), learner.Correct())
		if err := learner.Next(); err != nil {
			return err
		}
	}
}

func chooseTopic(reader *bufio.Reader, out io.Writer, catalog *bank.Catalog, ref string) (bank.Topic, error) {
	if strings.TrimSpace(ref) != "" {
		topic, ok := catalog.Resolve(ref)
		if !ok {
			return bank.Topic{}, fmt.Errorf("unknown topic %q", ref)
		}
		return topic, nil
	}

	topics := catalog.Topics()
	fmt.Fprintln(out, "Topics:")
	for idx, topic := range topics {
		fmt.Fprintf(out, "  %d) %s\n", idx+1, topic.Name)
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		fmt.Fprint(out, "Choose a topic: ")
		line, err := reader.ReadString('\n')
		if err != nil && strings.TrimSpace(line) == "" {
			return bank.Topic{}, errQuit
		}
		line = strings.TrimSpace(line)
		if strings.EqualFold(line, "q") {
			return bank.Topic{}, errQuit
		}
		if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(topics) {
			return topics[n-1], nil
		}
		if topic, ok := catalog.Resolve(line); ok {
			return topic, nil
		}
		fmt.Fprintf(out, "Invalid choice. Enter 1-%d.\n", len(topics))
	}
	return bank.Topic{}, errors.New("no topic chosen")
}

func printQuestion(out io.Writer, position, total int, question bank.Question) {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Q%d/%d: %s\n\n", position, total, question.Question)
	for idx, option := range question.Options {
		fmt.Fprintf(out, "%d. %s\n", idx+1, option)
	}
	fmt.Fprintln(out)
}

func printExplanation(out io.Writer, feedback learn.Feedback) {
	if feedback.Explanation != "" {
		fmt.Fprintf(out, "Explanation: %s\n", feedback.Explanation)
	}
}

// getAnswer accepts 1-4 or A-D. It returns errQuit on "q" or end of input.
func getAnswer(reader *bufio.Reader, out io.Writer, optionCount int) (int, error) {
	if optionCount < 1 {
		return -1, errors.New("question has no options")
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		line, err := reader.ReadString('\n')
		if err != nil && strings.TrimSpace(line) == "" {
			return -1, errQuit
		}

		answer := strings.ToUpper(strings.TrimSpace(line))
		if answer == "Q" {
			return -1, errQuit
		}
		if idx, ok := parseChoice(answer, optionCount); ok {
			return idx, nil
		}

		if attempt < maxAttempts {
			fmt.Fprintf(out, "\nInvalid input. Please enter 1-%d or A-%c.\n", optionCount, byte('A'+optionCount-1))
		}
	}

	return -1, errors.New("too many invalid answers")
}

func parseChoice(answer string, optionCount int) (int, bool) {
	if len(answer) != 1 {
		return -1, false
	}
	switch c := answer[0]; {
	case c >= '1' && int(c-'1') < optionCount:
		return int(c - '1'), true
	case c >= 'A' && int(c-'A') < optionCount:
		return int(c - 'A'), true
	}
	return -1, false
}

func askYesNo(reader *bufio.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	line, _ := reader.ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
