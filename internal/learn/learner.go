// Package learn walks a single topic in file order, revealing the answer and
// explanation after each question.
package learn

import (
	"errors"
	"fmt"

	"exam-app/internal/bank"
)

var (
	ErrEmptyPool      = errors.New("topic has no questions")
	ErrFinished       = errors.New("all questions answered")
	ErrAlreadyChecked = errors.New("answer already checked")
	ErrNotChecked     = errors.New("check the answer before moving on")
	ErrInvalidChoice  = errors.New("invalid answer choice")
	ErrOutOfRange     = errors.New("question number out of range")
)

// Feedback is revealed once the learner checks an answer.
type Feedback struct {
	Choice       int    `json:"choice"`
	Correct      bool   `json:"correct"`
	CorrectIndex int    `json:"correct_index"`
	CorrectText  string `json:"correct_text"`
	Explanation  string `json:"explanation,omitempty"`
}

// Grade checks choice against question without any session state.
func Grade(question bank.Question, choice int) (Feedback, error) {
	if choice < 0 || choice >= len(question.Options) {
		return Feedback{}, fmt.Errorf("%w: %d", ErrInvalidChoice, choice)
	}
	return Feedback{
		Choice:       choice,
		Correct:      choice == question.CorrectIndex,
		CorrectIndex: question.CorrectIndex,
		CorrectText:  question.OptionText(question.CorrectIndex),
		Explanation:  question.Explanation,
	}, nil
}

// Learner holds the progress of one learn-mode run. The correct count is
// counted from the last StartFrom or Restart.
type Learner struct {
	pool     *bank.Pool
	current  int
	correct  int
	feedback *Feedback
}

func New(pool *bank.Pool) (*Learner, error) {
	if pool.Len() == 0 {
		return nil, ErrEmptyPool
	}
	return &Learner{pool: pool}, nil
}

func (l *Learner) Topic() bank.Topic {
	return l.pool.Topic
}

func (l *Learner) Total() int {
	return l.pool.Len()
}

// Position is the 1-based number of the current question.
func (l *Learner) Position() int {
	return l.current + 1
}

func (l *Learner) Correct() int {
	return l.correct
}

func (l *Learner) Finished() bool {
	return l.current >= l.pool.Len()
}

// Current returns the question being studied.
func (l *Learner) Current() (bank.Question, error) {
	if l.Finished() {
		return bank.Question{}, ErrFinished
	}
	return l.pool.Questions[l.current], nil
}

// Feedback returns the revealed result for the current question, if any.
func (l *Learner) Feedback() (Feedback, bool) {
	if l.feedback == nil {
		return Feedback{}, false
	}
	return *l.feedback, true
}

// Check grades choice for the current question. Each question can be
// checked once.
func (l *Learner) Check(choice int) (Feedback, error) {
	question, err := l.Current()
	if err != nil {
		return Feedback{}, err
	}
	if l.feedback != nil {
		return Feedback{}, ErrAlreadyChecked
	}

	feedback, err := Grade(question, choice)
	if err != nil {
		return Feedback{}, err
	}
	if feedback.Correct {
		l.correct++
	}
	l.feedback = &feedback
	return feedback, nil
}

// Skip reveals the answer without counting it. Choice is -1 in the returned
// feedback.
func (l *Learner) Skip() (Feedback, error) {
	question, err := l.Current()
	if err != nil {
		return Feedback{}, err
	}
	if l.feedback != nil {
		return Feedback{}, ErrAlreadyChecked
	}
	l.feedback = &Feedback{
		Choice:       -1,
		CorrectIndex: question.CorrectIndex,
		CorrectText:  question.OptionText(question.CorrectIndex),
		Explanation:  question.Explanation,
	}
	return *l.feedback, nil
}

// Next moves past a checked question.
func (l *Learner) Next() error {
	if l.Finished() {
		return ErrFinished
	}
	if l.feedback == nil {
		return ErrNotChecked
	}
	l.feedback = nil
	l.current++
	return nil
}

// StartFrom jumps to question n (1-based) and resets the correct count.
func (l *Learner) StartFrom(n int) error {
	if n < 1 || n > l.pool.Len() {
		return fmt.Errorf("%w: %d (1-%d)", ErrOutOfRange, n, l.pool.Len())
	}
	l.current = n - 1
	l.correct = 0
	l.feedback = nil
	return nil
}

// Restart goes back to the first question.
func (l *Learner) Restart() {
	l.current = 0
	l.correct = 0
	l.feedback = nil
}
