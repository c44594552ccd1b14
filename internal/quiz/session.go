package quiz

import (
	"errors"
	"fmt"
	"time"

	"exam-app/internal/bank"
)

var (
	ErrSubmitted     = errors.New("exam already submitted")
	ErrNotSubmitted  = errors.New("exam not submitted yet")
	ErrInvalidChoice = errors.New("invalid answer choice")
	ErrInvalidIndex  = errors.New("question index out of range")
	ErrNotLast       = errors.New("finish is only available on the last question")
)

type Status string

const (
	StatusActive    Status = "active"
	StatusSubmitted Status = "submitted"
)

type SubmitReason string

const (
	SubmitManual  SubmitReason = "manual"
	SubmitFinish  SubmitReason = "finish"
	SubmitTimeout SubmitReason = "timeout"
)

// Item is one question of an exam with the user's progress on it.
// IsCorrect is authoritative only once the session is submitted.
type Item struct {
	Question   bank.Question
	UserChoice *int
	IsCorrect  *bool
}

// Session is the state of one exam. Len(Items) never changes after
// NewSession; CurrentIndex stays within [0, len(Items)-1].
type Session struct {
	ID           string
	TopicPath    string
	Items        []Item
	CurrentIndex int
	StartTime    time.Time
	Duration     time.Duration
	Submitted    bool
	Score        int
	// SubmitArmed is set by the first RequestSubmit and cleared by any other
	// state change.
	SubmitArmed bool
	// SubmittedBy is set only for transitions made in this process.
	SubmittedBy SubmitReason
}

func NewSession(id, topicPath string, items []Item, start time.Time, duration time.Duration) *Session {
	return &Session{
		ID:        id,
		TopicPath: topicPath,
		Items:     items,
		StartTime: start,
		Duration:  duration,
	}
}

func (s *Session) Status() Status {
	if s.Submitted {
		return StatusSubmitted
	}
	return StatusActive
}

func (s *Session) Len() int {
	return len(s.Items)
}

// Current returns the item at CurrentIndex.
func (s *Session) Current() (Item, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Items) {
		return Item{}, false
	}
	return s.Items[s.CurrentIndex], true
}

// Remaining is Duration minus the time elapsed since StartTime. It goes
// negative once the exam is overdue.
func (s *Session) Remaining(now time.Time) time.Duration {
	return s.Duration - now.Sub(s.StartTime)
}

func (s *Session) AnsweredCount() int {
	count := 0
	for _, item := range s.Items {
		if item.UserChoice != nil {
			count++
		}
	}
	return count
}

// Tick submits the session when its time is up. It returns true when this
// call performed the transition.
func (s *Session) Tick(now time.Time) bool {
	if s.Submitted || s.Remaining(now) > 0 {
		return false
	}
	s.submit(SubmitTimeout)
	return true
}

// Answer records choice for item index. A nil choice clears the answer.
func (s *Session) Answer(index int, choice *int) error {
	if s.Submitted {
		return ErrSubmitted
	}
	if index < 0 || index >= len(s.Items) {
		return fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}
	if choice != nil && (*choice < 0 || *choice >= len(s.Items[index].Question.Options)) {
		return fmt.Errorf("%w: %d", ErrInvalidChoice, *choice)
	}

	var stored *int
	if choice != nil {
		value := *choice
		stored = &value
	}
	s.Items[index].UserChoice = stored
	s.SubmitArmed = false
	return nil
}

func (s *Session) Advance() {
	if s.CurrentIndex < len(s.Items)-1 {
		s.CurrentIndex++
	}
	s.SubmitArmed = false
}

func (s *Session) Retreat() {
	if s.CurrentIndex > 0 {
		s.CurrentIndex--
	}
	s.SubmitArmed = false
}

// RequestSubmit implements the two-step confirmation: the first call arms,
// a second call with nothing in between commits. It returns true once
// submitted.
func (s *Session) RequestSubmit() (bool, error) {
	if s.Submitted {
		return true, ErrSubmitted
	}
	if !s.SubmitArmed {
		s.SubmitArmed = true
		return false, nil
	}
	s.submit(SubmitManual)
	return true, nil
}

// Finish submits directly from the last question.
func (s *Session) Finish() error {
	if s.Submitted {
		return ErrSubmitted
	}
	if s.CurrentIndex != len(s.Items)-1 {
		return ErrNotLast
	}
	s.submit(SubmitFinish)
	return nil
}

func (s *Session) submit(reason SubmitReason) {
	score := 0
	for idx := range s.Items {
		item := &s.Items[idx]
		correct := item.UserChoice != nil && *item.UserChoice == item.Question.CorrectIndex
		item.IsCorrect = &correct
		if correct {
			score++
		}
	}
	s.Score = score
	s.Submitted = true
	s.SubmitArmed = false
	s.SubmittedBy = reason
}
