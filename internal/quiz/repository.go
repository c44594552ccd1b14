package quiz

import (
	"context"
	"errors"
	"time"
)

var (
	ErrTopicNotFound  = errors.New("topic not found")
	ErrInvalidTopic   = errors.New("topic cannot be used as an exam topic")
	ErrResultNotFound = errors.New("exam result not found")
)

// ExamResult is the persisted record of a submitted exam.
type ExamResult struct {
	SessionID   string
	TopicPath   string
	Score       int
	Total       int
	Reason      SubmitReason
	StartedAt   time.Time
	SubmittedAt time.Time
	Items       []ResultItem
}

type ResultItem struct {
	Position   int
	QuestionID string
	Source     string
	UserChoice *int
	IsCorrect  bool
}

type ResultRepository interface {
	// SaveResult stores result once per session ID; saving the same session
	// again is a no-op.
	SaveResult(ctx context.Context, result ExamResult) error
	ListResults(ctx context.Context, topicPath string, limit int) ([]ExamResult, error)
	GetResult(ctx context.Context, sessionID string) (ExamResult, error)
}
