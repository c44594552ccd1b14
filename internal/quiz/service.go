package quiz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"exam-app/internal/bank"
	"exam-app/internal/logger"
)

// Topics is the part of the topic catalog the service needs.
type Topics interface {
	TopicIndex
	Resolve(ref string) (bank.Topic, bool)
}

// Observer receives exam lifecycle events, typically for metrics.
type Observer interface {
	ExamStarted(topic string)
	ExamSubmitted(topic string, reason SubmitReason, score, total int)
	StateFallback(reason string)
}

type nopObserver struct{}

func (nopObserver) ExamStarted(string)                           {}
func (nopObserver) ExamSubmitted(string, SubmitReason, int, int) {}
func (nopObserver) StateFallback(string)                         {}

// QuestionView is the current question as shown to the examinee. The
// correct answer is not part of it.
type QuestionView struct {
	ID         string   `json:"question_id"`
	Number     int      `json:"number"`
	Question   string   `json:"question"`
	Options    []string `json:"options"`
	Source     string   `json:"source"`
	UserChoice *int     `json:"user_choice"`
}

type View struct {
	SessionID        string        `json:"session_id"`
	Topic            bank.Topic    `json:"topic"`
	Status           Status        `json:"status"`
	CurrentIndex     int           `json:"current_index"`
	Total            int           `json:"total"`
	Answered         int           `json:"answered"`
	RemainingSeconds int           `json:"remaining_seconds"`
	Question         *QuestionView `json:"question,omitempty"`
	SubmitArmed      bool          `json:"submit_armed"`
	Score            *int          `json:"score,omitempty"`
	Percent          *float64      `json:"percent,omitempty"`
	SubmittedBy      SubmitReason  `json:"submitted_by,omitempty"`
	Resumed          bool          `json:"resumed"`
	Warnings         []string      `json:"warnings,omitempty"`
}

// Snapshot is the outcome of one operation: the view to render and the
// state token that carries the session to the next request.
type Snapshot struct {
	View  View
	Token string
}

type Service struct {
	topics    Topics
	pools     PoolSource
	composer  *Composer
	results   ResultRepository
	observer  Observer
	log       *logger.Logger
	now       func() time.Time
	newID     func() string
	blueprint Blueprint
}

type ServiceOption func(*Service)

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(newID func() string) ServiceOption {
	return func(s *Service) { s.newID = newID }
}

func WithObserver(observer Observer) ServiceOption {
	return func(s *Service) {
		if observer != nil {
			s.observer = observer
		}
	}
}

// NewService wires the exam flow. results may be nil, in which case
// submitted exams are not recorded.
func NewService(topics Topics, pools PoolSource, composer *Composer, results ResultRepository, log *logger.Logger, opts ...ServiceOption) *Service {
	if log == nil {
		log = logger.Nop()
	}
	s := &Service{
		topics:    topics,
		pools:     pools,
		composer:  composer,
		results:   results,
		observer:  nopObserver{},
		log:       log,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
		blueprint: composer.Blueprint(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Blueprint() Blueprint {
	return s.blueprint
}

// ExamTopics lists the topics that can be chosen for an exam.
func (s *Service) ExamTopics(all []bank.Topic) []bank.Topic {
	out := make([]bank.Topic, 0, len(all))
	for _, topic := range all {
		if s.blueprint.IsExamTopic(topic.Number) {
			out = append(out, topic)
		}
	}
	return out
}

// Start composes a new exam for topicRef.
func (s *Service) Start(ctx context.Context, topicRef string) (Snapshot, error) {
	topic, err := s.examTopic(topicRef)
	if err != nil {
		return Snapshot{}, err
	}
	return s.start(ctx, topic, nil)
}

// Resume restores the exam carried by token. Tokens for another topic,
// malformed tokens and tokens referring to unknown questions all fall back
// to a fresh exam; the reason is reported in View.Warnings.
func (s *Service) Resume(ctx context.Context, topicRef, token string) (Snapshot, error) {
	topic, err := s.examTopic(topicRef)
	if err != nil {
		return Snapshot{}, err
	}
	if strings.TrimSpace(token) == "" {
		return s.start(ctx, topic, nil)
	}

	lookup, err := s.lookupFor(topic)
	if err != nil {
		return Snapshot{}, err
	}

	session, ok, err := Restore(token, topic.Path, lookup)
	switch {
	case err != nil:
		s.log.Warn("exam state rejected", "topic", topic.Path, "error", err)
		s.observer.StateFallback(fallbackReason(err))
		return s.start(ctx, topic, []string{"saved exam state could not be restored: " + err.Error()})
	case !ok:
		s.observer.StateFallback("topic_mismatch")
		return s.start(ctx, topic, []string{"saved exam state belongs to another topic"})
	}

	s.tick(ctx, session)
	snapshot, err := s.snapshot(topic, session, nil)
	if err != nil {
		return Snapshot{}, err
	}
	snapshot.View.Resumed = true
	return snapshot, nil
}

// Answer records choice for the item at index, or the current item when
// index is nil. A nil choice clears the answer.
func (s *Service) Answer(ctx context.Context, token string, index, choice *int) (Snapshot, error) {
	return s.mutate(ctx, token, func(session *Session) error {
		target := session.CurrentIndex
		if index != nil {
			target = *index
		}
		return session.Answer(target, choice)
	})
}

func (s *Service) Next(ctx context.Context, token string) (Snapshot, error) {
	return s.mutate(ctx, token, func(session *Session) error {
		if session.Submitted {
			return ErrSubmitted
		}
		session.Advance()
		return nil
	})
}

func (s *Service) Prev(ctx context.Context, token string) (Snapshot, error) {
	return s.mutate(ctx, token, func(session *Session) error {
		if session.Submitted {
			return ErrSubmitted
		}
		session.Retreat()
		return nil
	})
}

// Submit is the two-step submit: the first call arms, the second commits.
func (s *Service) Submit(ctx context.Context, token string) (Snapshot, error) {
	return s.mutate(ctx, token, func(session *Session) error {
		_, err := session.RequestSubmit()
		return err
	})
}

// Finish submits without confirmation from the last question.
func (s *Service) Finish(ctx context.Context, token string) (Snapshot, error) {
	return s.mutate(ctx, token, func(session *Session) error {
		return session.Finish()
	})
}

// Review scores a submitted exam. An overdue exam is submitted first.
func (s *Service) Review(ctx context.Context, token string) (Result, string, error) {
	topic, session, err := s.load(token)
	if err != nil {
		return Result{}, "", err
	}
	s.tick(ctx, session)

	result, err := Review(session)
	if err != nil {
		return Result{}, "", err
	}
	encoded, err := Encode(session)
	if err != nil {
		return Result{}, "", err
	}
	s.log.Debug("exam reviewed", "topic", topic.Path, "session_id", session.ID, "score", result.Score)
	return result, encoded, nil
}

func (s *Service) History(ctx context.Context, topicRef string, limit int) ([]ExamResult, error) {
	if s.results == nil {
		return nil, nil
	}
	topicPath := ""
	if strings.TrimSpace(topicRef) != "" {
		topic, ok := s.topics.Resolve(topicRef)
		if !ok {
			return nil, ErrTopicNotFound
		}
		topicPath = topic.Path
	}
	return s.results.ListResults(ctx, topicPath, limit)
}

func (s *Service) GetResult(ctx context.Context, sessionID string) (ExamResult, error) {
	if s.results == nil {
		return ExamResult{}, ErrResultNotFound
	}
	return s.results.GetResult(ctx, strings.TrimSpace(sessionID))
}

func (s *Service) start(_ context.Context, topic bank.Topic, warnings []string) (Snapshot, error) {
	composition, err := s.composer.Compose(topic)
	if err != nil {
		return Snapshot{}, err
	}

	session := NewSession(s.newID(), topic.Path, composition.Items, s.now(), s.blueprint.Duration)
	s.observer.ExamStarted(topic.Path)
	s.log.Info("exam started", "topic", topic.Path, "session_id", session.ID, "questions", session.Len())

	return s.snapshot(topic, session, append(warnings, composition.Warnings...))
}

func (s *Service) mutate(ctx context.Context, token string, apply func(*Session) error) (Snapshot, error) {
	topic, session, err := s.load(token)
	if err != nil {
		return Snapshot{}, err
	}

	// An overdue exam is submitted as is; the late operation is dropped.
	if s.tick(ctx, session) {
		return s.snapshot(topic, session, []string{"time is up, the exam was submitted automatically"})
	}

	if err := apply(session); err != nil {
		return Snapshot{}, err
	}
	if session.SubmittedBy != "" {
		s.record(ctx, session)
	}
	return s.snapshot(topic, session, nil)
}

// load rebuilds the session carried by token. Unlike Resume, failures are
// returned to the caller.
func (s *Service) load(token string) (bank.Topic, *Session, error) {
	projection, err := Decode(token)
	if err != nil {
		return bank.Topic{}, nil, err
	}
	topic, ok := s.topics.ByPath(projection.TopicPath)
	if !ok {
		return bank.Topic{}, nil, fmt.Errorf("%w: %s", ErrTopicNotFound, projection.TopicPath)
	}
	lookup, err := s.lookupFor(topic)
	if err != nil {
		return bank.Topic{}, nil, err
	}
	session, err := Rebuild(projection, lookup)
	if err != nil {
		return bank.Topic{}, nil, err
	}
	return topic, session, nil
}

func (s *Service) tick(ctx context.Context, session *Session) bool {
	if !session.Tick(s.now()) {
		return false
	}
	s.record(ctx, session)
	return true
}

func (s *Service) record(ctx context.Context, session *Session) {
	s.observer.ExamSubmitted(session.TopicPath, session.SubmittedBy, session.Score, session.Len())
	s.log.Info("exam submitted",
		"topic", session.TopicPath,
		"session_id", session.ID,
		"reason", string(session.SubmittedBy),
		"score", session.Score,
		"total", session.Len(),
	)
	if s.results == nil {
		return
	}
	if err := s.results.SaveResult(ctx, s.resultOf(session)); err != nil {
		s.log.Warn("exam result not saved", "session_id", session.ID, "error", err)
	}
}

func (s *Service) resultOf(session *Session) ExamResult {
	items := make([]ResultItem, 0, len(session.Items))
	for idx, item := range session.Items {
		resultItem := ResultItem{
			Position:   idx,
			QuestionID: item.Question.ID,
			Source:     item.Question.Source,
			UserChoice: item.UserChoice,
		}
		if item.IsCorrect != nil {
			resultItem.IsCorrect = *item.IsCorrect
		}
		items = append(items, resultItem)
	}
	return ExamResult{
		SessionID:   session.ID,
		TopicPath:   session.TopicPath,
		Score:       session.Score,
		Total:       session.Len(),
		Reason:      session.SubmittedBy,
		StartedAt:   session.StartTime.UTC(),
		SubmittedAt: s.now().UTC(),
		Items:       items,
	}
}

func (s *Service) snapshot(topic bank.Topic, session *Session, warnings []string) (Snapshot, error) {
	token, err := Encode(session)
	if err != nil {
		return Snapshot{}, err
	}

	remaining := session.Remaining(s.now())
	if remaining < 0 {
		remaining = 0
	}
	view := View{
		SessionID:        session.ID,
		Topic:            topic,
		Status:           session.Status(),
		CurrentIndex:     session.CurrentIndex,
		Total:            session.Len(),
		Answered:         session.AnsweredCount(),
		RemainingSeconds: int(remaining / time.Second),
		SubmitArmed:      session.SubmitArmed,
		SubmittedBy:      session.SubmittedBy,
		Warnings:         warnings,
	}
	if session.Submitted {
		score := session.Score
		percent := Percent(score, session.Len())
		view.Score = &score
		view.Percent = &percent
		view.RemainingSeconds = 0
	} else if item, ok := session.Current(); ok {
		view.Question = &QuestionView{
			ID:         item.Question.ID,
			Number:     session.CurrentIndex + 1,
			Question:   item.Question.Question,
			Options:    item.Question.Options,
			Source:     item.Question.Source,
			UserChoice: item.UserChoice,
		}
	}
	return Snapshot{View: view, Token: token}, nil
}

func (s *Service) examTopic(ref string) (bank.Topic, error) {
	topic, ok := s.topics.Resolve(ref)
	if !ok {
		return bank.Topic{}, fmt.Errorf("%w: %q", ErrTopicNotFound, ref)
	}
	if !s.blueprint.IsExamTopic(topic.Number) {
		return bank.Topic{}, fmt.Errorf("%w: %s", ErrInvalidTopic, topic.Name)
	}
	return topic, nil
}

// lookupFor resolves question IDs across the primary and supplementary
// pools of an exam on topic.
func (s *Service) lookupFor(topic bank.Topic) (QuestionLookup, error) {
	var set poolSet
	if pool, err := s.pools.Pool(topic); err == nil {
		set = append(set, pool)
	}
	supplementary, ok := s.topics.ByNumber(s.blueprint.SupplementaryNumber)
	if !ok {
		return nil, fmt.Errorf("%w: topic number %d", ErrSupplementaryMissing, s.blueprint.SupplementaryNumber)
	}
	if pool, err := s.pools.Pool(supplementary); err == nil {
		set = append(set, pool)
	}
	return set, nil
}

type poolSet []*bank.Pool

func (p poolSet) Lookup(id string) (bank.Question, bool) {
	for _, pool := range p {
		if question, ok := pool.Lookup(id); ok {
			return question, true
		}
	}
	return bank.Question{}, false
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedVersion):
		return "version"
	case errors.Is(err, ErrStaleState):
		return "stale"
	default:
		return "malformed"
	}
}
