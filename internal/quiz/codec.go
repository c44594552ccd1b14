package quiz

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"exam-app/internal/bank"
)

// StateVersion is the current token layout. Version 1 was the unversioned
// positional layout without item IDs; those tokens are rejected.
const StateVersion = 2

var (
	ErrMalformedState     = errors.New("malformed exam state")
	ErrUnsupportedVersion = errors.New("unsupported exam state version")
	ErrStaleState         = errors.New("exam state refers to unknown questions")
)

// Projection is the minimal session state carried in the "qs" URL
// parameter.
type Projection struct {
	Version         int      `json:"v"`
	SessionID       string   `json:"sid,omitempty"`
	TopicPath       string   `json:"topic_path"`
	ItemIDs         []string `json:"item_ids"`
	UserChoices     []*int   `json:"user_choices"`
	StartTime       float64  `json:"start_time"`
	DurationSeconds int      `json:"duration_seconds"`
	CurrentIndex    int      `json:"current_index"`
	Submitted       bool     `json:"submitted"`
	Score           int      `json:"score"`
	SubmitArmed     bool     `json:"confirm_submit,omitempty"`
}

// Project extracts the persisted subset of a session.
func Project(s *Session) Projection {
	ids := make([]string, len(s.Items))
	choices := make([]*int, len(s.Items))
	for idx, item := range s.Items {
		ids[idx] = item.Question.ID
		if item.UserChoice != nil {
			value := *item.UserChoice
			choices[idx] = &value
		}
	}
	return Projection{
		Version:         StateVersion,
		SessionID:       s.ID,
		TopicPath:       s.TopicPath,
		ItemIDs:         ids,
		UserChoices:     choices,
		StartTime:       float64(s.StartTime.UnixNano()) / float64(time.Second),
		DurationSeconds: int(s.Duration / time.Second),
		CurrentIndex:    s.CurrentIndex,
		Submitted:       s.Submitted,
		Score:           s.Score,
		SubmitArmed:     s.SubmitArmed,
	}
}

// Encode serializes the session projection as URL-safe base64 JSON.
func Encode(s *Session) (string, error) {
	raw, err := json.Marshal(Project(s))
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

// Decode parses a state token. It never panics on hostile input.
func Decode(encoded string) (Projection, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return Projection{}, fmt.Errorf("%w: empty", ErrMalformedState)
	}

	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		raw, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
		if err != nil {
			return Projection{}, fmt.Errorf("%w: %v", ErrMalformedState, err)
		}
	}

	var projection Projection
	if err := json.Unmarshal(raw, &projection); err != nil {
		return Projection{}, fmt.Errorf("%w: %v", ErrMalformedState, err)
	}
	if projection.Version != StateVersion {
		return Projection{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, projection.Version)
	}
	if err := projection.validate(); err != nil {
		return Projection{}, err
	}
	return projection, nil
}

func (p Projection) validate() error {
	if len(p.ItemIDs) == 0 {
		return fmt.Errorf("%w: no items", ErrMalformedState)
	}
	if len(p.ItemIDs) != len(p.UserChoices) {
		return fmt.Errorf("%w: %d item ids for %d choices", ErrMalformedState, len(p.ItemIDs), len(p.UserChoices))
	}
	if p.CurrentIndex < 0 || p.CurrentIndex >= len(p.ItemIDs) {
		return fmt.Errorf("%w: current index %d", ErrMalformedState, p.CurrentIndex)
	}
	for idx, choice := range p.UserChoices {
		if choice != nil && (*choice < 0 || *choice >= bank.OptionCount) {
			return fmt.Errorf("%w: choice %d at item %d", ErrMalformedState, *choice, idx)
		}
	}
	if p.DurationSeconds <= 0 {
		return fmt.Errorf("%w: duration %d", ErrMalformedState, p.DurationSeconds)
	}
	if math.IsNaN(p.StartTime) || math.IsInf(p.StartTime, 0) || p.StartTime <= 0 {
		return fmt.Errorf("%w: start time", ErrMalformedState)
	}
	if p.Score < 0 || p.Score > len(p.ItemIDs) {
		return fmt.Errorf("%w: score %d", ErrMalformedState, p.Score)
	}
	return nil
}

// QuestionLookup finds a question by its stable ID.
type QuestionLookup interface {
	Lookup(id string) (bank.Question, bool)
}

// Restore decodes encoded and rebuilds the session for topicPath. A token
// for a different topic is "no saved state": ok is false and err is nil.
func Restore(encoded, topicPath string, questions QuestionLookup) (*Session, bool, error) {
	projection, err := Decode(encoded)
	if err != nil {
		return nil, false, err
	}
	if projection.TopicPath != topicPath {
		return nil, false, nil
	}
	session, err := Rebuild(projection, questions)
	if err != nil {
		return nil, false, err
	}
	return session, true, nil
}

// Rebuild turns a validated projection back into a session, resolving every
// item by ID.
func Rebuild(p Projection, questions QuestionLookup) (*Session, error) {
	items := make([]Item, len(p.ItemIDs))
	for idx, id := range p.ItemIDs {
		question, ok := questions.Lookup(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrStaleState, id)
		}
		items[idx] = Item{Question: question}
		if choice := p.UserChoices[idx]; choice != nil {
			if *choice >= len(question.Options) {
				return nil, fmt.Errorf("%w: choice %d at item %d", ErrMalformedState, *choice, idx)
			}
			value := *choice
			items[idx].UserChoice = &value
		}
	}

	seconds, frac := math.Modf(p.StartTime)
	session := &Session{
		ID:           p.SessionID,
		TopicPath:    p.TopicPath,
		Items:        items,
		CurrentIndex: p.CurrentIndex,
		StartTime:    time.Unix(int64(seconds), int64(frac*float64(time.Second))),
		Duration:     time.Duration(p.DurationSeconds) * time.Second,
		SubmitArmed:  p.SubmitArmed && !p.Submitted,
	}
	if p.Submitted {
		// Recompute rather than trust the carried score.
		session.submit("")
	}
	return session, nil
}
