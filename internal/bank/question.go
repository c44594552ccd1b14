package bank

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"
)

// OptionCount is the fixed number of answer options per question.
const OptionCount = 4

// Question is one multiple-choice row of a topic file. Questions are never
// mutated after load and are shared read-only between sessions.
type Question struct {
	ID           string   `json:"question_id"`
	Ref          string   `json:"ref,omitempty"`
	Number       int      `json:"number"`
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"-"`
	Explanation  string   `json:"explanation,omitempty"`
	Source       string   `json:"source"`
}

// OptionText returns the text of option idx, or "" when idx is out of range.
func (q Question) OptionText(idx int) string {
	if idx < 0 || idx >= len(q.Options) {
		return ""
	}
	return q.Options[idx]
}

// Pool is the loaded question set of one topic.
type Pool struct {
	Topic     Topic
	Questions []Question
	// Warnings lists rows that loaded with a defaulted answer.
	Warnings []string

	byID map[string]int
}

// newPool indexes questions by ID. Rows whose content hashes collide get an
// ordinal suffix in file order, so each row keeps its own answer key.
func newPool(topic Topic, questions []Question, warnings []string) *Pool {
	byID := make(map[string]int, len(questions))
	for idx := range questions {
		base := questions[idx].ID
		id := base
		for n := 2; ; n++ {
			if _, exists := byID[id]; !exists {
				break
			}
			id = base + "_" + strconv.Itoa(n)
		}
		questions[idx].ID = id
		byID[id] = idx
	}
	return &Pool{
		Topic:     topic,
		Questions: questions,
		Warnings:  warnings,
		byID:      byID,
	}
}

// NewPool builds a pool from already constructed questions, assigning IDs
// where missing. Mostly useful for tests and fixtures.
func NewPool(topic Topic, questions []Question) *Pool {
	out := make([]Question, len(questions))
	for idx, q := range questions {
		if q.Number == 0 {
			q.Number = idx + 1
		}
		if q.Source == "" {
			q.Source = topic.Path
		}
		if q.ID == "" {
			q.ID = MakeQuestionID(q)
		}
		out[idx] = q
	}
	return newPool(topic, out, nil)
}

func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Questions)
}

func (p *Pool) Lookup(id string) (Question, bool) {
	if p == nil {
		return Question{}, false
	}
	idx, ok := p.byID[id]
	if !ok {
		return Question{}, false
	}
	return p.Questions[idx], true
}

// MakeQuestionID derives a stable identity from the question content and
// its source file, so the same row gets the same ID across process restarts.
func MakeQuestionID(question Question) string {
	var keyBuilder strings.Builder
	keyBuilder.WriteString(question.Source)
	keyBuilder.WriteString("|")
	keyBuilder.WriteString(question.Question)
	for _, option := range question.Options {
		keyBuilder.WriteString("|")
		keyBuilder.WriteString(option)
	}

	hash := sha1.Sum([]byte(keyBuilder.String()))
	return "q_" + hex.EncodeToString(hash[:])[:12]
}
