package quiz

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"exam-app/internal/bank"
	"exam-app/internal/logger"
)

var (
	ErrSupplementaryMissing = errors.New("supplementary topic not found")
	ErrNoQuestions          = errors.New("no questions could be selected")
)

// PoolSource loads the question pool of a topic.
type PoolSource interface {
	Pool(topic bank.Topic) (*bank.Pool, error)
}

// TopicIndex resolves topics by identity or number.
type TopicIndex interface {
	ByPath(path string) (bank.Topic, bool)
	ByNumber(n int) (bank.Topic, bool)
}

// Composition is a freshly assembled, shuffled exam. Warnings describe
// sampling shortfalls; they never make composition fail.
type Composition struct {
	Primary       bank.Topic
	Supplementary bank.Topic
	Items         []Item
	Warnings      []string
}

type Composer struct {
	pools     PoolSource
	topics    TopicIndex
	blueprint Blueprint
	log       *logger.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewComposer builds a composer. A nil rng seeds one from the clock.
func NewComposer(pools PoolSource, topics TopicIndex, blueprint Blueprint, rng *rand.Rand, log *logger.Logger) *Composer {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Composer{
		pools:     pools,
		topics:    topics,
		blueprint: blueprint,
		log:       log,
		rng:       rng,
	}
}

func (c *Composer) Blueprint() Blueprint {
	return c.blueprint
}

// Compose draws PrimaryCount questions uniformly from the chosen topic and a
// fixed stratified sample from the supplementary topic, then shuffles them
// into one exam.
func (c *Composer) Compose(primary bank.Topic) (Composition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	composition := Composition{Primary: primary}
	warn := func(format string, args ...interface{}) {
		message := fmt.Sprintf(format, args...)
		composition.Warnings = append(composition.Warnings, message)
		c.log.Warn("exam composition shortfall", "topic", primary.Path, "warning", message)
	}

	var primaryQuestions []bank.Question
	primaryPool, err := c.pools.Pool(primary)
	if err != nil {
		warn("could not load %s: %v", primary.Name, err)
	} else {
		if primaryPool.Len() < c.blueprint.PrimaryCount {
			warn("only %d questions in %s, taking all of them", primaryPool.Len(), primary.Name)
		}
		primaryQuestions = c.sample(primaryPool.Questions, c.blueprint.PrimaryCount)
	}

	supplementary, ok := c.topics.ByNumber(c.blueprint.SupplementaryNumber)
	if !ok {
		return Composition{}, fmt.Errorf("%w: topic number %d", ErrSupplementaryMissing, c.blueprint.SupplementaryNumber)
	}
	composition.Supplementary = supplementary

	var supplementaryQuestions []bank.Question
	supplementaryPool, err := c.pools.Pool(supplementary)
	if err != nil {
		warn("could not load %s: %v", supplementary.Name, err)
	} else {
		for _, stratum := range c.blueprint.Strata {
			segment := slicePool(supplementaryPool.Questions, stratum.Start, stratum.End)
			if len(segment) == 0 {
				warn("%s has no questions %d-%d", supplementary.Name, stratum.Start+1, stratum.End)
				continue
			}
			if len(segment) < stratum.Count {
				warn("only %d questions in %s (questions %d-%d), taking all of them", len(segment), supplementary.Name, stratum.Start+1, stratum.End)
			}
			supplementaryQuestions = append(supplementaryQuestions, c.sample(segment, stratum.Count)...)
		}
	}
	if want := c.blueprint.SupplementaryCount(); len(supplementaryQuestions) < want {
		warn("only %d of %d questions drawn from %s", len(supplementaryQuestions), want, supplementary.Name)
	}

	items := make([]Item, 0, len(primaryQuestions)+len(supplementaryQuestions))
	for _, question := range primaryQuestions {
		items = append(items, newItem(question, primary.Name))
	}
	for _, question := range supplementaryQuestions {
		items = append(items, newItem(question, supplementary.Name))
	}
	if len(items) == 0 {
		return Composition{}, ErrNoQuestions
	}

	c.rng.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
	composition.Items = items
	return composition, nil
}

// sample picks min(k, len(questions)) questions without replacement.
func (c *Composer) sample(questions []bank.Question, k int) []bank.Question {
	if k > len(questions) {
		k = len(questions)
	}
	if k <= 0 {
		return nil
	}
	out := make([]bank.Question, 0, k)
	for _, idx := range c.rng.Perm(len(questions))[:k] {
		out = append(out, questions[idx])
	}
	return out
}

func slicePool(questions []bank.Question, start, end int) []bank.Question {
	if start >= len(questions) {
		return nil
	}
	if end > len(questions) {
		end = len(questions)
	}
	return questions[start:end]
}

func newItem(question bank.Question, sourceName string) Item {
	if question.Source == "" {
		question.Source = sourceName
	}
	return Item{Question: question}
}
