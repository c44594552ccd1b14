package quiz

import (
	"fmt"
	"math/rand"
	"time"

	"exam-app/internal/bank"
)

var (
	lawsTopic = bank.Topic{Name: "1. Laws", Path: "1. Laws.csv", Number: 1}
	taxTopic  = bank.Topic{Name: "2. Tax", Path: "2. Tax.csv", Number: 2}
	suppTopic = bank.Topic{Name: "17. Supplementary", Path: "17. Supplementary.csv", Number: 17}
)

type fakePools struct {
	pools map[string]*bank.Pool
	calls int
}

func (f *fakePools) Pool(topic bank.Topic) (*bank.Pool, error) {
	f.calls++
	pool, ok := f.pools[topic.Path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", bank.ErrTopicNotFound, topic.Path)
	}
	return pool, nil
}

func makePool(topic bank.Topic, n int) *bank.Pool {
	questions := make([]bank.Question, n)
	for idx := range questions {
		questions[idx] = bank.Question{
			Question:     fmt.Sprintf("%s question %d", topic.Name, idx+1),
			Options:      []string{"a", "b", "c", "d"},
			CorrectIndex: idx % bank.OptionCount,
			Explanation:  fmt.Sprintf("because %d", idx+1),
			Source:       topic.Name,
		}
	}
	return bank.NewPool(topic, questions)
}

func newFixture(primarySize, suppSize int) (*fakePools, *bank.Catalog) {
	pools := &fakePools{pools: map[string]*bank.Pool{
		lawsTopic.Path: makePool(lawsTopic, primarySize),
		taxTopic.Path:  makePool(taxTopic, primarySize),
	}}
	topics := []bank.Topic{lawsTopic, taxTopic}
	if suppSize >= 0 {
		pools.pools[suppTopic.Path] = makePool(suppTopic, suppSize)
		topics = append(topics, suppTopic)
	}
	return pools, bank.NewCatalog("", topics)
}

func newTestComposer(pools PoolSource, topics TopicIndex) *Composer {
	return NewComposer(pools, topics, DefaultBlueprint(), rand.New(rand.NewSource(42)), nil)
}

func testSession(n int, start time.Time) *Session {
	pool := makePool(lawsTopic, n)
	items := make([]Item, n)
	for idx, question := range pool.Questions {
		items[idx] = Item{Question: question}
	}
	return NewSession("sess-1", lawsTopic.Path, items, start, 45*time.Minute)
}

func intPtr(v int) *int {
	return &v
}
