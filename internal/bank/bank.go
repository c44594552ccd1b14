package bank

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"exam-app/internal/logger"
)

// Bank caches loaded pools per topic file for the process lifetime. Pools are
// read-only once cached, so they are shared freely between sessions.
type Bank struct {
	policy AnswerPolicy
	log    *logger.Logger

	pools sync.Map // file -> *Pool
	group singleflight.Group
	load  func(Topic, AnswerPolicy) (*Pool, error)
}

func NewBank(policy AnswerPolicy, log *logger.Logger) *Bank {
	if log == nil {
		log = logger.Nop()
	}
	return &Bank{
		policy: policy,
		log:    log,
		load:   LoadFile,
	}
}

// Pool returns the cached pool for topic, loading it on first use.
// Concurrent first loads of the same file share one read. Failed loads are
// not cached.
func (b *Bank) Pool(topic Topic) (*Pool, error) {
	if cached, ok := b.pools.Load(topic.File); ok {
		return cached.(*Pool), nil
	}

	value, err, _ := b.group.Do(topic.File, func() (interface{}, error) {
		if cached, ok := b.pools.Load(topic.File); ok {
			return cached, nil
		}
		pool, err := b.load(topic, b.policy)
		if err != nil {
			b.log.Warn("topic load failed", "topic", topic.Path, "error", err)
			return nil, err
		}
		for _, warning := range pool.Warnings {
			b.log.Warn("topic data warning", "topic", topic.Path, "warning", warning)
		}
		b.log.Debug("topic loaded", "topic", topic.Path, "questions", pool.Len())
		b.pools.Store(topic.File, pool)
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*Pool), nil
}
