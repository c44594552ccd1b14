package httpapi

import (
	"time"

	"exam-app/internal/analysis"
	"exam-app/internal/bank"
	"exam-app/internal/logger"
	"exam-app/internal/quiz"
)

// TopicCatalog lists and resolves topic files.
type TopicCatalog interface {
	Topics() []bank.Topic
	Resolve(ref string) (bank.Topic, bool)
}

// RequestObserver records served requests, typically as metrics.
type RequestObserver interface {
	ObserveHTTP(method, route string, code int, elapsed time.Duration)
}

// Deps are the services behind the API. Exams and Assistant may be nil;
// their endpoints then answer 500.
type Deps struct {
	Catalog   TopicCatalog
	Pools     quiz.PoolSource
	Exams     *quiz.Service
	Assistant *analysis.Assistant
	Observer  RequestObserver
	Log       *logger.Logger
}

type API struct {
	catalog   TopicCatalog
	pools     quiz.PoolSource
	exams     *quiz.Service
	assistant *analysis.Assistant
	log       *logger.Logger
}

func NewAPI(deps Deps) *API {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	return &API{
		catalog:   deps.Catalog,
		pools:     deps.Pools,
		exams:     deps.Exams,
		assistant: deps.Assistant,
		log:       log,
	}
}
