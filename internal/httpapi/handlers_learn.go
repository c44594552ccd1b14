package httpapi

import (
	"fmt"
	"net/http"

	"exam-app/internal/bank"
	"exam-app/internal/learn"
	"exam-app/internal/quiz"
)

// HandleLearnQuestion shows question n (1-based, file order) of a topic
// without its answer.
func (a *API) HandleLearnQuestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	pool, n, ok := a.learnPool(w, r)
	if !ok {
		return
	}
	question := pool.Questions[n-1]
	writeJSON(w, http.StatusOK, learnQuestionResponse{
		Topic:    pool.Topic,
		Position: n,
		Total:    pool.Len(),
		Question: learnQuestion{
			ID:       question.ID,
			Ref:      question.Ref,
			Question: question.Question,
			Options:  question.Options,
			Source:   question.Source,
		},
	})
}

// HandleLearnCheck grades a choice (0-based) for question n and reveals the
// answer and explanation.
func (a *API) HandleLearnCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	var request checkRequest
	if err := decodeJSON(r, &request); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if request.Choice == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "choice is required"})
		return
	}

	pool, n, ok := a.learnPool(w, r)
	if !ok {
		return
	}
	feedback, err := learn.Grade(pool.Questions[n-1], *request.Choice)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	response := checkResponse{Feedback: feedback, Position: n, Total: pool.Len()}
	if n < pool.Len() {
		next := n + 1
		response.Next = &next
	}
	writeJSON(w, http.StatusOK, response)
}

func (a *API) learnPool(w http.ResponseWriter, r *http.Request) (*bank.Pool, int, bool) {
	if a.catalog == nil || a.pools == nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "topic catalog unavailable"})
		return nil, 0, false
	}

	n, err := parsePathNumber(r, "n")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return nil, 0, false
	}
	topic, found := a.catalog.Resolve(r.PathValue("topic"))
	if !found {
		a.writeServiceError(w, r, fmt.Errorf("%w: %q", quiz.ErrTopicNotFound, r.PathValue("topic")))
		return nil, 0, false
	}
	pool, err := a.pools.Pool(topic)
	if err != nil {
		a.writeServiceError(w, r, err)
		return nil, 0, false
	}
	if pool.Len() == 0 {
		a.writeServiceError(w, r, learn.ErrEmptyPool)
		return nil, 0, false
	}
	if n > pool.Len() {
		a.writeServiceError(w, r, fmt.Errorf("%w: %d (1-%d)", learn.ErrOutOfRange, n, pool.Len()))
		return nil, 0, false
	}
	return pool, n, true
}
