package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"exam-app/internal/quiz"
)

const defaultHistoryLimit = 20

func (a *API) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) HandleTopics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	if a.catalog == nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "topic catalog unavailable"})
		return
	}

	topics := a.catalog.Topics()
	response := topicsResponse{Topics: topics}
	if a.exams != nil {
		response.ExamTopics = a.exams.ExamTopics(topics)
		blueprint := a.exams.Blueprint()
		response.Blueprint = &blueprintDTO{
			PrimaryCount:        blueprint.PrimaryCount,
			SupplementaryNumber: blueprint.SupplementaryNumber,
			Strata:              blueprint.Strata,
			DurationSeconds:     int(blueprint.Duration / time.Second),
			TotalQuestions:      blueprint.TotalCount(),
		}
	}
	writeJSON(w, http.StatusOK, response)
}

// HandleStartExam composes a new exam, or resumes the one in "state".
func (a *API) HandleStartExam(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	if !a.examsAvailable(w) {
		return
	}

	var request startExamRequest
	if err := decodeJSON(r, &request); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if strings.TrimSpace(request.Topic) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "topic is required"})
		return
	}

	snapshot, err := a.exams.Resume(r.Context(), request.Topic, request.State)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, examResponse{View: snapshot.View, State: snapshot.Token})
}

// HandleExamState restores the exam of topic "st" from token "qs". A token
// that cannot be restored yields a fresh exam with a warning.
func (a *API) HandleExamState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	if !a.examsAvailable(w) {
		return
	}

	topic := strings.TrimSpace(r.URL.Query().Get("st"))
	if topic == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "st is required"})
		return
	}

	snapshot, err := a.exams.Resume(r.Context(), topic, r.URL.Query().Get("qs"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, examResponse{View: snapshot.View, State: snapshot.Token})
}

func (a *API) HandleAnswer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	if !a.examsAvailable(w) {
		return
	}

	var request answerRequest
	if err := decodeJSON(r, &request); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if strings.TrimSpace(request.State) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "state is required"})
		return
	}

	snapshot, err := a.exams.Answer(r.Context(), request.State, request.Index, request.Choice)
	a.writeSnapshot(w, r, snapshot, err)
}

func (a *API) HandleNext(w http.ResponseWriter, r *http.Request) {
	a.handleTransition(w, r, a.exams.Next)
}

func (a *API) HandlePrev(w http.ResponseWriter, r *http.Request) {
	a.handleTransition(w, r, a.exams.Prev)
}

// HandleSubmit arms the submit on the first call and commits on the second.
func (a *API) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	a.handleTransition(w, r, a.exams.Submit)
}

func (a *API) HandleFinish(w http.ResponseWriter, r *http.Request) {
	a.handleTransition(w, r, a.exams.Finish)
}

func (a *API) handleTransition(w http.ResponseWriter, r *http.Request, transition func(context.Context, string) (quiz.Snapshot, error)) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	if !a.examsAvailable(w) {
		return
	}

	var request stateRequest
	if err := decodeJSON(r, &request); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if strings.TrimSpace(request.State) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "state is required"})
		return
	}

	snapshot, err := transition(r.Context(), request.State)
	a.writeSnapshot(w, r, snapshot, err)
}

func (a *API) HandleReview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	if !a.examsAvailable(w) {
		return
	}

	token := strings.TrimSpace(r.URL.Query().Get("qs"))
	if token == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "qs is required"})
		return
	}

	result, state, err := a.exams.Review(r.Context(), token)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reviewResponse{Result: result, State: state})
}

// HandleResults lists recorded exams, newest first, optionally for topic "st".
func (a *API) HandleResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	if !a.examsAvailable(w) {
		return
	}

	limit, err := parseIntParam(r, "limit", defaultHistoryLimit)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	results, err := a.exams.History(r.Context(), r.URL.Query().Get("st"), limit)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	response := resultsResponse{Results: make([]resultResponse, 0, len(results))}
	for _, result := range results {
		response.Results = append(response.Results, toResultResponse(result))
	}
	writeJSON(w, http.StatusOK, response)
}

func (a *API) HandleResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	if !a.examsAvailable(w) {
		return
	}

	sessionID := strings.TrimSpace(r.PathValue("session_id"))
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "session_id is required"})
		return
	}

	result, err := a.exams.GetResult(r.Context(), sessionID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResultResponse(result))
}

func (a *API) examsAvailable(w http.ResponseWriter) bool {
	if a.exams == nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "exam service unavailable"})
		return false
	}
	return true
}

func (a *API) writeSnapshot(w http.ResponseWriter, r *http.Request, snapshot quiz.Snapshot, err error) {
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, examResponse{View: snapshot.View, State: snapshot.Token})
}
