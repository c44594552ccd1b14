package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"exam-app/internal/analysis"
	"exam-app/internal/bank"
	"exam-app/internal/learn"
	"exam-app/internal/quiz"
)

const maxJSONBody = 1 << 20

// writeServiceError maps domain errors to status codes. Anything unknown is
// logged and reported as a generic 500.
func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, quiz.ErrTopicNotFound),
		errors.Is(err, quiz.ErrResultNotFound),
		errors.Is(err, analysis.ErrWorkspaceNotFound),
		errors.Is(err, learn.ErrOutOfRange),
		errors.Is(err, learn.ErrEmptyPool):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, quiz.ErrSubmitted),
		errors.Is(err, quiz.ErrNotSubmitted):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, quiz.ErrInvalidTopic),
		errors.Is(err, quiz.ErrInvalidChoice),
		errors.Is(err, quiz.ErrInvalidIndex),
		errors.Is(err, quiz.ErrNotLast),
		errors.Is(err, quiz.ErrMalformedState),
		errors.Is(err, quiz.ErrUnsupportedVersion),
		errors.Is(err, quiz.ErrStaleState),
		errors.Is(err, learn.ErrInvalidChoice),
		errors.Is(err, analysis.ErrEmptyMessage),
		analysis.IsInputError(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, bank.ErrTopicNotFound),
		errors.Is(err, bank.ErrColumnCount),
		errors.Is(err, bank.ErrUnparsable),
		errors.Is(err, bank.ErrMalformedAnswer),
		errors.Is(err, quiz.ErrSupplementaryMissing),
		errors.Is(err, quiz.ErrNoQuestions):
		a.log.Error("question data unusable", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	default:
		a.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "request failed"})
	}
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := decoder.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return errors.New("invalid JSON body")
	}
	return nil
}

func parseIntParam(r *http.Request, key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return 0, errors.New(key + " must be a positive integer")
	}
	return parsed, nil
}

func parsePathNumber(r *http.Request, key string) (int, error) {
	parsed, err := strconv.Atoi(strings.TrimSpace(r.PathValue(key)))
	if err != nil || parsed <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return parsed, nil
}

func toResultResponse(result quiz.ExamResult) resultResponse {
	response := resultResponse{
		SessionID:   result.SessionID,
		TopicPath:   result.TopicPath,
		Score:       result.Score,
		Total:       result.Total,
		Percent:     quiz.Percent(result.Score, result.Total),
		Reason:      result.Reason,
		StartedAt:   result.StartedAt,
		SubmittedAt: result.SubmittedAt,
	}
	for _, item := range result.Items {
		response.Items = append(response.Items, resultItemResponse{
			Position:   item.Position,
			QuestionID: item.QuestionID,
			Source:     item.Source,
			UserChoice: item.UserChoice,
			IsCorrect:  item.IsCorrect,
		})
	}
	return response
}

func toWorkspaceResponse(workspace *analysis.Workspace) workspaceResponse {
	return workspaceResponse{
		ID:        workspace.ID,
		Filename:  workspace.Filename,
		CreatedAt: workspace.CreatedAt,
		Report:    workspace.Report,
		Table:     workspace.Report.MarkdownTable(),
		Summary:   workspace.Report.Summary(),
	}
}

func writeMethodNotAllowed(w http.ResponseWriter, allowedMethods ...string) {
	w.Header().Set("Allow", strings.Join(allowedMethods, ", "))
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}
