package examclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var ErrServiceUnavailable = errors.New("exam service unavailable")

type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return e.Message
}

type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

type topic struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Number int    `json:"number"`
}

type topicsResponse struct {
	Topics     []topic `json:"topics"`
	ExamTopics []topic `json:"exam_topics"`
	Blueprint  *struct {
		DurationSeconds int `json:"duration_seconds"`
		TotalQuestions  int `json:"total_questions"`
	} `json:"blueprint"`
}

type questionView struct {
	ID         string   `json:"question_id"`
	Number     int      `json:"number"`
	Question   string   `json:"question"`
	Options    []string `json:"options"`
	Source     string   `json:"source"`
	UserChoice *int     `json:"user_choice"`
}

type examView struct {
	SessionID        string        `json:"session_id"`
	Topic            topic         `json:"topic"`
	Status           string        `json:"status"`
	CurrentIndex     int           `json:"current_index"`
	Total            int           `json:"total"`
	Answered         int           `json:"answered"`
	RemainingSeconds int           `json:"remaining_seconds"`
	Question         *questionView `json:"question"`
	SubmitArmed      bool          `json:"submit_armed"`
	Score            *int          `json:"score"`
	Percent          *float64      `json:"percent"`
	SubmittedBy      string        `json:"submitted_by"`
	Resumed          bool          `json:"resumed"`
	Warnings         []string      `json:"warnings"`
	State            string        `json:"state"`
}

func (v examView) submitted() bool {
	return v.Status == "submitted"
}

type reviewItem struct {
	Number       int      `json:"number"`
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	UserChoice   *int     `json:"user_choice"`
	IsCorrect    bool     `json:"is_correct"`
	Source       string   `json:"source"`
	Explanation  string   `json:"explanation"`
}

type reviewResponse struct {
	Score   int          `json:"score"`
	Total   int          `json:"total"`
	Percent float64      `json:"percent"`
	Items   []reviewItem `json:"items"`
	State   string       `json:"state"`
}

type resultEntry struct {
	SessionID   string    `json:"session_id"`
	TopicPath   string    `json:"topic_path"`
	Score       int       `json:"score"`
	Total       int       `json:"total"`
	Percent     float64   `json:"percent"`
	Reason      string    `json:"reason"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type resultsResponse struct {
	Results []resultEntry `json:"results"`
}

type startRequest struct {
	Topic string `json:"topic"`
	State string `json:"state,omitempty"`
}

type stateRequest struct {
	State string `json:"state"`
}

type answerRequest struct {
	State  string `json:"state"`
	Choice *int   `json:"choice"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewHTTPClient(baseURL string, httpClient *http.Client) *HTTPClient {
	baseURL = strings.TrimSpace(baseURL)
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8080"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

func (c *HTTPClient) Topics(ctx context.Context) (topicsResponse, error) {
	var payload topicsResponse
	err := c.doJSON(ctx, http.MethodGet, "/topics", nil, &payload)
	return payload, err
}

// Start begins an exam on topicRef, resuming state when it is non-empty.
func (c *HTTPClient) Start(ctx context.Context, topicRef, state string) (examView, error) {
	if strings.TrimSpace(topicRef) == "" {
		return examView{}, errors.New("topic is required")
	}
	var payload examView
	err := c.doJSON(ctx, http.MethodPost, "/exams", startRequest{Topic: topicRef, State: state}, &payload)
	return payload, err
}

func (c *HTTPClient) State(ctx context.Context, topicRef, state string) (examView, error) {
	query := url.Values{}
	query.Set("st", topicRef)
	query.Set("qs", state)

	var payload examView
	err := c.doJSON(ctx, http.MethodGet, "/exams/state?"+query.Encode(), nil, &payload)
	return payload, err
}

func (c *HTTPClient) Answer(ctx context.Context, state string, choice *int) (examView, error) {
	var payload examView
	err := c.doJSON(ctx, http.MethodPost, "/exams/answer", answerRequest{State: state, Choice: choice}, &payload)
	return payload, err
}

// Transition posts state to one of next, prev, submit or finish.
func (c *HTTPClient) Transition(ctx context.Context, action, state string) (examView, error) {
	switch action {
	case "next", "prev", "submit", "finish":
	default:
		return examView{}, fmt.Errorf("unknown exam action %q", action)
	}
	var payload examView
	err := c.doJSON(ctx, http.MethodPost, "/exams/"+action, stateRequest{State: state}, &payload)
	return payload, err
}

func (c *HTTPClient) Review(ctx context.Context, state string) (reviewResponse, error) {
	query := url.Values{}
	query.Set("qs", state)

	var payload reviewResponse
	err := c.doJSON(ctx, http.MethodGet, "/exams/review?"+query.Encode(), nil, &payload)
	return payload, err
}

func (c *HTTPClient) Results(ctx context.Context, topicRef string, limit int) ([]resultEntry, error) {
	query := url.Values{}
	if strings.TrimSpace(topicRef) != "" {
		query.Set("st", topicRef)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var payload resultsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/exams/results?"+query.Encode(), nil, &payload); err != nil {
		return nil, err
	}
	return payload.Results, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, requestBody any, responseBody any) error {
	fullURL := c.baseURL + path

	var body io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return err
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		apiErr := APIError{StatusCode: response.StatusCode}
		var payload errorResponse
		if err := json.NewDecoder(response.Body).Decode(&payload); err == nil && strings.TrimSpace(payload.Error) != "" {
			apiErr.Message = payload.Error
		}
		if apiErr.Message == "" {
			apiErr.Message = response.Status
		}
		return &apiErr
	}

	if responseBody == nil {
		return nil
	}
	return json.NewDecoder(response.Body).Decode(responseBody)
}
