package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"exam-app/internal/analysis"
	"exam-app/internal/bank"
	"exam-app/internal/gemini"
	"exam-app/internal/quiz"
)

var (
	lawsTopic = bank.Topic{Name: "1. Laws", Path: "1. Laws.csv", Number: 1}
	suppTopic = bank.Topic{Name: "17. Supplementary", Path: "17. Supplementary.csv", Number: 17}
)

type fakePools map[string]*bank.Pool

func (f fakePools) Pool(topic bank.Topic) (*bank.Pool, error) {
	pool, ok := f[topic.Path]
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
		}
	}
	return bank.NewPool(topic, questions)
}

type fakeResults struct {
	mu      sync.Mutex
	results []quiz.ExamResult
}

func (f *fakeResults) SaveResult(_ context.Context, result quiz.ExamResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, result)
	return nil
}

func (f *fakeResults) ListResults(_ context.Context, topicPath string, limit int) ([]quiz.ExamResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []quiz.ExamResult
	for _, result := range f.results {
		if topicPath == "" || result.TopicPath == topicPath {
			out = append(out, result)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeResults) GetResult(_ context.Context, sessionID string) (quiz.ExamResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, result := range f.results {
		if result.SessionID == sessionID {
			return result, nil
		}
	}
	return quiz.ExamResult{}, quiz.ErrResultNotFound
}

type fakeGenerator struct {
	reply string
	err   error
}

func (f fakeGenerator) Generate(context.Context, string, []gemini.Content) (string, error) {
	return f.reply, f.err
}

// newTestRouter serves a three-question exam: two from topic 1 and one from
// the supplementary topic.
func newTestRouter(t *testing.T, llm analysis.Generator) (http.Handler, *fakeResults) {
	t.Helper()
	pools := fakePools{
		lawsTopic.Path: makePool(lawsTopic, 5),
		suppTopic.Path: makePool(suppTopic, 5),
	}
	catalog := bank.NewCatalog("", []bank.Topic{lawsTopic, suppTopic})
	blueprint := quiz.Blueprint{
		PrimaryCount:        2,
		SupplementaryNumber: 17,
		Strata:              []quiz.Stratum{{Start: 0, End: 5, Count: 1}},
		Duration:            45 * time.Minute,
		MinTopic:            1,
		MaxTopic:            16,
	}
	composer := quiz.NewComposer(pools, catalog, blueprint, rand.New(rand.NewSource(7)), nil)
	results := &fakeResults{}
	exams := quiz.NewService(catalog, pools, composer, results, nil)
	assistant := analysis.NewAssistant(llm, nil, analysis.AssistantOptions{})

	return NewRouter(Deps{
		Catalog:   catalog,
		Pools:     pools,
		Exams:     exams,
		Assistant: assistant,
	}, nil), results
}

func doJSON(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &payload)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

// examPayload mirrors the fields of the exam response the tests look at.
type examPayload struct {
	SessionID    string   `json:"session_id"`
	Status       string   `json:"status"`
	CurrentIndex int      `json:"current_index"`
	Total        int      `json:"total"`
	Answered     int      `json:"answered"`
	SubmitArmed  bool     `json:"submit_armed"`
	Score        *int     `json:"score"`
	SubmittedBy  string   `json:"submitted_by"`
	Resumed      bool     `json:"resumed"`
	Warnings     []string `json:"warnings"`
	State        string   `json:"state"`
	Question     *struct {
		ID         string `json:"question_id"`
		UserChoice *int   `json:"user_choice"`
	} `json:"question"`
}

func TestParseIntParam(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/exams/results", nil)
	if got, err := parseIntParam(req, "limit", 20); err != nil || got != 20 {
		t.Fatalf("default parseIntParam = (%d, %v), want (20, nil)", got, err)
	}

	req = httptest.NewRequest(http.MethodGet, "/exams/results?limit=5", nil)
	if got, err := parseIntParam(req, "limit", 20); err != nil || got != 5 {
		t.Fatalf("valid parseIntParam = (%d, %v), want (5, nil)", got, err)
	}

	req = httptest.NewRequest(http.MethodGet, "/exams/results?limit=0", nil)
	if _, err := parseIntParam(req, "limit", 20); err == nil {
		t.Fatalf("expected error for non-positive limit")
	}
}

func TestWriteMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	writeMethodNotAllowed(rec, http.MethodGet, http.MethodPost)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
	if got := rec.Header().Get("Allow"); got != "GET, POST" {
		t.Fatalf("allow header = %q, want %q", got, "GET, POST")
	}

	payload := decodeBody[errorResponse](t, rec)
	if payload.Error != "method not allowed" {
		t.Fatalf("error payload = %q", payload.Error)
	}
}

func TestServicesUnavailable(t *testing.T) {
	router := NewRouter(Deps{}, nil)

	tests := []struct {
		method string
		target string
	}{
		{http.MethodGet, "/topics"},
		{http.MethodPost, "/exams"},
		{http.MethodGet, "/learn/1/questions/1"},
		{http.MethodPost, "/analysis"},
	}
	for _, tc := range tests {
		rec := doJSON(t, router, tc.method, tc.target, nil)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("%s %s status = %d, want 500", tc.method, tc.target, rec.Code)
		}
	}
}

func TestTopicsListsExamTopics(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := doJSON(t, router, http.MethodGet, "/topics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	payload := decodeBody[topicsResponse](t, rec)
	if len(payload.Topics) != 2 {
		t.Fatalf("expected 2 topics, got %+v", payload.Topics)
	}
	if len(payload.ExamTopics) != 1 || payload.ExamTopics[0].Number != 1 {
		t.Fatalf("supplementary topic must not be an exam topic: %+v", payload.ExamTopics)
	}
	if payload.Blueprint == nil || payload.Blueprint.TotalQuestions != 3 || payload.Blueprint.DurationSeconds != 2700 {
		t.Fatalf("unexpected blueprint: %+v", payload.Blueprint)
	}
}

func TestExamFlow(t *testing.T) {
	router, results := newTestRouter(t, nil)

	rec := doJSON(t, router, http.MethodPost, "/exams", startExamRequest{Topic: "1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("start status = %d, body %s", rec.Code, rec.Body.String())
	}
	exam := decodeBody[examPayload](t, rec)
	if exam.Total != 3 || exam.Status != "active" || exam.State == "" || exam.Question == nil {
		t.Fatalf("unexpected new exam: %+v", exam)
	}

	choice := 2
	rec = doJSON(t, router, http.MethodPost, "/exams/answer", answerRequest{State: exam.State, Choice: &choice})
	if rec.Code != http.StatusOK {
		t.Fatalf("answer status = %d, body %s", rec.Code, rec.Body.String())
	}
	exam = decodeBody[examPayload](t, rec)
	if exam.Answered != 1 || exam.Question.UserChoice == nil || *exam.Question.UserChoice != 2 {
		t.Fatalf("answer not recorded: %+v", exam)
	}

	rec = doJSON(t, router, http.MethodPost, "/exams/next", stateRequest{State: exam.State})
	exam = decodeBody[examPayload](t, rec)
	if exam.CurrentIndex != 1 {
		t.Fatalf("expected to be on question 2, got %+v", exam)
	}
	rec = doJSON(t, router, http.MethodPost, "/exams/prev", stateRequest{State: exam.State})
	exam = decodeBody[examPayload](t, rec)
	if exam.CurrentIndex != 0 {
		t.Fatalf("expected to be back on question 1, got %+v", exam)
	}

	rec = doJSON(t, router, http.MethodPost, "/exams/submit", stateRequest{State: exam.State})
	exam = decodeBody[examPayload](t, rec)
	if exam.Status != "active" || !exam.SubmitArmed {
		t.Fatalf("first submit must only arm: %+v", exam)
	}
	rec = doJSON(t, router, http.MethodPost, "/exams/submit", stateRequest{State: exam.State})
	exam = decodeBody[examPayload](t, rec)
	if exam.Status != "submitted" || exam.SubmittedBy != "manual" || exam.Score == nil {
		t.Fatalf("second submit must commit: %+v", exam)
	}

	rec = doJSON(t, router, http.MethodGet, "/exams/review?qs="+url.QueryEscape(exam.State), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("review status = %d, body %s", rec.Code, rec.Body.String())
	}
	review := decodeBody[reviewResponse](t, rec)
	if review.Total != 3 || len(review.Items) != 3 {
		t.Fatalf("unexpected review: %+v", review)
	}

	rec = doJSON(t, router, http.MethodPost, "/exams/answer", answerRequest{State: exam.State, Choice: &choice})
	if rec.Code != http.StatusConflict {
		t.Fatalf("answering a submitted exam status = %d, want 409", rec.Code)
	}

	if len(results.results) != 1 {
		t.Fatalf("expected one recorded result, got %d", len(results.results))
	}
	rec = doJSON(t, router, http.MethodGet, "/exams/results?st=1", nil)
	history := decodeBody[resultsResponse](t, rec)
	if len(history.Results) != 1 || history.Results[0].SessionID != exam.SessionID {
		t.Fatalf("unexpected history: %+v", history)
	}
	rec = doJSON(t, router, http.MethodGet, "/exams/results/"+exam.SessionID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("result status = %d, body %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, router, http.MethodGet, "/exams/results/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing result status = %d, want 404", rec.Code)
	}
}

func TestExamStateResumesAndFallsBack(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := doJSON(t, router, http.MethodPost, "/exams", startExamRequest{Topic: "1. Laws.csv"})
	started := decodeBody[examPayload](t, rec)

	rec = doJSON(t, router, http.MethodGet, "/exams/state?st=1&qs="+url.QueryEscape(started.State), nil)
	resumed := decodeBody[examPayload](t, rec)
	if !resumed.Resumed || resumed.SessionID != started.SessionID {
		t.Fatalf("expected to resume %s, got %+v", started.SessionID, resumed)
	}

	rec = doJSON(t, router, http.MethodGet, "/exams/state?st=1&qs=not-a-token", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("fallback status = %d, body %s", rec.Code, rec.Body.String())
	}
	fresh := decodeBody[examPayload](t, rec)
	if fresh.Resumed || fresh.SessionID == started.SessionID || len(fresh.Warnings) == 0 {
		t.Fatalf("expected a fresh exam with a warning, got %+v", fresh)
	}
}

func TestExamErrors(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	rec := doJSON(t, router, http.MethodPost, "/exams", startExamRequest{Topic: "1"})
	exam := decodeBody[examPayload](t, rec)
	badChoice := 9

	tests := []struct {
		name   string
		method string
		target string
		body   any
		want   int
	}{
		{"missing topic", http.MethodPost, "/exams", startExamRequest{}, http.StatusBadRequest},
		{"unknown topic", http.MethodPost, "/exams", startExamRequest{Topic: "42"}, http.StatusNotFound},
		{"supplementary topic", http.MethodPost, "/exams", startExamRequest{Topic: "17"}, http.StatusBadRequest},
		{"bad choice", http.MethodPost, "/exams/answer", answerRequest{State: exam.State, Choice: &badChoice}, http.StatusBadRequest},
		{"missing state", http.MethodPost, "/exams/next", stateRequest{}, http.StatusBadRequest},
		{"malformed state", http.MethodPost, "/exams/next", stateRequest{State: "%%%"}, http.StatusBadRequest},
		{"finish early", http.MethodPost, "/exams/finish", stateRequest{State: exam.State}, http.StatusBadRequest},
		{"review active", http.MethodGet, "/exams/review?qs=" + url.QueryEscape(exam.State), nil, http.StatusConflict},
		{"wrong method", http.MethodGet, "/exams/submit", nil, http.StatusMethodNotAllowed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, router, tc.method, tc.target, tc.body)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d, body %s", rec.Code, tc.want, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), `"error"`) {
				t.Fatalf("expected error payload, got %s", rec.Body.String())
			}
		})
	}
}

func TestLearnEndpoints(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := doJSON(t, router, http.MethodGet, "/learn/1/questions/2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "correct_index") || strings.Contains(rec.Body.String(), "because") {
		t.Fatalf("question must not reveal the answer: %s", rec.Body.String())
	}
	question := decodeBody[learnQuestionResponse](t, rec)
	if question.Position != 2 || question.Total != 5 || question.Question.Question != "1. Laws question 2" {
		t.Fatalf("unexpected question: %+v", question)
	}

	choice := 1
	rec = doJSON(t, router, http.MethodPost, "/learn/1/questions/2/check", checkRequest{Choice: &choice})
	feedback := decodeBody[checkResponse](t, rec)
	if !feedback.Correct || feedback.CorrectIndex != 1 || feedback.Explanation != "because 2" {
		t.Fatalf("unexpected feedback: %+v", feedback)
	}
	if feedback.Next == nil || *feedback.Next != 3 {
		t.Fatalf("expected next question 3, got %v", feedback.Next)
	}

	rec = doJSON(t, router, http.MethodPost, "/learn/1/questions/5/check", checkRequest{Choice: &choice})
	if last := decodeBody[checkResponse](t, rec); last.Next != nil || last.Correct {
		t.Fatalf("unexpected feedback on last question: %+v", last)
	}

	if rec := doJSON(t, router, http.MethodGet, "/learn/1/questions/6", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("out of range status = %d, want 404", rec.Code)
	}
	if rec := doJSON(t, router, http.MethodGet, "/learn/1/questions/zero", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad number status = %d, want 400", rec.Code)
	}
	if rec := doJSON(t, router, http.MethodPost, "/learn/1/questions/1/check", checkRequest{}); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing choice status = %d, want 400", rec.Code)
	}
}

const balanceCSV = "Chỉ tiêu,Năm trước,Năm sau\n" +
	"A. TÀI SẢN NGẮN HẠN,400,500\n" +
	"B. TÀI SẢN DÀI HẠN,600,500\n" +
	"TỔNG CỘNG TÀI SẢN,1000,1000\n" +
	"C. NỢ NGẮN HẠN,200,250\n"

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	_, _ = part.Write([]byte(content))
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/analysis", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestAnalysisFlow(t *testing.T) {
	router, _ := newTestRouter(t, fakeGenerator{reply: "Liquidity is comfortable."})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "balance.csv", balanceCSV))
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body %s", rec.Code, rec.Body.String())
	}
	var workspace struct {
		ID      string `json:"id"`
		Table   string `json:"table_markdown"`
		Summary string `json:"summary_markdown"`
		Report  struct {
			CurrentRatioPrior *float64 `json:"current_ratio_prior"`
		} `json:"report"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&workspace); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if workspace.ID == "" || !strings.Contains(workspace.Table, "TỔNG CỘNG TÀI SẢN") {
		t.Fatalf("unexpected workspace: %+v", workspace)
	}
	if workspace.Report.CurrentRatioPrior == nil || *workspace.Report.CurrentRatioPrior != 2 {
		t.Fatalf("unexpected current ratio: %v", workspace.Report.CurrentRatioPrior)
	}

	rec = doJSON(t, router, http.MethodPost, "/analysis/"+workspace.ID+"/commentary", nil)
	commentary := decodeBody[commentaryResponse](t, rec)
	if commentary.Commentary != "Liquidity is comfortable." {
		t.Fatalf("unexpected commentary: %+v", commentary)
	}

	rec = doJSON(t, router, http.MethodPost, "/analysis/"+workspace.ID+"/chat", chatRequest{Message: "Is it liquid?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("chat status = %d, body %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, router, http.MethodGet, "/analysis/"+workspace.ID+"/chat", nil)
	transcript := decodeBody[transcriptResponse](t, rec)
	if len(transcript.Messages) != 2 || transcript.Messages[0].Role != analysis.RoleUser {
		t.Fatalf("unexpected transcript: %+v", transcript)
	}

	if rec := doJSON(t, router, http.MethodPost, "/analysis/"+workspace.ID+"/chat", chatRequest{}); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty message status = %d, want 400", rec.Code)
	}
	if rec := doJSON(t, router, http.MethodGet, "/analysis/missing/chat", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing workspace status = %d, want 404", rec.Code)
	}
}

func TestAnalysisLLMFailureIsInline(t *testing.T) {
	router, _ := newTestRouter(t, fakeGenerator{err: &gemini.APIError{StatusCode: http.StatusTooManyRequests, Message: "quota"}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "balance.csv", balanceCSV))
	var workspace workspaceResponse
	if err := json.NewDecoder(rec.Body).Decode(&workspace); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	rec = doJSON(t, router, http.MethodPost, "/analysis/"+workspace.ID+"/chat", chatRequest{Message: "hello"})
	if rec.Code != http.StatusOK {
		t.Fatalf("chat status = %d, want 200", rec.Code)
	}
	reply := decodeBody[analysis.ChatMessage](t, rec)
	if !reply.Failed || !strings.Contains(reply.Content, "quota") {
		t.Fatalf("expected inline failure, got %+v", reply)
	}
}

func TestAnalysisRejectsBadUploads(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	tests := []struct {
		name     string
		filename string
		content  string
	}{
		{"two columns", "balance.csv", "item,prior\nCash,1\n"},
		{"no total assets", "balance.csv", "item,prior,current\nCash,1,2\n"},
		{"binary", "balance.pdf", "%PDF-1.4\n%\xe2\xe3\xcf\xd3\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, uploadRequest(t, tc.filename, tc.content))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400, body %s", rec.Code, rec.Body.String())
			}
		})
	}

	rec := doJSON(t, router, http.MethodPost, "/analysis", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("non-multipart status = %d, want 400", rec.Code)
	}
}
