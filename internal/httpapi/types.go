package httpapi

import (
	"time"

	"exam-app/internal/analysis"
	"exam-app/internal/bank"
	"exam-app/internal/learn"
	"exam-app/internal/quiz"
)

type topicsResponse struct {
	Topics     []bank.Topic  `json:"topics"`
	ExamTopics []bank.Topic  `json:"exam_topics"`
	Blueprint  *blueprintDTO `json:"blueprint,omitempty"`
}

type blueprintDTO struct {
	PrimaryCount        int            `json:"primary_count"`
	SupplementaryNumber int            `json:"supplementary_topic"`
	Strata              []quiz.Stratum `json:"strata"`
	DurationSeconds     int            `json:"duration_seconds"`
	TotalQuestions      int            `json:"total_questions"`
}

type startExamRequest struct {
	Topic string `json:"topic"`
	// State resumes a saved exam when set.
	State string `json:"state,omitempty"`
}

type stateRequest struct {
	State string `json:"state"`
}

type answerRequest struct {
	State string `json:"state"`
	// Index defaults to the current question.
	Index *int `json:"index,omitempty"`
	// A null choice clears the answer.
	Choice *int `json:"choice"`
}

type examResponse struct {
	quiz.View
	State string `json:"state"`
}

type reviewResponse struct {
	quiz.Result
	State string `json:"state"`
}

type resultItemResponse struct {
	Position   int    `json:"position"`
	QuestionID string `json:"question_id"`
	Source     string `json:"source"`
	UserChoice *int   `json:"user_choice"`
	IsCorrect  bool   `json:"is_correct"`
}

type resultResponse struct {
	SessionID   string               `json:"session_id"`
	TopicPath   string               `json:"topic_path"`
	Score       int                  `json:"score"`
	Total       int                  `json:"total"`
	Percent     float64              `json:"percent"`
	Reason      quiz.SubmitReason    `json:"reason"`
	StartedAt   time.Time            `json:"started_at"`
	SubmittedAt time.Time            `json:"submitted_at"`
	Items       []resultItemResponse `json:"items,omitempty"`
}

type resultsResponse struct {
	Results []resultResponse `json:"results"`
}

type learnQuestionResponse struct {
	Topic    bank.Topic    `json:"topic"`
	Position int           `json:"position"`
	Total    int           `json:"total"`
	Question learnQuestion `json:"question"`
}

// learnQuestion leaves out the answer and the explanation until checked.
type learnQuestion struct {
	ID       string   `json:"question_id"`
	Ref      string   `json:"ref,omitempty"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Source   string   `json:"source"`
}

type checkRequest struct {
	Choice *int `json:"choice"`
}

type checkResponse struct {
	learn.Feedback
	Position int `json:"position"`
	Total    int `json:"total"`
	// Next is the following question number, omitted after the last one.
	Next *int `json:"next,omitempty"`
}

type workspaceResponse struct {
	ID        string           `json:"id"`
	Filename  string           `json:"filename"`
	CreatedAt time.Time        `json:"created_at"`
	Report    *analysis.Report `json:"report"`
	Table     string           `json:"table_markdown"`
	Summary   string           `json:"summary_markdown"`
}

type commentaryResponse struct {
	WorkspaceID string `json:"workspace_id"`
	Commentary  string `json:"commentary"`
}

type chatRequest struct {
	Message string `json:"message"`
}

type transcriptResponse struct {
	WorkspaceID string                 `json:"workspace_id"`
	Messages    []analysis.ChatMessage `json:"messages"`
}

type errorResponse struct {
	Error string `json:"error"`
}
