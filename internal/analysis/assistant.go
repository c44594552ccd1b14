package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"exam-app/internal/gemini"
	"exam-app/internal/logger"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	defaultMaxWorkspaces = 64
)

var (
	ErrWorkspaceNotFound = errors.New("analysis workspace not found")
	ErrEmptyMessage      = errors.New("chat message is empty")
)

// Generator produces text from a system instruction and a conversation.
type Generator interface {
	Generate(ctx context.Context, systemInstruction string, contents []gemini.Content) (string, error)
}

// Observer receives LLM call outcomes, typically for metrics.
type Observer interface {
	LLMCall(kind string, err error)
}

type nopObserver struct{}

func (nopObserver) LLMCall(string, error) {}

type ChatMessage struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	Failed  bool      `json:"failed,omitempty"`
	At      time.Time `json:"at"`
}

// Workspace holds one uploaded statement and the conversation about it.
type Workspace struct {
	ID        string
	Filename  string
	Report    *Report
	CreatedAt time.Time

	mu         sync.Mutex
	transcript []ChatMessage
	// history holds only turns that succeeded; it is what the model sees.
	history []gemini.Content
}

// Transcript returns a copy of every chat turn, failed ones included.
func (w *Workspace) Transcript() []ChatMessage {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]ChatMessage, len(w.transcript))
	copy(out, w.transcript)
	return out
}

type AssistantOptions struct {
	// MaxWorkspaces bounds memory; the oldest workspace is dropped first.
	MaxWorkspaces int
	// Limiter paces LLM calls across all workspaces. Nil means unlimited.
	Limiter  *rate.Limiter
	Observer Observer
	Now      func() time.Time
}

type Assistant struct {
	llm      Generator
	log      *logger.Logger
	limiter  *rate.Limiter
	observer Observer
	now      func() time.Time
	max      int

	mu         sync.RWMutex
	workspaces map[string]*Workspace
	order      []string
}

func NewAssistant(llm Generator, log *logger.Logger, opts AssistantOptions) *Assistant {
	if log == nil {
		log = logger.Nop()
	}
	if opts.MaxWorkspaces <= 0 {
		opts.MaxWorkspaces = defaultMaxWorkspaces
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Assistant{
		llm:        llm,
		log:        log,
		limiter:    opts.Limiter,
		observer:   opts.Observer,
		now:        opts.Now,
		max:        opts.MaxWorkspaces,
		workspaces: make(map[string]*Workspace),
	}
}

// Upload parses and analyses a statement and opens a workspace for it.
func (a *Assistant) Upload(filename string, data []byte) (*Workspace, error) {
	statement, err := ParseUpload(filename, data)
	if err != nil {
		return nil, err
	}
	report, err := Analyze(statement)
	if err != nil {
		return nil, err
	}
	for _, warning := range report.Warnings {
		a.log.Warn("statement warning", "file", filename, "warning", warning)
	}

	workspace := &Workspace{
		ID:        uuid.NewString(),
		Filename:  filename,
		Report:    report,
		CreatedAt: a.now(),
	}

	a.mu.Lock()
	a.workspaces[workspace.ID] = workspace
	a.order = append(a.order, workspace.ID)
	for len(a.order) > a.max {
		delete(a.workspaces, a.order[0])
		a.order = a.order[1:]
	}
	a.mu.Unlock()

	a.log.Info("statement analysed", "workspace", workspace.ID, "file", filename, "lines", len(report.Lines))
	return workspace, nil
}

func (a *Assistant) Workspace(id string) (*Workspace, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	workspace, ok := a.workspaces[strings.TrimSpace(id)]
	if !ok {
		return nil, ErrWorkspaceNotFound
	}
	return workspace, nil
}

// Commentary asks for a one-shot narrative assessment. LLM failures are
// returned as the text, never as an error.
func (a *Assistant) Commentary(ctx context.Context, id string) (string, error) {
	workspace, err := a.Workspace(id)
	if err != nil {
		return "", err
	}

	prompt := commentaryPrompt(workspace.Report.Summary())
	text, err := a.generate(ctx, "commentary", "", []gemini.Content{gemini.Text(gemini.RoleUser, prompt)})
	if err != nil {
		return inlineError(err), nil
	}
	return text, nil
}

// Chat sends message with the conversation so far. The reply, or the inline
// error text when the call fails, is appended to the transcript.
func (a *Assistant) Chat(ctx context.Context, id, message string) (ChatMessage, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return ChatMessage{}, ErrEmptyMessage
	}
	workspace, err := a.Workspace(id)
	if err != nil {
		return ChatMessage{}, err
	}

	// Turns of one workspace are serialized so history stays ordered.
	workspace.mu.Lock()
	defer workspace.mu.Unlock()

	workspace.transcript = append(workspace.transcript, ChatMessage{Role: RoleUser, Content: message, At: a.now()})

	contents := make([]gemini.Content, 0, len(workspace.history)+1)
	contents = append(contents, workspace.history...)
	contents = append(contents, gemini.Text(gemini.RoleUser, message))

	reply := ChatMessage{Role: RoleAssistant}
	text, err := a.generate(ctx, "chat", chatInstruction(workspace.Report.Summary()), contents)
	if err != nil {
		reply.Content = inlineError(err)
		reply.Failed = true
	} else {
		reply.Content = text
		workspace.history = append(workspace.history,
			gemini.Text(gemini.RoleUser, message),
			gemini.Text(gemini.RoleModel, text),
		)
	}
	reply.At = a.now()
	workspace.transcript = append(workspace.transcript, reply)
	return reply, nil
}

func (a *Assistant) generate(ctx context.Context, kind, system string, contents []gemini.Content) (string, error) {
	var err error
	defer func() { a.observer.LLMCall(kind, err) }()

	if a.llm == nil {
		err = gemini.ErrMissingAPIKey
		return "", err
	}
	if a.limiter != nil {
		if err = a.limiter.Wait(ctx); err != nil {
			a.log.Warn("llm call not sent", "kind", kind, "error", err)
			return "", err
		}
	}

	var text string
	text, err = a.llm.Generate(ctx, system, contents)
	if err != nil {
		a.log.Warn("llm call failed", "kind", kind, "error", err)
		return "", err
	}
	return text, nil
}

func inlineError(err error) string {
	var apiErr *gemini.APIError
	switch {
	case errors.Is(err, gemini.ErrMissingAPIKey):
		return "LLM request failed: no API key is configured."
	case errors.As(err, &apiErr):
		return fmt.Sprintf("LLM request failed: check the API key or usage limits. Details: %s", apiErr.Error())
	default:
		return fmt.Sprintf("LLM request failed: %v", err)
	}
}
