package httpapi

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
)

// maxUploadBytes bounds statement uploads.
const maxUploadBytes = 10 << 20

// HandleUpload accepts a statement as multipart field "file" and returns
// its analysis.
func (a *API) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	if !a.assistantAvailable(w) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "file too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "expected a multipart form with a file field"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "file is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "could not read the uploaded file"})
		return
	}

	workspace, err := a.assistant.Upload(filepath.Base(header.Filename), data)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWorkspaceResponse(workspace))
}

func (a *API) HandleWorkspace(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	if !a.assistantAvailable(w) {
		return
	}

	workspace, err := a.assistant.Workspace(r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkspaceResponse(workspace))
}

// HandleCommentary asks the LLM for an assessment. LLM failures are part of
// the commentary text and still answer 200.
func (a *API) HandleCommentary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	if !a.assistantAvailable(w) {
		return
	}

	id := r.PathValue("id")
	text, err := a.assistant.Commentary(r.Context(), id)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, commentaryResponse{WorkspaceID: id, Commentary: text})
}

// HandleChat posts a chat turn (POST) or returns the transcript (GET).
func (a *API) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		return
	}
	if !a.assistantAvailable(w) {
		return
	}
	id := r.PathValue("id")

	if r.Method == http.MethodGet {
		workspace, err := a.assistant.Workspace(id)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, transcriptResponse{WorkspaceID: workspace.ID, Messages: workspace.Transcript()})
		return
	}

	var request chatRequest
	if err := decodeJSON(r, &request); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	reply, err := a.assistant.Chat(r.Context(), id, strings.TrimSpace(request.Message))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (a *API) assistantAvailable(w http.ResponseWriter) bool {
	if a.assistant == nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "analysis assistant unavailable"})
		return false
	}
	return true
}
