package handle

import (
	"net/http"
	"strings"

	"damage-control/api/internal/jobs"
	"damage-control/api/internal/transcription"
)

type TranscribeResponse struct {
	GUID string `json:"guid"`
}

type TranscriptionResponse struct {
	Output any    `json:"output"`
	Error  string `json:"error,omitempty"`
}

// Transcribe accepts an audio upload and answers with the job id right away.
func (h *Handle) Transcribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "POST only"})
		return
	}
	up, err := h.readUpload(w, r)
	if err != nil {
		h.writeUploadError(w, r, err)
		return
	}

	// the job outlives the request, so r.Context() is not passed to the worker
	id, err := h.transcriptions.Submit(r.Context(), transcription.Upload{
		Filename:     up.filename,
		ContentType:  up.contentType,
		Data:         up.data,
		DocumentType: up.documentType,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TranscribeResponse{GUID: id})
}

// GetTranscription reports the job state. It answers 200 for unknown ids too.
func (h *Handle) GetTranscription(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "GET only"})
		return
	}
	guid := strings.TrimSpace(r.URL.Query().Get("guid"))
	if guid == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "guid is required"})
		return
	}
	o := h.transcriptions.Result(guid)
	resp := TranscriptionResponse{Output: o.Output}
	if o.State == jobs.StateFailed {
		resp.Error = o.Error
	}
	writeJSON(w, http.StatusOK, resp)
}
