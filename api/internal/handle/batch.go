package handle

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

type AnalyzeBatchRequest struct {
	ImageURLs []string `json:"image_urls"`
}

type BatchMetadata struct {
	ImageCount      int    `json:"image_count"`
	DownloadedCount int    `json:"downloaded_count"`
	Model           string `json:"model,omitempty"`
	Timestamp       string `json:"timestamp"`
}

type AnalyzeBatchResponse struct {
	Result   any           `json:"result"`
	Metadata BatchMetadata `json:"metadata"`
}

func (h *Handle) AnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "POST only"})
		return
	}
	var req AnalyzeBatchRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json: " + err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.requestDeadline(r))
	defer cancel()

	res, err := h.inspector.Analyze(ctx, req.ImageURLs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AnalyzeBatchResponse{
		Result: res.Damages,
		Metadata: BatchMetadata{
			ImageCount:      res.ImageCount,
			DownloadedCount: res.Downloaded,
			Model:           res.Model,
			Timestamp:       res.At.Format(time.RFC3339),
		},
	})
}
