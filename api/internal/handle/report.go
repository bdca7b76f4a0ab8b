package handle

import (
	"context"
	"net/http"

	"damage-control/api/internal/report"
)

// AnalyzeReport serves POST /analyze_report: OCR plus form extraction for one accident report.
func (h *Handle) AnalyzeReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "POST only"})
		return
	}
	up, err := h.readUpload(w, r)
	if err != nil {
		h.writeUploadError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.requestDeadline(r))
	defer cancel()

	doc, err := h.reports.Analyze(ctx, report.Upload{
		Filename:     up.filename,
		Data:         up.data,
		DocumentType: up.documentType,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
