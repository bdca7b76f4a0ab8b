package handle

import "net/http"

func (h *Handle) Root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"title":       "Damage Control API",
		"description": "Analyze vehicle damage images, extract accident reports and transcribe audio.",
	})
}

func (h *Handle) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
