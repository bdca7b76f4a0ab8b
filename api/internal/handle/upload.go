package handle

import (
	"errors"
	"net/http"
)

var errTooLarge = errors.New("upload exceeds the size limit")

type upload struct {
	filename     string
	contentType  string
	data         []byte
	documentType string
}

func (h *Handle) writeUploadError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errTooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": err.Error()})
		return
	}
	h.writeError(w, r, err)
}
