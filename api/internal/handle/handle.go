package handle

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"damage-control/api/internal/common"
	"damage-control/api/internal/inspect"
	"damage-control/api/internal/report"
	"damage-control/api/internal/transcription"
)

type DamageInspector interface {
	Analyze(ctx context.Context, urls []string) (inspect.Result, error)
}

type ReportAnalyzer interface {
	Analyze(ctx context.Context, up report.Upload) (any, error)
}

type Transcriptions interface {
	Submit(ctx context.Context, up transcription.Upload) (string, error)
	Result(id string) transcription.Outcome
}

type Handle struct {
	inspector      DamageInspector
	reports        ReportAnalyzer
	transcriptions Transcriptions
	logger         *zap.Logger

	requestTimeout time.Duration
	maxUpload      int64
}

type Option func(*Handle)

func WithRequestTimeout(d time.Duration) Option {
	return func(h *Handle) {
		if d > 0 {
			h.requestTimeout = d
		}
	}
}

func WithMaxUploadMB(mb int) Option {
	return func(h *Handle) {
		if mb > 0 {
			h.maxUpload = int64(mb) << 20
		}
	}
}

func New(in DamageInspector, rep ReportAnalyzer, tr Transcriptions, logger *zap.Logger, opts ...Option) *Handle {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handle{
		inspector:      in,
		reports:        rep,
		transcriptions: tr,
		logger:         logger,
		requestTimeout: 120 * time.Second,
		maxUpload:      25 << 20,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Routes registers every endpoint on a new mux.
func (h *Handle) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.Healthz)
	mux.HandleFunc("/analyze_batch", h.AnalyzeBatch)
	mux.HandleFunc("/analyze_report", h.AnalyzeReport)
	mux.HandleFunc("/analyze-report", h.AnalyzeReport)
	mux.HandleFunc("/transcribe", h.Transcribe)
	mux.HandleFunc("/get_transcription", h.GetTranscription)
	mux.HandleFunc("/", h.Root)
	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status code and an {"error": ...} body.
func (h *Handle) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := common.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error("http.request.failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", code),
			zap.Error(err),
		)
	}
	writeJSON(w, code, map[string]string{"error": common.Message(err)})
}

// requestDeadline honours X-Request-Timeout (seconds) or ?timeoutSec= before the default.
func (h *Handle) requestDeadline(r *http.Request) time.Duration {
	for _, ts := range []string{r.Header.Get("X-Request-Timeout"), r.URL.Query().Get("timeoutSec")} {
		if ts == "" {
			continue
		}
		if v, _ := strconv.Atoi(ts); v > 0 {
			return time.Duration(v) * time.Second
		}
	}
	return h.requestTimeout
}

// readUpload parses a multipart body under the upload limit and returns the "file" part.
func (h *Handle) readUpload(w http.ResponseWriter, r *http.Request) (upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return upload{}, errTooLarge
		}
		return upload{}, common.InvalidInput("expected multipart/form-data with a file field")
	}
	f, fh, err := r.FormFile("file")
	if err != nil {
		return upload{}, common.InvalidInput("file is required")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return upload{}, common.InvalidInput("cannot read file: %v", err)
	}
	return upload{
		filename:     fh.Filename,
		contentType:  fh.Header.Get("Content-Type"),
		data:         data,
		documentType: r.FormValue("document_type"),
	}, nil
}
