package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.uber.org/zap"

	"damage-control/api/internal/engine"
)

type Config struct {
	BaseURL  string // OpenAI-compatible API root, e.g. https://api.openai.com/v1
	APIKey   string
	Model    string
	Language string
	Timeout  time.Duration
}

// Engine transcribes audio through an OpenAI-compatible /audio/transcriptions endpoint.
type Engine struct {
	cfg    Config
	httpc  *http.Client
	logger *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Engine {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, httpc: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

func (e *Engine) Name() string     { return "whisper" }
func (e *Engine) GetModel() string { return e.cfg.Model }

type verboseJSON struct {
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func (e *Engine) Transcribe(ctx context.Context, audio []byte, filename, contentType string) ([]engine.Segment, error) {
	if e.cfg.APIKey == "" {
		return nil, errors.New("speech-to-text API key is empty")
	}
	if len(audio) == 0 {
		return nil, errors.New("empty audio")
	}
	if filename == "" {
		filename = "audio"
	}
	start := time.Now()

	body, boundary, err := e.form(audio, filename, contentType)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(e.cfg.BaseURL, "/")+"/audio/transcriptions", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", boundary)
	req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

	resp, err := e.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper http error: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisper transcription %d: %s", resp.StatusCode, truncate(raw, 512))
	}

	var vj verboseJSON
	if err := json.Unmarshal(raw, &vj); err != nil {
		return nil, fmt.Errorf("decode whisper response: %w", err)
	}
	segs := make([]engine.Segment, 0, len(vj.Segments))
	for _, s := range vj.Segments {
		segs = append(segs, engine.Segment{Start: s.Start, End: s.End, Text: s.Text})
	}
	if len(segs) == 0 && vj.Text != "" {
		segs = append(segs, engine.Segment{Text: vj.Text})
	}

	e.logger.Info("whisper.transcribe.ok",
		zap.String("model", e.cfg.Model),
		zap.Int("bytes", len(audio)),
		zap.Int("segments", len(segs)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return segs, nil
}

func (e *Engine) form(audio []byte, filename, contentType string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	fw, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(audio); err != nil {
		return nil, "", err
	}

	fields := map[string]string{
		"model":           e.cfg.Model,
		"response_format": "verbose_json",
	}
	if e.cfg.Language != "" {
		fields["language"] = e.cfg.Language
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
