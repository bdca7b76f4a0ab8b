package azuredi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	Endpoint     string // https://<resource>.cognitiveservices.azure.com
	APIKey       string
	APIVersion   string
	ModelID      string
	PollInterval time.Duration
	Timeout      time.Duration
}

// Engine reads documents with the Azure Document Intelligence layout model.
type Engine struct {
	cfg    Config
	httpc  *http.Client
	logger *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Engine {
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2024-11-30"
	}
	if cfg.ModelID == "" {
		cfg.ModelID = "prebuilt-layout"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, httpc: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

func (e *Engine) Name() string     { return "azure-document-intelligence" }
func (e *Engine) GetModel() string { return e.cfg.ModelID }

type analyzeStatus struct {
	Status        string `json:"status"`
	AnalyzeResult *struct {
		Content string `json:"content"`
	} `json:"analyzeResult"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ReadDocument submits data for analysis, waits for the operation and returns the recognised text.
func (e *Engine) ReadDocument(ctx context.Context, data []byte, contentType string) (string, error) {
	if e.cfg.Endpoint == "" || e.cfg.APIKey == "" {
		return "", errors.New("document intelligence endpoint or key is empty")
	}
	if len(data) == 0 {
		return "", errors.New("empty document")
	}
	start := time.Now()

	u := fmt.Sprintf("%s/documentintelligence/documentModels/%s:analyze?api-version=%s",
		strings.TrimRight(e.cfg.Endpoint, "/"), url.PathEscape(e.cfg.ModelID), url.QueryEscape(e.cfg.APIVersion))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Ocp-Apim-Subscription-Key", e.cfg.APIKey)

	resp, err := e.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("document intelligence http error: %w", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("document intelligence analyze %d: %s", resp.StatusCode, truncate(body, 512))
	}
	opURL := resp.Header.Get("Operation-Location")
	if opURL == "" {
		return "", errors.New("document intelligence: missing Operation-Location header")
	}

	content, polls, err := e.wait(ctx, opURL)
	if err != nil {
		return "", err
	}
	e.logger.Info("azuredi.read.ok",
		zap.String("model", e.cfg.ModelID),
		zap.String("content_type", contentType),
		zap.Int("bytes", len(data)),
		zap.Int("polls", polls),
		zap.Int("chars", len(content)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return content, nil
}

func (e *Engine) wait(ctx context.Context, opURL string) (string, int, error) {
	for polls := 1; ; polls++ {
		st, retryAfter, err := e.status(ctx, opURL)
		if err != nil {
			return "", polls, err
		}
		switch strings.ToLower(st.Status) {
		case "succeeded":
			if st.AnalyzeResult == nil {
				return "", polls, errors.New("document intelligence: succeeded without analyzeResult")
			}
			return st.AnalyzeResult.Content, polls, nil
		case "failed", "canceled":
			msg := st.Status
			if st.Error != nil {
				msg = st.Error.Code + ": " + st.Error.Message
			}
			return "", polls, fmt.Errorf("document intelligence analysis %s", msg)
		}

		delay := e.cfg.PollInterval
		if retryAfter > 0 {
			delay = retryAfter
		}
		select {
		case <-ctx.Done():
			return "", polls, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (e *Engine) status(ctx context.Context, opURL string) (analyzeStatus, time.Duration, error) {
	var st analyzeStatus
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opURL, nil)
	if err != nil {
		return st, 0, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", e.cfg.APIKey)

	resp, err := e.httpc.Do(req)
	if err != nil {
		return st, 0, fmt.Errorf("document intelligence poll: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return st, 0, fmt.Errorf("document intelligence poll %d: %s", resp.StatusCode, truncate(body, 512))
	}
	if err := json.Unmarshal(body, &st); err != nil {
		return st, 0, fmt.Errorf("decode analyze status: %w", err)
	}
	var retryAfter time.Duration
	if s := resp.Header.Get("Retry-After"); s != "" {
		if d, err := time.ParseDuration(s + "s"); err == nil && d > 0 && d < time.Minute {
			retryAfter = d
		}
	}
	return st, retryAfter, nil
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
