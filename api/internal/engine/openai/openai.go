package openai

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

const maxAttempts = 3

// Config selects between an Azure OpenAI deployment and the public OpenAI API.
// Azure is used whenever APIVersion is set.
type Config struct {
	BaseURL    string // Azure: https://<resource>.openai.azure.com ; OpenAI: https://api.openai.com/v1
	APIKey     string
	Model      string // Azure deployment name or OpenAI model
	APIVersion string
	Timeout    time.Duration
}

type Engine struct {
	cfg        Config
	httpc      *http.Client
	retryDelay time.Duration
	logger     *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Engine {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:        cfg,
		httpc:      &http.Client{Timeout: cfg.Timeout},
		retryDelay: 500 * time.Millisecond,
		logger:     logger,
	}
}

func (e *Engine) Name() string     { return "openai" }
func (e *Engine) GetModel() string { return e.cfg.Model }

func (e *Engine) azure() bool { return e.cfg.APIVersion != "" }

func (e *Engine) endpoint() string {
	base := strings.TrimRight(e.cfg.BaseURL, "/")
	if e.azure() {
		return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
			base, url.PathEscape(e.cfg.Model), url.QueryEscape(e.cfg.APIVersion))
	}
	return base + "/chat/completions"
}

// Complete runs one deterministic chat completion and returns the assistant text.
func (e *Engine) Complete(ctx context.Context, system, user string) (string, error) {
	if e.cfg.APIKey == "" {
		return "", errors.New("chat completion API key is empty")
	}
	body := map[string]any{
		"messages": []any{
			map[string]any{"role": "system", "content": system},
			map[string]any{"role": "user", "content": user},
		},
		"temperature": 0,
	}
	if !e.azure() {
		body["model"] = e.cfg.Model
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		start := time.Now()
		out, retry, err := e.post(ctx, payload)
		if err == nil {
			e.logger.Info("openai.complete.ok",
				zap.String("model", e.cfg.Model),
				zap.Int("attempt", attempt),
				zap.Int("chars", len(out)),
				zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
			)
			return out, nil
		}
		lastErr = err
		if !retry || attempt == maxAttempts {
			break
		}
		e.logger.Warn("openai.complete.retry", zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(attempt) * e.retryDelay):
		}
	}
	return "", lastErr
}

// post performs one HTTP exchange; the bool reports whether the failure is transient.
func (e *Engine) post(ctx context.Context, payload []byte) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.azure() {
		req.Header.Set("api-key", e.cfg.APIKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	resp, err := e.httpc.Do(req)
	if err != nil {
		return "", ctx.Err() == nil, fmt.Errorf("openai http error: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		transient := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", transient, fmt.Errorf("openai chat %d: %s", resp.StatusCode, truncate(raw, 512))
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", false, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return "", false, fmt.Errorf("openai chat: empty response")
	}
	return strings.TrimSpace(cc.Choices[0].Message.Content), false, nil
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
