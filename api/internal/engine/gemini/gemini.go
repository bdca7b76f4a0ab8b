package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"damage-control/api/internal/engine"
)

const maxAttempts = 3

type Engine struct {
	APIKey string
	Model  string

	opts       []option.ClientOption
	retryDelay time.Duration
	logger     *zap.Logger
}

func New(apiKey, model string, logger *zap.Logger, opts ...option.ClientOption) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		APIKey:     strings.TrimSpace(apiKey),
		Model:      strings.TrimSpace(model),
		opts:       opts,
		retryDelay: 300 * time.Millisecond,
		logger:     logger,
	}
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }

// Classify sends the images followed by the prompt and returns the model's text.
func (e *Engine) Classify(ctx context.Context, images []engine.Image, prompt string) (string, error) {
	if e.APIKey == "" {
		return "", errors.New("GEMINI_API_KEY is empty")
	}
	opts := append([]option.ClientOption{option.WithAPIKey(e.APIKey)}, e.opts...)
	cl, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", err
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.Model)
	if m == nil {
		return "", fmt.Errorf("gemini: model is nil")
	}
	m.GenerationConfig = genai.GenerationConfig{
		Temperature: ptrFloat32(0),
	}

	parts := make([]genai.Part, 0, len(images)+1)
	for _, img := range images {
		parts = append(parts, &genai.Blob{MIMEType: img.MIME, Data: img.Data})
	}
	parts = append(parts, genai.Text(prompt))

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		start := time.Now()
		resp, err := m.GenerateContent(ctx, parts...)
		if err == nil {
			txt := firstText(resp)
			if txt == "" {
				return "", fmt.Errorf("gemini classify: empty response")
			}
			e.logger.Info("gemini.classify.ok",
				zap.String("model", e.Model),
				zap.Int("images", len(images)),
				zap.Int("attempt", attempt),
				zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
			)
			return txt, nil
		}
		lastErr = err
		if !isTransient(err) || attempt == maxAttempts {
			break
		}
		e.logger.Warn("gemini.classify.retry", zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(attempt) * e.retryDelay):
		}
	}
	return "", fmt.Errorf("gemini classify: %w", lastErr)
}

// isTransient reports whether a failed call is worth repeating.
func isTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal, codes.Aborted:
		return true
	}
	return false
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		var b strings.Builder
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
