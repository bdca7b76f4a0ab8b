package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"damage-control/api/internal/engine"
	"damage-control/api/internal/util"
)

// Fetcher downloads case photos referenced by URL.
type Fetcher struct {
	httpc       *http.Client
	concurrency int
	maxBytes    int64
	logger      *zap.Logger
}

func NewFetcher(httpc *http.Client, concurrency int, logger *zap.Logger) *Fetcher {
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{httpc: httpc, concurrency: concurrency, maxBytes: 20 << 20, logger: logger}
}

// FetchAll downloads every URL concurrently. Images that fail to download are logged and
// left out; the result keeps the order of urls.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) []engine.Image {
	slots := make([]*engine.Image, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, u := range urls {
		g.Go(func() error {
			img, err := f.fetch(gctx, u)
			if err != nil {
				f.logger.Warn("media.download.failed", zap.String("url", u), zap.Error(err))
				return nil
			}
			slots[i] = &img
			return nil
		})
	}
	_ = g.Wait()

	out := make([]engine.Image, 0, len(urls))
	for _, s := range slots {
		if s != nil {
			out = append(out, *s)
		}
	}
	f.logger.Info("media.download.done", zap.Int("requested", len(urls)), zap.Int("downloaded", len(out)))
	return out
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string) (engine.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return engine.Image{}, err
	}
	resp, err := f.httpc.Do(req)
	if err != nil {
		return engine.Image{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return engine.Image{}, fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return engine.Image{}, err
	}
	if int64(len(data)) > f.maxBytes {
		return engine.Image{}, fmt.Errorf("image larger than %d bytes", f.maxBytes)
	}
	if len(data) == 0 {
		return engine.Image{}, fmt.Errorf("empty body")
	}
	return engine.Image{
		Name: BaseName(rawURL),
		MIME: util.PickMIME("", resp.Header.Get("Content-Type"), data),
		Data: data,
	}, nil
}

// BaseName is the last path element of an image URL, query string ignored.
func BaseName(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(rawURL)
}
