package inspect

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"damage-control/api/internal/catalog"
	"damage-control/api/internal/common"
	"damage-control/api/internal/engine"
	"damage-control/api/internal/util"
)

type fakeClassifier struct {
	reply  string
	err    error
	calls  int
	prompt string
	images []engine.Image
}

func (f *fakeClassifier) Name() string     { return "fake" }
func (f *fakeClassifier) GetModel() string { return "fake-vision" }
func (f *fakeClassifier) Classify(_ context.Context, images []engine.Image, prompt string) (string, error) {
	f.calls++
	f.images = images
	f.prompt = prompt
	return f.reply, f.err
}

type fakeSource struct {
	calls  int
	images []engine.Image
}

func (s *fakeSource) FetchAll(_ context.Context, urls []string) []engine.Image {
	s.calls++
	return s.images
}

func TestAnalyzeEmptyListMakesNoCalls(t *testing.T) {
	cls, src := &fakeClassifier{}, &fakeSource{}
	_, err := New(cls, src, catalog.Default(), nil).Analyze(context.Background(), nil)
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("err = %v, want invalid input", err)
	}
	if cls.calls != 0 || src.calls != 0 {
		t.Fatalf("external calls made: classify=%d fetch=%d", cls.calls, src.calls)
	}
}

func TestAnalyzeParsesFencedReply(t *testing.T) {
	cls := &fakeClassifier{reply: "```json\n{\"damages\":[{\"part\":\"BUMPER_FRONT\"}]}\n```"}
	src := &fakeSource{images: []engine.Image{{Name: "a.jpg", MIME: "image/jpeg", Data: []byte{1}}, {Name: "b.jpg", MIME: "image/jpeg", Data: []byte{2}}}}

	res, err := New(cls, src, catalog.Default(), nil).Analyze(context.Background(), []string{"http://x/a.jpg", "http://x/b.jpg"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	m, ok := res.Damages.(map[string]any)
	if !ok || m["damages"] == nil {
		t.Fatalf("damages = %#v", res.Damages)
	}
	if res.ImageCount != 2 || len(cls.images) != 2 {
		t.Fatalf("image count = %d / %d", res.ImageCount, len(cls.images))
	}
	if !strings.Contains(cls.prompt, "1) a.jpg\n2) b.jpg") {
		t.Fatalf("prompt lacks image list:\n%s", cls.prompt)
	}
	if !strings.Contains(cls.prompt, `"severities"`) {
		t.Fatal("prompt lacks catalog tables")
	}
}

func TestAnalyzeSoftParseFailure(t *testing.T) {
	cls := &fakeClassifier{reply: "I could not see any car."}
	src := &fakeSource{images: []engine.Image{{Name: "a.jpg"}}}

	res, err := New(cls, src, catalog.Default(), nil).Analyze(context.Background(), []string{"http://x/a.jpg"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !util.IsParseFailure(res.Damages) {
		t.Fatalf("damages = %#v, want parse-failure envelope", res.Damages)
	}
	if res.Damages.(map[string]any)["raw_text"] != "I could not see any car." {
		t.Fatal("raw_text not preserved")
	}
}

func TestAnalyzeNoImagesDownloaded(t *testing.T) {
	cls := &fakeClassifier{}
	_, err := New(cls, &fakeSource{}, catalog.Default(), nil).Analyze(context.Background(), []string{"http://x/a.jpg"})
	if common.HTTPStatus(err) != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502 (err %v)", common.HTTPStatus(err), err)
	}
	if cls.calls != 0 {
		t.Fatal("classifier called without images")
	}
}

func TestAnalyzeClassifierFailure(t *testing.T) {
	cls := &fakeClassifier{err: errors.New("quota exhausted")}
	src := &fakeSource{images: []engine.Image{{Name: "a.jpg"}}}
	_, err := New(cls, src, catalog.Default(), nil).Analyze(context.Background(), []string{"http://x/a.jpg"})
	if !errors.Is(err, common.ErrExternalService) || !strings.Contains(common.Message(err), "quota exhausted") {
		t.Fatalf("err = %v", err)
	}
}

func TestAnalyzeCountsRequestedAndDownloaded(t *testing.T) {
	cls := &fakeClassifier{reply: `{"damages":[]}`}
	src := &fakeSource{images: []engine.Image{{Name: "a.jpg"}}}
	urls := []string{"http://x/a.jpg", "http://x/gone.jpg", "http://x/b.jpg"}

	res, err := New(cls, src, catalog.Default(), nil).Analyze(context.Background(), urls)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.ImageCount != 3 || res.Downloaded != 1 {
		t.Fatalf("counts = %d requested / %d downloaded, want 3 / 1", res.ImageCount, res.Downloaded)
	}
}
