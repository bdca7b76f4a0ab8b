package media

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestFetchAllSkipsFailures(t *testing.T) {
	photo := pngBytes(t, 4, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cases/12/front.png", "/cases/12/rear.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(photo)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), 2, nil)
	got := f.FetchAll(context.Background(), []string{
		srv.URL + "/cases/12/front.png?sig=abc",
		srv.URL + "/cases/12/missing.png",
		srv.URL + "/cases/12/rear.png",
	})
	if len(got) != 2 {
		t.Fatalf("downloaded %d images, want 2", len(got))
	}
	if got[0].Name != "front.png" || got[1].Name != "rear.png" {
		t.Fatalf("names = %q, %q; want order preserved", got[0].Name, got[1].Name)
	}
	if got[0].MIME != "image/png" {
		t.Fatalf("mime = %q", got[0].MIME)
	}
}

func TestFetchAllNoneReachable(t *testing.T) {
	f := NewFetcher(nil, 0, nil)
	if got := f.FetchAll(context.Background(), []string{"http://127.0.0.1:1/x.jpg"}); len(got) != 0 {
		t.Fatalf("got %d images, want 0", len(got))
	}
}

func TestBaseName(t *testing.T) {
	cases := map[string]string{
		"https://cdn.example.com/a/b/IMG_001.jpg?x=1": "IMG_001.jpg",
		"https://cdn.example.com/photo":               "photo",
		"plain.png":                                   "plain.png",
	}
	for in, want := range cases {
		if got := BaseName(in); got != want {
			t.Errorf("BaseName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDownscalePNGShrinksLongestSide(t *testing.T) {
	out, err := DownscalePNG(pngBytes(t, 2000, 500), 1000)
	if err != nil {
		t.Fatalf("DownscalePNG: %v", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("result is not png: %v", err)
	}
	if cfg.Width != 1000 || cfg.Height != 250 {
		t.Fatalf("size = %dx%d, want 1000x250", cfg.Width, cfg.Height)
	}
}

func TestDownscalePNGKeepsSmallImagesAndConvertsJPEG(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 300, 200)), nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	out, err := DownscalePNG(buf.Bytes(), 1000)
	if err != nil {
		t.Fatalf("DownscalePNG: %v", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(out))
	if err != nil || cfg.Width != 300 || cfg.Height != 200 {
		t.Fatalf("config = %+v, err = %v", cfg, err)
	}
}

func TestDownscalePNGRejectsGarbage(t *testing.T) {
	if _, err := DownscalePNG([]byte("not an image"), 1000); err == nil {
		t.Fatal("expected decode error")
	}
}
