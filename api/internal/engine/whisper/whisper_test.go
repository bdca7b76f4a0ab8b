package whisper

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"damage-control/api/internal/engine"
)

func TestTranscribeSendsMultipartAndReturnsSegments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if r.FormValue("model") != "whisper-1" || r.FormValue("response_format") != "verbose_json" {
			t.Errorf("fields = %v", r.MultipartForm.Value)
		}
		f, fh, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		b, _ := io.ReadAll(f)
		if string(b) != "RIFFDATA" || fh.Filename != "clip.wav" {
			t.Errorf("file = %q %q", fh.Filename, b)
		}
		if fh.Header.Get("Content-Type") != "audio/wav" {
			t.Errorf("part content type = %q", fh.Header.Get("Content-Type"))
		}
		_, _ = w.Write([]byte(`{"text":"ignored","segments":[{"start":0,"end":1.5,"text":" Udario me je"},{"start":1.5,"end":3,"text":" s leđa."}]}`))
	}))
	defer srv.Close()

	e := New(Config{BaseURL: srv.URL + "/v1", APIKey: "k"}, nil)
	segs, err := e.Transcribe(context.Background(), []byte("RIFFDATA"), "clip.wav", "audio/wav")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(segs) != 2 || segs[1].End != 3 {
		t.Fatalf("segments = %+v", segs)
	}
	if got := engine.JoinSegments(segs); got != "Udario me je s leđa." {
		t.Fatalf("joined = %q", got)
	}
}

func TestTranscribeFallsBackToText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text":"hello"}`))
	}))
	defer srv.Close()

	segs, err := New(Config{BaseURL: srv.URL, APIKey: "k"}, nil).Transcribe(context.Background(), []byte("x"), "a.mp3", "audio/mpeg")
	if err != nil || len(segs) != 1 || segs[0].Text != "hello" {
		t.Fatalf("segments = %+v, err = %v", segs, err)
	}
}

func TestTranscribeHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid file format", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL, APIKey: "k"}, nil).Transcribe(context.Background(), []byte("x"), "a.mp3", "audio/mpeg")
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Fatalf("err = %v, want 400", err)
	}
}
