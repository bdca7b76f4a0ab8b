package azuredi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newServer(t *testing.T, runningPolls int32, final string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var polls atomic.Int32
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/documentintelligence/documentModels/prebuilt-layout:analyze", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if r.Header.Get("Ocp-Apim-Subscription-Key") != "key" {
			t.Errorf("missing subscription key")
		}
		if r.Header.Get("Content-Type") != "image/png" {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		if r.URL.Query().Get("api-version") == "" {
			t.Errorf("missing api-version")
		}
		b, _ := io.ReadAll(r.Body)
		if string(b) != "PNGDATA" {
			t.Errorf("body = %q", b)
		}
		w.Header().Set("Operation-Location", srv.URL+"/operations/1")
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/operations/1", func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) <= runningPolls {
			_, _ = w.Write([]byte(`{"status":"running"}`))
			return
		}
		_, _ = w.Write([]byte(final))
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &polls
}

func TestReadDocumentPollsUntilSucceeded(t *testing.T) {
	srv, polls := newServer(t, 2, `{"status":"succeeded","analyzeResult":{"content":"ZAPISNIK O UVIĐAJU"}}`)
	e := New(Config{Endpoint: srv.URL, APIKey: "key", PollInterval: time.Millisecond}, nil)

	got, err := e.ReadDocument(context.Background(), []byte("PNGDATA"), "image/png")
	if err != nil {
		t.Fatalf("ReadDocument: %v", err)
	}
	if got != "ZAPISNIK O UVIĐAJU" {
		t.Fatalf("content = %q", got)
	}
	if polls.Load() != 3 {
		t.Fatalf("polls = %d, want 3", polls.Load())
	}
}

func TestReadDocumentFailedOperation(t *testing.T) {
	srv, _ := newServer(t, 0, `{"status":"failed","error":{"code":"InvalidContent","message":"corrupt"}}`)
	e := New(Config{Endpoint: srv.URL, APIKey: "key", PollInterval: time.Millisecond}, nil)

	_, err := e.ReadDocument(context.Background(), []byte("PNGDATA"), "image/png")
	if err == nil || !strings.Contains(err.Error(), "InvalidContent") {
		t.Fatalf("err = %v, want InvalidContent", err)
	}
}

func TestReadDocumentRejectedSubmit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":"401"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	e := New(Config{Endpoint: srv.URL, APIKey: "bad"}, nil)
	_, err := e.ReadDocument(context.Background(), []byte("x"), "application/pdf")
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("err = %v, want 401", err)
	}
}

func TestReadDocumentHonoursContext(t *testing.T) {
	srv, _ := newServer(t, 1<<30, "")
	e := New(Config{Endpoint: srv.URL, APIKey: "key", PollInterval: 5 * time.Millisecond}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := e.ReadDocument(ctx, []byte("PNGDATA"), "image/png"); err == nil {
		t.Fatal("expected context error")
	}
}

func TestReadDocumentRequiresConfig(t *testing.T) {
	if _, err := New(Config{}, nil).ReadDocument(context.Background(), []byte("x"), "image/png"); err == nil {
		t.Fatal("expected config error")
	}
}
