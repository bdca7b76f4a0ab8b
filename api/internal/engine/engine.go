package engine

import (
	"context"
	"strings"
)

// Image is one downloaded photo handed to the vision model.
type Image struct {
	Name string
	MIME string
	Data []byte
}

// Segment is a timed piece of a transcript.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// DamageClassifier sends photos and a prompt to a vision model and returns its raw text reply.
type DamageClassifier interface {
	Name() string
	GetModel() string
	Classify(ctx context.Context, images []Image, prompt string) (string, error)
}

// DocumentReader runs OCR/layout analysis and returns the document's text content.
type DocumentReader interface {
	ReadDocument(ctx context.Context, data []byte, contentType string) (string, error)
}

// ChatCompleter answers one system+user exchange with free text.
type ChatCompleter interface {
	GetModel() string
	Complete(ctx context.Context, system, user string) (string, error)
}

// Transcriber turns audio bytes into timed text segments.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename, contentType string) ([]Segment, error)
}

// JoinSegments concatenates segment texts into one transcript.
func JoinSegments(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteString(s.Text)
	}
	return strings.TrimSpace(b.String())
}
