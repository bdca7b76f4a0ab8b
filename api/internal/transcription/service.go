package transcription

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"damage-control/api/internal/common"
	"damage-control/api/internal/engine"
	"damage-control/api/internal/jobs"
	"damage-control/api/internal/util"
)

// Messages returned by the polling endpoint.
const (
	MsgNotReady = "Transcription is not yet ready"
	MsgUnknown  = "Transcription doesn't exist"
	MsgFailed   = "Transcription failed"
)

// Extractor structures a transcript into a document-type form.
type Extractor interface {
	Extract(ctx context.Context, text, docType string) (any, error)
}

// Upload is one audio file handed to Submit.
type Upload struct {
	Filename     string
	ContentType  string
	Data         []byte
	DocumentType string // optional; set to run the transcript through extraction
}

// Service runs transcriptions in the background and hands each result out once.
type Service struct {
	store       *jobs.Store
	pool        *jobs.Pool
	transcriber engine.Transcriber
	extractor   Extractor
	logger      *zap.Logger
	newID       func() string
}

func New(store *jobs.Store, pool *jobs.Pool, tr engine.Transcriber, ex Extractor, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:       store,
		pool:        pool,
		transcriber: tr,
		extractor:   ex,
		logger:      logger,
		newID:       func() string { return uuid.New().String() },
	}
}

// Submit registers a pending job and queues the work. It returns the job id without
// waiting for the transcription.
func (s *Service) Submit(ctx context.Context, up Upload) (string, error) {
	if len(up.Data) == 0 {
		return "", common.InvalidInput("file is required")
	}
	if !util.IsAudioContentType(up.ContentType) {
		return "", common.InvalidInput("file must be an audio file, got %q", up.ContentType)
	}
	if up.DocumentType != "" && s.extractor == nil {
		return "", common.InvalidInput("document extraction is not configured")
	}

	id := s.newID()
	if err := s.store.Create(id); err != nil {
		return "", err
	}
	err := s.pool.Submit(jobs.Task{ID: id, Run: func(ctx context.Context) (any, error) {
		return s.run(ctx, up)
	}})
	if err != nil {
		s.store.Discard(id)
		if errors.Is(err, jobs.ErrQueueFull) || errors.Is(err, jobs.ErrPoolClosed) {
			return "", common.NewAppError("BUSY", "transcription queue is full, retry later", errors.Join(common.ErrBusy, err))
		}
		return "", err
	}
	s.logger.Info("transcription.submitted",
		zap.String("job_id", id),
		zap.String("filename", up.Filename),
		zap.Int("bytes", len(up.Data)),
	)
	return id, nil
}

func (s *Service) run(ctx context.Context, up Upload) (any, error) {
	segs, err := s.transcriber.Transcribe(ctx, up.Data, up.Filename, up.ContentType)
	if err != nil {
		return nil, common.External("speech-to-text", err)
	}
	transcript := engine.JoinSegments(segs)
	if up.DocumentType == "" {
		return transcript, nil
	}

	doc, err := s.extractor.Extract(ctx, transcript, up.DocumentType)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if m, ok := doc.(map[string]any); ok {
		for k, v := range m {
			out[k] = v
		}
	} else {
		out["document"] = doc
	}
	// the speech-to-text transcript wins over a same-named extracted field
	out["transcript"] = transcript
	return out, nil
}

// Outcome is what a poller receives for a job id.
type Outcome struct {
	State  jobs.State
	Output any
	Error  string
}

// Result polls id. Done and failed outcomes are delivered once; afterwards the id is unknown.
func (s *Service) Result(id string) Outcome {
	snap := s.store.Poll(id)
	switch snap.State {
	case jobs.StatePending:
		return Outcome{State: snap.State, Output: MsgNotReady}
	case jobs.StateDone:
		return Outcome{State: snap.State, Output: snap.Result}
	case jobs.StateFailed:
		return Outcome{State: snap.State, Output: MsgFailed, Error: snap.Err}
	default:
		return Outcome{State: jobs.StateUnknown, Output: MsgUnknown}
	}
}
