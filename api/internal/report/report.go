package report

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"damage-control/api/internal/common"
	"damage-control/api/internal/engine"
	"damage-control/api/internal/forms"
	"damage-control/api/internal/media"
	"damage-control/api/internal/store"
	"damage-control/api/internal/util"
)

// Allowed upload suffixes, matched case-insensitively.
var allowed = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
}

// Archive caches extractions by document hash. *store.ReportRepo satisfies it.
type Archive interface {
	FindByHash(ctx context.Context, hash, docType, model string, maxAge time.Duration) (*store.ReportRow, error)
	Save(ctx context.Context, row store.ReportRow) error
}

// Extractor turns OCR text into a document-type form.
type Extractor interface {
	Model() string
	Form(docType string) (*forms.Form, error)
	Extract(ctx context.Context, text, docType string) (any, error)
}

// Upload is one accident-report file as received from a client.
type Upload struct {
	Filename     string
	Data         []byte
	DocumentType string
}

type Analyzer struct {
	reader    engine.DocumentReader
	extractor Extractor
	archive   Archive
	cacheTTL  time.Duration
	maxSide   int
	logger    *zap.Logger
}

type Option func(*Analyzer)

// WithArchive enables the extraction cache; rows older than ttl are ignored.
func WithArchive(a Archive, ttl time.Duration) Option {
	return func(an *Analyzer) {
		an.archive = a
		an.cacheTTL = ttl
	}
}

func WithMaxSide(px int) Option {
	return func(an *Analyzer) {
		if px > 0 {
			an.maxSide = px
		}
	}
}

func New(reader engine.DocumentReader, extractor Extractor, logger *zap.Logger, opts ...Option) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	an := &Analyzer{reader: reader, extractor: extractor, maxSide: 1000, logger: logger}
	for _, o := range opts {
		o(an)
	}
	return an
}

// CheckFilename rejects files whose suffix is not a supported document or image type.
func CheckFilename(name string) error {
	if name == "" {
		return common.InvalidInput("file is required")
	}
	if _, ok := allowed[util.Ext(name)]; !ok {
		return common.InvalidInput("only PDF and image files (.pdf, .png, .jpg, .jpeg, .webp) are supported")
	}
	return nil
}

// Analyze runs OCR on the upload and extracts the document-type form from the text.
func (an *Analyzer) Analyze(ctx context.Context, up Upload) (any, error) {
	if err := CheckFilename(up.Filename); err != nil {
		return nil, err
	}
	if len(up.Data) == 0 {
		return nil, common.InvalidInput("file is empty")
	}
	form, err := an.extractor.Form(up.DocumentType)
	if err != nil {
		return nil, err
	}
	docType := form.Name

	hash := util.SHA256Hex(up.Data)
	if doc, ok := an.cached(ctx, hash, docType); ok {
		return doc, nil
	}

	body, contentType, err := an.prepare(up)
	if err != nil {
		return nil, err
	}
	text, err := an.reader.ReadDocument(ctx, body, contentType)
	if err != nil {
		return nil, common.External("document intelligence", err)
	}
	doc, err := an.extractor.Extract(ctx, text, docType)
	if err != nil {
		return nil, err
	}

	if an.archive != nil && !util.IsParseFailure(doc) {
		row := store.ReportRow{
			DocumentHash: hash,
			DocumentType: docType,
			Model:        an.extractor.Model(),
			Filename:     up.Filename,
			OCRText:      text,
			Result:       doc,
		}
		if err := an.archive.Save(ctx, row); err != nil {
			an.logger.Warn("report.archive.save_failed", zap.String("hash", hash), zap.Error(err))
		}
	}
	return doc, nil
}

func (an *Analyzer) cached(ctx context.Context, hash, docType string) (any, bool) {
	if an.archive == nil {
		return nil, false
	}
	row, err := an.archive.FindByHash(ctx, hash, docType, an.extractor.Model(), an.cacheTTL)
	switch {
	case err == nil:
		an.logger.Info("report.archive.hit", zap.String("hash", hash), zap.String("document_type", docType))
		return row.Result, true
	case errors.Is(err, store.ErrNotFound):
		return nil, false
	default:
		an.logger.Warn("report.archive.lookup_failed", zap.String("hash", hash), zap.Error(err))
		return nil, false
	}
}

// prepare sends PDFs unchanged and normalises images to a bounded PNG.
func (an *Analyzer) prepare(up Upload) ([]byte, string, error) {
	contentType := allowed[util.Ext(up.Filename)]
	if contentType == "application/pdf" {
		return up.Data, contentType, nil
	}
	png, err := media.DownscalePNG(up.Data, an.maxSide)
	if err != nil {
		return nil, "", common.InvalidInput("cannot read image %s: %v", up.Filename, err)
	}
	return png, "image/png", nil
}
