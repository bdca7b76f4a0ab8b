package extract

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"damage-control/api/internal/common"
	"damage-control/api/internal/engine"
	"damage-control/api/internal/forms"
	"damage-control/api/internal/util"
)

const instructions = "You are a highly accurate data-extraction tool. " +
	"Given the full OCR output from a document, return ONLY a single, valid JSON object by filling in the values. " +
	"You will likely be given a text in English or Serbian. " +
	"Correct obvious recognition mistakes, but do not write anything else. " +
	"Here is the format of the output (JSON Schema): "

// Extractor fills a document-type form from free text with a chat model.
type Extractor struct {
	chat   engine.ChatCompleter
	forms  *forms.Registry
	logger *zap.Logger
}

func New(chat engine.ChatCompleter, reg *forms.Registry, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{chat: chat, forms: reg, logger: logger}
}

// Model names the chat model the extractor talks to.
func (x *Extractor) Model() string { return x.chat.GetModel() }

// Form resolves docType early so callers can reject unknown types before doing any work.
func (x *Extractor) Form(docType string) (*forms.Form, error) {
	return x.forms.Lookup(docType)
}

// Extract returns the parsed document, or the {"error","raw_text"} envelope when the model's
// reply is not JSON. Schema mismatches are logged, not returned.
func (x *Extractor) Extract(ctx context.Context, text, docType string) (any, error) {
	form, err := x.forms.Lookup(docType)
	if err != nil {
		return nil, err
	}
	start := time.Now()

	raw, err := x.chat.Complete(ctx, SystemPrompt(form), UserPrompt(text))
	if err != nil {
		return nil, common.External("chat completion", err)
	}
	doc := util.ParseModelJSON(raw)
	if util.IsParseFailure(doc) {
		x.logger.Warn("extract.output.unparsable",
			zap.String("form", form.Name),
			zap.String("model", x.chat.GetModel()),
			zap.Int("chars", len(raw)),
		)
		return doc, nil
	}
	if err := form.Validate(doc); err != nil {
		x.logger.Warn("extract.output.schema_mismatch", zap.String("form", form.Name), zap.Error(err))
	}
	x.logger.Info("extract.ok",
		zap.String("form", form.Name),
		zap.Int("input_chars", len(text)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return doc, nil
}

func SystemPrompt(form *forms.Form) string {
	return instructions + form.Schema()
}

func UserPrompt(text string) string {
	return "**INPUT**\n" + strings.TrimSpace(text)
}
