package inspect

import (
	"context"
	"time"

	"go.uber.org/zap"

	"damage-control/api/internal/catalog"
	"damage-control/api/internal/common"
	"damage-control/api/internal/engine"
	"damage-control/api/internal/util"
)

// ImageSource resolves image URLs to downloaded photos, dropping the ones it cannot fetch.
type ImageSource interface {
	FetchAll(ctx context.Context, urls []string) []engine.Image
}

// Result is the classification of one batch of photos.
// ImageCount is the number of URLs requested; Downloaded is how many of them were fetched.
type Result struct {
	Damages    any
	ImageCount int
	Downloaded int
	Model      string
	At         time.Time
}

// Inspector classifies vehicle damage on a batch of case photos.
type Inspector struct {
	classifier engine.DamageClassifier
	images     ImageSource
	parts      catalog.VehicleParts
	logger     *zap.Logger
	now        func() time.Time
}

func New(classifier engine.DamageClassifier, images ImageSource, parts catalog.VehicleParts, logger *zap.Logger) *Inspector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inspector{classifier: classifier, images: images, parts: parts, logger: logger, now: time.Now}
}

// Analyze downloads the photos and asks the vision model for the damage list. The reply is
// parsed softly: unparsable output comes back as the {"error","raw_text"} envelope.
func (in *Inspector) Analyze(ctx context.Context, urls []string) (Result, error) {
	if len(urls) == 0 {
		return Result{}, common.InvalidInput("image_urls must not be empty")
	}
	for _, u := range urls {
		if u == "" {
			return Result{}, common.InvalidInput("image_urls must not contain empty entries")
		}
	}

	images := in.images.FetchAll(ctx, urls)
	if len(images) == 0 {
		return Result{}, common.External("image download", errNoImages)
	}

	names := make([]string, len(images))
	for i, img := range images {
		names[i] = img.Name
	}
	raw, err := in.classifier.Classify(ctx, images, BuildPrompt(in.parts, names))
	if err != nil {
		return Result{}, common.External(in.classifier.Name(), err)
	}

	parsed := util.ParseModelJSON(raw)
	if util.IsParseFailure(parsed) {
		in.logger.Warn("inspect.output.unparsable", zap.String("model", in.classifier.GetModel()), zap.Int("chars", len(raw)))
	}
	return Result{
		Damages:    parsed,
		ImageCount: len(urls),
		Downloaded: len(images),
		Model:      in.classifier.GetModel(),
		At:         in.now().UTC(),
	}, nil
}
