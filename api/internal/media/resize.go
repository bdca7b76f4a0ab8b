package media

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	_ "image/gif"
	_ "image/jpeg"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DownscalePNG decodes an image, shrinks it so its longest side is at most maxSide and
// encodes the result as PNG. Images already within bounds are only re-encoded.
func DownscalePNG(data []byte, maxSide int) ([]byte, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	dst := scale(src, maxSide)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode png (from %s): %w", format, err)
	}
	return buf.Bytes(), nil
}

func scale(src image.Image, maxSide int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := max(w, h)
	if maxSide <= 0 || longest <= maxSide {
		return src
	}
	factor := float64(maxSide) / float64(longest)
	nw, nh := max(1, int(float64(w)*factor)), max(1, int(float64(h)*factor))

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
