package screenshot

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	// decoders for whatever format the browser hands back
	_ "image/png"
)

// Recompress re-encodes an image as baseline JPEG at the given quality.
func Recompress(data []byte, quality int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode capture: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(len(data))
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: clampQuality(quality)}); err != nil {
		return nil, fmt.Errorf("encode capture: %w", err)
	}
	return buf.Bytes(), nil
}

func clampQuality(q int) int {
	switch {
	case q < 1:
		return jpeg.DefaultQuality
	case q > 100:
		return 100
	default:
		return q
	}
}
