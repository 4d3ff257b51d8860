package media

import (
	"bytes"
	"fmt"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

const thumbnailWebpQuality = 80

// NormalizeThumbnail decodes a thumbnail payload, bounds it to
// maxWidth x maxHeight preserving aspect ratio, and re-encodes it as webp.
func NormalizeThumbnail(data []byte, maxWidth, maxHeight int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode thumbnail: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxWidth || bounds.Dy() > maxHeight {
		img = imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: thumbnailWebpQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail as webp: %w", err)
	}
	return buf.Bytes(), nil
}
