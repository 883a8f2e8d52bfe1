package alert

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// thumbnailMaxDim is the largest edge length of an overlay icon. The
// overlay renders icons small, so anything bigger just wastes bandwidth
// on the local socket.
const thumbnailMaxDim = 64

// encodeThumbnail downscales raw image bytes and returns them as a
// base64 PNG suitable for embedding in an overlay notification.
func encodeThumbnail(data []byte) (string, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode thumbnail: %w", err)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if width > thumbnailMaxDim || height > thumbnailMaxDim {
		scale := float64(thumbnailMaxDim) / float64(max(width, height))
		width = int(float64(width) * scale)
		height = int(float64(height) * scale)

		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
		src = dst
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		return "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
