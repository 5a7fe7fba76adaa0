package multimodal

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // registers the WebP decoder with image.Decode
)

// decodeScreenImage accepts a base64 string, optionally prefixed with a
// data URL header ("data:image/*;base64,"), and returns the decoded
// image. JPEG, PNG, GIF and WebP are all supported via image.Decode's
// registered decoders.
func decodeScreenImage(payload string) (image.Image, error) {
	if idx := strings.Index(payload, ","); idx != -1 && strings.HasPrefix(payload, "data:") {
		payload = payload[idx+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode base64 screen image: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode screen image: %w", err)
	}
	return img, nil
}

// resizeToFit scales img down so its larger side is at most maxSize,
// preserving aspect ratio. Images already within bounds are returned
// unchanged. Uses CatmullRom for high-quality downscaling.
func resizeToFit(img image.Image, maxSize int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if maxSize <= 0 || (w <= maxSize && h <= maxSize) {
		return img
	}

	var targetW, targetH int
	if w > h {
		targetW = maxSize
		targetH = int(float64(h) * float64(maxSize) / float64(w))
	} else {
		targetH = maxSize
		targetW = int(float64(w) * float64(maxSize) / float64(h))
	}
	if targetW < 1 {
		targetW = 1
	}
	if targetH < 1 {
		targetH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
