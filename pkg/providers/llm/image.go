package llm

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/jpeg"
)

// encodeJPEGBase64 renders img as a JPEG and returns it base64-encoded,
// the form every vision-capable chat-completions API in this package
// expects embedded in its request body.
func encodeJPEGBase64(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
