package ocr

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

// encodePage loads a rendered page and re-encodes it as JPEG, shrinking it
// so that neither edge exceeds maxEdge (0 disables the limit).
func encodePage(path string, maxEdge, quality int) ([]byte, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open page image: %w", err)
	}
	b := img.Bounds()
	if maxEdge > 0 && (b.Dx() > maxEdge || b.Dy() > maxEdge) {
		img = imaging.Fit(img, maxEdge, maxEdge, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("encode page image: %w", err)
	}
	return buf.Bytes(), nil
}
