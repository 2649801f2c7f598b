// Package ocr defines the recognition capability used by the header
// extractor and the cloud engines that implement it.
//
// Engines are single-owner: a worker creates its own instance through an
// EngineFactory and closes it when done. Implementations need not be safe
// for concurrent use.
//
// Cloud engines read credentials from the environment:
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
//
// The Tesseract engine lives in the tesseract subpackage because it needs cgo.
package ocr

import (
	"bytes"
	"context"
	"image"
	"strings"

	"github.com/disintegration/imaging"
)

// Segmentation is a Tesseract page segmentation mode. Engines without a
// segmentation concept ignore it.
type Segmentation int

// Segmentation modes used for header regions.
const (
	SegmentBlock      Segmentation = 6
	SegmentSingleLine Segmentation = 7
	SegmentSparse     Segmentation = 11
)

// Recognition is the raw engine output for one image.
type Recognition struct {
	// Text is the recognized text, trimmed.
	Text string `json:"text"`

	// Confidence is the engine's confidence in the range 0 to 100.
	Confidence float64 `json:"confidence"`
}

// Engine recognizes text in an image region.
type Engine interface {
	// Name identifies the engine in candidate source methods.
	Name() string

	// Recognize runs recognition on img.
	Recognize(ctx context.Context, img image.Image, seg Segmentation) (Recognition, error)

	// Close releases the engine's resources.
	Close() error
}

// EngineFactory creates a fresh engine instance owned by the caller.
type EngineFactory func(ctx context.Context) (Engine, error)

// EncodePNG encodes img for engines that take encoded bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	const op = "EncodePNG"
	if img == nil || img.Bounds().Empty() {
		return nil, NewOCRError(op, ErrEmptyImage, "")
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, WrapOCRError(op, err, "failed to encode image")
	}
	return buf.Bytes(), nil
}

// ExpandCharset expands a character class such as "A-Z0-9-" into the list of
// characters it allows. A dash at either end is literal.
func ExpandCharset(class string) string {
	runes := []rune(class)
	var b strings.Builder
	seen := make(map[rune]bool)
	add := func(r rune) {
		if !seen[r] {
			seen[r] = true
			b.WriteRune(r)
		}
	}
	for i := 0; i < len(runes); i++ {
		if i+2 < len(runes) && runes[i+1] == '-' && runes[i] <= runes[i+2] {
			for r := runes[i]; r <= runes[i+2]; r++ {
				add(r)
			}
			i += 2
			continue
		}
		add(runes[i])
	}
	return b.String()
}
