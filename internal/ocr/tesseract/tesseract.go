// Package tesseract provides the primary OCR engine backed by a local
// Tesseract installation through gosseract. It requires cgo and libtesseract.
package tesseract

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"docsplit/internal/ocr"
)

// Options configures the Tesseract client.
type Options struct {
	Languages []string
	Whitelist string // character class such as "A-Z0-9-"
}

// Engine wraps one gosseract client. It is not safe for concurrent use;
// create one per worker through Factory.
type Engine struct {
	client *gosseract.Client
}

// New creates an engine with a dedicated Tesseract client.
func New(opts Options) (*Engine, error) {
	return newWithClient(gosseract.NewClient(), opts)
}

func newWithClient(client *gosseract.Client, opts Options) (*Engine, error) {
	const op = "NewTesseractEngine"

	if len(opts.Languages) > 0 {
		if err := client.SetLanguage(opts.Languages...); err != nil {
			client.Close()
			return nil, ocr.WrapOCRError(op, err, "set languages")
		}
	}
	if opts.Whitelist != "" {
		if err := client.SetWhitelist(ocr.ExpandCharset(opts.Whitelist)); err != nil {
			client.Close()
			return nil, ocr.WrapOCRError(op, err, "set whitelist")
		}
	}
	return &Engine{client: client}, nil
}

// Factory returns an ocr.EngineFactory producing independent engines.
func Factory(opts Options) ocr.EngineFactory {
	return func(context.Context) (ocr.Engine, error) {
		engine, err := New(opts)
		if err != nil {
			return nil, err
		}
		return engine, nil
	}
}

// Name implements ocr.Engine.
func (e *Engine) Name() string { return "tesseract" }

// Recognize implements ocr.Engine.
func (e *Engine) Recognize(ctx context.Context, img image.Image, seg ocr.Segmentation) (ocr.Recognition, error) {
	const op = "TesseractRecognize"

	if ctx.Err() != nil {
		return ocr.Recognition{}, ocr.NewOCRError(op, ocr.ErrContextCanceled, ctx.Err().Error())
	}
	data, err := ocr.EncodePNG(img)
	if err != nil {
		return ocr.Recognition{}, err
	}
	if err := e.client.SetPageSegMode(gosseract.PageSegMode(seg)); err != nil {
		return ocr.Recognition{}, ocr.WrapOCRError(op, err, fmt.Sprintf("set page segmentation mode %d", seg))
	}
	if err := e.client.SetImageFromBytes(data); err != nil {
		return ocr.Recognition{}, ocr.WrapOCRError(op, err, "set image")
	}
	text, err := e.client.Text()
	if err != nil {
		return ocr.Recognition{}, ocr.WrapOCRError(op, ocr.ErrRecognitionFailed, err.Error())
	}
	return ocr.Recognition{
		Text:       strings.TrimSpace(text),
		Confidence: e.wordConfidence(),
	}, nil
}

// wordConfidence averages the per-word confidence of the last recognition.
func (e *Engine) wordConfidence() float64 {
	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence
	}
	return sum / float64(len(boxes))
}

// Close releases the Tesseract client.
func (e *Engine) Close() error {
	return e.client.Close()
}
