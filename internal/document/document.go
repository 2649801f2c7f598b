// Package document adapts source files to the capabilities the header
// pipeline consumes: rendering the header region, reading an embedded text
// layer, counting pages and copying page ranges into a new file.
//
// Page numbers are 0-based throughout.
package document

import (
	"context"
	"errors"
	"fmt"
	"image"
)

var (
	// ErrInvalidDocument is returned when the source is not a readable PDF.
	ErrInvalidDocument = errors.New("invalid or corrupted PDF document")

	// ErrPageOutOfRange is returned for a page index outside the document.
	ErrPageOutOfRange = errors.New("page index out of range")

	// ErrRasterizerUnavailable is returned when the rasterizer binary cannot be found.
	ErrRasterizerUnavailable = errors.New("rasterizer binary not found")
)

// Rect is a region of interest in percent of the page size, measured from
// the top-left corner.
type Rect struct {
	Top    float64 `mapstructure:"top"`
	Left   float64 `mapstructure:"left"`
	Width  float64 `mapstructure:"width"`
	Height float64 `mapstructure:"height"`
}

// Validate checks that the region lies inside the page.
func (r Rect) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("region must have a positive size, got %.1fx%.1f", r.Width, r.Height)
	}
	if r.Top < 0 || r.Left < 0 || r.Top+r.Height > 100 || r.Left+r.Width > 100 {
		return fmt.Errorf("region %+v exceeds the page", r)
	}
	return nil
}

// Pixels maps the region onto an image of the given size.
func (r Rect) Pixels(width, height int) image.Rectangle {
	x0 := int(float64(width) * r.Left / 100)
	y0 := int(float64(height) * r.Top / 100)
	x1 := int(float64(width) * (r.Left + r.Width) / 100)
	y1 := int(float64(height) * (r.Top + r.Height) / 100)
	return image.Rect(x0, y0, max(x1, x0+1), max(y1, y0+1))
}

// Rasterizer renders the region of one page at a scale factor, where 1.0
// is 72 dpi.
type Rasterizer interface {
	RenderRegion(ctx context.Context, page int, roi Rect, scale float64) (image.Image, error)
}

// TextExtractor reads the embedded text layer inside a region. An empty
// string means the page has no usable text layer.
type TextExtractor interface {
	ExtractText(ctx context.Context, page int, roi Rect) (string, error)
}

// Materializer produces a standalone document for an inclusive page range.
type Materializer interface {
	Materialize(ctx context.Context, start, end int) ([]byte, error)
}

// Source is an open document with all capabilities.
type Source interface {
	Rasterizer
	TextExtractor
	Materializer

	// Path is the file the source was opened from.
	Path() string

	// PageCount is the number of pages.
	PageCount() int

	// Close releases resources.
	Close() error
}

// Opener opens a document by path.
type Opener func(ctx context.Context, path string) (Source, error)
