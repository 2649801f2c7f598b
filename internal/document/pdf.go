package document

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/rs/zerolog"

	"docsplit/internal/logger"
)

// Options configures how PDFs are opened.
type Options struct {
	// RasterizerBin is the pdftoppm executable.
	RasterizerBin string
}

// PDF is a PDF file held in memory. Rendering and materialization are safe
// for concurrent use; text extraction is serialized internally.
type PDF struct {
	path  string
	data  []byte
	dims  []types.Dim
	pages int

	mu     sync.Mutex
	reader *pdf.Reader // nil when the text layer could not be parsed

	raster *popplerRasterizer
	log    zerolog.Logger
}

// Open reads and validates a PDF.
func Open(ctx context.Context, path string, opts Options) (*PDF, error) {
	log := logger.WithComponent("document").With().Str("file", filepath.Base(path)).Logger()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) < 4 || string(data[:4]) != "%PDF" {
		return nil, fmt.Errorf("%w: missing PDF header", ErrInvalidDocument)
	}

	pages, err := api.PageCount(bytes.NewReader(data), newConfiguration())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if pages == 0 {
		return nil, fmt.Errorf("%w: document has no pages", ErrInvalidDocument)
	}

	dims, err := api.PageDims(bytes.NewReader(data), newConfiguration())
	if err != nil || len(dims) != pages {
		log.Warn().Err(err).Msg("Page dimensions unavailable, rendering full pages")
		dims = nil
	}

	raster, err := newPopplerRasterizer(opts.RasterizerBin)
	if err != nil {
		return nil, err
	}

	doc := &PDF{
		path:   path,
		data:   data,
		dims:   dims,
		pages:  pages,
		raster: raster,
		log:    log,
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		log.Debug().Err(err).Msg("Text layer unavailable")
	} else {
		doc.reader = reader
	}

	log.Debug().Int("pages", pages).Bool("text_layer", doc.reader != nil).Msg("Opened PDF")
	return doc, nil
}

// NewOpener returns an Opener using opts.
func NewOpener(opts Options) Opener {
	return func(ctx context.Context, path string) (Source, error) {
		doc, err := Open(ctx, path, opts)
		if err != nil {
			return nil, err
		}
		return doc, nil
	}
}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Path implements Source.
func (d *PDF) Path() string { return d.path }

// PageCount implements Source.
func (d *PDF) PageCount() int { return d.pages }

// Close implements Source.
func (d *PDF) Close() error { return nil }

func (d *PDF) checkPage(page int) error {
	if page < 0 || page >= d.pages {
		return fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, page, d.pages)
	}
	return nil
}

// pageSize returns the media box size in points, or zero when unknown.
func (d *PDF) pageSize(page int) (float64, float64) {
	if d.dims == nil {
		return 0, 0
	}
	return d.dims[page].Width, d.dims[page].Height
}

// RenderRegion implements Rasterizer.
func (d *PDF) RenderRegion(ctx context.Context, page int, roi Rect, scale float64) (image.Image, error) {
	if err := d.checkPage(page); err != nil {
		return nil, err
	}
	w, h := d.pageSize(page)
	return d.raster.render(ctx, d.path, page, roi, scale, w, h)
}

// ExtractText implements TextExtractor.
func (d *PDF) ExtractText(ctx context.Context, page int, roi Rect) (text string, err error) {
	if err := d.checkPage(page); err != nil {
		return "", err
	}
	w, h := d.pageSize(page)
	if d.reader == nil || w == 0 || h == 0 {
		return "", nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: text layer of page %d: %v", ErrInvalidDocument, page, r)
		}
	}()

	p := d.reader.Page(page + 1)
	if p.V.IsNull() {
		return "", nil
	}
	return textInRegion(p.Content().Text, roi, w, h), nil
}

// Materialize implements Materializer.
func (d *PDF) Materialize(ctx context.Context, start, end int) ([]byte, error) {
	if err := d.checkPage(start); err != nil {
		return nil, err
	}
	if err := d.checkPage(end); err != nil {
		return nil, err
	}
	if end < start {
		return nil, fmt.Errorf("%w: end %d before start %d", ErrPageOutOfRange, end, start)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var buf bytes.Buffer
	if err := api.Trim(bytes.NewReader(d.data), &buf, []string{pageSelection(start, end)}, newConfiguration()); err != nil {
		return nil, fmt.Errorf("extract pages %d-%d: %w", start+1, end+1, err)
	}
	return buf.Bytes(), nil
}

// pageSelection formats a 0-based inclusive range as a 1-based selection.
func pageSelection(start, end int) string {
	if start == end {
		return fmt.Sprintf("%d", start+1)
	}
	return fmt.Sprintf("%d-%d", start+1, end+1)
}
