package document

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/disintegration/imaging"
)

const pointsPerInch = 72.0

// popplerRasterizer renders page regions with pdftoppm.
type popplerRasterizer struct {
	bin string
}

func newPopplerRasterizer(bin string) (*popplerRasterizer, error) {
	if bin == "" {
		bin = "pdftoppm"
	}
	resolved, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRasterizerUnavailable, bin)
	}
	return &popplerRasterizer{bin: resolved}, nil
}

// render draws the region at scale. With a known page size only the region is
// rasterized; otherwise the full page is rendered and cropped.
func (p *popplerRasterizer) render(ctx context.Context, path string, page int, roi Rect, scale, widthPt, heightPt float64) (image.Image, error) {
	dpi := int(math.Round(scale * pointsPerInch))
	args := popplerArgs(page, dpi, roi, widthPt, heightPt)

	dir, err := os.MkdirTemp("", "docsplit-render-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	root := filepath.Join(dir, "page")
	cmd := exec.CommandContext(ctx, p.bin, append(args, path, root)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("pdftoppm page %d: %w: %s", page+1, err, out)
	}

	img, err := imaging.Open(root + ".png")
	if err != nil {
		return nil, fmt.Errorf("decode rendered page %d: %w", page+1, err)
	}
	if widthPt == 0 || heightPt == 0 {
		b := img.Bounds()
		return imaging.Crop(img, roi.Pixels(b.Dx(), b.Dy())), nil
	}
	return img, nil
}

// popplerArgs builds the pdftoppm flags for one page.
func popplerArgs(page, dpi int, roi Rect, widthPt, heightPt float64) []string {
	n := strconv.Itoa(page + 1)
	args := []string{"-f", n, "-l", n, "-r", strconv.Itoa(dpi), "-png", "-singlefile"}
	if widthPt == 0 || heightPt == 0 {
		return args
	}
	wPx := int(math.Round(widthPt * float64(dpi) / pointsPerInch))
	hPx := int(math.Round(heightPt * float64(dpi) / pointsPerInch))
	crop := roi.Pixels(wPx, hPx)
	return append(args,
		"-x", strconv.Itoa(crop.Min.X),
		"-y", strconv.Itoa(crop.Min.Y),
		"-W", strconv.Itoa(crop.Dx()),
		"-H", strconv.Itoa(crop.Dy()),
	)
}
