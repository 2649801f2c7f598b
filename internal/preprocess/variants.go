// Package preprocess turns a rendered header region into the binarized
// variants fed to the OCR engine. All transforms are pure.
package preprocess

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Variant names.
const (
	Threshold = "threshold"
	Adaptive  = "adaptive"
	Otsu      = "otsu"
	Bilateral = "bilateral"
	Sharpen   = "sharpen"
)

// DefaultVariants is the production order. Cheap global thresholds come
// first so an early exit skips the expensive ones.
var DefaultVariants = []string{Threshold, Adaptive, Otsu, Bilateral, Sharpen}

const (
	fixedLevel     = 150
	adaptiveSigma  = 8.0
	adaptiveOffset = 10
	smoothSigma    = 1.0
	contrastBoost  = 30.0
	sharpenSigma   = 1.2
)

// Options controls the variant set.
type Options struct {
	Variants       []string
	BlackFilter    bool
	BlackThreshold uint8
}

// Variant is a named transform of the region image.
type Variant struct {
	Name  string
	Apply func(image.Image) *image.NRGBA
}

// Build resolves the configured variant names. Unknown names are an error.
func Build(opts Options) ([]Variant, error) {
	names := opts.Variants
	if len(names) == 0 {
		names = DefaultVariants
	}
	variants := make([]Variant, 0, len(names))
	for _, name := range names {
		fn, ok := transforms[name]
		if !ok {
			return nil, fmt.Errorf("unknown preprocessing variant %q", name)
		}
		variants = append(variants, Variant{
			Name: name,
			Apply: func(img image.Image) *image.NRGBA {
				return fn(prepare(img, opts))
			},
		})
	}
	return variants, nil
}

var transforms = map[string]func(*image.NRGBA) *image.NRGBA{
	Threshold: func(gray *image.NRGBA) *image.NRGBA {
		return binarize(gray, fixedLevel)
	},
	Adaptive: adaptive,
	Otsu: func(gray *image.NRGBA) *image.NRGBA {
		return binarize(gray, otsuLevel(imaging.Histogram(gray)))
	},
	Bilateral: func(gray *image.NRGBA) *image.NRGBA {
		smooth := imaging.Blur(gray, smoothSigma)
		return binarize(smooth, otsuLevel(imaging.Histogram(smooth)))
	},
	Sharpen: func(gray *image.NRGBA) *image.NRGBA {
		sharp := imaging.Sharpen(imaging.AdjustContrast(gray, contrastBoost), sharpenSigma)
		return binarize(sharp, otsuLevel(imaging.Histogram(sharp)))
	},
}

// prepare converts to grayscale and, when enabled, forces dark ink to pure
// black so faint stamps and coloured marks drop out of the thresholds.
func prepare(img image.Image, opts Options) *image.NRGBA {
	gray := imaging.Grayscale(img)
	if !opts.BlackFilter {
		return gray
	}
	limit := opts.BlackThreshold
	return imaging.AdjustFunc(gray, func(c color.NRGBA) color.NRGBA {
		if c.R <= limit {
			return color.NRGBA{A: c.A}
		}
		return c
	})
}

func binarize(img *image.NRGBA, level uint8) *image.NRGBA {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		if c.R > level {
			return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
		}
		return color.NRGBA{A: 255}
	})
}

// adaptive thresholds each pixel against the blurred neighbourhood mean.
func adaptive(gray *image.NRGBA) *image.NRGBA {
	mean := imaging.Blur(gray, adaptiveSigma)
	out := imaging.Clone(gray)
	for i := 0; i+3 < len(out.Pix); i += 4 {
		v := uint8(255)
		if int(gray.Pix[i])+adaptiveOffset < int(mean.Pix[i]) {
			v = 0
		}
		out.Pix[i], out.Pix[i+1], out.Pix[i+2], out.Pix[i+3] = v, v, v, 255
	}
	return out
}

// otsuLevel picks the threshold maximizing between-class variance of a
// normalized luminance histogram.
func otsuLevel(hist [256]float64) uint8 {
	var total float64
	for i, p := range hist {
		total += float64(i) * p
	}
	var w0, sum0, best float64
	level := 0
	for t, p := range hist {
		w0 += p
		sum0 += float64(t) * p
		w1 := 1 - w0
		if w0 <= 0 || w1 <= 1e-12 {
			continue
		}
		m0, m1 := sum0/w0, (total-sum0)/w1
		between := w0 * w1 * (m0 - m1) * (m0 - m1)
		if between > best {
			best, level = between, t
		}
	}
	return uint8(level)
}
