package preprocess

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bar draws a dark vertical bar on a light background.
func bar(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: 230, G: 230, B: 230, A: 255}
			if x >= w/3 && x < 2*w/3 {
				c = color.NRGBA{R: 30, G: 30, B: 30, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestBuild_DefaultOrder(t *testing.T) {
	variants, err := Build(Options{})
	require.NoError(t, err)

	names := make([]string, len(variants))
	for i, v := range variants {
		names[i] = v.Name
	}
	assert.Equal(t, DefaultVariants, names)
}

func TestBuild_UnknownVariant(t *testing.T) {
	_, err := Build(Options{Variants: []string{Otsu, "median"}})
	assert.Error(t, err)
}

func TestVariants_ProduceBinaryImages(t *testing.T) {
	src := bar(60, 20)
	variants, err := Build(Options{BlackFilter: true, BlackThreshold: 100})
	require.NoError(t, err)

	for _, v := range variants {
		t.Run(v.Name, func(t *testing.T) {
			out := v.Apply(src)
			require.Equal(t, src.Bounds().Size(), out.Bounds().Size())
			for i := 0; i < len(out.Pix); i += 4 {
				p := out.Pix[i]
				require.True(t, p == 0 || p == 255, "pixel %d is %d", i/4, p)
			}
			// centre of the bar is ink, the left margin is paper
			assert.Equal(t, uint8(0), out.NRGBAAt(30, 10).R)
			assert.Equal(t, uint8(255), out.NRGBAAt(2, 10).R)
		})
	}
}

func TestOtsuLevel_Bimodal(t *testing.T) {
	var hist [256]float64
	hist[20] = 0.5
	hist[220] = 0.5

	level := otsuLevel(hist)
	assert.GreaterOrEqual(t, level, uint8(20))
	assert.Less(t, level, uint8(220))
}

func TestPrepare_BlackFilter(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 90, G: 90, B: 90, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 140, G: 140, B: 140, A: 255})

	out := prepare(img, Options{BlackFilter: true, BlackThreshold: 100})
	assert.Equal(t, uint8(0), out.NRGBAAt(0, 0).R)
	assert.Equal(t, uint8(140), out.NRGBAAt(1, 0).R)
}
