package extract

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docsplit/internal/document"
	"docsplit/internal/header"
	"docsplit/internal/ocr"
	"docsplit/internal/preprocess"
	"docsplit/mocks"
)

// fakePage renders images whose width encodes the scale (10px per 1.0).
type fakePage struct {
	text       string
	failScales map[float64]bool
	renders    []float64
}

func (f *fakePage) RenderRegion(_ context.Context, _ int, _ document.Rect, scale float64) (image.Image, error) {
	f.renders = append(f.renders, scale)
	if f.failScales[scale] {
		return nil, errors.New("render failed")
	}
	return image.NewNRGBA(image.Rect(0, 0, int(scale*10), 6)), nil
}

func (f *fakePage) ExtractText(context.Context, int, document.Rect) (string, error) {
	return f.text, nil
}

func atScale(scale float64) interface{} {
	return mock.MatchedBy(func(img image.Image) bool {
		return img.Bounds().Dx() == int(scale*10)
	})
}

func newTestGenerator(t *testing.T, maxAttempts int, variants ...string) *Generator {
	t.Helper()
	if len(variants) == 0 {
		variants = []string{preprocess.Threshold, preprocess.Otsu}
	}
	built, err := preprocess.Build(preprocess.Options{Variants: variants})
	require.NoError(t, err)

	return NewGenerator(
		header.NewValidator(header.DefaultGrammar()),
		NewSelector(DefaultWeights(), 90, 70),
		built,
		Policy{
			Scales:        []float64{2, 3, 6},
			Segmentations: []ocr.Segmentation{ocr.SegmentSingleLine, ocr.SegmentBlock},
			MaxAttempts:   maxAttempts,
		},
		document.Rect{Width: 100, Height: 15},
	)
}

func TestGenerate_TextLayerShortCircuit(t *testing.T) {
	g := newTestGenerator(t, 16)
	engine := &mocks.MockEngine{}
	page := &fakePage{text: "B-HK-WFE-S17975643"}

	cands, stats := g.Generate(context.Background(), page, 0, Engines{Primary: engine})

	require.Len(t, cands, 1)
	assert.Equal(t, MethodDirect, cands[0].SourceMethod)
	assert.True(t, cands[0].StrictValid)
	assert.Equal(t, 0, stats.Attempts)
	assert.Empty(t, page.renders)
	engine.AssertNotCalled(t, "Recognize", mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerate_EarlyExitOnFirstAttempt(t *testing.T) {
	g := newTestGenerator(t, 16)
	engine := &mocks.MockEngine{}
	engine.On("Recognize", mock.Anything, mock.Anything, mock.Anything).
		Return(ocr.Recognition{Text: "B-HK-WFE-S17975643", Confidence: 91}, nil)

	result := g.Extract(context.Background(), &fakePage{}, 3, Engines{Primary: engine})

	assert.Equal(t, 3, result.PageIndex)
	assert.Equal(t, "B-HK-WFE-S17975643", result.Label())
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 0, result.EscalationLevel)
	assert.Equal(t, "mock/threshold/psm7@2x", result.Winner.SourceMethod)
	engine.AssertNumberOfCalls(t, "Recognize", 1)
}

func TestGenerate_EscalatesUntilStrict(t *testing.T) {
	g := newTestGenerator(t, 16)
	engine := &mocks.MockEngine{}
	engine.On("Recognize", mock.Anything, atScale(2), mock.Anything).Return(ocr.Recognition{Text: "~ ~", Confidence: 10}, nil)
	engine.On("Recognize", mock.Anything, atScale(3), mock.Anything).Return(ocr.Recognition{Text: "B-HK", Confidence: 20}, nil)
	engine.On("Recognize", mock.Anything, atScale(6), mock.Anything).Return(ocr.Recognition{Text: "B-HK-WFE-S17975643", Confidence: 88}, nil)

	page := &fakePage{}
	result := g.Extract(context.Background(), page, 0, Engines{Primary: engine})

	assert.Equal(t, "B-HK-WFE-S17975643", result.Label())
	assert.Equal(t, 2, result.EscalationLevel)
	assert.Equal(t, []float64{2, 3, 6}, page.renders)
	// two variants by two modes at the first two scales, then one hit
	assert.Equal(t, 9, result.Attempts)
}

func TestGenerate_GoodEnoughStopsEscalation(t *testing.T) {
	g := newTestGenerator(t, 16)
	engine := &mocks.MockEngine{}
	engine.On("Recognize", mock.Anything, mock.Anything, mock.Anything).
		Return(ocr.Recognition{Text: "B-HK-WFE-S1797564", Confidence: 70}, nil)

	page := &fakePage{}
	cands, stats := g.Generate(context.Background(), page, 0, Engines{Primary: engine})

	assert.Equal(t, []float64{2}, page.renders)
	assert.Equal(t, 0, stats.EscalationLevel)
	assert.Equal(t, 4, stats.Attempts)
	// identical results across segmentation modes are counted once per variant
	assert.Len(t, cands, 2)
}

func TestGenerate_AttemptCap(t *testing.T) {
	g := newTestGenerator(t, 3)
	engine := &mocks.MockEngine{}
	engine.On("Recognize", mock.Anything, mock.Anything, mock.Anything).
		Return(ocr.Recognition{Text: "??", Confidence: 5}, nil)

	_, stats := g.Generate(context.Background(), &fakePage{}, 0, Engines{Primary: engine})

	assert.Equal(t, 3, stats.Attempts)
	engine.AssertNumberOfCalls(t, "Recognize", 3)
}

func TestGenerate_EngineErrorsAreLocal(t *testing.T) {
	g := newTestGenerator(t, 16)
	engine := &mocks.MockEngine{}
	engine.On("Recognize", mock.Anything, mock.Anything, mock.Anything).
		Return(ocr.Recognition{}, ocr.ErrRecognitionFailed)

	result := g.Extract(context.Background(), &fakePage{}, 0, Engines{Primary: engine})

	assert.Equal(t, "", result.Label())
	assert.Equal(t, 0, result.Winner.Score)
	assert.False(t, result.Winner.StrictValid)
	assert.True(t, result.LowConfidence())
	assert.Equal(t, 12, result.Attempts)
	assert.Equal(t, 12, result.CandidateCount)
}

func TestGenerate_RenderFailureSkipsScale(t *testing.T) {
	g := newTestGenerator(t, 16)
	engine := &mocks.MockEngine{}
	engine.On("Recognize", mock.Anything, atScale(3), mock.Anything).
		Return(ocr.Recognition{Text: "B-E-UUY-R40925274", Confidence: 80}, nil)

	page := &fakePage{failScales: map[float64]bool{2: true}}
	result := g.Extract(context.Background(), page, 0, Engines{Primary: engine})

	assert.Equal(t, "B-E-UUY-R40925274", result.Label())
	assert.Equal(t, 1, result.EscalationLevel)
	assert.Equal(t, 1, result.Attempts)
}

func TestGenerate_FallbackEngine(t *testing.T) {
	g := newTestGenerator(t, 16)
	primary := &mocks.MockEngine{}
	primary.On("Recognize", mock.Anything, mock.Anything, mock.Anything).
		Return(ocr.Recognition{Text: "B-HK-WFE-S17", Confidence: 30}, nil)
	fallback := &mocks.MockEngine{EngineName: "vision"}
	fallback.On("Recognize", mock.Anything, atScale(6), mock.Anything).
		Return(ocr.Recognition{Text: "B-HK-WFE-S17975643", Confidence: 95}, nil).Once()

	result := g.Extract(context.Background(), &fakePage{}, 0, Engines{Primary: primary, Fallback: fallback})

	assert.True(t, result.FallbackUsed)
	assert.Equal(t, "B-HK-WFE-S17975643", result.Label())
	assert.Equal(t, "vision@6x", result.Winner.SourceMethod)
	assert.Equal(t, 13, result.Attempts)
	fallback.AssertExpectations(t)
}

func TestGenerate_FallbackSkippedWhenSatisfied(t *testing.T) {
	g := newTestGenerator(t, 16)
	primary := &mocks.MockEngine{}
	primary.On("Recognize", mock.Anything, mock.Anything, mock.Anything).
		Return(ocr.Recognition{Text: "B-HK-WFE-S17975643", Confidence: 90}, nil)
	fallback := &mocks.MockEngine{EngineName: "vision"}

	result := g.Extract(context.Background(), &fakePage{}, 0, Engines{Primary: primary, Fallback: fallback})

	assert.False(t, result.FallbackUsed)
	fallback.AssertNotCalled(t, "Recognize", mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerate_CanceledContext(t *testing.T) {
	g := newTestGenerator(t, 16)
	engine := &mocks.MockEngine{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cands, stats := g.Generate(ctx, &fakePage{}, 0, Engines{Primary: engine})

	assert.Empty(t, cands)
	assert.Equal(t, 0, stats.Attempts)
	engine.AssertNotCalled(t, "Recognize", mock.Anything, mock.Anything, mock.Anything)
}
