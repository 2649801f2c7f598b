package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/rs/zerolog"

	"docsplit/internal/logger"
)

// VisionOptions configures the Cloud Vision engine.
type VisionOptions struct {
	LanguageHints []string
	Timeout       time.Duration
}

// VisionEngine recognizes header regions with Google Cloud Vision text detection.
type VisionEngine struct {
	client *vision.ImageAnnotatorClient
	opts   VisionOptions
	log    zerolog.Logger
}

// NewVisionEngine creates an engine with credentials from environment.
func NewVisionEngine(ctx context.Context, opts VisionOptions) (*VisionEngine, error) {
	const op = "NewVisionEngine"

	clientOptions := credentialOptions()
	client, err := vision.NewImageAnnotatorClient(ctx, clientOptions...)
	if err != nil {
		if len(clientOptions) == 0 {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, "failed to create Vision client")
	}
	return NewVisionEngineWithClient(client, opts), nil
}

// NewVisionEngineWithClient creates an engine with an explicit client (for testing).
func NewVisionEngineWithClient(client *vision.ImageAnnotatorClient, opts VisionOptions) *VisionEngine {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &VisionEngine{
		client: client,
		opts:   opts,
		log:    logger.WithComponent("vision"),
	}
}

// Name implements Engine.
func (e *VisionEngine) Name() string { return "vision" }

// Recognize implements Engine. The segmentation mode is ignored.
func (e *VisionEngine) Recognize(ctx context.Context, img image.Image, _ Segmentation) (Recognition, error) {
	const op = "VisionRecognize"

	if ctx.Err() != nil {
		return Recognition{}, NewOCRError(op, ErrContextCanceled, ctx.Err().Error())
	}
	content, err := EncodePNG(img)
	if err != nil {
		return Recognition{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: content},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_TEXT_DETECTION},
				},
				ImageContext: &visionpb.ImageContext{LanguageHints: e.opts.LanguageHints},
			},
		},
	}

	resp, err := e.client.BatchAnnotateImages(callCtx, req)
	if err != nil {
		return Recognition{}, WrapOCRError(op, ErrRecognitionFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.Responses) == 0 {
		return Recognition{}, WrapOCRError(op, ErrRecognitionFailed, "no response from Vision API")
	}

	rec, err := visionRecognition(resp.Responses[0])
	if err != nil {
		return Recognition{}, WrapOCRError(op, err, "failed to process Vision API response")
	}

	e.log.Debug().
		Str("text", rec.Text).
		Float64("confidence", rec.Confidence).
		Msg("Vision recognition completed")
	return rec, nil
}

// visionRecognition extracts text and average page confidence from a response.
func visionRecognition(resp *visionpb.AnnotateImageResponse) (Recognition, error) {
	if resp.Error != nil {
		return Recognition{}, fmt.Errorf("%w: %s", ErrRecognitionFailed, resp.Error.Message)
	}

	var text string
	var confidenceSum float32
	var confidenceCount int
	if full := resp.FullTextAnnotation; full != nil {
		text = full.Text
		for _, page := range full.Pages {
			if page.Confidence > 0 {
				confidenceSum += page.Confidence
				confidenceCount++
			}
		}
	}
	if text == "" && len(resp.TextAnnotations) > 0 {
		text = resp.TextAnnotations[0].Description
	}

	rec := Recognition{Text: strings.TrimSpace(text)}
	if confidenceCount > 0 {
		rec.Confidence = float64(confidenceSum/float32(confidenceCount)) * 100
	} else if rec.Text != "" {
		// text detection without document pages carries no score
		rec.Confidence = 50
	}
	return rec, nil
}

// Close closes the underlying Vision client.
func (e *VisionEngine) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}
