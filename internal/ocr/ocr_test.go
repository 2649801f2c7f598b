package ocr

import (
	"errors"
	"image"
	"testing"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/status"
)

func TestExpandCharset(t *testing.T) {
	assert.Equal(t, "ABCXYZ", ExpandCharset("A-CX-Z"))
	assert.Equal(t, "0123456789-", ExpandCharset("0-9-"))
	assert.Equal(t, "-AB", ExpandCharset("-AB"))
	assert.Len(t, ExpandCharset("A-Z0-9-"), 37)
}

func TestEncodePNG(t *testing.T) {
	_, err := EncodePNG(image.NewNRGBA(image.Rect(0, 0, 0, 0)))
	assert.True(t, errors.Is(err, ErrEmptyImage))

	data, err := EncodePNG(image.NewNRGBA(image.Rect(0, 0, 4, 4)))
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(data[:4]))
}

func TestVisionRecognition(t *testing.T) {
	resp := &visionpb.AnnotateImageResponse{
		FullTextAnnotation: &visionpb.TextAnnotation{
			Text:  "B-HK-WFE-S17975643\n",
			Pages: []*visionpb.Page{{Confidence: 0.9}, {Confidence: 0.7}},
		},
	}
	rec, err := visionRecognition(resp)
	require.NoError(t, err)
	assert.Equal(t, "B-HK-WFE-S17975643", rec.Text)
	assert.InDelta(t, 80, rec.Confidence, 0.01)

	_, err = visionRecognition(&visionpb.AnnotateImageResponse{Error: &status.Status{Message: "quota"}})
	assert.True(t, errors.Is(err, ErrRecognitionFailed))

	rec, err = visionRecognition(&visionpb.AnnotateImageResponse{
		TextAnnotations: []*visionpb.EntityAnnotation{{Description: "B-E-UUY-R4092527"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "B-E-UUY-R4092527", rec.Text)
	assert.Equal(t, 50.0, rec.Confidence)
}

func TestDocumentRecognition(t *testing.T) {
	doc := &documentaipb.Document{
		Text: " B-E-UUY-R4092527 ",
		Pages: []*documentaipb.Document_Page{
			{Layout: &documentaipb.Document_Page_Layout{Confidence: 0.5}},
		},
	}
	rec := documentRecognition(doc)
	assert.Equal(t, "B-E-UUY-R4092527", rec.Text)
	assert.InDelta(t, 50, rec.Confidence, 0.01)
}

func TestCloudFactory(t *testing.T) {
	factory, err := CloudFactory("", CloudSettings{})
	require.NoError(t, err)
	assert.Nil(t, factory)

	factory, err = CloudFactory(EngineVision, CloudSettings{})
	require.NoError(t, err)
	assert.NotNil(t, factory)

	_, err = CloudFactory("abbyy", CloudSettings{})
	assert.True(t, errors.Is(err, ErrUnknownEngine))
}

func TestWrapOCRError(t *testing.T) {
	assert.Nil(t, WrapOCRError("op", nil, ""))

	err := WrapOCRError("inner", ErrRecognitionFailed, "first")
	again := WrapOCRError("outer", err, "second")
	assert.Same(t, err, again)
	assert.True(t, errors.Is(again, ErrRecognitionFailed))
	assert.Equal(t, "ocr: inner failed: first: text recognition failed", again.Error())
}
