package document

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var headerBand = Rect{Top: 0, Left: 0, Width: 100, Height: 15}

func TestRectValidate(t *testing.T) {
	assert.NoError(t, headerBand.Validate())
	assert.Error(t, Rect{Top: 90, Width: 100, Height: 15}.Validate())
	assert.Error(t, Rect{Width: 0, Height: 10}.Validate())
	assert.Error(t, Rect{Left: -1, Width: 50, Height: 10}.Validate())
}

func TestRectPixels(t *testing.T) {
	assert.Equal(t, image.Rect(0, 0, 1000, 150), headerBand.Pixels(1000, 1000))

	r := Rect{Top: 10, Left: 50, Width: 50, Height: 10}
	assert.Equal(t, image.Rect(100, 20, 200, 40), r.Pixels(200, 200))

	// never collapses to an empty rectangle
	tiny := Rect{Width: 0.01, Height: 0.01}
	assert.False(t, tiny.Pixels(10, 10).Empty())
}

func TestPopplerArgs(t *testing.T) {
	args := popplerArgs(2, 144, headerBand, 595, 842)
	assert.Equal(t, []string{
		"-f", "3", "-l", "3", "-r", "144", "-png", "-singlefile",
		"-x", "0", "-y", "0", "-W", "1190", "-H", "252",
	}, args)

	full := popplerArgs(0, 72, headerBand, 0, 0)
	assert.Equal(t, []string{"-f", "1", "-l", "1", "-r", "72", "-png", "-singlefile"}, full)
}

func TestPageSelection(t *testing.T) {
	assert.Equal(t, "1", pageSelection(0, 0))
	assert.Equal(t, "4-8", pageSelection(3, 7))
}

func TestTextInRegion(t *testing.T) {
	// A4 page, header line near the top, body text further down
	texts := []pdf.Text{
		{S: "WFE-S17975643", X: 120, Y: 800, W: 60, FontSize: 10},
		{S: "B-HK-", X: 90, Y: 800, W: 25, FontSize: 10},
		{S: "Invoice", X: 90, Y: 400, W: 30, FontSize: 10},
		{S: "page 1", X: 500, Y: 801, W: 20, FontSize: 10},
	}

	got := textInRegion(texts, headerBand, 595, 842)
	assert.Equal(t, "B-HK- WFE-S17975643 page 1", got)

	narrow := Rect{Top: 0, Left: 0, Width: 50, Height: 15}
	assert.Equal(t, "B-HK- WFE-S17975643", textInRegion(texts, narrow, 595, 842))

	assert.Equal(t, "", textInRegion(texts, Rect{Top: 80, Width: 100, Height: 10}, 595, 842))
}

func TestTextInRegion_JoinsAdjacentGlyphs(t *testing.T) {
	texts := []pdf.Text{
		{S: "B", X: 90, Y: 800, W: 6, FontSize: 10},
		{S: "-", X: 96, Y: 800, W: 3, FontSize: 10},
		{S: "E", X: 99, Y: 800, W: 6, FontSize: 10},
	}
	assert.Equal(t, "B-E", textInRegion(texts, headerBand, 595, 842))
}

func TestOpen_RejectsNonPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.pdf")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))

	_, err := Open(context.Background(), path, Options{})
	assert.True(t, errors.Is(err, ErrInvalidDocument))
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"), Options{})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
