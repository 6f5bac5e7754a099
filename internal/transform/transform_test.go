package transform

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var red = color.NRGBA{R: 255, A: 255}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func decodeNRGBA(t *testing.T, data []byte) *image.NRGBA {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	out := image.NewNRGBA(img.Bounds())
	for y := img.Bounds().Min.Y; y < img.Bounds().Max.Y; y++ {
		for x := img.Bounds().Min.X; x < img.Bounds().Max.X; x++ {
			out.Set(x, y, img.At(x, y))
		}
	}
	return out
}

func isOpaqueBlack(c color.NRGBA) bool {
	return c == color.NRGBA{A: 255}
}

func TestRenderGeometryWideSource(t *testing.T) {
	out := Render(solid(64, 32, red))

	require.Equal(t, image.Rect(0, 0, 160, 160), out.Bounds())
	for y := 0; y < CanvasSize; y++ {
		for x := 0; x < CanvasSize; x++ {
			c := out.NRGBAAt(x, y)
			inBorder := x < BorderSize || y < BorderSize || x >= CanvasSize-BorderSize || y >= CanvasSize-BorderSize
			if inBorder {
				require.True(t, isOpaqueBlack(c), "border pixel (%d,%d) = %v", x, y, c)
				continue
			}
			// 64x32 fits as 128x64, centred vertically: rows 48..111.
			wantRed := y >= 48 && y < 112
			if wantRed {
				require.Equal(t, red, c, "content pixel (%d,%d)", x, y)
			} else {
				require.True(t, isOpaqueBlack(c), "letterbox pixel (%d,%d) = %v", x, y, c)
			}
		}
	}
}

func TestRenderGeometryTallSource(t *testing.T) {
	out := Render(solid(32, 64, red))

	assert.True(t, isOpaqueBlack(out.NRGBAAt(47, 80)))
	assert.Equal(t, red, out.NRGBAAt(48, 80))
	assert.Equal(t, red, out.NRGBAAt(111, 80))
	assert.True(t, isOpaqueBlack(out.NRGBAAt(112, 80)))
	assert.Equal(t, red, out.NRGBAAt(80, 16))
	assert.Equal(t, red, out.NRGBAAt(80, 143))
}

func TestRenderNearestNeighbourMapping(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	tl := color.NRGBA{R: 10, G: 20, B: 30, A: 255}
	tr := color.NRGBA{R: 40, G: 50, B: 60, A: 255}
	bl := color.NRGBA{R: 70, G: 80, B: 90, A: 255}
	br := color.NRGBA{R: 100, G: 110, B: 120, A: 255}
	src.SetNRGBA(0, 0, tl)
	src.SetNRGBA(1, 0, tr)
	src.SetNRGBA(0, 1, bl)
	src.SetNRGBA(1, 1, br)

	out := Render(src)

	assert.Equal(t, tl, out.NRGBAAt(16, 16))
	assert.Equal(t, tl, out.NRGBAAt(79, 79))
	assert.Equal(t, tr, out.NRGBAAt(80, 16))
	assert.Equal(t, bl, out.NRGBAAt(16, 80))
	assert.Equal(t, br, out.NRGBAAt(143, 143))
}

func TestRenderHandlesOffsetBounds(t *testing.T) {
	src := solid(40, 40, red).SubImage(image.Rect(10, 10, 30, 20)).(*image.NRGBA)
	out := Render(src)
	// 20x10 behaves like the wide case: rows 48..111 carry content.
	assert.Equal(t, red, out.NRGBAAt(80, 48))
	assert.True(t, isOpaqueBlack(out.NRGBAAt(80, 47)))
}

func TestPremultiply(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 200, G: 100, B: 50, A: 0})
	src.SetNRGBA(1, 0, color.NRGBA{R: 200, G: 100, B: 50, A: 128})
	src.SetNRGBA(2, 0, color.NRGBA{R: 200, G: 100, B: 50, A: 255})

	out := premultiply(src)

	assert.Equal(t, color.NRGBA{R: 0, G: 0, B: 0, A: 255}, out.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{R: 100, G: 50, B: 25, A: 255}, out.NRGBAAt(1, 0))
	assert.Equal(t, color.NRGBA{R: 200, G: 100, B: 50, A: 255}, out.NRGBAAt(2, 0))
}

func TestTransformTransparentSourceIsBlack(t *testing.T) {
	data := encodePNG(t, solid(16, 16, color.NRGBA{R: 255, G: 255, B: 255, A: 0}))

	out, err := NewPixel().Transform(context.Background(), data, PNG)
	require.NoError(t, err)

	img := decodeNRGBA(t, out)
	assert.True(t, isOpaqueBlack(img.NRGBAAt(80, 80)))
}

func TestTransformIsDeterministic(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 37, 23))
	for y := 0; y < 23; y++ {
		for x := 0; x < 37; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 11), B: uint8(x ^ y), A: uint8(x*y + 40)})
		}
	}
	data := encodePNG(t, src)
	p := NewPixel()

	first, err := p.Transform(context.Background(), data, PNG)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := NewPixel().Transform(context.Background(), data, PNG)
		require.NoError(t, err)
		require.True(t, bytes.Equal(first, again))
	}

	img := decodeNRGBA(t, first)
	assert.Equal(t, image.Rect(0, 0, CanvasSize, CanvasSize), img.Bounds())
}

func TestTransformAnimatedIsUnsupported(t *testing.T) {
	_, err := NewPixel().Transform(context.Background(), []byte("GIF89a"), GIF)
	require.ErrorIs(t, err, apperrors.ErrUnsupportedFormat)
}

func TestTransformRejectsCorruptPNG(t *testing.T) {
	_, err := NewPixel().Transform(context.Background(), []byte("not a png"), PNG)
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestFormatFromContentType(t *testing.T) {
	cases := []struct {
		contentType string
		want        Format
	}{
		{"image/png", PNG},
		{"IMAGE/PNG", PNG},
		{"image/png; charset=binary", PNG},
		{"image/gif", GIF},
	}
	for _, tc := range cases {
		got, err := FormatFromContentType(tc.contentType)
		require.NoError(t, err, tc.contentType)
		assert.Equal(t, tc.want, got, tc.contentType)
	}

	for _, ct := range []string{"image/webp", "application/octet-stream", ""} {
		_, err := FormatFromContentType(ct)
		require.ErrorIs(t, err, apperrors.ErrUnsupportedMediaType, ct)
	}
}

func TestFloorDiv(t *testing.T) {
	assert.Equal(t, -1, floorDiv(-64, 128))
	assert.Equal(t, -1, floorDiv(-128, 128))
	assert.Equal(t, -2, floorDiv(-129, 128))
	assert.Equal(t, 0, floorDiv(0, 128))
	assert.Equal(t, 0, floorDiv(127, 128))
}
