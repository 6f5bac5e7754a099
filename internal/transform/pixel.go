package transform

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"

	apperrors "github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/errors"
)

// Pixel is the in-process transformer. It is a pure function of its input:
// identical bytes always produce identical output.
type Pixel struct {
	encoder png.Encoder
}

func NewPixel() *Pixel {
	return &Pixel{encoder: png.Encoder{CompressionLevel: png.DefaultCompression}}
}

func (p *Pixel) Transform(_ context.Context, data []byte, format Format) ([]byte, error) {
	switch format {
	case PNG:
		src, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusUnprocessableEntity, "decoding png: %v", err)
		}
		var buf bytes.Buffer
		if err := p.encoder.Encode(&buf, Render(src)); err != nil {
			return nil, fmt.Errorf("encoding png: %w", err)
		}
		return buf.Bytes(), nil
	default:
		// Animated GIF frames are not re-rendered yet.
		return nil, unsupported(format)
	}
}

// Render bakes alpha into a black backdrop and fits src, centred and
// letterboxed, into a CanvasSize square with a BorderSize black margin.
func Render(src image.Image) *image.NRGBA {
	pixels := premultiply(src)
	w, h := pixels.Rect.Dx(), pixels.Rect.Dy()
	side, offX, offY := squareCrop(w, h)

	dst := image.NewNRGBA(image.Rect(0, 0, CanvasSize, CanvasSize))
	for dy := 0; dy < CanvasSize; dy++ {
		sy := floorDiv((dy-BorderSize)*side, ContentSize) - offY
		for dx := 0; dx < CanvasSize; dx++ {
			sx := floorDiv((dx-BorderSize)*side, ContentSize) - offX
			d := dst.PixOffset(dx, dy)
			if side == 0 || sx < 0 || sy < 0 || sx >= w || sy >= h {
				copy(dst.Pix[d:d+4], opaqueBlack)
				continue
			}
			s := pixels.PixOffset(sx, sy)
			copy(dst.Pix[d:d+4], pixels.Pix[s:s+4])
		}
	}
	return dst
}

var opaqueBlack = []byte{0, 0, 0, 0xff}

// premultiply returns an 8-bit copy of src anchored at the origin with every
// colour channel scaled by alpha (c*a/255) and alpha forced to 255.
func premultiply(src image.Image) *image.NRGBA {
	b := src.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			a := uint32(c.A)
			i := out.PixOffset(x, y)
			out.Pix[i+0] = uint8(uint32(c.R) * a / 255)
			out.Pix[i+1] = uint8(uint32(c.G) * a / 255)
			out.Pix[i+2] = uint8(uint32(c.B) * a / 255)
			out.Pix[i+3] = 0xff
		}
	}
	return out
}

// squareCrop returns the side of the square covering the longer dimension
// and the offsets that centre the shorter one inside it.
func squareCrop(w, h int) (side, offX, offY int) {
	if w >= h {
		return w, 0, (w - h) / 2
	}
	return h, (h - w) / 2, 0
}

// floorDiv is integer division rounding towards negative infinity; b > 0.
func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && a < 0 {
		q--
	}
	return q
}
