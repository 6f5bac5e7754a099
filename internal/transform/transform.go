// Package transform normalises source emote images onto a fixed-size
// bordered canvas before upload.
package transform

import (
	"context"
	"mime"
	"net/http"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/errors"
)

const (
	// ContentSize is the side of the square area the source is fitted into.
	ContentSize = 128
	// BorderSize is the black margin on every side of the content area.
	BorderSize = 16
	// CanvasSize is the side of the output image.
	CanvasSize = ContentSize + 2*BorderSize
)

// Format is an image container format.
type Format int

const (
	// PNG is the static raster format.
	PNG Format = iota + 1
	// GIF is the animated format.
	GIF
)

func (f Format) String() string {
	switch f {
	case PNG:
		return "png"
	case GIF:
		return "gif"
	default:
		return "unknown"
	}
}

// Extension returns the file extension used when uploading the format.
func (f Format) Extension() string {
	return "." + f.String()
}

// FormatFromContentType maps a recorded Content-Type to a Format.
func FormatFromContentType(contentType string) (Format, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.ToLower(contentType))
	}
	switch mediaType {
	case "image/png":
		return PNG, nil
	case "image/gif":
		return GIF, nil
	default:
		return 0, apperrors.Newf(apperrors.ErrUnsupportedMediaType, http.StatusUnsupportedMediaType,
			"content type %q", contentType)
	}
}

// Transformer converts source bytes into the normalised canvas, keeping the
// container format. Implementations must be deterministic.
type Transformer interface {
	Transform(ctx context.Context, data []byte, format Format) ([]byte, error)
}

func unsupported(format Format) error {
	return apperrors.Newf(apperrors.ErrUnsupportedFormat, http.StatusUnsupportedMediaType,
		"%s transform is not implemented", format)
}
