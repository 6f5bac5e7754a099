package ingestion

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/telegram"
)

// Uploader is the platform surface the pipeline publishes through.
// *telegram.Client implements it.
type Uploader interface {
	SendImage(ctx context.Context, up telegram.Upload) (string, error)
	SendAnimation(ctx context.Context, up telegram.Upload) (string, error)
}

// strategy uploads one media kind.
type strategy interface {
	operation() string
	send(ctx context.Context, up telegram.Upload) (string, error)
}

type staticStrategy struct{ uploader Uploader }

func (staticStrategy) operation() string { return "send_photo" }

func (s staticStrategy) send(ctx context.Context, up telegram.Upload) (string, error) {
	return s.uploader.SendImage(ctx, up)
}

type animatedStrategy struct{ uploader Uploader }

func (animatedStrategy) operation() string { return "send_animation" }

func (s animatedStrategy) send(ctx context.Context, up telegram.Upload) (string, error) {
	return s.uploader.SendAnimation(ctx, up)
}

// strategies maps every media kind to its upload strategy.
func strategies(uploader Uploader) map[catalog.MediaKind]strategy {
	return map[catalog.MediaKind]strategy{
		catalog.Static:   staticStrategy{uploader: uploader},
		catalog.Animated: animatedStrategy{uploader: uploader},
	}
}
