package attachment

import (
	"context"

	"github.com/at-ishikawa/labloom/internal/encoder"
)

//go:generate mockgen -source=encoder.go -destination=../mocks/attachment/mock_encoder.go -package=mock_attachment

// ImageEncoder fits an image into a byte budget.
type ImageEncoder interface {
	Encode(ctx context.Context, src encoder.Source, targetMaxBytes int64, c encoder.Constraints) (encoder.Result, error)
}
