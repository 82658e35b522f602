package broadcast

import (
	"context"

	"github.com/udenfc/super11/internal/domain/competition"
	"github.com/udenfc/super11/internal/usecase"
)

// Fanout forwards one publish call to several publishers.
type Fanout []usecase.Publisher

func (f Fanout) Publish(ctx context.Context, topic string, comp competition.Competition) {
	for _, target := range f {
		if target != nil {
			target.Publish(ctx, topic, comp)
		}
	}
}
