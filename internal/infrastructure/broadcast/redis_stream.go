package broadcast

import (
	"context"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/udenfc/super11/internal/domain/competition"
	"github.com/udenfc/super11/internal/platform/logging"
)

// StreamPublisher mirrors standings updates onto a redis stream so
// consumers outside this process can pick them up. Errors are logged,
// never propagated: delivery is at-most-once.
type StreamPublisher struct {
	client *redis.Client
	logger *logging.Logger
}

func NewStreamPublisher(redisURL string, logger *logging.Logger) (*StreamPublisher, error) {
	if logger == nil {
		logger = logging.Default()
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, crerr.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, crerr.Wrap(err, "ping redis")
	}

	return &StreamPublisher{client: client, logger: logger}, nil
}

func (p *StreamPublisher) Publish(ctx context.Context, topic string, comp competition.Competition) {
	data, err := sonic.Marshal(comp)
	if err != nil {
		p.logger.WarnContext(ctx, "could not encode competition for stream", "error", err)
		return
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: topic,
		Values: map[string]any{
			"data":      string(data),
			"timestamp": time.Now().Unix(),
		},
	}).Err()
	if err != nil {
		p.logger.WarnContext(ctx, "could not publish competition to stream", "topic", topic, "error", err)
	}
}

func (p *StreamPublisher) Close() error {
	return p.client.Close()
}
