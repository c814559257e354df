package publisher

import (
	"context"
	"encoding/base64"

	"sjsage522/hotelpricesync/pkg/errors"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher implements Publisher using Redis streams
type RedisPublisher struct {
	client          *redis.Client
	streamPrefix    string
	streamMaxLength int
}

var _ Publisher = (*RedisPublisher)(nil)

// NewRedisPublisher creates a new Redis publisher
func NewRedisPublisher(client *redis.Client, streamPrefix string, streamMaxLength int) *RedisPublisher {
	return &RedisPublisher{
		client:          client,
		streamPrefix:    streamPrefix,
		streamMaxLength: streamMaxLength,
	}
}

// Stream returns the name of the events stream
func (p *RedisPublisher) Stream() string {
	return p.streamPrefix + ":events"
}

// Publish appends the event to the events stream.
// The payload is base64 encoded before publishing.
func (p *RedisPublisher) Publish(ctx context.Context, event string, payload []byte) error {
	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.Stream(),
		Values: map[string]interface{}{
			"event":   event,
			"payload": base64.StdEncoding.EncodeToString(payload),
		},
	}).Err()
	if err != nil {
		return errors.NewPublisher("redis", "failed to publish "+event, err)
	}
	return nil
}

// TrimStreams trims all streams to the configured maximum length
func (p *RedisPublisher) TrimStreams(ctx context.Context) error {
	streams, err := p.client.Keys(ctx, p.streamPrefix+":*").Result()
	if err != nil {
		return errors.NewPublisher("redis", "failed to list streams", err)
	}

	for _, stream := range streams {
		if p.client.Type(ctx, stream).Val() != "stream" {
			continue
		}
		if err := p.client.XTrimMaxLen(ctx, stream, int64(p.streamMaxLength)).Err(); err != nil {
			return errors.NewPublisher("redis", "failed to trim "+stream, err)
		}
	}
	return nil
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
