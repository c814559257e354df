package publisher

import "context"

// Publisher represents a service for publishing pipeline events
type Publisher interface {
	// Publish publishes an event with its JSON payload
	Publish(ctx context.Context, event string, payload []byte) error

	// TrimStreams trims all streams to the configured maximum length
	TrimStreams(ctx context.Context) error

	// Close closes the publisher connection
	Close() error
}

// NopPublisher discards every event
type NopPublisher struct{}

var _ Publisher = NopPublisher{}

func (NopPublisher) Publish(ctx context.Context, event string, payload []byte) error { return nil }

func (NopPublisher) TrimStreams(ctx context.Context) error { return nil }

func (NopPublisher) Close() error { return nil }
