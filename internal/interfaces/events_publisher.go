package interfaces

import "context"

// EventPublisher ships a notification to an external stream.
//
//go:generate mockgen -destination=mocks/mock_events_publisher.go -package=mocks -source=events_publisher.go EventPublisher
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}
