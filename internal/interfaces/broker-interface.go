package interfaces

import "context"

type ConsumerHandler interface {
	HandleMessage(message string) error
}

type ProducerHandler interface {
	PublishMessage(key, value []byte) error
}

// Listener is a running event subscription.
type Listener interface {
	Listen(ctx context.Context) error
	Close() error
}
