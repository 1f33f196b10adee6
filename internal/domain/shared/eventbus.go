package shared

import "context"

// EventHandler consumes ledger events released from the outbox. Handlers
// may see an event more than once and must tolerate redelivery.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes lists the wanted types; nil means every type
	EventTypes() []string
}

// EventPublisher delivers events to the subscribed handlers
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventBus is the in-process fan-out between the outbox processor and the
// handlers (the Kafka forwarder among them)
type EventBus interface {
	EventPublisher
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
