package outbox

import "context"

// Event is any domain event with a name identifier.
type Event interface {
	EventName() string
}

// Handler processes a published event. Returning an error marks the delivery
// failed; the bus does not retry.
type Handler func(ctx context.Context, e Event) error

// Publisher hands events to interested subscribers. Settlement publishes
// order.settled, order.stock_depleted and payment.intent_orphaned through
// this port so compensation stays decoupled from the checkout path.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Subscriber registers handlers for event names.
type Subscriber interface {
	Subscribe(eventName string, h Handler)
}
