package outbox

import "context"

// Event is a purchase outcome or any other notification keyed by name.
type Event interface {
	EventName() string
}

// Handler reacts to one delivered event. Returned errors are recorded, not retried.
type Handler func(ctx context.Context, e Event) error

// Publisher hands events off without waiting for subscribers to run.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type Subscriber interface {
	Subscribe(eventName string, h Handler)
}

// Bus is a process-local broker that is both Publisher and Subscriber.
type Bus interface {
	Publisher
	Subscriber
	Start(ctx context.Context)
	Stop(ctx context.Context)
}
