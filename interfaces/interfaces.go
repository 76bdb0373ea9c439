package interfaces

import "context"

// ValueNotifier receives every register reading the relay publishes.
type ValueNotifier interface {
	NotifyValue(v uint32)
}

// MessageHandler handles a text message sent by a connected client; an
// integer frequency or an A/D key.
type MessageHandler interface {
	HandleMessage(ctx context.Context, text string) error
}

// StatusProvider returns a json.Marshal-able snapshot for the status endpoint
// and for newly connected clients.
type StatusProvider interface {
	StatusModel() interface{}
}
