package queue

import "context"

// Client sends job messages to the processing queue. A nil Client in the
// wiring means jobs run in-process instead.
type Client interface {
	Send(ctx context.Context, m Message) error
}
