package queue

import "context"

// Job defines a queue job handler.
type Job interface {
	// Name identifies the job in logs.
	Name() string

	// Type is the message type the job handles.
	Type() string

	// Handle processes one payload. A returned error triggers a retry.
	Handle(ctx context.Context, payload interface{}) error
}
