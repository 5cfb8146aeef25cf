package queue

import "context"

// Job handles every message of one type.
//
// Handle receives the payload as json.RawMessage when it arrived from Redis. Returning an
// error schedules a retry with backoff until RetryLimit; after that the message goes to
// the dead letter list.
type Job interface {
	Name() string
	Type() string
	Handle(ctx context.Context, payload interface{}) error
}
