package events

import (
	"context"
	"sync"
)

// Recorder keeps published messages in memory. Used in tests and when no
// broker is configured in development.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	// Err, when set, is returned from every Publish.
	Err error
}

func (r *Recorder) Publish(_ context.Context, subject string, msg any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.messages = append(r.messages, Message{Subject: subject, Payload: msg})
	return nil
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Subjects returns the subjects of recorded messages, in order.
func (r *Recorder) Subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	subjects := make([]string, len(r.messages))
	for i, m := range r.messages {
		subjects[i] = m.Subject
	}
	return subjects
}
