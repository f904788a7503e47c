// internal/transport/loopback.go
package transport

import "context"

// Loopback is an in-process transport pair used in tests and single-node
// pairing. A frame sent on one end arrives at the other.
type Loopback struct {
	in  chan Message
	out chan Message
}

// NewLoopbackPair returns two connected endpoints.
func NewLoopbackPair(buffer int) (*Loopback, *Loopback) {
	a := make(chan Message, buffer)
	b := make(chan Message, buffer)
	return &Loopback{in: a, out: b}, &Loopback{in: b, out: a}
}

func (l *Loopback) Send(ctx context.Context, msg Message) error {
	select {
	case l.out <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loopback) Recv(ctx context.Context) (Message, error) {
	select {
	case msg := <-l.in:
		return msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}
