// internal/transport/transport.go
package transport

import (
	"context"
	"encoding/json"
	"time"
)

type MessageType string

const (
	MsgProposal       MessageType = "subscription.proposal"
	MsgAcceptance     MessageType = "subscription.acceptance"
	MsgPaymentRequest MessageType = "payment.request"
)

// Message is one protocol frame exchanged between peers. The wire bytes of
// the underlying encrypted channel are out of scope; this core only sees
// decoded frames.
type Message struct {
	Type    MessageType     `json:"type"`
	From    string          `json:"from"`
	To      string          `json:"to"`
	Payload json.RawMessage `json:"payload"`
	SentAt  time.Time       `json:"sent_at"`
}

// Transport is the already-established encrypted channel to a peer. Send
// failures are not retried here; callers surface them and may resend.
type Transport interface {
	Send(ctx context.Context, msg Message) error
	Recv(ctx context.Context) (Message, error)
}

// NewMessage marshals a payload into a frame.
func NewMessage(msgType MessageType, from, to string, payload any) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Type:    msgType,
		From:    from,
		To:      to,
		Payload: raw,
		SentAt:  time.Now(),
	}, nil
}
