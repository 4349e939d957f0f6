package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// MessageVersion is the payload version written by this build. Decoding
// accepts this version and older.
const MessageVersion = 1

// Client sends messages to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// HandlerFunc processes one message body and reports whether it may be
// acknowledged. Returning false leaves the message for redelivery.
type HandlerFunc func(ctx context.Context, body string) bool

// Message asks a worker to run one queued tailoring.
type Message struct {
	TailoringID string    `json:"tailoringId"`
	RequestID   string    `json:"requestId,omitempty"`
	EnqueuedAt  time.Time `json:"enqueuedAt"`
	Version     int       `json:"version"`
}

// NewMessage stamps a message for tailoringID at the current version.
func NewMessage(tailoringID, requestID string, now time.Time) Message {
	return Message{
		TailoringID: tailoringID,
		RequestID:   requestID,
		EnqueuedAt:  now.UTC(),
		Version:     MessageVersion,
	}
}

// EncodeMessage returns the JSON wire form of msg.
func EncodeMessage(msg Message) ([]byte, error) {
	if msg.Version == 0 {
		msg.Version = MessageVersion
	}
	return json.Marshal(msg)
}

// DecodeMessage parses a payload, rejecting versions newer than this build
// understands so a rolling deploy never half-processes a job.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if msg.Version > MessageVersion {
		return Message{}, fmt.Errorf("unsupported message version %d", msg.Version)
	}
	return msg, nil
}
