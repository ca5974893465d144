package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"gigtracker/internal/ports"
)

// GigEventMessage is the wire form of a gig change. It carries identifiers
// only; consumers reload whatever state they need from the store.
type GigEventMessage struct {
	ID        string    `json:"id"`
	GigID     int64     `json:"gig_id"`
	Op        string    `json:"op"`
	Date      string    `json:"date,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewGigEventMessage wraps ev with a fresh message id and timestamp.
func NewGigEventMessage(ev ports.GigEvent) *GigEventMessage {
	return &GigEventMessage{
		ID:        uuid.NewString(),
		GigID:     ev.GigID,
		Op:        string(ev.Op),
		Date:      ev.Date.String(),
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *GigEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// GigEventMessageFromJSON decodes a message and rejects ones without an op.
func GigEventMessageFromJSON(data []byte) (*GigEventMessage, error) {
	var msg GigEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Op == "" {
		return nil, errors.New("gig event message without op")
	}
	return &msg, nil
}
