package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"budget/internal/core"
)

// ChangeMessage announces one committed write. It carries only identifiers;
// consumers read the current state of the entity from the database.
type ChangeMessage struct {
	ID        uuid.UUID      `json:"id"`
	Entity    core.Entity    `json:"entity"`
	Operation core.Operation `json:"operation"`
	EntityID  int64          `json:"entity_id"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewChangeMessage creates a new message for ev with a fresh message id
func NewChangeMessage(ev core.ChangeEvent) *ChangeMessage {
	ts := ev.At
	if ts.IsZero() {
		ts = time.Now()
	}
	return &ChangeMessage{
		ID:        uuid.New(),
		Entity:    ev.Entity,
		Operation: ev.Operation,
		EntityID:  ev.ID,
		Timestamp: ts,
	}
}

// Event converts the message back into a domain event.
func (m *ChangeMessage) Event() core.ChangeEvent {
	return core.ChangeEvent{Entity: m.Entity, Operation: m.Operation, ID: m.EntityID, At: m.Timestamp}
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON decodes and checks a message body.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Entity == "" || msg.Operation == "" {
		return nil, errors.New("change message without entity or operation")
	}
	return &msg, nil
}
