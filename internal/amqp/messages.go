package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// LedgerChangeMessage announces one committed ledger write. It carries only
// identifiers; consumers read the record itself from their own copy.
type LedgerChangeMessage struct {
	Kind      string    `json:"kind"`
	Op        string    `json:"op"`
	ID        int64     `json:"id,omitempty"`
	Name      string    `json:"name,omitempty"` // category changes
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerChangeMessage stamps a change message with the current time.
func NewLedgerChangeMessage(kind, op string, id int64, name string) *LedgerChangeMessage {
	return &LedgerChangeMessage{
		Kind:      kind,
		Op:        op,
		ID:        id,
		Name:      name,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangeMessageFromJSON parses a message and rejects ones without a kind or op.
func LedgerChangeMessageFromJSON(data []byte) (*LedgerChangeMessage, error) {
	var msg LedgerChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Kind == "" || msg.Op == "" {
		return nil, errors.New("ledger change message missing kind or op")
	}
	return &msg, nil
}
