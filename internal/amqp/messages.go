package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// LedgerChangedMessage tells every instance that a user's ledger changed in
// the store. It carries no ledger data; receivers reload from the store.
type LedgerChangedMessage struct {
	UserID    string    `json:"user_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerChangedMessage(userID, reason string) *LedgerChangedMessage {
	return &LedgerChangedMessage{
		UserID:    userID,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangedMessageFromJSON decodes a message and rejects ones without a user.
func LedgerChangedMessageFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID == "" {
		return nil, errors.New("message without user_id")
	}
	return &msg, nil
}
