package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// StatementSyncMessage is a lightweight message announcing a saved billing
// statement. The worker fetches the full statement from the database.
type StatementSyncMessage struct {
	ID        string    `json:"id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewStatementSyncMessage(id string, version int64) *StatementSyncMessage {
	return &StatementSyncMessage{
		ID:        id,
		Version:   version,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *StatementSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// StatementSyncMessageFromJSON decodes and checks a message.
func StatementSyncMessageFromJSON(data []byte) (*StatementSyncMessage, error) {
	var msg StatementSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, errors.New("statement sync message without id")
	}
	return &msg, nil
}
