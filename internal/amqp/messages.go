package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Action tells the worker what to do with the referenced transaction.
type Action string

const (
	ActionSync   Action = "sync"
	ActionDelete Action = "delete"
)

// TransactionEvent is a lightweight notification carrying only the
// transaction ID; the worker reads the current row from the database.
type TransactionEvent struct {
	Action    Action    `json:"action"`
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionEvent(action Action, id int64) *TransactionEvent {
	return &TransactionEvent{
		Action:    action,
		ID:        id,
		Timestamp: time.Now(),
	}
}

func (m *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionEventFromJSON decodes and validates a queue payload.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var msg TransactionEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID <= 0 {
		return nil, fmt.Errorf("invalid transaction id %d", msg.ID)
	}
	switch msg.Action {
	case ActionSync, ActionDelete:
	case "":
		msg.Action = ActionSync
	default:
		return nil, fmt.Errorf("unknown action %q", msg.Action)
	}
	return &msg, nil
}
