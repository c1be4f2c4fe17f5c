package events

import (
	"encoding/json"
	"time"
)

// Action identifies the kind of expense mutation an event describes.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// ExpenseEvent is the lightweight message published on every expense
// mutation. The worker fetches the full record from storage by ID, so the
// event only carries what a consumer needs to route it.
type ExpenseEvent struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Action    Action    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// NewExpenseEvent creates an event for an expense mutation.
func NewExpenseEvent(id, userID int64, action Action) *ExpenseEvent {
	return &ExpenseEvent{
		ID:        id,
		UserID:    userID,
		Action:    action,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ExpenseEventFromJSON creates an event from JSON bytes
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var ev ExpenseEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
