package amqp

import (
	"encoding/json"
	"time"
)

const (
	EntityPurchase = "purchase"
	EntityPayment  = "payment"
	EntityMovement = "cash_movement"

	ActionCreated = "created"
	ActionDeleted = "deleted"
)

// LedgerEvent is a lightweight message describing a write to the
// transaction store. Consumers fetch whatever they need from the database;
// the event only carries enough to know which account's statements are
// stale.
type LedgerEvent struct {
	Entity    string    `json:"entity"`
	Action    string    `json:"action"`
	AccountID string    `json:"account_id"`
	EntityID  string    `json:"entity_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerEvent creates an event for a single store write.
func NewLedgerEvent(entity, action, accountID, entityID string) *LedgerEvent {
	return &LedgerEvent{
		Entity:    entity,
		Action:    action,
		AccountID: accountID,
		EntityID:  entityID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON creates an event from JSON bytes
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// AlertEvent is a notification for the delivery collaborators (bot,
// dashboard). Amounts are in cents; Utilization is nil for accounts
// without a credit limit.
type AlertEvent struct {
	Kind             string    `json:"kind"`
	AccountID        string    `json:"account_id"`
	Date             string    `json:"date"`
	DaysLeft         int       `json:"days_left"`
	OutstandingCents int64     `json:"outstanding_cents"`
	MinimumCents     int64     `json:"minimum_cents"`
	Utilization      *float64  `json:"utilization,omitempty"`
	Message          string    `json:"message"`
	Timestamp        time.Time `json:"timestamp"`
}

// ToJSON converts the alert to JSON bytes
func (e *AlertEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// AlertEventFromJSON creates an alert from JSON bytes
func AlertEventFromJSON(data []byte) (*AlertEvent, error) {
	var e AlertEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
