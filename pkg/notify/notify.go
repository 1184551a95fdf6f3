// Package notify publishes committed ledger changes to downstream consumers.
package notify

import (
	"context"
	"time"

	"github.com/chris/loyalty-ledger/pkg/models"
)

// Publisher defines the interface for publishing ledger notifications.
type Publisher interface {
	Publish(ctx context.Context, message Message) error
}

// MessageType defines the type of a notification message.
type MessageType string

const (
	// MessageTypeBalanceUpdate is sent after every committed operation.
	MessageTypeBalanceUpdate MessageType = "balanceUpdate"
)

// Message represents a generic notification message.
type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

// BalanceUpdatePayload is the payload for a balanceUpdate message.
type BalanceUpdatePayload struct {
	AccountID   string    `json:"accountId"`
	EventID     string    `json:"eventId"`
	OperationID string    `json:"operationId"`
	Change      int64     `json:"change"`
	NewBalance  int64     `json:"newBalance"`
	Ts          time.Time `json:"ts"`
}

// NewBalanceUpdate builds the message for a committed operation.
func NewBalanceUpdate(res *models.OperationResult) Message {
	return Message{
		Type: MessageTypeBalanceUpdate,
		Payload: BalanceUpdatePayload{
			AccountID:   res.Event.AccountID,
			EventID:     res.Event.ID,
			OperationID: res.OperationID,
			Change:      res.Event.DeltaPoints,
			NewBalance:  res.Balance.BalancePoints,
			Ts:          res.Event.Ts,
		},
	}
}

// partitionKey keeps every message of one account on one partition / group.
func partitionKey(message Message) string {
	if p, ok := message.Payload.(BalanceUpdatePayload); ok {
		return p.AccountID
	}
	return string(message.Type)
}

// NoOpPublisher is a publisher that does nothing.
type NoOpPublisher struct{}

// Publish does nothing.
func (p *NoOpPublisher) Publish(ctx context.Context, message Message) error {
	return nil
}
