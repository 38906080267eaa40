package amqp

import (
	"encoding/json"
	"time"
)

// CategoryUpdatedMessage announces that a transaction's category changed.
// It carries identifiers only; consumers fetch the full transaction from
// the repository so they always see the latest write.
type CategoryUpdatedMessage struct {
	TransactionID string    `json:"transaction_id"`
	OwnerID       string    `json:"owner_id"`
	Category      string    `json:"category"` // empty when the category was cleared
	Timestamp     time.Time `json:"timestamp"`
}

// NewCategoryUpdatedMessage creates an event for the given update.
func NewCategoryUpdatedMessage(transactionID, ownerID, category string) *CategoryUpdatedMessage {
	return &CategoryUpdatedMessage{
		TransactionID: transactionID,
		OwnerID:       ownerID,
		Category:      category,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *CategoryUpdatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// CategoryUpdatedMessageFromJSON creates a message from JSON bytes
func CategoryUpdatedMessageFromJSON(data []byte) (*CategoryUpdatedMessage, error) {
	var msg CategoryUpdatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
