package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bilancio/internal/core"
)

// JournalAppendedMessage announces a newly appended transaction. It carries
// only identifiers; consumers reload the journal from the record store.
type JournalAppendedMessage struct {
	ID            string     `json:"id"`
	Serial        int64      `json:"serial"`
	TransactionID string     `json:"transactionId"`
	CurrencyID    string     `json:"currencyId"`
	Epoch         core.Epoch `json:"epoch"`
	Timestamp     time.Time  `json:"timestamp"`
}

func NewJournalAppendedMessage(r core.TransactionRecord) *JournalAppendedMessage {
	return &JournalAppendedMessage{
		ID:            uuid.NewString(),
		Serial:        r.Serial,
		TransactionID: r.ID,
		CurrencyID:    r.CurrencyID,
		Epoch:         r.Epoch,
		Timestamp:     time.Now(),
	}
}

func (m *JournalAppendedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// JournalAppendedMessageFromJSON decodes a message, rejecting payloads
// without a transaction id.
func JournalAppendedMessageFromJSON(data []byte) (*JournalAppendedMessage, error) {
	var msg JournalAppendedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.TransactionID == "" {
		return nil, fmt.Errorf("message %q has no transaction id", msg.ID)
	}
	return &msg, nil
}
