package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType names what happened to a loan.
type EventType string

const (
	LoanCreated EventType = "loan.created"
	LoanUpdated EventType = "loan.updated"
	LoanDeleted EventType = "loan.deleted"
)

// IsValid reports whether t is a known event type.
func (t EventType) IsValid() bool {
	switch t {
	case LoanCreated, LoanUpdated, LoanDeleted:
		return true
	}
	return false
}

// LoanEventMessage announces a change to the loan portfolio. It carries only
// the loan ID; consumers reload the portfolio from storage.
type LoanEventMessage struct {
	Type      EventType `json:"type"`
	LoanID    string    `json:"loan_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLoanEventMessage(t EventType, loanID string) *LoanEventMessage {
	return &LoanEventMessage{
		Type:      t,
		LoanID:    loanID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LoanEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LoanEventMessageFromJSON decodes and validates a message.
func LoanEventMessageFromJSON(data []byte) (*LoanEventMessage, error) {
	var msg LoanEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Type.IsValid() {
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	if msg.LoanID == "" {
		return nil, fmt.Errorf("missing loan_id")
	}
	return &msg, nil
}
