package audit

import (
	"encoding/json"
	"log"
	"time"

	"github.com/shopspring/decimal"
)

type Event struct {
	Timestamp     time.Time        `json:"timestamp"`
	EventType     string           `json:"event_type"`
	TransactionID string           `json:"transaction_id,omitempty"`
	AccountID     string           `json:"account_id,omitempty"`
	UserID        string           `json:"user_id,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	Status        string           `json:"status"`
	Details       any              `json:"details,omitempty"`
}

type Logger struct {
	now func() time.Time
}

func NewLogger() *Logger {
	return &Logger{now: time.Now}
}

// LogPayment records a settled or pending bill payment.
func (a *Logger) LogPayment(transactionID, userID, accountID, payeeID string, amount decimal.Decimal, status string) {
	a.log(Event{
		Timestamp:     a.now(),
		EventType:     "BILL_PAYMENT",
		TransactionID: transactionID,
		AccountID:     accountID,
		UserID:        userID,
		Amount:        &amount,
		Status:        status,
		Details:       map[string]string{"payee_id": payeeID},
	})
}

func (a *Logger) LogError(transactionID, accountID string, err error) {
	a.log(Event{
		Timestamp:     a.now(),
		EventType:     "ERROR",
		TransactionID: transactionID,
		AccountID:     accountID,
		Status:        "FAILED",
		Details:       map[string]string{"error": err.Error()},
	})
}

func (a *Logger) LogOperation(transactionID, accountID, operation, details string) {
	a.log(Event{
		Timestamp:     a.now(),
		EventType:     operation,
		TransactionID: transactionID,
		AccountID:     accountID,
		Status:        "SUCCESS",
		Details:       map[string]string{"details": details},
	})
}

func (a *Logger) log(event Event) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
