package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	StatusCompleted           TransactionStatus = "COMPLETED"
	StatusPendingVerification TransactionStatus = "PENDING_VERIFICATION"
	StatusFailed              TransactionStatus = "FAILED"
	StatusRejected            TransactionStatus = "REJECTED"
)

// Transaction is a ledger row. Amount is signed: outflows are negative.
type Transaction struct {
	ID          string            `json:"id" db:"id"`
	AccountID   string            `json:"accountId" db:"account_id"`
	Amount      decimal.Decimal   `json:"amount" db:"amount"`
	Currency    string            `json:"currency" db:"currency"`
	Status      TransactionStatus `json:"status" db:"status"`
	Category    string            `json:"category" db:"category"`
	Description string            `json:"description" db:"description"`
	Reference   string            `json:"reference,omitempty" db:"reference"`
	CreatedAt   time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time         `json:"updatedAt" db:"updated_at"`
}
