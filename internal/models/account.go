package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Account struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"userId" db:"user_id"`
	Currency  string          `json:"currency" db:"currency"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	Version   int             `json:"-" db:"version"` // for optimistic locking
	UpdatedAt time.Time       `json:"updatedAt" db:"updated_at"`
}
