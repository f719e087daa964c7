package models

import "time"

// BillPayee is read-only while a payment is in flight.
type BillPayee struct {
	ID            string    `json:"id" db:"id"`
	UserID        string    `json:"userId" db:"user_id"`
	Name          string    `json:"name" db:"name"`
	Category      string    `json:"category" db:"category"`
	AccountNumber string    `json:"accountNumber" db:"account_number"`
	RoutingNumber string    `json:"routingNumber,omitempty" db:"routing_number"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
}
