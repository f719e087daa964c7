package models

import "time"

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationApproved VerificationStatus = "APPROVED"
	VerificationRejected VerificationStatus = "REJECTED"
)

// PaymentVerification holds the supporting document for a transaction that
// exceeded the verification threshold. One per transaction.
type PaymentVerification struct {
	ID            string             `json:"id" db:"id"`
	TransactionID string             `json:"transactionId" db:"transaction_id"`
	DocumentPath  string             `json:"documentPath" db:"document_path"`
	DocumentType  string             `json:"documentType" db:"document_type"`
	Status        VerificationStatus `json:"status" db:"status"`
	CreatedAt     time.Time          `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time          `json:"updatedAt" db:"updated_at"`
}

type SystemConfig struct {
	Key   string `json:"key" db:"key"`
	Value string `json:"value" db:"value"`
}
