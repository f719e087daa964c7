package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ruralpay/billpay/internal/audit"
	"github.com/ruralpay/billpay/internal/cache"
	"github.com/ruralpay/billpay/internal/config"
	"github.com/ruralpay/billpay/internal/models"
	"github.com/ruralpay/billpay/internal/notifications"
	"github.com/shopspring/decimal"
)

// FailureReason classifies an expected business outcome so callers can map it
// to a response code. It is never serialized.
type FailureReason string

const (
	ReasonInvalidAmount        FailureReason = "INVALID_AMOUNT"
	ReasonVerificationRequired FailureReason = "VERIFICATION_REQUIRED"
	ReasonAccountNotFound      FailureReason = "ACCOUNT_NOT_FOUND"
	ReasonInsufficientFunds    FailureReason = "INSUFFICIENT_FUNDS"
	ReasonPayeeNotFound        FailureReason = "PAYEE_NOT_FOUND"
)

// PaymentResult is returned for every expected outcome, successful or not.
// Infrastructure failures come back as errors instead.
type PaymentResult struct {
	Success              bool                        `json:"success"`
	Transaction          *models.Transaction         `json:"transaction,omitempty"`
	Verification         *models.PaymentVerification `json:"verification,omitempty"`
	RequiresVerification bool                        `json:"requiresVerification,omitempty"`
	Threshold            *decimal.Decimal            `json:"threshold,omitempty"`
	Error                string                      `json:"error,omitempty"`
	Message              string                      `json:"message,omitempty"`
	Reason               FailureReason               `json:"-"`
}

type PaymentRequest struct {
	UserID    string
	PayeeID   string
	AccountID string
	Amount    decimal.Decimal
	Reference string
}

type VerifiedPaymentRequest struct {
	UserID       string
	PayeeID      string
	AccountID    string
	Amount       decimal.Decimal
	DocumentPath string
	DocumentType string
}

type InvoiceNotifier interface {
	NotifyInvoicePaid(event notifications.InvoicePaidEvent)
}

type BillPaymentService struct {
	ledger    *AccountLedger
	threshold *ThresholdResolver
	notifier  InvoiceNotifier
	audit     *audit.Logger
	config    *config.PaymentConfig
	now       func() time.Time
	newID     func() string
}

func NewBillPaymentService(db *sql.DB, c *cache.Cache, notifier InvoiceNotifier, cfg *config.PaymentConfig) *BillPaymentService {
	return &BillPaymentService{
		ledger:    NewAccountLedger(db),
		threshold: NewThresholdResolver(db, c, cfg),
		notifier:  notifier,
		audit:     audit.NewLogger(),
		config:    cfg,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// VerificationThreshold exposes the resolved threshold to handlers.
func (s *BillPaymentService) VerificationThreshold(ctx context.Context) (decimal.Decimal, error) {
	return s.threshold.VerificationThreshold(ctx)
}

// ProcessPayment settles a bill payment at or below the verification
// threshold. Larger amounts are refused with RequiresVerification set so the
// caller can switch to ProcessVerifiedPayment.
func (s *BillPaymentService) ProcessPayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	if !validAmount(req.Amount) {
		return failure(ReasonInvalidAmount, "Invalid amount"), nil
	}

	threshold, err := s.threshold.VerificationThreshold(ctx)
	if err != nil {
		return nil, err
	}

	if req.Amount.GreaterThan(threshold) {
		log.Printf("[PAYMENT] Amount %s above threshold %s for user %s, verification required", req.Amount, threshold, req.UserID)
		s.audit.LogOperation("", req.AccountID, "VERIFICATION_REQUIRED", fmt.Sprintf("amount=%s threshold=%s", req.Amount, threshold))
		result := failure(ReasonVerificationRequired, "Payment requires verification")
		result.RequiresVerification = true
		result.Threshold = &threshold
		result.Message = fmt.Sprintf("Payments above %s require a supporting document", threshold.String())
		return result, nil
	}

	reference := req.Reference
	if reference == "" {
		reference = s.reference(s.config.PaymentRefPrefix)
	}

	result, err := s.settleWithRetry(ctx, req.UserID, req.AccountID, req.PayeeID, req.Amount, func(account *models.Account, payee *models.BillPayee) (*models.Transaction, *models.PaymentVerification) {
		return s.newTransaction(account, payee, req.Amount, models.StatusCompleted, reference, "Bill payment to "+payee.Name), nil
	})
	if err != nil || !result.Success {
		return result, err
	}

	txn := result.Transaction
	s.audit.LogPayment(txn.ID, req.UserID, req.AccountID, req.PayeeID, req.Amount, string(txn.Status))
	log.Printf("[PAYMENT] Bill payment %s settled: account=%s payee=%s amount=%s", txn.ID, req.AccountID, req.PayeeID, req.Amount)

	if s.notifier != nil && strings.HasPrefix(req.Reference, s.config.InvoiceRefPrefix) {
		s.notifier.NotifyInvoicePaid(notifications.InvoicePaidEvent{
			InvoiceNumber: req.Reference,
			Amount:        req.Amount,
			TransactionID: txn.ID,
			PaymentDate:   txn.CreatedAt,
		})
	}

	return result, nil
}

// ProcessVerifiedPayment debits the account immediately but leaves the
// transaction in PENDING_VERIFICATION alongside a PENDING verification record.
// Invoice notification waits for the review, so none is sent here.
func (s *BillPaymentService) ProcessVerifiedPayment(ctx context.Context, req VerifiedPaymentRequest) (*PaymentResult, error) {
	if !validAmount(req.Amount) {
		return failure(ReasonInvalidAmount, "Invalid amount"), nil
	}

	documentPath := strings.TrimSpace(req.DocumentPath)
	if documentPath == "" {
		documentPath = s.config.DefaultDocumentPath
	}
	documentType := strings.TrimSpace(req.DocumentType)
	if documentType == "" {
		documentType = s.config.DefaultDocumentType
	}
	reference := s.reference(s.config.VerifiedRefPrefix)

	result, err := s.settleWithRetry(ctx, req.UserID, req.AccountID, req.PayeeID, req.Amount, func(account *models.Account, payee *models.BillPayee) (*models.Transaction, *models.PaymentVerification) {
		txn := s.newTransaction(account, payee, req.Amount, models.StatusPendingVerification, reference,
			"Bill payment to "+payee.Name+" (pending verification)")
		verification := &models.PaymentVerification{
			ID:            s.newID(),
			TransactionID: txn.ID,
			DocumentPath:  documentPath,
			DocumentType:  documentType,
			Status:        models.VerificationPending,
			CreatedAt:     txn.CreatedAt,
			UpdatedAt:     txn.CreatedAt,
		}
		return txn, verification
	})
	if err != nil || !result.Success {
		return result, err
	}

	s.audit.LogPayment(result.Transaction.ID, req.UserID, req.AccountID, req.PayeeID, req.Amount, string(result.Transaction.Status))
	log.Printf("[PAYMENT] Verified bill payment %s pending review: account=%s amount=%s document=%s",
		result.Transaction.ID, req.AccountID, req.Amount, documentPath)
	result.Message = "Payment submitted for verification"
	return result, nil
}

// ListBillPayments returns the user's most recent transactions.
func (s *BillPaymentService) ListBillPayments(ctx context.Context, userID string, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = s.config.TransactionPageLimit
	}
	if limit > 100 {
		limit = 100
	}
	return s.ledger.ListTransactions(ctx, userID, limit)
}

type buildRecords func(account *models.Account, payee *models.BillPayee) (*models.Transaction, *models.PaymentVerification)

// settleWithRetry validates and settles, re-running both when the guarded
// decrement loses a race. A retry re-reads the balance, so a payment that no
// longer fits ends as Insufficient funds rather than an error.
func (s *BillPaymentService) settleWithRetry(ctx context.Context, userID, accountID, payeeID string, amount decimal.Decimal, build buildRecords) (*PaymentResult, error) {
	for attempt := 1; ; attempt++ {
		result, err := s.settle(ctx, userID, accountID, payeeID, amount, build)
		if !errors.Is(err, ErrConcurrentUpdate) {
			return result, err
		}

		if attempt >= s.config.MaxSettleAttempts {
			s.audit.LogError("", accountID, err)
			return nil, fmt.Errorf("settle bill payment after %d attempts: %w", attempt, err)
		}
		log.Printf("[PAYMENT] Concurrent update on account %s, retrying (attempt %d/%d)", accountID, attempt+1, s.config.MaxSettleAttempts)
	}
}

func (s *BillPaymentService) settle(ctx context.Context, userID, accountID, payeeID string, amount decimal.Decimal, build buildRecords) (*PaymentResult, error) {
	account, err := s.ledger.FindAccount(ctx, accountID, userID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return failure(ReasonAccountNotFound, "Account not found"), nil
	}

	if account.Balance.LessThan(amount) {
		return failure(ReasonInsufficientFunds, "Insufficient funds"), nil
	}

	payee, err := s.ledger.FindPayee(ctx, payeeID, userID)
	if err != nil {
		return nil, err
	}
	if payee == nil {
		return failure(ReasonPayeeNotFound, "Payee not found"), nil
	}

	txn, verification := build(account, payee)
	if err := s.ledger.Settle(ctx, account, amount, txn, verification); err != nil {
		if !errors.Is(err, ErrConcurrentUpdate) {
			s.audit.LogError(txn.ID, accountID, err)
		}
		return nil, err
	}

	return &PaymentResult{Success: true, Transaction: txn, Verification: verification}, nil
}

func (s *BillPaymentService) newTransaction(account *models.Account, payee *models.BillPayee, amount decimal.Decimal, status models.TransactionStatus, reference, description string) *models.Transaction {
	now := s.now()
	return &models.Transaction{
		ID:          s.newID(),
		AccountID:   account.ID,
		Amount:      amount.Neg(),
		Currency:    account.Currency,
		Status:      status,
		Category:    payee.Category,
		Description: description,
		Reference:   reference,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (s *BillPaymentService) reference(prefix string) string {
	return fmt.Sprintf("%s%d", prefix, s.now().UnixMilli())
}

// validAmount accepts positive amounts in whole cents. Balances are stored
// as NUMERIC(18, 2), so a finer amount would round differently on the account
// and on the transaction row.
func validAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Round(2))
}

func failure(reason FailureReason, message string) *PaymentResult {
	return &PaymentResult{Success: false, Error: message, Reason: reason}
}
