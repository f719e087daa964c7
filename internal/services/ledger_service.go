package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ruralpay/billpay/internal/models"
	"github.com/shopspring/decimal"
)

// ErrConcurrentUpdate means the account changed between the balance check and
// the guarded decrement.
var ErrConcurrentUpdate = errors.New("account was modified concurrently")

// AccountLedger owns every read and write the bill payment flow makes against
// accounts, payees, transactions and payment verifications.
type AccountLedger struct {
	db *sql.DB
}

func NewAccountLedger(db *sql.DB) *AccountLedger {
	return &AccountLedger{db: db}
}

// FindAccount returns nil when the account does not exist or belongs to
// another user.
func (l *AccountLedger) FindAccount(ctx context.Context, accountID, userID string) (*models.Account, error) {
	var account models.Account
	err := l.db.QueryRowContext(ctx, `
		SELECT id, user_id, currency, balance, version, updated_at
		FROM accounts
		WHERE id = $1 AND user_id = $2`, accountID, userID).
		Scan(&account.ID, &account.UserID, &account.Currency, &account.Balance, &account.Version, &account.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup account %s: %w", accountID, err)
	}
	return &account, nil
}

// FindPayee returns nil when the payee does not exist or belongs to another user.
func (l *AccountLedger) FindPayee(ctx context.Context, payeeID, userID string) (*models.BillPayee, error) {
	var payee models.BillPayee
	err := l.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, category, account_number, routing_number, created_at
		FROM bill_payees
		WHERE id = $1 AND user_id = $2`, payeeID, userID).
		Scan(&payee.ID, &payee.UserID, &payee.Name, &payee.Category, &payee.AccountNumber, &payee.RoutingNumber, &payee.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup payee %s: %w", payeeID, err)
	}
	return &payee, nil
}

// Settle debits account by amount and records txn (and verification, when
// given) in one database transaction. Nothing is written unless all succeed.
func (l *AccountLedger) Settle(ctx context.Context, account *models.Account, amount decimal.Decimal, txn *models.Transaction, verification *models.PaymentVerification) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settlement: %w", err)
	}
	defer tx.Rollback()

	if err := l.debitTx(ctx, tx, account, amount); err != nil {
		return err
	}

	if err := l.insertTransactionTx(ctx, tx, txn); err != nil {
		return err
	}

	if verification != nil {
		if err := l.insertVerificationTx(ctx, tx, verification); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settlement: %w", err)
	}
	return nil
}

// debitTx is a compare-and-swap on the version read by FindAccount. The
// balance guard keeps the balance non-negative even if the check is stale.
func (l *AccountLedger) debitTx(ctx context.Context, tx *sql.Tx, account *models.Account, amount decimal.Decimal) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = balance - $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND user_id = $4 AND version = $5 AND balance >= $1`,
		amount, time.Now(), account.ID, account.UserID, account.Version)
	if err != nil {
		return fmt.Errorf("debit account %s: %w", account.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("debit account %s: %w", account.ID, err)
	}

	if rowsAffected == 0 {
		return ErrConcurrentUpdate
	}
	return nil
}

func (l *AccountLedger) insertTransactionTx(ctx context.Context, tx *sql.Tx, txn *models.Transaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions
		(id, account_id, amount, currency, status, category, description, reference, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		txn.ID, txn.AccountID, txn.Amount, txn.Currency, string(txn.Status), txn.Category,
		txn.Description, txn.Reference, txn.CreatedAt, txn.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", txn.ID, err)
	}
	return nil
}

func (l *AccountLedger) insertVerificationTx(ctx context.Context, tx *sql.Tx, v *models.PaymentVerification) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payment_verifications
		(id, transaction_id, document_path, document_type, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		v.ID, v.TransactionID, v.DocumentPath, v.DocumentType, string(v.Status), v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert payment verification for %s: %w", v.TransactionID, err)
	}
	return nil
}

// ListTransactions returns the newest transactions across the user's accounts.
func (l *AccountLedger) ListTransactions(ctx context.Context, userID string, limit int) ([]models.Transaction, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT t.id, t.account_id, t.amount, t.currency, t.status, t.category, t.description,
		       COALESCE(t.reference, '') AS reference, t.created_at, t.updated_at
		FROM transactions t
		INNER JOIN accounts a ON a.id = t.account_id
		WHERE a.user_id = $1
		ORDER BY t.created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		var txn models.Transaction
		if err := rows.Scan(&txn.ID, &txn.AccountID, &txn.Amount, &txn.Currency, &txn.Status, &txn.Category,
			&txn.Description, &txn.Reference, &txn.CreatedAt, &txn.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		transactions = append(transactions, txn)
	}
	return transactions, rows.Err()
}
