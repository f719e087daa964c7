package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ruralpay/billpay/internal/cache"
	"github.com/ruralpay/billpay/internal/models"
)

// CreatePayeeRequest represents a new bill payee
// @Description Bill payee creation request
type CreatePayeeRequest struct {
	Name          string `json:"name" validate:"required,min=2,max=120" example:"City Power"`
	Category      string `json:"category" validate:"required,oneof=UTILITIES WATER ELECTRICITY INTERNET PHONE TV INSURANCE RENT OTHER" example:"UTILITIES"`
	AccountNumber string `json:"accountNumber" validate:"required,alphanum,min=4,max=34" example:"0012345678"`
	RoutingNumber string `json:"routingNumber,omitempty" validate:"omitempty,numeric,len=9" example:"021000021"`
}

type PayeeService struct {
	db    *sql.DB
	cache *cache.Cache
	ttl   time.Duration
}

func NewPayeeService(db *sql.DB, c *cache.Cache, ttl time.Duration) *PayeeService {
	return &PayeeService{db: db, cache: c, ttl: ttl}
}

func payeeCacheKey(userID string) string {
	return "payees:" + userID
}

// ListPayees returns the user's payees, newest first, through the cache.
func (s *PayeeService) ListPayees(ctx context.Context, userID string) ([]models.BillPayee, error) {
	return cache.GetOrSet(ctx, s.cache, payeeCacheKey(userID), s.ttl, func(ctx context.Context) ([]models.BillPayee, error) {
		return s.loadPayees(ctx, userID)
	})
}

func (s *PayeeService) loadPayees(ctx context.Context, userID string) ([]models.BillPayee, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, category, account_number, routing_number, created_at
		FROM bill_payees
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list payees: %w", err)
	}
	defer rows.Close()

	payees := []models.BillPayee{}
	for rows.Next() {
		var p models.BillPayee
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Category, &p.AccountNumber, &p.RoutingNumber, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payee: %w", err)
		}
		payees = append(payees, p)
	}
	return payees, rows.Err()
}

// CreatePayee stores a payee and drops the user's cached list.
func (s *PayeeService) CreatePayee(ctx context.Context, userID string, req CreatePayeeRequest) (*models.BillPayee, error) {
	payee := &models.BillPayee{
		ID:            uuid.NewString(),
		UserID:        userID,
		Name:          strings.TrimSpace(req.Name),
		Category:      req.Category,
		AccountNumber: req.AccountNumber,
		RoutingNumber: req.RoutingNumber,
		CreatedAt:     time.Now(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bill_payees (id, user_id, name, category, account_number, routing_number, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		payee.ID, payee.UserID, payee.Name, payee.Category, payee.AccountNumber, payee.RoutingNumber, payee.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert payee: %w", err)
	}

	s.cache.Invalidate(ctx, payeeCacheKey(userID))
	log.Printf("[PAYEE] Created payee %s (%s) for user %s", payee.ID, payee.Category, userID)
	return payee, nil
}
