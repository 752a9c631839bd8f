package services

import (
	"context"
	"errors"

	"github.com/sahilchouksey/active-classroom-api/model"
	"github.com/sahilchouksey/active-classroom-api/utils/apperrors"
	"github.com/sahilchouksey/active-classroom-api/utils/auth"
	"gorm.io/gorm"
)

// TransactionService serves read access to the payment ledger
type TransactionService struct {
	db *gorm.DB
}

// NewTransactionService creates a new transaction service
func NewTransactionService(db *gorm.DB) *TransactionService {
	return &TransactionService{db: db}
}

// ListOptions pages a listing
type ListOptions struct {
	Page  int
	Limit int
}

func (o ListOptions) normalize() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit < 1 || o.Limit > 100 {
		o.Limit = 20
	}
	return o
}

func withParties(db *gorm.DB) *gorm.DB {
	return db.
		Preload("User", func(db *gorm.DB) *gorm.DB { return db.Select("id", "name", "email") }).
		Preload("Course", func(db *gorm.DB) *gorm.DB { return db.Select("id", "title") }).
		Preload("Coupon", func(db *gorm.DB) *gorm.DB { return db.Select("id", "code") })
}

// List returns every transaction to viewers allowed to see the full ledger, otherwise their own
func (s *TransactionService) List(ctx context.Context, viewer *model.User, opts ListOptions) ([]model.Transaction, int64, error) {
	opts = opts.normalize()

	scope := func(db *gorm.DB) *gorm.DB {
		if auth.Can(viewer.Role, auth.ViewAllTransactions) {
			return db
		}
		return db.Where("user_id = ?", viewer.ID)
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&model.Transaction{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, apperrors.Internal(err, "Failed to count transactions")
	}

	var transactions []model.Transaction
	err := withParties(s.db.WithContext(ctx)).
		Scopes(scope).
		Order("created_at DESC").
		Offset((opts.Page - 1) * opts.Limit).
		Limit(opts.Limit).
		Find(&transactions).Error
	if err != nil {
		return nil, 0, apperrors.Internal(err, "Failed to fetch transactions")
	}
	return transactions, total, nil
}

// ListForUser returns all of a user's transactions, newest first
func (s *TransactionService) ListForUser(ctx context.Context, userID uint) ([]model.Transaction, error) {
	var transactions []model.Transaction
	err := s.db.WithContext(ctx).
		Preload("Course", func(db *gorm.DB) *gorm.DB { return db.Select("id", "title") }).
		Preload("Coupon", func(db *gorm.DB) *gorm.DB { return db.Select("id", "code") }).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&transactions).Error
	if err != nil {
		return nil, apperrors.Internal(err, "Failed to fetch transactions")
	}
	if len(transactions) == 0 {
		return nil, apperrors.NotFound("No transactions found for this user")
	}
	return transactions, nil
}

// Get returns one transaction by tranId if the viewer owns it or may see the full ledger
func (s *TransactionService) Get(ctx context.Context, viewer *model.User, tranID string) (*model.Transaction, error) {
	if tranID == "" {
		return nil, apperrors.Validation("Invalid transaction ID")
	}

	var transaction model.Transaction
	err := withParties(s.db.WithContext(ctx)).Where("tran_id = ?", tranID).First(&transaction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Transaction not found")
		}
		return nil, apperrors.Internal(err, "Failed to fetch transaction")
	}

	if transaction.UserID != viewer.ID && !auth.Can(viewer.Role, auth.ViewAllTransactions) {
		return nil, apperrors.Forbidden("Access denied")
	}
	return &transaction, nil
}
