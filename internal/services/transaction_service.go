package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "cashlog/internal/errors"
	"cashlog/internal/models"
)

// transactionService is the ledger collaborator. It only creates and
// deletes entries; balance effects are the caller's responsibility so that
// both happen on the same database transaction.
type transactionService struct {
	db *gorm.DB
}

// NewTransactionService creates a new TransactionServicer.
func NewTransactionService(db *gorm.DB) TransactionServicer {
	return &transactionService{db: db}
}

// CreateTransactionTx inserts a ledger entry on the given database transaction.
func (s *transactionService) CreateTransactionTx(
	tx *gorm.DB,
	userID, cardID string,
	categoryID *string,
	direction models.Direction,
	amount int64,
	description string,
	date time.Time,
) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}
	if direction != models.DirectionIn && direction != models.DirectionOut {
		return nil, apperrors.ErrInvalidDirection
	}
	if date.IsZero() {
		date = time.Now()
	}

	transaction := &models.Transaction{
		UserID:      userID,
		CardID:      cardID,
		CategoryID:  categoryID,
		Direction:   direction,
		Amount:      amount,
		Description: description,
		Date:        date,
	}

	if err := tx.Create(transaction).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return transaction, nil
}

// DeleteTransactionTx removes a ledger entry on the given database transaction.
func (s *transactionService) DeleteTransactionTx(tx *gorm.DB, transactionID string) error {
	if err := tx.Where("id = ?", transactionID).Delete(&models.Transaction{}).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// GetTransactionByID retrieves a transaction by ID for a specific user
func (s *transactionService) GetTransactionByID(userID, transactionID string) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := s.db.Where("id = ? AND user_id = ?", transactionID, userID).First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &transaction, nil
}
