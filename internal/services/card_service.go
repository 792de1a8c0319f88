package services

import (
	"errors"

	"gorm.io/gorm"

	apperrors "cashlog/internal/errors"
	"cashlog/internal/models"
)

// cardService is the thin card collaborator. The recurrence engine never
// touches card storage directly; every balance change goes through
// ApplyBalanceDelta on the caller's transaction.
type cardService struct {
	db *gorm.DB
}

// NewCardService creates a new CardServicer.
func NewCardService(db *gorm.DB) CardServicer {
	return &cardService{db: db}
}

// GetCardByID retrieves a card by ID for a specific user
func (s *cardService) GetCardByID(userID, cardID string) (*models.Card, error) {
	var card models.Card
	if err := s.db.Where("id = ? AND user_id = ? AND is_active = ?", cardID, userID, true).First(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCardNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &card, nil
}

// ApplyBalanceDelta applies the signed effect of a movement to the card's
// settled balance on the given database transaction: "in" adds, "out"
// subtracts. The card struct is updated in place so callers see the new
// balance after commit.
func (s *cardService) ApplyBalanceDelta(tx *gorm.DB, card *models.Card, direction models.Direction, amount int64) error {
	if direction != models.DirectionIn && direction != models.DirectionOut {
		return apperrors.ErrInvalidDirection
	}

	card.Balance += direction.Delta(amount)
	if err := tx.Model(card).Update("balance", card.Balance).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}
