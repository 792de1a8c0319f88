package models

import "time"

// Direction is the sign of a money movement relative to the owning card.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Delta returns the signed balance effect of the given amount.
func (d Direction) Delta(amount int64) int64 {
	if d == DirectionOut {
		return -amount
	}
	return amount
}

// Transaction represents a settled ledger entry on a card
type Transaction struct {
	Base
	UserID      string    `gorm:"type:uuid;not null;index" json:"user_id"`
	CardID      string    `gorm:"type:uuid;not null;index" json:"card_id"`
	CategoryID  *string   `gorm:"type:uuid" json:"category_id,omitempty"`
	Direction   Direction `gorm:"not null" json:"direction"`
	Amount      int64     `gorm:"type:bigint;not null" json:"amount"`
	Description string    `json:"description"`
	Date        time.Time `gorm:"not null" json:"date"`

	// Relationships
	Card     Card      `gorm:"foreignKey:CardID" json:"card,omitempty"`
	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}
