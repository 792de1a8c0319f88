package models

// Card represents a financial card (bank account, e-wallet, cash) whose
// settled balance the engine mutates through signed deltas only.
type Card struct {
	Base
	UserID   string `gorm:"type:uuid;not null;index" json:"user_id"`
	Name     string `gorm:"not null" json:"name"`
	Balance  int64  `gorm:"type:bigint;not null;default:0" json:"balance"`
	Currency string `gorm:"not null;default:'USD'" json:"currency"`
	IsActive bool   `gorm:"default:true" json:"is_active"`

	// Relationships
	Transactions []Transaction `gorm:"foreignKey:CardID" json:"transactions,omitempty"`
	Recurrings   []Recurring   `gorm:"foreignKey:CardID" json:"recurrings,omitempty"`
}
