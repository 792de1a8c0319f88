package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"cashlog/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:    email,
		Password: string(hash),
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestCard creates a card with zero balance.
func CreateTestCard(t *testing.T, db *gorm.DB, userID string) *models.Card {
	t.Helper()
	return CreateTestCardWithBalance(t, db, userID, 0)
}

// CreateTestCardWithBalance creates a card with the given balance (in cents).
func CreateTestCardWithBalance(t *testing.T, db *gorm.DB, userID string, balance int64) *models.Card {
	t.Helper()

	card := &models.Card{
		UserID:   userID,
		Name:     fmt.Sprintf("Test Card %d", nextID()),
		Balance:  balance,
		Currency: "USD",
		IsActive: true,
	}
	if err := db.Create(card).Error; err != nil {
		t.Fatalf("failed to create test card: %v", err)
	}
	return card
}

// CreateTestCategory creates a category of the given type.
func CreateTestCategory(t *testing.T, db *gorm.DB, userID string, categoryType models.CategoryType) *models.Category {
	t.Helper()

	category := &models.Category{
		UserID: userID,
		Name:   fmt.Sprintf("Test Category %d", nextID()),
		Type:   categoryType,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateTestRecurring creates an active recurring template with the given
// schedule parameters.
func CreateTestRecurring(t *testing.T, db *gorm.DB, userID, cardID string, amount int64, direction models.Direction, frequency models.RecurringFrequency, interval int, startDate time.Time) *models.Recurring {
	t.Helper()

	rec := &models.Recurring{
		UserID:    userID,
		CardID:    cardID,
		Name:      fmt.Sprintf("Test Recurring %d", nextID()),
		Amount:    amount,
		Direction: direction,
		Frequency: frequency,
		Interval:  interval,
		StartDate: startDate,
		Status:    models.RecurringStatusActive,
	}
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("failed to create test recurring: %v", err)
	}
	return rec
}

// CreateTestInstance creates a pending instance for the given template.
func CreateTestInstance(t *testing.T, db *gorm.DB, rec *models.Recurring, scheduledDate time.Time) *models.RecurringInstance {
	t.Helper()

	instance := &models.RecurringInstance{
		RecurringID:     rec.ID,
		ScheduledDate:   scheduledDate,
		ScheduledAmount: rec.Amount,
		Direction:       rec.Direction,
		Status:          models.InstanceStatusPending,
	}
	if err := db.Create(instance).Error; err != nil {
		t.Fatalf("failed to create test instance: %v", err)
	}
	return instance
}
