package services

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "cashlog/internal/errors"
	"cashlog/internal/models"
	"cashlog/internal/pagination"
	"cashlog/internal/schedule"
)

// defaultGenerateCount is how many occurrence positions are materialized
// when a definition is created or its future is regenerated. Projection
// extends the materialized window by date on demand.
const defaultGenerateCount = 12

// recurringService handles recurring definition business logic: CRUD,
// pause/resume, instance generation, and update/delete cascades.
type recurringService struct {
	db                 *gorm.DB
	cardService        CardServicer
	categoryService    CategoryServicer
	transactionService TransactionServicer
}

// NewRecurringService creates a new RecurringServicer.
func NewRecurringService(db *gorm.DB, cardService CardServicer, categoryService CategoryServicer, transactionService TransactionServicer) RecurringServicer {
	return &recurringService{
		db:                 db,
		cardService:        cardService,
		categoryService:    categoryService,
		transactionService: transactionService,
	}
}

// CreateRecurring creates a new recurring definition and materializes its
// initial window of pending instances in the same database transaction.
func (s *recurringService) CreateRecurring(
	userID, cardID string,
	categoryID *string,
	name string,
	amount int64,
	direction models.Direction,
	frequency models.RecurringFrequency,
	interval int,
	startDate time.Time,
) (*models.Recurring, error) {
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "name is required")
	}
	if amount <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}
	if interval < 1 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "interval must be at least 1")
	}
	if !validFrequency(frequency) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "frequency must be one of hour, day, month, year")
	}
	if direction != models.DirectionIn && direction != models.DirectionOut {
		return nil, apperrors.ErrInvalidDirection
	}
	if startDate.IsZero() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "start date is required")
	}

	// Ownership checks before any mutation.
	if _, err := s.cardService.GetCardByID(userID, cardID); err != nil {
		return nil, err
	}
	if categoryID != nil {
		if _, err := s.categoryService.GetCategoryByID(userID, *categoryID); err != nil {
			return nil, err
		}
	}

	rec := &models.Recurring{
		UserID:     userID,
		CardID:     cardID,
		CategoryID: categoryID,
		Name:       name,
		Amount:     amount,
		Direction:  direction,
		Frequency:  frequency,
		Interval:   interval,
		StartDate:  startDate,
		Status:     models.RecurringStatusActive,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return s.generateTx(tx, rec, schedule.Horizon{Count: defaultGenerateCount})
	})
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// GetUserRecurrings retrieves a paginated list of recurring definitions,
// optionally filtered by card.
func (s *recurringService) GetUserRecurrings(userID string, page pagination.PageRequest, cardID *string) (*pagination.PageResponse[models.Recurring], error) {
	page.Defaults()

	base := s.db.Model(&models.Recurring{}).Where("user_id = ?", userID)
	if cardID != nil {
		base = base.Where("card_id = ?", *cardID)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var recurrings []models.Recurring
	if err := base.Preload("Category").Scopes(pagination.Paginate(page)).
		Order("created_at DESC").
		Find(&recurrings).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(recurrings, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetRecurringByID returns a definition with its upcoming (outstanding)
// instances preloaded in schedule order.
func (s *recurringService) GetRecurringByID(userID, recurringID string) (*models.Recurring, error) {
	var rec models.Recurring
	err := s.db.Preload("Instances", func(db *gorm.DB) *gorm.DB {
		return db.Where("status IN ?", []models.InstanceStatus{models.InstanceStatusPending, models.InstanceStatusModified}).
			Order("scheduled_date ASC")
	}).Where("id = ? AND user_id = ?", recurringID, userID).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrRecurringNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &rec, nil
}

// UpdateRecurring applies template field changes. With applyToFuture the
// outstanding future instances are dropped and regenerated from the updated
// template; completed and skipped history, and past-due pending instances,
// are never touched.
func (s *recurringService) UpdateRecurring(userID, recurringID string, changes RecurringUpdate, applyToFuture bool) (*models.Recurring, error) {
	rec, err := s.GetRecurringByID(userID, recurringID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if changes.Name != nil && *changes.Name != "" {
		updates["name"] = *changes.Name
	}
	if changes.Amount != nil {
		if *changes.Amount <= 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
		}
		updates["amount"] = *changes.Amount
	}
	if changes.Direction != nil {
		if *changes.Direction != models.DirectionIn && *changes.Direction != models.DirectionOut {
			return nil, apperrors.ErrInvalidDirection
		}
		updates["direction"] = *changes.Direction
	}
	if changes.Frequency != nil {
		if !validFrequency(*changes.Frequency) {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "frequency must be one of hour, day, month, year")
		}
		updates["frequency"] = *changes.Frequency
	}
	if changes.Interval != nil {
		if *changes.Interval < 1 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "interval must be at least 1")
		}
		updates["interval"] = *changes.Interval
	}
	if changes.StartDate != nil {
		updates["start_date"] = *changes.StartDate
	}
	if changes.CategoryID != nil {
		if _, err := s.categoryService.GetCategoryByID(userID, *changes.CategoryID); err != nil {
			return nil, err
		}
		updates["category_id"] = *changes.CategoryID
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(rec).Updates(updates).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}
		if !applyToFuture {
			return nil
		}

		// Drop outstanding future instances and regenerate them from the
		// updated template. Terminal history and overdue instances stay.
		now := time.Now()
		if err := tx.Unscoped().
			Where("recurring_id = ? AND status IN ? AND scheduled_date >= ?",
				rec.ID,
				[]models.InstanceStatus{models.InstanceStatusPending, models.InstanceStatusModified},
				now,
			).
			Delete(&models.RecurringInstance{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		if err := tx.Where("id = ?", rec.ID).First(rec).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return s.generateTx(tx, rec, schedule.Horizon{Count: defaultGenerateCount, From: now})
	})
	if err != nil {
		return nil, err
	}

	return s.GetRecurringByID(userID, recurringID)
}

// DeleteRecurring removes or cancels a definition per the cascade options.
// Without deleteInstances everything is retained: the definition and its
// outstanding instances are cancelled and history is untouched. With
// deleteInstances the definition and all its instances are physically
// removed; linked transactions of completed instances either survive as
// independent ledger entries or are deleted with their balance effect
// reversed, per keepCompletedTransactions.
func (s *recurringService) DeleteRecurring(userID, recurringID string, opts CascadeOptions) error {
	rec, err := s.GetRecurringByID(userID, recurringID)
	if err != nil {
		return err
	}

	if !opts.DeleteInstances {
		return s.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(rec).Update("status", models.RecurringStatusCancelled).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			if err := tx.Model(&models.RecurringInstance{}).
				Where("recurring_id = ? AND status IN ?",
					rec.ID,
					[]models.InstanceStatus{models.InstanceStatusPending, models.InstanceStatusModified},
				).
				Update("status", models.InstanceStatusCancelled).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			return nil
		})
	}

	card, err := s.cardService.GetCardByID(userID, rec.CardID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if !opts.KeepCompletedTransactions {
			var completed []models.RecurringInstance
			if err := tx.Where("recurring_id = ? AND status = ? AND transaction_id IS NOT NULL",
				rec.ID, models.InstanceStatusCompleted).
				Find(&completed).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}

			for i := range completed {
				inst := &completed[i]
				if err := s.transactionService.DeleteTransactionTx(tx, *inst.TransactionID); err != nil {
					return err
				}
				amount := inst.ScheduledAmount
				if inst.ActualAmount != nil {
					amount = *inst.ActualAmount
				}
				if err := s.cardService.ApplyBalanceDelta(tx, card, reverse(inst.Direction), amount); err != nil {
					return err
				}
			}
		}

		if err := tx.Unscoped().Where("recurring_id = ?", rec.ID).
			Delete(&models.RecurringInstance{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Unscoped().Delete(rec).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
}

// PauseRecurring suspends generation for an active definition.
func (s *recurringService) PauseRecurring(userID, recurringID string) (*models.Recurring, error) {
	rec, err := s.GetRecurringByID(userID, recurringID)
	if err != nil {
		return nil, err
	}
	if rec.Status != models.RecurringStatusActive {
		return nil, apperrors.ErrRecurringNotActive
	}
	if err := s.db.Model(rec).Update("status", models.RecurringStatusPaused).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return rec, nil
}

// ResumeRecurring reactivates a paused definition. Missed occurrences are
// materialized lazily by the next generation pass.
func (s *recurringService) ResumeRecurring(userID, recurringID string) (*models.Recurring, error) {
	rec, err := s.GetRecurringByID(userID, recurringID)
	if err != nil {
		return nil, err
	}
	if rec.Status != models.RecurringStatusPaused {
		return nil, apperrors.ErrRecurringNotPaused
	}
	if err := s.db.Model(rec).Update("status", models.RecurringStatusActive).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return rec, nil
}

// EnsureInstancesTx materializes any missing instances of rec out to the
// given date on the caller's database transaction. Used by the balance
// projector as a read-through before summing.
func (s *recurringService) EnsureInstancesTx(tx *gorm.DB, rec *models.Recurring, upTo time.Time) error {
	return s.generateTx(tx, rec, schedule.Horizon{Until: upTo})
}

// generateTx runs the pure generator against the already-materialized
// scheduled dates and inserts the missing instances. The unique index on
// (recurring_id, scheduled_date) backstops concurrent generation: a
// conflicting insert is dropped silently because the occurrence already
// exists, which is exactly the desired outcome.
func (s *recurringService) generateTx(tx *gorm.DB, rec *models.Recurring, h schedule.Horizon) error {
	var existing []time.Time
	if err := tx.Model(&models.RecurringInstance{}).
		Where("recurring_id = ?", rec.ID).
		Pluck("scheduled_date", &existing).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	instances := schedule.Generate(rec, existing, h)
	if len(instances) == 0 {
		return nil
	}

	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "recurring_id"}, {Name: "scheduled_date"}},
		DoNothing: true,
	}).Create(&instances).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// validFrequency reports whether f is a supported recurrence unit.
func validFrequency(f models.RecurringFrequency) bool {
	switch f {
	case models.FrequencyHour, models.FrequencyDay, models.FrequencyMonth, models.FrequencyYear:
		return true
	}
	return false
}

// reverse flips a direction, used when undoing a completed instance's
// balance effect.
func reverse(d models.Direction) models.Direction {
	if d == models.DirectionIn {
		return models.DirectionOut
	}
	return models.DirectionIn
}
