package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "cashlog/internal/errors"
	"cashlog/internal/models"
	"cashlog/internal/pagination"
)

// recurringInstanceService handles the instance lifecycle (complete, skip,
// modify), transaction linkage on completion, and forward balance
// projection.
type recurringInstanceService struct {
	db                 *gorm.DB
	cardService        CardServicer
	transactionService TransactionServicer
	recurringService   RecurringServicer
}

// NewRecurringInstanceService creates a new RecurringInstanceServicer.
func NewRecurringInstanceService(db *gorm.DB, cardService CardServicer, transactionService TransactionServicer, recurringService RecurringServicer) RecurringInstanceServicer {
	return &recurringInstanceService{
		db:                 db,
		cardService:        cardService,
		transactionService: transactionService,
		recurringService:   recurringService,
	}
}

// GetUserInstances retrieves a paginated, filtered list of instances across
// the user's definitions. Statuses are reported as observed at call time,
// so past-due pending instances read as overdue.
func (s *recurringInstanceService) GetUserInstances(userID string, page pagination.PageRequest, filter InstanceFilter) (*pagination.PageResponse[models.RecurringInstance], error) {
	page.Defaults()
	now := time.Now()

	base := s.db.Model(&models.RecurringInstance{}).
		Joins("JOIN recurrings ON recurrings.id = recurring_instances.recurring_id AND recurrings.deleted_at IS NULL").
		Where("recurrings.user_id = ?", userID)

	if filter.CardID != nil {
		base = base.Where("recurrings.card_id = ?", *filter.CardID)
	}
	if filter.FromDate != nil {
		base = base.Where("recurring_instances.scheduled_date >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		base = base.Where("recurring_instances.scheduled_date <= ?", *filter.ToDate)
	}
	if filter.Status != nil {
		// Overdue is derived, so the filter translates to stored status
		// plus a date bound.
		switch *filter.Status {
		case models.InstanceStatusOverdue:
			base = base.Where("recurring_instances.status = ? AND recurring_instances.scheduled_date < ?", models.InstanceStatusPending, now)
		case models.InstanceStatusPending:
			base = base.Where("recurring_instances.status = ? AND recurring_instances.scheduled_date >= ?", models.InstanceStatusPending, now)
		default:
			base = base.Where("recurring_instances.status = ?", *filter.Status)
		}
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var instances []models.RecurringInstance
	if err := base.Scopes(pagination.Paginate(page)).
		Order("recurring_instances.scheduled_date ASC").
		Find(&instances).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	for i := range instances {
		instances[i].Status = instances[i].StatusAt(now)
	}

	result := pagination.NewPageResponse(instances, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetInstanceByID retrieves an instance owned by the user, with its
// definition attached and its status derived.
func (s *recurringInstanceService) GetInstanceByID(userID, instanceID string) (*models.RecurringInstance, error) {
	instance, err := s.getOwnedInstance(userID, instanceID)
	if err != nil {
		return nil, err
	}
	instance.Status = instance.StatusAt(time.Now())
	return instance, nil
}

// CompleteInstance turns an outstanding instance into a real ledger
// transaction: the transaction insert, the card balance delta, and the
// instance status write commit or roll back as one unit.
func (s *recurringInstanceService) CompleteInstance(userID, instanceID string, overrides CompleteOverrides) (*models.RecurringInstance, error) {
	instance, err := s.getOwnedInstance(userID, instanceID)
	if err != nil {
		return nil, err
	}
	if instance.Status.IsTerminal() {
		return nil, apperrors.ErrInstanceNotActionable
	}

	amount := instance.ScheduledAmount
	if overrides.Amount != nil {
		if *overrides.Amount <= 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
		}
		amount = *overrides.Amount
	}
	date := instance.ScheduledDate
	if overrides.Date != nil {
		date = *overrides.Date
	}
	description := instance.Recurring.Name
	if overrides.Description != nil && *overrides.Description != "" {
		description = *overrides.Description
	}

	card, err := s.cardService.GetCardByID(userID, instance.Recurring.CardID)
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		transaction, err := s.transactionService.CreateTransactionTx(
			tx, userID, instance.Recurring.CardID, instance.Recurring.CategoryID,
			instance.Direction, amount, description, date,
		)
		if err != nil {
			return err
		}

		if err := s.cardService.ApplyBalanceDelta(tx, card, instance.Direction, amount); err != nil {
			return err
		}

		completedAt := time.Now()
		updates := map[string]interface{}{
			"status":         models.InstanceStatusCompleted,
			"actual_date":    date,
			"actual_amount":  amount,
			"transaction_id": transaction.ID,
			"completed_at":   completedAt,
		}
		if err := tx.Model(instance).Updates(updates).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return instance, nil
}

// SkipInstance marks a pending (or overdue) instance as skipped with an
// optional reason. The card balance is never touched.
func (s *recurringInstanceService) SkipInstance(userID, instanceID, reason string) (*models.RecurringInstance, error) {
	instance, err := s.getOwnedInstance(userID, instanceID)
	if err != nil {
		return nil, err
	}
	if instance.Status.IsTerminal() {
		return nil, apperrors.ErrInstanceNotActionable
	}
	if instance.Status != models.InstanceStatusPending {
		return nil, apperrors.ErrInstanceNotPending
	}

	updates := map[string]interface{}{
		"status":      models.InstanceStatusSkipped,
		"skip_reason": reason,
	}
	if err := s.db.Model(instance).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return instance, nil
}

// ModifyInstance overrides the scheduled amount and/or date of a single
// occurrence without touching its template. The instance keeps its own
// divergent values through later regeneration passes.
func (s *recurringInstanceService) ModifyInstance(userID, instanceID string, amount *int64, date *time.Time) (*models.RecurringInstance, error) {
	instance, err := s.getOwnedInstance(userID, instanceID)
	if err != nil {
		return nil, err
	}
	if instance.Status.IsTerminal() {
		return nil, apperrors.ErrInstanceNotActionable
	}
	if amount == nil && date == nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "at least one of amount or date is required")
	}

	updates := map[string]interface{}{"status": models.InstanceStatusModified}
	if amount != nil {
		if *amount <= 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
		}
		updates["scheduled_amount"] = *amount
	}
	if date != nil {
		updates["scheduled_date"] = *date
	}

	if err := s.db.Model(instance).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return instance, nil
}

// ProjectedBalance composes the card's settled balance with the signed sum
// of outstanding instances scheduled in (from, upTo]. Missing instances are
// materialized out to upTo first (read-through), so the projection is never
// computed against an incomplete window. Without an explicit lower bound
// every outstanding instance up to upTo counts, including overdue ones.
func (s *recurringInstanceService) ProjectedBalance(userID, cardID string, upTo time.Time, from *time.Time) (*BalanceProjection, error) {
	if upTo.IsZero() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "up_to_date is required")
	}
	if from != nil && !from.Before(upTo) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "from_date must be before up_to_date")
	}

	card, err := s.cardService.GetCardByID(userID, cardID)
	if err != nil {
		return nil, err
	}

	// Read-through generation for every active definition on the card.
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var recurrings []models.Recurring
		if err := tx.Where("user_id = ? AND card_id = ? AND status = ?",
			userID, cardID, models.RecurringStatusActive).
			Find(&recurrings).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		for i := range recurrings {
			if err := s.recurringService.EnsureInstancesTx(tx, &recurrings[i], upTo); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sum := s.db.Model(&models.RecurringInstance{}).
		Select("COALESCE(SUM(CASE WHEN recurring_instances.direction = ? THEN recurring_instances.scheduled_amount ELSE -recurring_instances.scheduled_amount END), 0)", models.DirectionIn).
		Joins("JOIN recurrings ON recurrings.id = recurring_instances.recurring_id AND recurrings.deleted_at IS NULL").
		Where("recurrings.user_id = ? AND recurrings.card_id = ? AND recurrings.status = ?",
			userID, cardID, models.RecurringStatusActive).
		Where("recurring_instances.status IN ?",
			[]models.InstanceStatus{models.InstanceStatusPending, models.InstanceStatusModified}).
		Where("recurring_instances.scheduled_date <= ?", upTo)
	if from != nil {
		sum = sum.Where("recurring_instances.scheduled_date > ?", *from)
	}

	var outstanding int64
	if err := sum.Scan(&outstanding).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return &BalanceProjection{
		CardID:           card.ID,
		SettledBalance:   card.Balance,
		OutstandingDelta: outstanding,
		ProjectedBalance: card.Balance + outstanding,
		UpToDate:         upTo,
	}, nil
}

// getOwnedInstance loads an instance and verifies through its definition
// that it belongs to the user. Ownership failures read as not-found so ids
// are never confirmed across users.
func (s *recurringInstanceService) getOwnedInstance(userID, instanceID string) (*models.RecurringInstance, error) {
	var instance models.RecurringInstance
	if err := s.db.Where("id = ?", instanceID).First(&instance).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInstanceNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var rec models.Recurring
	if err := s.db.Where("id = ? AND user_id = ?", instance.RecurringID, userID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInstanceNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	instance.Recurring = rec
	return &instance, nil
}
