package services

import (
	"testing"
	"time"

	"gorm.io/gorm"

	"cashlog/internal/models"
	"cashlog/internal/pagination"
	"cashlog/internal/testutil"
)

func setupInstanceService(t *testing.T) (*gorm.DB, RecurringServicer, RecurringInstanceServicer) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	cardService := NewCardService(db)
	transactionService := NewTransactionService(db)
	recurringService := NewRecurringService(db, cardService, NewCategoryService(db), transactionService)
	instanceService := NewRecurringInstanceService(db, cardService, transactionService, recurringService)
	return db, recurringService, instanceService
}

func TestCompleteInstance(t *testing.T) {
	db, recurringService, svc := setupInstanceService(t)

	user := testutil.CreateTestUser(t, db)

	t.Run("weekly schedule settles exactly the completed amounts", func(t *testing.T) {
		card := testutil.CreateTestCardWithBalance(t, db, user.ID, 0)
		rec := testutil.CreateTestRecurring(t, db, user.ID, card.ID, 500000,
			models.DirectionOut, models.FrequencyDay, 7, date(2025, 1, 1))
		testutil.AssertNoError(t, recurringService.EnsureInstancesTx(db, rec, date(2025, 1, 22)))

		var instances []models.RecurringInstance
		testutil.AssertNoError(t, db.Where("recurring_id = ?", rec.ID).Order("scheduled_date ASC").Find(&instances).Error)
		if len(instances) != 4 {
			t.Fatalf("expected 4 occurrences, got %d", len(instances))
		}

		for i := 0; i < 2; i++ {
			completed, err := svc.CompleteInstance(user.ID, instances[i].ID, CompleteOverrides{})
			testutil.AssertNoError(t, err)
			if completed.TransactionID == nil {
				t.Fatalf("occurrence %d: expected a linked transaction", i)
			}
		}

		var reloaded models.Card
		testutil.AssertNoError(t, db.Where("id = ?", card.ID).First(&reloaded).Error)
		if reloaded.Balance != -1000000 {
			t.Errorf("expected balance -1000000, got %d", reloaded.Balance)
		}

		var pending []models.RecurringInstance
		testutil.AssertNoError(t, db.Where("recurring_id = ? AND status = ?", rec.ID, models.InstanceStatusPending).
			Order("scheduled_date ASC").Find(&pending).Error)
		if len(pending) != 2 {
			t.Fatalf("expected 2 pending occurrences, got %d", len(pending))
		}
		if !pending[0].ScheduledDate.Equal(date(2025, 1, 15)) || !pending[1].ScheduledDate.Equal(date(2025, 1, 22)) {
			t.Errorf("expected pending on 2025-01-15 and 2025-01-22, got %v and %v",
				pending[0].ScheduledDate, pending[1].ScheduledDate)
		}
	})

	t.Run("defaults come from the schedule", func(t *testing.T) {
		card := testutil.CreateTestCardWithBalance(t, db, user.ID, 50000)
		rec := testutil.CreateTestRecurring(t, db, user.ID, card.ID, 12500,
			models.DirectionIn, models.FrequencyMonth, 1, date(2025, 2, 10))
		instance := testutil.CreateTestInstance(t, db, rec, date(2025, 2, 10))

		completed, err := svc.CompleteInstance(user.ID, instance.ID, CompleteOverrides{})
		testutil.AssertNoError(t, err)

		if completed.ActualAmount == nil || *completed.ActualAmount != 12500 {
			t.Errorf("expected actual amount 12500, got %v", completed.ActualAmount)
		}
		if completed.ActualDate == nil || !completed.ActualDate.Equal(date(2025, 2, 10)) {
			t.Errorf("expected actual date 2025-02-10, got %v", completed.ActualDate)
		}

		var transaction models.Transaction
		testutil.AssertNoError(t, db.Where("id = ?", *completed.TransactionID).First(&transaction).Error)
		if transaction.Amount != 12500 || transaction.Direction != models.DirectionIn {
			t.Errorf("unexpected transaction %d %s", transaction.Amount, transaction.Direction)
		}
		if transaction.Description != rec.Name {
			t.Errorf("expected description %q, got %q", rec.Name, transaction.Description)
		}

		var reloaded models.Card
		testutil.AssertNoError(t, db.Where("id = ?", card.ID).First(&reloaded).Error)
		if reloaded.Balance != 62500 {
			t.Errorf("expected balance 62500, got %d", reloaded.Balance)
		}
	})

	t.Run("overrides replace amount date and description", func(t *testing.T) {
		card := testutil.CreateTestCardWithBalance(t, db, user.ID, 0)
		rec := testutil.CreateTestRecurring(t, db, user.ID, card.ID, 9999,
			models.DirectionOut, models.FrequencyMonth, 1, date(2025, 3, 1))
		instance := testutil.CreateTestInstance(t, db, rec, date(2025, 3, 1))

		amount := int64(10500)
		actualDate := date(2025, 3, 3)
		description := "Price hike"
		completed, err := svc.CompleteInstance(user.ID, instance.ID, CompleteOverrides{
			Amount:      &amount,
			Date:        &actualDate,
			Description: &description,
		})
		testutil.AssertNoError(t, err)

		var transaction models.Transaction
		testutil.AssertNoError(t, db.Where("id = ?", *completed.TransactionID).First(&transaction).Error)
		if transaction.Amount != 10500 || !transaction.Date.Equal(actualDate) || transaction.Description != description {
			t.Errorf("overrides not applied: %d %v %q", transaction.Amount, transaction.Date, transaction.Description)
		}

		var reloaded models.Card
		testutil.AssertNoError(t, db.Where("id = ?", card.ID).First(&reloaded).Error)
		if reloaded.Balance != -10500 {
			t.Errorf("expected balance -10500, got %d", reloaded.Balance)
		}
	})

	t.Run("terminal instances cannot be completed again", func(t *testing.T) {
		card := testutil.CreateTestCardWithBalance(t, db, user.ID, 0)
		rec := testutil.CreateTestRecurring(t, db, user.ID, card.ID, 5000,
			models.DirectionOut, models.FrequencyMonth, 1, date(2025, 4, 1))
		instance := testutil.CreateTestInstance(t, db, rec, date(2025, 4, 1))

		_, err := svc.CompleteInstance(user.ID, instance.ID, CompleteOverrides{})
		testutil.AssertNoError(t, err)

		_, err = svc.CompleteInstance(user.ID, instance.ID, CompleteOverrides{})
		testutil.AssertAppError(t, err, "INSTANCE_NOT_ACTIONABLE")

		// And the failed retry must not touch the balance.
		var reloaded models.Card
		testutil.AssertNoError(t, db.Where("id = ?", card.ID).First(&reloaded).Error)
		if reloaded.Balance != -5000 {
			t.Errorf("expected balance -5000 after failed retry, got %d", reloaded.Balance)
		}
	})

	t.Run("another user's instance reads as not found", func(t *testing.T) {
		card := testutil.CreateTestCard(t, db, user.ID)
		rec := testutil.CreateTestRecurring(t, db, user.ID, card.ID, 5000,
			models.DirectionOut, models.FrequencyMonth, 1, date(2025, 5, 1))
		instance := testutil.CreateTestInstance(t, db, rec, date(2025, 5, 1))

		other := testutil.CreateTestUser(t, db)
		_, err := svc.CompleteInstance(other.ID, instance.ID, CompleteOverrides{})
		testutil.AssertAppError(t, err, "INSTANCE_NOT_FOUND")
	})
}

func TestSkipInstance(t *testing.T) {
	db, _, svc := setupInstanceService(t)

	user := testutil.CreateTestUser(t, db)
	card := testutil.CreateTestCardWithBalance(t, db, user.ID, 70000)
	rec := testutil.CreateTestRecurring(t, db, user.ID, card.ID, 5000,
		models.DirectionOut, models.FrequencyMonth, 1, date(2025, 1, 1))

	t.Run("skip records the reason and leaves the balance alone", func(t *testing.T) {
		instance := testutil.CreateTestInstance(t, db, rec, date(2025, 1, 1))

		skipped, err := svc.SkipInstance(user.ID, instance.ID, "travelling")
		testutil.AssertNoError(t, err)
		if skipped.Status != models.InstanceStatusSkipped {
			t.Errorf("expected skipped, got %s", skipped.Status)
		}

		var reloaded models.RecurringInstance
		testutil.AssertNoError(t, db.Where("id = ?", instance.ID).First(&reloaded).Error)
		if reloaded.SkipReason != "travelling" {
			t.Errorf("expected skip reason recorded, got %q", reloaded.SkipReason)
		}

		var reloadedCard models.Card
		testutil.AssertNoError(t, db.Where("id = ?", card.ID).First(&reloadedCard).Error)
		if reloadedCard.Balance != 70000 {
			t.Errorf("skip changed the balance: %d", reloadedCard.Balance)
		}
	})

	t.Run("skipped instance cannot be skipped again", func(t *testing.T) {
		instance := testutil.CreateTestInstance(t, db, rec, date(2025, 2, 1))
		_, err := svc.SkipInstance(user.ID, instance.ID, "")
		testutil.AssertNoError(t, err)

		_, err = svc.SkipInstance(user.ID, instance.ID, "")
		testutil.AssertAppError(t, err, "INSTANCE_NOT_ACTIONABLE")
	})

	t.Run("modified instance cannot be skipped", func(t *testing.T) {
		instance := testutil.CreateTestInstance(t, db, rec, date(2025, 3, 1))
		amount := int64(4500)
		_, err := svc.ModifyInstance(user.ID, instance.ID, &amount, nil)
		testutil.AssertNoError(t, err)

		_, err = svc.SkipInstance(user.ID, instance.ID, "")
		testutil.AssertAppError(t, err, "INSTANCE_NOT_PENDING")
	})
}

func TestModifyInstance(t *testing.T) {
	db, _, svc := setupInstanceService(t)

	user := testutil.CreateTestUser(t, db)
	card := testutil.CreateTestCard(t, db, user.ID)
	rec := testutil.CreateTestRecurring(t, db, user.ID, card.ID, 5000,
		models.DirectionOut, models.FrequencyMonth, 1, date(2025, 1, 1))

	t.Run("overrides a single occurrence", func(t *testing.T) {
		instance := testutil.CreateTestInstance(t, db, rec, date(2025, 1, 1))
		amount := int64(7500)
		newDate := date(2025, 1, 3)

		modified, err := svc.ModifyInstance(user.ID, instance.ID, &amount, &newDate)
		testutil.AssertNoError(t, err)
		if modified.Status != models.InstanceStatusModified {
			t.Errorf("expected modified, got %s", modified.Status)
		}

		var reloaded models.RecurringInstance
		testutil.AssertNoError(t, db.Where("id = ?", instance.ID).First(&reloaded).Error)
		if reloaded.ScheduledAmount != 7500 || !reloaded.ScheduledDate.Equal(newDate) {
			t.Errorf("override not persisted: %d %v", reloaded.ScheduledAmount, reloaded.ScheduledDate)
		}

		// The template itself is untouched.
		var reloadedRec models.Recurring
		testutil.AssertNoError(t, db.Where("id = ?", rec.ID).First(&reloadedRec).Error)
		if reloadedRec.Amount != 5000 {
			t.Errorf("template amount changed: %d", reloadedRec.Amount)
		}
	})

	t.Run("modified instance can be modified again", func(t *testing.T) {
		instance := testutil.CreateTestInstance(t, db, rec, date(2025, 2, 1))
		amount := int64(6000)
		_, err := svc.ModifyInstance(user.ID, instance.ID, &amount, nil)
		testutil.AssertNoError(t, err)

		amount = 6500
		_, err = svc.ModifyInstance(user.ID, instance.ID, &amount, nil)
		testutil.AssertNoError(t, err)
	})

	t.Run("requires at least one field", func(t *testing.T) {
		instance := testutil.CreateTestInstance(t, db, rec, date(2025, 3, 1))
		_, err := svc.ModifyInstance(user.ID, instance.ID, nil, nil)
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		instance := testutil.CreateTestInstance(t, db, rec, date(2025, 4, 1))
		amount := int64(0)
		_, err := svc.ModifyInstance(user.ID, instance.ID, &amount, nil)
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("terminal instance cannot be modified", func(t *testing.T) {
		instance := testutil.CreateTestInstance(t, db, rec, date(2025, 5, 1))
		_, err := svc.SkipInstance(user.ID, instance.ID, "")
		testutil.AssertNoError(t, err)

		amount := int64(6000)
		_, err = svc.ModifyInstance(user.ID, instance.ID, &amount, nil)
		testutil.AssertAppError(t, err, "INSTANCE_NOT_ACTIONABLE")
	})
}

func TestGetUserInstances(t *testing.T) {
	db, _, svc := setupInstanceService(t)

	user := testutil.CreateTestUser(t, db)
	card := testutil.CreateTestCard(t, db, user.ID)
	rec := testutil.CreateTestRecurring(t, db, user.ID, card.ID, 5000,
		models.DirectionOut, models.FrequencyMonth, 1, date(2025, 1, 1))

	past := testutil.CreateTestInstance(t, db, rec, date(2025, 1, 1))
	future := testutil.CreateTestInstance(t, db, rec, time.Now().Add(30*24*time.Hour))

	t.Run("past-due pending instances read as overdue", func(t *testing.T) {
		result, err := svc.GetUserInstances(user.ID, pagination.PageRequest{}, InstanceFilter{})
		testutil.AssertNoError(t, err)
		if result.TotalItems != 2 {
			t.Fatalf("expected 2 instances, got %d", result.TotalItems)
		}

		statuses := make(map[string]models.InstanceStatus, 2)
		for _, inst := range result.Data {
			statuses[inst.ID] = inst.Status
		}
		if statuses[past.ID] != models.InstanceStatusOverdue {
			t.Errorf("expected past instance to read overdue, got %s", statuses[past.ID])
		}
		if statuses[future.ID] != models.InstanceStatusPending {
			t.Errorf("expected future instance to stay pending, got %s", statuses[future.ID])
		}
	})

	t.Run("overdue filter matches only past-due pendings", func(t *testing.T) {
		status := models.InstanceStatusOverdue
		result, err := svc.GetUserInstances(user.ID, pagination.PageRequest{}, InstanceFilter{Status: &status})
		testutil.AssertNoError(t, err)
		if result.TotalItems != 1 {
			t.Fatalf("expected 1 overdue instance, got %d", result.TotalItems)
		}
		if result.Data[0].ID != past.ID {
			t.Errorf("expected the past instance, got %s", result.Data[0].ID)
		}
	})

	t.Run("derived status is never written back", func(t *testing.T) {
		var stored models.RecurringInstance
		testutil.AssertNoError(t, db.Where("id = ?", past.ID).First(&stored).Error)
		if stored.Status != models.InstanceStatusPending {
			t.Errorf("overdue leaked into storage: %s", stored.Status)
		}
	})

	t.Run("date window filters on scheduled date", func(t *testing.T) {
		from := date(2025, 1, 1)
		to := date(2025, 12, 31)
		result, err := svc.GetUserInstances(user.ID, pagination.PageRequest{}, InstanceFilter{FromDate: &from, ToDate: &to})
		testutil.AssertNoError(t, err)
		if result.TotalItems != 1 {
			t.Errorf("expected 1 instance in 2025 window, got %d", result.TotalItems)
		}
	})

	t.Run("other users see nothing", func(t *testing.T) {
		other := testutil.CreateTestUser(t, db)
		result, err := svc.GetUserInstances(other.ID, pagination.PageRequest{}, InstanceFilter{})
		testutil.AssertNoError(t, err)
		if result.TotalItems != 0 {
			t.Errorf("expected 0 instances, got %d", result.TotalItems)
		}
	})
}

func TestProjectedBalance(t *testing.T) {
	db, recurringService, svc := setupInstanceService(t)

	user := testutil.CreateTestUser(t, db)

	t.Run("combines settled balance with outstanding instances", func(t *testing.T) {
		card := testutil.CreateTestCardWithBalance(t, db, user.ID, 200000)
		// 50000 out monthly from Jan, 30000 in monthly from Jan.
		testutil.CreateTestRecurring(t, db, user.ID, card.ID, 50000,
			models.DirectionOut, models.FrequencyMonth, 1, date(2025, 1, 15))
		testutil.CreateTestRecurring(t, db, user.ID, card.ID, 30000,
			models.DirectionIn, models.FrequencyMonth, 1, date(2025, 1, 20))

		projection, err := svc.ProjectedBalance(user.ID, card.ID, date(2025, 3, 31), nil)
		testutil.AssertNoError(t, err)

		// Three occurrences each by the end of March: 3*(-50000+30000).
		if projection.OutstandingDelta != -60000 {
			t.Errorf("expected outstanding delta -60000, got %d", projection.OutstandingDelta)
		}
		if projection.ProjectedBalance != 140000 {
			t.Errorf("expected projected balance 140000, got %d", projection.ProjectedBalance)
		}
		if projection.SettledBalance != 200000 {
			t.Errorf("expected settled balance 200000, got %d", projection.SettledBalance)
		}
	})

	t.Run("read-through materializes instances beyond the default window", func(t *testing.T) {
		card := testutil.CreateTestCardWithBalance(t, db, user.ID, 0)
		rec := testutil.CreateTestRecurring(t, db, user.ID, card.ID, 1000,
			models.DirectionOut, models.FrequencyMonth, 1, date(2025, 1, 1))

		_, err := svc.ProjectedBalance(user.ID, card.ID, date(2026, 6, 1), nil)
		testutil.AssertNoError(t, err)

		var count int64
		db.Model(&models.RecurringInstance{}).Where("recurring_id = ?", rec.ID).Count(&count)
		if count != 18 {
			t.Errorf("expected 18 materialized instances, got %d", count)
		}
	})

	t.Run("no outstanding instances returns exactly the settled balance", func(t *testing.T) {
		card := testutil.CreateTestCardWithBalance(t, db, user.ID, 31337)
		projection, err := svc.ProjectedBalance(user.ID, card.ID, date(2025, 12, 31), nil)
		testutil.AssertNoError(t, err)
		if projection.ProjectedBalance != 31337 {
			t.Errorf("expected projected balance 31337, got %d", projection.ProjectedBalance)
		}
		if projection.OutstandingDelta != 0 {
			t.Errorf("expected zero outstanding delta, got %d", projection.OutstandingDelta)
		}
	})

	t.Run("completed and skipped instances contribute nothing", func(t *testing.T) {
		card := testutil.CreateTestCardWithBalance(t, db, user.ID, 100000)
		rec := testutil.CreateTestRecurring(t, db, user.ID, card.ID, 10000,
			models.DirectionOut, models.FrequencyDay, 7, date(2025, 6, 1))
		testutil.AssertNoError(t, recurringService.EnsureInstancesTx(db, rec, date(2025, 6, 22)))

		var instances []models.RecurringInstance
		testutil.AssertNoError(t, db.Where("recurring_id = ?", rec.ID).Order("scheduled_date ASC").Find(&instances).Error)
		if len(instances) != 4 {
			t.Fatalf("expected 4 instances, got %d", len(instances))
		}

		_, err := svc.CompleteInstance(user.ID, instances[0].ID, CompleteOverrides{})
		testutil.AssertNoError(t, err)
		_, err = svc.SkipInstance(user.ID, instances[1].ID, "")
		testutil.AssertNoError(t, err)

		projection, err := svc.ProjectedBalance(user.ID, card.ID, date(2025, 6, 22), nil)
		testutil.AssertNoError(t, err)

		// Settled dropped to 90000 by the completion; two pendings remain.
		if projection.SettledBalance != 90000 {
			t.Errorf("expected settled 90000, got %d", projection.SettledBalance)
		}
		if projection.OutstandingDelta != -20000 {
			t.Errorf("expected outstanding -20000, got %d", projection.OutstandingDelta)
		}
		if projection.ProjectedBalance != 70000 {
			t.Errorf("expected projected 70000, got %d", projection.ProjectedBalance)
		}
	})

	t.Run("lower bound excludes earlier outstanding instances", func(t *testing.T) {
		card := testutil.CreateTestCardWithBalance(t, db, user.ID, 0)
		rec := testutil.CreateTestRecurring(t, db, user.ID, card.ID, 1000,
			models.DirectionOut, models.FrequencyDay, 7, date(2025, 7, 1))
		testutil.AssertNoError(t, recurringService.EnsureInstancesTx(db, rec, date(2025, 7, 22)))

		from := date(2025, 7, 8)
		projection, err := svc.ProjectedBalance(user.ID, card.ID, date(2025, 7, 22), &from)
		testutil.AssertNoError(t, err)

		// Strictly-after lower bound: 07-15 and 07-22 only.
		if projection.OutstandingDelta != -2000 {
			t.Errorf("expected outstanding -2000, got %d", projection.OutstandingDelta)
		}
	})

	t.Run("rejects a lower bound at or after the projection date", func(t *testing.T) {
		card := testutil.CreateTestCard(t, db, user.ID)
		from := date(2025, 8, 1)
		_, err := svc.ProjectedBalance(user.ID, card.ID, date(2025, 8, 1), &from)
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("rejects a card the user does not own", func(t *testing.T) {
		other := testutil.CreateTestUser(t, db)
		otherCard := testutil.CreateTestCard(t, db, other.ID)
		_, err := svc.ProjectedBalance(user.ID, otherCard.ID, date(2025, 9, 1), nil)
		testutil.AssertAppError(t, err, "CARD_NOT_FOUND")
	})
}
