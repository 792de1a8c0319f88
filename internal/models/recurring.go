package models

import "time"

// RecurringFrequency is the calendar unit a recurring template advances by.
type RecurringFrequency string

const (
	FrequencyHour  RecurringFrequency = "hour"
	FrequencyDay   RecurringFrequency = "day"
	FrequencyMonth RecurringFrequency = "month"
	FrequencyYear  RecurringFrequency = "year"
)

// RecurringStatus represents the lifecycle of a recurring template.
type RecurringStatus string

const (
	RecurringStatusActive    RecurringStatus = "active"
	RecurringStatusPaused    RecurringStatus = "paused"
	RecurringStatusCompleted RecurringStatus = "completed"
	RecurringStatusCancelled RecurringStatus = "cancelled"
)

// Recurring is a template for a periodically materialized obligation
// (salary, subscription, rent). Instances reference it by foreign key;
// the template never holds live pointers to them.
type Recurring struct {
	Base
	UserID     string             `gorm:"type:uuid;not null;index" json:"user_id"`
	CardID     string             `gorm:"type:uuid;not null;index" json:"card_id"`
	CategoryID *string            `gorm:"type:uuid" json:"category_id,omitempty"`
	Name       string             `gorm:"not null" json:"name"`
	Amount     int64              `gorm:"type:bigint;not null" json:"amount"`
	Direction  Direction          `gorm:"not null" json:"direction"`
	Frequency  RecurringFrequency `gorm:"not null" json:"frequency"`
	Interval   int                `gorm:"not null;default:1" json:"interval"`
	StartDate  time.Time          `gorm:"not null" json:"start_date"`
	Status     RecurringStatus    `gorm:"not null;default:'active'" json:"status"`

	// Relationships
	Card      Card                `gorm:"foreignKey:CardID" json:"card,omitempty"`
	Category  *Category           `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Instances []RecurringInstance `gorm:"foreignKey:RecurringID" json:"instances,omitempty"`
}

// InstanceStatus represents the lifecycle of one materialized occurrence.
// "overdue" is derived at read time from a pending instance whose scheduled
// date has passed; it is never stored.
type InstanceStatus string

const (
	InstanceStatusPending   InstanceStatus = "pending"
	InstanceStatusOverdue   InstanceStatus = "overdue"
	InstanceStatusModified  InstanceStatus = "modified"
	InstanceStatusCompleted InstanceStatus = "completed"
	InstanceStatusSkipped   InstanceStatus = "skipped"
	InstanceStatusCancelled InstanceStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are permitted.
func (s InstanceStatus) IsTerminal() bool {
	switch s {
	case InstanceStatusCompleted, InstanceStatusSkipped, InstanceStatusCancelled:
		return true
	}
	return false
}

// RecurringInstance is one concrete, date-stamped occurrence of a template.
// The (recurring_id, scheduled_date) pair is unique so regeneration can
// never duplicate an existing occurrence.
type RecurringInstance struct {
	Base
	RecurringID     string         `gorm:"type:uuid;not null;uniqueIndex:idx_recurring_instances_schedule" json:"recurring_id"`
	ScheduledDate   time.Time      `gorm:"not null;uniqueIndex:idx_recurring_instances_schedule" json:"scheduled_date"`
	ScheduledAmount int64          `gorm:"type:bigint;not null" json:"scheduled_amount"`
	Direction       Direction      `gorm:"not null" json:"direction"`
	Status          InstanceStatus `gorm:"not null;default:'pending'" json:"status"`
	ActualDate      *time.Time     `json:"actual_date,omitempty"`
	ActualAmount    *int64         `gorm:"type:bigint" json:"actual_amount,omitempty"`
	TransactionID   *string        `gorm:"type:uuid" json:"transaction_id,omitempty"`
	SkipReason      string         `json:"skip_reason,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`

	// Relationships
	Recurring   Recurring    `gorm:"foreignKey:RecurringID" json:"recurring,omitempty"`
	Transaction *Transaction `gorm:"foreignKey:TransactionID" json:"transaction,omitempty"`
}

// StatusAt returns the status as observed at the given time: a pending
// instance whose scheduled date has passed reads as overdue.
func (i *RecurringInstance) StatusAt(now time.Time) InstanceStatus {
	if i.Status == InstanceStatusPending && i.ScheduledDate.Before(now) {
		return InstanceStatusOverdue
	}
	return i.Status
}

// Outstanding reports whether the instance still contributes to a
// forward balance projection (not yet settled, skipped, or cancelled).
func (i *RecurringInstance) Outstanding() bool {
	return i.Status == InstanceStatusPending || i.Status == InstanceStatusModified
}
