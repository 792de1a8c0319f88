package services

import (
	"time"

	"gorm.io/gorm"

	"cashlog/internal/models"
	"cashlog/internal/pagination"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
}

// CardServicer is the narrow contract to the card collaborator: the engine
// only ever reads a card and applies signed balance deltas through it.
type CardServicer interface {
	GetCardByID(userID, cardID string) (*models.Card, error)
	ApplyBalanceDelta(tx *gorm.DB, card *models.Card, direction models.Direction, amount int64) error
}

// CategoryServicer is the read-only category lookup collaborator.
type CategoryServicer interface {
	GetCategoryByID(userID, categoryID string) (*models.Category, error)
}

// TransactionServicer is the ledger collaborator: create and delete entries
// by id. The *Tx variants run on the caller's database transaction so that
// instance completion and cascade reversal stay atomic.
type TransactionServicer interface {
	CreateTransactionTx(tx *gorm.DB, userID, cardID string, categoryID *string, direction models.Direction, amount int64, description string, date time.Time) (*models.Transaction, error)
	DeleteTransactionTx(tx *gorm.DB, transactionID string) error
	GetTransactionByID(userID, transactionID string) (*models.Transaction, error)
}

// RecurringUpdate holds the optional template field changes for an update.
type RecurringUpdate struct {
	Name       *string
	Amount     *int64
	Direction  *models.Direction
	Frequency  *models.RecurringFrequency
	Interval   *int
	StartDate  *time.Time
	CategoryID *string
}

// CascadeOptions selects the delete-cascade behavior.
type CascadeOptions struct {
	DeleteInstances           bool
	KeepCompletedTransactions bool
}

// RecurringServicer defines the contract for recurring template logic:
// definition CRUD, pause/resume, instance generation, and cascades.
type RecurringServicer interface {
	CreateRecurring(userID, cardID string, categoryID *string, name string, amount int64, direction models.Direction, frequency models.RecurringFrequency, interval int, startDate time.Time) (*models.Recurring, error)
	GetUserRecurrings(userID string, page pagination.PageRequest, cardID *string) (*pagination.PageResponse[models.Recurring], error)
	GetRecurringByID(userID, recurringID string) (*models.Recurring, error)
	UpdateRecurring(userID, recurringID string, changes RecurringUpdate, applyToFuture bool) (*models.Recurring, error)
	DeleteRecurring(userID, recurringID string, opts CascadeOptions) error
	PauseRecurring(userID, recurringID string) (*models.Recurring, error)
	ResumeRecurring(userID, recurringID string) (*models.Recurring, error)
	EnsureInstancesTx(tx *gorm.DB, rec *models.Recurring, upTo time.Time) error
}

// InstanceFilter holds optional filter parameters for listing instances.
type InstanceFilter struct {
	CardID   *string
	Status   *models.InstanceStatus
	FromDate *time.Time
	ToDate   *time.Time
}

// CompleteOverrides carries the optional caller overrides applied when an
// instance is turned into a real transaction.
type CompleteOverrides struct {
	Amount      *int64
	Date        *time.Time
	Description *string
}

// BalanceProjection is the result of a forward balance projection.
type BalanceProjection struct {
	CardID           string    `json:"card_id"`
	SettledBalance   int64     `json:"settled_balance"`
	OutstandingDelta int64     `json:"outstanding_delta"`
	ProjectedBalance int64     `json:"projected_balance"`
	UpToDate         time.Time `json:"up_to_date"`
}

// RecurringInstanceServicer defines the contract for instance lifecycle
// management, transaction linkage, and balance projection.
type RecurringInstanceServicer interface {
	GetUserInstances(userID string, page pagination.PageRequest, filter InstanceFilter) (*pagination.PageResponse[models.RecurringInstance], error)
	GetInstanceByID(userID, instanceID string) (*models.RecurringInstance, error)
	CompleteInstance(userID, instanceID string, overrides CompleteOverrides) (*models.RecurringInstance, error)
	SkipInstance(userID, instanceID, reason string) (*models.RecurringInstance, error)
	ModifyInstance(userID, instanceID string, amount *int64, date *time.Time) (*models.RecurringInstance, error)
	ProjectedBalance(userID, cardID string, upTo time.Time, from *time.Time) (*BalanceProjection, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
