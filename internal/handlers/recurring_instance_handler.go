package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "cashlog/internal/errors"
	"cashlog/internal/models"
	"cashlog/internal/pagination"
	"cashlog/internal/services"
)

// RecurringInstanceHandler handles recurring instance requests.
type RecurringInstanceHandler struct {
	instanceService services.RecurringInstanceServicer
	auditService    services.AuditServicer
}

// NewRecurringInstanceHandler creates a new RecurringInstanceHandler.
func NewRecurringInstanceHandler(instanceService services.RecurringInstanceServicer, auditService services.AuditServicer) *RecurringInstanceHandler {
	return &RecurringInstanceHandler{instanceService: instanceService, auditService: auditService}
}

// InstanceResponse represents a recurring instance in the response
type InstanceResponse struct {
	ID              string                `json:"id"`
	RecurringID     string                `json:"recurring_id"`
	ScheduledDate   time.Time             `json:"scheduled_date"`
	ScheduledAmount int64                 `json:"scheduled_amount"`
	Direction       models.Direction      `json:"direction"`
	Status          models.InstanceStatus `json:"status"`
	ActualDate      *time.Time            `json:"actual_date,omitempty"`
	ActualAmount    *int64                `json:"actual_amount,omitempty"`
	TransactionID   *string               `json:"transaction_id,omitempty"`
}

// GetUserInstances handles the retrieval of recurring instances for the authenticated user
// @Summary     Get recurring instances
// @Description Get a paginated list of recurring instances across the user's definitions, with optional filters. Pending instances whose scheduled date has passed are reported as overdue.
// @Tags        recurring-instances
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Param       card_id   query string false "Filter by card ID"
// @Param       status    query string false "Filter by status (pending, overdue, modified, completed, skipped, cancelled)"
// @Param       from_date query string false "Filter by earliest scheduled date (RFC3339 or YYYY-MM-DD)"
// @Param       to_date   query string false "Filter by latest scheduled date (RFC3339 or YYYY-MM-DD)"
// @Success     200 {object} pagination.PageResponse[models.RecurringInstance] "Paginated instances"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurrings/recurring-instances [get]
func (h *RecurringInstanceHandler) GetUserInstances(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	filter, err := parseInstanceFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.instanceService.GetUserInstances(userID, page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// CompleteInstanceRequest represents the request payload for completing an instance
type CompleteInstanceRequest struct {
	Amount      *int64  `json:"amount" binding:"omitempty,gt=0"`
	Date        *string `json:"date"`
	Description *string `json:"description" binding:"omitempty,max=500"`
}

// CompleteInstance handles completing a recurring instance
// @Summary     Complete instance
// @Description Complete an outstanding instance: create the ledger transaction, apply the balance delta, and mark the instance completed, all atomically. Amount, date, and description default to the scheduled values.
// @Tags        recurring-instances
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                   true  "Instance ID"
// @Param       request body CompleteInstanceRequest false "Optional overrides"
// @Success     200 {object} InstanceResponse "Completed instance"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Instance not found"
// @Failure     409 {object} ErrorResponse "Instance is in a terminal state"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurrings/recurring-instances/{id}/complete [post]
func (h *RecurringInstanceHandler) CompleteInstance(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	instanceID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CompleteInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	overrides := services.CompleteOverrides{
		Amount:      req.Amount,
		Description: req.Description,
	}
	if req.Date != nil && *req.Date != "" {
		parsed, parseErr := parseFlexibleTime(*req.Date)
		if parseErr != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid date format, use RFC3339 or YYYY-MM-DD"))
			return
		}
		overrides.Date = &parsed
	}

	instance, err := h.instanceService.CompleteInstance(userID, instanceID, overrides)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "COMPLETE_INSTANCE", "recurring_instance", instanceID, c.ClientIP(),
		map[string]interface{}{"transaction_id": instance.TransactionID})

	c.JSON(http.StatusOK, gin.H{"instance": instance})
}

// SkipInstanceRequest represents the request payload for skipping an instance
type SkipInstanceRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// SkipInstance handles skipping a recurring instance
// @Summary     Skip instance
// @Description Skip a pending or overdue instance without touching the card balance
// @Tags        recurring-instances
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string              true  "Instance ID"
// @Param       request body SkipInstanceRequest false "Optional skip reason"
// @Success     200 {object} InstanceResponse "Skipped instance"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Instance not found"
// @Failure     409 {object} ErrorResponse "Instance cannot be skipped in its current state"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurrings/recurring-instances/{id}/skip [post]
func (h *RecurringInstanceHandler) SkipInstance(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	instanceID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req SkipInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	instance, err := h.instanceService.SkipInstance(userID, instanceID, req.Reason)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "SKIP_INSTANCE", "recurring_instance", instanceID, c.ClientIP(),
		map[string]interface{}{"reason": req.Reason})

	c.JSON(http.StatusOK, gin.H{"instance": instance})
}

// ModifyInstanceRequest represents the request payload for modifying a single occurrence
type ModifyInstanceRequest struct {
	Amount *int64  `json:"amount" binding:"omitempty,gt=0"`
	Date   *string `json:"date"`
}

// ModifyInstance handles overriding a single occurrence's amount and/or date
// @Summary     Modify instance
// @Description Override the scheduled amount and/or date of a single occurrence without changing its template. The instance keeps its divergent values through later regeneration.
// @Tags        recurring-instances
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                true "Instance ID"
// @Param       request body ModifyInstanceRequest true "Fields to override"
// @Success     200 {object} InstanceResponse "Modified instance"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Instance not found"
// @Failure     409 {object} ErrorResponse "Instance is in a terminal state"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurrings/recurring-instances/{id} [put]
func (h *RecurringInstanceHandler) ModifyInstance(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	instanceID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ModifyInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var date *time.Time
	if req.Date != nil && *req.Date != "" {
		parsed, parseErr := parseFlexibleTime(*req.Date)
		if parseErr != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid date format, use RFC3339 or YYYY-MM-DD"))
			return
		}
		date = &parsed
	}

	instance, err := h.instanceService.ModifyInstance(userID, instanceID, req.Amount, date)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "MODIFY_INSTANCE", "recurring_instance", instanceID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"instance": instance})
}

// CreateTransactionFromInstanceRequest represents the manual completion payload
type CreateTransactionFromInstanceRequest struct {
	Amount      int64   `json:"amount" binding:"required,gt=0"`
	Date        string  `json:"date" binding:"required"`
	Description *string `json:"description" binding:"omitempty,max=500"`
}

// CreateTransactionFromInstance handles the manual completion path
// @Summary     Create transaction from instance
// @Description Complete an instance with fully caller-supplied amount and date. Equivalent to complete with explicit overrides.
// @Tags        recurring-instances
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                               true "Instance ID"
// @Param       request body CreateTransactionFromInstanceRequest true "Transaction details"
// @Success     200 {object} InstanceResponse "Completed instance"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Instance not found"
// @Failure     409 {object} ErrorResponse "Instance is in a terminal state"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurrings/recurring-instances/{id}/create-transaction [post]
func (h *RecurringInstanceHandler) CreateTransactionFromInstance(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	instanceID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateTransactionFromInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	date, err := parseFlexibleTime(req.Date)
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid date format, use RFC3339 or YYYY-MM-DD"))
		return
	}

	overrides := services.CompleteOverrides{
		Amount:      &req.Amount,
		Date:        &date,
		Description: req.Description,
	}

	instance, err := h.instanceService.CompleteInstance(userID, instanceID, overrides)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_TRANSACTION_FROM_INSTANCE", "recurring_instance", instanceID, c.ClientIP(),
		map[string]interface{}{"amount": req.Amount, "transaction_id": instance.TransactionID})

	c.JSON(http.StatusOK, gin.H{"instance": instance})
}

// ProjectedBalanceResponse represents a forward balance projection in the response
type ProjectedBalanceResponse struct {
	CardID           string    `json:"card_id"`
	SettledBalance   int64     `json:"settled_balance"`
	OutstandingDelta int64     `json:"outstanding_delta"`
	ProjectedBalance int64     `json:"projected_balance"`
	UpToDate         time.Time `json:"up_to_date"`
}

// GetProjectedBalance handles forward balance projection for a card
// @Summary     Get projected balance
// @Description Project a card's balance at a future date: settled balance plus the signed sum of outstanding instances scheduled up to that date. Read-only apart from materializing missing instances.
// @Tags        recurring-instances
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       card_id    query string true  "Card ID"
// @Param       up_to_date query string true  "Projection date (RFC3339 or YYYY-MM-DD)"
// @Param       from_date  query string false "Lower bound; omit to include every outstanding instance"
// @Success     200 {object} ProjectedBalanceResponse "Projected balance"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Card not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurrings/recurring-instances/projected-balance [get]
func (h *RecurringInstanceHandler) GetProjectedBalance(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	cardID := c.Query("card_id")
	if cardID == "" {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "card_id is required"))
		return
	}

	upToStr := c.Query("up_to_date")
	if upToStr == "" {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "up_to_date is required"))
		return
	}
	upTo, err := parseFlexibleTime(upToStr)
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid up_to_date format, use RFC3339 or YYYY-MM-DD"))
		return
	}

	var from *time.Time
	if v := c.Query("from_date"); v != "" {
		parsed, parseErr := parseFlexibleTime(v)
		if parseErr != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid from_date format, use RFC3339 or YYYY-MM-DD"))
			return
		}
		from = &parsed
	}

	projection, err := h.instanceService.ProjectedBalance(userID, cardID, upTo, from)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"projection": projection})
}

func parseInstanceFilter(c *gin.Context) (services.InstanceFilter, error) {
	var filter services.InstanceFilter

	if v := c.Query("card_id"); v != "" {
		cardID := v
		filter.CardID = &cardID
	}

	if v := c.Query("status"); v != "" {
		status := models.InstanceStatus(v)
		switch status {
		case models.InstanceStatusPending, models.InstanceStatusOverdue,
			models.InstanceStatusModified, models.InstanceStatusCompleted,
			models.InstanceStatusSkipped, models.InstanceStatusCancelled:
			filter.Status = &status
		default:
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid status, must be pending, overdue, modified, completed, skipped, or cancelled")
		}
	}

	if v := c.Query("from_date"); v != "" {
		t, err := parseFlexibleTime(v)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid from_date format, use RFC3339 or YYYY-MM-DD")
		}
		filter.FromDate = &t
	}

	if v := c.Query("to_date"); v != "" {
		t, err := parseFlexibleTime(v)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid to_date format, use RFC3339 or YYYY-MM-DD")
		}
		filter.ToDate = &t
	}

	return filter, nil
}
