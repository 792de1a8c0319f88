package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "cashlog/internal/errors"
	"cashlog/internal/models"
	"cashlog/internal/pagination"
	"cashlog/internal/services"
)

// RecurringHandler handles recurring template requests.
type RecurringHandler struct {
	recurringService services.RecurringServicer
	auditService     services.AuditServicer
}

// NewRecurringHandler creates a new RecurringHandler.
func NewRecurringHandler(recurringService services.RecurringServicer, auditService services.AuditServicer) *RecurringHandler {
	return &RecurringHandler{recurringService: recurringService, auditService: auditService}
}

// CreateRecurringRequest represents the request payload for creating a recurring template
type CreateRecurringRequest struct {
	CardID     string                    `json:"card_id" binding:"required,uuid"`
	CategoryID *string                   `json:"category_id" binding:"omitempty,uuid"`
	Name       string                    `json:"name" binding:"required,max=255"`
	Amount     int64                     `json:"amount" binding:"required,gt=0"`
	Direction  models.Direction          `json:"direction" binding:"required,direction"`
	Frequency  models.RecurringFrequency `json:"frequency" binding:"required,recurring_frequency"`
	Interval   int                       `json:"interval" binding:"required,min=1"`
	StartDate  string                    `json:"start_date" binding:"required"`
}

// RecurringResponse represents a recurring template in the response
type RecurringResponse struct {
	ID        string                    `json:"id"`
	UserID    string                    `json:"user_id"`
	CardID    string                    `json:"card_id"`
	Name      string                    `json:"name"`
	Amount    int64                     `json:"amount"`
	Direction models.Direction          `json:"direction"`
	Frequency models.RecurringFrequency `json:"frequency"`
	Interval  int                       `json:"interval"`
	StartDate time.Time                 `json:"start_date"`
	Status    models.RecurringStatus    `json:"status"`
}

// CreateRecurring handles the creation of a new recurring template
// @Summary     Create a recurring template
// @Description Create a recurring obligation template and generate its initial pending instances
// @Tags        recurrings
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateRecurringRequest true "Recurring template details"
// @Success     201 {object} RecurringResponse "Recurring created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Card or category not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurrings [post]
func (h *RecurringHandler) CreateRecurring(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateRecurringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	startDate, err := parseFlexibleTime(req.StartDate)
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid start_date format, use RFC3339 or YYYY-MM-DD"))
		return
	}

	recurring, err := h.recurringService.CreateRecurring(
		userID,
		req.CardID,
		req.CategoryID,
		req.Name,
		req.Amount,
		req.Direction,
		req.Frequency,
		req.Interval,
		startDate,
	)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_RECURRING", "recurring", recurring.ID, c.ClientIP(),
		map[string]interface{}{
			"name":      req.Name,
			"amount":    req.Amount,
			"direction": req.Direction,
			"frequency": req.Frequency,
			"interval":  req.Interval,
		})

	c.JSON(http.StatusCreated, gin.H{"recurring": recurring})
}

// GetUserRecurrings handles the retrieval of all recurring templates for the authenticated user
// @Summary     Get user recurrings
// @Description Get a paginated list of the authenticated user's recurring templates
// @Tags        recurrings
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Param       card_id   query string false "Filter by card ID"
// @Success     200 {object} pagination.PageResponse[models.Recurring] "Paginated recurrings"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurrings [get]
func (h *RecurringHandler) GetUserRecurrings(c *gin.Context) {
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

	var cardID *string
	if v := c.Query("card_id"); v != "" {
		cardID = &v
	}

	result, err := h.recurringService.GetUserRecurrings(userID, page, cardID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetRecurringByID handles the retrieval of a specific recurring template
// @Summary     Get recurring by ID
// @Description Get a recurring template by ID with its outstanding instances
// @Tags        recurrings
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Recurring ID"
// @Success     200 {object} RecurringResponse "Recurring details"
// @Failure     400 {object} ErrorResponse "Invalid recurring ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Recurring not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurrings/{id} [get]
func (h *RecurringHandler) GetRecurringByID(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	recurringID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	recurring, err := h.recurringService.GetRecurringByID(userID, recurringID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"recurring": recurring})
}

// UpdateRecurringRequest represents the request payload for updating a recurring template.
type UpdateRecurringRequest struct {
	Name          *string                    `json:"name" binding:"omitempty,max=255"`
	Amount        *int64                     `json:"amount" binding:"omitempty,gt=0"`
	Direction     *models.Direction          `json:"direction" binding:"omitempty,direction"`
	Frequency     *models.RecurringFrequency `json:"frequency" binding:"omitempty,recurring_frequency"`
	Interval      *int                       `json:"interval" binding:"omitempty,min=1"`
	StartDate     *string                    `json:"start_date"`
	CategoryID    *string                    `json:"category_id" binding:"omitempty,uuid"`
	ApplyToFuture bool                       `json:"apply_to_future"`
}

// UpdateRecurring handles updating an existing recurring template
// @Summary     Update recurring
// @Description Update a recurring template. With apply_to_future, outstanding future instances are regenerated from the new values; past and completed instances are never touched.
// @Tags        recurrings
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                  true "Recurring ID"
// @Param       request body UpdateRecurringRequest true "Fields to update"
// @Success     200 {object} RecurringResponse "Updated recurring"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Recurring not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurrings/{id} [put]
func (h *RecurringHandler) UpdateRecurring(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	recurringID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateRecurringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	changes := services.RecurringUpdate{
		Name:       req.Name,
		Amount:     req.Amount,
		Direction:  req.Direction,
		Frequency:  req.Frequency,
		Interval:   req.Interval,
		CategoryID: req.CategoryID,
	}

	if req.StartDate != nil && *req.StartDate != "" {
		parsed, parseErr := parseFlexibleTime(*req.StartDate)
		if parseErr != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid start_date format, use RFC3339 or YYYY-MM-DD"))
			return
		}
		changes.StartDate = &parsed
	}

	recurring, err := h.recurringService.UpdateRecurring(userID, recurringID, changes, req.ApplyToFuture)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_RECURRING", "recurring", recurringID, c.ClientIP(),
		map[string]interface{}{"apply_to_future": req.ApplyToFuture})

	c.JSON(http.StatusOK, gin.H{"recurring": recurring})
}

// DeleteRecurring handles the deletion of a recurring template
// @Summary     Delete recurring
// @Description Delete a recurring template. Without delete_instances the template and its outstanding instances are cancelled. With delete_instances all instances are removed and, unless keep_completed_transactions is set, the completed instances' transactions are deleted and their balance effects reversed.
// @Tags        recurrings
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id                          path  string true  "Recurring ID"
// @Param       delete_instances            query bool   false "Also delete all generated instances (default false)"
// @Param       keep_completed_transactions query bool   false "Keep transactions created from completed instances (default false)"
// @Success     200 {object} MessageResponse "Recurring deleted"
// @Failure     400 {object} ErrorResponse "Invalid recurring ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Recurring not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurrings/{id} [delete]
func (h *RecurringHandler) DeleteRecurring(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	recurringID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	opts := services.CascadeOptions{
		DeleteInstances:           parseBoolQuery(c, "delete_instances"),
		KeepCompletedTransactions: parseBoolQuery(c, "keep_completed_transactions"),
	}

	if err := h.recurringService.DeleteRecurring(userID, recurringID, opts); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_RECURRING", "recurring", recurringID, c.ClientIP(),
		map[string]interface{}{
			"delete_instances":            opts.DeleteInstances,
			"keep_completed_transactions": opts.KeepCompletedTransactions,
		})

	c.JSON(http.StatusOK, gin.H{"message": "Recurring deleted successfully"})
}

// PauseRecurring handles pausing an active recurring template
// @Summary     Pause recurring
// @Description Pause an active recurring template so no further instances are generated
// @Tags        recurrings
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Recurring ID"
// @Success     200 {object} RecurringResponse "Paused recurring"
// @Failure     400 {object} ErrorResponse "Invalid recurring ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Recurring not found"
// @Failure     409 {object} ErrorResponse "Recurring is not active"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurrings/{id}/pause [post]
func (h *RecurringHandler) PauseRecurring(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	recurringID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	recurring, err := h.recurringService.PauseRecurring(userID, recurringID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "PAUSE_RECURRING", "recurring", recurringID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"recurring": recurring})
}

// ResumeRecurring handles resuming a paused recurring template
// @Summary     Resume recurring
// @Description Resume a paused recurring template so instance generation continues
// @Tags        recurrings
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Recurring ID"
// @Success     200 {object} RecurringResponse "Resumed recurring"
// @Failure     400 {object} ErrorResponse "Invalid recurring ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Recurring not found"
// @Failure     409 {object} ErrorResponse "Recurring is not paused"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurrings/{id}/resume [post]
func (h *RecurringHandler) ResumeRecurring(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	recurringID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	recurring, err := h.recurringService.ResumeRecurring(userID, recurringID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "RESUME_RECURRING", "recurring", recurringID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"recurring": recurring})
}

func parseBoolQuery(c *gin.Context, name string) bool {
	v, err := strconv.ParseBool(c.DefaultQuery(name, "false"))
	if err != nil {
		return false
	}
	return v
}

// MessageResponse represents a simple message response
type MessageResponse struct {
	Message string `json:"message"`
}
