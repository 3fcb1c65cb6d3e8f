package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dormhub/api/internal/ids"
	"dormhub/api/internal/models"
	"dormhub/api/internal/repository"
)

type applicationResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Type      string    `json:"type"`
	Date      string    `json:"date"`
	Reason    string    `json:"reason"`
	Status    string    `json:"status"`
	DecidedBy *string   `json:"decidedBy"`
	CreatedAt time.Time `json:"createdAt"`
}

func toApplicationResponse(app models.Application) applicationResponse {
	return applicationResponse{
		ID:        app.ID,
		UserID:    app.UserID,
		Type:      string(app.Type),
		Date:      app.Date.Format("2006-01-02"),
		Reason:    app.Reason,
		Status:    string(app.Status),
		DecidedBy: app.DecidedBy,
		CreatedAt: app.CreatedAt,
	}
}

type submitApplicationRequest struct {
	Type   string `json:"type" binding:"required,oneof=leave exit"`
	Date   string `json:"date" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

// SubmitApplication files a leave or exit request. A student gets one
// application per day regardless of type.
func (h HandlerSet) SubmitApplication(c *gin.Context) {
	caller, ok := currentProfile(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req submitApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	exists, err := h.applications.ExistsForDate(c.Request.Context(), caller.ID, date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if exists {
		c.JSON(http.StatusConflict, gin.H{"error": "application_exists_for_date"})
		return
	}

	app := models.Application{
		ID:     ids.New(),
		UserID: caller.ID,
		Type:   models.ApplicationType(req.Type),
		Date:   date,
		Reason: req.Reason,
		Status: models.ApplicationPending,
	}
	if err := h.applications.Create(c.Request.Context(), app); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	created, err := h.applications.GetByID(c.Request.Context(), app.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, toApplicationResponse(created))
}

func (h HandlerSet) ListMyApplications(c *gin.Context) {
	caller, ok := currentProfile(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit, offset := pagination(c)
	apps, err := h.applications.ListByUser(c.Request.Context(), caller.ID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]applicationResponse, 0, len(apps))
	for _, app := range apps {
		resp = append(resp, toApplicationResponse(app))
	}

	c.JSON(http.StatusOK, gin.H{
		"applications": resp,
	})
}

func (h HandlerSet) AdminListApplications(c *gin.Context) {
	status := models.ApplicationStatus(c.DefaultQuery("status", string(models.ApplicationPending)))
	switch status {
	case models.ApplicationPending, models.ApplicationApproved, models.ApplicationRejected:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	limit, offset := pagination(c)
	apps, err := h.applications.ListByStatus(c.Request.Context(), status, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]applicationResponse, 0, len(apps))
	for _, app := range apps {
		resp = append(resp, toApplicationResponse(app))
	}

	c.JSON(http.StatusOK, gin.H{
		"applications": resp,
	})
}

type decideApplicationRequest struct {
	Approve bool `json:"approve"`
}

func (h HandlerSet) AdminDecideApplication(c *gin.Context) {
	caller, ok := currentProfile(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req decideApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status := models.ApplicationRejected
	if req.Approve {
		status = models.ApplicationApproved
	}

	id := c.Param("id")
	if err := h.applications.Decide(c.Request.Context(), id, status, caller.ID); err != nil {
		if errors.Is(err, repository.ErrApplicationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "application_not_pending"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	decided, err := h.applications.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, toApplicationResponse(decided))
}
