package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dormhub/api/internal/ids"
	"dormhub/api/internal/models"
)

type pointEntryResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Kind      string    `json:"kind"`
	Points    int       `json:"points"`
	Reason    string    `json:"reason"`
	IssuedBy  string    `json:"issuedBy"`
	CreatedAt time.Time `json:"createdAt"`
}

func (h HandlerSet) ListMyPoints(c *gin.Context) {
	caller, ok := currentProfile(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit, offset := pagination(c)
	entries, err := h.points.ListByUser(c.Request.Context(), caller.ID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]pointEntryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, pointEntryResponse{
			ID:        entry.ID,
			UserID:    entry.UserID,
			Kind:      string(entry.Kind),
			Points:    entry.Points,
			Reason:    entry.Reason,
			IssuedBy:  entry.IssuedBy,
			CreatedAt: entry.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": resp,
	})
}

type createPointEntryRequest struct {
	UserID string `json:"userId" binding:"required"`
	Kind   string `json:"kind" binding:"required,oneof=merit demerit"`
	Points int    `json:"points" binding:"required,gt=0"`
	Reason string `json:"reason" binding:"required"`
}

// AdminCreatePointEntry records a merit or demerit and keeps the profile
// counters in step with the history.
func (h HandlerSet) AdminCreatePointEntry(c *gin.Context) {
	caller, ok := currentProfile(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req createPointEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry := models.PointEntry{
		ID:       ids.New(),
		UserID:   req.UserID,
		Kind:     models.PointKind(req.Kind),
		Points:   req.Points,
		Reason:   req.Reason,
		IssuedBy: caller.ID,
	}
	if err := h.points.Create(c.Request.Context(), entry); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.profiles.AdjustPoints(c.Request.Context(), req.UserID, entry.Kind, req.Points); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, pointEntryResponse{
		ID:       entry.ID,
		UserID:   entry.UserID,
		Kind:     string(entry.Kind),
		Points:   entry.Points,
		Reason:   entry.Reason,
		IssuedBy: entry.IssuedBy,
	})
}
