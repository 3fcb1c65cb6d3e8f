package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dormhub/api/internal/repository"
)

type alarmResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

func (h HandlerSet) ListMyAlarms(c *gin.Context) {
	caller, ok := currentProfile(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit, offset := pagination(c)
	alarms, err := h.alarms.ListByUser(c.Request.Context(), caller.ID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]alarmResponse, 0, len(alarms))
	for _, alarm := range alarms {
		resp = append(resp, alarmResponse{
			ID:        alarm.ID,
			Title:     alarm.Title,
			Body:      alarm.Body,
			Read:      alarm.Read,
			CreatedAt: alarm.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"alarms": resp,
	})
}

func (h HandlerSet) MarkAlarmRead(c *gin.Context) {
	caller, ok := currentProfile(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.alarms.MarkRead(c.Request.Context(), c.Param("id"), caller.ID); err != nil {
		if errors.Is(err, repository.ErrAlarmNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "alarm_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h HandlerSet) MarkAllAlarmsRead(c *gin.Context) {
	caller, ok := currentProfile(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.alarms.MarkAllRead(c.Request.Context(), caller.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

type broadcastAlarmRequest struct {
	Title string `json:"title" binding:"required"`
	Body  string `json:"body" binding:"required"`
}

func (h HandlerSet) AdminBroadcastAlarm(c *gin.Context) {
	var req broadcastAlarmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	count, err := h.alarms.CreateForAllStudents(c.Request.Context(), req.Title, req.Body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"delivered": count,
	})
}
