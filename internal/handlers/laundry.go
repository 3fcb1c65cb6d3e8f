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

// Machines run three slots a day; both bounds are checked here so the
// repository only ever sees valid coordinates.
const (
	laundryMachines  = 4
	laundryTimeSlots = 3
)

type laundryResponse struct {
	ID         string `json:"id"`
	UserID     string `json:"userId"`
	UserName   string `json:"userName"`
	RoomNumber string `json:"roomNumber"`
	Date       string `json:"date"`
	Machine    int    `json:"machine"`
	TimeIndex  int    `json:"timeIndex"`
}

func toLaundryResponse(resv models.LaundryReservation) laundryResponse {
	return laundryResponse{
		ID:         resv.ID,
		UserID:     resv.UserID,
		UserName:   resv.UserName,
		RoomNumber: resv.RoomNumber,
		Date:       resv.Date.Format("2006-01-02"),
		Machine:    resv.Machine,
		TimeIndex:  resv.TimeIndex,
	}
}

func (h HandlerSet) ListLaundryDay(c *gin.Context) {
	date, err := time.Parse("2006-01-02", c.DefaultQuery("date", time.Now().Format("2006-01-02")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	reservations, err := h.laundry.ListByDate(c.Request.Context(), date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]laundryResponse, 0, len(reservations))
	for _, resv := range reservations {
		resp = append(resp, toLaundryResponse(resv))
	}

	c.JSON(http.StatusOK, gin.H{
		"date":         date.Format("2006-01-02"),
		"reservations": resp,
	})
}

type reserveLaundryRequest struct {
	Date      string `json:"date" binding:"required"`
	Machine   int    `json:"machine"`
	TimeIndex int    `json:"timeIndex"`
}

func (h HandlerSet) ReserveLaundry(c *gin.Context) {
	caller, ok := currentProfile(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req reserveLaundryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}
	if req.Machine < 0 || req.Machine >= laundryMachines || req.TimeIndex < 0 || req.TimeIndex >= laundryTimeSlots {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid slot"})
		return
	}

	resv := models.LaundryReservation{
		ID:        ids.New(),
		UserID:    caller.ID,
		Date:      date,
		Machine:   req.Machine,
		TimeIndex: req.TimeIndex,
	}
	if caller.Name != nil {
		resv.UserName = *caller.Name
	}
	if caller.RoomNumber != nil {
		resv.RoomNumber = *caller.RoomNumber
	}
	if err := h.laundry.Reserve(c.Request.Context(), resv); err != nil {
		if errors.Is(err, repository.ErrSlotTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "slot_taken"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	created, err := h.laundry.GetByID(c.Request.Context(), resv.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, toLaundryResponse(created))
}

func (h HandlerSet) CancelLaundry(c *gin.Context) {
	caller, ok := currentProfile(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.laundry.Cancel(c.Request.Context(), c.Param("id"), caller.ID); err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "reservation_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}
