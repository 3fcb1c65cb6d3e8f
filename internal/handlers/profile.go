package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dormhub/api/internal/media/sniffer"
	"dormhub/api/internal/models"
	"dormhub/api/internal/repository"
)

const maxAvatarBytes = 5 << 20

// profileResponse mirrors the stored row, nullable columns included.
// Clients own normalization; the server reports what it knows.
type profileResponse struct {
	ID            string  `json:"id"`
	Email         *string `json:"email"`
	Name          *string `json:"name"`
	Role          string  `json:"role"`
	Status        string  `json:"status"`
	RoomNumber    *string `json:"roomNumber"`
	Address       *string `json:"address"`
	MeritPoints   *int    `json:"meritPoints"`
	DemeritPoints *int    `json:"demeritPoints"`
	InfoComplete  *bool   `json:"infoComplete"`
	AvatarURL     *string `json:"avatarUrl"`
}

func toProfileResponse(p models.Profile) profileResponse {
	return profileResponse{
		ID:            p.ID,
		Email:         p.Email,
		Name:          p.Name,
		Role:          string(p.Role),
		Status:        string(p.Status),
		RoomNumber:    p.RoomNumber,
		Address:       p.Address,
		MeritPoints:   p.MeritPoints,
		DemeritPoints: p.DemeritPoints,
		InfoComplete:  p.InfoComplete,
		AvatarURL:     p.AvatarURL,
	}
}

func (h HandlerSet) GetProfile(c *gin.Context) {
	caller, ok := currentProfile(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id := c.Param("id")
	if id != caller.ID && caller.Role != models.UserRoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	profile, err := h.profiles.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "profile_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, toProfileResponse(profile))
}

type updateInfoRequest struct {
	Name       string `json:"name" binding:"required"`
	RoomNumber string `json:"roomNumber" binding:"required"`
	Address    string `json:"address" binding:"required"`
}

// UpdateMyInfo completes the onboarding form. Submitting it marks the
// profile info_complete.
func (h HandlerSet) UpdateMyInfo(c *gin.Context) {
	caller, ok := currentProfile(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req updateInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.profiles.UpdateInfo(c.Request.Context(), caller.ID, req.Name, req.RoomNumber, req.Address); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	profile, err := h.profiles.GetByID(c.Request.Context(), caller.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, toProfileResponse(profile))
}

func (h HandlerSet) UploadAvatar(c *gin.Context) {
	caller, ok := currentProfile(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	if fileHeader.Size > maxAvatarBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer file.Close()

	result, head, err := sniffer.Detect(file)
	if err != nil {
		if errors.Is(err, sniffer.ErrUnknownType) {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported image type"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	body := io.MultiReader(bytes.NewReader(head), file)
	objectName, err := h.store.PutAvatar(c.Request.Context(), caller.ID, result.MIME, body, fileHeader.Size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	avatarURL, err := h.store.PresignedAvatarURL(c.Request.Context(), objectName, 7*24*time.Hour)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.profiles.UpdateAvatarURL(c.Request.Context(), caller.ID, avatarURL); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"avatarUrl": avatarURL,
	})
}
