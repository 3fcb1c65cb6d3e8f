package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"dormhub/api/internal/ids"
	"dormhub/api/internal/models"
	"dormhub/api/internal/repository"
)

type noticeResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	AuthorID  string    `json:"authorId"`
	Pinned    bool      `json:"pinned"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toNoticeResponse(n models.Notice) noticeResponse {
	return noticeResponse{
		ID:        n.ID,
		Title:     n.Title,
		Body:      n.Body,
		AuthorID:  n.AuthorID,
		Pinned:    n.Pinned,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (h HandlerSet) ListNotices(c *gin.Context) {
	limit, offset := pagination(c)
	notices, err := h.notices.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]noticeResponse, 0, len(notices))
	for _, notice := range notices {
		resp = append(resp, toNoticeResponse(notice))
	}

	c.JSON(http.StatusOK, gin.H{
		"notices": resp,
	})
}

func (h HandlerSet) GetNotice(c *gin.Context) {
	notice, err := h.notices.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNoticeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notice_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, toNoticeResponse(notice))
}

type noticeRequest struct {
	Title  string `json:"title" binding:"required"`
	Body   string `json:"body" binding:"required"`
	Pinned bool   `json:"pinned"`
}

func (h HandlerSet) AdminCreateNotice(c *gin.Context) {
	caller, ok := currentProfile(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req noticeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	notice := models.Notice{
		ID:       ids.New(),
		Title:    req.Title,
		Body:     req.Body,
		AuthorID: caller.ID,
		Pinned:   req.Pinned,
	}
	if err := h.notices.Create(c.Request.Context(), notice); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	created, err := h.notices.GetByID(c.Request.Context(), notice.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, toNoticeResponse(created))
}

func (h HandlerSet) AdminUpdateNotice(c *gin.Context) {
	var req noticeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	notice := models.Notice{
		ID:     c.Param("id"),
		Title:  req.Title,
		Body:   req.Body,
		Pinned: req.Pinned,
	}
	if err := h.notices.Update(c.Request.Context(), notice); err != nil {
		if errors.Is(err, repository.ErrNoticeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notice_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.notices.GetByID(c.Request.Context(), notice.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, toNoticeResponse(updated))
}

func (h HandlerSet) AdminDeleteNotice(c *gin.Context) {
	if err := h.notices.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, repository.ErrNoticeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notice_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}
