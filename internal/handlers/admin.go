package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h HandlerSet) AdminListStudents(c *gin.Context) {
	limit, offset := pagination(c)
	students, err := h.profiles.ListStudents(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]profileResponse, 0, len(students))
	for _, student := range students {
		resp = append(resp, toProfileResponse(student))
	}

	c.JSON(http.StatusOK, gin.H{
		"students": resp,
	})
}
