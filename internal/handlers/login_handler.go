package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var input LoginRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		h.badRequest(c, "Invalid input")
		return
	}

	account, err := h.staff.Authenticate(input.Username, input.Password)
	if err != nil {
		h.log.Warn("login failed", "username", input.Username)
		h.fail(c, err)
		return
	}

	token, expires, err := h.tokens.Generate(account.Username, account.Role)
	if err != nil {
		h.log.Error("token signing failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"role":       account.Role,
		"username":   account.Username,
		"expires_at": expires,
	})
}
