package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dispen-agua-admin/internal/backend"
)

type loginRequest struct {
	Secret string `json:"secret" binding:"required"`
}

// PostLogin validates the admin secret against the backend's dispenser list
// and opens a session. A bad secret or unreachable backend leaves the caller
// logged out.
func (h *Handler) PostLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.sessions.Login(c.Request.Context(), req.Secret)
	if err != nil {
		if backend.IsAuthError(err) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Contraseña inválida"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "Backend inaccesible: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// PostLogout ends the session and cancels its polling timer.
func (h *Handler) PostLogout(c *gin.Context) {
	h.sessions.Logout(c.GetHeader(TokenHeader))
	c.Status(http.StatusNoContent)
}
