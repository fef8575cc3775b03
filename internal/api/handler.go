package api

import (
	"errors"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"dispen-agua-admin/internal/archive"
	"dispen-agua-admin/internal/backend"
	"dispen-agua-admin/internal/panel"
	"dispen-agua-admin/internal/session"
)

// TokenHeader carries the dashboard session token.
const TokenHeader = "x-panel-token"

// Handler holds shared dependencies for API handlers.
type Handler struct {
	sessions *session.Manager
	archive  archive.Store
	webpush  *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(sessions *session.Manager, store archive.Store, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		sessions: sessions,
		archive:  store,
		webpush:  webpushOptions,
	}
}

const sessionKey = "panel_session"

// authRequired resolves the session token and aborts with 401 when it does
// not match the active session.
func authRequired(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := sessions.Get(c.GetHeader(TokenHeader))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not logged in"})
			return
		}
		c.Set(sessionKey, s)
		c.Next()
	}
}

// currentPanel returns the panel bound to the authenticated session.
func currentPanel(c *gin.Context) *panel.Panel {
	s := c.MustGet(sessionKey).(*session.Session)
	return s.Panel
}

// abortWithError translates panel/backend errors into HTTP responses.
// Validation failures were blocked before any upstream call; upstream
// rejections keep their method/path/status/body text so the operator sees
// exactly what failed.
func abortWithError(c *gin.Context, err error) {
	if panel.IsValidation(err) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var reqErr *backend.RequestError
	if errors.As(err, &reqErr) {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{
			"error":           reqErr.Error(),
			"upstream_status": reqErr.Status,
		})
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
