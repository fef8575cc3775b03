package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetOAuthAuthorizeURL returns the MercadoPago authorization URL. Opening it
// in a browser is the caller's business.
func (h *Handler) GetOAuthAuthorizeURL(c *gin.Context) {
	url, err := currentPanel(c).OAuthAuthorizeURL(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// PostOAuthUnlink disconnects the MercadoPago account and re-reads link
// status. The confirmation step lives in the caller's UI.
func (h *Handler) PostOAuthUnlink(c *gin.Context) {
	if err := currentPanel(c).OAuthUnlink(c.Request.Context()); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Cuenta MercadoPago desvinculada correctamente."})
}
