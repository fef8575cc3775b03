package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// PostModeToggle flips between test and live payments and reports the
// confirmed mode after a fresh config read.
func (h *Handler) PostModeToggle(c *gin.Context) {
	mode, err := currentPanel(c).ToggleMode(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mode": mode, "live": mode == "live"})
}
