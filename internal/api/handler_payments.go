package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// PostPaymentRetry re-sends the dispense command for an approved but
// undispensed payment.
func (h *Handler) PostPaymentRetry(c *gin.Context) {
	paymentID, err := strconv.ParseInt(c.Param("payment_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment ID"})
		return
	}
	msg, err := currentPanel(c).RetryDispense(c.Request.Context(), paymentID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": msg})
}

// GetArchivedPayments lists locally archived payments, newest first. Unlike
// the live panel state this reaches beyond the backend's recent window.
func (h *Handler) GetArchivedPayments(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = n
	}
	records, err := h.archive.ListRecent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve archived payments"})
		return
	}
	c.JSON(http.StatusOK, records)
}
