package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"dispen-agua-admin/internal/qr"
)

// GetState returns a snapshot of the synchronized panel state.
func (h *Handler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, currentPanel(c).Snapshot())
}

// PostDispenser creates a dispenser with server-side defaults and reloads
// the list.
func (h *Handler) PostDispenser(c *gin.Context) {
	d, err := currentPanel(c).CreateDispenser(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"dispenser": d})
}

// slotParams parses the dispenser id and slot number path params.
func slotParams(c *gin.Context) (int64, int, bool) {
	dispenserID, err := strconv.ParseInt(c.Param("dispenser_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid dispenser ID"})
		return 0, 0, false
	}
	slot, err := strconv.Atoi(c.Param("slot"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid slot number"})
		return 0, 0, false
	}
	return dispenserID, slot, true
}

type editSlotRequest struct {
	Nombre *string `json:"nombre"`
	Precio *string `json:"precio"`
}

// PutSlot applies an in-progress field edit to the local row; the slot is
// flagged as mid-edit until the next save.
func (h *Handler) PutSlot(c *gin.Context) {
	dispenserID, slot, ok := slotParams(c)
	if !ok {
		return
	}
	var req editSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := currentPanel(c).EditSlot(dispenserID, slot, req.Nombre, req.Precio); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// PostSlotSave persists the edited row to the backend.
func (h *Handler) PostSlotSave(c *gin.Context) {
	dispenserID, slot, ok := slotParams(c)
	if !ok {
		return
	}
	if err := currentPanel(c).SaveSlot(c.Request.Context(), dispenserID, slot); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Guardado"})
}

type enabledRequest struct {
	Habilitado *bool `json:"habilitado" binding:"required"`
}

// PostSlotEnabled toggles a slot's enablement optimistically.
func (h *Handler) PostSlotEnabled(c *gin.Context) {
	dispenserID, slot, ok := slotParams(c)
	if !ok {
		return
	}
	var req enabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := currentPanel(c).ToggleEnabled(c.Request.Context(), dispenserID, slot, *req.Habilitado); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PostSlotQR requests a fresh payment link for the slot's product and
// returns it with its QR image URL.
func (h *Handler) PostSlotQR(c *gin.Context) {
	dispenserID, slot, ok := slotParams(c)
	if !ok {
		return
	}
	link, err := currentPanel(c).CreatePaymentLink(c.Request.Context(), dispenserID, slot)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"link":      link,
		"image_url": qr.ImageURL(link),
	})
}
