package handlers

import (
	"net/http"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/ddmrp"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/service"
	"github.com/gin-gonic/gin"
)

type BufferHandler struct {
	service *service.BufferService
}

func NewBufferHandler(service *service.BufferService) *BufferHandler {
	return &BufferHandler{service: service}
}

type leadTimeRequest struct {
	ItemID       string    `json:"item_id" binding:"required"`
	DemandSeries []float64 `json:"demand_series"`
}

// DecoupledLeadTime handles POST /decoupled-lead-time
func (h *BufferHandler) DecoupledLeadTime(c *gin.Context) {
	var req leadTimeRequest
	if !bindJSON(c, &req) {
		return
	}
	c.JSON(http.StatusOK, h.service.ResolveLeadTime(c.Request.Context(), req.ItemID, req.DemandSeries))
}

type bufferRequest struct {
	ItemID string `json:"item_id" binding:"required"`
	ddmrp.BufferInput
}

// CalculateBuffer handles POST /buffer-profiles
func (h *BufferHandler) CalculateBuffer(c *gin.Context) {
	var req bufferRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.service.CalculateBuffer(c.Request.Context(), req.ItemID, req.BufferInput)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetBuffer handles GET /buffer-profiles/:item_id
func (h *BufferHandler) GetBuffer(c *gin.Context) {
	profile, err := h.service.GetBuffer(c.Request.Context(), c.Param("item_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

type adjustmentRequest struct {
	ItemID           string  `json:"item_id" binding:"required"`
	AdjustmentFactor float64 `json:"adjustment_factor" binding:"required"`
}

// AdjustBuffer handles POST /buffer-adjustments. An item without a profile
// is answered with found=false rather than an error.
func (h *BufferHandler) AdjustBuffer(c *gin.Context) {
	var req adjustmentRequest
	if !bindJSON(c, &req) {
		return
	}
	res, found, err := h.service.AdjustBuffer(c.Request.Context(), req.ItemID, req.AdjustmentFactor)
	if err != nil {
		writeError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusOK, gin.H{"item_id": req.ItemID, "found": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"item_id": req.ItemID, "found": true, "profile": res.Profile, "write": res.Write})
}
