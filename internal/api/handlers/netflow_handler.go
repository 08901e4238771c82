package handlers

import (
	"net/http"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/service"
	"github.com/gin-gonic/gin"
)

type NetFlowHandler struct {
	service *service.NetFlowService
}

func NewNetFlowHandler(service *service.NetFlowService) *NetFlowHandler {
	return &NetFlowHandler{service: service}
}

// Evaluate handles POST /net-flow
func (h *NetFlowHandler) Evaluate(c *gin.Context) {
	var req service.NetFlowRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.service.Evaluate(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GenerateAlerts handles POST /alerts
func (h *NetFlowHandler) GenerateAlerts(c *gin.Context) {
	report, err := h.service.GenerateAlerts(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
