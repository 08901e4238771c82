package handlers

import (
	"net/http"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/service"
	"github.com/gin-gonic/gin"
)

type DDOMHandler struct {
	service *service.DDOMService
}

func NewDDOMHandler(service *service.DDOMService) *DDOMHandler {
	return &DDOMHandler{service: service}
}

// ScheduleCapacity handles POST /ddom/capacity-schedule
func (h *DDOMHandler) ScheduleCapacity(c *gin.Context) {
	var req service.CapacityScheduleRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.service.ScheduleCapacity(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type executeRequest struct {
	Orders []service.OrderRef `json:"orders" binding:"required"`
}

// Execute handles POST /ddom/execute
func (h *DDOMHandler) Execute(c *gin.Context) {
	var req executeRequest
	if !bindJSON(c, &req) {
		return
	}
	report, err := h.service.Execute(c.Request.Context(), req.Orders)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
