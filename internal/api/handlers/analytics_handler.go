package handlers

import (
	"net/http"
	"strconv"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/analytics"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/domain"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/pipeline"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/service"
	"github.com/gin-gonic/gin"
)

// AnalyticsHandler serves the bullwhip, threshold, simulation and
// distribution endpoints.
type AnalyticsHandler struct {
	bullwhip     *service.BullwhipService
	thresholds   *service.ThresholdService
	simulation   *service.SimulationService
	distribution *service.DistributionService
	runs         *pipeline.Repository
}

func NewAnalyticsHandler(
	bullwhip *service.BullwhipService,
	thresholds *service.ThresholdService,
	simulation *service.SimulationService,
	distribution *service.DistributionService,
	runs *pipeline.Repository,
) *AnalyticsHandler {
	return &AnalyticsHandler{
		bullwhip:     bullwhip,
		thresholds:   thresholds,
		simulation:   simulation,
		distribution: distribution,
		runs:         runs,
	}
}

type bullwhipRequest struct {
	ProductID  string `json:"product_id" binding:"required"`
	LocationID string `json:"location_id" binding:"required"`
	Days       int    `json:"days"`
}

// AnalyzeBullwhip handles POST /bullwhip
func (h *AnalyticsHandler) AnalyzeBullwhip(c *gin.Context) {
	var req bullwhipRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.bullwhip.Analyze(c.Request.Context(), req.ProductID, req.LocationID, req.Days)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type bullwhipBatchRequest struct {
	Nodes []domain.DemandNode `json:"nodes"`
	Days  int                 `json:"days"`
}

// AnalyzeBullwhipBatch handles POST /bullwhip/batch. Without nodes every
// decoupling point is analyzed.
func (h *AnalyticsHandler) AnalyzeBullwhipBatch(c *gin.Context) {
	var req bullwhipBatchRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	report, err := h.bullwhip.AnalyzeBatch(c.Request.Context(), req.Nodes, req.Days)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// TopCandidates handles GET /bullwhip/top?limit=
func (h *AnalyticsHandler) TopCandidates(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	records, err := h.bullwhip.TopCandidates(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": records, "count": len(records)})
}

// LocationSummary handles GET /bullwhip/locations/:location_id
func (h *AnalyticsHandler) LocationSummary(c *gin.Context) {
	summary, err := h.bullwhip.LocationSummary(c.Request.Context(), c.Param("location_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// GetThresholds handles GET /thresholds
func (h *AnalyticsHandler) GetThresholds(c *gin.Context) {
	cfg, err := h.thresholds.Get(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

type thresholdRunRequest struct {
	Strategy string `json:"strategy" binding:"required,oneof=linear bayesian"`
	Target   string `json:"target"`
}

// RunThresholds handles POST /thresholds/run. The caller chooses the
// strategy; the two are never combined.
func (h *AnalyticsHandler) RunThresholds(c *gin.Context) {
	var req thresholdRunRequest
	if !bindJSON(c, &req) {
		return
	}

	var (
		upd service.ThresholdUpdate
		err error
	)
	if req.Strategy == service.StrategyBayesian {
		upd, err = h.thresholds.RunBayesian(c.Request.Context(), req.Target)
	} else {
		upd, err = h.thresholds.RunLinear(c.Request.Context())
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, upd)
}

// manualThresholdRequest uses pointers so an explicit 0 is accepted and
// clamped while an absent field is still rejected.
type manualThresholdRequest struct {
	DemandVariabilityThreshold *float64 `json:"demand_variability_threshold" binding:"required"`
	DecouplingThreshold        *float64 `json:"decoupling_threshold" binding:"required"`
}

// UpdateThresholds handles PUT /thresholds
func (h *AnalyticsHandler) UpdateThresholds(c *gin.Context) {
	var req manualThresholdRequest
	if !bindJSON(c, &req) {
		return
	}
	upd, err := h.thresholds.ApplyManual(c.Request.Context(), *req.DemandVariabilityThreshold, *req.DecouplingThreshold)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, upd)
}

type simulationRequest struct {
	analytics.SimulationInput
	service.SimulationOptions
}

// Simulate handles POST /simulation
func (h *AnalyticsHandler) Simulate(c *gin.Context) {
	var req simulationRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.simulation.Simulate(c.Request.Context(), req.SimulationInput, req.SimulationOptions)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// RunSimulation handles POST /simulation/run over every active demand node.
func (h *AnalyticsHandler) RunSimulation(c *gin.Context) {
	var opts service.SimulationOptions
	if c.Request.ContentLength != 0 && !bindJSON(c, &opts) {
		return
	}
	report, err := h.simulation.RunBatch(c.Request.Context(), opts)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

type distributionRequest struct {
	ProductID  string    `json:"product_id" binding:"required"`
	LocationID string    `json:"location_id" binding:"required"`
	Sample     []float64 `json:"sample"`
}

// ProfileDistribution handles POST /distribution. A request without a sample
// fits the node's stored sales history.
func (h *AnalyticsHandler) ProfileDistribution(c *gin.Context) {
	var req distributionRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Sample != nil {
		c.JSON(http.StatusOK, h.distribution.ProfileSample(c.Request.Context(), req.ProductID, req.LocationID, req.Sample))
		return
	}
	res, err := h.distribution.Profile(c.Request.Context(), req.ProductID, req.LocationID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// RunDistribution handles POST /distribution/run
func (h *AnalyticsHandler) RunDistribution(c *gin.Context) {
	report, err := h.distribution.RunBatch(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetRun handles GET /runs/:id
func (h *AnalyticsHandler) GetRun(c *gin.Context) {
	run, err := h.runs.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}
