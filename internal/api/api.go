package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/api/handlers"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/api/middleware"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/app"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/metrics"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func NewRouter(services *app.Services, recorder *metrics.Recorder, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(recorder.Handler()))

	if services == nil {
		return router
	}

	ddmrp := router.Group("/api/v1/ddmrp")
	{
		bufferHandler := handlers.NewBufferHandler(services.Buffers)
		ddmrp.POST("/decoupled-lead-time", bufferHandler.DecoupledLeadTime)
		ddmrp.POST("/buffer-profiles", bufferHandler.CalculateBuffer)
		ddmrp.GET("/buffer-profiles/:item_id", bufferHandler.GetBuffer)
		ddmrp.POST("/buffer-adjustments", bufferHandler.AdjustBuffer)

		netFlowHandler := handlers.NewNetFlowHandler(services.NetFlow)
		ddmrp.POST("/net-flow", netFlowHandler.Evaluate)
		ddmrp.POST("/alerts", netFlowHandler.GenerateAlerts)

		analyticsHandler := handlers.NewAnalyticsHandler(
			services.Bullwhip,
			services.Thresholds,
			services.Simulation,
			services.Distribution,
			services.Runs,
		)
		bullwhipGroup := ddmrp.Group("/bullwhip")
		{
			bullwhipGroup.POST("", analyticsHandler.AnalyzeBullwhip)
			bullwhipGroup.POST("/batch", analyticsHandler.AnalyzeBullwhipBatch)
			bullwhipGroup.GET("/top", analyticsHandler.TopCandidates)
			bullwhipGroup.GET("/locations/:location_id", analyticsHandler.LocationSummary)
		}

		thresholdGroup := ddmrp.Group("/thresholds")
		{
			thresholdGroup.GET("", analyticsHandler.GetThresholds)
			thresholdGroup.PUT("", analyticsHandler.UpdateThresholds)
			thresholdGroup.POST("/run", analyticsHandler.RunThresholds)
		}

		ddmrp.POST("/simulation", analyticsHandler.Simulate)
		ddmrp.POST("/simulation/run", analyticsHandler.RunSimulation)
		ddmrp.POST("/distribution", analyticsHandler.ProfileDistribution)
		ddmrp.POST("/distribution/run", analyticsHandler.RunDistribution)
		ddmrp.GET("/runs/:id", analyticsHandler.GetRun)

		ddomHandler := handlers.NewDDOMHandler(services.DDOM)
		ddomGroup := ddmrp.Group("/ddom")
		{
			ddomGroup.POST("/capacity-schedule", ddomHandler.ScheduleCapacity)
			ddomGroup.POST("/execute", ddomHandler.Execute)
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		for _, part := range strings.Split(origin, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
