package handlers

import (
	"errors"
	"net/http"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/ddmrp"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/repository"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func errorResponse(c *gin.Context, statusCode int, message string) {
	if statusCode >= http.StatusInternalServerError {
		log.Error().Str("path", c.FullPath()).Msg(message)
	}
	c.JSON(statusCode, gin.H{"error": message})
}

// writeError maps a service error onto a status code.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ddmrp.ErrInvalidInput), errors.Is(err, service.ErrUnknownTarget):
		status = http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, repository.ErrVersionConflict):
		status = http.StatusConflict
	}
	errorResponse(c, status, err.Error())
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
