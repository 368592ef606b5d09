package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/econ-trends/internal/middleware"
	"github.com/irfndi/econ-trends/internal/models"
	"github.com/irfndi/econ-trends/internal/services"
	"github.com/irfndi/econ-trends/internal/utils"
	"github.com/irfndi/econ-trends/pkg/interfaces"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// statusFor maps an analytics error to its HTTP status.
func statusFor(err error) int {
	var validationErr *utils.ValidationError
	switch {
	case errors.As(err, &validationErr),
		errors.Is(err, services.ErrInvalidSeries),
		errors.Is(err, models.ErrUnknownMethod),
		errors.Is(err, services.ErrUnknownOutlierMethod):
		return http.StatusBadRequest
	case errors.Is(err, interfaces.ErrSeriesNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as JSON. Server errors get a generic message and
// are recorded on the request span.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: err.Error(), RequestID: c.GetString(middleware.ContextRequestID)}

	var validationErr *utils.ValidationError
	if errors.As(err, &validationErr) {
		resp.Field = validationErr.Field
	}
	if status >= http.StatusInternalServerError {
		middleware.RecordError(c, err, "analytics request failed")
		if status == http.StatusInternalServerError {
			resp.Error = "Internal server error"
		}
	}
	c.AbortWithStatusJSON(status, resp)
}
