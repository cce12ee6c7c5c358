package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pricewatch/models"
)

// respondError maps err to an HTTP status and writes the JSON error body.
// Errors that are not a *models.ScrapeError become INTERNAL_ERROR.
func respondError(c *gin.Context, err error) {
	var se *models.ScrapeError
	if !errors.As(err, &se) {
		se = models.NewScrapeError(models.ErrCodeInternal, err.Error(), err)
	}
	c.JSON(mapErrorToStatus(se), models.ErrorResponse{
		Success: false,
		Error:   se.ToDetail(),
	})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Success: false,
		Error:   &models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: msg},
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeInvalidInput, models.ErrCodeInvalidURL:
		return http.StatusBadRequest // 400
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeAlreadyTracked:
		return http.StatusConflict // 409
	case models.ErrCodeExtractionFailed:
		return http.StatusUnprocessableEntity // 422
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeNavigation:
		return http.StatusBadGateway // 502
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	default:
		return http.StatusInternalServerError // 500
	}
}
