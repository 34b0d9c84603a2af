package handler

import (
	"errors"
	"net/http"

	"simulation-server/internal/models"

	"github.com/labstack/echo/v4"
)

// APIError представляет стандартизированный ответ об ошибке.
type APIError struct {
	Message string `json:"message"`
}

// errorStatus сопоставляет ошибку сервиса HTTP-статусу.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidState), errors.Is(err, models.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, models.ErrTransientProvider):
		return http.StatusServiceUnavailable
	case errors.Is(err, models.ErrFatalProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func handleServiceError(c echo.Context, err error) error {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		// Детали внутренних ошибок клиенту не отдаем
		return c.JSON(status, APIError{Message: "Internal server error"})
	}
	return c.JSON(status, APIError{Message: err.Error()})
}
