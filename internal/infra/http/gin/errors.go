package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staysettle/internal/domain/shared/fault"
)

type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// statusFor maps the error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, fault.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, fault.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, fault.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, fault.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, fault.ErrUnavailable), errors.Is(err, fault.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, fault.ErrNoAvailableEarnings), errors.Is(err, fault.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, fault.ErrGateway):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status := statusFor(err)
	body := errorBody{Error: http.StatusText(status), Code: fault.Code(err)}
	var fe *fault.Error
	switch {
	case errors.As(err, &fe):
		body.Message = fe.Description()
	case status != http.StatusInternalServerError:
		body.Message = err.Error()
	}
	if logger != nil {
		fields := []any{"status", status, "error", err, "path", c.FullPath()}
		if p, ok := currentPrincipal(c); ok {
			fields = append(fields, "actor_id", p.ID)
		}
		if status >= http.StatusInternalServerError {
			logger.Error("request failed", fields...)
		} else {
			logger.Info("request rejected", fields...)
		}
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorBody{Error: http.StatusText(http.StatusBadRequest), Code: "invalid_request", Message: err.Error()})
}
