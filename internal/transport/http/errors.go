package http

import (
	"errors"
	"log/slog"
	nethttp "net/http"

	"github.com/gin-gonic/gin"

	"sessionbook/backend/internal/domain"
	"sessionbook/backend/internal/store"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorBody(code, message string) gin.H {
	return gin.H{"error": apiError{Code: code, Message: message}}
}

// classify maps a service error to its HTTP status and machine code.
func classify(err error) (int, apiError) {
	var vErr *domain.ValidationError
	switch {
	case errors.Is(err, store.ErrIdempotencyConflict):
		return nethttp.StatusConflict, apiError{"idempotency_conflict", "this idempotency key was already used for a different booking"}
	case errors.Is(err, domain.ErrNotFound):
		return nethttp.StatusNotFound, apiError{"not_found", err.Error()}
	case errors.Is(err, domain.ErrSlotUnavailable):
		return nethttp.StatusBadRequest, apiError{"slot_unavailable", err.Error()}
	case errors.Is(err, domain.ErrPastDate):
		return nethttp.StatusBadRequest, apiError{"past_date", err.Error()}
	case errors.Is(err, domain.ErrInvalidTimeFormat):
		return nethttp.StatusBadRequest, apiError{"invalid_time_format", err.Error()}
	case errors.Is(err, domain.ErrInvalidStateTransition):
		return nethttp.StatusBadRequest, apiError{"invalid_state_transition", err.Error()}
	case errors.As(err, &vErr):
		return nethttp.StatusBadRequest, apiError{"validation_error", vErr.Error()}
	case errors.Is(err, domain.ErrStorageUnavailable):
		return nethttp.StatusServiceUnavailable, apiError{"storage_unavailable", "service temporarily unavailable, try again"}
	default:
		return nethttp.StatusInternalServerError, apiError{"internal", "internal error"}
	}
}

func (s *Server) fail(c *gin.Context, op string, err error) {
	status, body := classify(err)
	log := s.log.With(slog.String("op", op))
	if status >= 500 {
		log.Error("request failed", slog.Any("err", err))
	} else {
		log.Info("request rejected", slog.String("code", body.Code), slog.Any("err", err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}

func (s *Server) forbidden(c *gin.Context, message string) {
	c.AbortWithStatusJSON(nethttp.StatusForbidden, errorBody("forbidden", message))
}

func (s *Server) badRequest(c *gin.Context, op string, err error) {
	s.fail(c, op, domain.NewValidationError(err.Error()))
}
