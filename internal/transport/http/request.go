package http

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"sessionbook/backend/internal/domain"
)

func (s *Server) pathUUID(c *gin.Context, op, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		s.badRequest(c, op, fmt.Errorf("%s must be a UUID", name))
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) pathDate(c *gin.Context, op string) (domain.Date, bool) {
	d, err := domain.ParseDate(c.Param("date"))
	if err != nil {
		s.fail(c, op, err)
		return domain.Date{}, false
	}
	return d, true
}

// bindBody decodes a JSON body. An empty body leaves v untouched unless the
// body is required.
func (s *Server) bindBody(c *gin.Context, op string, v any, required bool) bool {
	if !required && c.Request.ContentLength == 0 {
		return true
	}
	err := c.ShouldBindJSON(v)
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) && !required {
		return true
	}
	if errors.Is(err, io.EOF) {
		err = errors.New("request body is required")
	} else {
		err = fmt.Errorf("malformed request body: %w", err)
	}
	s.badRequest(c, op, err)
	return false
}

// requireProviderAccess allows the provider themself and admins.
func (s *Server) requireProviderAccess(c *gin.Context, providerID uuid.UUID) bool {
	actor := actorFrom(c)
	if actor.IsAdmin() || (actor.Role == domain.RolePsychologist && actor.ID == providerID) {
		return true
	}
	s.forbidden(c, "only the psychologist can change their availability")
	return false
}

func idempotencyKey(c *gin.Context) string {
	key := c.GetHeader("Idempotency-Key")
	if key == "" {
		key = c.GetHeader("X-Idempotency-Key")
	}
	return strings.TrimSpace(key)
}
