package http

import (
	"fmt"
	nethttp "net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"sessionbook/backend/internal/domain"
	"sessionbook/backend/internal/service/notifications"
)

// notificationOwner resolves the provider whose inbox the caller reads.
func (s *Server) notificationOwner(c *gin.Context) (uuid.UUID, bool) {
	actor := actorFrom(c)
	if actor.Role != domain.RolePsychologist {
		s.forbidden(c, "notifications are only available to psychologists")
		return uuid.Nil, false
	}
	return actor.ID, true
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}

func (s *Server) listNotifications(c *gin.Context) {
	const op = "notifications.list"
	providerID, ok := s.notificationOwner(c)
	if !ok {
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		s.badRequest(c, op, err)
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		s.badRequest(c, op, err)
		return
	}
	unread, _ := strconv.ParseBool(c.Query("unread"))

	page, err := s.svc.Notifications.List(c.Request.Context(), notifications.ListInput{
		ProviderID: providerID,
		UnreadOnly: unread,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		s.fail(c, op, err)
		return
	}
	items := make([]notificationJSON, 0, len(page.Items))
	for _, n := range page.Items {
		items = append(items, notificationToJSON(n))
	}
	c.JSON(nethttp.StatusOK, gin.H{
		"items":  items,
		"total":  page.Total,
		"limit":  page.Limit,
		"offset": page.Offset,
	})
}

func (s *Server) unreadCount(c *gin.Context) {
	const op = "notifications.unread_count"
	providerID, ok := s.notificationOwner(c)
	if !ok {
		return
	}
	n, err := s.svc.Notifications.UnreadCount(c.Request.Context(), providerID)
	if err != nil {
		s.fail(c, op, err)
		return
	}
	c.JSON(nethttp.StatusOK, gin.H{"unread": n})
}

func (s *Server) markRead(c *gin.Context) {
	const op = "notifications.mark_read"
	providerID, ok := s.notificationOwner(c)
	if !ok {
		return
	}
	id, ok := s.pathUUID(c, op, "notificationID")
	if !ok {
		return
	}
	n, err := s.svc.Notifications.MarkRead(c.Request.Context(), providerID, id)
	if err != nil {
		s.fail(c, op, err)
		return
	}
	c.JSON(nethttp.StatusOK, notificationToJSON(n))
}

func (s *Server) markAllRead(c *gin.Context) {
	const op = "notifications.mark_all_read"
	providerID, ok := s.notificationOwner(c)
	if !ok {
		return
	}
	n, err := s.svc.Notifications.MarkAllRead(c.Request.Context(), providerID)
	if err != nil {
		s.fail(c, op, err)
		return
	}
	c.JSON(nethttp.StatusOK, gin.H{"updated": n})
}

func (s *Server) deleteNotification(c *gin.Context) {
	const op = "notifications.delete"
	providerID, ok := s.notificationOwner(c)
	if !ok {
		return
	}
	id, ok := s.pathUUID(c, op, "notificationID")
	if !ok {
		return
	}
	if err := s.svc.Notifications.Delete(c.Request.Context(), providerID, id); err != nil {
		s.fail(c, op, err)
		return
	}
	c.Status(nethttp.StatusNoContent)
}
