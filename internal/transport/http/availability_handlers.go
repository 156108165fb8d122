package http

import (
	nethttp "net/http"

	"github.com/gin-gonic/gin"

	"sessionbook/backend/internal/domain"
	"sessionbook/backend/internal/service/availability"
)

type publishRequest struct {
	Slots []string `json:"slots"`
}

func (s *Server) publishDay(c *gin.Context) {
	const op = "availability.publish"
	providerID, ok := s.pathUUID(c, op, "providerID")
	if !ok {
		return
	}
	date, ok := s.pathDate(c, op)
	if !ok || !s.requireProviderAccess(c, providerID) {
		return
	}
	var req publishRequest
	if !s.bindBody(c, op, &req, true) {
		return
	}

	view, err := s.svc.Availability.Publish(c.Request.Context(), availability.PublishInput{
		ProviderID: providerID,
		Date:       date,
		Slots:      req.Slots,
	})
	if err != nil {
		s.fail(c, op, err)
		return
	}
	c.JSON(nethttp.StatusOK, s.dayJSON(view))
}

type weeklyRequest struct {
	From     string   `json:"from"`
	Until    string   `json:"until"`
	Weekdays []int16  `json:"weekdays"`
	Interval int      `json:"interval"`
	Slots    []string `json:"slots"`
}

type dayResultJSON struct {
	Date      string    `json:"date"`
	Published bool      `json:"published"`
	Day       *dayJSON  `json:"day,omitempty"`
	Error     *apiError `json:"error,omitempty"`
}

func (s *Server) publishWeekly(c *gin.Context) {
	const op = "availability.publish_weekly"
	providerID, ok := s.pathUUID(c, op, "providerID")
	if !ok || !s.requireProviderAccess(c, providerID) {
		return
	}
	var req weeklyRequest
	if !s.bindBody(c, op, &req, true) {
		return
	}
	from, err := domain.ParseDate(req.From)
	if err != nil {
		s.fail(c, op, err)
		return
	}
	until, err := domain.ParseDate(req.Until)
	if err != nil {
		s.fail(c, op, err)
		return
	}

	results, err := s.svc.Availability.PublishWeekly(c.Request.Context(), availability.WeeklyInput{
		ProviderID: providerID,
		From:       from,
		Until:      until,
		Weekdays:   req.Weekdays,
		Interval:   req.Interval,
		Slots:      req.Slots,
	})
	if err != nil {
		s.fail(c, op, err)
		return
	}

	out := make([]dayResultJSON, 0, len(results))
	for _, r := range results {
		item := dayResultJSON{Date: r.Date.String()}
		if r.Err != nil {
			_, body := classify(r.Err)
			item.Error = &body
		} else {
			day := s.dayJSON(r.View)
			item.Published = true
			item.Day = &day
		}
		out = append(out, item)
	}
	c.JSON(nethttp.StatusOK, gin.H{"results": out})
}

func (s *Server) availabilityRange(c *gin.Context) {
	const op = "availability.range"
	providerID, ok := s.pathUUID(c, op, "providerID")
	if !ok {
		return
	}
	from, err := domain.ParseDate(c.Query("from"))
	if err != nil {
		s.fail(c, op, err)
		return
	}
	to, err := domain.ParseDate(c.Query("to"))
	if err != nil {
		s.fail(c, op, err)
		return
	}

	views, err := s.svc.Availability.Range(c.Request.Context(), providerID, from, to)
	if err != nil {
		s.fail(c, op, err)
		return
	}
	days := make([]dayJSON, 0, len(views))
	for _, v := range views {
		days = append(days, s.dayJSON(v))
	}
	c.JSON(nethttp.StatusOK, gin.H{"days": days})
}

func (s *Server) availabilityDay(c *gin.Context) {
	const op = "availability.day"
	providerID, ok := s.pathUUID(c, op, "providerID")
	if !ok {
		return
	}
	date, ok := s.pathDate(c, op)
	if !ok {
		return
	}
	view, err := s.svc.Availability.Day(c.Request.Context(), providerID, date)
	if err != nil {
		s.fail(c, op, err)
		return
	}
	c.JSON(nethttp.StatusOK, s.dayJSON(view))
}

func (s *Server) deleteDay(c *gin.Context) {
	const op = "availability.delete"
	providerID, ok := s.pathUUID(c, op, "providerID")
	if !ok {
		return
	}
	date, ok := s.pathDate(c, op)
	if !ok || !s.requireProviderAccess(c, providerID) {
		return
	}
	if err := s.svc.Availability.Delete(c.Request.Context(), providerID, date); err != nil {
		s.fail(c, op, err)
		return
	}
	c.Status(nethttp.StatusNoContent)
}

func (s *Server) checkSlot(c *gin.Context) {
	const op = "availability.check_slot"
	providerID, ok := s.pathUUID(c, op, "providerID")
	if !ok {
		return
	}
	available, err := s.svc.Slots.CheckSlot(c.Request.Context(), providerID, c.Param("date"), c.Param("slot"))
	if err != nil {
		s.fail(c, op, err)
		return
	}
	c.JSON(nethttp.StatusOK, gin.H{"available": available})
}
