package handlers

import (
	"net/http"
	"strconv"
	"time"

	"panel-bridge/repositories/base"
	"panel-bridge/repositories/interfaces"
	"panel-bridge/services"
	"panel-bridge/utils"

	"github.com/labstack/echo/v4"
)

// EventHandler exposes the read-only event store plus operator resubmission.
type EventHandler struct {
	events   interfaces.EventRepositoryInterface
	enqueuer services.Enqueuer
}

// NewEventHandler creates a new instance of EventHandler.
func NewEventHandler(events interfaces.EventRepositoryInterface, enqueuer services.Enqueuer) *EventHandler {
	return &EventHandler{
		events:   events,
		enqueuer: enqueuer,
	}
}

// ListEvents handles GET /events with filtering.
func (h *EventHandler) ListEvents(c echo.Context) error {
	filter := interfaces.EventFilter{
		AlarmType: c.QueryParam("alarmType"),
		Severity:  c.QueryParam("severity"),
	}
	if raw := c.QueryParam("deviceId"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 32); err == nil {
			deviceID := uint(id)
			filter.DeviceID = &deviceID
		}
	}
	if raw := c.QueryParam("processed"); raw != "" {
		if processed, err := strconv.ParseBool(raw); err == nil {
			filter.Processed = &processed
		}
	}
	if raw := c.QueryParam("cidCode"); raw != "" {
		if code, err := strconv.Atoi(raw); err == nil {
			filter.CIDCode = &code
		}
	}
	if raw := c.QueryParam("zone"); raw != "" {
		if zone, err := strconv.Atoi(raw); err == nil {
			filter.Zone = &zone
		}
	}
	if raw := c.QueryParam("from"); raw != "" {
		if from, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.From = &from
		}
	}
	if raw := c.QueryParam("to"); raw != "" {
		if to, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.To = &to
		}
	}

	pagination := utils.GetPaginationParams(c.QueryParam("limit"), c.QueryParam("offset"), 50)
	events, err := h.events.List(filter, pagination.Limit, pagination.Offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, utils.ErrorResponse(base.GetErrorMessage(err)))
	}
	return c.JSON(http.StatusOK, utils.SuccessResponse("events retrieved", map[string]interface{}{
		"items":  events,
		"count":  len(events),
		"limit":  pagination.Limit,
		"offset": pagination.Offset,
	}))
}

// GetEvent handles GET /events/:uuid.
func (h *EventHandler) GetEvent(c echo.Context) error {
	event, err := h.events.GetByUUID(c.Param("uuid"))
	if err != nil {
		if base.IsEntityNotFound(err) {
			return c.JSON(http.StatusNotFound, utils.ErrorResponse(base.GetErrorMessage(err)))
		}
		return c.JSON(http.StatusInternalServerError, utils.ErrorResponse(base.GetErrorMessage(err)))
	}
	return c.JSON(http.StatusOK, utils.SuccessResponse("event retrieved", event))
}

// GetStats handles GET /events/stats.
func (h *EventHandler) GetStats(c echo.Context) error {
	stats, err := h.events.Stats()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, utils.ErrorResponse(base.GetErrorMessage(err)))
	}
	return c.JSON(http.StatusOK, utils.SuccessResponse("event stats retrieved", stats))
}

// GetCritical handles GET /events/critical.
func (h *EventHandler) GetCritical(c echo.Context) error {
	limit := utils.GetIntOrDefault(c.QueryParam("limit"), 50)
	events, err := h.events.ListCritical(limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, utils.ErrorResponse(base.GetErrorMessage(err)))
	}
	return c.JSON(http.StatusOK, utils.SuccessResponse("critical events retrieved", map[string]interface{}{
		"items": events,
		"count": len(events),
	}))
}

// GetUnprocessed handles GET /events/unprocessed.
func (h *EventHandler) GetUnprocessed(c echo.Context) error {
	limit := utils.GetIntOrDefault(c.QueryParam("limit"), 50)
	events, err := h.events.ListUnprocessed(limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, utils.ErrorResponse(base.GetErrorMessage(err)))
	}
	return c.JSON(http.StatusOK, utils.SuccessResponse("unprocessed events retrieved", map[string]interface{}{
		"items": events,
		"count": len(events),
	}))
}

// Resubmit handles POST /events/:uuid/resubmit: clears the processed flag
// and queues the event again. Operator escape hatch for terminal failures.
func (h *EventHandler) Resubmit(c echo.Context) error {
	event, err := h.events.GetByUUID(c.Param("uuid"))
	if err != nil {
		if base.IsEntityNotFound(err) {
			return c.JSON(http.StatusNotFound, utils.ErrorResponse(base.GetErrorMessage(err)))
		}
		return c.JSON(http.StatusInternalServerError, utils.ErrorResponse(base.GetErrorMessage(err)))
	}

	if err := h.events.Resubmit(event.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, utils.ErrorResponse(base.GetErrorMessage(err)))
	}
	if err := h.enqueuer.Enqueue(services.TaskProcessEvent, event.UUID, services.ProcessEventTask{EventUUID: event.UUID}); err != nil {
		return c.JSON(http.StatusInternalServerError, utils.ErrorResponse("failed to enqueue reprocessing"))
	}
	return c.JSON(http.StatusAccepted, utils.SuccessResponse("event resubmitted", map[string]string{"event_uuid": event.UUID}))
}
