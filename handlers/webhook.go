package handlers

import (
	"encoding/json"
	"encoding/xml"
	"io"
	"net/http"
	"time"

	"panel-bridge/models"
	"panel-bridge/services"
	"panel-bridge/utils"

	"github.com/labstack/echo/v4"
)

// ServiceVersion is reported by the health endpoint.
const ServiceVersion = "1.3.0"

// WebhookHandler is the inbound protocol entry point for panel telemetry.
type WebhookHandler struct {
	ingest *services.IngestService
}

// NewWebhookHandler creates a new instance of WebhookHandler.
func NewWebhookHandler(ingest *services.IngestService) *WebhookHandler {
	return &WebhookHandler{ingest: ingest}
}

// ReceiveAlarm handles POST /webhooks/alarm. The webhook path is
// fire-and-acknowledge: the caller always gets a fast deterministic answer,
// classification happens asynchronously.
func (h *WebhookHandler) ReceiveAlarm(c echo.Context) error {
	start := time.Now()

	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, utils.ErrorResponse("unreadable request body"))
	}

	payload, err := models.ParseAlarmPayload(raw)
	if err != nil {
		return c.JSON(http.StatusUnprocessableEntity, utils.ValidationErrorResponse(map[string]string{
			"payload": err.Error(),
		}))
	}
	if violations := payload.Validate(); len(violations) > 0 {
		return c.JSON(http.StatusUnprocessableEntity, utils.ValidationErrorResponse(violations))
	}

	result, err := h.ingest.IngestAlarm(payload, raw, start)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, utils.ErrorResponse("failed to ingest event"))
	}

	if result.Duplicate {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success":    true,
			"message":    "duplicate event acknowledged",
			"event_uuid": result.EventUUID,
		})
	}
	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"success":            true,
		"message":            "event accepted",
		"event_uuid":         result.EventUUID,
		"processing_time_ms": time.Since(start).Milliseconds(),
	})
}

// ReceiveHeartbeat handles POST /webhooks/heartbeat: connectivity touch
// only, no event record.
func (h *WebhookHandler) ReceiveHeartbeat(c echo.Context) error {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, utils.ErrorResponse("unreadable request body"))
	}

	var payload models.HeartbeatPayload
	if jsonErr := json.Unmarshal(raw, &payload); jsonErr != nil {
		if xmlErr := xml.Unmarshal(raw, &payload); xmlErr != nil {
			return c.JSON(http.StatusUnprocessableEntity, utils.ValidationErrorResponse(map[string]string{
				"payload": "body is neither valid JSON nor XML",
			}))
		}
	}

	h.ingest.Heartbeat(&payload, time.Now())
	return c.JSON(http.StatusOK, utils.SuccessResponse("heartbeat accepted", nil))
}

// Health handles GET /webhooks/health.
func (h *WebhookHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": utils.GetUnixTimestamp(),
		"version":   ServiceVersion,
	})
}
