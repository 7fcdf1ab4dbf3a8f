package handlers

import (
	"net/http"
	"strconv"
	"time"

	"panel-bridge/repositories/base"
	"panel-bridge/repositories/interfaces"
	"panel-bridge/utils"

	"github.com/labstack/echo/v4"
)

// IncidentHandler exposes incident listing and manual resolution.
type IncidentHandler struct {
	incidents interfaces.IncidentRepositoryInterface
}

// NewIncidentHandler creates a new instance of IncidentHandler.
func NewIncidentHandler(incidents interfaces.IncidentRepositoryInterface) *IncidentHandler {
	return &IncidentHandler{incidents: incidents}
}

// ListIncidents handles GET /incidents.
func (h *IncidentHandler) ListIncidents(c echo.Context) error {
	pagination := utils.GetPaginationParams(c.QueryParam("limit"), c.QueryParam("offset"), 50)
	incidents, err := h.incidents.List(pagination.Limit, pagination.Offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, utils.ErrorResponse(base.GetErrorMessage(err)))
	}
	return c.JSON(http.StatusOK, utils.SuccessResponse("incidents retrieved", map[string]interface{}{
		"items":  incidents,
		"count":  len(incidents),
		"limit":  pagination.Limit,
		"offset": pagination.Offset,
	}))
}

// GetIncident handles GET /incidents/:id.
func (h *IncidentHandler) GetIncident(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, utils.ErrorResponse("invalid incident id"))
	}
	incident, err := h.incidents.GetByID(uint(id))
	if err != nil {
		if base.IsEntityNotFound(err) {
			return c.JSON(http.StatusNotFound, utils.ErrorResponse(base.GetErrorMessage(err)))
		}
		return c.JSON(http.StatusInternalServerError, utils.ErrorResponse(base.GetErrorMessage(err)))
	}
	return c.JSON(http.StatusOK, utils.SuccessResponse("incident retrieved", incident))
}

// Resolve handles POST /incidents/:id/resolve, the manual counterpart to
// restore-event resolution.
func (h *IncidentHandler) Resolve(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, utils.ErrorResponse("invalid incident id"))
	}

	var req struct {
		ResolvedBy string `json:"resolvedBy"`
	}
	_ = c.Bind(&req)
	resolvedBy := utils.GetValueOrDefault(req.ResolvedBy, "operator")

	if err := h.incidents.Resolve(uint(id), resolvedBy, time.Now()); err != nil {
		return c.JSON(http.StatusInternalServerError, utils.ErrorResponse(base.GetErrorMessage(err)))
	}
	return c.JSON(http.StatusOK, utils.SuccessResponse("incident resolved", nil))
}
