package handlers

import (
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"time"

	"panel-bridge/config"
	"panel-bridge/models"
	"panel-bridge/panel"
	"panel-bridge/repositories/base"
	"panel-bridge/repositories/interfaces"
	"panel-bridge/services"
	"panel-bridge/utils"

	"github.com/labstack/echo/v4"
)

// DeviceHandler exposes registry CRUD and outbound panel control.
type DeviceHandler struct {
	cfg      *config.Config
	devices  interfaces.DeviceRepositoryInterface
	panels   *panel.ControlService
	enqueuer services.Enqueuer
}

// NewDeviceHandler creates a new instance of DeviceHandler.
func NewDeviceHandler(cfg *config.Config, devices interfaces.DeviceRepositoryInterface, panels *panel.ControlService, enqueuer services.Enqueuer) *DeviceHandler {
	return &DeviceHandler{
		cfg:      cfg,
		devices:  devices,
		panels:   panels,
		enqueuer: enqueuer,
	}
}

// DeviceRequest is the create/update body.
type DeviceRequest struct {
	Name           string  `json:"name"`
	SerialNumber   string  `json:"serialNumber"`
	Model          string  `json:"model"`
	IPAddress      string  `json:"ipAddress"`
	MACAddress     *string `json:"macAddress"`
	Port           int     `json:"port"`
	InstallationID *uint   `json:"installationId"`
	Username       string  `json:"username"`
	Password       string  `json:"password"`
	ZoneCount      int     `json:"zoneCount"`
}

// ArmRequest is the body of POST /devices/{id}/arm.
type ArmRequest struct {
	Mode      string `json:"mode"`
	Partition *int   `json:"partition"`
}

// CreateDevice handles POST /devices.
func (h *DeviceHandler) CreateDevice(c echo.Context) error {
	var req DeviceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, utils.ErrorResponse("invalid request body"))
	}
	if req.SerialNumber == "" || req.Name == "" {
		return c.JSON(http.StatusBadRequest, utils.ErrorResponse("name and serialNumber are required"))
	}
	if req.Model != "" && !slices.Contains(h.cfg.SupportedModels, req.Model) {
		return c.JSON(http.StatusBadRequest, utils.ErrorResponse(fmt.Sprintf("unsupported model %q", req.Model)))
	}

	device := &models.Device{
		Name:           req.Name,
		SerialNumber:   req.SerialNumber,
		Model:          req.Model,
		IPAddress:      req.IPAddress,
		Port:           req.Port,
		InstallationID: req.InstallationID,
		ZoneCount:      req.ZoneCount,
		Status:         models.DeviceStatusUnknown,
		ArmStatus:      models.ArmStatusUnknown,
	}
	if req.MACAddress != nil && *req.MACAddress != "" {
		normalized := models.NormalizeMAC(*req.MACAddress)
		device.MACAddress = &normalized
	}
	if req.Password != "" {
		cred := models.Credential{Username: req.Username, Secret: req.Password}
		if err := device.SetCredential(h.cfg.EncryptionKey, cred); err != nil {
			return c.JSON(http.StatusInternalServerError, utils.ErrorResponse("failed to store credentials"))
		}
	}

	if err := h.devices.Create(device); err != nil {
		if base.IsDuplicateEntity(err) {
			return c.JSON(http.StatusConflict, utils.ErrorResponse(base.GetErrorMessage(err)))
		}
		return c.JSON(http.StatusInternalServerError, utils.ErrorResponse(base.GetErrorMessage(err)))
	}
	return c.JSON(http.StatusCreated, utils.SuccessResponse("device created", device))
}

// GetDevice handles GET /devices/:id.
func (h *DeviceHandler) GetDevice(c echo.Context) error {
	device, err := h.loadDevice(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, utils.SuccessResponse("device retrieved", device))
}

// ListDevices handles GET /devices.
func (h *DeviceHandler) ListDevices(c echo.Context) error {
	pagination := utils.GetPaginationParams(c.QueryParam("limit"), c.QueryParam("offset"), 50)
	devices, err := h.devices.List(pagination.Limit, pagination.Offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, utils.ErrorResponse(base.GetErrorMessage(err)))
	}
	return c.JSON(http.StatusOK, utils.SuccessResponse("devices retrieved", map[string]interface{}{
		"items":  devices,
		"count":  len(devices),
		"limit":  pagination.Limit,
		"offset": pagination.Offset,
	}))
}

// UpdateDevice handles PUT /devices/:id.
func (h *DeviceHandler) UpdateDevice(c echo.Context) error {
	device, err := h.loadDevice(c)
	if err != nil {
		return err
	}

	var req DeviceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, utils.ErrorResponse("invalid request body"))
	}
	if req.Model != "" && !slices.Contains(h.cfg.SupportedModels, req.Model) {
		return c.JSON(http.StatusBadRequest, utils.ErrorResponse(fmt.Sprintf("unsupported model %q", req.Model)))
	}

	if req.Name != "" {
		device.Name = req.Name
	}
	if req.Model != "" {
		device.Model = req.Model
	}
	if req.IPAddress != "" {
		device.IPAddress = req.IPAddress
	}
	if req.Port != 0 {
		device.Port = req.Port
	}
	if req.MACAddress != nil && *req.MACAddress != "" {
		normalized := models.NormalizeMAC(*req.MACAddress)
		device.MACAddress = &normalized
	}
	if req.InstallationID != nil {
		device.InstallationID = req.InstallationID
	}
	if req.ZoneCount != 0 {
		device.ZoneCount = req.ZoneCount
	}
	if req.Password != "" {
		cred := models.Credential{Username: req.Username, Secret: req.Password}
		if err := device.SetCredential(h.cfg.EncryptionKey, cred); err != nil {
			return c.JSON(http.StatusInternalServerError, utils.ErrorResponse("failed to store credentials"))
		}
	}

	if err := h.devices.Update(device); err != nil {
		return c.JSON(http.StatusInternalServerError, utils.ErrorResponse(base.GetErrorMessage(err)))
	}
	return c.JSON(http.StatusOK, utils.SuccessResponse("device updated", device))
}

// DeleteDevice handles DELETE /devices/:id. Soft delete; events keep their
// reference.
func (h *DeviceHandler) DeleteDevice(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, utils.ErrorResponse("invalid device id"))
	}
	if err := h.devices.Delete(id); err != nil {
		if base.IsEntityNotFound(err) {
			return c.JSON(http.StatusNotFound, utils.ErrorResponse(base.GetErrorMessage(err)))
		}
		return c.JSON(http.StatusInternalServerError, utils.ErrorResponse(base.GetErrorMessage(err)))
	}
	return c.JSON(http.StatusOK, utils.SuccessResponse("device deleted", nil))
}

// TestConnection handles POST /devices/:id/test-connection.
func (h *DeviceHandler) TestConnection(c echo.Context) error {
	device, err := h.loadDevice(c)
	if err != nil {
		return err
	}
	result := h.panels.TestConnection(c.Request().Context(), device)
	return h.controlResponse(c, result)
}

// GetInfo handles GET /devices/:id/info.
func (h *DeviceHandler) GetInfo(c echo.Context) error {
	device, err := h.loadDevice(c)
	if err != nil {
		return err
	}
	result := h.panels.FetchInfo(c.Request().Context(), device)
	return h.controlResponse(c, result)
}

// GetStatus handles GET /devices/:id/status.
func (h *DeviceHandler) GetStatus(c echo.Context) error {
	device, err := h.loadDevice(c)
	if err != nil {
		return err
	}
	result := h.panels.FetchStatus(c.Request().Context(), device)
	return h.controlResponse(c, result)
}

// Arm handles POST /devices/:id/arm.
func (h *DeviceHandler) Arm(c echo.Context) error {
	device, err := h.loadDevice(c)
	if err != nil {
		return err
	}
	var req ArmRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, utils.ErrorResponse("invalid request body"))
	}
	if req.Mode != panel.ModeAway && req.Mode != panel.ModeStay {
		return c.JSON(http.StatusBadRequest, utils.ErrorResponse("mode must be away or stay"))
	}
	result := h.panels.ChangeArmStatus(c.Request().Context(), device, req.Mode, req.Partition)
	return h.controlResponse(c, result)
}

// Disarm handles POST /devices/:id/disarm.
func (h *DeviceHandler) Disarm(c echo.Context) error {
	device, err := h.loadDevice(c)
	if err != nil {
		return err
	}
	var req ArmRequest
	_ = c.Bind(&req) // partition is optional, body may be empty
	result := h.panels.ChangeArmStatus(c.Request().Context(), device, panel.ModeDisarm, req.Partition)
	return h.controlResponse(c, result)
}

// ConfigureWebhook handles POST /devices/:id/configure-webhook.
func (h *DeviceHandler) ConfigureWebhook(c echo.Context) error {
	device, err := h.loadDevice(c)
	if err != nil {
		return err
	}
	result := h.panels.ConfigureWebhook(c.Request().Context(), device, h.cfg.WebhookCallbackURL)
	return h.controlResponse(c, result)
}

// GetHistory handles GET /devices/:id/history, the polling fallback for
// panels without webhooks.
func (h *DeviceHandler) GetHistory(c echo.Context) error {
	device, err := h.loadDevice(c)
	if err != nil {
		return err
	}
	since := time.Now().Add(-24 * time.Hour)
	if raw := c.QueryParam("since"); raw != "" {
		parsed, parseErr := time.Parse(time.RFC3339, raw)
		if parseErr != nil {
			return c.JSON(http.StatusBadRequest, utils.ErrorResponse("since must be ISO-8601"))
		}
		since = parsed
	}
	result := h.panels.FetchEventHistory(c.Request().Context(), device, since)
	return h.controlResponse(c, result)
}

// RefreshStatus handles POST /devices/refresh-status: enqueues one
// heartbeat monitor sweep.
func (h *DeviceHandler) RefreshStatus(c echo.Context) error {
	taskID := fmt.Sprintf("sweep-%d", time.Now().Unix())
	if err := h.enqueuer.Enqueue(services.TaskRefreshDevices, taskID, struct{}{}); err != nil {
		return c.JSON(http.StatusInternalServerError, utils.ErrorResponse("failed to enqueue refresh"))
	}
	return c.JSON(http.StatusAccepted, utils.SuccessResponse("status refresh enqueued", map[string]string{"taskId": taskID}))
}

// GetStats handles GET /devices/stats.
func (h *DeviceHandler) GetStats(c echo.Context) error {
	stats, err := h.devices.Stats()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, utils.ErrorResponse(base.GetErrorMessage(err)))
	}
	return c.JSON(http.StatusOK, utils.SuccessResponse("device stats retrieved", stats))
}

func (h *DeviceHandler) loadDevice(c echo.Context) (*models.Device, error) {
	id, err := parseID(c)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid device id")
	}
	device, err := h.devices.GetByID(id)
	if err != nil {
		if base.IsEntityNotFound(err) {
			return nil, echo.NewHTTPError(http.StatusNotFound, base.GetErrorMessage(err))
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, base.GetErrorMessage(err))
	}
	return device, nil
}

// controlResponse maps a panel-control result to an HTTP answer. Failures
// are 502: the bridge worked, the panel did not.
func (h *DeviceHandler) controlResponse(c echo.Context, result *panel.Result) error {
	if !result.OK {
		return c.JSON(http.StatusBadGateway, utils.ErrorResponse(result.Message))
	}
	return c.JSON(http.StatusOK, utils.SuccessResponse(result.Message, result))
}

func parseID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
