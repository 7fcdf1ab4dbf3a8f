package panel

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"panel-bridge/config"
	"panel-bridge/models"
	"panel-bridge/repositories/interfaces"

	"github.com/icholy/digest"
)

// ControlService talks to physical panels over their digest-authenticated
// HTTP API and keeps the registry's connectivity state in sync with what it
// observes: any successful call marks the device online, a connect failure
// marks it offline, an authentication failure marks it in error.
type ControlService struct {
	cfg     *config.Config
	devices interfaces.DeviceRepositoryInterface
	logger  *slog.Logger
}

// NewControlService creates a new instance of ControlService.
func NewControlService(cfg *config.Config, devices interfaces.DeviceRepositoryInterface, logger *slog.Logger) *ControlService {
	return &ControlService{
		cfg:     cfg,
		devices: devices,
		logger:  logger.With("component", "panel_client"),
	}
}

// baseURL derives the panel endpoint from its address. Port 443 implies
// HTTPS, anything else plain HTTP.
func baseURL(device *models.Device) string {
	scheme := "http"
	if device.Port == 443 {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, device.IPAddress, device.Port)
}

// httpClientFor builds the per-call HTTP client: digest transport over a
// dialer with a short connect timeout, self-signed certificates tolerated,
// overall deadline from the request timeout.
func (s *ControlService) httpClientFor(cred *models.Credential) *http.Client {
	inner := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: s.cfg.PanelConnectTimeout,
		}).DialContext,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: true},
		TLSHandshakeTimeout:   s.cfg.PanelConnectTimeout,
		ResponseHeaderTimeout: s.cfg.PanelRequestTimeout,
	}
	return &http.Client{
		Timeout: s.cfg.PanelRequestTimeout,
		Transport: &digest.Transport{
			Username:  cred.Username,
			Password:  cred.Secret,
			Transport: inner,
		},
	}
}

// callResult carries the raw outcome of one request.
type callResult struct {
	statusCode  int
	body        []byte
	contentType string
}

// doRequest is the single request primitive every operation funnels
// through. It applies the device state transitions as side effects and
// returns a failure Result instead of an error for anything that went
// wrong, so callers only deal with one shape.
func (s *ControlService) doRequest(ctx context.Context, device *models.Device, method, path string, body interface{}) (*callResult, *Result) {
	cred := device.Credential(s.cfg.EncryptionKey)
	if cred == nil {
		return nil, failure("device %d has no usable credentials", device.ID)
	}

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, failure("failed to encode request body: %v", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	url := baseURL(device) + path
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, failure("failed to build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClientFor(cred).Do(req)
	if err != nil {
		// Anything below HTTP is a connectivity problem.
		s.markOffline(device)
		s.logger.Warn("Panel unreachable", "device_id", device.ID, "url", url, slog.Any("error", err))
		return nil, failure("connection failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		s.markOffline(device)
		return nil, failure("failed to read response: %v", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		s.markError(device)
		s.logger.Warn("Panel rejected credentials", "device_id", device.ID)
		return nil, failure("authentication failed (HTTP 401)")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := fmt.Sprintf("panel returned HTTP %d", resp.StatusCode)
		var apiErr apiError
		if decodeBody(raw, resp.Header.Get("Content-Type"), &apiErr) == nil && apiErr.ErrorMsg != "" {
			if apiErr.ErrorCode != nil {
				msg = fmt.Sprintf("panel error %d: %s", *apiErr.ErrorCode, apiErr.ErrorMsg)
			} else {
				msg = fmt.Sprintf("panel error: %s", apiErr.ErrorMsg)
			}
		}
		return nil, failure("%s", msg)
	}

	s.markOnline(device)
	return &callResult{
		statusCode:  resp.StatusCode,
		body:        raw,
		contentType: resp.Header.Get("Content-Type"),
	}, nil
}

// TestConnection checks reachability and credentials without reading state.
func (s *ControlService) TestConnection(ctx context.Context, device *models.Device) *Result {
	if _, fail := s.doRequest(ctx, device, http.MethodGet, "/api/system/deviceInfo", nil); fail != nil {
		return fail
	}
	return success("panel reachable")
}

// FetchInfo retrieves static device information.
func (s *ControlService) FetchInfo(ctx context.Context, device *models.Device) *Result {
	call, fail := s.doRequest(ctx, device, http.MethodGet, "/api/system/deviceInfo", nil)
	if fail != nil {
		return fail
	}
	var info DeviceInfo
	if err := decodeBody(call.body, call.contentType, &info); err != nil {
		return failure("unreadable device info: %v", err)
	}
	result := success("device info retrieved")
	result.Info = &info
	return result
}

// FetchStatus retrieves the live panel status and mirrors the reported arm
// mode into the registry.
func (s *ControlService) FetchStatus(ctx context.Context, device *models.Device) *Result {
	call, fail := s.doRequest(ctx, device, http.MethodGet, "/api/system/status", nil)
	if fail != nil {
		return fail
	}
	var status PanelStatus
	if err := decodeBody(call.body, call.contentType, &status); err != nil {
		return failure("unreadable panel status: %v", err)
	}

	if armStatus := armModeToStatus(status.ArmMode); armStatus != models.ArmStatusUnknown {
		if err := s.devices.SetArmStatus(device.ID, armStatus); err != nil {
			s.logger.Error("Failed to mirror arm status", "device_id", device.ID, slog.Any("error", err))
		}
	}

	result := success("panel status retrieved")
	result.Status = &status
	return result
}

// ChangeArmStatus arms or disarms the panel. Mode is away, stay or disarm;
// partition is optional. A successful response updates the local arm status
// to match.
func (s *ControlService) ChangeArmStatus(ctx context.Context, device *models.Device, mode string, partition *int) *Result {
	if mode != ModeAway && mode != ModeStay && mode != ModeDisarm {
		return failure("unsupported arm mode %q", mode)
	}

	body := armRequest{Mode: mode, SubSysNo: partition}
	if _, fail := s.doRequest(ctx, device, http.MethodPut, "/api/system/armStatus", body); fail != nil {
		return fail
	}

	if err := s.devices.SetArmStatus(device.ID, armModeToStatus(mode)); err != nil {
		s.logger.Error("Failed to update arm status", "device_id", device.ID, slog.Any("error", err))
	}
	return success(fmt.Sprintf("panel %s command accepted", mode))
}

// FetchEventHistory polls the panel's own event log. This is the fallback
// ingestion path for panels with webhooks disabled.
func (s *ControlService) FetchEventHistory(ctx context.Context, device *models.Device, since time.Time) *Result {
	path := fmt.Sprintf("/api/events?since=%s", since.UTC().Format(time.RFC3339))
	call, fail := s.doRequest(ctx, device, http.MethodGet, path, nil)
	if fail != nil {
		return fail
	}
	var envelope historyEnvelope
	if err := decodeBody(call.body, call.contentType, &envelope); err != nil {
		return failure("unreadable event history: %v", err)
	}
	result := success(fmt.Sprintf("%d events retrieved", len(envelope.Events)))
	result.Events = envelope.Events
	return result
}

// ConfigureWebhook points the panel's push notifications at our ingestion
// endpoint and records the flag on the device.
func (s *ControlService) ConfigureWebhook(ctx context.Context, device *models.Device, callbackURL string) *Result {
	if callbackURL == "" {
		return failure("webhook callback URL is not configured")
	}
	body := webhookConfigRequest{URL: callbackURL, Enabled: true}
	if _, fail := s.doRequest(ctx, device, http.MethodPut, "/api/system/webhook", body); fail != nil {
		return fail
	}

	device.WebhookEnabled = true
	if err := s.devices.Update(device); err != nil {
		s.logger.Error("Failed to persist webhook flag", "device_id", device.ID, slog.Any("error", err))
	}
	return success("webhook target configured")
}

func (s *ControlService) markOnline(device *models.Device) {
	if err := s.devices.SetStatus(device.ID, models.DeviceStatusOnline); err != nil {
		s.logger.Error("Failed to mark device online", "device_id", device.ID, slog.Any("error", err))
	}
	if err := s.devices.TouchHeartbeat(device.ID, time.Now()); err != nil {
		s.logger.Error("Failed to touch heartbeat", "device_id", device.ID, slog.Any("error", err))
	}
}

func (s *ControlService) markOffline(device *models.Device) {
	if err := s.devices.SetStatus(device.ID, models.DeviceStatusOffline); err != nil {
		s.logger.Error("Failed to mark device offline", "device_id", device.ID, slog.Any("error", err))
	}
}

func (s *ControlService) markError(device *models.Device) {
	if err := s.devices.SetStatus(device.ID, models.DeviceStatusError); err != nil {
		s.logger.Error("Failed to mark device errored", "device_id", device.ID, slog.Any("error", err))
	}
}
