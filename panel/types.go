package panel

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"

	"panel-bridge/models"
)

// Arm modes accepted by the panel API.
const (
	ModeAway   = "away"
	ModeStay   = "stay"
	ModeDisarm = "disarm"
)

// DeviceInfo is the normalized device-information response.
type DeviceInfo struct {
	Model           string `json:"model" xml:"model"`
	SerialNumber    string `json:"serialNumber" xml:"serialNumber"`
	FirmwareVersion string `json:"firmwareVersion" xml:"firmwareVersion"`
	ZoneCount       int    `json:"zoneCount" xml:"zoneCount"`
}

// PanelStatus is the normalized live-status response.
type PanelStatus struct {
	ArmMode      string `json:"armMode" xml:"armMode"`
	BatteryLevel int    `json:"batteryLevel" xml:"batteryLevel"`
	Tampered     bool   `json:"tampered" xml:"tampered"`
}

// HistoryEvent is one entry of the panel's own event log, used as the
// polling fallback when webhooks are disabled or unreachable.
type HistoryEvent struct {
	Code        int    `json:"code" xml:"code"`
	Zone        int    `json:"zone" xml:"zone"`
	Time        string `json:"time" xml:"time"`
	Description string `json:"description" xml:"description"`
}

type historyEnvelope struct {
	Events []HistoryEvent `json:"events" xml:"events>event"`
}

// apiError is the error block panels embed in otherwise structured
// responses.
type apiError struct {
	ErrorCode *int   `json:"errorCode" xml:"errorCode"`
	ErrorMsg  string `json:"errorMsg" xml:"errorMsg"`
}

// armRequest is the body of a change-arm-mode call.
type armRequest struct {
	Mode     string `json:"mode"`
	SubSysNo *int   `json:"subSysNo,omitempty"`
}

// webhookConfigRequest points the panel's notification target at us.
type webhookConfigRequest struct {
	URL     string `json:"url"`
	Enabled bool   `json:"enabled"`
}

// Result is the synchronous outcome of a device-control call. Network and
// API failures are folded into it rather than propagated as raw errors.
type Result struct {
	OK      bool           `json:"ok"`
	Message string         `json:"message"`
	Info    *DeviceInfo    `json:"info,omitempty"`
	Status  *PanelStatus   `json:"status,omitempty"`
	Events  []HistoryEvent `json:"events,omitempty"`
}

func failure(format string, args ...interface{}) *Result {
	return &Result{OK: false, Message: fmt.Sprintf(format, args...)}
}

func success(message string) *Result {
	return &Result{OK: true, Message: message}
}

// decodeBody parses a panel response that may be JSON or XML into v.
func decodeBody(data []byte, contentType string, v interface{}) error {
	trimmed := strings.TrimSpace(string(data))
	isXML := strings.Contains(contentType, "xml") || strings.HasPrefix(trimmed, "<")
	if isXML {
		if err := xml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to parse XML response: %w", err)
		}
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return nil
}

// armModeToStatus maps a panel arm mode onto the registry arm status.
func armModeToStatus(mode string) string {
	switch strings.ToLower(mode) {
	case ModeAway:
		return models.ArmStatusAway
	case ModeStay:
		return models.ArmStatusStay
	case ModeDisarm, "disarmed":
		return models.ArmStatusDisarmed
	default:
		return models.ArmStatusUnknown
	}
}
