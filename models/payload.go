package models

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var macPattern = regexp.MustCompile(`^([0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2}$`)

// CIDPayload is the nested Contact-ID block of an alarm notification.
type CIDPayload struct {
	Code            *int   `json:"code" xml:"code"`
	StandardCIDCode *int   `json:"standardCIDcode" xml:"standardCIDcode"`
	Type            string `json:"type" xml:"type"`
	Trigger         string `json:"trigger" xml:"trigger"`
	Zone            *int   `json:"zone" xml:"zone"`
	Partition       *int   `json:"partition" xml:"partition"`
}

// AlarmPayload is the inbound webhook notification body. Panels post it as
// JSON or XML depending on firmware; both decode into this one structure.
type AlarmPayload struct {
	IPAddress  string      `json:"ipAddress" xml:"ipAddress"`
	MACAddress string      `json:"macAddress" xml:"macAddress"`
	EventType  string      `json:"eventType" xml:"eventType"`
	EventState string      `json:"eventState" xml:"eventState"`
	DateTime   string      `json:"dateTime" xml:"dateTime"`
	ChannelID  *int        `json:"channelID" xml:"channelID"`
	CIDEvent   *CIDPayload `json:"CIDEvent" xml:"CIDEvent"`
}

// HeartbeatPayload carries only device identification; used by the
// heartbeat-only webhook path.
type HeartbeatPayload struct {
	IPAddress  string `json:"ipAddress" xml:"ipAddress"`
	MACAddress string `json:"macAddress" xml:"macAddress"`
}

// ParseAlarmPayload decodes an alarm notification from JSON, falling back to
// XML for panels that only speak the older firmware format.
func ParseAlarmPayload(raw []byte) (*AlarmPayload, error) {
	var payload AlarmPayload
	jsonErr := json.Unmarshal(raw, &payload)
	if jsonErr == nil {
		return &payload, nil
	}
	if xmlErr := xml.Unmarshal(raw, &payload); xmlErr == nil {
		return &payload, nil
	}
	return nil, fmt.Errorf("payload is neither valid JSON nor XML: %w", jsonErr)
}

// Validate checks the payload shape and returns a map of field name to
// violation message. An empty map means the payload is acceptable.
func (p *AlarmPayload) Validate() map[string]string {
	violations := make(map[string]string)

	if strings.TrimSpace(p.EventType) == "" {
		violations["eventType"] = "eventType is required"
	}
	if p.EventState != "" &&
		p.EventState != EventStateActive &&
		p.EventState != EventStateInactive &&
		p.EventState != EventStateRestore {
		violations["eventState"] = fmt.Sprintf("eventState must be one of active, inactive, restore (got %q)", p.EventState)
	}
	if p.MACAddress != "" && !macPattern.MatchString(p.MACAddress) {
		violations["macAddress"] = fmt.Sprintf("macAddress %q is not a valid MAC address", p.MACAddress)
	}
	if p.DateTime != "" {
		if _, err := time.Parse(time.RFC3339, p.DateTime); err != nil {
			violations["dateTime"] = fmt.Sprintf("dateTime %q is not ISO-8601", p.DateTime)
		}
	}
	return violations
}

// NormalizedMAC returns the MAC address in canonical uppercase colon form,
// or empty when absent.
func (p *AlarmPayload) NormalizedMAC() string {
	return NormalizeMAC(p.MACAddress)
}

// TriggeredAt resolves the moment the physical event occurred. The CIDEvent
// trigger wins over the envelope dateTime; missing or unparseable values
// fall back to the receipt time.
func (p *AlarmPayload) TriggeredAt(receivedAt time.Time) time.Time {
	if p.CIDEvent != nil && p.CIDEvent.Trigger != "" {
		if ts, err := time.Parse(time.RFC3339, p.CIDEvent.Trigger); err == nil {
			return ts
		}
	}
	if p.DateTime != "" {
		if ts, err := time.Parse(time.RFC3339, p.DateTime); err == nil {
			return ts
		}
	}
	return receivedAt
}

// State returns the event lifecycle state, defaulting to active.
func (p *AlarmPayload) State() string {
	if p.EventState == "" {
		return EventStateActive
	}
	return p.EventState
}

// NormalizeMAC converts a MAC address to uppercase XX:XX:XX:XX:XX:XX form.
// Invalid input is returned unchanged in uppercase so it still matches
// whatever was stored verbatim.
func NormalizeMAC(mac string) string {
	if mac == "" {
		return ""
	}
	return strings.ToUpper(strings.ReplaceAll(mac, "-", ":"))
}
