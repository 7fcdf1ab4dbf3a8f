package models

import (
	"time"

	"gorm.io/gorm"
)

// Connectivity states a panel can be in, as seen from the bridge.
const (
	DeviceStatusOnline      = "online"
	DeviceStatusOffline     = "offline"
	DeviceStatusError       = "error"
	DeviceStatusConfiguring = "configuring"
	DeviceStatusUnknown     = "unknown"
)

// Arm states reported by or pushed to a panel.
const (
	ArmStatusAway     = "armed_away"
	ArmStatusStay     = "armed_stay"
	ArmStatusDisarmed = "disarmed"
	ArmStatusUnknown  = "unknown"
)

// Event lifecycle states carried on the inbound payload.
const (
	EventStateActive   = "active"
	EventStateInactive = "inactive"
	EventStateRestore  = "restore"
)

// Severity levels assigned by classification.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
	SeverityNone     = "none"
)

// Alarm types assigned by classification. The set is open-ended; these are
// the ones the built-in code table produces.
const (
	AlarmTypeIntrusion = "intrusion"
	AlarmTypeFire      = "fire"
	AlarmTypePanic     = "panic"
	AlarmTypeMedical   = "medical"
	AlarmTypeTamper    = "tamper"
	AlarmTypeFault     = "fault"
	AlarmTypeSystem    = "system"
	AlarmTypeOther     = "other"
)

// Database Models

// Device is a registered alarm panel.
type Device struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	InstallationID *uint          `gorm:"index" json:"installationId"`
	Name           string         `json:"name"`
	SerialNumber   string         `gorm:"uniqueIndex" json:"serialNumber"`
	Model          string         `json:"model"`
	IPAddress      string         `gorm:"index" json:"ipAddress"`
	MACAddress     *string        `gorm:"uniqueIndex" json:"macAddress"`
	Port           int            `json:"port"`
	APIUsername    string         `json:"-"`
	APISecret      string         `json:"-"` // encrypted, never serialized
	Status         string         `gorm:"default:unknown" json:"status"`
	ArmStatus      string         `gorm:"default:unknown" json:"armStatus"`
	LastHeartbeat  *time.Time     `json:"lastHeartbeat"`
	LastEventAt    *time.Time     `json:"lastEventAt"`
	ZoneCount      int            `json:"zoneCount"`
	WebhookEnabled bool           `json:"webhookEnabled"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`

	Installation *Installation `gorm:"foreignKey:InstallationID" json:"installation,omitempty"`
}

// Installation ties a device to a site and, transitively, to a client and
// contract. Owned by the business side of the platform; the pipeline only
// reads it to resolve incident ownership and addresses.
type Installation struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ClientID   *uint     `json:"clientId"`
	ContractID *uint     `json:"contractId"`
	Name       string    `json:"name"`
	Address    string    `json:"address"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Event is a raw inbound panel event. Append-only: once Processed is set the
// pipeline never touches the row again unless an operator resubmits it.
type Event struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UUID            string     `gorm:"uniqueIndex" json:"uuid"`
	DeviceID        *uint      `gorm:"index" json:"deviceId"`
	IncidentID      *uint      `gorm:"index" json:"incidentId"`
	SourceIP        string     `json:"sourceIp"`
	SourceMAC       string     `json:"sourceMac"`
	EventType       string     `json:"eventType"`
	CIDCode         *int       `gorm:"index" json:"cidCode"`
	StandardCIDCode *int       `json:"standardCidCode"`
	ZoneNumber      *int       `json:"zoneNumber"`
	ChannelID       *int       `json:"channelId"`
	State           string     `gorm:"default:active" json:"state"`
	Description     string     `json:"description"`
	AlarmType       *string    `gorm:"index" json:"alarmType"`
	Severity        *string    `gorm:"index" json:"severity"`
	RawPayload      string     `gorm:"type:text" json:"rawPayload"`
	Processed       bool       `gorm:"index;default:false" json:"processed"`
	ProcessedAt     *time.Time `json:"processedAt"`
	ProcessingError string     `json:"processingError"`
	DedupHash       string     `gorm:"index" json:"dedupHash"`
	TriggeredAt     time.Time  `gorm:"index" json:"triggeredAt"`
	CreatedAt       time.Time  `json:"createdAt"`

	Device *Device `gorm:"foreignKey:DeviceID" json:"device,omitempty"`
}

// Incident is an actionable alert derived from one or more classified events.
type Incident struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	ClientID    *uint      `json:"clientId"`
	ContractID  *uint      `json:"contractId"`
	DeviceID    *uint      `gorm:"index" json:"deviceId"`
	ZoneNumber  *int       `json:"zoneNumber"`
	AlarmType   string     `json:"alarmType"`
	Severity    string     `json:"severity"`
	Description string     `json:"description"`
	TriggeredAt time.Time  `json:"triggeredAt"`
	Resolved    bool       `gorm:"index;default:false" json:"resolved"`
	ResolvedAt  *time.Time `json:"resolvedAt"`
	ResolvedBy  string     `json:"resolvedBy"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// DeviceStats aggregates registry counts for the stats endpoint.
type DeviceStats struct {
	Total       int64            `json:"total"`
	ByStatus    map[string]int64 `json:"byStatus"`
	ByArmStatus map[string]int64 `json:"byArmStatus"`
	ByModel     map[string]int64 `json:"byModel"`
}

// EventStats aggregates event-store counts for the stats endpoint.
type EventStats struct {
	Total       int64            `json:"total"`
	Processed   int64            `json:"processed"`
	Unprocessed int64            `json:"unprocessed"`
	BySeverity  map[string]int64 `json:"bySeverity"`
	ByAlarmType map[string]int64 `json:"byAlarmType"`
}
