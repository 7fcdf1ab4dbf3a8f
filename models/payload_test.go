package models_test

import (
	"testing"
	"time"

	"panel-bridge/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAlarmPayloadJSON(t *testing.T) {
	raw := []byte(`{
		"ipAddress": "192.168.1.50",
		"macAddress": "aa-bb-cc-dd-ee-ff",
		"eventType": "zoneAlarm",
		"eventState": "active",
		"CIDEvent": {"code": 1130, "standardCIDcode": 1130, "zone": 3, "trigger": "2026-03-14T10:30:00Z"}
	}`)

	payload, err := models.ParseAlarmPayload(raw)
	require.NoError(t, err)
	assert.Equal(t, "zoneAlarm", payload.EventType)
	require.NotNil(t, payload.CIDEvent)
	assert.Equal(t, 1130, *payload.CIDEvent.Code)
	assert.Equal(t, 3, *payload.CIDEvent.Zone)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", payload.NormalizedMAC())
}

func TestParseAlarmPayloadXMLFallback(t *testing.T) {
	raw := []byte(`<EventNotificationAlert>
		<ipAddress>192.168.1.50</ipAddress>
		<eventType>zoneAlarm</eventType>
		<eventState>restore</eventState>
		<CIDEvent><code>3130</code><zone>3</zone></CIDEvent>
	</EventNotificationAlert>`)

	payload, err := models.ParseAlarmPayload(raw)
	require.NoError(t, err)
	assert.Equal(t, "zoneAlarm", payload.EventType)
	assert.Equal(t, models.EventStateRestore, payload.State())
	require.NotNil(t, payload.CIDEvent)
	assert.Equal(t, 3130, *payload.CIDEvent.Code)
}

func TestParseAlarmPayloadGarbage(t *testing.T) {
	_, err := models.ParseAlarmPayload([]byte("neither json nor xml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := &models.AlarmPayload{
		EventType:  "zoneAlarm",
		EventState: "active",
		MACAddress: "AA:BB:CC:DD:EE:FF",
		DateTime:   "2026-03-14T10:30:00Z",
	}
	assert.Empty(t, valid.Validate())

	invalid := &models.AlarmPayload{
		EventState: "wobbly",
		MACAddress: "not-a-mac",
		DateTime:   "yesterday",
	}
	violations := invalid.Validate()
	assert.Contains(t, violations, "eventType")
	assert.Contains(t, violations, "eventState")
	assert.Contains(t, violations, "macAddress")
	assert.Contains(t, violations, "dateTime")
}

func TestValidateOptionalFieldsMayBeEmpty(t *testing.T) {
	minimal := &models.AlarmPayload{EventType: "heartBeat"}
	assert.Empty(t, minimal.Validate())
}

func TestTriggeredAtPrecedence(t *testing.T) {
	receivedAt := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	trigger := "2026-03-14T10:30:00Z"
	envelope := "2026-03-14T11:00:00Z"

	withTrigger := &models.AlarmPayload{
		DateTime: envelope,
		CIDEvent: &models.CIDPayload{Trigger: trigger},
	}
	assert.Equal(t, "2026-03-14T10:30:00Z", withTrigger.TriggeredAt(receivedAt).Format(time.RFC3339))

	withEnvelope := &models.AlarmPayload{DateTime: envelope}
	assert.Equal(t, "2026-03-14T11:00:00Z", withEnvelope.TriggeredAt(receivedAt).Format(time.RFC3339))

	bare := &models.AlarmPayload{}
	assert.Equal(t, receivedAt, bare.TriggeredAt(receivedAt))

	// Unparseable trigger falls through to the envelope.
	broken := &models.AlarmPayload{
		DateTime: envelope,
		CIDEvent: &models.CIDPayload{Trigger: "noonish"},
	}
	assert.Equal(t, "2026-03-14T11:00:00Z", broken.TriggeredAt(receivedAt).Format(time.RFC3339))
}

func TestStateDefaultsToActive(t *testing.T) {
	assert.Equal(t, models.EventStateActive, (&models.AlarmPayload{}).State())
	assert.Equal(t, models.EventStateInactive, (&models.AlarmPayload{EventState: "inactive"}).State())
}

func TestNormalizeMAC(t *testing.T) {
	assert.Equal(t, "", models.NormalizeMAC(""))
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", models.NormalizeMAC("aa-bb-cc-dd-ee-ff"))
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", models.NormalizeMAC("aa:bb:cc:dd:ee:ff"))
}
