package services_test

import (
	"testing"
	"time"

	"panel-bridge/config"
	"panel-bridge/models"
	"panel-bridge/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

type ingestFixture struct {
	devices  *fakeDeviceRepo
	events   *fakeEventRepo
	enqueuer *fakeEnqueuer
	cache    *fakeStatusCache
	service  *services.IngestService
}

func newIngestFixture() *ingestFixture {
	f := &ingestFixture{
		devices:  newFakeDeviceRepo(),
		events:   newFakeEventRepo(),
		enqueuer: &fakeEnqueuer{},
		cache:    newFakeStatusCache(),
	}
	cfg := &config.Config{DedupWindow: time.Minute}
	f.service = services.NewIngestService(cfg, f.devices, f.events, f.enqueuer, f.cache, testLogger())
	return f
}

func alarmPayload() *models.AlarmPayload {
	return &models.AlarmPayload{
		IPAddress:  "192.168.1.50",
		MACAddress: "AA:BB:CC:DD:EE:FF",
		EventType:  "zoneAlarm",
		EventState: models.EventStateActive,
		CIDEvent: &models.CIDPayload{
			Code:    intPtr(1130),
			Trigger: "2026-03-14T10:30:00Z",
			Zone:    intPtr(3),
		},
	}
}

func TestIngestAlarmStoresAndQueues(t *testing.T) {
	f := newIngestFixture()
	device := f.devices.add(&models.Device{
		Name:         "front panel",
		SerialNumber: "AXPRO-001",
		MACAddress:   strPtr("AA:BB:CC:DD:EE:FF"),
	})

	receivedAt := time.Now()
	result, err := f.service.IngestAlarm(alarmPayload(), []byte(`{"eventType":"zoneAlarm"}`), receivedAt)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Duplicate)
	assert.NotEmpty(t, result.EventUUID)

	stored, err := f.events.GetByUUID(result.EventUUID)
	require.NoError(t, err)
	require.NotNil(t, stored.DeviceID)
	assert.Equal(t, device.ID, *stored.DeviceID)
	assert.Equal(t, 1130, *stored.CIDCode)
	assert.Equal(t, 3, *stored.ZoneNumber)
	assert.False(t, stored.Processed)
	assert.NotEmpty(t, stored.DedupHash)
	assert.Equal(t, time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC), stored.TriggeredAt.UTC())

	assert.Equal(t, 1, f.enqueuer.count(services.TaskProcessEvent))
	assert.NotNil(t, device.LastHeartbeat)
	assert.Equal(t, models.DeviceStatusOnline, f.cache.statuses[device.ID])
}

func TestIngestAlarmDuplicateNotQueued(t *testing.T) {
	f := newIngestFixture()
	f.devices.add(&models.Device{
		SerialNumber: "AXPRO-001",
		MACAddress:   strPtr("AA:BB:CC:DD:EE:FF"),
	})

	receivedAt := time.Now()
	first, err := f.service.IngestAlarm(alarmPayload(), []byte(`{}`), receivedAt)
	require.NoError(t, err)
	require.False(t, first.Duplicate)

	second, err := f.service.IngestAlarm(alarmPayload(), []byte(`{}`), receivedAt.Add(2*time.Second))
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.NotEqual(t, first.EventUUID, second.EventUUID)

	// The duplicate row is closed out immediately and never queued.
	stored, err := f.events.GetByUUID(second.EventUUID)
	require.NoError(t, err)
	assert.True(t, stored.Processed)
	assert.Contains(t, stored.ProcessingError, first.EventUUID)

	assert.Equal(t, 1, f.enqueuer.count(services.TaskProcessEvent))
}

func TestIngestAlarmUnknownDeviceAccepted(t *testing.T) {
	f := newIngestFixture()

	result, err := f.service.IngestAlarm(alarmPayload(), []byte(`{}`), time.Now())
	require.NoError(t, err)
	assert.False(t, result.Duplicate)

	stored, err := f.events.GetByUUID(result.EventUUID)
	require.NoError(t, err)
	assert.Nil(t, stored.DeviceID)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", stored.SourceMAC)
	assert.Equal(t, 1, f.enqueuer.count(services.TaskProcessEvent))
}

func TestIngestAlarmIdentifiesByIPFallback(t *testing.T) {
	f := newIngestFixture()
	device := f.devices.add(&models.Device{
		SerialNumber: "AXPRO-002",
		IPAddress:    "192.168.1.50",
	})

	payload := alarmPayload()
	payload.MACAddress = ""
	result, err := f.service.IngestAlarm(payload, []byte(`{}`), time.Now())
	require.NoError(t, err)

	stored, err := f.events.GetByUUID(result.EventUUID)
	require.NoError(t, err)
	require.NotNil(t, stored.DeviceID)
	assert.Equal(t, device.ID, *stored.DeviceID)
}

func TestHeartbeatTouchesDevice(t *testing.T) {
	f := newIngestFixture()
	device := f.devices.add(&models.Device{
		SerialNumber: "AXPRO-001",
		MACAddress:   strPtr("AA:BB:CC:DD:EE:FF"),
		Status:       models.DeviceStatusOffline,
	})

	f.service.Heartbeat(&models.HeartbeatPayload{MACAddress: "aa-bb-cc-dd-ee-ff"}, time.Now())

	assert.Equal(t, models.DeviceStatusOnline, device.Status)
	assert.NotNil(t, device.LastHeartbeat)
	assert.Empty(t, f.events.events)
}

func TestHeartbeatUnknownSourceIgnored(t *testing.T) {
	f := newIngestFixture()

	// Must not panic or record anything.
	f.service.Heartbeat(&models.HeartbeatPayload{IPAddress: "10.0.0.9"}, time.Now())
	assert.Empty(t, f.devices.statuses)
}
