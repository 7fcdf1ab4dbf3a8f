package services

import (
	"fmt"
	"log/slog"
	"time"

	"panel-bridge/config"
	"panel-bridge/models"
	"panel-bridge/repositories/base"
	"panel-bridge/repositories/interfaces"

	"github.com/google/uuid"
)

// StatusCache mirrors device connectivity into Redis for cheap reads.
// Implemented by redis.RedisClient.
type StatusCache interface {
	SetDeviceStatus(deviceID uint, status string) error
}

// IngestResult is the synchronous outcome of a webhook delivery.
type IngestResult struct {
	EventUUID string
	Duplicate bool
}

// IngestService is the webhook entry point of the pipeline. It stays fast:
// persist the raw event, check for a duplicate, hand the rest to the queue.
// It never talks to the panel.
type IngestService struct {
	cfg      *config.Config
	devices  interfaces.DeviceRepositoryInterface
	events   interfaces.EventRepositoryInterface
	enqueuer Enqueuer
	cache    StatusCache
	logger   *slog.Logger
}

// NewIngestService creates a new instance of IngestService.
func NewIngestService(
	cfg *config.Config,
	devices interfaces.DeviceRepositoryInterface,
	events interfaces.EventRepositoryInterface,
	enqueuer Enqueuer,
	cache StatusCache,
	logger *slog.Logger,
) *IngestService {
	return &IngestService{
		cfg:      cfg,
		devices:  devices,
		events:   events,
		enqueuer: enqueuer,
		cache:    cache,
		logger:   logger.With("component", "ingest"),
	}
}

// identifyDevice resolves the source device: MAC first, then IP, then give
// up. An unresolved device is logged but never rejects the delivery.
func (s *IngestService) identifyDevice(mac, ip string) *models.Device {
	if mac != "" {
		device, err := s.devices.GetByMAC(mac)
		if err == nil {
			return device
		}
		if !base.IsEntityNotFound(err) {
			s.logger.Error("Device lookup by MAC failed", "mac", mac, slog.Any("error", err))
		}
	}
	if ip != "" {
		device, err := s.devices.GetByIP(ip)
		if err == nil {
			return device
		}
		if !base.IsEntityNotFound(err) {
			s.logger.Error("Device lookup by IP failed", "ip", ip, slog.Any("error", err))
		}
	}
	s.logger.Warn("Event source not resolvable to a registered device", "mac", mac, "ip", ip)
	return nil
}

// IngestAlarm persists an inbound alarm notification and queues its
// processing. The payload must already be validated. Duplicate deliveries
// within the dedup window are acknowledged but not queued.
func (s *IngestService) IngestAlarm(payload *models.AlarmPayload, raw []byte, receivedAt time.Time) (*IngestResult, error) {
	device := s.identifyDevice(payload.NormalizedMAC(), payload.IPAddress)

	event := &models.Event{
		UUID:        uuid.NewString(),
		SourceIP:    payload.IPAddress,
		SourceMAC:   payload.NormalizedMAC(),
		EventType:   payload.EventType,
		State:       payload.State(),
		ChannelID:   payload.ChannelID,
		RawPayload:  string(raw),
		TriggeredAt: payload.TriggeredAt(receivedAt),
	}
	if device != nil {
		event.DeviceID = &device.ID
	}
	if cid := payload.CIDEvent; cid != nil {
		event.CIDCode = cid.Code
		event.StandardCIDCode = cid.StandardCIDCode
		event.ZoneNumber = cid.Zone
		if cid.Type != "" {
			event.Description = cid.Type
		}
	}
	event.DedupHash = ComputeDedupHash(event)

	if err := s.events.Create(event); err != nil {
		return nil, fmt.Errorf("failed to store event: %w", err)
	}

	duplicate, err := s.events.FindDuplicate(event, s.cfg.DedupWindow)
	if err != nil {
		return nil, fmt.Errorf("dedup check failed: %w", err)
	}
	if duplicate != nil {
		if err := s.events.MarkProcessed(event.ID, fmt.Sprintf("duplicate of event %s", duplicate.UUID)); err != nil {
			s.logger.Error("Failed to annotate duplicate event", "event_uuid", event.UUID, slog.Any("error", err))
		}
		s.touchDevice(device, receivedAt, event.TriggeredAt)
		s.logger.Info("Duplicate event acknowledged",
			"event_uuid", event.UUID, "original_uuid", duplicate.UUID)
		return &IngestResult{EventUUID: event.UUID, Duplicate: true}, nil
	}

	if err := s.enqueuer.Enqueue(TaskProcessEvent, event.UUID, ProcessEventTask{EventUUID: event.UUID}); err != nil {
		return nil, fmt.Errorf("failed to enqueue event processing: %w", err)
	}
	s.touchDevice(device, receivedAt, event.TriggeredAt)

	return &IngestResult{EventUUID: event.UUID}, nil
}

// Heartbeat handles the heartbeat-only webhook path: connectivity touch, no
// event record. An unknown source is accepted with a warning so panels stay
// cheap to provision.
func (s *IngestService) Heartbeat(payload *models.HeartbeatPayload, receivedAt time.Time) {
	device := s.identifyDevice(models.NormalizeMAC(payload.MACAddress), payload.IPAddress)
	if device == nil {
		return
	}
	if err := s.devices.SetStatus(device.ID, models.DeviceStatusOnline); err != nil {
		s.logger.Error("Failed to set device online", "device_id", device.ID, slog.Any("error", err))
	}
	s.touchDevice(device, receivedAt, receivedAt)
}

// touchDevice records that the device communicated. Runs on every accepted
// request regardless of how the event classifies.
func (s *IngestService) touchDevice(device *models.Device, heartbeatAt, eventAt time.Time) {
	if device == nil {
		return
	}
	if err := s.devices.TouchHeartbeat(device.ID, heartbeatAt); err != nil {
		s.logger.Error("Failed to touch heartbeat", "device_id", device.ID, slog.Any("error", err))
	}
	if err := s.devices.TouchLastEvent(device.ID, eventAt); err != nil {
		s.logger.Error("Failed to touch last event", "device_id", device.ID, slog.Any("error", err))
	}
	if s.cache != nil {
		if err := s.cache.SetDeviceStatus(device.ID, models.DeviceStatusOnline); err != nil {
			s.logger.Warn("Failed to mirror device status", "device_id", device.ID, slog.Any("error", err))
		}
	}
}
