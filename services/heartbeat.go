package services

import (
	"context"
	"log/slog"

	"panel-bridge/config"
	"panel-bridge/models"
	"panel-bridge/panel"
	"panel-bridge/repositories/interfaces"
)

// HeartbeatMonitor re-checks devices that have gone quiet. Each run selects
// a bounded batch of stale devices and probes them sequentially; the panel
// client's side effects bring the registry up to date. Heartbeat updates
// are last-writer-wins per device, so overlapping runs are harmless.
type HeartbeatMonitor struct {
	cfg     *config.Config
	devices interfaces.DeviceRepositoryInterface
	panels  *panel.ControlService
	cache   StatusCache
	logger  *slog.Logger
}

// NewHeartbeatMonitor creates a new instance of HeartbeatMonitor.
func NewHeartbeatMonitor(
	cfg *config.Config,
	devices interfaces.DeviceRepositoryInterface,
	panels *panel.ControlService,
	cache StatusCache,
	logger *slog.Logger,
) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		cfg:     cfg,
		devices: devices,
		panels:  panels,
		cache:   cache,
		logger:  logger.With("component", "heartbeat_monitor"),
	}
}

// Run probes one batch of stale devices. Returning an error retries the
// whole batch, which is safe: probes are idempotent per device.
func (m *HeartbeatMonitor) Run(ctx context.Context) error {
	stale, err := m.devices.ListStale(m.cfg.StaleThreshold, m.cfg.HeartbeatBatchSize)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		m.logger.Debug("No stale devices")
		return nil
	}

	m.logger.Info("Probing stale devices", "count", len(stale))
	for i := range stale {
		device := &stale[i]
		result := m.panels.FetchStatus(ctx, device)

		status := models.DeviceStatusOnline
		if !result.OK {
			// The panel client already wrote the precise failure state;
			// mirror a generic offline marker.
			status = models.DeviceStatusOffline
			m.logger.Warn("Stale device still unreachable",
				"device_id", device.ID, "message", result.Message)
		}
		if m.cache != nil {
			if err := m.cache.SetDeviceStatus(device.ID, status); err != nil {
				m.logger.Warn("Failed to mirror device status",
					"device_id", device.ID, slog.Any("error", err))
			}
		}
	}
	return nil
}
