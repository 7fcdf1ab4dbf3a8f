package services_test

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"panel-bridge/config"
	"panel-bridge/models"
	"panel-bridge/panel"
	"panel-bridge/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staleDevice(t *testing.T, repo *fakeDeviceRepo, cfg *config.Config, addr string) *models.Device {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	device := &models.Device{
		IPAddress: host,
		Port:      port,
		Status:    models.DeviceStatusUnknown,
	}
	require.NoError(t, device.SetCredential(cfg.EncryptionKey, models.Credential{
		Username: "admin",
		Secret:   "hunter2",
	}))
	return repo.add(device)
}

func TestHeartbeatMonitorProbesStaleDevices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"armMode":"stay","batteryLevel":90}`))
	}))
	defer server.Close()

	cfg := &config.Config{
		EncryptionKey:       "monitor-test-key",
		StaleThreshold:      10 * time.Minute,
		HeartbeatBatchSize:  10,
		PanelConnectTimeout: time.Second,
		PanelRequestTimeout: 2 * time.Second,
	}
	devices := newFakeDeviceRepo()
	device := staleDevice(t, devices, cfg, server.Listener.Addr().String())

	cache := newFakeStatusCache()
	panels := panel.NewControlService(cfg, devices, testLogger())
	monitor := services.NewHeartbeatMonitor(cfg, devices, panels, cache, testLogger())

	require.NoError(t, monitor.Run(context.Background()))

	assert.Equal(t, models.DeviceStatusOnline, device.Status)
	assert.Equal(t, models.ArmStatusStay, device.ArmStatus)
	assert.NotNil(t, device.LastHeartbeat)
	assert.Equal(t, models.DeviceStatusOnline, cache.statuses[device.ID])
}

func TestHeartbeatMonitorUnreachableDevice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.Listener.Addr().String()
	server.Close()

	cfg := &config.Config{
		EncryptionKey:       "monitor-test-key",
		StaleThreshold:      10 * time.Minute,
		HeartbeatBatchSize:  10,
		PanelConnectTimeout: time.Second,
		PanelRequestTimeout: 2 * time.Second,
	}
	devices := newFakeDeviceRepo()
	device := staleDevice(t, devices, cfg, addr)

	cache := newFakeStatusCache()
	panels := panel.NewControlService(cfg, devices, testLogger())
	monitor := services.NewHeartbeatMonitor(cfg, devices, panels, cache, testLogger())

	require.NoError(t, monitor.Run(context.Background()))

	assert.Equal(t, models.DeviceStatusOffline, device.Status)
	assert.Equal(t, models.DeviceStatusOffline, cache.statuses[device.ID])
}

func TestHeartbeatMonitorNoStaleDevices(t *testing.T) {
	cfg := &config.Config{StaleThreshold: 10 * time.Minute, HeartbeatBatchSize: 10}
	devices := newFakeDeviceRepo()
	fresh := time.Now()
	devices.add(&models.Device{LastHeartbeat: &fresh})

	monitor := services.NewHeartbeatMonitor(cfg, devices, nil, newFakeStatusCache(), testLogger())
	require.NoError(t, monitor.Run(context.Background()))
}
