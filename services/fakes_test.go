package services_test

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"panel-bridge/models"
	"panel-bridge/repositories/base"
	"panel-bridge/repositories/interfaces"
)

// In-memory fakes behind the repository interfaces, shared by the service
// tests.

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeDeviceRepo struct {
	mu         sync.Mutex
	devices    map[uint]*models.Device
	nextID     uint
	armUpdates []string
	statuses   []string
	heartbeats []time.Time
}

func newFakeDeviceRepo() *fakeDeviceRepo {
	return &fakeDeviceRepo{devices: make(map[uint]*models.Device), nextID: 1}
}

func (f *fakeDeviceRepo) add(device *models.Device) *models.Device {
	f.mu.Lock()
	defer f.mu.Unlock()
	if device.ID == 0 {
		device.ID = f.nextID
		f.nextID++
	}
	f.devices[device.ID] = device
	return device
}

func (f *fakeDeviceRepo) Create(device *models.Device) error {
	f.add(device)
	return nil
}

func (f *fakeDeviceRepo) GetByID(id uint) (*models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if device, ok := f.devices[id]; ok {
		return device, nil
	}
	return nil, base.NewEntityNotFoundError("device", fmt.Sprintf("id %d", id))
}

func (f *fakeDeviceRepo) GetBySerial(serial string) (*models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, device := range f.devices {
		if device.SerialNumber == serial {
			return device, nil
		}
	}
	return nil, base.NewEntityNotFoundError("device", "serial "+serial)
}

func (f *fakeDeviceRepo) GetByMAC(mac string) (*models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	normalized := models.NormalizeMAC(mac)
	for _, device := range f.devices {
		if device.MACAddress != nil && *device.MACAddress == normalized {
			return device, nil
		}
	}
	return nil, base.NewEntityNotFoundError("device", "mac "+mac)
}

func (f *fakeDeviceRepo) GetByIP(ip string) (*models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, device := range f.devices {
		if device.IPAddress == ip {
			return device, nil
		}
	}
	return nil, base.NewEntityNotFoundError("device", "ip "+ip)
}

func (f *fakeDeviceRepo) Update(device *models.Device) error {
	f.add(device)
	return nil
}

func (f *fakeDeviceRepo) Delete(id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.devices, id)
	return nil
}

func (f *fakeDeviceRepo) List(limit, offset int) ([]models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Device
	for _, device := range f.devices {
		out = append(out, *device)
	}
	return out, nil
}

func (f *fakeDeviceRepo) TouchHeartbeat(id uint, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats = append(f.heartbeats, at)
	device, ok := f.devices[id]
	if !ok {
		return nil
	}
	if device.LastHeartbeat == nil || device.LastHeartbeat.Before(at) {
		device.LastHeartbeat = &at
	}
	return nil
}

func (f *fakeDeviceRepo) TouchLastEvent(id uint, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	device, ok := f.devices[id]
	if !ok {
		return nil
	}
	if device.LastEventAt == nil || device.LastEventAt.Before(at) {
		device.LastEventAt = &at
	}
	return nil
}

func (f *fakeDeviceRepo) SetStatus(id uint, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	if device, ok := f.devices[id]; ok {
		device.Status = status
	}
	return nil
}

func (f *fakeDeviceRepo) SetArmStatus(id uint, armStatus string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.armUpdates = append(f.armUpdates, armStatus)
	if device, ok := f.devices[id]; ok {
		device.ArmStatus = armStatus
	}
	return nil
}

func (f *fakeDeviceRepo) ListStale(threshold time.Duration, limit int) ([]models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cutoff := time.Now().Add(-threshold)
	var out []models.Device
	for _, device := range f.devices {
		if device.LastHeartbeat == nil || device.LastHeartbeat.Before(cutoff) {
			out = append(out, *device)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeDeviceRepo) Stats() (*models.DeviceStats, error) {
	return &models.DeviceStats{}, nil
}

type fakeEventRepo struct {
	mu     sync.Mutex
	events []*models.Event
	nextID uint
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{nextID: 1}
}

func (f *fakeEventRepo) Create(event *models.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	event.ID = f.nextID
	f.nextID++
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEventRepo) GetByUUID(uuid string) (*models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, event := range f.events {
		if event.UUID == uuid {
			return event, nil
		}
	}
	return nil, base.NewEntityNotFoundError("event", "uuid "+uuid)
}

func (f *fakeEventRepo) FindDuplicate(event *models.Event, window time.Duration) (*models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, other := range f.events {
		if other.ID == event.ID || other.DedupHash != event.DedupHash {
			continue
		}
		delta := other.TriggeredAt.Sub(event.TriggeredAt)
		if delta < 0 {
			delta = -delta
		}
		if delta <= window {
			return other, nil
		}
	}
	return nil, nil
}

func (f *fakeEventRepo) SetClassification(id uint, alarmType, severity, description string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, event := range f.events {
		if event.ID == id {
			event.AlarmType = &alarmType
			event.Severity = &severity
			if description != "" {
				event.Description = description
			}
		}
	}
	return nil
}

func (f *fakeEventRepo) LinkIncident(eventID, incidentID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, event := range f.events {
		if event.ID == eventID {
			event.IncidentID = &incidentID
		}
	}
	return nil
}

func (f *fakeEventRepo) MarkProcessed(id uint, processingError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for _, event := range f.events {
		if event.ID == id {
			event.Processed = true
			event.ProcessedAt = &now
			event.ProcessingError = processingError
		}
	}
	return nil
}

func (f *fakeEventRepo) Resubmit(id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, event := range f.events {
		if event.ID == id {
			event.Processed = false
			event.ProcessedAt = nil
			event.ProcessingError = ""
		}
	}
	return nil
}

func (f *fakeEventRepo) List(filter interfaces.EventFilter, limit, offset int) ([]models.Event, error) {
	return nil, nil
}

func (f *fakeEventRepo) ListUnprocessed(limit int) ([]models.Event, error) {
	return nil, nil
}

func (f *fakeEventRepo) ListCritical(limit int) ([]models.Event, error) {
	return nil, nil
}

func (f *fakeEventRepo) Stats() (*models.EventStats, error) {
	return &models.EventStats{}, nil
}

type fakeIncidentRepo struct {
	mu        sync.Mutex
	incidents []*models.Incident
	nextID    uint
}

func newFakeIncidentRepo() *fakeIncidentRepo {
	return &fakeIncidentRepo{nextID: 1}
}

func (f *fakeIncidentRepo) Create(incident *models.Incident) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	incident.ID = f.nextID
	f.nextID++
	f.incidents = append(f.incidents, incident)
	return nil
}

func (f *fakeIncidentRepo) GetByID(id uint) (*models.Incident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, incident := range f.incidents {
		if incident.ID == id {
			return incident, nil
		}
	}
	return nil, base.NewEntityNotFoundError("incident", fmt.Sprintf("id %d", id))
}

func (f *fakeIncidentRepo) List(limit, offset int) ([]models.Incident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Incident
	for _, incident := range f.incidents {
		out = append(out, *incident)
	}
	return out, nil
}

func (f *fakeIncidentRepo) FindOpenByDeviceZone(deviceID uint, zone *int) (*models.Incident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var newest *models.Incident
	for _, incident := range f.incidents {
		if incident.Resolved || incident.DeviceID == nil || *incident.DeviceID != deviceID {
			continue
		}
		if (zone == nil) != (incident.ZoneNumber == nil) {
			continue
		}
		if zone != nil && *incident.ZoneNumber != *zone {
			continue
		}
		if newest == nil || incident.TriggeredAt.After(newest.TriggeredAt) {
			newest = incident
		}
	}
	return newest, nil
}

func (f *fakeIncidentRepo) Resolve(id uint, by string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, incident := range f.incidents {
		if incident.ID == id && !incident.Resolved {
			incident.Resolved = true
			incident.ResolvedAt = &at
			incident.ResolvedBy = by
		}
	}
	return nil
}

type enqueuedTask struct {
	taskType string
	id       string
}

type fakeEnqueuer struct {
	mu    sync.Mutex
	tasks []enqueuedTask
}

func (f *fakeEnqueuer) Enqueue(taskType, id string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, enqueuedTask{taskType: taskType, id: id})
	return nil
}

func (f *fakeEnqueuer) count(taskType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, task := range f.tasks {
		if task.taskType == taskType {
			n++
		}
	}
	return n
}

type fakeStatusCache struct {
	mu       sync.Mutex
	statuses map[uint]string
}

func newFakeStatusCache() *fakeStatusCache {
	return &fakeStatusCache{statuses: make(map[uint]string)}
}

func (f *fakeStatusCache) SetDeviceStatus(deviceID uint, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[deviceID] = status
	return nil
}
