package repositories

import (
	"errors"
	"fmt"
	"time"

	"panel-bridge/models"
	"panel-bridge/repositories/base"
	"panel-bridge/repositories/interfaces"

	"gorm.io/gorm"
)

// EventRepository implements EventRepositoryInterface.
type EventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new instance of EventRepository.
func NewEventRepository(db *gorm.DB) interfaces.EventRepositoryInterface {
	return &EventRepository{db: db}
}

// Create appends a raw event.
func (er *EventRepository) Create(event *models.Event) error {
	if err := er.db.Create(event).Error; err != nil {
		return base.NewRepositoryError("create", "event", "insert failed", err)
	}
	return nil
}

// GetByUUID retrieves an event by its public identifier.
func (er *EventRepository) GetByUUID(uuid string) (*models.Event, error) {
	var event models.Event
	err := er.db.Preload("Device").Where("uuid = ?", uuid).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, base.NewEntityNotFoundError("event", fmt.Sprintf("uuid %s", uuid))
		}
		return nil, base.NewRepositoryError("get", "event", "query failed", err)
	}
	return &event, nil
}

// FindDuplicate looks for an earlier event with the same dedup hash whose
// trigger time is within the window. Identity is the device when known,
// otherwise the source MAC/IP baked into the hash.
func (er *EventRepository) FindDuplicate(event *models.Event, window time.Duration) (*models.Event, error) {
	var dup models.Event
	q := er.db.Where("dedup_hash = ?", event.DedupHash).
		Where("triggered_at BETWEEN ? AND ?", event.TriggeredAt.Add(-window), event.TriggeredAt.Add(window))
	if event.ID != 0 {
		q = q.Where("id <> ?", event.ID)
	}
	if event.DeviceID != nil {
		q = q.Where("device_id = ?", *event.DeviceID)
	} else {
		q = q.Where("device_id IS NULL")
	}
	err := q.Order("triggered_at desc").First(&dup).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, base.NewRepositoryError("get", "event", "duplicate lookup failed", err)
	}
	return &dup, nil
}

// SetClassification writes the classification result onto the event.
func (er *EventRepository) SetClassification(id uint, alarmType, severity, description string) error {
	updates := map[string]interface{}{
		"alarm_type": alarmType,
		"severity":   severity,
	}
	if description != "" {
		updates["description"] = description
	}
	err := er.db.Model(&models.Event{}).Where("id = ?", id).Updates(updates).Error
	if err != nil {
		return base.NewRepositoryError("update", "event", "classification update failed", err)
	}
	return nil
}

// LinkIncident sets the one-directional event-to-incident reference.
func (er *EventRepository) LinkIncident(eventID, incidentID uint) error {
	err := er.db.Model(&models.Event{}).Where("id = ?", eventID).Update("incident_id", incidentID).Error
	if err != nil {
		return base.NewRepositoryError("update", "event", "incident link failed", err)
	}
	return nil
}

// MarkProcessed finalizes the event. A non-empty processingError records a
// terminal failure or a duplicate annotation; either way the pipeline will
// not pick the event up again.
func (er *EventRepository) MarkProcessed(id uint, processingError string) error {
	now := time.Now()
	err := er.db.Model(&models.Event{}).Where("id = ?", id).Updates(map[string]interface{}{
		"processed":        true,
		"processed_at":     now,
		"processing_error": processingError,
	}).Error
	if err != nil {
		return base.NewRepositoryError("update", "event", "mark processed failed", err)
	}
	return nil
}

// Resubmit clears the processed state for operator-driven reprocessing.
func (er *EventRepository) Resubmit(id uint) error {
	err := er.db.Model(&models.Event{}).Where("id = ?", id).Updates(map[string]interface{}{
		"processed":        false,
		"processed_at":     nil,
		"processing_error": "",
	}).Error
	if err != nil {
		return base.NewRepositoryError("update", "event", "resubmit failed", err)
	}
	return nil
}

// List retrieves events matching the filter, newest first.
func (er *EventRepository) List(filter interfaces.EventFilter, limit, offset int) ([]models.Event, error) {
	query := er.db.Model(&models.Event{}).Order("triggered_at desc")

	if filter.DeviceID != nil {
		query = query.Where("device_id = ?", *filter.DeviceID)
	}
	if filter.AlarmType != "" {
		query = query.Where("alarm_type = ?", filter.AlarmType)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}
	if filter.Processed != nil {
		query = query.Where("processed = ?", *filter.Processed)
	}
	if filter.CIDCode != nil {
		query = query.Where("cid_code = ? OR standard_cid_code = ?", *filter.CIDCode, *filter.CIDCode)
	}
	if filter.Zone != nil {
		query = query.Where("zone_number = ?", *filter.Zone)
	}
	if filter.From != nil {
		query = query.Where("triggered_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("triggered_at <= ?", *filter.To)
	}
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}

	var events []models.Event
	if err := query.Find(&events).Error; err != nil {
		return nil, base.NewRepositoryError("list", "event", "query failed", err)
	}
	return events, nil
}

// ListUnprocessed returns pending events, oldest first.
func (er *EventRepository) ListUnprocessed(limit int) ([]models.Event, error) {
	var events []models.Event
	err := er.db.Where("processed = ?", false).Order("triggered_at asc").Limit(limit).Find(&events).Error
	if err != nil {
		return nil, base.NewRepositoryError("list", "event", "unprocessed query failed", err)
	}
	return events, nil
}

// ListCritical returns recent critical-severity events.
func (er *EventRepository) ListCritical(limit int) ([]models.Event, error) {
	var events []models.Event
	err := er.db.Where("severity = ?", models.SeverityCritical).
		Order("triggered_at desc").Limit(limit).Find(&events).Error
	if err != nil {
		return nil, base.NewRepositoryError("list", "event", "critical query failed", err)
	}
	return events, nil
}

// Stats aggregates event counts.
func (er *EventRepository) Stats() (*models.EventStats, error) {
	stats := &models.EventStats{
		BySeverity:  make(map[string]int64),
		ByAlarmType: make(map[string]int64),
	}

	if err := er.db.Model(&models.Event{}).Count(&stats.Total).Error; err != nil {
		return nil, base.NewRepositoryError("count", "event", "total count failed", err)
	}
	if err := er.db.Model(&models.Event{}).Where("processed = ?", true).Count(&stats.Processed).Error; err != nil {
		return nil, base.NewRepositoryError("count", "event", "processed count failed", err)
	}
	stats.Unprocessed = stats.Total - stats.Processed

	type bucket struct {
		Key   string
		Count int64
	}
	for column, target := range map[string]map[string]int64{
		"severity":   stats.BySeverity,
		"alarm_type": stats.ByAlarmType,
	} {
		var buckets []bucket
		err := er.db.Model(&models.Event{}).
			Select(column+" as key, count(*) as count").
			Where(column + " IS NOT NULL").
			Group(column).
			Scan(&buckets).Error
		if err != nil {
			return nil, base.NewRepositoryError("count", "event", "group count failed", err)
		}
		for _, b := range buckets {
			target[b.Key] = b.Count
		}
	}
	return stats, nil
}
