package interfaces

import (
	"time"

	"panel-bridge/models"
)

// EventFilter narrows event listings.
type EventFilter struct {
	DeviceID  *uint
	AlarmType string
	Severity  string
	Processed *bool
	CIDCode   *int
	Zone      *int
	From      *time.Time
	To        *time.Time
}

// EventRepositoryInterface is the append-only raw event store.
type EventRepositoryInterface interface {
	Create(event *models.Event) error
	GetByUUID(uuid string) (*models.Event, error)

	// FindDuplicate returns an earlier event with the same dedup hash for
	// the same device whose trigger time falls within the window, or nil
	// when the event is the first of its kind.
	FindDuplicate(event *models.Event, window time.Duration) (*models.Event, error)

	SetClassification(id uint, alarmType, severity, description string) error
	LinkIncident(eventID, incidentID uint) error
	MarkProcessed(id uint, processingError string) error

	// Resubmit clears the processed flag so the pipeline will pick the
	// event up again. Operator action only.
	Resubmit(id uint) error

	List(filter EventFilter, limit, offset int) ([]models.Event, error)
	ListUnprocessed(limit int) ([]models.Event, error)
	ListCritical(limit int) ([]models.Event, error)
	Stats() (*models.EventStats, error)
}
