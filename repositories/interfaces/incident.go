package interfaces

import (
	"time"

	"panel-bridge/models"
)

// IncidentRepositoryInterface stores derived alerts. Incidents are never
// deleted; resolution is a flag flip.
type IncidentRepositoryInterface interface {
	Create(incident *models.Incident) error
	GetByID(id uint) (*models.Incident, error)
	List(limit, offset int) ([]models.Incident, error)

	// FindOpenByDeviceZone returns the most recent unresolved incident for
	// a device and zone, or nil when there is none. Zone nil matches
	// incidents without a zone.
	FindOpenByDeviceZone(deviceID uint, zone *int) (*models.Incident, error)

	Resolve(id uint, by string, at time.Time) error
}
