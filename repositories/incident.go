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

// IncidentRepository implements IncidentRepositoryInterface.
type IncidentRepository struct {
	db *gorm.DB
}

// NewIncidentRepository creates a new instance of IncidentRepository.
func NewIncidentRepository(db *gorm.DB) interfaces.IncidentRepositoryInterface {
	return &IncidentRepository{db: db}
}

// Create stores a new incident.
func (ir *IncidentRepository) Create(incident *models.Incident) error {
	if err := ir.db.Create(incident).Error; err != nil {
		return base.NewRepositoryError("create", "incident", "insert failed", err)
	}
	return nil
}

// GetByID retrieves an incident.
func (ir *IncidentRepository) GetByID(id uint) (*models.Incident, error) {
	var incident models.Incident
	err := ir.db.First(&incident, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, base.NewEntityNotFoundError("incident", fmt.Sprintf("id %d", id))
		}
		return nil, base.NewRepositoryError("get", "incident", "query failed", err)
	}
	return &incident, nil
}

// List retrieves incidents with pagination, newest first.
func (ir *IncidentRepository) List(limit, offset int) ([]models.Incident, error) {
	var incidents []models.Incident
	query := ir.db.Order("triggered_at desc")
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	if err := query.Find(&incidents).Error; err != nil {
		return nil, base.NewRepositoryError("list", "incident", "query failed", err)
	}
	return incidents, nil
}

// FindOpenByDeviceZone returns the most recent unresolved incident for the
// device and zone. Matching is best-effort: when several zones alarm
// concurrently the newest open incident wins, mirroring how restore events
// are correlated in the field.
func (ir *IncidentRepository) FindOpenByDeviceZone(deviceID uint, zone *int) (*models.Incident, error) {
	query := ir.db.Where("device_id = ? AND resolved = ?", deviceID, false)
	if zone != nil {
		query = query.Where("zone_number = ?", *zone)
	} else {
		query = query.Where("zone_number IS NULL")
	}

	var incident models.Incident
	err := query.Order("triggered_at desc").First(&incident).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, base.NewRepositoryError("get", "incident", "open incident lookup failed", err)
	}
	return &incident, nil
}

// Resolve closes an incident.
func (ir *IncidentRepository) Resolve(id uint, by string, at time.Time) error {
	err := ir.db.Model(&models.Incident{}).Where("id = ? AND resolved = ?", id, false).Updates(map[string]interface{}{
		"resolved":    true,
		"resolved_at": at,
		"resolved_by": by,
	}).Error
	if err != nil {
		return base.NewRepositoryError("update", "incident", "resolve failed", err)
	}
	return nil
}
