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

// DeviceRepository implements DeviceRepositoryInterface.
type DeviceRepository struct {
	db *gorm.DB
}

// NewDeviceRepository creates a new instance of DeviceRepository.
func NewDeviceRepository(db *gorm.DB) interfaces.DeviceRepositoryInterface {
	return &DeviceRepository{db: db}
}

// Create registers a new panel.
func (dr *DeviceRepository) Create(device *models.Device) error {
	if err := dr.db.Create(device).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return base.NewDuplicateEntityError("device", "serial_number", device.SerialNumber)
		}
		return base.NewRepositoryError("create", "device", "insert failed", err)
	}
	return nil
}

// GetByID retrieves a device with its installation preloaded.
func (dr *DeviceRepository) GetByID(id uint) (*models.Device, error) {
	var device models.Device
	err := dr.db.Preload("Installation").First(&device, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, base.NewEntityNotFoundError("device", fmt.Sprintf("id %d", id))
		}
		return nil, base.NewRepositoryError("get", "device", "query failed", err)
	}
	return &device, nil
}

// GetBySerial retrieves a device by its serial number.
func (dr *DeviceRepository) GetBySerial(serial string) (*models.Device, error) {
	var device models.Device
	err := dr.db.Preload("Installation").Where("serial_number = ?", serial).First(&device).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, base.NewEntityNotFoundError("device", fmt.Sprintf("serial %s", serial))
		}
		return nil, base.NewRepositoryError("get", "device", "query failed", err)
	}
	return &device, nil
}

// GetByMAC retrieves a device by its normalized MAC address.
func (dr *DeviceRepository) GetByMAC(mac string) (*models.Device, error) {
	var device models.Device
	err := dr.db.Preload("Installation").Where("mac_address = ?", models.NormalizeMAC(mac)).First(&device).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, base.NewEntityNotFoundError("device", fmt.Sprintf("mac %s", mac))
		}
		return nil, base.NewRepositoryError("get", "device", "query failed", err)
	}
	return &device, nil
}

// GetByIP retrieves a device by its registered IP address. IP identity is a
// fallback; when several devices share an address the most recently updated
// one wins.
func (dr *DeviceRepository) GetByIP(ip string) (*models.Device, error) {
	var device models.Device
	err := dr.db.Preload("Installation").Where("ip_address = ?", ip).Order("updated_at desc").First(&device).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, base.NewEntityNotFoundError("device", fmt.Sprintf("ip %s", ip))
		}
		return nil, base.NewRepositoryError("get", "device", "query failed", err)
	}
	return &device, nil
}

// Update persists changes to a device record.
func (dr *DeviceRepository) Update(device *models.Device) error {
	if err := dr.db.Save(device).Error; err != nil {
		return base.NewRepositoryError("update", "device", "save failed", err)
	}
	return nil
}

// Delete soft-deletes a device. Events keep referencing the row.
func (dr *DeviceRepository) Delete(id uint) error {
	result := dr.db.Delete(&models.Device{}, id)
	if result.Error != nil {
		return base.NewRepositoryError("delete", "device", "delete failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return base.NewEntityNotFoundError("device", fmt.Sprintf("id %d", id))
	}
	return nil
}

// List retrieves devices with pagination.
func (dr *DeviceRepository) List(limit, offset int) ([]models.Device, error) {
	var devices []models.Device
	query := dr.db.Preload("Installation").Order("id")
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	if err := query.Find(&devices).Error; err != nil {
		return nil, base.NewRepositoryError("list", "device", "query failed", err)
	}
	return devices, nil
}

// TouchHeartbeat advances last_heartbeat, never rewinds it.
func (dr *DeviceRepository) TouchHeartbeat(id uint, at time.Time) error {
	err := dr.db.Model(&models.Device{}).
		Where("id = ? AND (last_heartbeat IS NULL OR last_heartbeat < ?)", id, at).
		Update("last_heartbeat", at).Error
	if err != nil {
		return base.NewRepositoryError("update", "device", "heartbeat touch failed", err)
	}
	return nil
}

// TouchLastEvent advances last_event_at, never rewinds it.
func (dr *DeviceRepository) TouchLastEvent(id uint, at time.Time) error {
	err := dr.db.Model(&models.Device{}).
		Where("id = ? AND (last_event_at IS NULL OR last_event_at < ?)", id, at).
		Update("last_event_at", at).Error
	if err != nil {
		return base.NewRepositoryError("update", "device", "last event touch failed", err)
	}
	return nil
}

// SetStatus updates the connectivity status.
func (dr *DeviceRepository) SetStatus(id uint, status string) error {
	err := dr.db.Model(&models.Device{}).Where("id = ?", id).Update("status", status).Error
	if err != nil {
		return base.NewRepositoryError("update", "device", "status update failed", err)
	}
	return nil
}

// SetArmStatus updates the arm status.
func (dr *DeviceRepository) SetArmStatus(id uint, armStatus string) error {
	err := dr.db.Model(&models.Device{}).Where("id = ?", id).Update("arm_status", armStatus).Error
	if err != nil {
		return base.NewRepositoryError("update", "device", "arm status update failed", err)
	}
	return nil
}

// ListStale returns devices whose heartbeat predates the threshold or is
// missing, oldest first, bounded by limit.
func (dr *DeviceRepository) ListStale(threshold time.Duration, limit int) ([]models.Device, error) {
	cutoff := time.Now().Add(-threshold)
	var devices []models.Device
	err := dr.db.
		Where("last_heartbeat IS NULL OR last_heartbeat < ?", cutoff).
		Order("last_heartbeat asc NULLS FIRST").
		Limit(limit).
		Find(&devices).Error
	if err != nil {
		return nil, base.NewRepositoryError("list", "device", "stale query failed", err)
	}
	return devices, nil
}

// Stats aggregates registry counts by status, arm status and model.
func (dr *DeviceRepository) Stats() (*models.DeviceStats, error) {
	stats := &models.DeviceStats{
		ByStatus:    make(map[string]int64),
		ByArmStatus: make(map[string]int64),
		ByModel:     make(map[string]int64),
	}

	if err := dr.db.Model(&models.Device{}).Count(&stats.Total).Error; err != nil {
		return nil, base.NewRepositoryError("count", "device", "total count failed", err)
	}

	type bucket struct {
		Key   string
		Count int64
	}
	for column, target := range map[string]map[string]int64{
		"status":     stats.ByStatus,
		"arm_status": stats.ByArmStatus,
		"model":      stats.ByModel,
	} {
		var buckets []bucket
		err := dr.db.Model(&models.Device{}).
			Select(column + " as key, count(*) as count").
			Group(column).
			Scan(&buckets).Error
		if err != nil {
			return nil, base.NewRepositoryError("count", "device", "group count failed", err)
		}
		for _, b := range buckets {
			target[b.Key] = b.Count
		}
	}
	return stats, nil
}
