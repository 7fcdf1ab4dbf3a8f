package interfaces

import (
	"time"

	"panel-bridge/models"
)

// DeviceRepositoryInterface is the registry of alarm panels.
type DeviceRepositoryInterface interface {
	Create(device *models.Device) error
	GetByID(id uint) (*models.Device, error)
	GetBySerial(serial string) (*models.Device, error)
	GetByMAC(mac string) (*models.Device, error)
	GetByIP(ip string) (*models.Device, error)
	Update(device *models.Device) error
	Delete(id uint) error
	List(limit, offset int) ([]models.Device, error)

	// TouchHeartbeat advances the last-heartbeat timestamp. The update is
	// monotonic: an older timestamp than the stored one is ignored.
	TouchHeartbeat(id uint, at time.Time) error
	TouchLastEvent(id uint, at time.Time) error
	SetStatus(id uint, status string) error
	SetArmStatus(id uint, armStatus string) error

	// ListStale returns up to limit devices whose last heartbeat is older
	// than the threshold or has never been recorded.
	ListStale(threshold time.Duration, limit int) ([]models.Device, error)
	Stats() (*models.DeviceStats, error)
}
