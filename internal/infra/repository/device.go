package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/totegamma/ticketgate/internal/domain"
	"github.com/totegamma/ticketgate/internal/infra/database/models"
)

type DeviceRepository struct {
	db *gorm.DB
}

func NewDeviceRepository(db *gorm.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

func (r *DeviceRepository) Register(ctx context.Context, device domain.Device) error {
	return r.db.WithContext(ctx).Create(&models.Device{
		ID:     device.ID,
		Name:   device.Name,
		Events: strings.Join(device.Events, ","),
	}).Error
}

// IsRevoked treats unknown devices as revoked.
func (r *DeviceRepository) IsRevoked(ctx context.Context, deviceID string) (bool, error) {
	var device models.Device
	err := r.db.WithContext(ctx).Where("id = ?", deviceID).Take(&device).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return device.Revoked, nil
}

func (r *DeviceRepository) Revoke(ctx context.Context, deviceID string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Device{}).
		Where("id = ?", deviceID).
		Update("revoked", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NotFoundError{Resource: "device"}
	}
	return nil
}
