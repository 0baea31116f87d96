package repo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/henryk/ipsec-me/internal/models"
)

type DeviceStore struct{ db *gorm.DB }

func NewDeviceStore(db *gorm.DB) *DeviceStore { return &DeviceStore{db: db} }

// Create пишет устройство вместе с его сертификатом (если есть) — gorm
// создаст ассоциацию в той же транзакции.
func (s *DeviceStore) Create(ctx context.Context, d *models.Device) error {
	return s.db.WithContext(ctx).Create(d).Error
}

// Get возвращает устройство с учётными данными и владельцем.
func (s *DeviceStore) Get(ctx context.Context, id uint) (*models.Device, error) {
	var d models.Device
	err := s.db.WithContext(ctx).
		Preload("Certificate").
		Preload("VPNUser").
		Preload("VPNUser.Account").
		First(&d, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: device %d", ErrNotFound, id)
	}
	return &d, err
}

func (s *DeviceStore) ListForMembership(ctx context.Context, vpnUserID uint) ([]models.Device, error) {
	var out []models.Device
	err := s.db.WithContext(ctx).
		Where("vpn_user_id = ?", vpnUserID).
		Order("id").
		Find(&out).Error
	return out, err
}
