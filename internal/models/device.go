package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Device — пользовательское устройство. DeviceType — дискриминант вида
// (см. internal/devices): PSK-виды несут Identity+Secret, сертификатные —
// ссылку на выпущенный листовой сертификат. Запись неизменяема после
// создания (кроме ротации учётных данных).
type Device struct {
	ID        uint           `gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name       string `gorm:"size:255;not null" json:"name"`
	DeviceType string `gorm:"size:64;index;not null" json:"device_type"`

	VPNUserID uint     `gorm:"index;not null" json:"-"`
	VPNUser   *VPNUser `gorm:"foreignKey:VPNUserID" json:"-"`

	// PSK/XAUTH
	Identity string `gorm:"size:255" json:"identity,omitempty"`
	Secret   string `gorm:"size:255" json:"-"`

	// сертификатные виды
	CertificateID *uuid.UUID   `gorm:"type:uuid;index" json:"-"`
	Certificate   *Certificate `gorm:"foreignKey:CertificateID" json:"-"`

	// параметры, переданные при создании (как есть)
	Overrides datatypes.JSON `json:"-"`
}
