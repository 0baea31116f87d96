package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Статус жизненного цикла сертификата.
type CertificateStatus string

const (
	CertStatusRequest CertificateStatus = "request"
	CertStatusActive  CertificateStatus = "active"
	CertStatusRevoked CertificateStatus = "revoked"
)

// Certificate хранит DER-кодированные байты сертификата и приватного ключа.
// KeyDER никогда не попадает в логи; наружу — только через явные экспорты
// (internal/pki). Владелец ровно один: CA, VPN-сервер или устройство.
type Certificate struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	CertDER []byte `gorm:"not null"`
	KeyDER  []byte

	Status CertificateStatus `gorm:"size:16;default:active"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c *Certificate) BeforeCreate(_ *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// CertificateAuthority — удостоверяющий центр. DN — относительная часть,
// BaseDN — суффикс; полное имя субъекта — их конкатенация.
// NextSerial выдаётся строго по одному на каждый дочерний сертификат
// (см. repo.PKIStore.NextSerial — блокировка строки).
type CertificateAuthority struct {
	ID     uint   `gorm:"primaryKey"`
	DN     string `gorm:"size:255;not null"`
	BaseDN string `gorm:"size:255"`

	NextSerial int64 `gorm:"not null;default:1"`

	CertificateID *uuid.UUID   `gorm:"type:uuid;index"`
	Certificate   *Certificate `gorm:"foreignKey:CertificateID"`

	VPNServers []*VPNServer `gorm:"many2many:ca_vpn_servers"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
