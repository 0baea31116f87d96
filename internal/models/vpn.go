package models

import (
	"time"

	"github.com/google/uuid"
)

// Роль участника внутри одного VPN-сервера.
type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// Account — минимальная внешняя учётка (аутентификация вне ядра).
type Account struct {
	ID    uint   `gorm:"primaryKey"`
	Email string `gorm:"uniqueIndex;size:255;not null"`

	CreatedAt time.Time
}

// VPNServer — конечная точка IPsec. BaseDNSName выводится из hostname,
// если не задан явно. PrimaryCAID — назначенный подписывающий CA
// (а не «первый из коллекции»).
type VPNServer struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:255;not null"`

	ExternalHostname string `gorm:"size:255"`
	BaseDNSName      string `gorm:"size:255"`

	PSK           string `gorm:"size:255"`
	IPsecTemplate string `gorm:"type:text"`

	CertificateID *uuid.UUID   `gorm:"type:uuid;index"`
	Certificate   *Certificate `gorm:"foreignKey:CertificateID"`

	PrimaryCAID *uint
	CAs         []*CertificateAuthority `gorm:"many2many:ca_vpn_servers"`

	Users []VPNUser `gorm:"foreignKey:VPNServerID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// VPNUser — членство аккаунта в VPN-сервере. Не более одной записи на пару
// (аккаунт, сервер): повторное добавление лишь обновляет роль.
type VPNUser struct {
	ID uint `gorm:"primaryKey"`

	VPNServerID uint `gorm:"uniqueIndex:uniq_vpn_account,priority:1;not null"`
	AccountID   uint `gorm:"uniqueIndex:uniq_vpn_account,priority:2;not null"`

	Account Account `gorm:"foreignKey:AccountID"`

	Role UserRole `gorm:"size:16;default:user"`

	Devices []Device `gorm:"foreignKey:VPNUserID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
