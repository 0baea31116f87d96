package repo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/henryk/ipsec-me/internal/models"
)

type VPNStore struct{ db *gorm.DB }

func NewVPNStore(db *gorm.DB) *VPNStore { return &VPNStore{db: db} }

func (s *VPNStore) CreateServer(ctx context.Context, srv *models.VPNServer) error {
	return s.db.WithContext(ctx).Create(srv).Error
}

func (s *VPNStore) GetServer(ctx context.Context, id uint) (*models.VPNServer, error) {
	var srv models.VPNServer
	err := s.db.WithContext(ctx).
		Preload("Certificate").
		Preload("CAs").
		Preload("CAs.Certificate").
		Preload("Users").
		Preload("Users.Account").
		First(&srv, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: vpn server %d", ErrNotFound, id)
	}
	return &srv, err
}

// GetOrCreateAccount — учётка по email; аутентификация вне ядра, здесь
// только идентичность.
func (s *VPNStore) GetOrCreateAccount(ctx context.Context, email string) (*models.Account, error) {
	var acc models.Account
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&acc).Error
	if err == nil {
		return &acc, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	acc = models.Account{Email: email}
	if err := s.db.WithContext(ctx).Create(&acc).Error; err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s *VPNStore) FindMembership(ctx context.Context, serverID, accountID uint) (*models.VPNUser, error) {
	var vu models.VPNUser
	err := s.db.WithContext(ctx).
		Preload("Account").
		Where("vpn_server_id = ? AND account_id = ?", serverID, accountID).
		First(&vu).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: membership", ErrNotFound)
	}
	return &vu, err
}

func (s *VPNStore) GetMembership(ctx context.Context, id uint) (*models.VPNUser, error) {
	var vu models.VPNUser
	err := s.db.WithContext(ctx).Preload("Account").First(&vu, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: membership %d", ErrNotFound, id)
	}
	return &vu, err
}

func (s *VPNStore) CreateMembership(ctx context.Context, vu *models.VPNUser) error {
	return s.db.WithContext(ctx).Create(vu).Error
}

func (s *VPNStore) UpdateMembershipRole(ctx context.Context, vu *models.VPNUser, role models.UserRole) error {
	vu.Role = role
	return s.db.WithContext(ctx).Model(vu).Update("role", role).Error
}
