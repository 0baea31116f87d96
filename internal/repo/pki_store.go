package repo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/henryk/ipsec-me/internal/models"
	"github.com/henryk/ipsec-me/internal/pki"
)

var ErrNotFound = errors.New("not found")

type PKIStore struct{ db *gorm.DB }

func NewPKIStore(db *gorm.DB) *PKIStore { return &PKIStore{db: db} }

// CreateCA сохраняет CA вместе с его собственным сертификатом.
func (s *PKIStore) CreateCA(ctx context.Context, ca *models.CertificateAuthority) error {
	return s.db.WithContext(ctx).Create(ca).Error
}

func (s *PKIStore) GetCA(ctx context.Context, id uint) (*models.CertificateAuthority, error) {
	var ca models.CertificateAuthority
	err := s.db.WithContext(ctx).Preload("Certificate").First(&ca, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: certificate authority %d", ErrNotFound, id)
	}
	return &ca, err
}

// NextSerial — единственный конкурентно-критичный участок системы.
// Чтение-инкремент-запись выполняется как одна неделимая единица под
// эксклюзивной блокировкой строки: два гонящихся выпуска никогда не
// получат один номер, и ни один номер не пропускается. Любая ошибка
// (таймаут блокировки, хранилище) оборачивается в ErrSerialAllocation —
// вызывающий может повторить с backoff.
func (s *PKIStore) NextSerial(ctx context.Context, caID uint) (int64, error) {
	var serial int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Select("id", "next_serial")
		// sqlite не знает FOR UPDATE и сериализует писателей сам
		if tx.Dialector.Name() != "sqlite" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var ca models.CertificateAuthority
		if err := q.First(&ca, caID).Error; err != nil {
			return err
		}
		serial = ca.NextSerial
		return tx.Model(&models.CertificateAuthority{}).
			Where("id = ?", caID).
			Update("next_serial", serial+1).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("%w: certificate authority %d", ErrNotFound, caID)
		}
		return 0, fmt.Errorf("%w: %v", pki.ErrSerialAllocation, err)
	}
	return serial, nil
}

func (s *PKIStore) SaveCert(ctx context.Context, c *models.Certificate) error {
	return s.db.WithContext(ctx).Create(c).Error
}
