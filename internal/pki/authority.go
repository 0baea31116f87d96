package pki

import (
	"context"
	"errors"
	"fmt"

	"github.com/henryk/ipsec-me/internal/models"
)

// SerialSource атомарно выделяет следующий серийный номер CA.
// Реализации: repo.PKIStore (блокировка строки SELECT ... FOR UPDATE)
// и repo.SerialCounter (мьютекс, режим без БД и тесты).
type SerialSource interface {
	NextSerial(ctx context.Context, caID uint) (int64, error)
}

// Authority подписывает дочерние сертификаты от имени одного CA.
type Authority struct {
	Engine  *Engine
	Serials SerialSource
}

func NewAuthority(e *Engine, serials SerialSource) *Authority {
	return &Authority{Engine: e, Serials: serials}
}

// CreateRoot самоподписывает корневой CA и заводит счётчик серийных
// номеров с единицы. Запись в хранилище — на вызывающем.
func (a *Authority) CreateRoot(relativeDN, baseDN string, ex Extras) (*models.CertificateAuthority, error) {
	cert, err := a.Engine.SelfSign(JoinDN(relativeDN, baseDN), ProfileCA, ex)
	if err != nil {
		return nil, err
	}
	return &models.CertificateAuthority{
		DN:          relativeDN,
		BaseDN:      baseDN,
		NextSerial:  1,
		Certificate: cert,
	}, nil
}

// IssueChild выпускает дочерний сертификат. Если dn пуст, относительная
// часть берётся из relativeDN либо выводится из extras (первый hostname,
// затем первый email); базовый суффикс CA дописывается всегда. Выделяется
// ровно один серийный номер; его потеря невозможна — при ошибке выделения
// выпуск прерывается целиком.
func (a *Authority) IssueChild(ctx context.Context, ca *models.CertificateAuthority, profile Profile, dn, relativeDN string, ex Extras) (*models.Certificate, error) {
	if dn == "" {
		rel := relativeDN
		if rel == "" {
			switch {
			case len(ex.HostNames) > 0:
				rel = "CN=" + ex.HostNames[0]
			case len(ex.UserEmails) > 0:
				rel = "CN=" + ex.UserEmails[0]
			default:
				return nil, ErrAmbiguousSubject
			}
		}
		dn = JoinDN(rel, ca.BaseDN)
	}

	serial, err := a.Serials.NextSerial(ctx, ca.ID)
	if err != nil {
		if errors.Is(err, ErrSerialAllocation) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrSerialAllocation, err)
	}

	return a.Engine.IssueSigned(dn, profile, ca.Certificate, serial, ex)
}
