package devices

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/henryk/ipsec-me/internal/models"
	"github.com/henryk/ipsec-me/internal/pki"
)

// Provisioner создаёт устройства по стратегии их вида.
type Provisioner struct {
	Authority *pki.Authority
	Entropy   int // бит энтропии генерируемых секретов
}

// CreateInput — контекст создания: владелец, его аккаунт и назначенный
// подписывающий CA сервера (для сертификатных видов).
type CreateInput struct {
	Kind      Kind
	User      *models.VPNUser
	Account   *models.Account
	SigningCA *models.CertificateAuthority
	Name      string
	Overrides map[string]string
}

// Create наполняет запись устройства. Сохранение — на вызывающем, в одной
// транзакции с выпущенным сертификатом.
func (p *Provisioner) Create(ctx context.Context, in CreateInput) (*models.Device, error) {
	d := &models.Device{
		Name:       in.Name,
		DeviceType: in.Kind.Type,
		VPNUserID:  in.User.ID,
	}
	if len(in.Overrides) > 0 {
		raw, err := json.Marshal(in.Overrides)
		if err != nil {
			return nil, err
		}
		d.Overrides = raw
	}

	switch in.Kind.Strategy {
	case StrategyPSK:
		d.Identity = DeriveIdentity(in.Account.Email, in.Name)
		if s := in.Overrides["secret"]; s != "" {
			d.Secret = s
		} else {
			secret, err := GenerateSecret(p.Entropy)
			if err != nil {
				return nil, err
			}
			d.Secret = secret
		}

	case StrategyUserCertificate:
		if in.SigningCA == nil {
			return nil, fmt.Errorf("%w: vpn server has no signing authority", pki.ErrSigning)
		}
		cert, err := p.Authority.IssueChild(ctx, in.SigningCA, pki.ProfileIPsecDevice,
			"", "CN="+in.Account.Email,
			pki.Extras{UserEmails: []string{in.Account.Email}})
		if err != nil {
			return nil, err
		}
		d.Certificate = cert

	default:
		return nil, fmt.Errorf("%w: strategy %q", ErrUnknownKind, in.Kind.Strategy)
	}
	return d, nil
}
