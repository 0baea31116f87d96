// Package vpn — агрегат «VPN-сервер + CA + участники + устройства».
package vpn

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/henryk/ipsec-me/internal/devices"
	"github.com/henryk/ipsec-me/internal/logs"
	"github.com/henryk/ipsec-me/internal/models"
	"github.com/henryk/ipsec-me/internal/pki"
	"github.com/henryk/ipsec-me/internal/repo"
)

var ErrInvalidHostname = errors.New("hostname has no dotted domain part")

type Service struct {
	db      *gorm.DB
	engine  *pki.Engine
	entropy int
}

func New(db *gorm.DB, engine *pki.Engine, entropy int) *Service {
	return &Service{db: db, engine: engine, entropy: entropy}
}

type CreateServerInput struct {
	Name             string
	ExternalHostname string
	BaseDNSName      string // пусто — вывести из hostname
	IPsecTemplate    string
	PSK              string // пусто — сгенерировать
	CABaseDN         string
	ExistingCAIDs    []uint // пусто — создать новый корневой CA
}

// deriveBaseDNS: "vpn.example.com" → "example.com"; без точки и без явного
// суффикса — ErrInvalidHostname. Явный суффикс обязан быть родителем
// hostname через точку.
func deriveBaseDNS(hostname, explicit string) (string, error) {
	if explicit != "" {
		if hostname != explicit && !strings.HasSuffix(hostname, "."+explicit) {
			return "", fmt.Errorf("%w: %q is not under %q", ErrInvalidHostname, hostname, explicit)
		}
		return explicit, nil
	}
	dot := strings.IndexByte(hostname, '.')
	if dot < 0 || dot == len(hostname)-1 {
		return "", fmt.Errorf("%w: %q", ErrInvalidHostname, hostname)
	}
	return hostname[dot+1:], nil
}

// CreateServer создаёт конечную точку: суффикс DNS, PSK, корневой CA (если
// не передан существующий), серверный сертификат от назначенного primary
// CA. Всё — одна транзакция: либо полный агрегат, либо ничего.
func (s *Service) CreateServer(ctx context.Context, in CreateServerInput) (*models.VPNServer, error) {
	base, err := deriveBaseDNS(in.ExternalHostname, in.BaseDNSName)
	if err != nil {
		return nil, err
	}

	psk := in.PSK
	if psk == "" {
		if psk, err = devices.GenerateSecret(s.entropy); err != nil {
			return nil, err
		}
	}

	srv := &models.VPNServer{
		Name:             in.Name,
		ExternalHostname: in.ExternalHostname,
		BaseDNSName:      base,
		PSK:              psk,
		IPsecTemplate:    in.IPsecTemplate,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pkiStore := repo.NewPKIStore(tx)
		authority := pki.NewAuthority(s.engine, pkiStore)

		var primary *models.CertificateAuthority
		if len(in.ExistingCAIDs) > 0 {
			for _, id := range in.ExistingCAIDs {
				ca, err := pkiStore.GetCA(ctx, id)
				if err != nil {
					return err
				}
				srv.CAs = append(srv.CAs, ca)
			}
			primary = srv.CAs[0]
		} else {
			ca, err := authority.CreateRoot("CN="+in.Name, in.CABaseDN, pki.Extras{})
			if err != nil {
				return err
			}
			if err := pkiStore.CreateCA(ctx, ca); err != nil {
				return err
			}
			srv.CAs = append(srv.CAs, ca)
			primary = ca
		}
		srv.PrimaryCAID = &primary.ID

		cert, err := authority.IssueChild(ctx, primary, pki.ProfileIPsecServer,
			"", "", pki.Extras{HostNames: []string{in.ExternalHostname}})
		if err != nil {
			return err
		}
		srv.Certificate = cert

		return repo.NewVPNStore(tx).CreateServer(ctx, srv)
	})
	if err != nil {
		return nil, err
	}
	logs.Logger.Infof("vpn server created: id=%d hostname=%s primary_ca=%d",
		srv.ID, srv.ExternalHostname, *srv.PrimaryCAID)
	return srv, nil
}

// AddUser идемпотентен: существующее членство возвращается (с обновлением
// роли при расхождении), дубликат на пару (аккаунт, сервер) не создаётся.
func (s *Service) AddUser(ctx context.Context, serverID uint, email string, role models.UserRole) (*models.VPNUser, error) {
	if role == "" {
		role = models.RoleUser
	}
	store := repo.NewVPNStore(s.db)

	acc, err := store.GetOrCreateAccount(ctx, email)
	if err != nil {
		return nil, err
	}

	vu, err := store.FindMembership(ctx, serverID, acc.ID)
	if err == nil {
		if vu.Role != role {
			logs.Logger.Debugf("changing %s to role %s in vpn %d", email, role, serverID)
			if err := store.UpdateMembershipRole(ctx, vu, role); err != nil {
				return nil, err
			}
		}
		return vu, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	if _, err := store.GetServer(ctx, serverID); err != nil {
		return nil, err
	}
	vu = &models.VPNUser{VPNServerID: serverID, AccountID: acc.ID, Account: *acc, Role: role}
	if err := store.CreateMembership(ctx, vu); err != nil {
		return nil, err
	}
	return vu, nil
}

// AddDevice создаёт устройство выбранного вида; устройство и его
// сертификат персистятся атомарно.
func (s *Service) AddDevice(ctx context.Context, membershipID uint, deviceType, name string, overrides map[string]string) (*models.Device, error) {
	kind, err := devices.Resolve(deviceType)
	if err != nil {
		return nil, err
	}

	var dev *models.Device
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		vpnStore := repo.NewVPNStore(tx)
		pkiStore := repo.NewPKIStore(tx)

		vu, err := vpnStore.GetMembership(ctx, membershipID)
		if err != nil {
			return err
		}
		srv, err := vpnStore.GetServer(ctx, vu.VPNServerID)
		if err != nil {
			return err
		}

		var signingCA *models.CertificateAuthority
		if srv.PrimaryCAID != nil {
			if signingCA, err = pkiStore.GetCA(ctx, *srv.PrimaryCAID); err != nil {
				return err
			}
		}

		prov := &devices.Provisioner{
			Authority: pki.NewAuthority(s.engine, pkiStore),
			Entropy:   s.entropy,
		}
		dev, err = prov.Create(ctx, devices.CreateInput{
			Kind:      kind,
			User:      vu,
			Account:   &vu.Account,
			SigningCA: signingCA,
			Name:      name,
			Overrides: overrides,
		})
		if err != nil {
			return err
		}
		return repo.NewDeviceStore(tx).Create(ctx, dev)
	})
	if err != nil {
		return nil, err
	}
	logs.Logger.Infof("device added: id=%d type=%s membership=%d",
		dev.ID, dev.DeviceType, membershipID)
	return dev, nil
}
