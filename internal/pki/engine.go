package pki

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/asn1"
	"fmt"
	"math/big"
	"time"

	"github.com/henryk/ipsec-me/internal/models"
)

const (
	DefaultKeySize = 4096

	caLifetime   = 20 * 365 * 24 * time.Hour
	leafLifetime = 15 * 365 * 24 * time.Hour
)

// EKU «IKE intermediate», нужен некоторым IPsec-клиентам (Windows, iOS).
var oidIKEIntermediate = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 8, 2, 2}

// Extras — дополнительные параметры выпуска: SAN и срок действия.
type Extras struct {
	HostNames  []string
	UserEmails []string

	Lifetime time.Duration // если 0 — умолчание профиля
	NotAfter time.Time     // имеет приоритет над Lifetime
}

// Profile настраивает шаблон сертификата под конкретное назначение.
type Profile func(tpl *x509.Certificate, now time.Time, ex Extras)

func notAfter(now time.Time, ex Extras, def time.Duration) time.Time {
	if !ex.NotAfter.IsZero() {
		return ex.NotAfter
	}
	if ex.Lifetime > 0 {
		return now.Add(ex.Lifetime)
	}
	return now.Add(def)
}

// ProfileCA: basic constraints CA=true, path length 0, ~20 лет.
func ProfileCA(tpl *x509.Certificate, now time.Time, ex Extras) {
	tpl.NotBefore = now
	tpl.NotAfter = notAfter(now, ex, caLifetime)
	tpl.BasicConstraintsValid = true
	tpl.IsCA = true
	tpl.MaxPathLen = 0
	tpl.MaxPathLenZero = true
	tpl.KeyUsage = x509.KeyUsageCertSign | x509.KeyUsageCRLSign
}

func profileIPsecCommon(tpl *x509.Certificate, now time.Time, ex Extras) {
	tpl.NotBefore = now
	tpl.NotAfter = notAfter(now, ex, leafLifetime)
	tpl.BasicConstraintsValid = true
	tpl.IsCA = false
	tpl.KeyUsage = x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment | x509.KeyUsageKeyAgreement
	tpl.DNSNames = append(tpl.DNSNames, ex.HostNames...)
	tpl.EmailAddresses = append(tpl.EmailAddresses, ex.UserEmails...)
}

// ProfileIPsecServer: serverAuth + IKE intermediate, SAN из имён хостов.
func ProfileIPsecServer(tpl *x509.Certificate, now time.Time, ex Extras) {
	profileIPsecCommon(tpl, now, ex)
	tpl.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}
	tpl.UnknownExtKeyUsage = []asn1.ObjectIdentifier{oidIKEIntermediate}
}

// ProfileIPsecDevice: clientAuth + IKE intermediate, SAN из email-адресов.
func ProfileIPsecDevice(tpl *x509.Certificate, now time.Time, ex Extras) {
	profileIPsecCommon(tpl, now, ex)
	tpl.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}
	tpl.UnknownExtKeyUsage = []asn1.ObjectIdentifier{oidIKEIntermediate}
}

// Engine генерирует ключевые пары и собирает сертификаты. Подпись всюду —
// SHA-256 поверх DER, ключи — RSA с e=65537.
type Engine struct {
	KeySize int
	Now     func() time.Time
}

func NewEngine(keySize int) *Engine {
	if keySize <= 0 {
		keySize = DefaultKeySize
	}
	return &Engine{KeySize: keySize, Now: time.Now}
}

func (e *Engine) generateKey() (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, e.KeySize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}
	return key, nil
}

func (e *Engine) template(dn string, profile Profile, ex Extras) (*x509.Certificate, error) {
	subject, err := ParseDN(dn)
	if err != nil {
		return nil, err
	}
	tpl := &x509.Certificate{
		Subject:            subject,
		SignatureAlgorithm: x509.SHA256WithRSA,
	}
	profile(tpl, e.Now().UTC(), ex)
	return tpl, nil
}

// SelfSign выпускает самоподписанный сертификат (issuer == subject),
// серийный номер случайный. Статус сразу ACTIVE.
func (e *Engine) SelfSign(dn string, profile Profile, ex Extras) (*models.Certificate, error) {
	key, err := e.generateKey()
	if err != nil {
		return nil, err
	}
	tpl, err := e.template(dn, profile, ex)
	if err != nil {
		return nil, err
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}
	tpl.SerialNumber = serial

	der, err := x509.CreateCertificate(rand.Reader, tpl, tpl, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return &models.Certificate{
		CertDER: der,
		KeyDER:  x509.MarshalPKCS1PrivateKey(key),
		Status:  models.CertStatusActive,
	}, nil
}

// Request создаёт PKCS#10-запрос без подписи внешним CA; статус REQUEST.
// Зарезервировано под будущий CSR-процесс.
func (e *Engine) Request(dn string, ex Extras) (*models.Certificate, error) {
	key, err := e.generateKey()
	if err != nil {
		return nil, err
	}
	subject, err := ParseDN(dn)
	if err != nil {
		return nil, err
	}
	tpl := &x509.CertificateRequest{
		Subject:            subject,
		SignatureAlgorithm: x509.SHA256WithRSA,
		DNSNames:           ex.HostNames,
		EmailAddresses:     ex.UserEmails,
	}
	der, err := x509.CreateCertificateRequest(rand.Reader, tpl, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return &models.Certificate{
		CertDER: der,
		KeyDER:  x509.MarshalPKCS1PrivateKey(key),
		Status:  models.CertStatusRequest,
	}, nil
}

// IssueSigned выпускает листовой сертификат, подписанный parent.
// Серийный номер выделяет вызывающий (Authority) — ровно один на выпуск.
func (e *Engine) IssueSigned(dn string, profile Profile, parent *models.Certificate, serial int64, ex Extras) (*models.Certificate, error) {
	parentCert, parentKey, err := parseKeypair(parent)
	if err != nil {
		return nil, err
	}
	key, err := e.generateKey()
	if err != nil {
		return nil, err
	}
	tpl, err := e.template(dn, profile, ex)
	if err != nil {
		return nil, err
	}
	tpl.SerialNumber = big.NewInt(serial)

	der, err := x509.CreateCertificate(rand.Reader, tpl, parentCert, &key.PublicKey, parentKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return &models.Certificate{
		CertDER: der,
		KeyDER:  x509.MarshalPKCS1PrivateKey(key),
		Status:  models.CertStatusActive,
	}, nil
}

// parseKeypair читает DER-пару подписывающего сертификата.
func parseKeypair(c *models.Certificate) (*x509.Certificate, *rsa.PrivateKey, error) {
	if c == nil || len(c.CertDER) == 0 || len(c.KeyDER) == 0 {
		return nil, nil, fmt.Errorf("%w: signing certificate has no key material", ErrSigning)
	}
	cert, err := x509.ParseCertificate(c.CertDER)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSigning, err)
	}
	key, err := parsePrivateKey(c.KeyDER)
	if err != nil {
		return nil, nil, err
	}
	return cert, key, nil
}

func parsePrivateKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	k, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigning, err)
	}
	rsaKey, ok := k.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA key", ErrSigning)
	}
	return rsaKey, nil
}
