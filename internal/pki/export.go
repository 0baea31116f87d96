package pki

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"strings"

	"software.sslmate.com/src/go-pkcs12"

	"github.com/henryk/ipsec-me/internal/models"
)

// Экспорт учётных данных. Единственные операции, через которые приватный
// ключ покидает модель.

// CertPEM — PEM-кодированный сертификат.
func CertPEM(c *models.Certificate) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: c.CertDER})
}

// KeyPEM — PEM-кодированный приватный ключ; при непустом passphrase —
// шифрование AES-256-CBC.
func KeyPEM(c *models.Certificate, passphrase string) ([]byte, error) {
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: c.KeyDER}
	if passphrase != "" {
		enc, err := x509.EncryptPEMBlock(rand.Reader, block.Type, block.Bytes, []byte(passphrase), x509.PEMCipherAES256) //nolint:staticcheck
		if err != nil {
			return nil, fmt.Errorf("encrypting private key: %w", err)
		}
		block = enc
	}
	return pem.EncodeToMemory(block), nil
}

// PKCS12 собирает бандл сертификат+ключ. includeChain пока не реализован:
// отказываем явно (ErrChainUnavailable), а не отдаём пустую цепочку.
func PKCS12(c *models.Certificate, password string, includeChain bool) ([]byte, error) {
	if includeChain {
		return nil, ErrChainUnavailable
	}
	cert, err := x509.ParseCertificate(c.CertDER)
	if err != nil {
		return nil, fmt.Errorf("parsing certificate: %w", err)
	}
	key, err := parsePrivateKey(c.KeyDER)
	if err != nil {
		return nil, err
	}
	return pkcs12.Modern.Encode(key, cert, nil, password)
}

// CAPEM должен отдавать цепочку доверия; алгоритм её построения не
// специфицирован — явный отказ.
func CAPEM(_ *models.Certificate) ([]byte, error) {
	return nil, ErrChainUnavailable
}

// Fingerprint — hex SHA-256 над DER-представлением сертификата.
func Fingerprint(c *models.Certificate) string {
	sum := sha256.Sum256(c.CertDER)
	return hex.EncodeToString(sum[:])
}

// Text — человекочитаемый дамп основных полей.
func Text(c *models.Certificate) (string, error) {
	cert, err := x509.ParseCertificate(c.CertDER)
	if err != nil {
		return "", fmt.Errorf("parsing certificate: %w", err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Certificate:\n")
	fmt.Fprintf(&b, "    Serial Number: %s\n", cert.SerialNumber)
	fmt.Fprintf(&b, "    Subject: %s\n", FormatDN(cert.Subject))
	fmt.Fprintf(&b, "    Issuer: %s\n", FormatDN(cert.Issuer))
	fmt.Fprintf(&b, "    Not Before: %s\n", cert.NotBefore.UTC().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "    Not After:  %s\n", cert.NotAfter.UTC().Format("2006-01-02 15:04:05 MST"))
	if len(cert.DNSNames) > 0 {
		fmt.Fprintf(&b, "    DNS Names: %s\n", strings.Join(cert.DNSNames, ", "))
	}
	if len(cert.EmailAddresses) > 0 {
		fmt.Fprintf(&b, "    Email Addresses: %s\n", strings.Join(cert.EmailAddresses, ", "))
	}
	if cert.IsCA {
		fmt.Fprintf(&b, "    CA: true, path length 0\n")
	}
	fmt.Fprintf(&b, "    Fingerprint (SHA-256): %s\n", Fingerprint(c))
	return b.String(), nil
}
