package pki

import (
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/henryk/ipsec-me/internal/models"
)

// Тестовый движок с коротким ключом: профили от длины ключа не зависят.
func testEngine() *Engine {
	return NewEngine(1024)
}

func mustParse(t *testing.T, c *models.Certificate) *x509.Certificate {
	t.Helper()
	cert, err := x509.ParseCertificate(c.CertDER)
	require.NoError(t, err)
	return cert
}

func TestSelfSignCAProfile(t *testing.T) {
	e := testEngine()
	c, err := e.SelfSign("CN=VPN CA 1, O=Example", ProfileCA, Extras{})
	require.NoError(t, err)
	assert.Equal(t, models.CertStatusActive, c.Status)

	cert := mustParse(t, c)
	assert.True(t, cert.IsCA)
	assert.True(t, cert.BasicConstraintsValid)
	assert.True(t, cert.MaxPathLenZero)
	assert.Equal(t, 0, cert.MaxPathLen)
	assert.Equal(t, "VPN CA 1", cert.Subject.CommonName)
	assert.Equal(t, cert.Subject.String(), cert.Issuer.String())

	// ~20 лет
	assert.InDelta(t, float64(caLifetime), float64(cert.NotAfter.Sub(cert.NotBefore)), float64(24*time.Hour))

	// самоподпись должна проверяться собственным ключом
	assert.NoError(t, cert.CheckSignatureFrom(cert))
}

func TestIssueSignedServerProfile(t *testing.T) {
	e := testEngine()
	ca, err := e.SelfSign("CN=VPN CA 1", ProfileCA, Extras{})
	require.NoError(t, err)

	leaf, err := e.IssueSigned("CN=vpn.example.com", ProfileIPsecServer, ca, 7,
		Extras{HostNames: []string{"vpn.example.com"}})
	require.NoError(t, err)

	cert := mustParse(t, leaf)
	assert.False(t, cert.IsCA)
	assert.EqualValues(t, 7, cert.SerialNumber.Int64())
	assert.Equal(t, []string{"vpn.example.com"}, cert.DNSNames)
	assert.Contains(t, cert.ExtKeyUsage, x509.ExtKeyUsageServerAuth)
	assert.Contains(t, cert.UnknownExtKeyUsage, oidIKEIntermediate)
	assert.Equal(t, x509.KeyUsageDigitalSignature|x509.KeyUsageKeyEncipherment|x509.KeyUsageKeyAgreement, cert.KeyUsage)

	parent := mustParse(t, ca)
	assert.NoError(t, cert.CheckSignatureFrom(parent))
	assert.Equal(t, parent.Subject.String(), cert.Issuer.String())
}

func TestIssueSignedDeviceProfile(t *testing.T) {
	e := testEngine()
	ca, err := e.SelfSign("CN=VPN CA 1", ProfileCA, Extras{})
	require.NoError(t, err)

	leaf, err := e.IssueSigned("CN=a@example.com", ProfileIPsecDevice, ca, 1,
		Extras{UserEmails: []string{"a@example.com"}})
	require.NoError(t, err)

	cert := mustParse(t, leaf)
	assert.Equal(t, []string{"a@example.com"}, cert.EmailAddresses)
	assert.Contains(t, cert.ExtKeyUsage, x509.ExtKeyUsageClientAuth)
	assert.Contains(t, cert.UnknownExtKeyUsage, oidIKEIntermediate)
}

func TestIssueSignedRejectsBadSubject(t *testing.T) {
	e := testEngine()
	ca, err := e.SelfSign("CN=VPN CA 1", ProfileCA, Extras{})
	require.NoError(t, err)

	_, err = e.IssueSigned("L=Berlin", ProfileIPsecServer, ca, 1, Extras{})
	assert.ErrorIs(t, err, ErrInvalidSubject)
}

func TestIssueSignedNeedsKeyMaterial(t *testing.T) {
	e := testEngine()
	_, err := e.IssueSigned("CN=x", ProfileIPsecServer, &models.Certificate{}, 1, Extras{})
	assert.ErrorIs(t, err, ErrSigning)
}

func TestRequestStatus(t *testing.T) {
	e := testEngine()
	c, err := e.Request("CN=pending.example.com", Extras{HostNames: []string{"pending.example.com"}})
	require.NoError(t, err)
	assert.Equal(t, models.CertStatusRequest, c.Status)

	csr, err := x509.ParseCertificateRequest(c.CertDER)
	require.NoError(t, err)
	assert.Equal(t, "pending.example.com", csr.Subject.CommonName)
}

func TestExtrasLifetimeOverride(t *testing.T) {
	e := testEngine()
	c, err := e.SelfSign("CN=short", ProfileCA, Extras{Lifetime: 24 * time.Hour})
	require.NoError(t, err)
	cert := mustParse(t, c)
	assert.InDelta(t, float64(24*time.Hour), float64(cert.NotAfter.Sub(cert.NotBefore)), float64(time.Minute))
}

func TestCertPEM(t *testing.T) {
	e := testEngine()
	c, err := e.SelfSign("CN=x", ProfileCA, Extras{})
	require.NoError(t, err)

	block, rest := pem.Decode(CertPEM(c))
	require.NotNil(t, block)
	assert.Empty(t, rest)
	assert.Equal(t, "CERTIFICATE", block.Type)
	assert.Equal(t, c.CertDER, block.Bytes)
}

func TestKeyPEMPlainAndEncrypted(t *testing.T) {
	e := testEngine()
	c, err := e.SelfSign("CN=x", ProfileCA, Extras{})
	require.NoError(t, err)

	plain, err := KeyPEM(c, "")
	require.NoError(t, err)
	block, _ := pem.Decode(plain)
	require.NotNil(t, block)
	assert.Equal(t, "RSA PRIVATE KEY", block.Type)
	_, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	assert.NoError(t, err)

	enc, err := KeyPEM(c, "s3cret")
	require.NoError(t, err)
	block, _ = pem.Decode(enc)
	require.NotNil(t, block)
	assert.True(t, x509.IsEncryptedPEMBlock(block)) //nolint:staticcheck
	der, err := x509.DecryptPEMBlock(block, []byte("s3cret")) //nolint:staticcheck
	require.NoError(t, err)
	assert.Equal(t, c.KeyDER, der)
}

func TestPKCS12RoundTrip(t *testing.T) {
	e := testEngine()
	c, err := e.SelfSign("CN=x", ProfileCA, Extras{})
	require.NoError(t, err)

	blob, err := PKCS12(c, "changeit", false)
	require.NoError(t, err)
	assert.NotEmpty(t, blob)
}

func TestPKCS12ChainUnavailable(t *testing.T) {
	e := testEngine()
	c, err := e.SelfSign("CN=x", ProfileCA, Extras{})
	require.NoError(t, err)

	_, err = PKCS12(c, "", true)
	assert.ErrorIs(t, err, ErrChainUnavailable)

	_, err = CAPEM(c)
	assert.ErrorIs(t, err, ErrChainUnavailable)
}

func TestFingerprintStable(t *testing.T) {
	e := testEngine()
	a, err := e.SelfSign("CN=x", ProfileCA, Extras{})
	require.NoError(t, err)
	b, err := e.SelfSign("CN=x", ProfileCA, Extras{})
	require.NoError(t, err)

	assert.Len(t, Fingerprint(a), 64)
	assert.Equal(t, Fingerprint(a), Fingerprint(a))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
}

func TestText(t *testing.T) {
	e := testEngine()
	c, err := e.SelfSign("CN=VPN CA 1, O=Example", ProfileCA, Extras{})
	require.NoError(t, err)

	out, err := Text(c)
	require.NoError(t, err)
	assert.Contains(t, out, "Subject: CN=VPN CA 1, O=Example")
	assert.Contains(t, out, "CA: true")
	assert.Contains(t, out, Fingerprint(c))
}
