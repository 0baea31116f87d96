package vpn

import (
	"context"
	"crypto/x509"
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/henryk/ipsec-me/internal/models"
	"github.com/henryk/ipsec-me/internal/pki"
	"github.com/henryk/ipsec-me/internal/repo"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Account{}, &models.Certificate{},
		&models.CertificateAuthority{}, &models.VPNServer{}, &models.VPNUser{},
		&models.Device{}))
	return db
}

func testServer(t *testing.T, db *gorm.DB) *models.VPNServer {
	t.Helper()
	svc := New(db, pki.NewEngine(1024), 96)
	srv, err := svc.CreateServer(context.Background(), CreateServerInput{
		Name:             "office",
		ExternalHostname: "vpn.example.com",
	})
	require.NoError(t, err)
	return srv
}

func TestDeriveBaseDNS(t *testing.T) {
	base, err := deriveBaseDNS("vpn.example.com", "")
	require.NoError(t, err)
	assert.Equal(t, "example.com", base)

	base, err = deriveBaseDNS("a.b.example.com", "")
	require.NoError(t, err)
	assert.Equal(t, "b.example.com", base)
}

func TestDeriveBaseDNSExplicit(t *testing.T) {
	base, err := deriveBaseDNS("vpn.example.com", "example.com")
	require.NoError(t, err)
	assert.Equal(t, "example.com", base)

	// hostname, совпадающий с суффиксом, допустим
	base, err = deriveBaseDNS("example.com", "example.com")
	require.NoError(t, err)
	assert.Equal(t, "example.com", base)

	// чужой суффикс — отказ
	_, err = deriveBaseDNS("vpn.example.com", "other.org")
	assert.ErrorIs(t, err, ErrInvalidHostname)

	// "ample.com" — суффикс строки, но не доменный родитель
	_, err = deriveBaseDNS("vpn.example.com", "ample.com")
	assert.ErrorIs(t, err, ErrInvalidHostname)
}

func TestDeriveBaseDNSNoDomain(t *testing.T) {
	_, err := deriveBaseDNS("vpnhost", "")
	assert.ErrorIs(t, err, ErrInvalidHostname)

	_, err = deriveBaseDNS("vpnhost.", "")
	assert.ErrorIs(t, err, ErrInvalidHostname)
}

func TestCreateServer(t *testing.T) {
	db := testDB(t)
	srv := testServer(t, db)

	assert.Equal(t, "example.com", srv.BaseDNSName)
	assert.NotEmpty(t, srv.PSK)
	require.NotNil(t, srv.PrimaryCAID)
	require.NotNil(t, srv.Certificate)

	cert, err := x509.ParseCertificate(srv.Certificate.CertDER)
	require.NoError(t, err)
	assert.Equal(t, []string{"vpn.example.com"}, cert.DNSNames)
	assert.EqualValues(t, 1, cert.SerialNumber.Int64())

	// агрегат читается обратно целиком
	got, err := repo.NewVPNStore(db).GetServer(context.Background(), srv.ID)
	require.NoError(t, err)
	assert.Equal(t, srv.ID, got.ID)
	require.Len(t, got.CAs, 1)
	assert.Equal(t, *srv.PrimaryCAID, got.CAs[0].ID)
}

// Повторный addUser с той же парой (аккаунт, сервер) не плодит строк:
// возвращается то же членство, роль обновляется на месте.
func TestAddUserIdempotent(t *testing.T) {
	db := testDB(t)
	srv := testServer(t, db)
	ctx := context.Background()
	svc := New(db, pki.NewEngine(1024), 96)

	first, err := svc.AddUser(ctx, srv.ID, "a@b.com", models.RoleUser)
	require.NoError(t, err)

	again, err := svc.AddUser(ctx, srv.ID, "a@b.com", models.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, models.RoleUser, again.Role)

	promoted, err := svc.AddUser(ctx, srv.ID, "a@b.com", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, first.ID, promoted.ID)
	assert.Equal(t, models.RoleAdmin, promoted.Role)

	var n int64
	require.NoError(t, db.Model(&models.VPNUser{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)

	stored, err := repo.NewVPNStore(db).GetMembership(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, stored.Role)
}

func TestAddUserUnknownServer(t *testing.T) {
	svc := New(testDB(t), pki.NewEngine(1024), 96)
	_, err := svc.AddUser(context.Background(), 999, "a@b.com", models.RoleUser)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestAddDevice(t *testing.T) {
	db := testDB(t)
	srv := testServer(t, db)
	ctx := context.Background()
	svc := New(db, pki.NewEngine(1024), 96)

	vu, err := svc.AddUser(ctx, srv.ID, "a@b.com", models.RoleUser)
	require.NoError(t, err)

	dev, err := svc.AddDevice(ctx, vu.ID, "ios_10", "ipad", nil)
	require.NoError(t, err)
	require.NotNil(t, dev.Certificate)

	cert, err := x509.ParseCertificate(dev.Certificate.CertDER)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@b.com"}, cert.EmailAddresses)
	// серверный лист взял 1, устройство — следующий без дыр
	assert.EqualValues(t, 2, cert.SerialNumber.Int64())

	psk, err := svc.AddDevice(ctx, vu.ID, "android_native", "My Phone!!", nil)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com_my_phone", psk.Identity)
	assert.NotEmpty(t, psk.Secret)
	assert.Nil(t, psk.Certificate)
}
