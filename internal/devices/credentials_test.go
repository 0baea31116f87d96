package devices

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/henryk/ipsec-me/internal/models"
)

func TestDeriveIdentity(t *testing.T) {
	cases := []struct {
		account, name, want string
	}{
		{"a@b.com", "My Phone!!", "a@b.com_my_phone"},
		{"a@b.com", "  laptop  ", "a@b.com_laptop"},
		{"a@b.com", "Tab 2", "a@b.com_tab_2"},
		{"a@b.com", "weird---name", "a@b.com_weirdname"},
		{"a@b.com", "under_score", "a@b.com_under_score"},
		{"a@b.com", "", "a@b.com_"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, DeriveIdentity(c.account, c.name), "name %q", c.name)
	}
}

func TestGenerateSecretLength(t *testing.T) {
	// 96 бит / log2(62) ≈ 16.13 → 17 символов
	s, err := GenerateSecret(96)
	require.NoError(t, err)
	assert.Len(t, s, 17)
	for _, r := range s {
		assert.Contains(t, secretAlphabet, string(r))
	}

	// 0 — умолчание
	s, err = GenerateSecret(0)
	require.NoError(t, err)
	assert.Len(t, s, 17)
}

func TestGenerateSecretUnique(t *testing.T) {
	a, err := GenerateSecret(96)
	require.NoError(t, err)
	b, err := GenerateSecret(96)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestPSKFingerprint(t *testing.T) {
	fp := PSKFingerprint("a@b.com_phone", "s3cret")
	assert.Len(t, fp, 64)
	assert.Equal(t, fp, PSKFingerprint("a@b.com_phone", "s3cret"))
	assert.NotEqual(t, fp, PSKFingerprint("a@b.com_phone", "other"))
	assert.NotEqual(t, fp, PSKFingerprint("a@b.com_tablet", "s3cret"))
}

func TestCurrentFingerprintPSK(t *testing.T) {
	d := &models.Device{Identity: "a@b.com_phone", Secret: "s3cret"}
	assert.Equal(t, PSKFingerprint("a@b.com_phone", "s3cret"), CurrentFingerprint(d))
}
