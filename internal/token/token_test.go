package token

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSigner(t *testing.T) *Signer {
	t.Helper()
	s, err := NewSigner([]byte("process-secret"), ProvisionSalt)
	require.NoError(t, err)
	return s
}

func TestNewSignerEmptySecret(t *testing.T) {
	_, err := NewSigner(nil, ProvisionSalt)
	assert.Error(t, err)
}

func TestMintResolveRoundTrip(t *testing.T) {
	s := testSigner(t)
	ref := Reference{DeviceID: 42, Fingerprint: "abcdef0123456789"}

	tok := s.Mint(ref)
	assert.NotContains(t, tok, "/") // токен вкладывается в путь URL

	got, err := s.Resolve(tok)
	require.NoError(t, err)
	assert.Equal(t, ref, got)
	assert.NoError(t, s.CheckFingerprint(got, ref.Fingerprint))
}

func TestResolveTamperedPayload(t *testing.T) {
	s := testSigner(t)
	tok := s.Mint(Reference{DeviceID: 42, Fingerprint: "fp"})

	dot := strings.LastIndexByte(tok, '.')
	other := s.Mint(Reference{DeviceID: 43, Fingerprint: "fp"})
	forged := other[:strings.LastIndexByte(other, '.')] + tok[dot:]

	_, err := s.Resolve(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResolveGarbage(t *testing.T) {
	s := testSigner(t)
	for _, tok := range []string{"", ".", "abc", "abc.", ".def", "a!b.c$d"} {
		_, err := s.Resolve(tok)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", tok)
	}
}

func TestResolveForeignKey(t *testing.T) {
	a := testSigner(t)
	b, err := NewSigner([]byte("other-secret"), ProvisionSalt)
	require.NoError(t, err)

	_, err = b.Resolve(a.Mint(Reference{DeviceID: 1, Fingerprint: "fp"}))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSaltSeparatesKeys(t *testing.T) {
	a, err := NewSigner([]byte("process-secret"), "salt-one")
	require.NoError(t, err)
	b, err := NewSigner([]byte("process-secret"), "salt-two")
	require.NoError(t, err)

	_, err = b.Resolve(a.Mint(Reference{DeviceID: 1, Fingerprint: "fp"}))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

// Ротация учётных данных: токен со старым отпечатком больше не работает.
func TestCheckFingerprintRotation(t *testing.T) {
	s := testSigner(t)
	tok := s.Mint(Reference{DeviceID: 42, Fingerprint: "old-fp"})

	ref, err := s.Resolve(tok)
	require.NoError(t, err)
	assert.ErrorIs(t, s.CheckFingerprint(ref, "new-fp"), ErrStaleToken)
}
