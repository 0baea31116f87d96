package devices

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
	"strings"
	"unicode"

	"github.com/henryk/ipsec-me/internal/models"
	"github.com/henryk/ipsec-me/internal/pki"
)

// DefaultSecretEntropy — бит энтропии генерируемых секретов.
const DefaultSecretEntropy = 96

const secretAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DeriveIdentity строит XAUTH-идентификатор устройства: имя приводится к
// нижнему регистру, пробельные серии схлопываются в "_", остаётся только
// [a-z0-9_]; префикс — идентификатор владельца.
func DeriveIdentity(account, name string) string {
	var b strings.Builder
	sep := false
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsSpace(r):
			if !sep && b.Len() > 0 {
				b.WriteByte('_')
			}
			sep = true
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			sep = false
		}
	}
	return account + "_" + strings.TrimRight(b.String(), "_")
}

// GenerateSecret выдаёт случайное base62-слово не слабее entropyBits бит.
func GenerateSecret(entropyBits int) (string, error) {
	if entropyBits <= 0 {
		entropyBits = DefaultSecretEntropy
	}
	n := int(math.Ceil(float64(entropyBits) / math.Log2(float64(len(secretAlphabet)))))
	max := big.NewInt(int64(len(secretAlphabet)))
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generating secret: %w", err)
		}
		b.WriteByte(secretAlphabet[idx.Int64()])
	}
	return b.String(), nil
}

// PSKFingerprint — стабильная замена отпечатка сертификата для PSK-видов:
// привязывает токен к текущему секрету, ротация секрета инвалидирует
// выданные токены.
func PSKFingerprint(identity, secret string) string {
	sum := sha256.Sum256([]byte("psk:" + identity + ":" + secret))
	return hex.EncodeToString(sum[:])
}

// CurrentFingerprint — актуальный отпечаток учётных данных устройства.
func CurrentFingerprint(d *models.Device) string {
	if d.Certificate != nil && len(d.Certificate.CertDER) > 0 {
		return pki.Fingerprint(d.Certificate)
	}
	return PSKFingerprint(d.Identity, d.Secret)
}
