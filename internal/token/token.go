// Package token — защищённые ссылки на устройства: неподделываемые,
// самоописываемые токены для скачивания учётных данных без сессии.
// Полезная нагрузка — id устройства и отпечаток его текущего сертификата,
// поэтому ротация сертификата автоматически инвалидирует старые токены.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// Соль доменного разделения: ключ подписи токенов не совпадает с ключами
// других применений того же секрета процесса.
const ProvisionSalt = "ipsec-me.provision.v1"

var (
	ErrInvalidToken = errors.New("invalid provisioning token")
	ErrStaleToken   = errors.New("stale provisioning token")
)

// Reference — расшифрованное содержимое токена.
type Reference struct {
	DeviceID    uint
	Fingerprint string
}

// Signer подписывает и проверяет ссылки. Секрет передаётся явно при
// конструировании — никакого скрытого глобального состояния.
type Signer struct {
	key []byte
}

func NewSigner(secret []byte, salt string) (*Signer, error) {
	if len(secret) == 0 {
		return nil, errors.New("token signer: empty secret")
	}
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, []byte(salt), nil), key); err != nil {
		return nil, fmt.Errorf("token signer: deriving key: %w", err)
	}
	return &Signer{key: key}, nil
}

func (s *Signer) sign(payload string) []byte {
	m := hmac.New(sha256.New, s.key)
	m.Write([]byte(payload))
	return m.Sum(nil)
}

// Mint выпускает URL-безопасный токен для устройства с данным отпечатком.
func (s *Signer) Mint(ref Reference) string {
	payload := base64.RawURLEncoding.EncodeToString(
		[]byte(strconv.FormatUint(uint64(ref.DeviceID), 10) + ":" + ref.Fingerprint))
	sig := base64.RawURLEncoding.EncodeToString(s.sign(payload))
	return payload + "." + sig
}

// Resolve проверяет подпись (сравнение с постоянным временем) и разбирает
// полезную нагрузку. Любая деталь отказа скрыта за ErrInvalidToken.
func (s *Signer) Resolve(tok string) (Reference, error) {
	dot := strings.LastIndexByte(tok, '.')
	if dot <= 0 || dot == len(tok)-1 {
		return Reference{}, ErrInvalidToken
	}
	payload, sigPart := tok[:dot], tok[dot+1:]

	sig, err := base64.RawURLEncoding.DecodeString(sigPart)
	if err != nil || !hmac.Equal(sig, s.sign(payload)) {
		return Reference{}, ErrInvalidToken
	}

	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return Reference{}, ErrInvalidToken
	}
	idPart, fp, ok := strings.Cut(string(raw), ":")
	if !ok || fp == "" {
		return Reference{}, ErrInvalidToken
	}
	id, err := strconv.ParseUint(idPart, 10, 64)
	if err != nil {
		return Reference{}, ErrInvalidToken
	}
	return Reference{DeviceID: uint(id), Fingerprint: fp}, nil
}

// CheckFingerprint сравнивает вшитый отпечаток с актуальным (constant
// time). Несовпадение — токен выдан до ротации учётных данных.
func (s *Signer) CheckFingerprint(ref Reference, current string) error {
	if subtle.ConstantTimeCompare([]byte(ref.Fingerprint), []byte(current)) != 1 {
		return ErrStaleToken
	}
	return nil
}
