package vpn

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/curve25519"
)

const keyLen = 32

// GeneratePresharedKey возвращает 32 случайных байта в base64 (44 символа).
// Используется и для deactivate-секрета: он должен быть криптографически
// независим от настоящего preshared key.
func GeneratePresharedKey() (string, error) {
	var key [keyLen]byte
	if _, err := rand.Read(key[:]); err != nil {
		return "", fmt.Errorf("generate preshared key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key[:]), nil
}

// GeneratePrivateKey возвращает приватный ключ Curve25519 с WireGuard-клампингом.
func GeneratePrivateKey() (string, error) {
	var key [keyLen]byte
	if _, err := rand.Read(key[:]); err != nil {
		return "", fmt.Errorf("generate private key: %w", err)
	}
	key[0] &= 248
	key[31] &= 127
	key[31] |= 64
	return base64.StdEncoding.EncodeToString(key[:]), nil
}

// PublicKeyOf выводит публичный ключ из приватного.
func PublicKeyOf(privateKey string) (string, error) {
	priv, err := base64.StdEncoding.DecodeString(privateKey)
	if err != nil || len(priv) != keyLen {
		return "", fmt.Errorf("invalid private key")
	}
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return "", fmt.Errorf("derive public key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(pub), nil
}

// ValidKey проверяет, что строка — base64 от ровно 32 байт.
func ValidKey(s string) bool {
	raw, err := base64.StdEncoding.DecodeString(s)
	return err == nil && len(raw) == keyLen
}
