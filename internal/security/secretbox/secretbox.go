// Package secretbox cifra secretos de configuración (DSN, URLs de broker,
// API keys) con AES-256-GCM. Formato: base64(nonce)|base64(ciphertext).
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	EnvMasterKey = "SECRETBOX_MASTER_KEY"
	// Prefix marca un valor de config cifrado: "enc:<nonce>|<ct>".
	Prefix = "enc:"

	nonceSize = 12
	keyLen    = 32
	sep       = "|"
)

var ErrNoKey = errors.New(EnvMasterKey + " no seteada; genere una clave con: openssl rand -base64 32")

type Box struct {
	aead cipher.AEAD
}

// New acepta la clave en base64 (con o sin padding), hex o 32 bytes crudos.
func New(key string) (*Box, error) {
	k, err := parseKey(strings.TrimSpace(key))
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &Box{aead: aead}, nil
}

// FromEnv construye la caja con SECRETBOX_MASTER_KEY.
func FromEnv() (*Box, error) {
	k := strings.TrimSpace(os.Getenv(EnvMasterKey))
	if k == "" {
		return nil, ErrNoKey
	}
	return New(k)
}

func parseKey(key string) ([]byte, error) {
	if b, err := base64.StdEncoding.DecodeString(key); err == nil && len(b) == keyLen {
		return b, nil
	}
	if b, err := base64.RawStdEncoding.DecodeString(key); err == nil && len(b) == keyLen {
		return b, nil
	}
	if len(key) == 2*keyLen {
		if b, err := hex.DecodeString(key); err == nil {
			return b, nil
		}
	}
	if len(key) == keyLen {
		return []byte(key), nil
	}
	return nil, fmt.Errorf("clave inválida: se requieren %d bytes", keyLen)
}

// Seal cifra plain con un nonce aleatorio.
func (b *Box) Seal(plain string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce random: %w", err)
	}
	ct := b.aead.Seal(nil, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(nonce) + sep + base64.StdEncoding.EncodeToString(ct), nil
}

func (b *Box) Open(sealed string) (string, error) {
	nonceB64, ctB64, ok := strings.Cut(strings.TrimPrefix(sealed, Prefix), sep)
	if !ok {
		return "", errors.New("formato inválido: esperado base64(nonce)|base64(ciphertext)")
	}
	nonce, err := base64.StdEncoding.DecodeString(nonceB64)
	if err != nil {
		return "", fmt.Errorf("decode nonce: %w", err)
	}
	if len(nonce) != nonceSize {
		return "", fmt.Errorf("nonce inválido: esperado %d bytes, obtuvo %d", nonceSize, len(nonce))
	}
	ct, err := base64.StdEncoding.DecodeString(ctB64)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	pt, err := b.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("gcm auth/decrypt: %w", err)
	}
	return string(pt), nil
}

// IsSealed indica si un valor de config viene cifrado.
func IsSealed(v string) bool { return strings.HasPrefix(v, Prefix) }

// Reveal devuelve v tal cual si no está cifrado; si lo está, lo abre con la
// clave del entorno.
func Reveal(v string) (string, error) {
	if !IsSealed(v) {
		return v, nil
	}
	b, err := FromEnv()
	if err != nil {
		return "", err
	}
	return b.Open(v)
}
