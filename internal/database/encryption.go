package database

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"whatsflow/internal/constants"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"
)

const (
	sealedPrefix  = "enc:v1:"
	kdfIterations = 100000
)

// encryptor seals account credentials (access tokens, AI keys) at rest with
// XChaCha20-Poly1305. Sealed values carry sealedPrefix; anything else is
// treated as a plaintext row written before encryption was turned on.
type encryptor struct {
	aead cipher.AEAD
}

func NewEncryptor() (*encryptor, error) {
	if os.Getenv(constants.EnvEnableEncryption) != "true" {
		return &encryptor{}, nil
	}

	secret := os.Getenv(constants.EnvEncryptionSecret)
	switch {
	case secret == "":
		return nil, fmt.Errorf("%s is required when encryption is enabled", constants.EnvEncryptionSecret)
	case len(secret) < constants.MinEncryptionSecret:
		return nil, fmt.Errorf("encryption secret must be at least %d characters long", constants.MinEncryptionSecret)
	}

	key := pbkdf2.Key([]byte(secret), []byte(constants.EncryptionSalt), kdfIterations, chacha20poly1305.KeySize, sha256.New)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return &encryptor{aead: aead}, nil
}

func (e *encryptor) Enabled() bool {
	return e.aead != nil
}

func (e *encryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" || !e.Enabled() {
		return plaintext, nil
	}

	nonce := make([]byte, e.aead.NonceSize(), e.aead.NonceSize()+len(plaintext)+e.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), []byte(sealedPrefix))
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (e *encryptor) Decrypt(stored string) (string, error) {
	encoded, ok := strings.CutPrefix(stored, sealedPrefix)
	if !ok {
		return stored, nil
	}
	if !e.Enabled() {
		return "", errors.New("found an encrypted credential but encryption is disabled")
	}

	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode sealed value: %w", err)
	}
	if len(data) < e.aead.NonceSize()+e.aead.Overhead() {
		return "", errors.New("sealed value too short")
	}

	nonce, sealed := data[:e.aead.NonceSize()], data[e.aead.NonceSize():]
	plaintext, err := e.aead.Open(nil, nonce, sealed, []byte(sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}
