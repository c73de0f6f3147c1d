package disclosure

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const saltSize = 16

var (
	ErrEmptyKey      = errors.New("decryption key is empty")
	ErrCiphertext    = errors.New("ciphertext is malformed")
	ErrDecryptFailed = errors.New("decryption failed")
)

var hkdfInfo = []byte("ledgergateway field encryption")

// Cipher encrypts field values under a caller-supplied passphrase.
// The wire form is base64(salt || nonce || sealed).
type Cipher struct {
	rand io.Reader
}

func NewCipher() *Cipher {
	return &Cipher{rand: rand.Reader}
}

func deriveKey(key string, salt []byte) ([]byte, error) {
	out := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(key), salt, hkdfInfo), out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Cipher) Encrypt(plaintext []byte, key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}

	buf := make([]byte, saltSize+chacha20poly1305.NonceSizeX, saltSize+chacha20poly1305.NonceSizeX+len(plaintext)+chacha20poly1305.Overhead)
	if _, err := io.ReadFull(c.rand, buf); err != nil {
		return "", err
	}
	salt, nonce := buf[:saltSize], buf[saltSize:]

	k, err := deriveKey(key, salt)
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.NewX(k)
	if err != nil {
		return "", err
	}

	sealed := aead.Seal(buf, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *Cipher) Decrypt(ciphertext, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, ErrCiphertext
	}
	if len(raw) < saltSize+chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return nil, ErrCiphertext
	}
	salt := raw[:saltSize]
	nonce := raw[saltSize : saltSize+chacha20poly1305.NonceSizeX]
	sealed := raw[saltSize+chacha20poly1305.NonceSizeX:]

	k, err := deriveKey(key, salt)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(k)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}
