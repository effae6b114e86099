package sec

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Read https://pkg.go.dev/golang.org/x/crypto/chacha20poly1305

var ErrCiphertextTooShort = errors.New("ciphertext too short")

type XChaCha20Poly1305Cipher struct {
	aead       cipher.AEAD
	encodeFunc func([]byte) string          // e.g. base64.RawURLEncoding.EncodeToString, hex.EncodeToString
	decodeFunc func(string) ([]byte, error) // e.g. base64.RawURLEncoding.DecodeString, hex.DecodeString
}

func NewXChaCha20Poly1305Cipher(
	key []byte,
	encodeFunc func([]byte) string,
	decodeFunc func(string) ([]byte, error),
) (*XChaCha20Poly1305Cipher, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &XChaCha20Poly1305Cipher{
		aead:       aead,
		encodeFunc: encodeFunc,
		decodeFunc: decodeFunc,
	}, nil
}

func NewXChaCha20Poly1305CipherBase64(key []byte) (*XChaCha20Poly1305Cipher, error) {
	return NewXChaCha20Poly1305Cipher(
		key,
		base64.RawURLEncoding.EncodeToString,
		base64.RawURLEncoding.DecodeString,
	)
}

// NewXChaCha20Poly1305CipherFromSecret accepts a base64 (std or url, padded or
// not) encoded 32 byte key as found in config files.
func NewXChaCha20Poly1305CipherFromSecret(secret string) (*XChaCha20Poly1305Cipher, error) {
	for _, enc := range []*base64.Encoding{base64.RawURLEncoding, base64.URLEncoding, base64.StdEncoding, base64.RawStdEncoding} {
		if key, err := enc.DecodeString(secret); err == nil {
			return NewXChaCha20Poly1305CipherBase64(key)
		}
	}
	return nil, errors.New("secret is not base64")
}

// EncryptEncode seals plaintext. ad is authenticated but not encrypted; the
// same ad must be given to DecodeDecrypt.
func (c *XChaCha20Poly1305Cipher) EncryptEncode(plaintext []byte, ad []byte) (string, error) {
	// Random nonce every time, with capacity left for the ciphertext
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	ciphertext := c.aead.Seal(nonce, nonce, plaintext, ad)
	return c.encodeFunc(ciphertext), nil
}

func (c *XChaCha20Poly1305Cipher) DecodeDecrypt(encodedCiphertext string, ad []byte) ([]byte, error) {
	data, err := c.decodeFunc(encodedCiphertext)
	if err != nil {
		return nil, err
	}
	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize+c.aead.Overhead() {
		return nil, ErrCiphertextTooShort
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	return c.aead.Open(nil, nonce, ciphertext, ad)
}
