// secretbox шифрует секреты провайдера (access token связанного счёта)
// перед сохранением в БД. Формат: nonce(24) || ciphertext || tag(16),
// алгоритм XChaCha20-Poly1305.
package secretbox

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

var (
	// ErrInvalidKey — ключ не является 32-байтовым hex-значением.
	ErrInvalidKey = errors.New("secretbox: key must be 32 bytes hex-encoded")
	// ErrMalformed — шифртекст короче nonce или не прошёл аутентификацию.
	ErrMalformed = errors.New("secretbox: malformed or tampered ciphertext")
)

// Box — потокобезопасная обёртка над AEAD.
type Box struct {
	key []byte
}

// New создаёт Box из hex-ключа (64 символа).
func New(hexKey string) (*Box, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil || len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKey
	}

	return &Box{key: key}, nil
}

// Seal шифрует plaintext; additional связывает шифртекст с владельцем
// (например, id элемента), чтобы его нельзя было переставить в другую строку.
func (b *Box) Seal(plaintext, additional []byte) ([]byte, error) {
	const op = "secretbox.Seal"

	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return aead.Seal(nonce, nonce, plaintext, additional), nil
}

// Open расшифровывает результат Seal.
func (b *Box) Open(ciphertext, additional []byte) ([]byte, error) {
	const op = "secretbox.Open"

	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if len(ciphertext) < aead.NonceSize()+aead.Overhead() {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformed)
	}

	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, additional)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformed)
	}

	return plain, nil
}
