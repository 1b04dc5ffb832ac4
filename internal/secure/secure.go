// Package secure encrypts settings and session material at rest with a
// user-supplied passphrase.
package secure

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"
)

// ErrWrongPassphrase is returned when decryption fails authentication. A bad
// passphrase must fail loudly, never silently hand back wrong bytes.
var ErrWrongPassphrase = errors.New("wrong passphrase or corrupted data")

const (
	saltLen = 16
	keyLen  = 32

	// scrypt cost parameters
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// Encrypt seals plaintext with a key derived from the passphrase. Output is
// salt || nonce || ciphertext.
func Encrypt(plaintext []byte, passphrase string) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}

	gcm, err := aead(passphrase, salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, saltLen+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, nil), nil
}

// Decrypt reverses Encrypt. Authentication failure maps to
// ErrWrongPassphrase.
func Decrypt(blob []byte, passphrase string) ([]byte, error) {
	if len(blob) < saltLen {
		return nil, ErrWrongPassphrase
	}
	salt, rest := blob[:saltLen], blob[saltLen:]

	gcm, err := aead(passphrase, salt)
	if err != nil {
		return nil, err
	}

	if len(rest) < gcm.NonceSize() {
		return nil, ErrWrongPassphrase
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return plaintext, nil
}

// EncryptJSON marshals v and seals it
func EncryptJSON(v any, passphrase string) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode: %w", err)
	}
	return Encrypt(data, passphrase)
}

// DecryptJSON opens a blob sealed by EncryptJSON into v
func DecryptJSON(blob []byte, passphrase string, v any) error {
	data, err := Decrypt(blob, passphrase)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func aead(passphrase string, salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, keyLen)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
