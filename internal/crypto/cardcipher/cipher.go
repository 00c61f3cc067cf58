// Package cardcipher encrypts card numbers at rest and produces their
// display-safe masked form. Ciphertexts are AES-256-GCM with a random nonce,
// so the same number encrypts differently each time; Fingerprint gives the
// deterministic value used for uniqueness checks.
package cardcipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/imalykh/bankcards/internal/errs"
)

// NumberLen is the length of a generated card number.
const NumberLen = 16

// Cipher encrypts, decrypts and masks card numbers with an injected key.
type Cipher struct {
	aead    cipher.AEAD
	hmacKey []byte
}

// New builds a Cipher from 32 bytes of key material.
func New(key []byte) (*Cipher, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("card cipher key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead, hmacKey: append([]byte(nil), key...)}, nil
}

// Encrypt returns the base64 ciphertext (nonce prepended) of a card number.
func (c *Cipher) Encrypt(plain string) (string, error) {
	if !isDigits(plain) {
		return "", fmt.Errorf("card number must be %d digits: %w", NumberLen, errs.ErrCrypto)
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", errs.ErrCrypto)
	}
	out := c.aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt is the inverse of Encrypt. Tampered or truncated input fails with
// errs.ErrCrypto.
func (c *Cipher) Decrypt(encrypted string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", errs.ErrCrypto)
	}
	ns := c.aead.NonceSize()
	if len(raw) < ns {
		return "", fmt.Errorf("ciphertext too short: %w", errs.ErrCrypto)
	}
	plain, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("open ciphertext: %w", errs.ErrCrypto)
	}
	return string(plain), nil
}

// Fingerprint returns a deterministic HMAC-SHA256 hex digest of a card number.
// Stored next to the ciphertext under a unique index to reject duplicate
// numbers regardless of the random nonce.
func (c *Cipher) Fingerprint(plain string) string {
	h := hmac.New(sha256.New, c.hmacKey)
	h.Write([]byte(plain))
	return hex.EncodeToString(h.Sum(nil))
}

// Mask renders a card number as "**** **** **** " + last four digits.
// Inputs shorter than four characters collapse to "****".
func Mask(plain string) string {
	if len(plain) < 4 {
		return "****"
	}
	return "**** **** **** " + plain[len(plain)-4:]
}

// GenerateNumber draws a fresh 16-digit card number from crypto/rand.
// Bytes of 250 and above are rejected so every digit is equally likely.
func GenerateNumber() (string, error) {
	digits := make([]byte, 0, NumberLen)
	raw := make([]byte, NumberLen)
	for len(digits) < NumberLen {
		if _, err := rand.Read(raw); err != nil {
			return "", err
		}
		for _, b := range raw {
			if b >= 250 {
				continue
			}
			digits = append(digits, b%10+'0')
			if len(digits) == NumberLen {
				break
			}
		}
	}
	return string(digits), nil
}

func isDigits(s string) bool {
	if len(s) != NumberLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
