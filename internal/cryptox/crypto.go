// Package cryptox implements the authenticated encryption and random-value
// primitives the credential vault and token service are built on.
//
// Secrets are encrypted with AES-256-GCM. The 32-byte AES key is derived from
// the configured secret by a SHA-256 digest, a fresh random 16-byte IV is
// generated per call and never reused, and the GCM authentication tag is
// appended to the ciphertext. Ciphertext and IV travel as hex strings so they
// can be stored in plain text columns.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/relativit/relativit/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// ivLength is the GCM nonce size in bytes. 16 rather than the GCM default of
// 12 to stay wire-compatible with previously stored credentials.
const ivLength = 16

const bcryptCost = 10

// deriveKey turns an arbitrary-length secret into a 32-byte AES-256 key.
func deriveKey(secretKey string) []byte {
	sum := sha256.Sum256([]byte(secretKey))
	return sum[:]
}

// Encrypt encrypts plaintext with AES-256-GCM under a key derived from
// secretKey. It returns the hex-encoded ciphertext (authentication tag
// appended) and the hex-encoded IV used for this call.
func Encrypt(plaintext string, secretKey string) (ciphertext string, iv string, err error) {
	ivBytes := make([]byte, ivLength)
	if _, err := rand.Read(ivBytes); err != nil {
		return "", "", fmt.Errorf("generating iv: %w", err)
	}

	block, err := aes.NewCipher(deriveKey(secretKey))
	if err != nil {
		return "", "", err
	}
	aesgcm, err := cipher.NewGCMWithNonceSize(block, ivLength)
	if err != nil {
		return "", "", err
	}

	sealed := aesgcm.Seal(nil, ivBytes, []byte(plaintext), nil)

	return hex.EncodeToString(sealed), hex.EncodeToString(ivBytes), nil
}

// Decrypt reverses Encrypt. It returns common.ErrDecryptionFailed when the
// inputs are malformed or the authentication tag does not verify (tampered
// ciphertext or wrong key). It never returns unauthenticated plaintext.
func Decrypt(ciphertext string, iv string, secretKey string) (string, error) {
	sealed, err := hex.DecodeString(ciphertext)
	if err != nil {
		return "", common.ErrDecryptionFailed
	}
	ivBytes, err := hex.DecodeString(iv)
	if err != nil || len(ivBytes) != ivLength {
		return "", common.ErrDecryptionFailed
	}

	block, err := aes.NewCipher(deriveKey(secretKey))
	if err != nil {
		return "", err
	}
	aesgcm, err := cipher.NewGCMWithNonceSize(block, ivLength)
	if err != nil {
		return "", err
	}

	plaintext, err := aesgcm.Open(nil, ivBytes, sealed, nil)
	if err != nil {
		return "", common.ErrDecryptionFailed
	}

	return string(plaintext), nil
}

// MakeRandHexString generates a cryptographically random hexadecimal string.
// The size parameter is the number of random bytes, so the resulting string
// is twice as long. Used for opaque refresh token values.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashPassword hashes a password with bcrypt. A new salt is generated on
// every call, so hashing the same password twice yields different hashes.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the stored bcrypt hash.
// bcrypt performs the comparison in constant time relative to the hash.
func VerifyPassword(password string, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// WipeByteArray overwrites the contents of the provided byte slice with
// zeros. Useful for removing decrypted key material from memory after use.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
