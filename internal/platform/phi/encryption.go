package phi

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// PHIEncryptor provides AES-256-GCM field-level encryption and decryption for
// the patient and document columns HealthPrep's repositories store encrypted
// at rest (patient.RepoPG, document.Ingester — see phi_fields.go for the
// full column inventory).
type PHIEncryptor struct {
	aead cipher.AEAD
}

// NewPHIEncryptor creates a new PHIEncryptor with the given 32-byte AES-256 key.
func NewPHIEncryptor(key []byte) (*PHIEncryptor, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("phi encryptor: key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("phi encryptor: create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("phi encryptor: create GCM: %w", err)
	}

	return &PHIEncryptor{aead: aead}, nil
}

// Encrypt encrypts plaintext for the given tenant and returns a base64-encoded
// ciphertext with the nonce prepended. tenantID is bound into the ciphertext
// as additional authenticated data, so a row copied or restored under the
// wrong tenant fails to decrypt rather than silently producing garbage text.
func (e *PHIEncryptor) Encrypt(tenantID uuid.UUID, plaintext string) (string, error) {
	encrypted, err := e.EncryptBytes(tenantID, []byte(plaintext))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(encrypted), nil
}

// Decrypt decodes the base64 ciphertext, extracts the prepended nonce, and
// decrypts it, verifying it was sealed for tenantID.
func (e *PHIEncryptor) Decrypt(tenantID uuid.UUID, ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("phi decrypt: base64 decode: %w", err)
	}

	plaintext, err := e.DecryptBytes(tenantID, data)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// EncryptBytes encrypts data under tenantID and returns the nonce prepended
// to the ciphertext.
func (e *PHIEncryptor) EncryptBytes(tenantID uuid.UUID, data []byte) ([]byte, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("phi encrypt: generate nonce: %w", err)
	}

	aad := tenantID[:]
	// Seal appends the ciphertext to nonce, so the result is nonce + ciphertext.
	return e.aead.Seal(nonce, nonce, data, aad), nil
}

// DecryptBytes extracts the nonce from the front of data and decrypts the
// remainder, verifying it was sealed for tenantID.
func (e *PHIEncryptor) DecryptBytes(tenantID uuid.UUID, data []byte) ([]byte, error) {
	nonceSize := e.aead.NonceSize()
	if len(data) < nonceSize {
		return nil, fmt.Errorf("phi decrypt: ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	aad := tenantID[:]
	plaintext, err := e.aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("phi decrypt: wrong tenant or corrupt ciphertext: %w", err)
	}
	return plaintext, nil
}
