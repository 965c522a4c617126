package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

// EncryptData encrypts plaintext using AES-GCM with a fresh random nonce.
// Returns: nonce || ciphertext || tag
func EncryptData(plaintext, key, additional []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceSize, NonceSize+len(plaintext)+TagSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	// Seal appends ciphertext||tag after the nonce
	return aead.Seal(nonce, nonce, plaintext, additional), nil
}

// DecryptData verifies and decrypts a token produced by EncryptData.
// Any authentication failure is reported as ErrDecryptionFailed so callers
// cannot tell a wrong key from a modified token.
func DecryptData(token, key, additional []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	// Minimum size: nonce + tag
	if len(token) < NonceSize+TagSize {
		return nil, ErrInvalidCiphertext
	}

	nonce := token[:NonceSize]
	sealed := token[NonceSize:]

	plaintext, err := aead.Open(nil, nonce, sealed, additional)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	// Open returns nil for an empty plaintext
	if plaintext == nil {
		plaintext = []byte{}
	}

	return plaintext, nil
}

// ValidateKeySize checks if the key is the correct size.
func ValidateKeySize(key []byte) error {
	if len(key) != KeySize {
		return fmt.Errorf("%w: expected %d, got %d", ErrInvalidKey, KeySize, len(key))
	}
	return nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if err := ValidateKeySize(key); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	return aead, nil
}
