package crypto

// Provider defines the interface for cryptographic operations.
type Provider interface {
	// DeriveKey stretches a passphrase into a KeySize-byte key.
	DeriveKey(passphrase string, params KDFParams) ([]byte, error)

	// EncryptData encrypts plaintext using AES-GCM. additional is
	// authenticated but not encrypted and may be nil.
	EncryptData(plaintext, key, additional []byte) ([]byte, error)

	// DecryptData decrypts a token produced by EncryptData.
	DecryptData(token, key, additional []byte) ([]byte, error)
}
