package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
	"golang.org/x/text/unicode/norm"
)

const (
	// Key sizes
	KeySize   = 32 // AES-256
	NonceSize = 12 // GCM standard
	TagSize   = 16 // GCM tag

	// PBKDF2 parameters
	DefaultIterations = 100000
	MinIterations     = 10000
	MaxIterations     = 10000000
	DefaultSaltSize   = 32
	MinSaltSize       = 16
	MaxSaltSize       = 255

	// Scrypt parameters
	DefaultScryptN = 32768 // CPU/memory cost parameter
	MinScryptN     = 16384
	MaxScryptN     = 1 << 20
	ScryptR        = 8 // block size parameter
	ScryptP        = 1 // parallelization parameter
)

// Errors
var (
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")
	ErrInvalidKey        = errors.New("invalid key size")
	ErrDecryptionFailed  = errors.New("decryption failed")
	ErrInvalidParams     = errors.New("invalid key derivation parameters")
)

// KDF identifies a key derivation function. The numeric value is written
// to store file headers and must never be reassigned.
type KDF uint8

const (
	KDFPBKDF2 KDF = 1
	KDFScrypt KDF = 2
)

func (k KDF) String() string {
	switch k {
	case KDFPBKDF2:
		return "pbkdf2"
	case KDFScrypt:
		return "scrypt"
	default:
		return fmt.Sprintf("kdf(%d)", uint8(k))
	}
}

// ParseKDF maps a config name to a KDF.
func ParseKDF(name string) (KDF, error) {
	switch name {
	case "pbkdf2":
		return KDFPBKDF2, nil
	case "scrypt":
		return KDFScrypt, nil
	default:
		return 0, fmt.Errorf("%w: unknown kdf %q", ErrInvalidParams, name)
	}
}

// KDFParams contains key derivation parameters. For scrypt, Iterations is
// the cost parameter N.
type KDFParams struct {
	Algorithm  KDF
	Iterations int
	Salt       []byte
}

// Validate checks the parameters before any expensive work is done.
func (p KDFParams) Validate() error {
	if len(p.Salt) < MinSaltSize || len(p.Salt) > MaxSaltSize {
		return fmt.Errorf("%w: salt length %d", ErrInvalidParams, len(p.Salt))
	}

	switch p.Algorithm {
	case KDFPBKDF2:
		if p.Iterations < MinIterations || p.Iterations > MaxIterations {
			return fmt.Errorf("%w: %d iterations outside %d-%d", ErrInvalidParams, p.Iterations, MinIterations, MaxIterations)
		}
	case KDFScrypt:
		if !ValidScryptN(p.Iterations) {
			return fmt.Errorf("%w: scrypt N must be a power of two in %d-%d, got %d", ErrInvalidParams, MinScryptN, MaxScryptN, p.Iterations)
		}
	default:
		return fmt.Errorf("%w: unsupported kdf %s", ErrInvalidParams, p.Algorithm)
	}

	return nil
}

// ValidScryptN reports whether n is an accepted scrypt cost.
func ValidScryptN(n int) bool {
	return n >= MinScryptN && n <= MaxScryptN && n&(n-1) == 0
}

// DefaultCost returns the iteration count (or scrypt N) used for k when
// none is configured.
func DefaultCost(k KDF) int {
	if k == KDFScrypt {
		return DefaultScryptN
	}
	return DefaultIterations
}

// CryptoProvider handles all cryptographic operations.
type CryptoProvider struct{}

// NewProvider creates a crypto provider.
func NewProvider() Provider {
	return &CryptoProvider{}
}

// NormalizePassphrase applies Unicode NFKC so visually identical
// passphrases entered through different input methods derive the same key.
func NormalizePassphrase(s string) string {
	return norm.NFKC.String(s)
}

// DeriveKey derives a store key from a passphrase. The result depends
// only on the passphrase and params.
func (p *CryptoProvider) DeriveKey(passphrase string, params KDFParams) ([]byte, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	secret := []byte(NormalizePassphrase(passphrase))

	switch params.Algorithm {
	case KDFScrypt:
		key, err := scrypt.Key(secret, params.Salt, params.Iterations, ScryptR, ScryptP, KeySize)
		if err != nil {
			return nil, fmt.Errorf("scrypt key derivation: %w", err)
		}
		return key, nil
	default:
		return pbkdf2.Key(secret, params.Salt, params.Iterations, KeySize, sha256.New), nil
	}
}

// EncryptData encrypts plaintext using AES-GCM.
func (p *CryptoProvider) EncryptData(plaintext, key, additional []byte) ([]byte, error) {
	return EncryptData(plaintext, key, additional)
}

// DecryptData decrypts ciphertext using AES-GCM.
func (p *CryptoProvider) DecryptData(token, key, additional []byte) ([]byte, error) {
	return DecryptData(token, key, additional)
}

// NewSalt returns size random bytes.
func NewSalt(size int) ([]byte, error) {
	if size < MinSaltSize || size > MaxSaltSize {
		return nil, fmt.Errorf("%w: salt length %d", ErrInvalidParams, size)
	}

	salt := make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// Wipe overwrites b with zeros.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
