// Package vault implements the encrypted connection store: every operation
// derives the key from the passphrase, decrypts the file, applies at most
// one mutation, and persists the result atomically.
package vault

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/TheMichaelB/lssh/internal/codec"
	"github.com/TheMichaelB/lssh/internal/config"
	"github.com/TheMichaelB/lssh/internal/crypto"
	"github.com/TheMichaelB/lssh/internal/events"
	"github.com/TheMichaelB/lssh/internal/models"
	"github.com/TheMichaelB/lssh/internal/storage"
)

// Store is the encrypted connection store.
type Store struct {
	path     string
	mode     os.FileMode
	kdf      config.CryptoConfig
	blobs    storage.BlobStore
	provider crypto.Provider
	logger   *events.Logger
}

// New creates a store for the file described by cfg. The kdf settings only
// apply to files this store creates.
func New(
	cfg *config.StoreConfig,
	kdf config.CryptoConfig,
	blobs storage.BlobStore,
	provider crypto.Provider,
	logger *events.Logger,
) *Store {
	mode := cfg.FileMode
	if mode == 0 {
		mode = 0600
	}

	return &Store{
		path:     cfg.Path,
		mode:     mode,
		kdf:      kdf,
		blobs:    blobs,
		provider: provider,
		logger:   logger.WithField("component", "vault"),
	}
}

// Path returns the store file location.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether the store file is present.
func (s *Store) Exists() (bool, error) {
	exists, err := s.blobs.Exists(s.path)
	if err != nil {
		return false, &models.PersistenceError{Op: "stat", Path: s.path, Err: err}
	}
	return exists, nil
}

// Initialize creates an empty store. The confirmation must match and an
// existing store is never overwritten.
func (s *Store) Initialize(passphrase, confirm string) error {
	if passphrase != confirm {
		return models.ErrMismatch
	}
	if passphrase == "" {
		return models.ErrEmptyPassphrase
	}

	exists, err := s.Exists()
	if err != nil {
		return err
	}
	if exists {
		return models.ErrAlreadyExists
	}

	h, err := s.newHeader()
	if err != nil {
		return err
	}

	key, err := s.deriveKey(passphrase, h)
	if err != nil {
		return err
	}
	defer crypto.Wipe(key)

	if err := s.persist(key, h, []models.ConnectionRecord{}); err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"path": s.path,
		"kdf":  h.KDF.String(),
	}).Info("Connection store initialized")

	return nil
}

// Load decrypts and returns all records in stored order.
func (s *Store) Load(passphrase string) ([]models.ConnectionRecord, error) {
	state, err := s.open(passphrase)
	if err != nil {
		return nil, err
	}
	defer state.close()

	return state.records, nil
}

// List returns the stored records without modifying the file.
func (s *Store) List(passphrase string) ([]models.ConnectionRecord, error) {
	return s.Load(passphrase)
}

// Add appends a record. A missing store file is treated as an empty store
// and created.
func (s *Store) Add(passphrase string, record models.ConnectionRecord) error {
	if err := record.Validate(); err != nil {
		return &models.InvalidRecordError{Err: err}
	}

	state, err := s.openOrCreate(passphrase)
	if err != nil {
		return err
	}
	defer state.close()

	records := append(state.records, record)
	if err := s.persist(state.key, state.header, records); err != nil {
		return err
	}

	s.logger.WithFields(recordFields(record)).WithField("records", len(records)).Info("Connection added")
	return nil
}

// Delete removes the first record matched by selector and returns it.
func (s *Store) Delete(passphrase string, selector models.Selector) (models.ConnectionRecord, error) {
	state, err := s.open(passphrase)
	if err != nil {
		return models.ConnectionRecord{}, err
	}
	defer state.close()

	if len(state.records) == 0 {
		return models.ConnectionRecord{}, models.ErrEmptyStore
	}

	idx := models.FindRecord(state.records, selector)
	if idx < 0 {
		return models.ConnectionRecord{}, &models.NotSelectableError{Selector: selector}
	}

	removed := state.records[idx]
	records := make([]models.ConnectionRecord, 0, len(state.records)-1)
	records = append(records, state.records[:idx]...)
	records = append(records, state.records[idx+1:]...)

	if err := s.persist(state.key, state.header, records); err != nil {
		return models.ConnectionRecord{}, err
	}

	s.logger.WithFields(recordFields(removed)).WithField("records", len(records)).Info("Connection deleted")
	return removed, nil
}

// Import appends the records of a legacy plaintext file (one JSON object
// per line). Undecodable lines and invalid records are skipped and
// reported. Like Add, a missing store is created.
func (s *Store) Import(passphrase string, r io.Reader) (int, []codec.LineError, error) {
	decoded, skipped, err := codec.DecodeLines(r)
	if err != nil {
		return 0, nil, err
	}

	var valid []models.ConnectionRecord
	for _, rec := range decoded {
		if err := rec.Validate(); err != nil {
			skipped = append(skipped, codec.LineError{
				Err: fmt.Errorf("%s: %w", models.ChoiceFor(rec), &models.InvalidRecordError{Err: err}),
			})
			continue
		}
		valid = append(valid, rec)
	}

	state, err := s.openOrCreate(passphrase)
	if err != nil {
		return 0, skipped, err
	}
	defer state.close()

	if len(valid) == 0 && state.existed {
		return 0, skipped, nil
	}

	records := append(state.records, valid...)
	if err := s.persist(state.key, state.header, records); err != nil {
		return 0, skipped, err
	}

	s.logger.WithFields(map[string]interface{}{
		"imported": len(valid),
		"skipped":  len(skipped),
		"records":  len(records),
	}).Info("Legacy connections imported")

	return len(valid), skipped, nil
}

// openState is a decrypted store held for one load-mutate-persist cycle.
type openState struct {
	key     []byte
	header  header
	records []models.ConnectionRecord
	existed bool
}

func (o *openState) close() {
	crypto.Wipe(o.key)
}

// open reads and decrypts the store file.
func (s *Store) open(passphrase string) (*openState, error) {
	data, err := s.blobs.Read(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, models.ErrNotFound
		}
		return nil, &models.PersistenceError{Op: "read", Path: s.path, Err: err}
	}

	h, rawHeader, token, err := parseHeader(data)
	if err != nil {
		s.logger.WithError(err).Debug("Store header rejected")
		return nil, models.ErrAuthentication
	}

	key, err := s.deriveKey(passphrase, h)
	if err != nil {
		s.logger.WithError(err).Debug("Store key derivation rejected")
		return nil, models.ErrAuthentication
	}

	plaintext, err := s.provider.DecryptData(token, key, rawHeader)
	if err != nil {
		crypto.Wipe(key)
		s.logger.WithError(err).Debug("Store decryption failed")
		return nil, models.ErrAuthentication
	}
	defer crypto.Wipe(plaintext)

	records, err := codec.Decode(plaintext)
	if err != nil {
		crypto.Wipe(key)
		return nil, fmt.Errorf("%w: %w", models.ErrAuthentication, err)
	}

	s.logger.WithField("records", len(records)).Debug("Store decrypted")

	return &openState{key: key, header: h, records: records, existed: true}, nil
}

// openOrCreate opens the store, or starts an empty one with fresh KDF
// parameters when the file does not exist.
func (s *Store) openOrCreate(passphrase string) (*openState, error) {
	state, err := s.open(passphrase)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	if passphrase == "" {
		return nil, models.ErrEmptyPassphrase
	}

	s.logger.WithField("path", s.path).Debug("Store missing, starting empty")

	h, err := s.newHeader()
	if err != nil {
		return nil, err
	}

	key, err := s.deriveKey(passphrase, h)
	if err != nil {
		return nil, err
	}

	return &openState{key: key, header: h, records: []models.ConnectionRecord{}}, nil
}

// persist encodes, encrypts and atomically writes records.
func (s *Store) persist(key []byte, h header, records []models.ConnectionRecord) error {
	plaintext, err := codec.Encode(records)
	if err != nil {
		return err
	}
	defer crypto.Wipe(plaintext)

	rawHeader, err := h.marshal()
	if err != nil {
		return err
	}

	token, err := s.provider.EncryptData(plaintext, key, rawHeader)
	if err != nil {
		return fmt.Errorf("encrypt store: %w", err)
	}

	data := make([]byte, 0, len(rawHeader)+len(token))
	data = append(data, rawHeader...)
	data = append(data, token...)

	if err := s.blobs.Write(s.path, data, s.mode); err != nil {
		return &models.PersistenceError{Op: "write", Path: s.path, Err: err}
	}

	s.logger.WithFields(map[string]interface{}{
		"records": len(records),
		"size":    len(data),
	}).Debug("Store persisted")

	return nil
}

// newHeader builds KDF parameters for a new store file.
func (s *Store) newHeader() (header, error) {
	algorithm, err := crypto.ParseKDF(strings.ToLower(s.kdf.KDF))
	if err != nil {
		return header{}, err
	}

	iterations := s.kdf.Cost()
	if iterations <= 0 || int64(iterations) > math.MaxUint32 {
		return header{}, fmt.Errorf("%w: cost %d", crypto.ErrInvalidParams, iterations)
	}

	var salt []byte
	if s.kdf.Salt != "" {
		salt, err = base64.StdEncoding.DecodeString(s.kdf.Salt)
		if err != nil {
			return header{}, fmt.Errorf("decode crypto.salt: %w", err)
		}
	} else {
		size := s.kdf.SaltSize
		if size == 0 {
			size = crypto.DefaultSaltSize
		}
		salt, err = crypto.NewSalt(size)
		if err != nil {
			return header{}, err
		}
	}

	return header{KDF: algorithm, Iterations: uint32(iterations), Salt: salt}, nil
}

func (s *Store) deriveKey(passphrase string, h header) ([]byte, error) {
	key, err := s.provider.DeriveKey(passphrase, h.params())
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

func recordFields(r models.ConnectionRecord) map[string]interface{} {
	return map[string]interface{}{
		"label":    r.Label,
		"username": r.Username,
		"host":     r.Host,
	}
}
