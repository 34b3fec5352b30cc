package keystore

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// ErrKeyUnavailable means secure storage is inaccessible or holds corrupted
// key material. This is fatal for the affected user's session and must not
// be confused with an undecryptable (empty) graph, which is recoverable.
var ErrKeyUnavailable = errors.New("encryption key unavailable")

// SecureStorage is the hardware-backed store for key material. The file
// implementation below is the portable default; platform keychain backends
// satisfy the same interface.
type SecureStorage interface {
	Get(name string) ([]byte, error)
	Put(name string, value []byte) error
	Delete(name string) error
}

// Manager owns the per-user symmetric keys. First request for a user
// generates and persists a fresh 256-bit key; later requests in the same
// process return the cached copy. There is no rotation or versioning.
type Manager struct {
	storage SecureStorage
	logger  *zap.Logger

	mu    sync.Mutex
	cache map[string][]byte
}

func NewManager(storage SecureStorage, logger *zap.Logger) *Manager {
	return &Manager{
		storage: storage,
		logger:  logger,
		cache:   make(map[string][]byte),
	}
}

// GetOrCreateKey returns the user's key, loading persisted material or
// generating it on first use. Any storage failure surfaces as
// ErrKeyUnavailable: the caller cannot safely proceed without a key.
func (m *Manager) GetOrCreateKey(userID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if key, ok := m.cache[userID]; ok {
		return key, nil
	}

	name := keyName(userID)
	key, err := m.storage.Get(name)
	switch {
	case err == nil:
		if len(key) != KeySize {
			m.logger.Error("persisted key material has wrong length",
				zap.String("user_id", userID), zap.Int("len", len(key)))
			return nil, fmt.Errorf("%w: corrupted key material", ErrKeyUnavailable)
		}
	case errors.Is(err, ErrNotFound):
		key = make([]byte, KeySize)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
		}
		if err := m.storage.Put(name, key); err != nil {
			return nil, fmt.Errorf("%w: persist: %v", ErrKeyUnavailable, err)
		}
		m.logger.Info("generated encryption key", zap.String("user_id", userID))
	default:
		return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}

	m.cache[userID] = key
	return key, nil
}

// DeleteKey removes the persisted key and evicts the cached copy. Used by
// the kill switch; after this the user's blob is unrecoverable.
func (m *Manager) DeleteKey(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.cache, userID)
	if err := m.storage.Delete(keyName(userID)); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete key: %w", err)
	}
	return nil
}

func keyName(userID string) string {
	return "pkg_key_" + userID
}
