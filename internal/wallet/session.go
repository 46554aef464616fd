// Package wallet implements the wallet indexer: per-session viewing-key
// custody, a bounded scan worker pool, and the shielded-output scanning
// step that turns a committed block into ShieldedMatch events for an
// active session.
package wallet

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"

	"midnight-indexer/internal/domain"
	"midnight-indexer/internal/storage"
)

// SessionManager owns the server-side association between an opened
// ViewingKeySession and its plaintext viewing key. The plaintext key never
// touches storage: Storage only ever sees the chacha20poly1305-wrapped
// ciphertext, matching domain.ViewingKeySession's WrappedViewingKey
// contract.
type SessionManager struct {
	store storage.Store
	aead  cipherAEAD
	mu    sync.RWMutex
	plain map[string][]byte // sessionId -> plaintext viewing key, in memory only
}

// cipherAEAD is the subset of cipher.AEAD SessionManager needs, narrowed so
// tests can substitute a fake.
type cipherAEAD interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	NonceSize() int
}

// NewSessionManager builds a SessionManager that wraps viewing keys at rest
// with masterKey (32 bytes, chacha20poly1305's required key size).
func NewSessionManager(store storage.Store, masterKey []byte) (*SessionManager, error) {
	aead, err := chacha20poly1305.New(masterKey)
	if err != nil {
		return nil, fmt.Errorf("init viewing key cipher: %w", err)
	}
	return &SessionManager{store: store, aead: aead, plain: make(map[string][]byte)}, nil
}

// Open creates a new session for network, wrapping viewingKey for storage
// and retaining the plaintext in memory for the Scanner. sessionId is
// generated by the caller (typically a GraphQL resolver minting a
// google/uuid) so it can be returned to the client before this call
// returns.
func (m *SessionManager) Open(ctx context.Context, sessionId, network string, viewingKey []byte) error {
	nonce := make([]byte, m.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate session nonce: %w", err)
	}
	wrapped := m.aead.Seal(nonce, nonce, viewingKey, []byte(sessionId))

	if err := m.store.PutWalletSession(ctx, domain.ViewingKeySession{
		SessionId:         sessionId,
		Network:           network,
		WrappedViewingKey: wrapped,
		LastScannedHeight: 0,
	}); err != nil {
		return err
	}

	m.mu.Lock()
	m.plain[sessionId] = append([]byte(nil), viewingKey...)
	m.mu.Unlock()
	return nil
}

// Close discards the in-memory viewing key and removes the session from
// storage. Any in-flight scan unit for this session is expected to be
// discarded by its caller once Active reports false.
func (m *SessionManager) Close(ctx context.Context, sessionId string) error {
	m.mu.Lock()
	if key, ok := m.plain[sessionId]; ok {
		for i := range key {
			key[i] = 0
		}
		delete(m.plain, sessionId)
	}
	m.mu.Unlock()
	return m.store.DeleteWalletSession(ctx, sessionId)
}

// Active reports whether sessionId currently holds a plaintext viewing key.
func (m *SessionManager) Active(sessionId string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.plain[sessionId]
	return ok
}

// ActiveSessionIds lists every session currently holding a plaintext
// viewing key, the callback Indexer.Run polls each tick to decide which
// sessions get a scan unit.
func (m *SessionManager) ActiveSessionIds() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.plain))
	for id := range m.plain {
		ids = append(ids, id)
	}
	return ids
}

// ViewingKey returns the plaintext viewing key for an open session.
func (m *SessionManager) ViewingKey(sessionId string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key, ok := m.plain[sessionId]
	return key, ok
}

// Unwrap decrypts a WrappedViewingKey read back from storage (used on
// process restart to repopulate the in-memory map from a persisted
// session, e.g. in the standalone binary's crash-recovery path).
func (m *SessionManager) Unwrap(sessionId string, wrapped []byte) ([]byte, error) {
	if len(wrapped) < m.aead.NonceSize() {
		return nil, errors.New("wrapped viewing key shorter than nonce")
	}
	nonce := wrapped[:m.aead.NonceSize()]
	return m.aead.Open(nil, nonce, wrapped[m.aead.NonceSize():], []byte(sessionId))
}
