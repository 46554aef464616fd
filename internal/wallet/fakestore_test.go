package wallet

import (
	"context"
	"sync"

	"midnight-indexer/internal/domain"
	"midnight-indexer/internal/eventbus"
	"midnight-indexer/internal/storage"
)

// fakeSessionStore is a minimal in-memory storage.Store used by wallet
// package unit tests; it only needs enough behavior to exercise session
// bookkeeping and single-block scans, not the full persistence contract
// (that is covered by internal/storage/sqlite's own tests).
type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]domain.ViewingKeySession
	blocks   map[uint32]domain.Block
	bus      *eventbus.Bus
}

var _ storage.Store = (*fakeSessionStore)(nil)

func (m *fakeSessionStore) AppendBlock(ctx context.Context, block domain.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blocks == nil {
		m.blocks = make(map[uint32]domain.Block)
	}
	m.blocks[block.Height] = block
	return nil
}

func (m *fakeSessionStore) GetBlockByHash(ctx context.Context, hash domain.Hash) (*domain.Block, error) {
	return nil, nil
}

func (m *fakeSessionStore) GetBlockByHeight(ctx context.Context, height uint32) (*domain.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blocks[height]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *fakeSessionStore) GetLatestBlock(ctx context.Context) (*domain.Block, error) { return nil, nil }

func (m *fakeSessionStore) GetTransaction(ctx context.Context, lookup storage.TransactionLookup) ([]domain.Transaction, error) {
	return nil, nil
}

func (m *fakeSessionStore) GetContractAction(ctx context.Context, address domain.Address, offset storage.ContractActionOffset) (domain.ContractAction, error) {
	return nil, nil
}

func (m *fakeSessionStore) IterLedgerEvents(ctx context.Context, family domain.LedgerEventFamily, fromId uint64) (storage.LedgerEventIterator, error) {
	return nil, nil
}

func (m *fakeSessionStore) IterContractActions(ctx context.Context, address domain.Address, fromOffset domain.BlockPosition) (storage.ContractActionIterator, error) {
	return nil, nil
}

func (m *fakeSessionStore) IterBlocks(ctx context.Context, fromHeight uint32) (storage.BlockIterator, error) {
	return nil, nil
}

func (m *fakeSessionStore) IterUnshieldedEvents(ctx context.Context, address domain.Address, fromTxId uint64) (storage.UnshieldedEventIterator, error) {
	return nil, nil
}

func (m *fakeSessionStore) PutWalletSession(ctx context.Context, session domain.ViewingKeySession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions == nil {
		m.sessions = make(map[string]domain.ViewingKeySession)
	}
	m.sessions[session.SessionId] = session
	return nil
}

func (m *fakeSessionStore) GetWalletSession(ctx context.Context, sessionId string) (*domain.ViewingKeySession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionId]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *fakeSessionStore) AdvanceWalletSessionHeight(ctx context.Context, sessionId string, height uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionId]
	if !ok {
		return domain.NewError(domain.KindUnauthorized, "session %s not found", sessionId)
	}
	s.LastScannedHeight = height
	m.sessions[sessionId] = s
	return nil
}

func (m *fakeSessionStore) DeleteWalletSession(ctx context.Context, sessionId string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionId)
	return nil
}

func (m *fakeSessionStore) ComputeDustGenerationStatus(ctx context.Context, rewardAddresses []string) ([]domain.DustGenerationStatus, error) {
	return nil, nil
}

func (m *fakeSessionStore) Bus() *eventbus.Bus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bus == nil {
		m.bus = eventbus.New()
	}
	return m.bus
}

func (m *fakeSessionStore) Close() error { return nil }
