package graphqlapi

import (
	"context"
	"sync"

	"midnight-indexer/internal/domain"
	"midnight-indexer/internal/eventbus"
	"midnight-indexer/internal/storage"
)

// fakeStore is a minimal storage.Store sufficient to exercise Root's query,
// mutation and subscription wiring without a real backend.
type fakeStore struct {
	mu       sync.Mutex
	blocks   []domain.Block
	sessions map[string]domain.ViewingKeySession
	bus      *eventbus.Bus
}

var _ storage.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[string]domain.ViewingKeySession), bus: eventbus.New()}
}

func (f *fakeStore) AppendBlock(ctx context.Context, block domain.Block) error {
	f.mu.Lock()
	f.blocks = append(f.blocks, block)
	f.mu.Unlock()
	f.bus.Publish(eventbus.TopicBlockCommitted, eventbus.BlockCommittedEvent{Block: block})
	return nil
}

func (f *fakeStore) GetBlockByHash(ctx context.Context, hash domain.Hash) (*domain.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.blocks {
		if b.Hash == hash {
			bb := b
			return &bb, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetBlockByHeight(ctx context.Context, height uint32) (*domain.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.blocks {
		if b.Height == height {
			bb := b
			return &bb, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetLatestBlock(ctx context.Context) (*domain.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.blocks) == 0 {
		return nil, nil
	}
	b := f.blocks[len(f.blocks)-1]
	return &b, nil
}

func (f *fakeStore) GetTransaction(ctx context.Context, lookup storage.TransactionLookup) ([]domain.Transaction, error) {
	return nil, nil
}

func (f *fakeStore) GetContractAction(ctx context.Context, address domain.Address, offset storage.ContractActionOffset) (domain.ContractAction, error) {
	return nil, nil
}

type emptyIterator struct{}

func (emptyIterator) Close() error { return nil }

type fakeBlockIterator struct {
	emptyIterator
	store *fakeStore
	next  uint32
}

func (it *fakeBlockIterator) Next(ctx context.Context) (domain.Block, bool, error) {
	it.store.mu.Lock()
	defer it.store.mu.Unlock()
	for _, b := range it.store.blocks {
		if b.Height == it.next {
			it.next++
			return b, true, nil
		}
	}
	return domain.Block{}, false, nil
}

func (f *fakeStore) IterBlocks(ctx context.Context, fromHeight uint32) (storage.BlockIterator, error) {
	return &fakeBlockIterator{store: f, next: fromHeight}, nil
}

type emptyLedgerEventIterator struct{ emptyIterator }

func (emptyLedgerEventIterator) Next(ctx context.Context) (domain.LedgerEvent, bool, error) {
	return domain.LedgerEvent{}, false, nil
}

func (f *fakeStore) IterLedgerEvents(ctx context.Context, family domain.LedgerEventFamily, fromId uint64) (storage.LedgerEventIterator, error) {
	return emptyLedgerEventIterator{}, nil
}

type emptyContractActionIterator struct{ emptyIterator }

func (emptyContractActionIterator) Next(ctx context.Context) (domain.ContractAction, bool, error) {
	return nil, false, nil
}

func (f *fakeStore) IterContractActions(ctx context.Context, address domain.Address, fromOffset domain.BlockPosition) (storage.ContractActionIterator, error) {
	return emptyContractActionIterator{}, nil
}

type emptyUnshieldedEventIterator struct{ emptyIterator }

func (emptyUnshieldedEventIterator) Next(ctx context.Context) (storage.UnshieldedEvent, bool, error) {
	return storage.UnshieldedEvent{}, false, nil
}

func (f *fakeStore) IterUnshieldedEvents(ctx context.Context, address domain.Address, fromTxId uint64) (storage.UnshieldedEventIterator, error) {
	return emptyUnshieldedEventIterator{}, nil
}

func (f *fakeStore) PutWalletSession(ctx context.Context, session domain.ViewingKeySession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[session.SessionId] = session
	return nil
}

func (f *fakeStore) GetWalletSession(ctx context.Context, sessionId string) (*domain.ViewingKeySession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionId]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f *fakeStore) AdvanceWalletSessionHeight(ctx context.Context, sessionId string, height uint32) error {
	return nil
}

func (f *fakeStore) DeleteWalletSession(ctx context.Context, sessionId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, sessionId)
	return nil
}

func (f *fakeStore) ComputeDustGenerationStatus(ctx context.Context, rewardAddresses []string) ([]domain.DustGenerationStatus, error) {
	return nil, nil
}

func (f *fakeStore) Bus() *eventbus.Bus { return f.bus }

func (f *fakeStore) Close() error { return nil }
