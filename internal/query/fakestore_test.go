package query

import (
	"context"

	"midnight-indexer/internal/domain"
	"midnight-indexer/internal/eventbus"
	"midnight-indexer/internal/storage"
)

type fakeStore struct {
	blocks       map[uint32]domain.Block
	blocksByHash map[domain.Hash]domain.Block
	txByHash     map[domain.Hash]domain.Transaction
	contract     domain.ContractAction
	dustErr      error
	bus          *eventbus.Bus
}

var _ storage.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		blocks:       make(map[uint32]domain.Block),
		blocksByHash: make(map[domain.Hash]domain.Block),
		txByHash:     make(map[domain.Hash]domain.Transaction),
		bus:          eventbus.New(),
	}
}

func (f *fakeStore) AppendBlock(ctx context.Context, block domain.Block) error {
	f.blocks[block.Height] = block
	f.blocksByHash[block.Hash] = block
	return nil
}

func (f *fakeStore) GetBlockByHash(ctx context.Context, hash domain.Hash) (*domain.Block, error) {
	b, ok := f.blocksByHash[hash]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (f *fakeStore) GetBlockByHeight(ctx context.Context, height uint32) (*domain.Block, error) {
	b, ok := f.blocks[height]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (f *fakeStore) GetLatestBlock(ctx context.Context) (*domain.Block, error) {
	var latest *domain.Block
	for h, b := range f.blocks {
		if latest == nil || h > latest.Height {
			bb := b
			latest = &bb
		}
	}
	return latest, nil
}

func (f *fakeStore) GetTransaction(ctx context.Context, lookup storage.TransactionLookup) ([]domain.Transaction, error) {
	if lookup.Hash != nil {
		t, ok := f.txByHash[*lookup.Hash]
		if !ok {
			return nil, nil
		}
		return []domain.Transaction{t}, nil
	}
	return nil, nil
}

func (f *fakeStore) GetContractAction(ctx context.Context, address domain.Address, offset storage.ContractActionOffset) (domain.ContractAction, error) {
	return f.contract, nil
}

func (f *fakeStore) IterLedgerEvents(ctx context.Context, family domain.LedgerEventFamily, fromId uint64) (storage.LedgerEventIterator, error) {
	return nil, nil
}

func (f *fakeStore) IterContractActions(ctx context.Context, address domain.Address, fromOffset domain.BlockPosition) (storage.ContractActionIterator, error) {
	return nil, nil
}

func (f *fakeStore) IterBlocks(ctx context.Context, fromHeight uint32) (storage.BlockIterator, error) {
	return nil, nil
}

func (f *fakeStore) IterUnshieldedEvents(ctx context.Context, address domain.Address, fromTxId uint64) (storage.UnshieldedEventIterator, error) {
	return nil, nil
}

func (f *fakeStore) PutWalletSession(ctx context.Context, session domain.ViewingKeySession) error {
	return nil
}

func (f *fakeStore) GetWalletSession(ctx context.Context, sessionId string) (*domain.ViewingKeySession, error) {
	return nil, nil
}

func (f *fakeStore) AdvanceWalletSessionHeight(ctx context.Context, sessionId string, height uint32) error {
	return nil
}

func (f *fakeStore) DeleteWalletSession(ctx context.Context, sessionId string) error { return nil }

func (f *fakeStore) ComputeDustGenerationStatus(ctx context.Context, rewardAddresses []string) ([]domain.DustGenerationStatus, error) {
	if f.dustErr != nil {
		return nil, f.dustErr
	}
	out := make([]domain.DustGenerationStatus, len(rewardAddresses))
	for i, a := range rewardAddresses {
		out[i] = domain.DustGenerationStatus{CardanoRewardAddress: a}
	}
	return out, nil
}

func (f *fakeStore) Bus() *eventbus.Bus { return f.bus }

func (f *fakeStore) Close() error { return nil }
