package subscription

import (
	"context"
	"sync"

	"midnight-indexer/internal/domain"
	"midnight-indexer/internal/eventbus"
	"midnight-indexer/internal/storage"
)

// fakeStore is a minimal but behaviorally complete in-memory storage.Store
// used to exercise the subscription engine's historical-replay-then-live-tail
// handoff without a real backend.
type fakeStore struct {
	mu           sync.Mutex
	blocks       []domain.Block
	sessions     map[string]domain.ViewingKeySession
	nextLedgerId uint64
	bus          *eventbus.Bus
}

var _ storage.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions:     make(map[string]domain.ViewingKeySession),
		nextLedgerId: 1,
		bus:          eventbus.New(),
	}
}

func (f *fakeStore) AppendBlock(ctx context.Context, block domain.Block) error {
	f.mu.Lock()
	var committed []domain.LedgerEvent
	for _, t := range block.Transactions {
		regular, ok := t.(domain.RegularTransaction)
		if !ok {
			continue
		}
		for _, family := range [][]domain.LedgerEvent{regular.ZswapLedgerEvents, regular.DustLedgerEvents} {
			for i := range family {
				family[i].Id = f.nextLedgerId
				f.nextLedgerId++
				committed = append(committed, family[i])
			}
		}
	}
	f.blocks = append(f.blocks, block)
	f.mu.Unlock()

	f.bus.Publish(eventbus.TopicBlockCommitted, eventbus.BlockCommittedEvent{Block: block})
	for _, ev := range committed {
		f.bus.Publish(eventbus.TopicLedgerEventCommitted, eventbus.LedgerEventCommittedEvent{Event: ev})
	}
	f.bus.Publish(eventbus.TopicWalletIndexable, eventbus.WalletIndexableEvent{Height: block.Height})
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
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Transaction
	for _, b := range f.blocks {
		for _, t := range b.Transactions {
			if lookup.Hash != nil && t.TxHash() == *lookup.Hash {
				out = append(out, t)
			}
			if lookup.Identifier != nil {
				if regular, ok := t.(domain.RegularTransaction); ok {
					for _, id := range regular.Identifiers {
						if id == *lookup.Identifier {
							out = append(out, t)
						}
					}
				}
			}
		}
	}
	return out, nil
}

func (f *fakeStore) GetContractAction(ctx context.Context, address domain.Address, offset storage.ContractActionOffset) (domain.ContractAction, error) {
	return nil, nil
}

func (f *fakeStore) allLedgerEvents() []domain.LedgerEvent {
	var out []domain.LedgerEvent
	for _, b := range f.blocks {
		for _, t := range b.Transactions {
			regular, ok := t.(domain.RegularTransaction)
			if !ok {
				continue
			}
			out = append(out, regular.ZswapLedgerEvents...)
			out = append(out, regular.DustLedgerEvents...)
		}
	}
	return out
}

type fakeLedgerEventIterator struct {
	store  *fakeStore
	family domain.LedgerEventFamily
	next   uint64
}

func (f *fakeStore) IterLedgerEvents(ctx context.Context, family domain.LedgerEventFamily, fromId uint64) (storage.LedgerEventIterator, error) {
	return &fakeLedgerEventIterator{store: f, family: family, next: fromId}, nil
}

func (it *fakeLedgerEventIterator) Next(ctx context.Context) (domain.LedgerEvent, bool, error) {
	it.store.mu.Lock()
	defer it.store.mu.Unlock()
	events := it.store.allLedgerEvents()
	var maxId uint64
	var best *domain.LedgerEvent
	for i := range events {
		if events[i].Id > maxId {
			maxId = events[i].Id
		}
		if events[i].Family != it.family || events[i].Id < it.next {
			continue
		}
		if best == nil || events[i].Id < best.Id {
			best = &events[i]
		}
	}
	if best == nil {
		return domain.LedgerEvent{}, false, nil
	}
	it.next = best.Id + 1
	result := *best
	result.MaxId = maxId
	return result, true, nil
}

func (it *fakeLedgerEventIterator) Close() error { return nil }

type fakeContractActionIterator struct {
	store      *fakeStore
	address    domain.Address
	nextHeight uint32
	nextIndex  uint32
}

func (f *fakeStore) IterContractActions(ctx context.Context, address domain.Address, fromOffset domain.BlockPosition) (storage.ContractActionIterator, error) {
	return &fakeContractActionIterator{store: f, address: address, nextHeight: fromOffset.Height, nextIndex: fromOffset.IndexInBlock}, nil
}

func (it *fakeContractActionIterator) Next(ctx context.Context) (domain.ContractAction, bool, error) {
	it.store.mu.Lock()
	defer it.store.mu.Unlock()
	floor := domain.BlockPosition{Height: it.nextHeight, IndexInBlock: it.nextIndex}
	var best domain.ContractAction
	var bestPos domain.BlockPosition
	for _, b := range it.store.blocks {
		for _, t := range b.Transactions {
			regular, ok := t.(domain.RegularTransaction)
			if !ok {
				continue
			}
			for _, action := range regular.ContractActions {
				if string(action.ActionAddress()) != string(it.address) {
					continue
				}
				h, idx := action.ActionPosition()
				pos := domain.BlockPosition{Height: h, IndexInBlock: idx}
				if pos.Less(floor) {
					continue
				}
				if best == nil || pos.Less(bestPos) {
					best, bestPos = action, pos
				}
			}
		}
	}
	if best == nil {
		return nil, false, nil
	}
	it.nextHeight, it.nextIndex = bestPos.Height, bestPos.IndexInBlock+1
	return best, true, nil
}

func (it *fakeContractActionIterator) Close() error { return nil }

type fakeBlockIterator struct {
	store *fakeStore
	next  uint32
}

func (f *fakeStore) IterBlocks(ctx context.Context, fromHeight uint32) (storage.BlockIterator, error) {
	return &fakeBlockIterator{store: f, next: fromHeight}, nil
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

func (it *fakeBlockIterator) Close() error { return nil }

type fakeUnshieldedEventIterator struct {
	store   *fakeStore
	address domain.Address
	next    uint64
}

func (f *fakeStore) IterUnshieldedEvents(ctx context.Context, address domain.Address, fromTxId uint64) (storage.UnshieldedEventIterator, error) {
	return &fakeUnshieldedEventIterator{store: f, address: address, next: fromTxId}, nil
}

func (it *fakeUnshieldedEventIterator) Next(ctx context.Context) (storage.UnshieldedEvent, bool, error) {
	it.store.mu.Lock()
	defer it.store.mu.Unlock()
	var best domain.Transaction
	var bestId uint64
	found := false
	for _, b := range it.store.blocks {
		for _, t := range b.Transactions {
			regular, ok := t.(domain.RegularTransaction)
			if !ok {
				continue
			}
			if !touchesAddress(regular, it.address) {
				continue
			}
			id := domain.PackTransactionId(regular.BlockHeight, regular.IndexInBlock)
			if id < it.next {
				continue
			}
			if !found || id < bestId {
				best, bestId, found = t, id, true
			}
		}
	}
	if !found {
		return storage.UnshieldedEvent{}, false, nil
	}
	it.next = bestId + 1
	return storage.UnshieldedEvent{Transaction: best, HighestTransactionId: bestId}, true, nil
}

func (it *fakeUnshieldedEventIterator) Close() error { return nil }

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
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionId]
	if !ok {
		return domain.NewError(domain.KindUnauthorized, "session %s not found", sessionId)
	}
	s.LastScannedHeight = height
	f.sessions[sessionId] = s
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
