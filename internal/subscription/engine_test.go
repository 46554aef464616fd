package subscription

import (
	"context"
	"testing"
	"time"

	"midnight-indexer/internal/domain"
	"midnight-indexer/internal/storage"
	"midnight-indexer/internal/wallet"
)

func mustRecv(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("channel closed before expected event")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func expectClosed(t *testing.T, ch <-chan Event) {
	t.Helper()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel to close")
	}
}

func TestBlocksStreamHistoricalThenLive(t *testing.T) {
	store := newFakeStore()
	block0 := domain.Block{Hash: domain.Hash{1}, Height: 0, Timestamp: time.Now()}
	if err := store.AppendBlock(context.Background(), block0); err != nil {
		t.Fatalf("append: %v", err)
	}

	engine := NewEngine(store, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out, stop := engine.StartBlocks(ctx, domain.BlockOffset{})
	defer stop()

	ev := mustRecv(t, out)
	blkEv, ok := ev.(BlockEvent)
	if !ok || blkEv.Block.Height != 0 {
		t.Fatalf("expected historical block 0, got %#v", ev)
	}

	block1 := domain.Block{Hash: domain.Hash{2}, Height: 1, ParentHash: block0.Hash, Timestamp: time.Now()}
	if err := store.AppendBlock(context.Background(), block1); err != nil {
		t.Fatalf("append: %v", err)
	}

	ev = mustRecv(t, out)
	blkEv, ok = ev.(BlockEvent)
	if !ok || blkEv.Block.Height != 1 {
		t.Fatalf("expected live block 1, got %#v", ev)
	}
}

func TestBlocksStreamRejectsBothHashAndHeight(t *testing.T) {
	store := newFakeStore()
	engine := NewEngine(store, nil, nil)
	height := uint32(1)
	hash := domain.Hash{9}
	out, stop := engine.StartBlocks(context.Background(), domain.BlockOffset{Hash: &hash, Height: &height})
	defer stop()

	ev := mustRecv(t, out)
	errEv, ok := ev.(ErrorEvent)
	if !ok || !domain.IsKind(errEv.Err, domain.KindInputMalformed) {
		t.Fatalf("expected InputMalformed error event, got %#v", ev)
	}
	if _, ok := mustRecv(t, out).(CompletionEvent); !ok {
		t.Fatal("expected completion event after error")
	}
	expectClosed(t, out)
}

func TestBlocksStreamUnknownHashEmitsErrorAndCompletes(t *testing.T) {
	store := newFakeStore()
	engine := NewEngine(store, nil, nil)
	hash := domain.Hash{0xFF}
	out, stop := engine.StartBlocks(context.Background(), domain.BlockOffset{Hash: &hash})
	defer stop()

	ev := mustRecv(t, out)
	errEv, ok := ev.(ErrorEvent)
	if !ok || !domain.IsKind(errEv.Err, domain.KindNotFound) {
		t.Fatalf("expected NotFound error event, got %#v", ev)
	}
	if _, ok := mustRecv(t, out).(CompletionEvent); !ok {
		t.Fatal("expected completion event after error")
	}
}

func TestLedgerEventsStreamFiltersByFamily(t *testing.T) {
	store := newFakeStore()
	block := domain.Block{
		Height: 0,
		Transactions: []domain.Transaction{
			domain.RegularTransaction{
				CommonTransaction: domain.CommonTransaction{Hash: domain.Hash{1}, BlockHeight: 0},
				ZswapLedgerEvents: []domain.LedgerEvent{{Family: domain.LedgerEventFamilyZswap, Raw: []byte("z1")}},
				DustLedgerEvents:  []domain.LedgerEvent{{Family: domain.LedgerEventFamilyDust, Raw: []byte("d1")}},
			},
		},
	}
	if err := store.AppendBlock(context.Background(), block); err != nil {
		t.Fatalf("append: %v", err)
	}

	engine := NewEngine(store, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out, stop := engine.StartLedgerEvents(ctx, domain.LedgerEventFamilyZswap, 0)
	defer stop()

	ev := mustRecv(t, out)
	leEv, ok := ev.(LedgerEventEvent)
	if !ok || leEv.Event.Family != domain.LedgerEventFamilyZswap || string(leEv.Event.Raw) != "z1" {
		t.Fatalf("expected zswap event z1, got %#v", ev)
	}

	select {
	case unexpected := <-out:
		t.Fatalf("expected no further events (dust should be filtered out), got %#v", unexpected)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestContractActionsStreamOrdering(t *testing.T) {
	store := newFakeStore()
	addr := domain.Address{0xAA}
	deploy := domain.ContractDeployAction{CommonContractAction: domain.CommonContractAction{
		Address:     addr,
		Transaction: domain.TxRef{Hash: domain.Hash{1}, Height: 0},
	}}
	block := domain.Block{
		Height: 0,
		Transactions: []domain.Transaction{
			domain.RegularTransaction{
				CommonTransaction: domain.CommonTransaction{Hash: domain.Hash{1}, BlockHeight: 0},
				ContractActions:   []domain.ContractAction{deploy},
			},
		},
	}
	if err := store.AppendBlock(context.Background(), block); err != nil {
		t.Fatalf("append: %v", err)
	}

	engine := NewEngine(store, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out, stop := engine.StartContractActions(ctx, addr, storage.ContractActionOffset{})
	defer stop()

	ev := mustRecv(t, out)
	caEv, ok := ev.(ContractActionEvent)
	if !ok || caEv.Action.ActionKind() != domain.ContractActionDeploy {
		t.Fatalf("expected deploy action, got %#v", ev)
	}
}

func TestUnshieldedTransactionsDeliversOnlyToReferencedAddress(t *testing.T) {
	store := newFakeStore()
	owner := domain.Address{0x01}
	other := domain.Address{0x02}

	engine := NewEngine(store, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out, stop := engine.StartUnshieldedTransactions(ctx, other)
	defer stop()
	time.Sleep(20 * time.Millisecond) // let the stream subscribe before the block commits

	block := domain.Block{
		Height: 0,
		Transactions: []domain.Transaction{
			domain.RegularTransaction{
				CommonTransaction:        domain.CommonTransaction{Hash: domain.Hash{1}, BlockHeight: 0, IndexInBlock: 0},
				UnshieldedCreatedOutputs: []domain.UnshieldedUtxo{{Owner: owner}},
			},
		},
	}
	if err := store.AppendBlock(context.Background(), block); err != nil {
		t.Fatalf("append: %v", err)
	}

	ev := mustRecv(t, out)
	progress, ok := ev.(UnshieldedTransactionsProgress)
	if !ok {
		t.Fatalf("expected a progress-only event for an address never referenced, got %#v", ev)
	}
	if want := domain.PackTransactionId(0, 0); progress.HighestTransactionId != want {
		t.Fatalf("expected highest transaction id %d, got %d", want, progress.HighestTransactionId)
	}
}

func TestUnshieldedTransactionsDeliversToOwner(t *testing.T) {
	store := newFakeStore()
	owner := domain.Address{0x01}

	engine := NewEngine(store, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out, stop := engine.StartUnshieldedTransactions(ctx, owner)
	defer stop()

	block := domain.Block{
		Height: 0,
		Transactions: []domain.Transaction{
			domain.RegularTransaction{
				CommonTransaction:        domain.CommonTransaction{Hash: domain.Hash{1}, BlockHeight: 0, IndexInBlock: 0},
				UnshieldedCreatedOutputs: []domain.UnshieldedUtxo{{Owner: owner}},
			},
		},
	}
	if err := store.AppendBlock(context.Background(), block); err != nil {
		t.Fatalf("append: %v", err)
	}

	ev := mustRecv(t, out)
	txEv, ok := ev.(UnshieldedTransactionEvent)
	if !ok || txEv.Transaction.TxHash() != (domain.Hash{1}) {
		t.Fatalf("expected transaction event for owner, got %#v", ev)
	}
}

func TestShieldedTransactionsRejectsInactiveSession(t *testing.T) {
	store := newFakeStore()
	sessions, err := wallet.NewSessionManager(store, make([]byte, 32))
	if err != nil {
		t.Fatalf("new session manager: %v", err)
	}
	scheduler := wallet.NewScheduler(1, 4)
	defer scheduler.Close()
	scanner := wallet.NewScanner(wallet.DecryptorFunc(func(viewingKey, raw []byte) (bool, []byte, error) {
		return false, nil, nil
	}))
	indexer := wallet.NewIndexer(store, sessions, scheduler, scanner, nil)

	engine := NewEngine(store, sessions, indexer)
	out, stop := engine.StartShieldedTransactions(context.Background(), "unknown-session")
	defer stop()

	ev := mustRecv(t, out)
	errEv, ok := ev.(ErrorEvent)
	if !ok || !domain.IsKind(errEv.Err, domain.KindUnauthorized) {
		t.Fatalf("expected Unauthorized error event, got %#v", ev)
	}
	if _, ok := mustRecv(t, out).(CompletionEvent); !ok {
		t.Fatal("expected completion event after error")
	}
}

func TestShieldedTransactionsForwardsIndexerEvents(t *testing.T) {
	store := newFakeStore()
	sessions, err := wallet.NewSessionManager(store, make([]byte, 32))
	if err != nil {
		t.Fatalf("new session manager: %v", err)
	}
	if err := sessions.Open(context.Background(), "s1", "mainnet", []byte("vk")); err != nil {
		t.Fatalf("open session: %v", err)
	}
	scheduler := wallet.NewScheduler(1, 4)
	defer scheduler.Close()
	scanner := wallet.NewScanner(wallet.DecryptorFunc(func(viewingKey, raw []byte) (bool, []byte, error) {
		return len(raw) > 0 && raw[0] == 0xAB, []byte("plaintext"), nil
	}))
	indexer := wallet.NewIndexer(store, sessions, scheduler, scanner, nil)

	engine := NewEngine(store, sessions, indexer)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out, stop := engine.StartShieldedTransactions(ctx, "s1")
	defer stop()

	block := domain.Block{
		Height: 1,
		Transactions: []domain.Transaction{
			domain.RegularTransaction{
				CommonTransaction: domain.CommonTransaction{Hash: domain.Hash{1}, BlockHeight: 1},
				ZswapLedgerEvents: []domain.LedgerEvent{{Id: 1, Raw: []byte{0xAB}}},
			},
		},
	}
	if err := store.AppendBlock(context.Background(), block); err != nil {
		t.Fatalf("seed block: %v", err)
	}

	go indexer.Run(ctx, func() []string { return []string{"s1"} })
	time.Sleep(20 * time.Millisecond) // let Run subscribe before the next block commits

	block2 := domain.Block{
		Height: 2,
		Transactions: []domain.Transaction{
			domain.RegularTransaction{
				CommonTransaction: domain.CommonTransaction{Hash: domain.Hash{2}, BlockHeight: 2},
				ZswapLedgerEvents: []domain.LedgerEvent{{Id: 2, Raw: []byte{0xAB}}},
			},
		},
	}
	if err := store.AppendBlock(context.Background(), block2); err != nil {
		t.Fatalf("append second block: %v", err)
	}

	ev := mustRecv(t, out)
	if _, ok := ev.(wallet.ShieldedMatch); !ok {
		t.Fatalf("expected a ShieldedMatch forwarded from the wallet indexer, got %#v", ev)
	}
}
