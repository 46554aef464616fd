package graphqlapi

import (
	"context"
	"testing"
	"time"

	"midnight-indexer/internal/bech32addr"
	"midnight-indexer/internal/domain"
	"midnight-indexer/internal/query"
	"midnight-indexer/internal/subscription"
	"midnight-indexer/internal/wallet"
)

func newTestRoot(t *testing.T) (*Root, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	sessions, err := wallet.NewSessionManager(store, make([]byte, 32))
	if err != nil {
		t.Fatalf("new session manager: %v", err)
	}
	scheduler := wallet.NewScheduler(1, 4)
	t.Cleanup(scheduler.Close)
	scanner := wallet.NewScanner(wallet.DecryptorFunc(func(viewingKey, raw []byte) (bool, []byte, error) {
		return false, nil, nil
	}))
	indexer := wallet.NewIndexer(store, sessions, scheduler, scanner, nil)
	queries := query.NewEngine(store)
	subs := subscription.NewEngine(store, sessions, indexer)
	return NewRoot(queries, subs, sessions), store
}

func TestSchemaParses(t *testing.T) {
	root, _ := newTestRoot(t)
	if _, err := NewSchema(root); err != nil {
		t.Fatalf("schema failed to parse: %v", err)
	}
}

func TestRootBlockResolvesLatest(t *testing.T) {
	root, store := newTestRoot(t)
	block := domain.Block{Hash: domain.Hash{1}, Height: 0, Timestamp: time.Now()}
	if err := store.AppendBlock(context.Background(), block); err != nil {
		t.Fatalf("append: %v", err)
	}

	resolved, err := root.Block(context.Background(), blockArgs{})
	if err != nil {
		t.Fatalf("block query: %v", err)
	}
	if resolved == nil || resolved.b.Height != 0 {
		t.Fatalf("expected block 0, got %#v", resolved)
	}
}

func mustEncodeViewingKey(t *testing.T, network bech32addr.Network) string {
	t.Helper()
	key, err := bech32addr.EncodeBech32m(bech32addr.ViewingKeyHRP(network), []byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("encode viewing key: %v", err)
	}
	return key
}

func TestRootConnectDisconnectRoundTrip(t *testing.T) {
	root, _ := newTestRoot(t)

	viewingKey := mustEncodeViewingKey(t, bech32addr.NetworkMainnet)
	sessionId, err := root.Connect(context.Background(), connectArgs{ViewingKey: viewingKey, Network: "mainnet"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !root.Sessions.Active(sessionId) {
		t.Fatal("expected session to be active after Connect")
	}

	ok, err := root.Disconnect(context.Background(), disconnectArgs{SessionId: sessionId})
	if err != nil || !ok {
		t.Fatalf("disconnect: ok=%v err=%v", ok, err)
	}
	if root.Sessions.Active(sessionId) {
		t.Fatal("expected session to be inactive after Disconnect")
	}
}

func TestRootConnectRejectsMalformedEncoding(t *testing.T) {
	root, _ := newTestRoot(t)
	if _, err := root.Connect(context.Background(), connectArgs{ViewingKey: "not-bech32m", Network: "mainnet"}); err == nil {
		t.Fatal("expected an error for a malformed viewing key")
	}
}

func TestRootConnectRejectsWrongNetworkHRP(t *testing.T) {
	root, _ := newTestRoot(t)
	viewingKey := mustEncodeViewingKey(t, bech32addr.Network("testnet"))
	_, err := root.Connect(context.Background(), connectArgs{ViewingKey: viewingKey, Network: "mainnet"})
	if err == nil {
		t.Fatal("expected an error for a wrong-network viewing key")
	}
	if !domain.IsKind(err, domain.KindInputMalformed) {
		t.Fatalf("expected KindInputMalformed, got %v", err)
	}
}

func TestRootBlocksSubscriptionDeliversHistorical(t *testing.T) {
	root, store := newTestRoot(t)
	block := domain.Block{Hash: domain.Hash{1}, Height: 0, Timestamp: time.Now()}
	if err := store.AppendBlock(context.Background(), block); err != nil {
		t.Fatalf("append: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := root.Blocks(ctx, blocksArgs{})

	select {
	case ev, ok := <-out:
		if !ok || ev.Block == nil {
			t.Fatalf("expected a block event, got %#v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for historical block event")
	}
}
