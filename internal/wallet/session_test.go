package wallet

import (
	"context"
	"testing"

	"midnight-indexer/internal/domain"
)

func TestSessionManagerWrapUnwrapRoundTrip(t *testing.T) {
	store := &fakeSessionStore{sessions: make(map[string]domain.ViewingKeySession)}
	masterKey := make([]byte, 32)
	for i := range masterKey {
		masterKey[i] = byte(i)
	}
	mgr, err := NewSessionManager(store, masterKey)
	if err != nil {
		t.Fatalf("new session manager: %v", err)
	}

	viewingKey := []byte("super-secret-viewing-key-material")
	if err := mgr.Open(context.Background(), "s1", "mainnet", viewingKey); err != nil {
		t.Fatalf("open: %v", err)
	}

	got, ok := mgr.ViewingKey("s1")
	if !ok {
		t.Fatal("expected active session")
	}
	if string(got) != string(viewingKey) {
		t.Fatalf("viewing key mismatch: got %q", got)
	}

	stored := store.sessions["s1"]
	if string(stored.WrappedViewingKey) == string(viewingKey) {
		t.Fatal("wrapped viewing key must not equal plaintext")
	}

	unwrapped, err := mgr.Unwrap("s1", stored.WrappedViewingKey)
	if err != nil {
		t.Fatalf("unwrap: %v", err)
	}
	if string(unwrapped) != string(viewingKey) {
		t.Fatalf("unwrap mismatch: got %q", unwrapped)
	}

	if err := mgr.Close(context.Background(), "s1"); err != nil {
		t.Fatalf("close: %v", err)
	}
	if mgr.Active("s1") {
		t.Fatal("expected session to be inactive after close")
	}
	if _, ok := store.sessions["s1"]; ok {
		t.Fatal("expected session deleted from store after close")
	}
}

func TestSessionManagerUnwrapWrongSessionIdFails(t *testing.T) {
	store := &fakeSessionStore{sessions: make(map[string]domain.ViewingKeySession)}
	masterKey := make([]byte, 32)
	mgr, err := NewSessionManager(store, masterKey)
	if err != nil {
		t.Fatalf("new session manager: %v", err)
	}
	if err := mgr.Open(context.Background(), "s1", "mainnet", []byte("key-material")); err != nil {
		t.Fatalf("open: %v", err)
	}
	stored := store.sessions["s1"]
	if _, err := mgr.Unwrap("s2", stored.WrappedViewingKey); err == nil {
		t.Fatal("expected unwrap to fail with mismatched additional data (sessionId)")
	}
}
