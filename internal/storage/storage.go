// Package storage defines the logical contract shared by the Postgres
// (cloud) and SQLite (standalone) backends: append-only block ingestion,
// point/range reads, restartable iterators for subscriptions, wallet
// session bookkeeping and the DUST status derivation. Both concrete
// backends in internal/storage/postgres and internal/storage/sqlite
// implement Store identically in observable behavior; only their
// concurrency and persistence mechanics differ.
package storage

import (
	"context"

	"midnight-indexer/internal/domain"
	"midnight-indexer/internal/eventbus"
)

// TransactionLookup selects a transaction by exactly one of hash or
// identifier.
type TransactionLookup struct {
	Hash       *domain.Hash
	Identifier *domain.Hash
}

// ContractActionOffset selects the contract-action-history cutoff: none (=
// latest), by block hash, or by block height.
type ContractActionOffset struct {
	None   bool
	Hash   *domain.Hash
	Height *uint32
}

// Store is the full logical contract a GraphQL query, subscription or the
// wallet indexer reads through. Implementations must make a block's rows
// visible to readers only after the whole block's transaction has
// committed, and must never reuse a ledger-event id.
type Store interface {
	// AppendBlock commits block and everything derived from it atomically.
	// It rejects (domain.KindConstraintViolated) if block.Height !=
	// lastHeight+1, if block.ParentHash != lastHash, or if block.Hash
	// already exists. On success it allocates ledger-event ids from the
	// single monotone sequence and publishes Bus notifications.
	AppendBlock(ctx context.Context, block domain.Block) error

	GetBlockByHash(ctx context.Context, hash domain.Hash) (*domain.Block, error)
	GetBlockByHeight(ctx context.Context, height uint32) (*domain.Block, error)
	GetLatestBlock(ctx context.Context) (*domain.Block, error)

	// GetTransaction resolves by hash or by identifier. One identifier can
	// tag several transactions, so identifier lookup may return multiple
	// rows; hash lookup returns at most one.
	GetTransaction(ctx context.Context, lookup TransactionLookup) ([]domain.Transaction, error)

	// GetContractAction resolves the contract-action history cutoff
	// described by offset. Returns (nil, nil) if address has no deploy, or
	// if offset names a block that does not exist.
	GetContractAction(ctx context.Context, address domain.Address, offset ContractActionOffset) (domain.ContractAction, error)

	// IterLedgerEvents returns events of the given family with id >=
	// fromId, in ascending id order.
	IterLedgerEvents(ctx context.Context, family domain.LedgerEventFamily, fromId uint64) (LedgerEventIterator, error)
	// IterContractActions returns the ordered action history for address
	// starting at or after fromOffset.
	IterContractActions(ctx context.Context, address domain.Address, fromOffset domain.BlockPosition) (ContractActionIterator, error)
	// IterBlocks returns blocks with height >= fromHeight, in ascending
	// height order.
	IterBlocks(ctx context.Context, fromHeight uint32) (BlockIterator, error)
	// IterUnshieldedEvents returns transactions that create or spend a
	// UTXO owned by address, starting at or after fromTxId, in ascending
	// transaction-id order.
	IterUnshieldedEvents(ctx context.Context, address domain.Address, fromTxId uint64) (UnshieldedEventIterator, error)

	PutWalletSession(ctx context.Context, session domain.ViewingKeySession) error
	GetWalletSession(ctx context.Context, sessionId string) (*domain.ViewingKeySession, error)
	AdvanceWalletSessionHeight(ctx context.Context, sessionId string, height uint32) error
	DeleteWalletSession(ctx context.Context, sessionId string) error

	// ComputeDustGenerationStatus rejects (domain.KindInputMalformed) if
	// len(rewardAddresses) > 10. Results are returned in request order,
	// duplicates preserved.
	ComputeDustGenerationStatus(ctx context.Context, rewardAddresses []string) ([]domain.DustGenerationStatus, error)

	// Bus exposes the notification bus this Store publishes to, so
	// callers (subscription engine, wallet scheduler) can subscribe.
	Bus() *eventbus.Bus

	Close() error
}

// BlockIterator, LedgerEventIterator, ContractActionIterator and
// UnshieldedEventIterator are restartable forward cursors used by the
// subscription engine's historical-replay phase. Next returns (false, nil)
// at end of the currently committed data (not an error); callers then
// switch to the Bus for the live tail.
type BlockIterator interface {
	Next(ctx context.Context) (domain.Block, bool, error)
	Close() error
}

type LedgerEventIterator interface {
	Next(ctx context.Context) (domain.LedgerEvent, bool, error)
	Close() error
}

type ContractActionIterator interface {
	Next(ctx context.Context) (domain.ContractAction, bool, error)
	Close() error
}

// UnshieldedEvent pairs a transaction touching address with its packed
// transaction id (domain.PackTransactionId), the subscription's progress
// marker; the first transaction of block 0 packs to 0.
type UnshieldedEvent struct {
	Transaction          domain.Transaction
	HighestTransactionId uint64
}

type UnshieldedEventIterator interface {
	Next(ctx context.Context) (UnshieldedEvent, bool, error)
	Close() error
}
