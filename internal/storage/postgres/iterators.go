package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"midnight-indexer/internal/domain"
	"midnight-indexer/internal/storage"
)

type blockIterator struct {
	store *Store
	next  uint32
}

func (s *Store) IterBlocks(ctx context.Context, fromHeight uint32) (storage.BlockIterator, error) {
	return &blockIterator{store: s, next: fromHeight}, nil
}

func (it *blockIterator) Next(ctx context.Context) (domain.Block, bool, error) {
	blk, err := it.store.GetBlockByHeight(ctx, it.next)
	if err != nil {
		return domain.Block{}, false, err
	}
	if blk == nil {
		return domain.Block{}, false, nil
	}
	it.next++
	return *blk, true, nil
}

func (it *blockIterator) Close() error { return nil }

type ledgerEventIterator struct {
	store  *Store
	family domain.LedgerEventFamily
	next   uint64
}

func (s *Store) IterLedgerEvents(ctx context.Context, family domain.LedgerEventFamily, fromId uint64) (storage.LedgerEventIterator, error) {
	return &ledgerEventIterator{store: s, family: family, next: fromId}, nil
}

func (it *ledgerEventIterator) Next(ctx context.Context) (domain.LedgerEvent, bool, error) {
	row := it.store.pool.QueryRow(ctx, `SELECT id, raw FROM ledger_events WHERE family = $1 AND id >= $2 ORDER BY id ASC LIMIT 1`,
		string(it.family), it.next)
	var id int64
	var raw []byte
	err := row.Scan(&id, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.LedgerEvent{}, false, nil
	}
	if err != nil {
		return domain.LedgerEvent{}, false, fmt.Errorf("scan ledger event: %w", err)
	}
	maxID, err := it.store.maxLedgerEventID(ctx)
	if err != nil {
		return domain.LedgerEvent{}, false, err
	}
	it.next = uint64(id) + 1
	return domain.LedgerEvent{Family: it.family, Id: uint64(id), Raw: raw, MaxId: maxID}, true, nil
}

func (it *ledgerEventIterator) Close() error { return nil }

func (s *Store) maxLedgerEventID(ctx context.Context) (uint64, error) {
	var maxID *int64
	if err := s.pool.QueryRow(ctx, `SELECT MAX(id) FROM ledger_events`).Scan(&maxID); err != nil {
		return 0, fmt.Errorf("read max ledger event id: %w", err)
	}
	if maxID == nil {
		return 0, nil
	}
	return uint64(*maxID), nil
}

type contractActionIterator struct {
	store      *Store
	address    domain.Address
	nextHeight uint32
	nextIndex  uint32
}

func (s *Store) IterContractActions(ctx context.Context, address domain.Address, fromOffset domain.BlockPosition) (storage.ContractActionIterator, error) {
	return &contractActionIterator{store: s, address: address, nextHeight: fromOffset.Height, nextIndex: fromOffset.IndexInBlock}, nil
}

func (it *contractActionIterator) Next(ctx context.Context) (domain.ContractAction, bool, error) {
	row := it.store.pool.QueryRow(ctx, `SELECT height, index_in_block, kind, entry_point, zswap_state, deploy_tx_hash, deploy_height, tx_hash
		FROM contract_actions
		WHERE address = $1 AND (height > $2 OR (height = $2 AND index_in_block >= $3))
		ORDER BY height ASC, index_in_block ASC LIMIT 1`,
		[]byte(it.address), it.nextHeight, it.nextIndex)
	var height, indexInBlock int64
	var kind string
	var entryPoint *string
	var zswapState, deployHashBytes, txHashBytes []byte
	var deployHeight *int64
	err := row.Scan(&height, &indexInBlock, &kind, &entryPoint, &zswapState, &deployHashBytes, &deployHeight, &txHashBytes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("scan contract action: %w", err)
	}
	var txHash domain.Hash
	copy(txHash[:], txHashBytes)
	common := domain.CommonContractAction{
		Address:      it.address,
		Transaction:  domain.TxRef{Hash: txHash, Height: uint32(height)},
		IndexInBlock: uint32(indexInBlock),
		ZswapState:   zswapState,
	}
	it.nextHeight, it.nextIndex = uint32(height), uint32(indexInBlock)+1

	action, err := buildContractAction(common, kind, entryPoint, deployHashBytes, deployHeight)
	if err != nil {
		return nil, false, err
	}
	return action, true, nil
}

func (it *contractActionIterator) Close() error { return nil }

// unshieldedEventIterator mirrors the SQLite backend's synthetic
// (height, index) transaction-id packing since Postgres's schema here has
// no dedicated numeric transaction id column either.
type unshieldedEventIterator struct {
	store      *Store
	address    domain.Address
	nextHeight uint32
	nextIndex  uint32
}

func (s *Store) IterUnshieldedEvents(ctx context.Context, address domain.Address, fromTxId uint64) (storage.UnshieldedEventIterator, error) {
	height, index := domain.UnpackTransactionId(fromTxId)
	return &unshieldedEventIterator{store: s, address: address, nextHeight: height, nextIndex: index}, nil
}

func (it *unshieldedEventIterator) Next(ctx context.Context) (storage.UnshieldedEvent, bool, error) {
	row := it.store.pool.QueryRow(ctx, `
		SELECT DISTINCT t.hash, t.block_height, t.index_in_block
		FROM transactions t
		WHERE t.kind = 'RegularTransaction'
		  AND (t.block_height > $1 OR (t.block_height = $1 AND t.index_in_block >= $2))
		  AND EXISTS (
			SELECT 1 FROM unshielded_utxos u
			WHERE (u.created_tx_hash = t.hash AND u.owner = $3)
			   OR (u.spent_tx_hash = t.hash AND u.owner = $3)
		  )
		ORDER BY t.block_height ASC, t.index_in_block ASC LIMIT 1`,
		it.nextHeight, it.nextIndex, []byte(it.address))
	var hashBytes []byte
	var height, index int64
	err := row.Scan(&hashBytes, &height, &index)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.UnshieldedEvent{}, false, nil
	}
	if err != nil {
		return storage.UnshieldedEvent{}, false, fmt.Errorf("scan unshielded event: %w", err)
	}
	it.nextHeight, it.nextIndex = uint32(height), uint32(index)+1

	txs, err := it.store.loadTransactionsForBlock(ctx, uint32(height))
	if err != nil {
		return storage.UnshieldedEvent{}, false, err
	}
	var hash domain.Hash
	copy(hash[:], hashBytes)
	for _, t := range txs {
		if t.TxHash() == hash {
			return storage.UnshieldedEvent{Transaction: t, HighestTransactionId: domain.PackTransactionId(uint32(height), uint32(index))}, true, nil
		}
	}
	return storage.UnshieldedEvent{}, false, fmt.Errorf("transaction %s vanished between index and load", hash)
}

func (it *unshieldedEventIterator) Close() error { return nil }
