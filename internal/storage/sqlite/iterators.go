package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"midnight-indexer/internal/domain"
	"midnight-indexer/internal/storage"
)

// blockIterator walks committed blocks in ascending height order, re-running
// a bounded "next page" query rather than holding one open cursor so it
// tolerates the iterator living far longer than any single SQL statement
// (subscriptions may sit in historical replay for a long time).
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
	row := it.store.db.QueryRowContext(ctx, `SELECT id, raw FROM ledger_events WHERE family = ? AND id >= ? ORDER BY id ASC LIMIT 1`,
		string(it.family), it.next)
	var id uint64
	var raw []byte
	err := row.Scan(&id, &raw)
	if err == sql.ErrNoRows {
		return domain.LedgerEvent{}, false, nil
	}
	if err != nil {
		return domain.LedgerEvent{}, false, fmt.Errorf("scan ledger event: %w", err)
	}
	maxID, err := it.store.maxLedgerEventID(ctx)
	if err != nil {
		return domain.LedgerEvent{}, false, err
	}
	it.next = id + 1
	return domain.LedgerEvent{Family: it.family, Id: id, Raw: raw, MaxId: maxID}, true, nil
}

func (it *ledgerEventIterator) Close() error { return nil }

func (s *Store) maxLedgerEventID(ctx context.Context) (uint64, error) {
	var maxID sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(id) FROM ledger_events`).Scan(&maxID); err != nil {
		return 0, fmt.Errorf("read max ledger event id: %w", err)
	}
	if !maxID.Valid {
		return 0, nil
	}
	return uint64(maxID.Int64), nil
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
	row := it.store.db.QueryRowContext(ctx, `SELECT height, index_in_block, kind, entry_point, zswap_state, deploy_tx_hash, deploy_height, tx_hash
		FROM contract_actions
		WHERE address = ? AND (height > ? OR (height = ? AND index_in_block >= ?))
		ORDER BY height ASC, index_in_block ASC LIMIT 1`,
		[]byte(it.address), it.nextHeight, it.nextHeight, it.nextIndex)
	var height, indexInBlock uint32
	var kind string
	var entryPoint sql.NullString
	var zswapState, deployHashBytes, txHashBytes []byte
	var deployHeight sql.NullInt64
	err := row.Scan(&height, &indexInBlock, &kind, &entryPoint, &zswapState, &deployHashBytes, &deployHeight, &txHashBytes)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("scan contract action: %w", err)
	}
	var txHash domain.Hash
	copy(txHash[:], txHashBytes)
	common := domain.CommonContractAction{
		Address:      it.address,
		Transaction:  domain.TxRef{Hash: txHash, Height: height},
		IndexInBlock: indexInBlock,
		ZswapState:   zswapState,
	}
	it.nextHeight, it.nextIndex = height, indexInBlock+1

	switch domain.ContractActionKind(kind) {
	case domain.ContractActionDeploy:
		return domain.ContractDeployAction{CommonContractAction: common}, true, nil
	case domain.ContractActionCall:
		var deployHash domain.Hash
		copy(deployHash[:], deployHashBytes)
		return domain.ContractCallAction{
			CommonContractAction: common,
			EntryPoint:           entryPoint.String,
			Deploy:               domain.TxRef{Hash: deployHash, Height: uint32(deployHeight.Int64)},
		}, true, nil
	case domain.ContractActionUpdate:
		var deployHash domain.Hash
		copy(deployHash[:], deployHashBytes)
		return domain.ContractUpdateAction{
			CommonContractAction: common,
			Deploy:               domain.TxRef{Hash: deployHash, Height: uint32(deployHeight.Int64)},
		}, true, nil
	default:
		return nil, false, fmt.Errorf("unknown contract action kind %q", kind)
	}
}

func (it *contractActionIterator) Close() error { return nil }

// unshieldedEventIterator walks transactions touching address in ascending
// "transaction id" order. Since this storage layer has no separate numeric
// transaction id, it uses (block_height, index_in_block) as the ordering
// key and derives a monotone synthetic id from it for HighestTransactionId.
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
	row := it.store.db.QueryRowContext(ctx, `
		SELECT DISTINCT t.hash, t.block_height, t.index_in_block
		FROM transactions t
		WHERE t.kind = 'RegularTransaction'
		  AND (t.block_height > ? OR (t.block_height = ? AND t.index_in_block >= ?))
		  AND EXISTS (
			SELECT 1 FROM unshielded_utxos u
			WHERE (u.created_tx_hash = t.hash AND u.owner = ?)
			   OR (u.spent_tx_hash = t.hash AND u.owner = ?)
		  )
		ORDER BY t.block_height ASC, t.index_in_block ASC LIMIT 1`,
		it.nextHeight, it.nextHeight, it.nextIndex, []byte(it.address), []byte(it.address))
	var hashBytes []byte
	var height, index uint32
	err := row.Scan(&hashBytes, &height, &index)
	if err == sql.ErrNoRows {
		return storage.UnshieldedEvent{}, false, nil
	}
	if err != nil {
		return storage.UnshieldedEvent{}, false, fmt.Errorf("scan unshielded event: %w", err)
	}
	it.nextHeight, it.nextIndex = height, index+1

	txs, err := it.store.loadTransactionsForBlock(ctx, height)
	if err != nil {
		return storage.UnshieldedEvent{}, false, err
	}
	var hash domain.Hash
	copy(hash[:], hashBytes)
	for _, t := range txs {
		if t.TxHash() == hash {
			return storage.UnshieldedEvent{Transaction: t, HighestTransactionId: domain.PackTransactionId(height, index)}, true, nil
		}
	}
	return storage.UnshieldedEvent{}, false, fmt.Errorf("transaction %s vanished between index and load", hash)
}

func (it *unshieldedEventIterator) Close() error { return nil }
