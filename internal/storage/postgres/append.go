package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"midnight-indexer/internal/domain"
	"midnight-indexer/internal/eventbus"
)

// AppendBlock rejects height/parent/duplicate-hash violations and otherwise
// commits block and everything derived from it in one transaction. The
// `SELECT ... FOR UPDATE` on chain_head is what serializes concurrent
// appenders: the second caller's transaction blocks on the row lock until
// the first commits or rolls back.
func (s *Store) AppendBlock(ctx context.Context, block domain.Block) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var lastHeight *int64
	var lastHashBytes []byte
	if err := tx.QueryRow(ctx, `SELECT height, hash FROM chain_head WHERE id FOR UPDATE`).Scan(&lastHeight, &lastHashBytes); err != nil {
		return fmt.Errorf("lock chain head: %w", err)
	}

	if lastHeight != nil {
		var lastHash domain.Hash
		copy(lastHash[:], lastHashBytes)
		if block.Height != uint32(*lastHeight)+1 {
			return constraintErr("height %d is not last committed height %d + 1", block.Height, *lastHeight)
		}
		if block.ParentHash != lastHash {
			return constraintErr("block %s parent %s does not match last committed hash %s", block.Hash, block.ParentHash, lastHash)
		}
	} else if block.Height != 0 {
		return constraintErr("first committed block must have height 0, got %d", block.Height)
	}

	var exists int
	if err := tx.QueryRow(ctx, `SELECT COUNT(1) FROM blocks WHERE hash = $1`, block.Hash.Bytes()).Scan(&exists); err != nil {
		return fmt.Errorf("check duplicate hash: %w", err)
	}
	if exists > 0 {
		return constraintErr("block hash %s already exists", block.Hash)
	}

	if _, err := tx.Exec(ctx, `INSERT INTO blocks(hash, height, parent_hash, timestamp) VALUES ($1, $2, $3, $4)`,
		block.Hash.Bytes(), block.Height, block.ParentHash.Bytes(), block.Timestamp.UnixNano()); err != nil {
		return fmt.Errorf("insert block: %w", err)
	}

	var committedEvents []domain.LedgerEvent
	for _, rawTx := range block.Transactions {
		if err := insertTransaction(ctx, tx, block.Height, rawTx); err != nil {
			return err
		}
		regular, ok := rawTx.(domain.RegularTransaction)
		if !ok {
			continue
		}
		if err := insertIdentifiers(ctx, tx, regular); err != nil {
			return err
		}
		if err := insertCreatedOutputs(ctx, tx, block.Height, regular); err != nil {
			return err
		}
		if err := markSpentOutputs(ctx, tx, regular); err != nil {
			return err
		}
		if err := insertContractActions(ctx, tx, regular); err != nil {
			return err
		}
		for _, family := range [][]domain.LedgerEvent{regular.ZswapLedgerEvents, regular.DustLedgerEvents} {
			for _, ev := range family {
				id, err := nextLedgerEventID(ctx, tx)
				if err != nil {
					return err
				}
				ev.Id = id
				if err := insertLedgerEvent(ctx, tx, regular.Hash, block.Height, ev); err != nil {
					return err
				}
				committedEvents = append(committedEvents, ev)
			}
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE chain_head SET height = $1, hash = $2 WHERE id`, block.Height, block.Hash.Bytes()); err != nil {
		return fmt.Errorf("advance chain head: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	// All of this block's events are committed now, so the highest id this
	// append allocated is the MaxId snapshot every one of them carries.
	if n := len(committedEvents); n > 0 {
		maxId := committedEvents[n-1].Id
		for i := range committedEvents {
			committedEvents[i].MaxId = maxId
		}
	}

	s.bus.Publish(eventbus.TopicBlockCommitted, eventbus.BlockCommittedEvent{Block: block})
	for _, ev := range committedEvents {
		s.bus.Publish(eventbus.TopicLedgerEventCommitted, eventbus.LedgerEventCommittedEvent{Event: ev})
	}
	s.bus.Publish(eventbus.TopicWalletIndexable, eventbus.WalletIndexableEvent{Height: block.Height})
	return nil
}

// nextLedgerEventID draws from the single sequence shared by both ledger
// event families, matching the SQLite backend's MAX(id)+1 allocator under a
// transaction-scoped lock instead of an application mutex.
func nextLedgerEventID(ctx context.Context, tx pgx.Tx) (uint64, error) {
	var id int64
	if err := tx.QueryRow(ctx, `SELECT nextval('ledger_event_ids')`).Scan(&id); err != nil {
		return 0, fmt.Errorf("allocate ledger event id: %w", err)
	}
	return uint64(id), nil
}

func insertTransaction(ctx context.Context, tx pgx.Tx, height uint32, t domain.Transaction) error {
	var raw []byte
	if regular, ok := t.(domain.RegularTransaction); ok {
		raw = regular.Raw
	}
	_, err := tx.Exec(ctx, `INSERT INTO transactions(hash, block_height, index_in_block, kind, raw) VALUES ($1, $2, $3, $4, $5)`,
		t.TxHash().Bytes(), height, t.TxIndexInBlock(), string(t.Kind()), raw)
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", t.TxHash(), err)
	}
	return nil
}

func insertIdentifiers(ctx context.Context, tx pgx.Tx, t domain.RegularTransaction) error {
	for _, id := range t.Identifiers {
		if _, err := tx.Exec(ctx, `INSERT INTO transaction_identifiers(identifier, tx_hash) VALUES ($1, $2)`, id.Bytes(), t.Hash.Bytes()); err != nil {
			return fmt.Errorf("insert identifier for tx %s: %w", t.Hash, err)
		}
	}
	return nil
}

func insertCreatedOutputs(ctx context.Context, tx pgx.Tx, height uint32, t domain.RegularTransaction) error {
	for _, u := range t.UnshieldedCreatedOutputs {
		_, err := tx.Exec(ctx, `INSERT INTO unshielded_utxos(created_tx_hash, output_index, owner, token_type, value, created_height, spent_tx_hash, spent_height, ctime, registered_dust)
			VALUES ($1, $2, $3, $4, $5, $6, NULL, NULL, $7, $8)`,
			t.Hash.Bytes(), u.OutputIndex, []byte(u.Owner), u.TokenType, u.Value[:], height, u.Ctime.UnixNano(), u.RegisteredForDustGeneration)
		if err != nil {
			return fmt.Errorf("insert utxo output %d of tx %s: %w", u.OutputIndex, t.Hash, err)
		}
	}
	return nil
}

func markSpentOutputs(ctx context.Context, tx pgx.Tx, t domain.RegularTransaction) error {
	for _, u := range t.UnshieldedSpentOutputs {
		tag, err := tx.Exec(ctx, `UPDATE unshielded_utxos SET spent_tx_hash = $1, spent_height = $2 WHERE created_tx_hash = $3 AND output_index = $4`,
			t.Hash.Bytes(), t.BlockHeight, u.CreatedAtTransaction.Hash.Bytes(), u.OutputIndex)
		if err != nil {
			return fmt.Errorf("mark spent utxo: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return constraintErr("spent utxo %s:%d not found", u.CreatedAtTransaction.Hash, u.OutputIndex)
		}
	}
	return nil
}

func insertContractActions(ctx context.Context, tx pgx.Tx, t domain.RegularTransaction) error {
	for _, a := range t.ContractActions {
		height, idx := a.ActionPosition()
		var kind, entryPoint string
		var hasEntryPoint bool
		var deployHash []byte
		var deployHeight *uint32
		switch v := a.(type) {
		case domain.ContractDeployAction:
			kind = string(domain.ContractActionDeploy)
		case domain.ContractCallAction:
			kind = string(domain.ContractActionCall)
			entryPoint, hasEntryPoint = v.EntryPoint, true
			dh := v.Deploy.Hash.Bytes()
			deployHash = dh
			h := v.Deploy.Height
			deployHeight = &h
		case domain.ContractUpdateAction:
			kind = string(domain.ContractActionUpdate)
			dh := v.Deploy.Hash.Bytes()
			deployHash = dh
			h := v.Deploy.Height
			deployHeight = &h
		default:
			return fmt.Errorf("unknown contract action variant %T", a)
		}
		var entryPointArg any
		if hasEntryPoint {
			entryPointArg = entryPoint
		}
		actionTxRef := a.ActionTransaction()
		_, err := tx.Exec(ctx, `INSERT INTO contract_actions(address, height, index_in_block, tx_hash, kind, entry_point, zswap_state, deploy_tx_hash, deploy_height)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			[]byte(a.ActionAddress()), height, idx, actionTxRef.Hash.Bytes(), kind, entryPointArg, a.ActionZswapState(), deployHash, deployHeight)
		if err != nil {
			return fmt.Errorf("insert contract action for %s: %w", a.ActionAddress(), err)
		}
	}
	return nil
}

func insertLedgerEvent(ctx context.Context, tx pgx.Tx, txHash domain.Hash, height uint32, ev domain.LedgerEvent) error {
	_, err := tx.Exec(ctx, `INSERT INTO ledger_events(id, family, raw, tx_hash, height) VALUES ($1, $2, $3, $4, $5)`,
		ev.Id, string(ev.Family), ev.Raw, txHash.Bytes(), height)
	if err != nil {
		return fmt.Errorf("insert ledger event %d: %w", ev.Id, err)
	}
	return nil
}
