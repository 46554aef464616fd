package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"midnight-indexer/internal/domain"
	"midnight-indexer/internal/eventbus"
)

// AppendBlock rejects height/parent/duplicate-hash violations and otherwise
// commits the block and everything derived from it in one transaction,
// allocating ledger-event ids from the single monotone MAX(id)+1 sequence
// (safe because mu serializes every writer).
func (s *Store) AppendBlock(ctx context.Context, block domain.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	lastHeight, lastHash, hasLast, err := latestHeightAndHash(tx)
	if err != nil {
		return fmt.Errorf("read chain head: %w", err)
	}
	if hasLast {
		if block.Height != lastHeight+1 {
			return constraintErr("height %d is not last committed height %d + 1", block.Height, lastHeight)
		}
		if block.ParentHash != lastHash {
			return constraintErr("block %s parent %s does not match last committed hash %s", block.Hash, block.ParentHash, lastHash)
		}
	} else if block.Height != 0 {
		return constraintErr("first committed block must have height 0, got %d", block.Height)
	}

	var exists int
	if err := tx.QueryRow(`SELECT COUNT(1) FROM blocks WHERE hash = ?`, block.Hash[:]).Scan(&exists); err != nil {
		return fmt.Errorf("check duplicate hash: %w", err)
	}
	if exists > 0 {
		return constraintErr("block hash %s already exists", block.Hash)
	}

	if _, err := tx.Exec(`INSERT INTO blocks(hash, height, parent_hash, timestamp) VALUES (?, ?, ?, ?)`,
		block.Hash[:], block.Height, block.ParentHash[:], block.Timestamp.UnixNano()); err != nil {
		return fmt.Errorf("insert block: %w", err)
	}

	nextLedgerID, err := nextLedgerEventID(tx)
	if err != nil {
		return err
	}

	var committedEvents []domain.LedgerEvent
	for _, rawTx := range block.Transactions {
		if err := insertTransaction(tx, block.Height, rawTx); err != nil {
			return err
		}
		regular, ok := rawTx.(domain.RegularTransaction)
		if !ok {
			continue
		}
		if err := insertIdentifiers(tx, regular); err != nil {
			return err
		}
		if err := insertCreatedOutputs(tx, block.Height, regular); err != nil {
			return err
		}
		if err := markSpentOutputs(tx, regular); err != nil {
			return err
		}
		if err := insertContractActions(tx, regular); err != nil {
			return err
		}
		for _, family := range [][]domain.LedgerEvent{regular.ZswapLedgerEvents, regular.DustLedgerEvents} {
			for _, ev := range family {
				ev.Id = nextLedgerID
				nextLedgerID++
				if err := insertLedgerEvent(tx, regular.Hash, block.Height, ev); err != nil {
					return err
				}
				committedEvents = append(committedEvents, ev)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	// All of this block's events are committed now, so the highest id this
	// append allocated is the MaxId snapshot every one of them carries.
	for i := range committedEvents {
		committedEvents[i].MaxId = nextLedgerID - 1
	}

	s.bus.Publish(eventbus.TopicBlockCommitted, eventbus.BlockCommittedEvent{Block: block})
	for _, ev := range committedEvents {
		s.bus.Publish(eventbus.TopicLedgerEventCommitted, eventbus.LedgerEventCommittedEvent{Event: ev})
	}
	s.bus.Publish(eventbus.TopicWalletIndexable, eventbus.WalletIndexableEvent{Height: block.Height})
	return nil
}

func latestHeightAndHash(tx *sql.Tx) (height uint32, hash domain.Hash, ok bool, err error) {
	row := tx.QueryRow(`SELECT height, hash FROM blocks ORDER BY height DESC LIMIT 1`)
	var h []byte
	err = row.Scan(&height, &h)
	if err == sql.ErrNoRows {
		return 0, domain.Hash{}, false, nil
	}
	if err != nil {
		return 0, domain.Hash{}, false, err
	}
	copy(hash[:], h)
	return height, hash, true, nil
}

func nextLedgerEventID(tx *sql.Tx) (uint64, error) {
	var maxID sql.NullInt64
	if err := tx.QueryRow(`SELECT MAX(id) FROM ledger_events`).Scan(&maxID); err != nil {
		return 0, fmt.Errorf("read ledger event sequence: %w", err)
	}
	if !maxID.Valid {
		return 1, nil
	}
	return uint64(maxID.Int64) + 1, nil
}

func insertTransaction(tx *sql.Tx, height uint32, t domain.Transaction) error {
	var raw []byte
	if regular, ok := t.(domain.RegularTransaction); ok {
		raw = regular.Raw
	}
	_, err := tx.Exec(`INSERT INTO transactions(hash, block_height, index_in_block, kind, raw) VALUES (?, ?, ?, ?, ?)`,
		t.TxHash().Bytes(), height, t.TxIndexInBlock(), string(t.Kind()), raw)
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", t.TxHash(), err)
	}
	return nil
}

func insertIdentifiers(tx *sql.Tx, t domain.RegularTransaction) error {
	for _, id := range t.Identifiers {
		if _, err := tx.Exec(`INSERT INTO transaction_identifiers(identifier, tx_hash) VALUES (?, ?)`, id[:], t.Hash[:]); err != nil {
			return fmt.Errorf("insert identifier for tx %s: %w", t.Hash, err)
		}
	}
	return nil
}

func insertCreatedOutputs(tx *sql.Tx, height uint32, t domain.RegularTransaction) error {
	for _, u := range t.UnshieldedCreatedOutputs {
		registered := 0
		if u.RegisteredForDustGeneration {
			registered = 1
		}
		_, err := tx.Exec(`INSERT INTO unshielded_utxos(created_tx_hash, output_index, owner, token_type, value, created_height, spent_tx_hash, spent_height, ctime, registered_dust)
			VALUES (?, ?, ?, ?, ?, ?, NULL, NULL, ?, ?)`,
			t.Hash[:], u.OutputIndex, []byte(u.Owner), u.TokenType, u.Value[:], height, u.Ctime.UnixNano(), registered)
		if err != nil {
			return fmt.Errorf("insert utxo output %d of tx %s: %w", u.OutputIndex, t.Hash, err)
		}
	}
	return nil
}

func markSpentOutputs(tx *sql.Tx, t domain.RegularTransaction) error {
	for _, u := range t.UnshieldedSpentOutputs {
		res, err := tx.Exec(`UPDATE unshielded_utxos SET spent_tx_hash = ?, spent_height = ? WHERE created_tx_hash = ? AND output_index = ?`,
			t.Hash[:], t.BlockHeight, u.CreatedAtTransaction.Hash[:], u.OutputIndex)
		if err != nil {
			return fmt.Errorf("mark spent utxo: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return constraintErr("spent utxo %s:%d not found", u.CreatedAtTransaction.Hash, u.OutputIndex)
		}
	}
	return nil
}

func insertContractActions(tx *sql.Tx, t domain.RegularTransaction) error {
	for _, a := range t.ContractActions {
		height, idx := a.ActionPosition()
		var kind string
		entryPoint := sql.NullString{}
		var deployHash []byte
		deployHeight := sql.NullInt64{}
		switch v := a.(type) {
		case domain.ContractDeployAction:
			kind = string(domain.ContractActionDeploy)
		case domain.ContractCallAction:
			kind = string(domain.ContractActionCall)
			entryPoint = sql.NullString{String: v.EntryPoint, Valid: true}
			deployHash = v.Deploy.Hash.Bytes()
			deployHeight = sql.NullInt64{Int64: int64(v.Deploy.Height), Valid: true}
		case domain.ContractUpdateAction:
			kind = string(domain.ContractActionUpdate)
			deployHash = v.Deploy.Hash.Bytes()
			deployHeight = sql.NullInt64{Int64: int64(v.Deploy.Height), Valid: true}
		default:
			return fmt.Errorf("unknown contract action variant %T", a)
		}
		actionTxRef := a.ActionTransaction()
		_, err := tx.Exec(`INSERT INTO contract_actions(address, height, index_in_block, tx_hash, kind, entry_point, zswap_state, deploy_tx_hash, deploy_height)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			[]byte(a.ActionAddress()), height, idx, actionTxRef.Hash.Bytes(), kind, entryPoint, a.ActionZswapState(), deployHash, deployHeight)
		if err != nil {
			return fmt.Errorf("insert contract action for %s: %w", a.ActionAddress(), err)
		}
	}
	return nil
}

func insertLedgerEvent(tx *sql.Tx, txHash domain.Hash, height uint32, ev domain.LedgerEvent) error {
	_, err := tx.Exec(`INSERT INTO ledger_events(id, family, raw, tx_hash, height) VALUES (?, ?, ?, ?, ?)`,
		ev.Id, string(ev.Family), ev.Raw, txHash[:], height)
	if err != nil {
		return fmt.Errorf("insert ledger event %d: %w", ev.Id, err)
	}
	return nil
}
