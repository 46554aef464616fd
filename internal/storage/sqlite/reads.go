package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"midnight-indexer/internal/domain"
	"midnight-indexer/internal/storage"
)

func (s *Store) GetBlockByHash(ctx context.Context, hash domain.Hash) (*domain.Block, error) {
	return s.getBlock(ctx, `SELECT hash, height, parent_hash, timestamp FROM blocks WHERE hash = ?`, hash.Bytes())
}

func (s *Store) GetBlockByHeight(ctx context.Context, height uint32) (*domain.Block, error) {
	return s.getBlock(ctx, `SELECT hash, height, parent_hash, timestamp FROM blocks WHERE height = ?`, height)
}

func (s *Store) GetLatestBlock(ctx context.Context) (*domain.Block, error) {
	return s.getBlock(ctx, `SELECT hash, height, parent_hash, timestamp FROM blocks ORDER BY height DESC LIMIT 1`)
}

func (s *Store) getBlock(ctx context.Context, query string, args ...any) (*domain.Block, error) {
	row := s.db.QueryRowContext(ctx, query, args...)
	blk, err := scanBlock(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan block: %w", err)
	}
	txs, err := s.loadTransactionsForBlock(ctx, blk.Height)
	if err != nil {
		return nil, err
	}
	blk.Transactions = txs
	return &blk, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlock(row rowScanner) (domain.Block, error) {
	var blk domain.Block
	var hashBytes, parentBytes []byte
	var timestampNanos int64
	if err := row.Scan(&hashBytes, &blk.Height, &parentBytes, &timestampNanos); err != nil {
		return blk, err
	}
	copy(blk.Hash[:], hashBytes)
	copy(blk.ParentHash[:], parentBytes)
	blk.Timestamp = unixNanoToTime(timestampNanos)
	return blk, nil
}

func (s *Store) loadTransactionsForBlock(ctx context.Context, height uint32) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT hash, index_in_block, kind, raw FROM transactions WHERE block_height = ? ORDER BY index_in_block ASC`, height)
	if err != nil {
		return nil, fmt.Errorf("query transactions for height %d: %w", height, err)
	}
	defer rows.Close()

	var txHashes []domain.Hash
	var out []domain.Transaction
	for rows.Next() {
		var hashBytes, raw []byte
		var indexInBlock uint32
		var kind string
		if err := rows.Scan(&hashBytes, &indexInBlock, &kind, &raw); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		var hash domain.Hash
		copy(hash[:], hashBytes)
		common := domain.CommonTransaction{Hash: hash, BlockHeight: height, IndexInBlock: indexInBlock}
		if domain.TransactionKind(kind) == domain.TransactionKindSystem {
			out = append(out, domain.SystemTransaction{CommonTransaction: common})
			continue
		}
		out = append(out, domain.RegularTransaction{CommonTransaction: common, Raw: raw})
		txHashes = append(txHashes, hash)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, t := range out {
		regular, ok := t.(domain.RegularTransaction)
		if !ok {
			continue
		}
		if err := s.hydrateRegularTransaction(ctx, &regular); err != nil {
			return nil, err
		}
		out[i] = regular
	}
	return out, nil
}

// hydrateRegularTransaction fills in identifiers, UTXOs, contract actions
// and ledger events for a transaction whose hash/height/raw are already
// populated.
func (s *Store) hydrateRegularTransaction(ctx context.Context, t *domain.RegularTransaction) error {
	idRows, err := s.db.QueryContext(ctx, `SELECT identifier FROM transaction_identifiers WHERE tx_hash = ?`, t.Hash.Bytes())
	if err != nil {
		return fmt.Errorf("query identifiers: %w", err)
	}
	for idRows.Next() {
		var b []byte
		if err := idRows.Scan(&b); err != nil {
			idRows.Close()
			return err
		}
		var h domain.Hash
		copy(h[:], b)
		t.Identifiers = append(t.Identifiers, h)
	}
	idRows.Close()
	if err := idRows.Err(); err != nil {
		return err
	}

	created, spent, err := loadUtxosForTx(ctx, s.db, t.Hash)
	if err != nil {
		return err
	}
	t.UnshieldedCreatedOutputs = created
	t.UnshieldedSpentOutputs = spent

	actions, err := loadContractActionsForTx(ctx, s.db, t.Hash)
	if err != nil {
		return err
	}
	t.ContractActions = actions

	zswap, dust, err := loadLedgerEventsForTx(ctx, s.db, t.Hash)
	if err != nil {
		return err
	}
	t.ZswapLedgerEvents = zswap
	t.DustLedgerEvents = dust
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadUtxosForTx(ctx context.Context, q queryer, txHash domain.Hash) (created, spent []domain.UnshieldedUtxo, err error) {
	// Outputs this transaction created.
	rows, err := q.QueryContext(ctx, `SELECT owner, token_type, value, output_index, created_height, spent_tx_hash, spent_height, ctime, registered_dust
		FROM unshielded_utxos WHERE created_tx_hash = ? ORDER BY output_index ASC`, txHash.Bytes())
	if err != nil {
		return nil, nil, fmt.Errorf("query created utxos: %w", err)
	}
	for rows.Next() {
		u, err := scanUtxo(rows, txHash)
		if err != nil {
			rows.Close()
			return nil, nil, err
		}
		created = append(created, u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	// Outputs this transaction spent (created elsewhere).
	rows2, err := q.QueryContext(ctx, `SELECT owner, token_type, value, output_index, created_height, spent_tx_hash, spent_height, ctime, registered_dust, created_tx_hash
		FROM unshielded_utxos WHERE spent_tx_hash = ?`, txHash.Bytes())
	if err != nil {
		return nil, nil, fmt.Errorf("query spent utxos: %w", err)
	}
	defer rows2.Close()
	for rows2.Next() {
		var owner, tokenType, value, createdTxHashBytes []byte
		var outputIndex, createdHeight uint32
		var spentTxHashBytes []byte
		var spentHeight sql.NullInt64
		var ctimeNanos int64
		var registered int
		if err := rows2.Scan(&owner, &tokenType, &value, &outputIndex, &createdHeight, &spentTxHashBytes, &spentHeight, &ctimeNanos, &registered, &createdTxHashBytes); err != nil {
			return nil, nil, fmt.Errorf("scan spent utxo: %w", err)
		}
		var createdHash domain.Hash
		copy(createdHash[:], createdTxHashBytes)
		u := domain.UnshieldedUtxo{
			Owner:                       domain.Address(owner),
			TokenType:                   tokenType,
			OutputIndex:                 outputIndex,
			CreatedAtTransaction:        domain.TxRef{Hash: createdHash, Height: createdHeight},
			Ctime:                       unixNanoToTime(ctimeNanos),
			RegisteredForDustGeneration: registered != 0,
		}
		copy(u.Value[:], value)
		spentHash := txHash
		sh := uint32(spentHeight.Int64)
		u.SpentAtTransaction = &domain.TxRef{Hash: spentHash, Height: sh}
		spent = append(spent, u)
	}
	return created, spent, rows2.Err()
}

func scanUtxo(rows *sql.Rows, createdTxHash domain.Hash) (domain.UnshieldedUtxo, error) {
	var owner, tokenType, value []byte
	var outputIndex, createdHeight uint32
	var spentTxHashBytes []byte
	var spentHeight sql.NullInt64
	var ctimeNanos int64
	var registered int
	if err := rows.Scan(&owner, &tokenType, &value, &outputIndex, &createdHeight, &spentTxHashBytes, &spentHeight, &ctimeNanos, &registered); err != nil {
		return domain.UnshieldedUtxo{}, fmt.Errorf("scan utxo: %w", err)
	}
	u := domain.UnshieldedUtxo{
		Owner:                       domain.Address(owner),
		TokenType:                   tokenType,
		OutputIndex:                 outputIndex,
		CreatedAtTransaction:        domain.TxRef{Hash: createdTxHash, Height: createdHeight},
		Ctime:                       unixNanoToTime(ctimeNanos),
		RegisteredForDustGeneration: registered != 0,
	}
	copy(u.Value[:], value)
	if len(spentTxHashBytes) > 0 {
		var h domain.Hash
		copy(h[:], spentTxHashBytes)
		u.SpentAtTransaction = &domain.TxRef{Hash: h, Height: uint32(spentHeight.Int64)}
	}
	return u, nil
}

func loadContractActionsForTx(ctx context.Context, q queryer, txHash domain.Hash) ([]domain.ContractAction, error) {
	rows, err := q.QueryContext(ctx, `SELECT address, height, index_in_block, kind, entry_point, zswap_state, deploy_tx_hash, deploy_height
		FROM contract_actions WHERE tx_hash = ? ORDER BY index_in_block ASC`, txHash.Bytes())
	if err != nil {
		return nil, fmt.Errorf("query contract actions: %w", err)
	}
	defer rows.Close()

	var out []domain.ContractAction
	for rows.Next() {
		a, err := scanContractAction(rows, txHash)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanContractAction(rows *sql.Rows, txHash domain.Hash) (domain.ContractAction, error) {
	var address []byte
	var height, indexInBlock uint32
	var kind string
	var entryPoint sql.NullString
	var zswapState, deployHashBytes []byte
	var deployHeight sql.NullInt64
	if err := rows.Scan(&address, &height, &indexInBlock, &kind, &entryPoint, &zswapState, &deployHashBytes, &deployHeight); err != nil {
		return nil, fmt.Errorf("scan contract action: %w", err)
	}
	common := domain.CommonContractAction{
		Address:      domain.Address(address),
		Transaction:  domain.TxRef{Hash: txHash, Height: height},
		IndexInBlock: indexInBlock,
		ZswapState:   zswapState,
	}
	switch domain.ContractActionKind(kind) {
	case domain.ContractActionDeploy:
		return domain.ContractDeployAction{CommonContractAction: common}, nil
	case domain.ContractActionCall:
		var deployHash domain.Hash
		copy(deployHash[:], deployHashBytes)
		return domain.ContractCallAction{
			CommonContractAction: common,
			EntryPoint:           entryPoint.String,
			Deploy:               domain.TxRef{Hash: deployHash, Height: uint32(deployHeight.Int64)},
		}, nil
	case domain.ContractActionUpdate:
		var deployHash domain.Hash
		copy(deployHash[:], deployHashBytes)
		return domain.ContractUpdateAction{
			CommonContractAction: common,
			Deploy:               domain.TxRef{Hash: deployHash, Height: uint32(deployHeight.Int64)},
		}, nil
	default:
		return nil, fmt.Errorf("unknown contract action kind %q", kind)
	}
}

func loadLedgerEventsForTx(ctx context.Context, q queryer, txHash domain.Hash) (zswap, dust []domain.LedgerEvent, err error) {
	rows, err := q.QueryContext(ctx, `SELECT id, family, raw FROM ledger_events WHERE tx_hash = ? ORDER BY id ASC`, txHash.Bytes())
	if err != nil {
		return nil, nil, fmt.Errorf("query ledger events: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uint64
		var family string
		var raw []byte
		if err := rows.Scan(&id, &family, &raw); err != nil {
			return nil, nil, fmt.Errorf("scan ledger event: %w", err)
		}
		ev := domain.LedgerEvent{Id: id, Family: domain.LedgerEventFamily(family), Raw: raw}
		switch ev.Family {
		case domain.LedgerEventFamilyZswap:
			zswap = append(zswap, ev)
		case domain.LedgerEventFamilyDust:
			dust = append(dust, ev)
		}
	}
	return zswap, dust, rows.Err()
}

func (s *Store) GetTransaction(ctx context.Context, lookup storage.TransactionLookup) ([]domain.Transaction, error) {
	switch {
	case lookup.Hash != nil && lookup.Identifier != nil:
		return nil, domain.NewError(domain.KindInputMalformed, "requires exactly one field")
	case lookup.Hash != nil:
		var height uint32
		if err := s.db.QueryRowContext(ctx, `SELECT block_height FROM transactions WHERE hash = ?`, lookup.Hash.Bytes()).Scan(&height); err == sql.ErrNoRows {
			return nil, nil
		} else if err != nil {
			return nil, fmt.Errorf("lookup tx by hash: %w", err)
		}
		txs, err := s.loadTransactionsForBlock(ctx, height)
		if err != nil {
			return nil, err
		}
		for _, t := range txs {
			if t.TxHash() == *lookup.Hash {
				return []domain.Transaction{t}, nil
			}
		}
		return nil, nil
	case lookup.Identifier != nil:
		rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT tx_hash FROM transaction_identifiers WHERE identifier = ?`, lookup.Identifier.Bytes())
		if err != nil {
			return nil, fmt.Errorf("lookup tx by identifier: %w", err)
		}
		defer rows.Close()
		var hashes []domain.Hash
		for rows.Next() {
			var b []byte
			if err := rows.Scan(&b); err != nil {
				return nil, err
			}
			var h domain.Hash
			copy(h[:], b)
			hashes = append(hashes, h)
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
		var out []domain.Transaction
		for _, h := range hashes {
			hCopy := h
			txs, err := s.GetTransaction(ctx, storage.TransactionLookup{Hash: &hCopy})
			if err != nil {
				return nil, err
			}
			out = append(out, txs...)
		}
		return out, nil
	default:
		return nil, domain.NewError(domain.KindInputMalformed, "requires exactly one field")
	}
}
