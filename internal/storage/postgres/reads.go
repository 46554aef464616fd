package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"midnight-indexer/internal/domain"
	"midnight-indexer/internal/storage"
)

func unixNanoToTime(nanos int64) time.Time { return time.Unix(0, nanos).UTC() }

func (s *Store) GetBlockByHash(ctx context.Context, hash domain.Hash) (*domain.Block, error) {
	return s.getBlock(ctx, `SELECT hash, height, parent_hash, timestamp FROM blocks WHERE hash = $1`, hash.Bytes())
}

func (s *Store) GetBlockByHeight(ctx context.Context, height uint32) (*domain.Block, error) {
	return s.getBlock(ctx, `SELECT hash, height, parent_hash, timestamp FROM blocks WHERE height = $1`, height)
}

func (s *Store) GetLatestBlock(ctx context.Context) (*domain.Block, error) {
	return s.getBlock(ctx, `SELECT hash, height, parent_hash, timestamp FROM blocks ORDER BY height DESC LIMIT 1`)
}

func (s *Store) getBlock(ctx context.Context, query string, args ...any) (*domain.Block, error) {
	row := s.pool.QueryRow(ctx, query, args...)
	blk, err := scanBlock(row)
	if errors.Is(err, pgx.ErrNoRows) {
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

func scanBlock(row pgx.Row) (domain.Block, error) {
	var blk domain.Block
	var hashBytes, parentBytes []byte
	var height int64
	var timestampNanos int64
	if err := row.Scan(&hashBytes, &height, &parentBytes, &timestampNanos); err != nil {
		return blk, err
	}
	blk.Height = uint32(height)
	copy(blk.Hash[:], hashBytes)
	copy(blk.ParentHash[:], parentBytes)
	blk.Timestamp = unixNanoToTime(timestampNanos)
	return blk, nil
}

func (s *Store) loadTransactionsForBlock(ctx context.Context, height uint32) ([]domain.Transaction, error) {
	rows, err := s.pool.Query(ctx, `SELECT hash, index_in_block, kind, raw FROM transactions WHERE block_height = $1 ORDER BY index_in_block ASC`, height)
	if err != nil {
		return nil, fmt.Errorf("query transactions for height %d: %w", height, err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var hashBytes, raw []byte
		var indexInBlock int64
		var kind string
		if err := rows.Scan(&hashBytes, &indexInBlock, &kind, &raw); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		var hash domain.Hash
		copy(hash[:], hashBytes)
		common := domain.CommonTransaction{Hash: hash, BlockHeight: height, IndexInBlock: uint32(indexInBlock)}
		if domain.TransactionKind(kind) == domain.TransactionKindSystem {
			out = append(out, domain.SystemTransaction{CommonTransaction: common})
			continue
		}
		out = append(out, domain.RegularTransaction{CommonTransaction: common, Raw: raw})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

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

func (s *Store) hydrateRegularTransaction(ctx context.Context, t *domain.RegularTransaction) error {
	idRows, err := s.pool.Query(ctx, `SELECT identifier FROM transaction_identifiers WHERE tx_hash = $1`, t.Hash.Bytes())
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

	created, spent, err := loadUtxosForTx(ctx, s.pool, t.Hash)
	if err != nil {
		return err
	}
	t.UnshieldedCreatedOutputs = created
	t.UnshieldedSpentOutputs = spent

	actions, err := loadContractActionsForTx(ctx, s.pool, t.Hash)
	if err != nil {
		return err
	}
	t.ContractActions = actions

	zswap, dust, err := loadLedgerEventsForTx(ctx, s.pool, t.Hash)
	if err != nil {
		return err
	}
	t.ZswapLedgerEvents = zswap
	t.DustLedgerEvents = dust
	return nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadUtxosForTx(ctx context.Context, q queryer, txHash domain.Hash) (created, spent []domain.UnshieldedUtxo, err error) {
	rows, err := q.Query(ctx, `SELECT owner, token_type, value, output_index, created_height, spent_tx_hash, spent_height, ctime, registered_dust
		FROM unshielded_utxos WHERE created_tx_hash = $1 ORDER BY output_index ASC`, txHash.Bytes())
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

	rows2, err := q.Query(ctx, `SELECT owner, token_type, value, output_index, created_height, spent_tx_hash, spent_height, ctime, registered_dust, created_tx_hash
		FROM unshielded_utxos WHERE spent_tx_hash = $1`, txHash.Bytes())
	if err != nil {
		return nil, nil, fmt.Errorf("query spent utxos: %w", err)
	}
	defer rows2.Close()
	for rows2.Next() {
		var owner, tokenType, value, createdTxHashBytes []byte
		var outputIndex, createdHeight int64
		var spentTxHashBytes []byte
		var spentHeight *int64
		var ctimeNanos int64
		var registered bool
		if err := rows2.Scan(&owner, &tokenType, &value, &outputIndex, &createdHeight, &spentTxHashBytes, &spentHeight, &ctimeNanos, &registered, &createdTxHashBytes); err != nil {
			return nil, nil, fmt.Errorf("scan spent utxo: %w", err)
		}
		var createdHash domain.Hash
		copy(createdHash[:], createdTxHashBytes)
		u := domain.UnshieldedUtxo{
			Owner:                       domain.Address(owner),
			TokenType:                   tokenType,
			OutputIndex:                 uint32(outputIndex),
			CreatedAtTransaction:        domain.TxRef{Hash: createdHash, Height: uint32(createdHeight)},
			Ctime:                       unixNanoToTime(ctimeNanos),
			RegisteredForDustGeneration: registered,
		}
		copy(u.Value[:], value)
		var sh uint32
		if spentHeight != nil {
			sh = uint32(*spentHeight)
		}
		u.SpentAtTransaction = &domain.TxRef{Hash: txHash, Height: sh}
		spent = append(spent, u)
	}
	return created, spent, rows2.Err()
}

func scanUtxo(rows pgx.Rows, createdTxHash domain.Hash) (domain.UnshieldedUtxo, error) {
	var owner, tokenType, value []byte
	var outputIndex, createdHeight int64
	var spentTxHashBytes []byte
	var spentHeight *int64
	var ctimeNanos int64
	var registered bool
	if err := rows.Scan(&owner, &tokenType, &value, &outputIndex, &createdHeight, &spentTxHashBytes, &spentHeight, &ctimeNanos, &registered); err != nil {
		return domain.UnshieldedUtxo{}, fmt.Errorf("scan utxo: %w", err)
	}
	u := domain.UnshieldedUtxo{
		Owner:                       domain.Address(owner),
		TokenType:                   tokenType,
		OutputIndex:                 uint32(outputIndex),
		CreatedAtTransaction:        domain.TxRef{Hash: createdTxHash, Height: uint32(createdHeight)},
		Ctime:                       unixNanoToTime(ctimeNanos),
		RegisteredForDustGeneration: registered,
	}
	copy(u.Value[:], value)
	if len(spentTxHashBytes) > 0 {
		var h domain.Hash
		copy(h[:], spentTxHashBytes)
		var sh uint32
		if spentHeight != nil {
			sh = uint32(*spentHeight)
		}
		u.SpentAtTransaction = &domain.TxRef{Hash: h, Height: sh}
	}
	return u, nil
}

func loadContractActionsForTx(ctx context.Context, q queryer, txHash domain.Hash) ([]domain.ContractAction, error) {
	rows, err := q.Query(ctx, `SELECT address, height, index_in_block, kind, entry_point, zswap_state, deploy_tx_hash, deploy_height
		FROM contract_actions WHERE tx_hash = $1 ORDER BY index_in_block ASC`, txHash.Bytes())
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

func scanContractAction(rows pgx.Rows, txHash domain.Hash) (domain.ContractAction, error) {
	var address []byte
	var height, indexInBlock int64
	var kind string
	var entryPoint *string
	var zswapState, deployHashBytes []byte
	var deployHeight *int64
	if err := rows.Scan(&address, &height, &indexInBlock, &kind, &entryPoint, &zswapState, &deployHashBytes, &deployHeight); err != nil {
		return nil, fmt.Errorf("scan contract action: %w", err)
	}
	common := domain.CommonContractAction{
		Address:      domain.Address(address),
		Transaction:  domain.TxRef{Hash: txHash, Height: uint32(height)},
		IndexInBlock: uint32(indexInBlock),
		ZswapState:   zswapState,
	}
	return buildContractAction(common, kind, entryPoint, deployHashBytes, deployHeight)
}

func buildContractAction(common domain.CommonContractAction, kind string, entryPoint *string, deployHashBytes []byte, deployHeight *int64) (domain.ContractAction, error) {
	switch domain.ContractActionKind(kind) {
	case domain.ContractActionDeploy:
		return domain.ContractDeployAction{CommonContractAction: common}, nil
	case domain.ContractActionCall:
		var deployHash domain.Hash
		copy(deployHash[:], deployHashBytes)
		var ep string
		if entryPoint != nil {
			ep = *entryPoint
		}
		var dh uint32
		if deployHeight != nil {
			dh = uint32(*deployHeight)
		}
		return domain.ContractCallAction{
			CommonContractAction: common,
			EntryPoint:           ep,
			Deploy:               domain.TxRef{Hash: deployHash, Height: dh},
		}, nil
	case domain.ContractActionUpdate:
		var deployHash domain.Hash
		copy(deployHash[:], deployHashBytes)
		var dh uint32
		if deployHeight != nil {
			dh = uint32(*deployHeight)
		}
		return domain.ContractUpdateAction{
			CommonContractAction: common,
			Deploy:               domain.TxRef{Hash: deployHash, Height: dh},
		}, nil
	default:
		return nil, fmt.Errorf("unknown contract action kind %q", kind)
	}
}

func loadLedgerEventsForTx(ctx context.Context, q queryer, txHash domain.Hash) (zswap, dust []domain.LedgerEvent, err error) {
	rows, err := q.Query(ctx, `SELECT id, family, raw FROM ledger_events WHERE tx_hash = $1 ORDER BY id ASC`, txHash.Bytes())
	if err != nil {
		return nil, nil, fmt.Errorf("query ledger events: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var family string
		var raw []byte
		if err := rows.Scan(&id, &family, &raw); err != nil {
			return nil, nil, fmt.Errorf("scan ledger event: %w", err)
		}
		ev := domain.LedgerEvent{Id: uint64(id), Family: domain.LedgerEventFamily(family), Raw: raw}
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
		var height int64
		err := s.pool.QueryRow(ctx, `SELECT block_height FROM transactions WHERE hash = $1`, lookup.Hash.Bytes()).Scan(&height)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("lookup tx by hash: %w", err)
		}
		txs, err := s.loadTransactionsForBlock(ctx, uint32(height))
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
		rows, err := s.pool.Query(ctx, `SELECT DISTINCT tx_hash FROM transaction_identifiers WHERE identifier = $1`, lookup.Identifier.Bytes())
		if err != nil {
			return nil, fmt.Errorf("lookup tx by identifier: %w", err)
		}
		var hashes []domain.Hash
		for rows.Next() {
			var b []byte
			if err := rows.Scan(&b); err != nil {
				rows.Close()
				return nil, err
			}
			var h domain.Hash
			copy(h[:], b)
			hashes = append(hashes, h)
		}
		rows.Close()
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
